package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"resty.dev/v3"

	"github.com/at-ishikawa/dynsyn/internal/synonym"
	"github.com/at-ishikawa/dynsyn/internal/transport"
)

// RemoteOptions configures a Remote source.
type RemoteOptions struct {
	Format synonym.Format
	// Incremental enables the offset protocol. When false the Incremental header is ignored.
	Incremental bool
	// Callback notifies the source of every freshness decision.
	Callback bool

	ProbeTimeout  time.Duration
	FetchTimeout  time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	UserAgent     string
}

func (o RemoteOptions) withDefaults() RemoteOptions {
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = 15 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 60 * time.Second
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
	if o.UserAgent == "" {
		o.UserAgent = "dynsyn"
	}
	return o
}

// Remote is a synonym source served over HTTP.
type Remote struct {
	location    string
	callbackURL string
	client      *resty.Client
	options     RemoteOptions

	callbacks sync.WaitGroup
}

var _ Source = (*Remote)(nil)

// NewRemote returns a source for location. A nil httpClient selects transport.NewClient defaults.
func NewRemote(location string, httpClient *http.Client, opts RemoteOptions) (*Remote, error) {
	if strings.TrimSpace(location) == "" {
		return nil, ErrMissingLocation
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("url.Parse(%s) > %w", location, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, location)
	}
	if httpClient == nil {
		httpClient, err = transport.NewClient(transport.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("transport.NewClient > %w", err)
		}
	}

	opts = opts.withDefaults()
	client := resty.NewWithClient(httpClient)
	client.SetHeader("User-Agent", opts.UserAgent)

	return &Remote{
		location:    location,
		callbackURL: u.JoinPath(callbackPath).String(),
		client:      client,
		options:     opts,
	}, nil
}

// Location returns the URL of the rules.
func (r *Remote) Location() string {
	return r.location
}

// CheckFreshness sends a HEAD request with the stored validators and decides whether to reload.
func (r *Remote) CheckFreshness(ctx context.Context, state State) ReloadDecision {
	decision := r.checkFreshness(ctx, state)
	if decision.Err != nil {
		slog.Default().Warn("check synonym source",
			"location", r.location,
			"status", decision.StatusCode,
			"error", decision.Err,
		)
	} else {
		slog.Default().Debug("checked synonym source",
			"location", r.location,
			"status", decision.StatusCode,
			"reload", decision.Reload,
			"resync", decision.Resync,
			"offset", decision.Offset,
		)
	}
	if r.options.Callback {
		r.sendCallback(ctx, decision, state)
	}
	return decision
}

func (r *Remote) checkFreshness(ctx context.Context, state State) ReloadDecision {
	ctx, cancel := context.WithTimeout(ctx, r.options.ProbeTimeout)
	defer cancel()

	req := r.client.R().SetContext(ctx)
	if state.LastModified != "" {
		req.SetHeader(HeaderIfModifiedSince, state.LastModified)
	}
	if state.ETag != "" {
		req.SetHeader(HeaderIfNoneMatch, state.ETag)
	}
	if r.options.Incremental && state.Incremental {
		req.SetHeader(HeaderOffset, strconv.FormatInt(state.Offset, 10))
	}
	if state.LastAction != "" {
		req.SetHeaderVerbatim(HeaderLastAction, string(state.LastAction))
	}

	res, err := req.Head(r.location)
	if err != nil {
		return ReloadDecision{Err: &TransportError{Op: http.MethodHead, Location: r.location, Err: err}}
	}

	decision := ReloadDecision{StatusCode: res.StatusCode()}
	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusNotModified:
		return decision
	default:
		decision.Err = &TransportError{Op: http.MethodHead, Location: r.location, StatusCode: res.StatusCode()}
		return decision
	}

	header := res.Header()
	decision.LastModified = header.Get(HeaderLastModified)
	decision.ETag = header.Get(HeaderETag)
	if r.options.Incremental {
		decision.Incremental = parseIncremental(header.Get(HeaderIncremental))
	}
	decision.Offset, decision.HasOffset = r.parseOffset(header.Get(HeaderOffset))
	decision.Reload, decision.Resync = reloadNeeded(state, decision)
	return decision
}

// reloadNeeded compares what the source reported with the stored state.
// A reported offset that differs from the stored one always reloads; only
// incremental sources resync on a regressed offset.
func reloadNeeded(state State, d ReloadDecision) (reload, resync bool) {
	validatorsPresent := d.LastModified != "" && d.ETag != ""
	validatorsChanged := d.LastModified != state.LastModified || d.ETag != state.ETag

	if d.HasOffset && d.Offset != state.Offset {
		return true, d.Incremental && d.Offset < state.Offset
	}
	if d.Incremental && d.HasOffset {
		return validatorsPresent && validatorsChanged, false
	}
	if !validatorsPresent {
		return true, false
	}
	return validatorsChanged, false
}

func parseIncremental(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func (r *Remote) parseOffset(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	offset, err := strconv.ParseInt(v, 10, 64)
	if err != nil || offset < 0 {
		slog.Default().Warn("ignore invalid offset", "location", r.location, "offset", v)
		return 0, false
	}
	return offset, true
}

func (r *Remote) sendCallback(ctx context.Context, decision ReloadDecision, state State) {
	offset := state.Offset
	if decision.HasOffset {
		offset = decision.Offset
	}
	ctx = context.WithoutCancel(ctx)

	r.callbacks.Add(1)
	go func() {
		defer r.callbacks.Done()

		ctx, cancel := context.WithTimeout(ctx, r.options.ProbeTimeout)
		defer cancel()
		res, err := r.client.R().
			SetContext(ctx).
			SetHeaderVerbatim(HeaderIsReload, strconv.FormatBool(decision.Reload)).
			SetHeader(HeaderOffset, strconv.FormatInt(offset, 10)).
			Head(r.callbackURL)
		if err != nil {
			slog.Default().Warn("send synonym callback", "location", r.callbackURL, "error", err)
			return
		}
		if res.StatusCode() != http.StatusOK {
			slog.Default().Warn("synonym callback returned bad status", "location", r.callbackURL, "status", res.StatusCode())
		}
	}()
}

// Fetch downloads the rules. Transient failures are retried with backoff.
func (r *Remote) Fetch(ctx context.Context, state State) (FetchResult, error) {
	var result FetchResult
	err := retry.Do(
		func() error {
			fetched, err := r.fetch(ctx, state)
			if err != nil {
				var transportErr *TransportError
				if errors.As(err, &transportErr) && transportErr.Temporary() {
					return err
				}
				return retry.Unrecoverable(err)
			}
			result = fetched
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.options.RetryAttempts+1),
		retry.Delay(r.options.RetryDelay),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Debug("retry synonym fetch", "location", r.location, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if !IsTransportError(err) {
			err = &TransportError{Op: http.MethodGet, Location: r.location, Err: err}
		}
		slog.Default().Warn("fetch synonym source", "location", r.location, "error", err)
		return FetchResult{Rules: synonym.EmptyRuleSet(r.options.Format)}, err
	}
	return result, nil
}

func (r *Remote) fetch(ctx context.Context, state State) (FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.options.FetchTimeout)
	defer cancel()

	req := r.client.R().SetContext(ctx)
	if r.options.Incremental && state.Incremental {
		req.SetHeader(HeaderOffset, strconv.FormatInt(state.Offset, 10))
	}
	res, err := req.Get(r.location)
	if err != nil {
		return FetchResult{}, &TransportError{Op: http.MethodGet, Location: r.location, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		return FetchResult{}, &TransportError{Op: http.MethodGet, Location: r.location, StatusCode: res.StatusCode()}
	}

	text, charsetName := decodeBody(res.Bytes(), res.Header().Get(HeaderContentType))
	result := FetchResult{
		Rules:   synonym.NewRuleSet(r.options.Format, text),
		Charset: charsetName,
	}
	result.Offset, result.HasOffset = r.parseOffset(res.Header().Get(HeaderOffset))
	slog.Default().Debug("fetched synonym source",
		"location", r.location,
		"charset", charsetName,
		"lines", result.Rules.Len(),
		"offset", result.Offset,
	)
	return result, nil
}

// Wait blocks until every callback in flight has finished.
func (r *Remote) Wait() {
	r.callbacks.Wait()
}

// Close waits for callbacks and releases idle connections.
func (r *Remote) Close() error {
	r.callbacks.Wait()
	return r.client.Close()
}
