package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/at-ishikawa/dynsyn/internal/synonym"
)

func newTestRemote(t *testing.T, url string, opts RemoteOptions) *Remote {
	t.Helper()
	if opts.RetryDelay == 0 {
		opts.RetryDelay = time.Millisecond
	}
	remote, err := NewRemote(url, nil, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close() })
	return remote
}

func TestNewRemote(t *testing.T) {
	tests := []struct {
		name     string
		location string
		wantErr  error
	}{
		{name: "missing location", location: " ", wantErr: ErrMissingLocation},
		{name: "unsupported scheme", location: "ftp://example.com/synonyms.txt"},
		{name: "http", location: "http://example.com/synonyms.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote, err := NewRemote(tt.location, &http.Client{}, RemoteOptions{})
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.name == "unsupported scheme":
				assert.Error(t, err)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.location, remote.Location())
				assert.Equal(t, "http://example.com/synonyms.txt/callback", remote.callbackURL)
			}
		})
	}
}

func TestRemote_CheckFreshness(t *testing.T) {
	const lastModified = "Wed, 01 Jan 2025 00:00:00 GMT"

	tests := []struct {
		name        string
		incremental bool
		state       State
		status      int
		headers     map[string]string

		wantReload      bool
		wantResync      bool
		wantIncremental bool
		wantErr         bool
		wantRequest     map[string]string
	}{
		{
			name:        "first check without validators",
			status:      http.StatusOK,
			headers:     map[string]string{"ETag": `"v1"`, "Last-Modified": lastModified},
			wantReload:  true,
			wantRequest: map[string]string{"If-None-Match": "", "If-Modified-Since": ""},
		},
		{
			name:        "validators match",
			state:       State{ETag: `"v1"`, LastModified: lastModified},
			status:      http.StatusOK,
			headers:     map[string]string{"ETag": `"v1"`, "Last-Modified": lastModified},
			wantReload:  false,
			wantRequest: map[string]string{"If-None-Match": `"v1"`, "If-Modified-Since": lastModified},
		},
		{
			name:       "validators compare exactly",
			state:      State{ETag: `"V1"`, LastModified: lastModified},
			status:     http.StatusOK,
			headers:    map[string]string{"ETag": `"v1"`, "Last-Modified": lastModified},
			wantReload: true,
		},
		{
			name:       "etag changed",
			state:      State{ETag: `"v1"`, LastModified: lastModified},
			status:     http.StatusOK,
			headers:    map[string]string{"ETag": `"v2"`, "Last-Modified": lastModified},
			wantReload: true,
		},
		{
			name:       "not modified",
			state:      State{ETag: `"v1"`},
			status:     http.StatusNotModified,
			wantReload: false,
		},
		{
			name:       "validators missing from response",
			state:      State{ETag: `"v1"`, LastModified: lastModified},
			status:     http.StatusOK,
			headers:    map[string]string{"ETag": `"v1"`},
			wantReload: true,
		},
		{
			name:       "server error",
			status:     http.StatusInternalServerError,
			wantReload: false,
			wantErr:    true,
		},
		{
			name:            "incremental offset advanced",
			incremental:     true,
			state:           State{Incremental: true, Offset: 120, LastAction: ActionUpdate},
			status:          http.StatusOK,
			headers:         map[string]string{"Incremental": "true", "Offset": "240"},
			wantReload:      true,
			wantIncremental: true,
			wantRequest:     map[string]string{"Offset": "120", "LAST_ACTION": "update"},
		},
		{
			name:            "incremental offset repeated",
			incremental:     true,
			state:           State{Incremental: true, Offset: 120},
			status:          http.StatusOK,
			headers:         map[string]string{"Incremental": "TRUE", "Offset": "120"},
			wantReload:      false,
			wantIncremental: true,
		},
		{
			name:            "incremental offset repeated with changed validators",
			incremental:     true,
			state:           State{Incremental: true, Offset: 120, ETag: `"v1"`, LastModified: lastModified},
			status:          http.StatusOK,
			headers:         map[string]string{"Incremental": "true", "Offset": "120", "ETag": `"v2"`, "Last-Modified": lastModified},
			wantReload:      true,
			wantIncremental: true,
		},
		{
			name:            "incremental offset regressed",
			incremental:     true,
			state:           State{Incremental: true, Offset: 240},
			status:          http.StatusOK,
			headers:         map[string]string{"Incremental": "true", "Offset": "10"},
			wantReload:      true,
			wantResync:      true,
			wantIncremental: true,
		},
		{
			name:        "offset change reloads when incremental is disabled",
			incremental: false,
			state:       State{ETag: `"v1"`, LastModified: lastModified, Offset: 120},
			status:      http.StatusOK,
			headers:     map[string]string{"Incremental": "true", "Offset": "240", "ETag": `"v1"`, "Last-Modified": lastModified},
			wantReload:  true,
			wantRequest: map[string]string{"Offset": ""},
		},
		{
			name:        "offset change reloads a source reporting non incremental mode",
			incremental: true,
			state:       State{ETag: `"v1"`, LastModified: lastModified, Offset: 120},
			status:      http.StatusOK,
			headers:     map[string]string{"Incremental": "false", "Offset": "240", "ETag": `"v1"`, "Last-Modified": lastModified},
			wantReload:  true,
		},
		{
			name:        "regressed offset of a non incremental source reloads without resync",
			incremental: false,
			state:       State{ETag: `"v1"`, LastModified: lastModified, Offset: 240},
			status:      http.StatusOK,
			headers:     map[string]string{"Offset": "60", "ETag": `"v1"`, "Last-Modified": lastModified},
			wantReload:  true,
		},
		{
			name:        "same offset with matching validators does not reload",
			incremental: false,
			state:       State{ETag: `"v1"`, LastModified: lastModified, Offset: 120},
			status:      http.StatusOK,
			headers:     map[string]string{"Offset": "120", "ETag": `"v1"`, "Last-Modified": lastModified},
			wantReload:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests := make(chan http.Header, 1)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				requests <- r.Header.Clone()
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			remote := newTestRemote(t, server.URL+"/synonyms.txt", RemoteOptions{Incremental: tt.incremental})
			decision := remote.CheckFreshness(context.Background(), tt.state)

			assert.Equal(t, tt.wantReload, decision.Reload)
			assert.Equal(t, tt.wantResync, decision.Resync)
			assert.Equal(t, tt.wantIncremental, decision.Incremental)
			assert.Equal(t, tt.status, decision.StatusCode)
			if tt.wantErr {
				var transportErr *TransportError
				require.True(t, errors.As(decision.Err, &transportErr))
				assert.Equal(t, tt.status, transportErr.StatusCode)
			} else {
				assert.NoError(t, decision.Err)
			}
			got := <-requests
			for k, v := range tt.wantRequest {
				assert.Equal(t, v, got.Get(k), k)
			}
			assert.Equal(t, "dynsyn", got.Get("User-Agent"))
		})
	}
}

func TestRemote_CheckFreshness_TransportError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	remote := newTestRemote(t, url, RemoteOptions{})
	state := State{ETag: `"v1"`}
	decision := remote.CheckFreshness(context.Background(), state)

	assert.False(t, decision.Reload)
	assert.True(t, IsTransportError(decision.Err))
	assert.Equal(t, State{ETag: `"v1"`}, state)
}

func TestRemote_CheckFreshness_Callback(t *testing.T) {
	var (
		mu       sync.Mutex
		received http.Header
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/synonyms.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Incremental", "true")
		w.Header().Set("Offset", "120")
	})
	mux.HandleFunc("/synonyms.txt/callback", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		received = r.Header.Clone()
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	remote := newTestRemote(t, server.URL+"/synonyms.txt", RemoteOptions{Incremental: true, Callback: true})
	decision := remote.CheckFreshness(context.Background(), State{})
	remote.Wait()

	require.True(t, decision.Reload)
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, received)
	assert.Equal(t, "true", received.Get("isReload"))
	assert.Equal(t, "120", received.Get("Offset"))
}

func TestRemote_CheckFreshness_CallbackFailureIsIgnored(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/synonyms.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	remote := newTestRemote(t, server.URL+"/synonyms.txt", RemoteOptions{Callback: true})
	decision := remote.CheckFreshness(context.Background(), State{})
	remote.Wait()

	assert.True(t, decision.Reload)
	assert.NoError(t, decision.Err)
}

func TestRemote_Fetch(t *testing.T) {
	var requests atomic.Int32
	offsets := make(chan string, 2)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		offsets <- r.Header.Get("Offset")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Offset", "240")
		_, _ = w.Write([]byte("fast, quick\r\ncar, auto\r\n"))
	}))
	defer server.Close()

	remote := newTestRemote(t, server.URL, RemoteOptions{Incremental: true, Format: synonym.FormatSolr})
	got, err := remote.Fetch(context.Background(), State{Incremental: true, Offset: 120})
	require.NoError(t, err)

	assert.Equal(t, []string{"fast, quick", "car, auto"}, got.Rules.Lines())
	assert.Equal(t, synonym.FormatSolr, got.Rules.Format())
	assert.Equal(t, "utf-8", got.Charset)
	assert.Equal(t, int64(240), got.Offset)
	assert.True(t, got.HasOffset)
	assert.Equal(t, "120", <-offsets)
	assert.Equal(t, int32(1), requests.Load())

	got, err = remote.Fetch(context.Background(), State{Incremental: true, Offset: 120}.ForFullFetch())
	require.NoError(t, err)
	assert.Equal(t, "", <-offsets)
	assert.Equal(t, 2, got.Rules.Len())
}

func TestRemote_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name          string
		statuses      []int
		retryAttempts uint
		wantRequests  int32
		wantErr       bool
		wantLines     int
	}{
		{
			name:          "transient errors are retried",
			statuses:      []int{http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusOK},
			retryAttempts: 2,
			wantRequests:  3,
			wantLines:     1,
		},
		{
			name:          "retries are bounded",
			statuses:      []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusInternalServerError},
			retryAttempts: 1,
			wantRequests:  2,
			wantErr:       true,
		},
		{
			name:          "client errors are not retried",
			statuses:      []int{http.StatusNotFound, http.StatusOK},
			retryAttempts: 3,
			wantRequests:  1,
			wantErr:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := requests.Add(1)
				status := tt.statuses[min(int(n), len(tt.statuses))-1]
				w.WriteHeader(status)
				if status == http.StatusOK {
					_, _ = w.Write([]byte("fast, quick\n"))
				}
			}))
			defer server.Close()

			remote := newTestRemote(t, server.URL, RemoteOptions{RetryAttempts: tt.retryAttempts})
			got, err := remote.Fetch(context.Background(), State{})

			assert.Equal(t, tt.wantRequests, requests.Load())
			assert.Equal(t, tt.wantLines, got.Rules.Len())
			if tt.wantErr {
				var transportErr *TransportError
				require.True(t, errors.As(err, &transportErr))
				assert.Equal(t, http.MethodGet, transportErr.Op)
				assert.NotZero(t, transportErr.StatusCode)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestTransportError_Temporary(t *testing.T) {
	tests := []struct {
		name string
		err  *TransportError
		want bool
	}{
		{name: "network error", err: &TransportError{Err: errors.New("connection refused")}, want: true},
		{name: "canceled", err: &TransportError{Err: context.Canceled}, want: false},
		{name: "server error", err: &TransportError{StatusCode: http.StatusBadGateway}, want: true},
		{name: "rate limited", err: &TransportError{StatusCode: http.StatusTooManyRequests}, want: true},
		{name: "not found", err: &TransportError{StatusCode: http.StatusNotFound}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Temporary())
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}
