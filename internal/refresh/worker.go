// Package refresh runs one background worker per synonym source. A worker
// periodically checks its source, rebuilds the dictionary when the source
// changed and publishes the result as a new snapshot.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"github.com/at-ishikawa/dynsyn/internal/consumer"
	"github.com/at-ishikawa/dynsyn/internal/source"
	"github.com/at-ishikawa/dynsyn/internal/statestore"
	"github.com/at-ishikawa/dynsyn/internal/synonym"
)

const threadNamePrefix = "synonym-monitor-"

// ErrStopped is returned by Refresh once the worker was stopped.
var ErrStopped = errors.New("refresh: worker stopped")

// WorkerState is the scheduling state of a worker.
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateRefreshing
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("WorkerState(%d)", int32(s))
	}
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Interval   time.Duration
	Dictionary synonym.Options
	// Repository persists state across restarts. Nil disables persistence.
	Repository statestore.Repository
	// Registry receives every published snapshot. Nil creates a private registry.
	Registry *consumer.Registry
	Now      func() time.Time
}

// Result describes one refresh cycle.
type Result struct {
	Decision source.ReloadDecision
	// Published is set when a new snapshot was published.
	Published bool
	// Coalesced is set when the cycle was skipped because another one was running.
	Coalesced bool
	Action    source.Action
	Delivered int
	Snapshot  *synonym.Snapshot
}

// Worker refreshes the dictionary of one source.
type Worker struct {
	name       string
	source     source.Source
	interval   time.Duration
	options    synonym.Options
	repository statestore.Repository
	registry   *consumer.Registry
	now        func() time.Time

	snapshot  atomic.Pointer[synonym.Snapshot]
	state     atomic.Int32
	coalesced atomic.Uint64
	cycles    atomic.Uint64

	// cycleMu is held for the duration of a cycle; sourceState is only touched while holding it.
	cycleMu     sync.Mutex
	sourceState source.State
	stopped     atomic.Bool

	statusMu        sync.Mutex
	lastCheckedAt   time.Time
	lastPublishedAt time.Time
	lastErr         error
	committed       source.State

	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stop      chan struct{}
	done      chan struct{}
}

// NewWorker returns an idle worker for src. The worker publishes an empty
// snapshot immediately so readers never observe nil.
func NewWorker(name string, src source.Source, opts WorkerOptions) *Worker {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Registry == nil {
		opts.Registry = consumer.NewRegistry()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Worker{
		name:       name,
		source:     src,
		interval:   opts.Interval,
		options:    opts.Dictionary,
		repository: opts.Repository,
		registry:   opts.Registry,
		now:        opts.Now,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	w.snapshot.Store(synonym.NewSnapshot(synonym.EmptyDictionary(opts.Dictionary), 0, time.Time{}))
	return w
}

// Name returns the source name.
func (w *Worker) Name() string {
	return w.name
}

// ThreadName returns the deterministic name of the worker goroutine.
func (w *Worker) ThreadName() string {
	return threadNamePrefix + w.name
}

// Location returns the location of the source.
func (w *Worker) Location() string {
	return w.source.Location()
}

// Source returns the source the worker polls.
func (w *Worker) Source() source.Source {
	return w.source
}

// State returns whether a cycle is running.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// CurrentSnapshot returns the published snapshot. It is never nil.
func (w *Worker) CurrentSnapshot() *synonym.Snapshot {
	return w.snapshot.Load()
}

// NewFilter returns a filter reading the current snapshot and registers it for updates.
func (w *Worker) NewFilter() (*synonym.Filter, consumer.Handle, error) {
	f := synonym.NewFilter(w.name, w.CurrentSnapshot())
	handle, err := w.registry.Register(f)
	if err != nil {
		return nil, 0, fmt.Errorf("registry.Register() > %w", err)
	}
	// A snapshot published between seeding and registering would be missed otherwise.
	f.Update(w.CurrentSnapshot())
	return f, handle, nil
}

// Registry returns the registry notified on publication.
func (w *Worker) Registry() *consumer.Registry {
	return w.registry
}

// Init restores the persisted state, when a repository is configured, and runs the first cycle.
func (w *Worker) Init(ctx context.Context) error {
	w.cycleMu.Lock()
	w.restore(ctx)
	w.cycleMu.Unlock()

	_, err := w.Refresh(ctx)
	return err
}

func (w *Worker) restore(ctx context.Context) {
	if w.repository == nil {
		return
	}
	record, err := w.repository.Load(ctx, w.name)
	if err != nil {
		slog.Default().Warn("load synonym state", "source", w.name, "error", err)
		return
	}
	if record == nil {
		return
	}
	if record.Location != w.source.Location() {
		slog.Default().Info("discard synonym state of previous location",
			"source", w.name,
			"stored", record.Location,
			"location", w.source.Location(),
		)
		return
	}
	snapshot, err := record.Snapshot(w.options)
	if err != nil {
		slog.Default().Warn("restore synonym dictionary", "source", w.name, "error", err)
		return
	}

	w.sourceState = record.State
	w.publish(snapshot)
	w.statusMu.Lock()
	w.committed = record.State
	w.lastPublishedAt = record.UpdatedAt
	w.statusMu.Unlock()
	slog.Default().Info("restored synonym dictionary",
		"source", w.name,
		"version", snapshot.Version,
		"relations", snapshot.Dictionary.Len(),
		"offset", record.Offset,
	)
}

// Refresh runs one cycle synchronously. When a cycle is already running it
// returns immediately with Result.Coalesced set.
func (w *Worker) Refresh(ctx context.Context) (Result, error) {
	if w.stopped.Load() {
		return Result{}, ErrStopped
	}
	if !w.cycleMu.TryLock() {
		w.coalesced.Add(1)
		slog.Default().Debug("coalesce synonym refresh", "source", w.name)
		return Result{Coalesced: true, Snapshot: w.CurrentSnapshot()}, nil
	}
	defer w.cycleMu.Unlock()
	if w.stopped.Load() {
		return Result{}, ErrStopped
	}

	w.state.Store(int32(StateRefreshing))
	defer w.state.Store(int32(StateIdle))
	w.cycles.Add(1)

	var result Result
	var err error
	pprof.Do(ctx, pprof.Labels("worker", w.ThreadName()), func(ctx context.Context) {
		result, err = w.cycle(ctx)
	})
	if result.Snapshot == nil {
		result.Snapshot = w.CurrentSnapshot()
	}

	w.statusMu.Lock()
	w.lastCheckedAt = w.now()
	w.lastErr = err
	w.committed = w.sourceState
	if result.Published {
		w.lastPublishedAt = result.Snapshot.CreatedAt
	}
	w.statusMu.Unlock()

	if err != nil {
		slog.Default().Warn("refresh synonym source",
			"source", w.name,
			"location", w.source.Location(),
			"error", err,
		)
	}
	return result, err
}

func (w *Worker) cycle(ctx context.Context) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panicked: %v", r)
		}
	}()

	decision := w.source.CheckFreshness(ctx, w.sourceState)
	result.Decision = decision
	if decision.Err != nil {
		return result, decision.Err
	}
	w.sourceState = w.sourceState.WithProbe(decision)
	if !decision.Reload {
		return result, nil
	}

	fetchState := w.sourceState
	if decision.Resync {
		slog.Default().Info("synonym source offset regressed, fetching everything",
			"source", w.name,
			"stored", w.sourceState.Offset,
			"offset", decision.Offset,
		)
		fetchState = fetchState.ForFullFetch()
	}
	fetched, err := w.source.Fetch(ctx, fetchState)
	if err != nil {
		return result, fmt.Errorf("Fetch() > %w", err)
	}

	incoming, err := synonym.Build(fetched.Rules, w.options)
	if err != nil {
		return result, fmt.Errorf("synonym.Build() > %w", err)
	}

	previous := w.CurrentSnapshot()
	dict := incoming
	action := source.ActionUpdate
	if fetchState.Incremental && !previous.Empty() {
		merged, err := synonym.MergeOrIncoming(previous.Dictionary, incoming)
		if err != nil {
			slog.Default().Warn("merge synonym dictionary, replacing it", "source", w.name, "error", err)
		} else {
			action = source.ActionIncrease
		}
		dict = merged
	}

	snapshot := synonym.NewSnapshot(dict, previous.Version+1, w.now())
	result.Delivered = w.publish(snapshot)
	result.Published = true
	result.Action = action
	result.Snapshot = snapshot
	w.sourceState = w.sourceState.WithPublished(decision, fetched, action)

	slog.Default().Info("published synonym dictionary",
		"source", w.name,
		"version", snapshot.Version,
		"action", string(action),
		"relations", dict.Len(),
		"offset", w.sourceState.Offset,
		"consumers", result.Delivered,
	)

	w.persist(ctx, snapshot)
	return result, nil
}

func (w *Worker) publish(snapshot *synonym.Snapshot) int {
	w.snapshot.Store(snapshot)
	return w.registry.Publish(snapshot)
}

func (w *Worker) persist(ctx context.Context, snapshot *synonym.Snapshot) {
	if w.repository == nil {
		return
	}
	record := statestore.NewRecord(w.name, w.source.Location(), w.sourceState, snapshot)
	if err := w.repository.Save(ctx, record); err != nil {
		slog.Default().Warn("save synonym state", "source", w.name, "error", err)
	}
}

// Start runs cycles every interval until ctx is done or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go func() {
			defer close(w.done)
			pprof.Do(ctx, pprof.Labels("worker", w.ThreadName()), w.loop)
		}()
	})
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	slog.Default().Debug("start synonym worker", "worker", w.ThreadName(), "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			_, _ = w.Refresh(ctx)
		}
	}
}

// Stop stops scheduling and waits for the cycle in flight.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
		close(w.stop)
		if w.started.Load() {
			<-w.done
		}
		w.cycleMu.Lock()
		defer w.cycleMu.Unlock()
		slog.Default().Debug("stopped synonym worker", "worker", w.ThreadName())
	})
}

// Status is a point-in-time view of a worker.
type Status struct {
	Name            string        `json:"name"`
	Worker          string        `json:"worker"`
	Location        string        `json:"location"`
	State           string        `json:"state"`
	Version         uint64        `json:"version"`
	CreatedAt       time.Time     `json:"created_at"`
	Relations       int           `json:"relations"`
	MaxContextWidth int           `json:"max_context_width"`
	Consumers       int           `json:"consumers"`
	Cycles          uint64        `json:"cycles"`
	CoalescedTicks  uint64        `json:"coalesced_ticks"`
	Interval        time.Duration `json:"interval"`
	Incremental     bool          `json:"incremental"`
	Offset          int64         `json:"offset"`
	LastAction      source.Action `json:"last_action,omitempty"`
	LastCheckedAt   time.Time     `json:"last_checked_at"`
	LastPublishedAt time.Time     `json:"last_published_at"`
	LastError       string        `json:"last_error,omitempty"`
}

// Status returns the current status of the worker.
func (w *Worker) Status() Status {
	snapshot := w.CurrentSnapshot()
	status := Status{
		Name:            w.name,
		Worker:          w.ThreadName(),
		Location:        w.source.Location(),
		State:           w.State().String(),
		Version:         snapshot.Version,
		CreatedAt:       snapshot.CreatedAt,
		Relations:       snapshot.Dictionary.Len(),
		MaxContextWidth: snapshot.Dictionary.MaxContextWidth(),
		Consumers:       w.registry.Len(),
		Cycles:          w.cycles.Load(),
		CoalescedTicks:  w.coalesced.Load(),
		Interval:        w.interval,
	}

	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	status.Incremental = w.committed.Incremental
	status.Offset = w.committed.Offset
	status.LastAction = w.committed.LastAction
	status.LastCheckedAt = w.lastCheckedAt
	status.LastPublishedAt = w.lastPublishedAt
	if w.lastErr != nil {
		status.LastError = w.lastErr.Error()
	}
	return status
}
