package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/at-ishikawa/dynsyn/internal/config"
	"github.com/at-ishikawa/dynsyn/internal/source"
	"github.com/at-ishikawa/dynsyn/internal/statestore"
	"github.com/at-ishikawa/dynsyn/internal/synonym"
	"github.com/at-ishikawa/dynsyn/internal/transport"
)

// Manager owns the workers of all configured sources.
type Manager struct {
	workers []*Worker
	byName  map[string]*Worker
}

// NewManager returns a manager for workers. Worker names must be unique.
func NewManager(workers ...*Worker) (*Manager, error) {
	m := &Manager{byName: make(map[string]*Worker, len(workers))}
	for _, w := range workers {
		if _, ok := m.byName[w.Name()]; ok {
			return nil, fmt.Errorf("duplicate synonym source %q", w.Name())
		}
		m.byName[w.Name()] = w
		m.workers = append(m.workers, w)
	}
	return m, nil
}

// NewManagerFromConfig creates one worker per configured source.
// A nil httpClient selects a transport shared by all remote sources.
func NewManagerFromConfig(cfg *config.Config, httpClient *http.Client, repository statestore.Repository) (*Manager, error) {
	if httpClient == nil {
		opts := transport.DefaultOptions()
		opts.ConnectTimeout = cfg.HTTP.ConnectTimeout
		client, err := transport.NewClient(opts)
		if err != nil {
			return nil, fmt.Errorf("transport.NewClient() > %w", err)
		}
		httpClient = client
	}

	workers := make([]*Worker, 0, len(cfg.Synonyms))
	for _, sc := range cfg.Synonyms {
		w, err := NewWorkerFromConfig(sc, cfg.HTTP, httpClient, repository)
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return NewManager(workers...)
}

// NewWorkerFromConfig creates the worker of one configured source.
func NewWorkerFromConfig(sc config.SynonymConfig, hc config.HTTPConfig, httpClient *http.Client, repository statestore.Repository) (*Worker, error) {
	format, err := synonym.ParseFormat(sc.Format)
	if err != nil {
		return nil, fmt.Errorf("synonym.ParseFormat(%s) > %w", sc.Name, err)
	}

	var src source.Source
	if sc.IsRemote() {
		src, err = source.NewRemote(sc.SynonymsPath, httpClient, source.RemoteOptions{
			Format:        format,
			Incremental:   sc.Incremental,
			Callback:      sc.Callback,
			ProbeTimeout:  hc.ProbeTimeout,
			FetchTimeout:  hc.FetchTimeout,
			RetryAttempts: hc.RetryAttempts,
			RetryDelay:    hc.RetryDelay,
			UserAgent:     hc.UserAgent,
		})
	} else {
		src, err = source.NewLocal(sc.SynonymsPath, format)
	}
	if err != nil {
		return nil, fmt.Errorf("create source %s > %w", sc.Name, err)
	}

	return NewWorker(sc.Name, src, WorkerOptions{
		Interval: sc.Interval,
		Dictionary: synonym.Options{
			Expand:     sc.ShouldExpand(),
			Lenient:    sc.Lenient,
			IgnoreCase: sc.IgnoreCase,
		},
		Repository: repository,
	}), nil
}

// Worker returns the worker of the named source.
func (m *Manager) Worker(name string) (*Worker, bool) {
	w, ok := m.byName[name]
	return w, ok
}

// Workers returns all workers sorted by name.
func (m *Manager) Workers() []*Worker {
	workers := append([]*Worker(nil), m.workers...)
	sort.Slice(workers, func(i, j int) bool {
		return workers[i].Name() < workers[j].Name()
	})
	return workers
}

// Init loads every source once, concurrently. Failed sources keep an empty
// dictionary and are retried on their next tick.
func (m *Manager) Init(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(m.workers))
	for i, w := range m.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Init(ctx); err != nil {
				errs[i] = fmt.Errorf("%s > %w", w.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Start starts the scheduling loop of every worker.
func (m *Manager) Start(ctx context.Context) {
	for _, w := range m.workers {
		w.Start(ctx)
	}
	slog.Default().Info("started synonym workers", "count", len(m.workers))
}

// Stop stops every worker and releases their sources.
func (m *Manager) Stop() error {
	var wg sync.WaitGroup
	for _, w := range m.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop()
		}()
	}
	wg.Wait()

	var errs []error
	for _, w := range m.workers {
		if closer, ok := w.Source().(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close source %s > %w", w.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
