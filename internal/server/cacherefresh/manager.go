package cacherefresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/dmitrijs2005/debtorkeeper/internal/logging"
)

// FullScope is the scope key of the unfiltered result set.
const FullScope = "debtors:full"

var (
	// ErrRefreshInFlight is returned when a refresh for the scope is already
	// running and the new trigger may not supersede it.
	ErrRefreshInFlight = errors.New("refresh already in flight for scope")

	// ErrSuperseded is returned by a refresh that was cancelled by a full
	// refresh before it could store its result.
	ErrSuperseded = errors.New("refresh superseded by full refresh")
)

// FetchFunc loads the IDs of the records that belong to a scope.
type FetchFunc func(ctx context.Context) ([]string, error)

// Options sizes the underlying sturdyc client.
type Options struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
}

// DefaultOptions returns sizing for a single-node deployment.
func DefaultOptions() Options {
	return Options{
		Capacity:           10000,
		NumShards:          10,
		TTL:                30 * time.Minute,
		EvictionPercentage: 10,
	}
}

type run struct {
	kind       Kind
	gen        uint64
	cancel     context.CancelFunc
	superseded bool
}

// Manager keeps search results per scope as lists of record IDs; decrypted
// values are never cached. At most one refresh runs per scope. A KindFull
// trigger cancels every in-flight scheduled or filtered refresh; any other
// trigger arriving while its scope is busy gets ErrRefreshInFlight.
// InvalidateAll bumps a generation; a refresh that started under an older
// generation returns its IDs but does not store them.
type Manager struct {
	store *sturdyc.Client[[]string]
	log   logging.Logger

	mu       sync.Mutex
	gen      uint64
	inflight map[string]*run
}

func NewManager(opts Options, log logging.Logger) *Manager {
	if opts.NumShards <= 0 {
		opts.NumShards = 1
	}
	if opts.Capacity < opts.NumShards {
		opts.Capacity = opts.NumShards
	}
	if opts.EvictionPercentage <= 0 {
		opts.EvictionPercentage = 10
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Manager{
		store:    sturdyc.New[[]string](opts.Capacity, opts.NumShards, opts.TTL, opts.EvictionPercentage),
		log:      log.With("component", "cacherefresh"),
		inflight: make(map[string]*run),
	}
}

// Refresh runs fetch for scope as described by trigger and stores the IDs
// it returns. Contexts with IsFullRefresh drop every cached scope first.
func (m *Manager) Refresh(ctx context.Context, trigger Context, scope string, fetch FetchFunc) ([]string, error) {
	r, runCtx, err := m.begin(ctx, trigger, scope)
	if err != nil {
		refreshTotal.WithLabelValues(trigger.Kind().String(), outcomeSkipped).Inc()
		m.log.Info(ctx, "refresh skipped", append(trigger.LogAttrs(), "scope", scope)...)
		return nil, err
	}
	defer m.finish(scope, r)

	m.log.Info(ctx, "refresh started", append(trigger.LogAttrs(), "scope", scope)...)
	started := time.Now()

	ids, err := fetch(runCtx)

	m.mu.Lock()
	superseded := r.superseded
	stale := r.gen != m.gen
	if err == nil && !superseded && !stale {
		m.store.Set(scope, append([]string(nil), ids...))
	}
	m.mu.Unlock()

	if superseded {
		refreshTotal.WithLabelValues(trigger.Kind().String(), outcomeSuperseded).Inc()
		m.log.Info(ctx, "refresh superseded", "scope", scope, "kind", trigger.Kind().String())
		return nil, ErrSuperseded
	}
	if err != nil {
		refreshTotal.WithLabelValues(trigger.Kind().String(), outcomeError).Inc()
		return nil, fmt.Errorf("refresh %s: %w", scope, err)
	}

	if stale {
		refreshTotal.WithLabelValues(trigger.Kind().String(), outcomeStale).Inc()
		m.log.Info(ctx, "refresh result not stored, cache invalidated meanwhile", "scope", scope, "kind", trigger.Kind().String())
		return ids, nil
	}

	refreshTotal.WithLabelValues(trigger.Kind().String(), outcomeOK).Inc()
	refreshDuration.WithLabelValues(trigger.Kind().String()).Observe(time.Since(started).Seconds())

	m.log.Info(ctx, "refresh finished", "scope", scope, "kind", trigger.Kind().String(),
		"records", len(ids), "took", time.Since(started))
	return ids, nil
}

func (m *Manager) begin(ctx context.Context, trigger Context, scope string) (*run, context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.inflight[scope]; ok {
		if trigger.Kind() != KindFull || cur.kind == KindFull {
			return nil, nil, ErrRefreshInFlight
		}
	}

	if trigger.Kind() == KindFull {
		for s, cur := range m.inflight {
			if cur.kind == KindFull {
				continue
			}
			cur.superseded = true
			cur.cancel()
			delete(m.inflight, s)
		}
	}

	if trigger.IsFullRefresh() {
		for _, key := range m.store.ScanKeys() {
			m.store.Delete(key)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{kind: trigger.Kind(), gen: m.gen, cancel: cancel}
	m.inflight[scope] = r
	return r, runCtx, nil
}

func (m *Manager) finish(scope string, r *run) {
	r.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight[scope] == r {
		delete(m.inflight, scope)
	}
}

// Cached returns a copy of the IDs stored for scope.
func (m *Manager) Cached(scope string) ([]string, bool) {
	ids, ok := m.store.Get(scope)
	if !ok {
		cacheMissesTotal.Inc()
		return nil, false
	}
	cacheHitsTotal.Inc()
	return append([]string(nil), ids...), true
}

// InvalidateAll drops every cached scope. Refreshes already running finish
// normally but their results are not stored.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	for _, key := range m.store.ScanKeys() {
		m.store.Delete(key)
	}
}
