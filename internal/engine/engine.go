// Package engine implements the memoized rule graph: rule identity,
// dependency recording, the persistent memo store lookup/store cycle,
// and the cooperative scheduler that dedups concurrent sub-rule
// invocations (spec §4.2, §4.3).
package engine

import (
	"sync"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/upcxx-project/nobs/internal/common"
	"github.com/upcxx-project/nobs/internal/store"
)

// Engine owns the memo store, the subprocess concurrency cap, and the
// in-flight/within-build dedup state. One Engine drives one build
// invocation (spec §4.3 "Scheduler").
type Engine struct {
	Store  *store.Store
	Logger *common.Logger
	Sem    *semaphore.Weighted

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]cacheEntry

	stats Stats
}

type cacheEntry struct {
	value any
	err   error
}

// Stats mirrors nocc's CxxLauncher counters: engine-wide subprocess
// count, total wall-clock milliseconds, and nonzero exits. They are read
// through Engine.Stats(); the CLI does not print them.
type Stats struct {
	mu                   sync.Mutex
	TotalCalls           int64
	TotalDurationMs      int64
	NonZeroExitCodeCount int64
}

func (s *Stats) record(durationMs int64, exitCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TotalCalls++
	s.TotalDurationMs += durationMs
	if exitCode != 0 {
		s.NonZeroExitCodeCount++
	}
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{TotalCalls: s.TotalCalls, TotalDurationMs: s.TotalDurationMs, NonZeroExitCodeCount: s.NonZeroExitCodeCount}
}

// New creates an Engine backed by st, logging through logger (may be
// nil), bounding concurrent external process launches to
// maxSubprocesses (spec §5 "Scheduling": "parallelism is confined to
// external subprocess execution").
func New(st *store.Store, logger *common.Logger, maxSubprocesses int64) *Engine {
	if maxSubprocesses <= 0 {
		maxSubprocesses = 1
	}
	return &Engine{
		Store:  st,
		Logger: logger,
		Sem:    semaphore.NewWeighted(maxSubprocesses),
		cache:  map[string]cacheEntry{},
	}
}

// Stats exposes the engine's running subprocess counters.
func (e *Engine) Stats() Stats { return e.stats.Snapshot() }

// Invoke evaluates a top-level rule (no parent context to record a
// dependency against) — the entry point used by cmd/nobs.
func (e *Engine) Invoke(r *Rule) (any, error) {
	return e.invoke(nil, r)
}

func (e *Engine) newContext(ruleKey string) *Context {
	return &Context{eng: e, ruleKey: ruleKey}
}

// invoke is the heart of spec §4.2/§4.3: every call funnels through the
// within-build cache (so a transient or memoized rule computed once
// during this build is never recomputed, spec §4.1/§5 "Deduplication"),
// and concurrent first-time callers join a single singleflight
// execution ("a second requester joins the existing task's
// completion", spec §4.3) — together these give at-most-one-concurrent-
// and at-most-one-total evaluation per rule identity within a build.
func (e *Engine) invoke(parent *Context, r *Rule) (any, error) {
	key := r.Key()

	e.mu.Lock()
	if ce, ok := e.cache[key]; ok {
		e.mu.Unlock()
		if parent != nil && ce.err == nil {
			parent.recordSubRule(key, ce.value)
		}
		return ce.value, ce.err
	}
	e.mu.Unlock()

	type outcome struct {
		value any
		err   error
	}

	raw, _, _ := e.group.Do(key, func() (res interface{}, _ error) {
		// Re-check and fill the cache inside the singleflight call, so a
		// caller arriving just after an earlier call finished finds the
		// result instead of starting a second evaluation.
		e.mu.Lock()
		if ce, ok := e.cache[key]; ok {
			e.mu.Unlock()
			return outcome{ce.value, ce.err}, nil
		}
		e.mu.Unlock()
		defer func() {
			oc, _ := res.(outcome)
			e.mu.Lock()
			e.cache[key] = cacheEntry{oc.value, oc.err}
			e.mu.Unlock()
		}()

		ctx := e.newContext(key)

		if !r.Memoized {
			v, err := r.Run(ctx)
			return outcome{v, err}, nil
		}

		digest, err := r.Probe(ctx)
		if err != nil {
			return outcome{nil, err}, nil
		}

		if artifact, ok := e.Store.Lookup(key, digest); ok {
			if e.Logger != nil {
				e.Logger.Info(1, "memo hit", key, digest)
			}
			v, derr := r.Decode(artifact)
			if derr == nil {
				return outcome{v, nil}, nil
			}
			// A stale or corrupt entry decodes to an error: fall through
			// and recompute rather than surface a decode failure to the
			// caller as if it were a build failure.
		}

		artifact, err := r.Execute(ctx)
		if err != nil {
			return outcome{nil, err}, nil
		}
		if serr := e.Store.Store(key, digest, artifact, ctx.record); serr != nil && e.Logger != nil {
			e.Logger.Warn("memo store write failed for", key, serr)
		}
		v, derr := r.Decode(artifact)
		return outcome{v, derr}, nil
	})

	oc := raw.(outcome)

	e.mu.Lock()
	e.cache[key] = cacheEntry{oc.value, oc.err}
	e.mu.Unlock()

	if parent != nil && oc.err == nil {
		parent.recordSubRule(key, oc.value)
	}
	return oc.value, oc.err
}
