// Package env reifies the process-wide campaign environment: shared
// config, the per-worker state slots, the aggregated test results and
// the externally fetched chain caches. One SharedEnv is created at
// startup and passed by reference into every component constructor;
// there is no ambient global state.
package env

import (
	"sync"
	"time"

	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/config"
	"github.com/s22625/fuzzmon/internal/engine"
)

// FetchCaches holds the latest externally fetched contract and storage
// slot caches, used by the UI inspection dialog.
type FetchCaches struct {
	Contracts map[string]string
	Slots     map[string]string
}

// SharedEnv is the explicit handle shared by the supervisor, the
// reporters and the UI.
type SharedEnv struct {
	Cfg       *config.Config
	Exec      *engine.ExecContext
	Dict      *engine.Dictionary
	StartedAt time.Time

	workers []*campaign.WorkerState

	mu      sync.Mutex
	results []campaign.TestResult
	caches  FetchCaches
}

// New creates the shared environment and one state slot per configured
// worker. Slots beyond FuzzWorkers belong to symbolic workers.
func New(cfg *config.Config, exec *engine.ExecContext, dict *engine.Dictionary) *SharedEnv {
	workers := make([]*campaign.WorkerState, cfg.Workers)
	for i := range workers {
		typ := campaign.FuzzWorker
		if i >= cfg.FuzzWorkers {
			typ = campaign.SymbolicWorker
		}
		workers[i] = campaign.NewWorkerState(i, typ)
	}
	return &SharedEnv{
		Cfg:       cfg,
		Exec:      exec,
		Dict:      dict,
		StartedAt: time.Now(),
		workers:   workers,
	}
}

// Workers returns the per-worker state slots.
func (e *SharedEnv) Workers() []*campaign.WorkerState { return e.workers }

// Sample copies every worker's current snapshot. Snapshots are taken
// independently, so the aggregate is an approximation, never a torn
// per-worker read.
func (e *SharedEnv) Sample() []campaign.Snapshot {
	snaps := make([]campaign.Snapshot, len(e.workers))
	for i, w := range e.workers {
		snaps[i] = w.Snapshot()
	}
	return snaps
}

// TotalProgress sums calls and gas across all workers.
func (e *SharedEnv) TotalProgress() (calls, gas uint64) {
	for _, w := range e.workers {
		snap := w.Snapshot()
		calls += snap.Calls
		gas += snap.Gas
	}
	return calls, gas
}

// InitResults seeds the shared test result table.
func (e *SharedEnv) InitResults(results []campaign.TestResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = append([]campaign.TestResult(nil), results...)
}

// Results returns a copy of the current aggregate test results.
func (e *SharedEnv) Results() []campaign.TestResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]campaign.TestResult(nil), e.results...)
}

// MergeResults folds a worker's final result list into the table.
func (e *SharedEnv) MergeResults(results []campaign.TestResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.results = campaign.MergeResults(e.results, results)
}

// ApplyEvent folds a test event into the table. Other event kinds are
// ignored here; counters derived from them belong to the consumers.
func (e *SharedEnv) ApplyEvent(ev campaign.Event) {
	if ev.Test == nil {
		return
	}
	switch ev.Kind {
	case campaign.EventTestFalsified, campaign.EventTestOptimized:
		e.MergeResults([]campaign.TestResult{*ev.Test})
	}
}

// UpdateCaches replaces the fetch caches wholesale.
func (e *SharedEnv) UpdateCaches(c FetchCaches) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caches = c
}

// Caches returns the latest fetch caches.
func (e *SharedEnv) Caches() FetchCaches {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caches
}
