// Package engine defines the contract between the orchestrator and the
// fuzzing engine that executes call sequences. The orchestrator never
// looks inside an engine; it only supplies inputs, collects progress
// through the sink, and interprets the returned stop reason.
package engine

import (
	"context"

	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/corpus"
)

// ExecContext is the read-only execution environment shared by every
// worker: the deployed target contracts and the campaign seed. Workers
// must treat it as immutable.
type ExecContext struct {
	Contracts []string
	Seed      int64
}

// Dictionary holds generation constants mined from the target source,
// shared read-only across workers.
type Dictionary struct {
	Words []string
}

// Target selects which contract's tests the campaign runs against. An
// empty Contract means all of them.
type Target struct {
	Contract string
}

// ProgressSink receives cumulative progress on every internal step.
// Implementations must be cheap and non-blocking for the caller.
type ProgressSink func(calls, gas uint64)

// EmitFunc publishes a campaign event onto the bus.
type EmitFunc func(campaign.Event)

// AdoptFunc registers a helper goroutine spawned by the engine with its
// worker's state slot, so the supervisor can reclaim it on shutdown.
// Engines that spawn goroutines and skip this leak them.
type AdoptFunc func(cancel context.CancelFunc, done <-chan struct{})

// Params carries one worker's inputs.
type Params struct {
	Worker   campaign.WorkerType
	WorkerID int
	Sink     ProgressSink
	Emit     EmitFunc
	Adopt    AdoptFunc
	Exec     *ExecContext
	Dict     *Dictionary
	Slice    []corpus.Entry
	Budget   int // Calls allotted to this worker; <= 0 means unlimited
	Target   Target
}

// FinalState is the engine's terminal report for one worker.
type FinalState struct {
	Calls   uint64
	Gas     uint64
	Results []campaign.TestResult
}

// Engine runs the fuzzing loop for a single worker. It must call
// p.Sink repeatedly during execution, honor ctx cancellation promptly,
// and return its own stop reason on normal completion. The error return
// is reserved for failures the engine could not classify itself.
type Engine interface {
	Fuzz(ctx context.Context, p Params) (campaign.StopReason, FinalState, error)
}
