// Package pool implements the worker supervisor: it spawns one
// goroutine per configured worker, runs the fuzzing engine in each
// under the campaign deadline, records a StopReason when the worker
// ends, and guarantees every worker and its helper goroutines are
// reclaimed on shutdown. No worker failure ever propagates to its
// siblings or to the supervisor.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/s22625/fuzzmon/internal/bus"
	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/corpus"
	"github.com/s22625/fuzzmon/internal/engine"
	"github.com/s22625/fuzzmon/internal/env"
)

// Assignment is one worker's share of the campaign.
type Assignment struct {
	WorkerID int
	Worker   campaign.WorkerType
	Slice    []corpus.Entry
	Budget   int
}

// Assignments partitions the corpus and the test budget across the
// configured worker slots. Fuzz workers receive contiguous corpus
// chunks; the symbolic worker always receives the full initial corpus.
func Assignments(entries []corpus.Entry, sh *env.SharedEnv) []Assignment {
	cfg := sh.Cfg
	slices := Partition(entries, cfg.FuzzWorkers, cfg.Workers)
	budget := SplitBudget(cfg.TestLimit, cfg.FuzzWorkers)

	assignments := make([]Assignment, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		a := Assignment{WorkerID: i, Worker: campaign.FuzzWorker, Slice: slices[i], Budget: budget}
		if i >= cfg.FuzzWorkers {
			a.Worker = campaign.SymbolicWorker
			a.Slice = entries
		}
		assignments[i] = a
	}
	return assignments
}

// Supervisor owns the worker goroutines for one campaign.
type Supervisor struct {
	env    *env.SharedEnv
	eng    engine.Engine
	bus    *bus.Bus
	target engine.Target

	tomb   tomb.Tomb
	cancel context.CancelFunc
}

// New creates a supervisor. Start must be called to spawn workers.
func New(sh *env.SharedEnv, eng engine.Engine, b *bus.Bus) *Supervisor {
	return &Supervisor{
		env:    sh,
		eng:    eng,
		bus:    b,
		target: engine.Target{Contract: sh.Cfg.Contract},
	}
}

// Start spawns one goroutine per assignment. The per-worker deadline is
// absolute wall-clock from this moment; a zero timeout means none.
func (s *Supervisor) Start(assignments []Assignment) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	var deadline time.Time
	if timeout := s.env.Cfg.Timeout(); timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	// Test events from workers fold into the shared result table so
	// the ticker samples a current view.
	s.bus.Register("results", s.env.ApplyEvent)

	s.bus.Publish(campaign.NewCampaignStartedEvent(len(assignments)))

	for _, a := range assignments {
		a := a
		s.tomb.Go(func() error {
			s.runWorker(ctx, a, deadline)
			return nil
		})
	}
}

// Wait blocks until every worker goroutine has returned.
func (s *Supervisor) Wait() {
	// Workers never return errors; failures are recorded as StopReasons.
	_ = s.tomb.Wait()
}

// Stop cancels every worker and its registered child goroutines and
// blocks until all of them are reclaimed. Safe to call more than once,
// and a no-op after natural completion.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.tomb.Kill(nil)
	s.Wait()
}

// runWorker executes one worker from spawn to WorkerStopped. Whatever
// happens inside the engine, it finishes the state slot, reaps child
// goroutines and emits exactly one stop event.
func (s *Supervisor) runWorker(ctx context.Context, a Assignment, deadline time.Time) {
	ws := s.env.Workers()[a.WorkerID]
	defer ws.ReapChildren()

	wctx := ctx
	if !deadline.IsZero() {
		var cancel context.CancelFunc
		wctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	reason, final := s.invoke(wctx, a, ws)
	ws.Finish(final.Calls, final.Gas, reason)
	s.env.MergeResults(final.Results)
	s.bus.Publish(campaign.NewWorkerStoppedEvent(a.WorkerID, a.Worker, reason))
}

// invoke runs the engine and classifies its outcome. A panic inside the
// engine becomes Crashed; it never escapes.
func (s *Supervisor) invoke(ctx context.Context, a Assignment, ws *campaign.WorkerState) (reason campaign.StopReason, final engine.FinalState) {
	defer func() {
		if r := recover(); r != nil {
			reason = campaign.Crashed(fmt.Sprintf("%v\n%s", r, debug.Stack()))
			final = engine.FinalState{}
			snap := ws.Snapshot()
			final.Calls, final.Gas = snap.Calls, snap.Gas
		}
	}()

	params := engine.Params{
		Worker:   a.Worker,
		WorkerID: a.WorkerID,
		Sink:     ws.Publish,
		Emit:     s.bus.Publish,
		Adopt:    ws.AdoptChild,
		Exec:     s.env.Exec,
		Dict:     s.env.Dict,
		Slice:    a.Slice,
		Budget:   a.Budget,
		Target:   s.target,
	}

	engineReason, final, err := s.eng.Fuzz(ctx, params)
	switch {
	case err == nil:
		return engineReason, final
	case errors.Is(err, context.DeadlineExceeded):
		return campaign.TimeLimit(), final
	case errors.Is(err, context.Canceled):
		return campaign.Killed("interrupted"), final
	default:
		return campaign.Crashed(err.Error()), final
	}
}
