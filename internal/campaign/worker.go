package campaign

import (
	"context"
	"sync"
	"sync/atomic"
)

// WorkerType distinguishes ordinary fuzzing workers from the symbolic
// execution worker, which always receives the full initial corpus.
type WorkerType int

const (
	FuzzWorker WorkerType = iota
	SymbolicWorker
)

// String returns the display name of the worker type.
func (t WorkerType) String() string {
	switch t {
	case SymbolicWorker:
		return "symbolic"
	default:
		return "fuzz"
	}
}

// Snapshot is an immutable copy of a worker's progress at one point in
// time. Readers always observe a complete snapshot, never a partial
// update.
type Snapshot struct {
	WorkerID int
	Worker   WorkerType
	Calls    uint64
	Gas      uint64
	Stopped  bool
	Stop     *StopReason
}

// WorkerState is the per-worker progress cell. The owning worker is the
// only writer; the ticker, the reporter and the UI read it concurrently.
// Writes swap an immutable snapshot pointer so readers never block the
// writer.
//
// A worker that spawns helper goroutines must register them here so the
// supervisor can reclaim them on shutdown.
type WorkerState struct {
	id  int
	typ WorkerType

	snap atomic.Pointer[Snapshot]

	mu       sync.Mutex
	children []child
}

type child struct {
	cancel context.CancelFunc
	done   <-chan struct{}
}

// NewWorkerState creates a state cell holding an empty snapshot for the
// given worker slot.
func NewWorkerState(id int, typ WorkerType) *WorkerState {
	s := &WorkerState{id: id, typ: typ}
	s.snap.Store(&Snapshot{WorkerID: id, Worker: typ})
	return s
}

// ID returns the worker slot index.
func (s *WorkerState) ID() int { return s.id }

// Type returns the worker type of this slot.
func (s *WorkerState) Type() WorkerType { return s.typ }

// Publish records cumulative progress. Called by the owning worker only.
func (s *WorkerState) Publish(calls, gas uint64) {
	s.snap.Store(&Snapshot{
		WorkerID: s.id,
		Worker:   s.typ,
		Calls:    calls,
		Gas:      gas,
	})
}

// Finish records the terminal snapshot, carrying the final progress and
// the stop reason. Called exactly once, by the owning worker.
func (s *WorkerState) Finish(calls, gas uint64, reason StopReason) {
	s.snap.Store(&Snapshot{
		WorkerID: s.id,
		Worker:   s.typ,
		Calls:    calls,
		Gas:      gas,
		Stopped:  true,
		Stop:     &reason,
	})
}

// Snapshot returns a copy of the current progress.
func (s *WorkerState) Snapshot() Snapshot {
	return *s.snap.Load()
}

// AdoptChild registers a goroutine spawned by this worker. cancel asks
// the child to stop; done must close when it has. An unregistered child
// is a leak the supervisor cannot reclaim.
func (s *WorkerState) AdoptChild(cancel context.CancelFunc, done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.children = append(s.children, child{cancel: cancel, done: done})
}

// ReapChildren cancels every registered child goroutine and waits for
// all of them to finish.
func (s *WorkerState) ReapChildren() {
	s.mu.Lock()
	children := s.children
	s.children = nil
	s.mu.Unlock()

	for _, c := range children {
		c.cancel()
	}
	for _, c := range children {
		<-c.done
	}
}
