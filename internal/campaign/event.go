package campaign

import (
	"fmt"
	"time"
)

// EventKind represents the type of campaign event.
type EventKind int

const (
	EventCampaignStarted EventKind = iota
	EventWorkerStopped
	EventNewCoverage
	EventTestFalsified
	EventTestOptimized
	EventNote
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventCampaignStarted:
		return "campaign_started"
	case EventWorkerStopped:
		return "worker_stopped"
	case EventNewCoverage:
		return "new_coverage"
	case EventTestFalsified:
		return "test_falsified"
	case EventTestOptimized:
		return "test_optimized"
	case EventNote:
		return "note"
	default:
		return "unknown"
	}
}

// Coverage carries the counters attached to a NewCoverage event.
type Coverage struct {
	Points     int `json:"points"`
	Codehashes int `json:"codehashes"`
	CorpusSize int `json:"corpus_size"`
}

// Event is a single timestamped occurrence on the campaign bus. Exactly
// one payload field matching Kind is set; the rest are nil. Events are
// append-only and strictly ordered by emission time.
type Event struct {
	Time     time.Time   `json:"time"`
	Kind     EventKind   `json:"-"`
	WorkerID int         `json:"worker_id,omitempty"`
	Worker   WorkerType  `json:"-"`
	Stop     *StopReason `json:"-"`
	Coverage *Coverage   `json:"coverage,omitempty"`
	Test     *TestResult `json:"test,omitempty"`
	Note     string      `json:"note,omitempty"`
}

// NewCampaignStartedEvent creates the campaign start marker.
func NewCampaignStartedEvent(workers int) Event {
	return Event{
		Time: time.Now(),
		Kind: EventCampaignStarted,
		Note: fmt.Sprintf("campaign started with %d workers", workers),
	}
}

// NewWorkerStoppedEvent creates a worker termination event.
func NewWorkerStoppedEvent(workerID int, typ WorkerType, reason StopReason) Event {
	return Event{
		Time:     time.Now(),
		Kind:     EventWorkerStopped,
		WorkerID: workerID,
		Worker:   typ,
		Stop:     &reason,
	}
}

// NewCoverageEvent creates a coverage progress event.
func NewCoverageEvent(workerID int, typ WorkerType, cov Coverage) Event {
	return Event{
		Time:     time.Now(),
		Kind:     EventNewCoverage,
		WorkerID: workerID,
		Worker:   typ,
		Coverage: &cov,
	}
}

// NewTestFalsifiedEvent creates an event for a falsified property test.
func NewTestFalsifiedEvent(workerID int, typ WorkerType, test TestResult) Event {
	return Event{
		Time:     time.Now(),
		Kind:     EventTestFalsified,
		WorkerID: workerID,
		Worker:   typ,
		Test:     &test,
	}
}

// NewTestOptimizedEvent creates an event for an improved optimization value.
func NewTestOptimizedEvent(workerID int, typ WorkerType, test TestResult) Event {
	return Event{
		Time:     time.Now(),
		Kind:     EventTestOptimized,
		WorkerID: workerID,
		Worker:   typ,
		Test:     &test,
	}
}

// NewNoteEvent creates a free-form pass-through event.
func NewNoteEvent(note string) Event {
	return Event{Time: time.Now(), Kind: EventNote, Note: note}
}

// String renders the event as a single log line. A malformed event
// whose payload is missing for its kind renders a placeholder instead
// of panicking; events can come from external producers.
func (e Event) String() string {
	ts := e.Time.Format("15:04:05")
	switch e.Kind {
	case EventCampaignStarted:
		return fmt.Sprintf("[%s] %s", ts, e.Note)
	case EventWorkerStopped:
		if e.Stop == nil {
			return fmt.Sprintf("[%s] worker %d (%s) stopped", ts, e.WorkerID, e.Worker)
		}
		return fmt.Sprintf("[%s] worker %d (%s) stopped: %s", ts, e.WorkerID, e.Worker, e.Stop)
	case EventNewCoverage:
		if e.Coverage == nil {
			return fmt.Sprintf("[%s] worker %d: coverage", ts, e.WorkerID)
		}
		return fmt.Sprintf("[%s] worker %d: coverage %d points, %d codehashes, corpus %d",
			ts, e.WorkerID, e.Coverage.Points, e.Coverage.Codehashes, e.Coverage.CorpusSize)
	case EventTestFalsified:
		if e.Test == nil {
			return fmt.Sprintf("[%s] worker %d: test falsified", ts, e.WorkerID)
		}
		return fmt.Sprintf("[%s] worker %d: test %s falsified", ts, e.WorkerID, e.Test.Name)
	case EventTestOptimized:
		if e.Test == nil {
			return fmt.Sprintf("[%s] worker %d: test improved", ts, e.WorkerID)
		}
		return fmt.Sprintf("[%s] worker %d: test %s improved to %d", ts, e.WorkerID, e.Test.Name, e.Test.Value)
	case EventNote:
		return fmt.Sprintf("[%s] %s", ts, e.Note)
	default:
		return fmt.Sprintf("[%s] unknown event", ts)
	}
}
