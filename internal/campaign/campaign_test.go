package campaign

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestStopReasonString(t *testing.T) {
	tests := []struct {
		name   string
		reason StopReason
		want   string
	}{
		{"time limit", TimeLimit(), "time limit reached"},
		{"test limit", TestLimit(), "test limit reached"},
		{"killed bare", Killed(""), "killed"},
		{"killed with detail", Killed("interrupt"), "killed (interrupt)"},
		{"crashed with detail", Crashed("nil deref"), "crashed (nil deref)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reason.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGasTrackerRate(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		t1    time.Time
		g0    uint64
		g1    uint64
		want  float64
	}{
		{"two second delta", t0.Add(2 * time.Second), 100, 300, 100},
		{"one second delta", t0.Add(time.Second), 0, 42, 42},
		{"zero elapsed clamps", t0, 100, 500, 0},
		{"no gas consumed", t0.Add(time.Second), 100, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGasTracker(t0)
			g.TotalGas = tt.g0
			if got := g.Sample(tt.t1, tt.g1); got != tt.want {
				t.Errorf("Sample() = %v, want %v", got, tt.want)
			}
			if g.TotalGas != tt.g1 {
				t.Errorf("previous sample not overwritten: got %d, want %d", g.TotalGas, tt.g1)
			}
			if !g.LastUpdate.Equal(tt.t1) {
				t.Errorf("LastUpdate not overwritten")
			}
		})
	}
}

func TestGasTrackerSuccessiveSamples(t *testing.T) {
	t0 := time.Now()
	g := NewGasTracker(t0)

	if rate := g.Sample(t0.Add(time.Second), 1000); rate != 1000 {
		t.Fatalf("first sample rate = %v, want 1000", rate)
	}
	// Second sample is relative to the first, not to the start.
	if rate := g.Sample(t0.Add(3*time.Second), 1000); rate != 0 {
		t.Fatalf("idle sample rate = %v, want 0", rate)
	}
}

func TestWorkerStateSnapshotIsolation(t *testing.T) {
	ws := NewWorkerState(3, FuzzWorker)

	snap := ws.Snapshot()
	if snap.WorkerID != 3 || snap.Calls != 0 || snap.Stopped {
		t.Fatalf("unexpected initial snapshot: %+v", snap)
	}

	ws.Publish(10, 21000)
	after := ws.Snapshot()
	if after.Calls != 10 || after.Gas != 21000 {
		t.Fatalf("publish not visible: %+v", after)
	}
	// Earlier snapshot is a copy, unaffected by the write.
	if snap.Calls != 0 {
		t.Fatalf("old snapshot mutated: %+v", snap)
	}
}

func TestWorkerStateConcurrentReaders(t *testing.T) {
	ws := NewWorkerState(0, FuzzWorker)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := ws.Snapshot()
				// Gas is always published alongside calls, so a torn
				// read would show gas lagging calls.
				if snap.Gas != snap.Calls*100 {
					t.Errorf("torn snapshot: calls=%d gas=%d", snap.Calls, snap.Gas)
					return
				}
			}
		}()
	}

	for i := uint64(1); i <= 5000; i++ {
		ws.Publish(i, i*100)
	}
	close(stop)
	wg.Wait()
}

func TestWorkerStateFinish(t *testing.T) {
	ws := NewWorkerState(1, SymbolicWorker)
	ws.Finish(500, 12345, TestLimit())

	snap := ws.Snapshot()
	if !snap.Stopped {
		t.Fatal("snapshot not marked stopped")
	}
	if snap.Stop == nil || snap.Stop.Kind != StopTestLimit {
		t.Fatalf("stop reason not recorded: %+v", snap.Stop)
	}
	if snap.Calls != 500 || snap.Gas != 12345 {
		t.Fatalf("final progress lost: %+v", snap)
	}
}

func TestWorkerStateReapChildren(t *testing.T) {
	ws := NewWorkerState(0, FuzzWorker)

	var reaped int
	var mu sync.Mutex
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			<-ctx.Done()
			mu.Lock()
			reaped++
			mu.Unlock()
			close(done)
		}()
		ws.AdoptChild(cancel, done)
	}

	ws.ReapChildren()

	mu.Lock()
	defer mu.Unlock()
	if reaped != 3 {
		t.Fatalf("reaped %d children, want 3", reaped)
	}
}

func TestMergeResults(t *testing.T) {
	w0 := []TestResult{
		{Name: "prop_balance", Kind: PropertyTest, Status: TestPassed},
		{Name: "opt_deposit", Kind: OptimizationTest, Status: TestOpen, Value: 10},
	}
	w1 := []TestResult{
		{Name: "prop_balance", Kind: PropertyTest, Status: TestFalsified, SeqLen: 4},
		{Name: "opt_deposit", Kind: OptimizationTest, Status: TestOpen, Value: 42},
		{Name: "prop_owner", Kind: PropertyTest, Status: TestPassed},
	}

	merged := MergeResults(w0, w1)
	if len(merged) != 3 {
		t.Fatalf("merged %d results, want 3", len(merged))
	}
	if merged[0].Name != "prop_balance" || merged[0].Status != TestFalsified || merged[0].SeqLen != 4 {
		t.Errorf("falsified did not win: %+v", merged[0])
	}
	if merged[1].Value != 42 {
		t.Errorf("best optimization value did not win: %+v", merged[1])
	}
	if merged[2].Name != "prop_owner" {
		t.Errorf("new test not appended: %+v", merged[2])
	}
}

func TestEventStringToleratesMissingPayload(t *testing.T) {
	// External producers can feed the bus malformed pass-through events;
	// rendering them must degrade, never panic.
	events := []Event{
		{Kind: EventWorkerStopped, WorkerID: 1},
		{Kind: EventNewCoverage, WorkerID: 2},
		{Kind: EventTestFalsified, WorkerID: 3},
		{Kind: EventTestOptimized, WorkerID: 4},
	}
	for _, ev := range events {
		if s := ev.String(); s == "" {
			t.Errorf("kind %s rendered empty", ev.Kind)
		}
	}
}
