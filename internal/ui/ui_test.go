package ui

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"
	"github.com/stretchr/testify/require"

	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/config"
	"github.com/s22625/fuzzmon/internal/env"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	m.Run()
}

func newTestModel(t *testing.T, workers, fuzzWorkers int) *Model {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.Default()
	cfg.Workers = workers
	cfg.FuzzWorkers = fuzzWorkers
	cfg.Contract = "Token"
	sh := env.New(cfg, nil, nil)

	m := New(ctx, sh)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestInitialStateOneSnapshotPerWorker(t *testing.T) {
	m := newTestModel(t, 4, 3)

	require.Len(t, m.workers, 4)
	for i, w := range m.workers {
		require.Equal(t, i, w.WorkerID)
		require.Zero(t, w.Calls)
		require.False(t, w.Stopped)
	}
	require.Equal(t, campaign.SymbolicWorker, m.workers[3].Worker)
	require.Equal(t, 4, m.alive)
	require.True(t, m.stoppedAt.IsZero())
}

func TestFocusFollowsVisibility(t *testing.T) {
	m := newTestModel(t, 2, 2)
	require.Equal(t, paneLog, m.focused)

	// Hiding the focused pane hands focus to the other visible pane.
	m.Update(keyMsg("l"))
	require.False(t, m.showLog)
	require.Equal(t, paneTests, m.focused)

	// Hiding the last visible pane leaves nothing focused.
	m.Update(keyMsg("t"))
	require.False(t, m.showTests)
	require.Equal(t, paneNone, m.focused)

	// Cycling with no visible panes stays unfocused.
	m.Update(keyMsg("tab"))
	require.Equal(t, paneNone, m.focused)

	// Re-showing a pane and cycling lands on it.
	m.Update(keyMsg("t"))
	m.Update(keyMsg("tab"))
	require.Equal(t, paneTests, m.focused)
}

func TestCycleFocusSkipsHiddenPane(t *testing.T) {
	m := newTestModel(t, 2, 2)
	m.focused = paneTests

	m.Update(keyMsg("l")) // hide log
	for range 3 {
		m.Update(keyMsg("tab"))
		require.Equal(t, paneTests, m.focused)
	}
}

func TestWorkerStoppedCountsDownOnce(t *testing.T) {
	m := newTestModel(t, 2, 2)

	stop := campaign.TestLimit()
	m.Update(eventMsg(campaign.NewWorkerStoppedEvent(0, campaign.FuzzWorker, stop)))
	require.Equal(t, 1, m.alive)
	require.True(t, m.stoppedAt.IsZero())

	m.Update(eventMsg(campaign.NewWorkerStoppedEvent(1, campaign.FuzzWorker, stop)))
	require.Equal(t, 0, m.alive)
	require.False(t, m.stoppedAt.IsZero())
	stoppedAt := m.stoppedAt

	// A duplicate stop event neither goes negative nor moves the stop time.
	m.Update(eventMsg(campaign.NewWorkerStoppedEvent(1, campaign.FuzzWorker, stop)))
	require.Equal(t, 0, m.alive)
	require.Equal(t, stoppedAt, m.stoppedAt)
}

func TestCoverageCountersAreMonotonic(t *testing.T) {
	m := newTestModel(t, 2, 2)

	m.Update(eventMsg(campaign.NewCoverageEvent(0, campaign.FuzzWorker, campaign.Coverage{
		Points: 10, Codehashes: 3, CorpusSize: 5,
	})))
	require.Equal(t, 10, m.cov.Points)
	require.Equal(t, 3, m.cov.Codehashes)
	require.Equal(t, 5, m.cov.CorpusSize)

	// A stale report never rolls points or codehashes back; corpus size
	// tracks the latest report.
	m.Update(eventMsg(campaign.NewCoverageEvent(1, campaign.FuzzWorker, campaign.Coverage{
		Points: 7, Codehashes: 2, CorpusSize: 9,
	})))
	require.Equal(t, 10, m.cov.Points)
	require.Equal(t, 3, m.cov.Codehashes)
	require.Equal(t, 9, m.cov.CorpusSize)
}

func TestSnapshotUpdatesTotals(t *testing.T) {
	m := newTestModel(t, 2, 2)

	at := m.sh.StartedAt.Add(time.Second)
	m.Update(snapshotMsg{
		at: at,
		workers: []campaign.Snapshot{
			{WorkerID: 0, Calls: 100, Gas: 50000},
			{WorkerID: 1, Calls: 200, Gas: 70000},
		},
	})
	require.Equal(t, uint64(300), m.totalCalls)
	require.Equal(t, uint64(120000), m.totalGas)
	require.InDelta(t, 120000.0, m.rate, 1.0)

	// A second sample with no progress reads a zero rate.
	m.Update(snapshotMsg{
		at: at.Add(time.Second),
		workers: []campaign.Snapshot{
			{WorkerID: 0, Calls: 100, Gas: 50000},
			{WorkerID: 1, Calls: 200, Gas: 70000},
		},
	})
	require.Zero(t, m.rate)
}

func TestEventLogIsBounded(t *testing.T) {
	m := newTestModel(t, 2, 2)

	for i := range maxLogLines + 50 {
		m.Update(eventMsg(campaign.NewNoteEvent(fmt.Sprintf("note %d", i))))
	}
	require.Len(t, m.logLines, maxLogLines)
	require.Contains(t, m.logLines[len(m.logLines)-1], fmt.Sprintf("note %d", maxLogLines+49))
}

func TestQuitKeyEmitsQuit(t *testing.T) {
	m := newTestModel(t, 2, 2)

	_, cmd := m.Update(keyMsg("q"))
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
	require.True(t, m.quitting)
}

func TestScrollKeysMoveFocusedPane(t *testing.T) {
	m := newTestModel(t, 2, 2)
	m.focused = paneLog
	for i := range 100 {
		m.appendLog(fmt.Sprintf("line %d", i))
	}
	m.recompute()
	m.logView.GotoTop()

	m.Update(keyMsg("j"))
	require.Equal(t, 1, m.logView.YOffset)

	m.Update(keyMsg("k"))
	require.Equal(t, 0, m.logView.YOffset)

	// An unfocused model ignores scroll keys.
	m.focused = paneNone
	m.Update(keyMsg("j"))
	require.Equal(t, 0, m.logView.YOffset)
}

func TestDialogOpensAndAnyKeyCloses(t *testing.T) {
	m := newTestModel(t, 2, 2)
	m.caches = env.FetchCaches{
		Contracts: map[string]string{"0xabc": "Token"},
		Slots:     map[string]string{"0xabc:0": "0x01"},
	}

	m.Update(keyMsg("c"))
	require.True(t, m.dialogOpen)
	view := m.View()
	require.Contains(t, view, "FETCH CACHES")
	require.Contains(t, view, "0xabc")

	m.Update(keyMsg("x"))
	require.False(t, m.dialogOpen)
}

func TestViewRendersHeaderAndPanes(t *testing.T) {
	m := newTestModel(t, 2, 2)
	m.results = []campaign.TestResult{
		{Name: "prop_balance", Kind: campaign.PropertyTest, Status: campaign.TestFalsified, SeqLen: 4},
		{Name: "opt_profit", Kind: campaign.OptimizationTest, Status: campaign.TestOpen, Value: 42},
	}
	m.recompute()

	view := m.View()
	require.Contains(t, view, "FUZZMON")
	require.Contains(t, view, "TESTS")
	require.Contains(t, view, "EVENTS")
	require.Contains(t, view, "prop_balance")
	require.Contains(t, view, "opt_profit")
	require.Contains(t, view, "w0")
}

func TestHiddenPaneIsNotRendered(t *testing.T) {
	m := newTestModel(t, 2, 2)
	m.Update(keyMsg("t"))

	view := m.View()
	require.NotContains(t, view, "TESTS")
	require.Contains(t, view, "EVENTS")
}

func TestSamplerDeliversAndCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Default()
	sh := env.New(cfg, nil, nil)
	ch := startSampler(ctx, sh, time.Millisecond)

	require.Equal(t, notifyCapacity, cap(ch))

	select {
	case msg := <-ch:
		require.Len(t, msg.workers, cfg.Workers)
	case <-time.After(time.Second):
		t.Fatal("no sample delivered")
	}

	cancel()
	require.Eventually(t, func() bool {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return true
				}
			default:
				return false
			}
		}
	}, time.Second, 5*time.Millisecond, "channel should close after cancel")
}

func TestThumbBounds(t *testing.T) {
	tests := []struct {
		name       string
		total      int
		height     int
		offset     int
		wantStart  int
		wantHeight int
	}{
		{"content fits", 5, 10, 0, 0, 10},
		{"top of long content", 100, 10, 0, 0, 1},
		{"bottom of long content", 100, 10, 90, 9, 1},
		{"empty", 0, 10, 0, 0, 0},
		{"zero height", 10, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, height := thumbBounds(tt.total, tt.height, tt.offset)
			require.Equal(t, tt.wantStart, start)
			require.Equal(t, tt.wantHeight, height)
		})
	}
}

func TestOffsetForRowRoundTrips(t *testing.T) {
	require.Equal(t, 0, offsetForRow(100, 10, 0))
	require.Equal(t, 90, offsetForRow(100, 10, 9))
	require.Equal(t, 0, offsetForRow(5, 10, 3), "content that fits never scrolls")

	mid := offsetForRow(100, 10, 5)
	require.Greater(t, mid, 0)
	require.Less(t, mid, 90)
}

func TestTruncateByDisplayWidth(t *testing.T) {
	require.Equal(t, "abc", truncate("abcdef", 3))
	require.Equal(t, "abcdef", truncate("abcdef", 10))
	require.Equal(t, "", truncate("abc", 0))
}

func TestLogFollowsTailWhenAtBottom(t *testing.T) {
	m := newTestModel(t, 2, 2)
	for i := range 100 {
		m.Update(eventMsg(campaign.NewNoteEvent(fmt.Sprintf("note %d", i))))
	}
	require.True(t, m.logView.AtBottom())
	require.Contains(t, m.logView.View(), "note 99")

	// Scrolled away from the tail, new events do not yank the view back.
	m.logView.GotoTop()
	m.Update(eventMsg(campaign.NewNoteEvent("note 100")))
	require.Equal(t, 0, m.logView.YOffset)
}

func TestEmptyStateMentionsNoTests(t *testing.T) {
	m := newTestModel(t, 2, 2)
	require.True(t, strings.Contains(m.testsContent(), "no tests"))
}

func TestMalformedEventDoesNotPanicDashboard(t *testing.T) {
	m := newTestModel(t, 2, 2)
	// Pass-through events from external producers can arrive with the
	// payload for their kind missing.
	for _, ev := range []campaign.Event{
		{Kind: campaign.EventNewCoverage, WorkerID: 1},
		{Kind: campaign.EventWorkerStopped, WorkerID: 1},
		{Kind: campaign.EventTestFalsified, WorkerID: 1},
	} {
		require.NotPanics(t, func() { m.Update(eventMsg(ev)) })
	}
	require.NotPanics(t, func() { m.View() })
}
