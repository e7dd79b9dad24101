// Package ui implements the interactive campaign dashboard. The model
// consumes two feeds: a bounded lossy snapshot channel sampled from the
// shared environment, and an ordered event tap registered on the
// campaign bus. Snapshot drops are harmless (a newer sample supersedes
// the dropped one); events are never dropped while the dashboard runs.
package ui

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/s22625/fuzzmon/internal/bus"
	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/env"
)

type pane int

const (
	paneNone pane = iota
	paneTests
	paneLog
)

// Zone IDs for mouse hit-testing.
const (
	zoneTests    = "pane-tests"
	zoneTestsBar = "bar-tests"
	zoneLog      = "pane-log"
	zoneLogBar   = "bar-log"
)

// maxLogLines bounds the event log kept in memory. Older lines are
// discarded; the full stream is still available on the wire feed.
const maxLogLines = 500

type eventMsg campaign.Event

// Model is the bubbletea model for the campaign dashboard.
type Model struct {
	sh     *env.SharedEnv
	keymap KeyMap
	styles Styles

	snapshots <-chan snapshotMsg
	events    chan campaign.Event
	done      chan struct{}
	doneOnce  sync.Once

	width  int
	height int

	now     time.Time
	workers []campaign.Snapshot
	results []campaign.TestResult
	caches  env.FetchCaches

	cov       campaign.Coverage
	alive     int
	stoppedAt time.Time

	totalCalls uint64
	totalGas   uint64
	gas        *campaign.GasTracker
	rate       float64

	logLines []string

	showTests  bool
	showLog    bool
	focused    pane
	dialogOpen bool
	quitting   bool

	testsView viewport.Model
	logView   viewport.Model
}

// New creates a dashboard model and starts its snapshot sampler. The
// sampler stops when ctx is canceled.
func New(ctx context.Context, sh *env.SharedEnv) *Model {
	m := &Model{
		sh:        sh,
		keymap:    DefaultKeyMap(),
		styles:    DefaultStyles(),
		events:    make(chan campaign.Event, 256),
		done:      make(chan struct{}),
		now:       sh.StartedAt,
		workers:   sh.Sample(),
		alive:     sh.Cfg.Workers,
		gas:       campaign.NewGasTracker(sh.StartedAt),
		showTests: true,
		showLog:   true,
		focused:   paneLog,
		testsView: viewport.New(80, 8),
		logView:   viewport.New(80, 8),
	}
	m.snapshots = startSampler(ctx, sh, sh.Cfg.SampleInterval())
	return m
}

// Listen registers the dashboard's event tap on the bus. Delivery blocks
// while the dashboard runs and is discarded once it has quit, so a dead
// dashboard never stalls the bus drain.
func (m *Model) Listen(b *bus.Bus) *bus.Listener {
	return b.Register("ui", func(ev campaign.Event) {
		select {
		case m.events <- ev:
		case <-m.done:
		}
	})
}

// Run starts the bubbletea program and blocks until the user quits or
// ctx is canceled. Cancellation is a clean exit, not an error.
func (m *Model) Run(ctx context.Context) error {
	zone.NewGlobal()
	program := tea.NewProgram(m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := program.Run()
	m.closeDone()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil) {
		return nil
	}
	return err
}

func (m *Model) closeDone() {
	m.doneOnce.Do(func() { close(m.done) })
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitSnapshot(), m.waitEvent())
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recompute()
		return m, nil
	case snapshotMsg:
		m.now = msg.at
		m.workers = msg.workers
		m.results = msg.results
		m.caches = msg.caches
		var calls, gas uint64
		for _, w := range msg.workers {
			calls += w.Calls
			gas += w.Gas
		}
		m.totalCalls = calls
		m.totalGas = gas
		m.rate = m.gas.Sample(msg.at, gas)
		m.recompute()
		return m, m.waitSnapshot()
	case eventMsg:
		atBottom := m.logView.AtBottom()
		m.applyEvent(campaign.Event(msg))
		m.recompute()
		if atBottom {
			m.logView.GotoBottom()
		}
		return m, m.waitEvent()
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.MouseMsg:
		return m.handleMouse(msg)
	default:
		return m, nil
	}
}

// applyEvent folds one bus event into the dashboard counters. Coverage
// point and codehash counters only move forward; corpus size tracks the
// latest report. The alive counter hits zero at most once and pins the
// campaign stop time when it does.
func (m *Model) applyEvent(ev campaign.Event) {
	m.appendLog(ev.String())
	switch ev.Kind {
	case campaign.EventNewCoverage:
		if ev.Coverage == nil {
			return
		}
		if ev.Coverage.Points > m.cov.Points {
			m.cov.Points = ev.Coverage.Points
		}
		if ev.Coverage.Codehashes > m.cov.Codehashes {
			m.cov.Codehashes = ev.Coverage.Codehashes
		}
		m.cov.CorpusSize = ev.Coverage.CorpusSize
	case campaign.EventWorkerStopped:
		if m.alive > 0 {
			m.alive--
			if m.alive == 0 && m.stoppedAt.IsZero() {
				m.stoppedAt = ev.Time
			}
		}
	}
}

func (m *Model) appendLog(line string) {
	m.logLines = append(m.logLines, line)
	if len(m.logLines) > maxLogLines {
		m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if m.keymap.isQuit(key) {
		return m.quit()
	}
	if m.dialogOpen {
		// Any key dismisses the caches dialog
		m.dialogOpen = false
		return m, nil
	}

	switch key {
	case m.keymap.ToggleTests:
		m.togglePane(paneTests)
	case m.keymap.ToggleLog:
		m.togglePane(paneLog)
	case m.keymap.CycleFocus:
		m.cycleFocus()
	case m.keymap.Caches:
		m.dialogOpen = true
	case m.keymap.Up, "k":
		if v := m.focusedView(); v != nil {
			v.LineUp(1)
		}
	case m.keymap.Down, "j":
		if v := m.focusedView(); v != nil {
			v.LineDown(1)
		}
	case m.keymap.PageUp:
		if v := m.focusedView(); v != nil {
			v.ViewUp()
		}
	case m.keymap.PageDown:
		if v := m.focusedView(); v != nil {
			v.ViewDown()
		}
	case m.keymap.Top:
		if v := m.focusedView(); v != nil {
			v.GotoTop()
		}
	case m.keymap.Bottom:
		if v := m.focusedView(); v != nil {
			v.GotoBottom()
		}
	}
	m.recompute()
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		lines := 3
		var v *viewport.Model
		switch {
		case inZone(zoneTests, msg) || inZone(zoneTestsBar, msg):
			v = &m.testsView
		case inZone(zoneLog, msg) || inZone(zoneLogBar, msg):
			v = &m.logView
		}
		if v == nil {
			return m, nil
		}
		if msg.Button == tea.MouseButtonWheelUp {
			v.LineUp(lines)
		} else {
			v.LineDown(lines)
		}
		return m, nil
	case tea.MouseButtonLeft:
		if msg.Action != tea.MouseActionPress && msg.Action != tea.MouseActionMotion {
			return m, nil
		}
		if z := zone.Get(zoneTestsBar); z != nil && z.InBounds(msg) {
			m.focused = paneTests
			m.testsView.SetYOffset(offsetForRow(m.testsView.TotalLineCount(), m.testsView.Height, msg.Y-z.StartY))
		} else if z := zone.Get(zoneLogBar); z != nil && z.InBounds(msg) {
			m.focused = paneLog
			m.logView.SetYOffset(offsetForRow(m.logView.TotalLineCount(), m.logView.Height, msg.Y-z.StartY))
		}
		return m, nil
	}
	return m, nil
}

func inZone(id string, msg tea.MouseMsg) bool {
	z := zone.Get(id)
	return z != nil && z.InBounds(msg)
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.closeDone()
	return m, tea.Quit
}

// togglePane flips a pane's visibility. A focused pane that disappears
// hands focus to the other visible pane, or to none.
func (m *Model) togglePane(p pane) {
	switch p {
	case paneTests:
		m.showTests = !m.showTests
	case paneLog:
		m.showLog = !m.showLog
	}
	if m.focused != paneNone && !m.paneVisible(m.focused) {
		m.focused = m.firstVisible()
	}
}

func (m *Model) paneVisible(p pane) bool {
	switch p {
	case paneTests:
		return m.showTests
	case paneLog:
		return m.showLog
	default:
		return false
	}
}

func (m *Model) firstVisible() pane {
	if m.showTests {
		return paneTests
	}
	if m.showLog {
		return paneLog
	}
	return paneNone
}

// cycleFocus moves focus to the next visible pane. Focus never lands on
// a hidden pane.
func (m *Model) cycleFocus() {
	var vis []pane
	for _, p := range []pane{paneTests, paneLog} {
		if m.paneVisible(p) {
			vis = append(vis, p)
		}
	}
	if len(vis) == 0 {
		m.focused = paneNone
		return
	}
	next := 0
	for i, p := range vis {
		if p == m.focused {
			next = (i + 1) % len(vis)
		}
	}
	m.focused = vis[next]
}

func (m *Model) focusedView() *viewport.Model {
	switch m.focused {
	case paneTests:
		return &m.testsView
	case paneLog:
		return &m.logView
	default:
		return nil
	}
}

func (m *Model) waitSnapshot() tea.Cmd {
	return func() tea.Msg {
		select {
		case s, ok := <-m.snapshots:
			if !ok {
				return nil
			}
			return s
		case <-m.done:
			return nil
		}
	}
}

func (m *Model) waitEvent() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-m.events:
			return eventMsg(ev)
		case <-m.done:
			return nil
		}
	}
}
