package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"

	"github.com/s22625/fuzzmon/internal/campaign"
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "starting dashboard..."
	}

	sections := []string{m.renderHeader()}
	if m.dialogOpen {
		sections = append(sections, m.renderDialog())
	} else {
		if m.showTests {
			sections = append(sections, m.renderPane("TESTS", &m.testsView, paneTests, zoneTests, zoneTestsBar))
		}
		if m.showLog {
			sections = append(sections, m.renderPane("EVENTS", &m.logView, paneLog, zoneLog, zoneLogBar))
		}
	}
	sections = append(sections, m.renderHelp())
	return zone.Scan(strings.Join(sections, "\n"))
}

// recompute rebuilds pane sizes and contents from the current state.
// Called synchronously on every state change so View always renders the
// latest counters.
func (m *Model) recompute() {
	m.layout()
	m.testsView.SetContent(m.testsContent())
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
}

func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	headerH := lipgloss.Height(m.renderHeader())
	avail := m.height - headerH - 1
	visible := 0
	if m.showTests {
		visible++
	}
	if m.showLog {
		visible++
	}
	if visible == 0 || avail < 4 {
		return
	}

	// Per pane: two border rows plus the title row
	contentH := max(1, avail/visible-3)
	contentW := max(10, m.width-3)
	m.testsView.Width = contentW
	m.testsView.Height = contentH
	m.logView.Width = contentW
	m.logView.Height = contentH
}

func (m *Model) renderHeader() string {
	elapsed := m.elapsed()
	title := m.styles.Title.Render("FUZZMON")
	meta := fmt.Sprintf("contract %s  elapsed %s  workers %d/%d alive",
		m.sh.Cfg.Contract, formatElapsed(elapsed), m.alive, len(m.workers))
	if !m.stoppedAt.IsZero() {
		meta += "  " + m.styles.TestFalsified.Render("stopped")
	}

	lines := []string{title + "  " + m.styles.Muted.Render(meta)}
	for _, w := range m.workers {
		lines = append(lines, m.renderWorkerRow(w))
	}
	lines = append(lines, m.renderSummary())
	return m.styles.Header.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderWorkerRow(w campaign.Snapshot) string {
	status := m.styles.WorkerRunning.Render("running")
	if w.Stopped {
		status = m.styles.WorkerStopped.Render(w.Stop.Label())
		if w.Stop.Kind == campaign.StopCrashed {
			status = m.styles.WorkerCrashed.Render(w.Stop.Label())
		}
	}
	row := fmt.Sprintf(" w%-2d %-8s calls %-10d gas %-12d %s",
		w.WorkerID, w.Worker, w.Calls, w.Gas, status)
	return truncate(row, m.width)
}

func (m *Model) renderSummary() string {
	failed := 0
	for _, r := range m.results {
		if r.Failed() {
			failed++
		}
	}
	s := fmt.Sprintf("tests: %d/%d failed | calls: %d/%d | cov: %d pts, %d hashes | corpus: %d | gas/s: %.0f",
		failed, len(m.results), m.totalCalls, m.sh.Cfg.TestLimit,
		m.cov.Points, m.cov.Codehashes, m.cov.CorpusSize, m.rate)
	return truncate(s, m.width)
}

func (m *Model) renderPane(title string, vp *viewport.Model, p pane, zoneID, barID string) string {
	style := m.styles.Pane
	if m.focused == p {
		style = m.styles.PaneFocus
	}
	bar := m.renderScrollbar(vp.TotalLineCount(), vp.Height, vp.YOffset)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		zone.Mark(zoneID, vp.View()),
		zone.Mark(barID, bar),
	)
	head := m.styles.PaneTitle.Render(title)
	return style.Render(head + "\n" + body)
}

func (m *Model) testsContent() string {
	if len(m.results) == 0 {
		return m.styles.Muted.Render("no tests discovered yet")
	}
	lines := make([]string, 0, len(m.results))
	for _, r := range m.results {
		lines = append(lines, m.renderTestRow(r))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderTestRow(r campaign.TestResult) string {
	if r.Kind == campaign.OptimizationTest {
		return fmt.Sprintf("  %s %s = %d",
			m.styles.TestOpen.Render("opt "), r.Name, r.Value)
	}
	switch r.Status {
	case campaign.TestFalsified:
		return fmt.Sprintf("  %s %s (sequence of %d calls)",
			m.styles.TestFalsified.Render("FAIL"), r.Name, r.SeqLen)
	case campaign.TestPassed:
		return fmt.Sprintf("  %s %s", m.styles.TestPassed.Render("ok  "), r.Name)
	default:
		return fmt.Sprintf("  %s %s", m.styles.TestOpen.Render("open"), r.Name)
	}
}

func (m *Model) renderDialog() string {
	lines := []string{m.styles.Title.Render("FETCH CACHES"), ""}

	lines = append(lines, m.styles.PaneTitle.Render("Contracts"))
	if len(m.caches.Contracts) == 0 {
		lines = append(lines, m.styles.Muted.Render("  none fetched"))
	} else {
		for _, k := range sortedKeys(m.caches.Contracts) {
			lines = append(lines, truncate(fmt.Sprintf("  %s  %s", k, m.caches.Contracts[k]), m.width-8))
		}
	}

	lines = append(lines, "", m.styles.PaneTitle.Render("Storage slots"))
	if len(m.caches.Slots) == 0 {
		lines = append(lines, m.styles.Muted.Render("  none fetched"))
	} else {
		for _, k := range sortedKeys(m.caches.Slots) {
			lines = append(lines, truncate(fmt.Sprintf("  %s = %s", k, m.caches.Slots[k]), m.width-8))
		}
	}

	lines = append(lines, "", m.styles.Muted.Render("Press any key to close"))
	return m.styles.Dialog.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderHelp() string {
	parts := make([]string, 0, 8)
	for _, e := range m.keymap.HelpEntries() {
		parts = append(parts, fmt.Sprintf("[%s] %s", e[0], e[1]))
	}
	return m.styles.HelpBar.Render(strings.Join(parts, "  "))
}

// elapsed returns the campaign run time, frozen once all workers have
// stopped.
func (m *Model) elapsed() time.Duration {
	end := m.now
	if !m.stoppedAt.IsZero() {
		end = m.stoppedAt
	}
	if end.Before(m.sh.StartedAt) {
		return 0
	}
	return end.Sub(m.sh.StartedAt)
}

func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	mnt := int(d.Minutes()) % 60
	sec := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, mnt, sec)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	var b strings.Builder
	current := 0
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if current+rw > width {
			break
		}
		b.WriteRune(r)
		current += rw
	}
	return b.String()
}
