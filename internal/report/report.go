// Package report implements the non-interactive campaign surface: a
// ticking status line, the optional live-stream broadcaster handshake,
// and the final text or JSON report.
package report

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/s22625/fuzzmon/internal/bus"
	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/config"
	"github.com/s22625/fuzzmon/internal/env"
	"github.com/s22625/fuzzmon/internal/pool"
	"github.com/s22625/fuzzmon/internal/stream"
)

// drainTimeout bounds how long shutdown waits for bus listeners before
// declaring the drain incomplete.
const drainTimeout = 10 * time.Second

// Reporter drives a headless campaign from start to final report.
type Reporter struct {
	env    *env.SharedEnv
	bus    *bus.Bus
	out    io.Writer
	logger *log.Logger

	gas *campaign.GasTracker

	mu         sync.Mutex
	cov        campaign.Coverage
	alive      int
	allStopped chan struct{}
}

// New creates a reporter writing status lines and the final report to out.
func New(sh *env.SharedEnv, b *bus.Bus, out io.Writer, logger *log.Logger) *Reporter {
	return &Reporter{
		env:        sh,
		bus:        b,
		out:        out,
		logger:     logger,
		gas:        campaign.NewGasTracker(time.Now()),
		allStopped: make(chan struct{}),
	}
}

// Run executes the campaign: starts the broadcaster (if configured) and
// the workers, ticks a status line, and on completion drains the bus,
// waits for the stream flush confirmation and emits the final report.
// Cancelling ctx (the signal path) force-stops workers and the
// broadcaster without waiting for the stream to drain on its own.
func (r *Reporter) Run(ctx context.Context, sup *pool.Supervisor, assignments []pool.Assignment) error {
	cfg := r.env.Cfg

	r.mu.Lock()
	r.alive = len(assignments)
	r.mu.Unlock()
	r.bus.Register("reporter", r.consume)

	var br *stream.Broadcaster
	if cfg.Port != 0 {
		var err error
		br, err = stream.Start(r.bus, cfg.Port, cfg.Workers, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start live stream: %w", err)
		}
	}

	sup.Start(assignments)

	ticker := time.NewTicker(cfg.StatusInterval())
	defer ticker.Stop()

	forced := false
loop:
	for {
		select {
		case now := <-ticker.C:
			r.printStatus(now)
		case <-r.allStopped:
			break loop
		case <-ctx.Done():
			forced = true
			break loop
		}
	}
	ticker.Stop()

	sup.Stop()

	if forced && br != nil {
		// Signal path: tell the stream to finish now rather than
		// waiting for it to drain on its own.
		br.Finish(false)
	}

	if err := r.bus.Drain(drainTimeout); err != nil {
		r.logger.Printf("warning: %v", err)
		fmt.Fprintf(r.out, "warning: %v\n", err)
	}

	if !forced && br != nil {
		// Natural completion blocks on the flush confirmation before
		// any final output.
		br.Finish(true)
	}

	r.printStatus(time.Now())

	rep := Build(r.env, r.coverage(), time.Now())
	switch cfg.Format {
	case config.FormatJSON:
		return WriteJSON(r.out, rep)
	case config.FormatText:
		return WriteText(r.out, rep)
	default:
		return nil
	}
}

// consume folds bus events into the reporter's counters.
func (r *Reporter) consume(ev campaign.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case campaign.EventNewCoverage:
		if ev.Coverage == nil {
			return
		}
		// Coverage only ever grows; stale samples never roll it back.
		if ev.Coverage.Points > r.cov.Points {
			r.cov.Points = ev.Coverage.Points
		}
		if ev.Coverage.Codehashes > r.cov.Codehashes {
			r.cov.Codehashes = ev.Coverage.Codehashes
		}
		r.cov.CorpusSize = ev.Coverage.CorpusSize
	case campaign.EventWorkerStopped:
		if r.alive > 0 {
			r.alive--
			if r.alive == 0 {
				close(r.allStopped)
			}
		}
	}
}

func (r *Reporter) coverage() campaign.Coverage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cov
}

// printStatus writes one status line: test failures, call progress,
// optimization values, coverage, corpus size and the gas/s delta since
// the previous line.
func (r *Reporter) printStatus(now time.Time) {
	calls, gas := r.env.TotalProgress()
	rate := r.gas.Sample(now, gas)
	cov := r.coverage()

	results := r.env.Results()
	failed := 0
	var opts []string
	for _, t := range results {
		if t.Failed() {
			failed++
		}
		if t.Kind == campaign.OptimizationTest && t.Value != 0 {
			opts = append(opts, fmt.Sprintf("%s=%d", t.Name, t.Value))
		}
	}

	elapsed := now.Sub(r.env.StartedAt).Round(time.Second)
	line := fmt.Sprintf("[%s] tests: %d/%d failed | calls: %d/%d | cov: %d | corpus: %d | gas/s: %.0f",
		elapsed, failed, len(results), calls, r.env.Cfg.TestLimit, cov.Points, cov.CorpusSize, rate)
	if len(opts) > 0 {
		line += " | opt: " + strings.Join(opts, " ")
	}
	fmt.Fprintln(r.out, line)
}
