package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/s22625/fuzzmon/internal/bus"
	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/config"
	"github.com/s22625/fuzzmon/internal/engine"
	"github.com/s22625/fuzzmon/internal/env"
	"github.com/s22625/fuzzmon/internal/pool"
)

type stubEngine struct {
	behave func(ctx context.Context, p engine.Params) (campaign.StopReason, engine.FinalState, error)
}

func (s *stubEngine) Fuzz(ctx context.Context, p engine.Params) (campaign.StopReason, engine.FinalState, error) {
	return s.behave(ctx, p)
}

func testEnv(t *testing.T, mutate func(*config.Config)) *env.SharedEnv {
	t.Helper()
	cfg := config.Default()
	mutate(cfg)
	require.NoError(t, cfg.Validate())
	return env.New(cfg, &engine.ExecContext{Contracts: []string{"Vault"}, Seed: 7}, &engine.Dictionary{})
}

func quietLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestRunEndToEndJSON(t *testing.T) {
	sh := testEnv(t, func(c *config.Config) {
		c.Workers = 3
		c.FuzzWorkers = 2
		c.TestLimit = 100
		c.Format = config.FormatJSON
		c.StatusIntervalSeconds = 60 // Only the final line should print.
	})

	eng := &stubEngine{behave: func(ctx context.Context, p engine.Params) (campaign.StopReason, engine.FinalState, error) {
		p.Sink(uint64(p.Budget), 1000)
		results := []campaign.TestResult{
			{Name: "prop_shared", Kind: campaign.PropertyTest, Status: campaign.TestPassed},
		}
		if p.Worker == campaign.SymbolicWorker {
			results = append(results, campaign.TestResult{
				Name: "prop_sym_only", Kind: campaign.PropertyTest,
				Status: campaign.TestFalsified, SeqLen: 3,
			})
		}
		return campaign.TestLimit(), engine.FinalState{Calls: uint64(p.Budget), Gas: 1000, Results: results}, nil
	}}

	b := bus.New()
	sup := pool.New(sh, eng, b)
	assignments := pool.Assignments(nil, sh)
	require.Equal(t, 50, assignments[0].Budget, "budget 100 over 2 fuzz workers is 50 each")

	var out bytes.Buffer
	r := New(sh, b, &out, quietLogger())

	start := time.Now()
	require.NoError(t, r.Run(context.Background(), sup, assignments))
	require.Less(t, time.Since(start), 30*time.Second,
		"ticker must stop once the last worker stop event is processed")

	output := out.String()
	jsonStart := strings.Index(output, "{")
	require.Greater(t, jsonStart, 0, "expected a status line before the JSON report")

	statusLines := strings.Count(output[:jsonStart], "\n")
	require.Equal(t, 1, statusLines, "exactly one final status line")

	var rep Report
	require.NoError(t, json.Unmarshal([]byte(output[jsonStart:]), &rep))

	require.Len(t, rep.Workers, 3)
	for _, wr := range rep.Workers {
		require.Equal(t, "test_limit", wr.Reason)
	}
	require.EqualValues(t, 150, rep.TotalCalls)

	names := map[string]campaign.TestStatus{}
	for _, test := range rep.Tests {
		names[test.Name] = test.Status
	}
	require.Equal(t, campaign.TestPassed, names["prop_shared"])
	require.Equal(t, campaign.TestFalsified, names["prop_sym_only"],
		"report must contain the union of all workers' final results")
}

func TestRunForceStopOnSignal(t *testing.T) {
	sh := testEnv(t, func(c *config.Config) {
		c.Workers = 2
		c.FuzzWorkers = 2
		c.Format = config.FormatNone
		c.StatusIntervalSeconds = 60
	})

	started := make(chan struct{}, 2)
	eng := &stubEngine{behave: func(ctx context.Context, p engine.Params) (campaign.StopReason, engine.FinalState, error) {
		started <- struct{}{}
		<-ctx.Done()
		return campaign.StopReason{}, engine.FinalState{}, ctx.Err()
	}}

	b := bus.New()
	sup := pool.New(sh, eng, b)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		<-started
		cancel()
	}()

	var out bytes.Buffer
	r := New(sh, b, &out, quietLogger())
	require.NoError(t, r.Run(ctx, sup, pool.Assignments(nil, sh)))

	for _, ws := range sh.Workers() {
		snap := ws.Snapshot()
		require.True(t, snap.Stopped)
		require.Equal(t, campaign.StopKilled, snap.Stop.Kind)
	}
}

func TestBuildReportTotals(t *testing.T) {
	sh := testEnv(t, func(c *config.Config) {
		c.Workers = 2
		c.FuzzWorkers = 2
	})
	sh.Workers()[0].Finish(10, 100, campaign.TestLimit())
	sh.Workers()[1].Finish(5, 50, campaign.TimeLimit())

	rep := Build(sh, campaign.Coverage{Points: 9}, time.Now())
	require.EqualValues(t, 15, rep.TotalCalls)
	require.EqualValues(t, 150, rep.TotalGas)
	require.Equal(t, "test_limit", rep.Workers[0].Reason)
	require.Equal(t, "time_limit", rep.Workers[1].Reason)
	require.Equal(t, 9, rep.Coverage.Points)
}

func TestWriteText(t *testing.T) {
	rep := Report{
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		TotalCalls: 42,
		Workers:    []WorkerReport{{ID: 0, Type: "fuzz", Calls: 42, Reason: "test_limit"}},
		Tests: []campaign.TestResult{
			{Name: "prop_x", Kind: campaign.PropertyTest, Status: campaign.TestFalsified, SeqLen: 2},
			{Name: "opt_y", Kind: campaign.OptimizationTest, Value: 7},
		},
	}

	var out bytes.Buffer
	require.NoError(t, WriteText(&out, rep))
	text := out.String()
	require.Contains(t, text, "FAIL prop_x")
	require.Contains(t, text, "opt  opt_y = 7")
	require.Contains(t, text, "#0 fuzz")
}
