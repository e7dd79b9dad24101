package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/env"
)

// WorkerReport is one worker's final line in the campaign report.
type WorkerReport struct {
	ID     int    `json:"id"`
	Type   string `json:"type"`
	Calls  uint64 `json:"calls"`
	Gas    uint64 `json:"gas"`
	Reason string `json:"reason"`
}

// Report is the machine-readable campaign summary.
type Report struct {
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	TotalCalls uint64                `json:"total_calls"`
	TotalGas   uint64                `json:"total_gas"`
	Coverage   campaign.Coverage     `json:"coverage"`
	Workers    []WorkerReport        `json:"workers"`
	Tests      []campaign.TestResult `json:"tests"`
}

// Build assembles the final report from the shared environment. Worker
// slots are read one final time after every worker has stopped.
func Build(sh *env.SharedEnv, cov campaign.Coverage, finished time.Time) Report {
	rep := Report{
		StartedAt:  sh.StartedAt,
		FinishedAt: finished,
		Coverage:   cov,
		Tests:      sh.Results(),
	}
	for _, snap := range sh.Sample() {
		wr := WorkerReport{
			ID:    snap.WorkerID,
			Type:  snap.Worker.String(),
			Calls: snap.Calls,
			Gas:   snap.Gas,
		}
		if snap.Stop != nil {
			wr.Reason = snap.Stop.Label()
		}
		rep.TotalCalls += snap.Calls
		rep.TotalGas += snap.Gas
		rep.Workers = append(rep.Workers, wr)
	}
	return rep
}

// WriteJSON emits the report as indented JSON.
func WriteJSON(w io.Writer, rep Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// WriteText emits the human-readable report.
func WriteText(w io.Writer, rep Report) error {
	elapsed := rep.FinishedAt.Sub(rep.StartedAt).Round(time.Second)
	fmt.Fprintf(w, "\nCampaign finished in %s\n", elapsed)
	fmt.Fprintf(w, "  calls: %d, gas: %d\n", rep.TotalCalls, rep.TotalGas)
	fmt.Fprintf(w, "  coverage: %d points, %d codehashes, corpus %d\n",
		rep.Coverage.Points, rep.Coverage.Codehashes, rep.Coverage.CorpusSize)

	fmt.Fprintln(w, "\nWorkers:")
	for _, wr := range rep.Workers {
		fmt.Fprintf(w, "  #%d %-8s calls=%-10d gas=%-12d %s\n", wr.ID, wr.Type, wr.Calls, wr.Gas, wr.Reason)
	}

	if len(rep.Tests) > 0 {
		fmt.Fprintln(w, "\nTests:")
		for _, t := range rep.Tests {
			switch {
			case t.Failed():
				fmt.Fprintf(w, "  FAIL %s (sequence length %d)\n", t.Name, t.SeqLen)
			case t.Kind == campaign.OptimizationTest:
				fmt.Fprintf(w, "  opt  %s = %d\n", t.Name, t.Value)
			default:
				fmt.Fprintf(w, "  ok   %s\n", t.Name)
			}
		}
	}
	return nil
}
