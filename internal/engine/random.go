package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/s22625/fuzzmon/internal/campaign"
)

// checkEvery bounds how many calls run between context checks so
// cancellation stays prompt even under a tight loop.
const checkEvery = 64

// Random is the built-in reference engine. It executes pseudo-random
// call sequences against the target, deterministic for a given seed and
// worker ID, so campaigns are reproducible in tests and demos.
type Random struct{}

// NewRandom creates the reference engine.
func NewRandom() *Random { return &Random{} }

// Fuzz implements Engine.
func (e *Random) Fuzz(ctx context.Context, p Params) (campaign.StopReason, FinalState, error) {
	rng := rand.New(rand.NewSource(p.Exec.Seed + int64(p.WorkerID)*7919))

	tests := initialTests(p.Exec, p.Target)
	best := make(map[string]int64)

	var calls, gas uint64
	points := replayCorpus(p, rng)
	corpusSize := len(p.Slice)

	final := func() FinalState {
		return FinalState{Calls: calls, Gas: gas, Results: tests}
	}

	// A non-positive budget means no call limit; only the context ends
	// the loop.
	unlimited := p.Budget <= 0
	for unlimited || calls < uint64(p.Budget) {
		if calls%checkEvery == 0 {
			select {
			case <-ctx.Done():
				return campaign.StopReason{}, final(), ctx.Err()
			default:
			}
		}

		calls++
		gas += 21000 + uint64(rng.Int63n(60000))

		if rng.Intn(400) == 0 {
			points += 1 + rng.Intn(8)
			corpusSize++
			p.Emit(campaign.NewCoverageEvent(p.WorkerID, p.Worker, campaign.Coverage{
				Points:     points,
				Codehashes: len(p.Exec.Contracts),
				CorpusSize: corpusSize,
			}))
		}

		for i := range tests {
			t := &tests[i]
			switch t.Kind {
			case campaign.PropertyTest:
				if t.Status != campaign.TestFalsified && rng.Intn(200000) == 0 {
					t.Status = campaign.TestFalsified
					t.SeqLen = 1 + rng.Intn(10)
					p.Emit(campaign.NewTestFalsifiedEvent(p.WorkerID, p.Worker, *t))
				}
			case campaign.OptimizationTest:
				if rng.Intn(5000) == 0 {
					v := rng.Int63n(1 << 30)
					if v > best[t.Name] {
						best[t.Name] = v
						t.Value = v
						p.Emit(campaign.NewTestOptimizedEvent(p.WorkerID, p.Worker, *t))
					}
				}
			}
		}

		p.Sink(calls, gas)
	}

	for i := range tests {
		if tests[i].Status == campaign.TestOpen {
			tests[i].Status = campaign.TestPassed
		}
	}
	return campaign.TestLimit(), final(), nil
}

// replayCorpus walks the assigned slice once before generating new
// sequences, the way a real engine warms its coverage map.
func replayCorpus(p Params, rng *rand.Rand) int {
	points := 0
	for range p.Slice {
		points += 1 + rng.Intn(4)
	}
	return points
}

func initialTests(exec *ExecContext, target Target) []campaign.TestResult {
	var tests []campaign.TestResult
	for _, contract := range exec.Contracts {
		if target.Contract != "" && contract != target.Contract {
			continue
		}
		tests = append(tests,
			campaign.TestResult{
				Name:   fmt.Sprintf("prop_%s_invariant", contract),
				Kind:   campaign.PropertyTest,
				Status: campaign.TestOpen,
			},
			campaign.TestResult{
				Name: fmt.Sprintf("opt_%s_max_value", contract),
				Kind: campaign.OptimizationTest,
			},
		)
	}
	return tests
}
