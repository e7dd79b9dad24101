package campaign

// TestKind distinguishes boolean property tests from optimization tests,
// which track the best value found so far.
type TestKind int

const (
	PropertyTest TestKind = iota
	OptimizationTest
)

// TestStatus represents the lifecycle state of a property test.
type TestStatus string

const (
	TestOpen      TestStatus = "open"      // No counterexample found yet
	TestPassed    TestStatus = "passed"    // Budget exhausted without a counterexample
	TestFalsified TestStatus = "falsified" // A violating call sequence was found
)

// TestResult is one test's outcome as reported by a worker engine.
// Optimization tests carry the best value found in Value; property tests
// carry the length of the shrunk counterexample in SeqLen when falsified.
type TestResult struct {
	Name   string     `json:"name"`
	Kind   TestKind   `json:"-"`
	Status TestStatus `json:"status"`
	Value  int64      `json:"value,omitempty"`
	SeqLen int        `json:"sequence_length,omitempty"`
}

// Failed reports whether the test ended falsified.
func (t TestResult) Failed() bool { return t.Status == TestFalsified }

// MergeResults folds per-worker results into a single aggregate list.
// For each test name the worst status wins (falsified beats passed beats
// open) and the best optimization value wins. Order of first appearance
// is preserved.
func MergeResults(lists ...[]TestResult) []TestResult {
	var order []string
	merged := make(map[string]TestResult)
	for _, list := range lists {
		for _, r := range list {
			prev, ok := merged[r.Name]
			if !ok {
				order = append(order, r.Name)
				merged[r.Name] = r
				continue
			}
			merged[r.Name] = mergeResult(prev, r)
		}
	}
	out := make([]TestResult, 0, len(order))
	for _, name := range order {
		out = append(out, merged[name])
	}
	return out
}

func mergeResult(a, b TestResult) TestResult {
	out := a
	if statusRank(b.Status) > statusRank(a.Status) {
		out.Status = b.Status
		out.SeqLen = b.SeqLen
	}
	if b.Kind == OptimizationTest && b.Value > out.Value {
		out.Value = b.Value
	}
	return out
}

func statusRank(s TestStatus) int {
	switch s {
	case TestFalsified:
		return 2
	case TestPassed:
		return 1
	default:
		return 0
	}
}
