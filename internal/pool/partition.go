package pool

import "github.com/s22625/fuzzmon/internal/corpus"

// Partition splits the initial corpus into contiguous slices, one per
// worker slot. The first fuzzWorkers slots share the corpus in chunks
// whose sizes differ by at most one; every slot past that receives an
// empty slice (the infinite empty-chunk supply for excess workers).
// Symbolic workers ignore their partition slice and are handed the full
// corpus by Assignments.
func Partition(entries []corpus.Entry, fuzzWorkers, workers int) [][]corpus.Entry {
	if workers < fuzzWorkers {
		workers = fuzzWorkers
	}
	slices := make([][]corpus.Entry, workers)

	n := len(entries)
	base := 0
	extra := 0
	if fuzzWorkers > 0 {
		base = n / fuzzWorkers
		extra = n % fuzzWorkers
	}

	offset := 0
	for i := 0; i < fuzzWorkers; i++ {
		size := base
		if i < extra {
			size++
		}
		slices[i] = entries[offset : offset+size]
		offset += size
	}
	return slices
}

// SplitBudget divides the global test limit evenly across fuzz workers
// using ceiling division, so the aggregate may slightly exceed the
// configured global limit.
func SplitBudget(testLimit, fuzzWorkers int) int {
	if fuzzWorkers < 1 || testLimit <= 0 {
		return testLimit
	}
	return (testLimit + fuzzWorkers - 1) / fuzzWorkers
}
