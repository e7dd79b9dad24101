package campaign

import "time"

// GasTracker computes a delta gas rate between consecutive samples. It
// keeps only the previous sample; each call to Sample replaces it
// wholesale.
type GasTracker struct {
	LastUpdate time.Time
	TotalGas   uint64
}

// NewGasTracker seeds the tracker with the campaign start time.
func NewGasTracker(start time.Time) *GasTracker {
	return &GasTracker{LastUpdate: start}
}

// Sample returns the gas-per-second rate between the previous sample and
// (now, total), then overwrites the previous sample. A non-positive
// elapsed time yields 0.
func (g *GasTracker) Sample(now time.Time, total uint64) float64 {
	elapsed := now.Sub(g.LastUpdate).Seconds()
	var rate float64
	if elapsed > 0 && total >= g.TotalGas {
		rate = float64(total-g.TotalGas) / elapsed
	}
	g.LastUpdate = now
	g.TotalGas = total
	return rate
}
