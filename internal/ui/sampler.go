package ui

import (
	"context"
	"time"

	"github.com/s22625/fuzzmon/internal/campaign"
	"github.com/s22625/fuzzmon/internal/env"
)

// notifyCapacity bounds the snapshot channel feeding the dashboard. When
// the render loop lags, samples are dropped rather than queued; a newer
// sample supersedes anything it would have queued behind.
const notifyCapacity = 1000

type snapshotMsg struct {
	at      time.Time
	workers []campaign.Snapshot
	results []campaign.TestResult
	caches  env.FetchCaches
}

// startSampler polls the shared environment at the given interval and
// delivers snapshots on the returned channel. Sends never block: a full
// channel drops the sample. The channel closes when ctx is canceled.
func startSampler(ctx context.Context, sh *env.SharedEnv, interval time.Duration) <-chan snapshotMsg {
	ch := make(chan snapshotMsg, notifyCapacity)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case at := <-ticker.C:
				msg := snapshotMsg{
					at:      at,
					workers: sh.Sample(),
					results: sh.Results(),
					caches:  sh.Caches(),
				}
				select {
				case ch <- msg:
				default:
				}
			}
		}
	}()
	return ch
}
