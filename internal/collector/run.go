package collector

import (
	"context"
	"time"

	"github.com/Dicklesworthstone/sysmoni/internal/model"
)

// StatePort is the shared application state the loop reads parameters from
// and publishes snapshots to. Implementations hold their lock only inside
// these calls.
type StatePort interface {
	Params() Params
	Paused() bool
	Previous() *model.GlobalUsage
	Publish(model.Snapshot)
}

// Run collects once per interval until ctx is done. A paused cycle runs no
// probes. The wait after a cycle is the interval minus its cost, so an
// overrunning cycle is followed immediately by the next.
func (c *Collector) Run(ctx context.Context, st StatePort) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return nil
		}

		start := c.now()
		if !st.Paused() {
			st.Publish(c.Collect(ctx, st.Previous(), st.Params()))
		}
		timer.Reset(sleepFor(c.cfg.Interval, c.now().Sub(start)))
	}
}

func sleepFor(interval, cost time.Duration) time.Duration {
	if d := interval - cost; d > 0 {
		return d
	}
	return 0
}
