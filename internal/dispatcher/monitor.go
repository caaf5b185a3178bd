package dispatcher

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/margincheck/internal/metrics"
	"github.com/local/margincheck/internal/queue"
)

// DepthSource reports queue sizes.
type DepthSource interface {
	Depths(ctx context.Context) (queue.Depths, error)
}

// MonitorDepths publishes queue depth gauges until ctx is done.
func MonitorDepths(ctx context.Context, src DepthSource, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			publishDepths(ctx, src)
		}
	}
}

func publishDepths(ctx context.Context, src DepthSource) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	d, err := src.Depths(cctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read queue depths")
		return
	}
	metrics.SetQueueDepth("pending", d.Pending)
	metrics.SetQueueDepth("delayed", d.Delayed)
	metrics.SetQueueDepth("dlq", d.DLQ)
}
