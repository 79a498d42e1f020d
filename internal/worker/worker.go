package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tiktik-live/backend/internal/streams"
	"github.com/tiktik-live/backend/internal/watchlog"
	"github.com/tiktik-live/backend/pkg/queue"
)

// AnalyticsProcessor rolls watch sessions up into the stream record after a
// stream ends.
type AnalyticsProcessor struct {
	streamRepo *streams.Repository
	watchRepo  *watchlog.Repository
	queue      *queue.Queue
	logger     *zap.Logger
}

// NewAnalyticsProcessor creates a stream analytics processor.
func NewAnalyticsProcessor(streamRepo *streams.Repository, watchRepo *watchlog.Repository, q *queue.Queue, logger *zap.Logger) *AnalyticsProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsProcessor{streamRepo: streamRepo, watchRepo: watchRepo, queue: q, logger: logger}
}

// Process executes one analytics rollup job.
func (p *AnalyticsProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeStreamAnalytics {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.StreamAnalyticsPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	s, err := p.streamRepo.GetByID(ctx, payload.StreamID)
	if err != nil {
		return fmt.Errorf("load stream: %w", err)
	}
	if s == nil {
		// Deleted before the job ran; nothing to roll up.
		p.logger.Info("stream gone, skipping rollup", zap.String("stream_id", payload.StreamID.String()))
		return nil
	}
	if s.IsLive {
		return fmt.Errorf("stream still live: %s", s.ID)
	}

	// Sessions left open by clients that never disconnected cleanly.
	if err := p.watchRepo.CloseStale(ctx, s.ID); err != nil {
		return fmt.Errorf("close stale sessions: %w", err)
	}

	agg, err := p.watchRepo.GetAggregates(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("load aggregates: %w", err)
	}
	if err := p.streamRepo.SetAggregates(ctx, s.ID, agg.DistinctViewers, agg.TotalWatchSeconds); err != nil {
		return fmt.Errorf("store aggregates: %w", err)
	}

	p.logger.Info("stream analytics rolled up",
		zap.String("stream_id", s.ID.String()),
		zap.Int("distinct_viewers", agg.DistinctViewers),
		zap.Int64("total_watch_seconds", agg.TotalWatchSeconds))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *AnalyticsProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("analytics worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
