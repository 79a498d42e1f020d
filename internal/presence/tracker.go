package presence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/pkg/metrics"
)

// CountHandler is notified whenever a stream's viewer count changes, with the
// new count. Used to broadcast viewer_count events and track peaks.
type CountHandler func(streamID uuid.UUID, count int64)

// Tracker maintains who is watching each stream. Every membership is a lease:
// clients refresh it via heartbeats and the sweeper reclaims members whose
// lease ran out, so a crashed client can never pin the count up forever.
type Tracker struct {
	store    Store
	leaseTTL time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics
	onCount  CountHandler

	now func() time.Time
}

// NewTracker creates a presence tracker.
func NewTracker(store Store, leaseTTL time.Duration, logger *zap.Logger, m *metrics.Metrics) *Tracker {
	return &Tracker{
		store:    store,
		leaseTTL: leaseTTL,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// SetCountHandler registers the viewer-count change callback. Call before the
// tracker receives traffic.
func (t *Tracker) SetCountHandler(h CountHandler) {
	t.onCount = h
}

// Join records a viewer entering a stream and returns the new viewer count.
// Joining twice is idempotent: the count moves only on the first join.
func (t *Tracker) Join(ctx context.Context, streamID uuid.UUID, viewer models.Viewer) (int64, error) {
	created, err := t.store.AddMember(ctx, streamID, viewer, t.now().Add(t.leaseTTL))
	if err != nil {
		return 0, err
	}
	if !created {
		return t.store.Count(ctx, streamID)
	}
	count, err := t.store.AdjustCount(ctx, streamID, 1)
	if err != nil {
		return 0, err
	}
	t.notify(streamID, count)
	return count, nil
}

// Leave records a viewer exiting a stream and returns the new viewer count.
// Leaving when not present is a no-op.
func (t *Tracker) Leave(ctx context.Context, streamID, userID uuid.UUID) (int64, error) {
	removed, err := t.store.RemoveMember(ctx, streamID, userID)
	if err != nil {
		return 0, err
	}
	if !removed {
		return t.store.Count(ctx, streamID)
	}
	count, err := t.store.AdjustCount(ctx, streamID, -1)
	if err != nil {
		return 0, err
	}
	t.notify(streamID, count)
	return count, nil
}

// Heartbeat extends a viewer's lease. Unknown viewers are ignored; their next
// join re-registers them.
func (t *Tracker) Heartbeat(ctx context.Context, streamID, userID uuid.UUID) error {
	return t.store.RefreshMember(ctx, streamID, userID, t.now().Add(t.leaseTTL))
}

// Viewers returns the roster of a stream.
func (t *Tracker) Viewers(ctx context.Context, streamID uuid.UUID) ([]models.Viewer, error) {
	return t.store.Members(ctx, streamID)
}

// Count returns the current viewer count of a stream.
func (t *Tracker) Count(ctx context.Context, streamID uuid.UUID) (int64, error) {
	return t.store.Count(ctx, streamID)
}

// Sweep reclaims expired leases across all tracked streams and reconciles
// each counter against its member set.
func (t *Tracker) Sweep(ctx context.Context) {
	streams, err := t.store.TrackedStreams(ctx)
	if err != nil {
		t.logger.Warn("presence sweep: list streams", zap.Error(err))
		return
	}
	t.metrics.IncPresenceSweeps()
	for _, streamID := range streams {
		expired, err := t.store.ExpiredMembers(ctx, streamID, t.now())
		if err != nil {
			t.logger.Warn("presence sweep: expire members",
				zap.String("stream_id", streamID.String()), zap.Error(err))
			continue
		}
		if len(expired) > 0 {
			t.metrics.AddPresenceReclaims(len(expired))
			t.logger.Info("presence sweep reclaimed stale viewers",
				zap.String("stream_id", streamID.String()),
				zap.Int("reclaimed", len(expired)))
		}

		remaining, err := t.store.MemberCount(ctx, streamID)
		if err != nil {
			continue
		}
		count, err := t.store.Count(ctx, streamID)
		if err != nil {
			continue
		}
		drifted := count != remaining
		if drifted {
			if err := t.store.SetCount(ctx, streamID, remaining); err != nil {
				continue
			}
		}
		if len(expired) > 0 || drifted {
			t.notify(streamID, remaining)
		}
		if remaining == 0 {
			_ = t.store.Forget(ctx, streamID)
		}
	}
}

// RunSweeper runs Sweep on the given interval until ctx is cancelled.
func (t *Tracker) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep(ctx)
		}
	}
}

func (t *Tracker) notify(streamID uuid.UUID, count int64) {
	if t.onCount != nil {
		t.onCount(streamID, count)
	}
}
