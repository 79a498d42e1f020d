package moderation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/internal/realtime"
)

// SettingsStore persists the durable moderation state (bans, slow mode).
type SettingsStore interface {
	Get(ctx context.Context, streamID uuid.UUID) (*models.ChatSettings, error)
	AddBannedUser(ctx context.Context, streamID, userID uuid.UUID) error
	SetSlowMode(ctx context.Context, streamID uuid.UUID, enabled bool, windowMs int64) error
}

// Broadcaster pushes settings changes to stream watchers.
type Broadcaster interface {
	BroadcastToStreamAndPublish(streamID uuid.UUID, event string, payload interface{})
}

type timeoutKey struct {
	streamID uuid.UUID
	userID   uuid.UUID
}

// Controller enforces moderation decisions. Bans and slow mode are durable;
// timeouts live in process memory and end on their own, so a restart simply
// clears any running timeouts.
type Controller struct {
	settings    SettingsStore
	broadcaster Broadcaster
	logger      *zap.Logger

	mu       sync.Mutex
	timeouts map[timeoutKey]time.Time

	now func() time.Time
}

// NewController creates a moderation controller.
func NewController(settings SettingsStore, broadcaster Broadcaster, logger *zap.Logger) *Controller {
	return &Controller{
		settings:    settings,
		broadcaster: broadcaster,
		logger:      logger,
		timeouts:    make(map[timeoutKey]time.Time),
		now:         time.Now,
	}
}

// Ban permanently blocks a user from a stream's chat. Banning an already
// banned user is a no-op.
func (c *Controller) Ban(ctx context.Context, streamID, userID uuid.UUID) error {
	if err := c.settings.AddBannedUser(ctx, streamID, userID); err != nil {
		return err
	}
	c.logger.Info("user banned from chat",
		zap.String("stream_id", streamID.String()),
		zap.String("user_id", userID.String()))
	c.publishSettings(ctx, streamID)
	return nil
}

// Timeout blocks a user from chatting for the given duration. A new timeout
// replaces any running one.
func (c *Controller) Timeout(streamID, userID uuid.UUID, d time.Duration) {
	until := c.now().Add(d)
	c.mu.Lock()
	c.timeouts[timeoutKey{streamID, userID}] = until
	c.mu.Unlock()

	// Expiry is lazy via Remaining; the AfterFunc just reclaims the entry.
	time.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		key := timeoutKey{streamID, userID}
		if t, ok := c.timeouts[key]; ok && !t.After(c.now()) {
			delete(c.timeouts, key)
		}
	})
	c.logger.Info("user timed out",
		zap.String("stream_id", streamID.String()),
		zap.String("user_id", userID.String()),
		zap.Duration("duration", d))
}

// Remaining reports how much of a user's timeout is left.
func (c *Controller) Remaining(streamID, userID uuid.UUID) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.timeouts[timeoutKey{streamID, userID}]
	if !ok {
		return 0, false
	}
	left := until.Sub(c.now())
	if left <= 0 {
		delete(c.timeouts, timeoutKey{streamID, userID})
		return 0, false
	}
	return left, true
}

// SetSlowMode toggles slow mode. windowMs <= 0 keeps the stored default.
func (c *Controller) SetSlowMode(ctx context.Context, streamID uuid.UUID, enabled bool, windowMs int64) error {
	if err := c.settings.SetSlowMode(ctx, streamID, enabled, windowMs); err != nil {
		return err
	}
	c.publishSettings(ctx, streamID)
	return nil
}

// ForgetStream drops timeout state for a stream that ended.
func (c *Controller) ForgetStream(streamID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.timeouts {
		if key.streamID == streamID {
			delete(c.timeouts, key)
		}
	}
}

func (c *Controller) publishSettings(ctx context.Context, streamID uuid.UUID) {
	settings, err := c.settings.Get(ctx, streamID)
	if err != nil {
		c.logger.Warn("load settings for broadcast", zap.Error(err))
		return
	}
	c.broadcaster.BroadcastToStreamAndPublish(streamID, realtime.EventSettingsUpdated, settings)
}
