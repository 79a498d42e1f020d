package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/internal/models"
)

type fakeSettings struct {
	banned   map[uuid.UUID][]uuid.UUID
	slowMode map[uuid.UUID]int64
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{
		banned:   make(map[uuid.UUID][]uuid.UUID),
		slowMode: make(map[uuid.UUID]int64),
	}
}

func (f *fakeSettings) Get(_ context.Context, streamID uuid.UUID) (*models.ChatSettings, error) {
	return &models.ChatSettings{
		StreamID:        streamID,
		BannedUserIDs:   f.banned[streamID],
		SlowModeEnabled: f.slowMode[streamID] > 0,
		SlowModeMs:      f.slowMode[streamID],
	}, nil
}

func (f *fakeSettings) AddBannedUser(_ context.Context, streamID, userID uuid.UUID) error {
	for _, id := range f.banned[streamID] {
		if id == userID {
			return nil
		}
	}
	f.banned[streamID] = append(f.banned[streamID], userID)
	return nil
}

func (f *fakeSettings) SetSlowMode(_ context.Context, streamID uuid.UUID, enabled bool, windowMs int64) error {
	if !enabled {
		windowMs = 0
	}
	f.slowMode[streamID] = windowMs
	return nil
}

type fakeBroadcaster struct {
	events []string
}

func (f *fakeBroadcaster) BroadcastToStreamAndPublish(_ uuid.UUID, event string, _ interface{}) {
	f.events = append(f.events, event)
}

func newTestController() (*Controller, *fakeSettings, *fakeBroadcaster) {
	settings := newFakeSettings()
	broadcast := &fakeBroadcaster{}
	return NewController(settings, broadcast, zap.NewNop()), settings, broadcast
}

func TestBanIsIdempotentAndBroadcast(t *testing.T) {
	ctrl, settings, broadcast := newTestController()
	streamID, userID := uuid.New(), uuid.New()

	require.NoError(t, ctrl.Ban(context.Background(), streamID, userID))
	require.NoError(t, ctrl.Ban(context.Background(), streamID, userID))

	assert.Len(t, settings.banned[streamID], 1)
	assert.Equal(t, []string{"settings_updated", "settings_updated"}, broadcast.events)
}

func TestTimeoutExpires(t *testing.T) {
	ctrl, _, _ := newTestController()
	streamID, userID := uuid.New(), uuid.New()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ctrl.now = func() time.Time { return now }

	ctrl.Timeout(streamID, userID, 60*time.Second)

	left, ok := ctrl.Remaining(streamID, userID)
	require.True(t, ok)
	assert.Equal(t, 60*time.Second, left)

	now = base.Add(59 * time.Second)
	left, ok = ctrl.Remaining(streamID, userID)
	require.True(t, ok)
	assert.Equal(t, time.Second, left)

	now = base.Add(61 * time.Second)
	_, ok = ctrl.Remaining(streamID, userID)
	assert.False(t, ok)
}

func TestNewTimeoutReplacesRunningOne(t *testing.T) {
	ctrl, _, _ := newTestController()
	streamID, userID := uuid.New(), uuid.New()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	ctrl.now = func() time.Time { return now }

	ctrl.Timeout(streamID, userID, 10*time.Second)
	ctrl.Timeout(streamID, userID, 120*time.Second)

	now = base.Add(30 * time.Second)
	left, ok := ctrl.Remaining(streamID, userID)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, left)
}

func TestTimeoutsAreScopedPerStream(t *testing.T) {
	ctrl, _, _ := newTestController()
	userID := uuid.New()
	streamA, streamB := uuid.New(), uuid.New()

	ctrl.Timeout(streamA, userID, time.Minute)

	_, ok := ctrl.Remaining(streamB, userID)
	assert.False(t, ok)
}

func TestForgetStreamClearsTimeouts(t *testing.T) {
	ctrl, _, _ := newTestController()
	streamID, userID := uuid.New(), uuid.New()

	ctrl.Timeout(streamID, userID, time.Hour)
	ctrl.ForgetStream(streamID)

	_, ok := ctrl.Remaining(streamID, userID)
	assert.False(t, ok)
}

func TestSetSlowModeBroadcastsSettings(t *testing.T) {
	ctrl, settings, broadcast := newTestController()
	streamID := uuid.New()

	require.NoError(t, ctrl.SetSlowMode(context.Background(), streamID, true, 10_000))
	assert.Equal(t, int64(10_000), settings.slowMode[streamID])
	assert.Equal(t, []string{"settings_updated"}, broadcast.events)
}
