package chat

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

type fakeMessageStore struct {
	inserted []models.ChatMessage
}

func (f *fakeMessageStore) Insert(_ context.Context, m *models.ChatMessage) error {
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	f.inserted = append(f.inserted, *m)
	return nil
}

func (f *fakeMessageStore) ListRecent(_ context.Context, _ uuid.UUID, limit int) ([]models.ChatMessage, error) {
	if len(f.inserted) > limit {
		return f.inserted[len(f.inserted)-limit:], nil
	}
	return f.inserted, nil
}

type fakeSettingsStore struct {
	settings models.ChatSettings
}

func (f *fakeSettingsStore) Get(_ context.Context, streamID uuid.UUID) (*models.ChatSettings, error) {
	s := f.settings
	s.StreamID = streamID
	return &s, nil
}

type fakeTimeouts struct {
	remaining map[uuid.UUID]time.Duration
}

func (f *fakeTimeouts) Remaining(_, userID uuid.UUID) (time.Duration, bool) {
	d, ok := f.remaining[userID]
	return d, ok
}

type fakeBroadcaster struct {
	events []string
}

func (f *fakeBroadcaster) BroadcastToStreamAndPublish(_ uuid.UUID, event string, _ interface{}) {
	f.events = append(f.events, event)
}

type fakeTips struct {
	recorded int64
	stored   []models.ChatMessage
	err      error
}

func (f *fakeTips) RecordSuperChat(_ context.Context, _ uuid.UUID, m *models.ChatMessage) error {
	if f.err != nil {
		return f.err
	}
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	f.recorded += m.AmountCents
	f.stored = append(f.stored, *m)
	return nil
}

type chatFixture struct {
	service   *Service
	messages  *fakeMessageStore
	settings  *fakeSettingsStore
	timeouts  *fakeTimeouts
	broadcast *fakeBroadcaster
	tips      *fakeTips
	stream    *models.Stream
	sender    models.Viewer
	clock     time.Time
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	f := &chatFixture{
		messages:  &fakeMessageStore{},
		settings:  &fakeSettingsStore{settings: models.ChatSettings{SlowModeMs: 5000}},
		timeouts:  &fakeTimeouts{remaining: make(map[uuid.UUID]time.Duration)},
		broadcast: &fakeBroadcaster{},
		tips:      &fakeTips{},
		stream:    &models.Stream{ID: uuid.New(), OwnerID: uuid.New(), IsLive: true},
		sender:    models.Viewer{UserID: uuid.New(), UserName: "alice"},
		clock:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewService(f.messages, f.settings, f.timeouts, f.broadcast, f.tips, Config{
		MaxMessageLength: 200,
		HistoryLimit:     100,
		DefaultCooldown:  2 * time.Second,
	}, zap.NewNop(), nil)
	now := func() time.Time { return f.clock }
	f.service.now = now
	f.service.cooldowns.now = now
	return f
}

func (f *chatFixture) advance(d time.Duration) {
	f.clock = f.clock.Add(d)
}

func TestSendBroadcastsAcceptedMessage(t *testing.T) {
	f := newChatFixture(t)

	view, err := f.service.Send(context.Background(), f.stream, f.sender, "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", view.Message)
	assert.False(t, view.IsSuperChat)
	assert.Equal(t, []string{"chat_message"}, f.broadcast.events)
	require.Len(t, f.messages.inserted, 1)
}

func TestSendRejectsWhenStreamEnded(t *testing.T) {
	f := newChatFixture(t)
	f.stream.IsLive = false

	_, err := f.service.Send(context.Background(), f.stream, f.sender, "hello", 0)
	assert.ErrorIs(t, err, ErrStreamNotLive)
}

func TestSendChecksBanBeforeContent(t *testing.T) {
	f := newChatFixture(t)
	f.settings.settings.BannedUserIDs = []uuid.UUID{f.sender.UserID}

	// Even an empty message reports the ban first.
	_, err := f.service.Send(context.Background(), f.stream, f.sender, "", 0)
	assert.ErrorIs(t, err, ErrBanned)
}

func TestSendChecksTimeoutBeforeContent(t *testing.T) {
	f := newChatFixture(t)
	f.timeouts.remaining[f.sender.UserID] = 42 * time.Second

	var timedOut *TimedOutError
	_, err := f.service.Send(context.Background(), f.stream, f.sender, "", 0)
	require.ErrorAs(t, err, &timedOut)
	assert.Equal(t, 42*time.Second, timedOut.Remaining)
}

func TestSendRejectsEmptyAndOversizedMessages(t *testing.T) {
	f := newChatFixture(t)

	_, err := f.service.Send(context.Background(), f.stream, f.sender, "   ", 0)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	long := make([]rune, 201)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.service.Send(context.Background(), f.stream, f.sender, string(long), 0)
	assert.ErrorIs(t, err, ErrMessageTooLong)
}

func TestSendEnforcesCooldown(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Send(ctx, f.stream, f.sender, "first", 0)
	require.NoError(t, err)

	var cooldown *CooldownError
	_, err = f.service.Send(ctx, f.stream, f.sender, "second", 0)
	require.ErrorAs(t, err, &cooldown)

	f.advance(2 * time.Second)
	_, err = f.service.Send(ctx, f.stream, f.sender, "second", 0)
	assert.NoError(t, err)
}

func TestRejectedSendDoesNotRestartCooldown(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Send(ctx, f.stream, f.sender, "first", 0)
	require.NoError(t, err)

	f.advance(1500 * time.Millisecond)
	_, err = f.service.Send(ctx, f.stream, f.sender, "too soon", 0)
	require.Error(t, err)

	// The window runs from the accepted message, not the rejection.
	f.advance(500 * time.Millisecond)
	_, err = f.service.Send(ctx, f.stream, f.sender, "ok now", 0)
	assert.NoError(t, err)
}

func TestSlowModeWidensCooldownWindow(t *testing.T) {
	f := newChatFixture(t)
	f.settings.settings.SlowModeEnabled = true
	f.settings.settings.SlowModeMs = 10_000
	ctx := context.Background()

	_, err := f.service.Send(ctx, f.stream, f.sender, "first", 0)
	require.NoError(t, err)

	f.advance(5 * time.Second)
	var cooldown *CooldownError
	_, err = f.service.Send(ctx, f.stream, f.sender, "second", 0)
	require.ErrorAs(t, err, &cooldown)
	assert.Equal(t, 5*time.Second, cooldown.Remaining)

	f.advance(5 * time.Second)
	_, err = f.service.Send(ctx, f.stream, f.sender, "second", 0)
	assert.NoError(t, err)
}

func TestSuperChatBypassesCooldownButRestartsIt(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	_, err := f.service.Send(ctx, f.stream, f.sender, "first", 0)
	require.NoError(t, err)

	view, err := f.service.Send(ctx, f.stream, f.sender, "take my money", 10_00)
	require.NoError(t, err)
	assert.True(t, view.IsSuperChat)
	assert.Equal(t, colorTier10, view.HighlightColor)
	assert.Equal(t, int64(10_00), f.tips.recorded)

	// The super chat restarted the window for regular messages.
	var cooldown *CooldownError
	_, err = f.service.Send(ctx, f.stream, f.sender, "regular", 0)
	assert.ErrorAs(t, err, &cooldown)
}

func TestSuperChatPersistsThroughWalletTransaction(t *testing.T) {
	f := newChatFixture(t)

	view, err := f.service.Send(context.Background(), f.stream, f.sender, "take my money", 50_00)
	require.NoError(t, err)
	require.Len(t, f.tips.stored, 1)
	assert.Equal(t, view.ID, f.tips.stored[0].ID)
	assert.Equal(t, int64(50_00), f.tips.stored[0].AmountCents)
	// The plain store never sees super chats; they commit with the charge.
	assert.Empty(t, f.messages.inserted)
}

func TestFailedSuperChatLeavesNoChargeOrMessage(t *testing.T) {
	f := newChatFixture(t)
	f.tips.err = assert.AnError

	_, err := f.service.Send(context.Background(), f.stream, f.sender, "broke", 5_00)
	require.Error(t, err)
	assert.Zero(t, f.tips.recorded)
	assert.Empty(t, f.tips.stored)
	assert.Empty(t, f.messages.inserted)
	assert.Empty(t, f.broadcast.events)
}

func TestSuperChatStillBlockedByBan(t *testing.T) {
	f := newChatFixture(t)
	f.settings.settings.BannedUserIDs = []uuid.UUID{f.sender.UserID}

	_, err := f.service.Send(context.Background(), f.stream, f.sender, "money talks", 100_00)
	assert.ErrorIs(t, err, ErrBanned)
	assert.Zero(t, f.tips.recorded)
}

func TestHistoryRendersRelativeTimestamps(t *testing.T) {
	f := newChatFixture(t)
	f.messages.inserted = []models.ChatMessage{
		{Message: "old", CreatedAt: f.clock.Add(-2 * time.Hour)},
		{Message: "recent", CreatedAt: f.clock.Add(-30 * time.Second)},
	}

	views, err := f.service.History(context.Background(), f.stream.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "2h ago", views[0].TimeAgo)
	assert.Equal(t, "Just now", views[1].TimeAgo)
}
