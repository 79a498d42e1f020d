package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/internal/realtime"
	"github.com/tiktik-live/backend/pkg/metrics"
)

// Gating errors, in the order Send checks them.
var (
	ErrStreamNotLive  = errors.New("stream is not live")
	ErrBanned         = errors.New("you are banned from this chat")
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message is too long")
)

// TimedOutError is returned while a sender's timeout is still running.
type TimedOutError struct {
	Remaining time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("you are timed out for %d seconds", int(e.Remaining.Seconds()+0.999))
}

// CooldownError is returned when a sender is inside a cooldown or slow-mode
// window.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before sending another message", int(e.Remaining.Seconds()+0.999))
}

// MessageStore persists chat messages.
type MessageStore interface {
	Insert(ctx context.Context, m *models.ChatMessage) error
	ListRecent(ctx context.Context, streamID uuid.UUID, limit int) ([]models.ChatMessage, error)
}

// SettingsStore reads moderation settings.
type SettingsStore interface {
	Get(ctx context.Context, streamID uuid.UUID) (*models.ChatSettings, error)
}

// TimeoutChecker reports whether a sender is currently timed out and for how
// much longer.
type TimeoutChecker interface {
	Remaining(streamID, userID uuid.UUID) (time.Duration, bool)
}

// Broadcaster fans accepted messages out to stream watchers.
type Broadcaster interface {
	BroadcastToStreamAndPublish(streamID uuid.UUID, event string, payload interface{})
}

// TipRecorder charges a super chat to its sender, credits the stream owner,
// and appends the message, all atomically. The charge and the message commit
// or fail together.
type TipRecorder interface {
	RecordSuperChat(ctx context.Context, ownerID uuid.UUID, m *models.ChatMessage) error
}

// Config bounds the chat service.
type Config struct {
	MaxMessageLength int
	HistoryLimit     int
	DefaultCooldown  time.Duration
}

// Service enforces chat rules server-side and publishes accepted messages.
// Clients never write messages directly.
type Service struct {
	messages    MessageStore
	settings    SettingsStore
	timeouts    TimeoutChecker
	broadcaster Broadcaster
	tips        TipRecorder
	cooldowns   *cooldownTracker
	cfg         Config
	logger      *zap.Logger
	metrics     *metrics.Metrics

	now func() time.Time
}

// NewService creates a chat service.
func NewService(messages MessageStore, settings SettingsStore, timeouts TimeoutChecker,
	broadcaster Broadcaster, tips TipRecorder, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Service {
	return &Service{
		messages:    messages,
		settings:    settings,
		timeouts:    timeouts,
		broadcaster: broadcaster,
		tips:        tips,
		cooldowns:   newCooldownTracker(),
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		now:         time.Now,
	}
}

// MessageView is a chat message plus its display timestamp.
type MessageView struct {
	models.ChatMessage
	TimeAgo string `json:"time_ago"`
}

// Send validates and records a message. Checks run in a fixed order: ban,
// timeout, content, cooldown. A super chat skips the cooldown check but still
// restarts the sender's window on success; its wallet charge and message row
// commit in one transaction so a paid super chat can never go missing.
func (s *Service) Send(ctx context.Context, stream *models.Stream, sender models.Viewer, text string, superCents int64) (*MessageView, error) {
	if !stream.IsLive {
		return nil, ErrStreamNotLive
	}

	settings, err := s.settings.Get(ctx, stream.ID)
	if err != nil {
		return nil, fmt.Errorf("load chat settings: %w", err)
	}
	if settings.IsBanned(sender.UserID) {
		s.metrics.IncChatRejections("banned")
		return nil, ErrBanned
	}
	if remaining, ok := s.timeouts.Remaining(stream.ID, sender.UserID); ok {
		s.metrics.IncChatRejections("timed_out")
		return nil, &TimedOutError{Remaining: remaining}
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len([]rune(text)) > s.cfg.MaxMessageLength {
		s.metrics.IncChatRejections("too_long")
		return nil, ErrMessageTooLong
	}

	isSuper := superCents > 0
	if !isSuper {
		window := s.cfg.DefaultCooldown
		if settings.SlowModeEnabled {
			window = settings.SlowModeDuration()
		}
		if remaining := s.cooldowns.remaining(stream.ID, sender.UserID, window); remaining > 0 {
			s.metrics.IncChatRejections("cooldown")
			return nil, &CooldownError{Remaining: remaining}
		}
	}

	msg := &models.ChatMessage{
		StreamID:   stream.ID,
		UserID:     sender.UserID,
		UserName:   sender.UserName,
		UserAvatar: sender.AvatarURL,
		Message:    text,
	}
	if isSuper {
		msg.IsSuperChat = true
		msg.AmountCents = superCents
		msg.HighlightColor = SuperChatColor(superCents)
		if err := s.tips.RecordSuperChat(ctx, stream.OwnerID, msg); err != nil {
			return nil, err
		}
	} else if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	s.cooldowns.mark(stream.ID, sender.UserID)

	kind := "message"
	if isSuper {
		kind = "super_chat"
	}
	s.metrics.IncChatMessages(kind)

	view := &MessageView{ChatMessage: *msg, TimeAgo: FormatRelative(msg.CreatedAt, s.now())}
	s.broadcaster.BroadcastToStreamAndPublish(stream.ID, realtime.EventChatMessage, view)
	return view, nil
}

// History returns the most recent messages, oldest first, with display
// timestamps rendered against the current time.
func (s *Service) History(ctx context.Context, streamID uuid.UUID) ([]MessageView, error) {
	list, err := s.messages.ListRecent(ctx, streamID, s.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	now := s.now()
	views := make([]MessageView, len(list))
	for i, m := range list {
		views[i] = MessageView{ChatMessage: m, TimeAgo: FormatRelative(m.CreatedAt, now)}
	}
	return views, nil
}

// ForgetStream drops in-memory send state once a stream ends.
func (s *Service) ForgetStream(streamID uuid.UUID) {
	s.cooldowns.forgetStream(streamID)
}
