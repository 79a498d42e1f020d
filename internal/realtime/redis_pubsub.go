package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event names fanned out to stream watchers, over the socket and across
// instances through Redis.
const (
	EventChatMessage     = "chat_message"
	EventViewerCount     = "viewer_count"
	EventSettingsUpdated = "settings_updated"
	EventStreamEnded     = "stream_ended"
)

const (
	channelPrefix  = "stream:"
	publishTimeout = 5 * time.Second
)

// envelope wraps a stream event on the Redis wire. Stream carries the source
// channel's stream so a mispublished message is detectable, At the publish
// time in unix seconds.
type envelope struct {
	Stream uuid.UUID       `json:"stream"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	At     int64           `json:"at"`
}

// RedisPubSub bridges stream events between instances over Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for stream events.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

func streamChannel(streamID uuid.UUID) string {
	return channelPrefix + streamID.String()
}

// PublishStreamEvent publishes an event to the stream's Redis channel.
func (r *RedisPubSub) PublishStreamEvent(streamID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(envelope{
		Stream: streamID,
		Event:  event,
		Data:   payload,
		At:     time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, streamChannel(streamID), body).Err()
}

// SubscribeStream subscribes to a stream's Redis channel and calls handler for
// each event. Malformed or misrouted envelopes are dropped with a warning.
// Returns a cancel function that stops the subscription.
func (r *RedisPubSub) SubscribeStream(streamID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, streamChannel(streamID))
	if _, err = pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e envelope
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil || e.Event == "" {
					r.logger.Warn("drop malformed stream event",
						zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if e.Stream != streamID {
					r.logger.Warn("drop misrouted stream event",
						zap.String("channel", msg.Channel), zap.String("stream", e.Stream.String()))
					continue
				}
				handler(e.Event, e.Data)
			}
		}
	}()
	return func() { cancelCtx() }, nil
}
