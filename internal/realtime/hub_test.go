package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tiktik-live/backend/internal/models"
)

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishStreamEvent(_ uuid.UUID, event string, _ []byte) error {
	f.published = append(f.published, event)
	return nil
}

func newTestClient(streamID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New().String(),
		StreamID: streamID,
		Viewer:   models.Viewer{UserID: uuid.New()},
		send:     make(chan WSMessage, 8),
	}
}

func TestBroadcastReachesOnlyStreamClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil, nil)
	streamA, streamB := uuid.New(), uuid.New()

	a := newTestClient(streamA)
	b := newTestClient(streamB)
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastToStream(streamA, "viewer_count", map[string]int{"count": 3})

	select {
	case msg := <-a.send:
		assert.Equal(t, "viewer_count", msg.Event)
		var payload map[string]int
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		assert.Equal(t, 3, payload["count"])
	default:
		t.Fatal("client in stream A received nothing")
	}

	select {
	case msg := <-b.send:
		t.Fatalf("client in stream B received %q", msg.Event)
	default:
	}
}

func TestUnregisteredClientReceivesNothing(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil, nil)
	streamID := uuid.New()

	c := newTestClient(streamID)
	hub.Register(c)
	hub.Unregister(c)

	hub.BroadcastToStream(streamID, "chat_message", map[string]string{"message": "hi"})

	select {
	case msg := <-c.send:
		t.Fatalf("unregistered client received %q", msg.Event)
	default:
	}
	assert.Equal(t, 0, hub.ConnectionCount(streamID))
}

func TestBroadcastAndPublishForwardsToRedis(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(zap.NewNop(), nil, pub, nil)
	streamID := uuid.New()

	c := newTestClient(streamID)
	hub.Register(c)

	hub.BroadcastToStreamAndPublish(streamID, "stream_ended", map[string]string{})

	assert.Equal(t, []string{"stream_ended"}, pub.published)
	select {
	case msg := <-c.send:
		assert.Equal(t, "stream_ended", msg.Event)
	default:
		t.Fatal("local client received nothing")
	}
}

func TestPublishOnlySkipsLocalClients(t *testing.T) {
	pub := &fakePublisher{}
	hub := NewHub(zap.NewNop(), nil, pub, nil)
	streamID := uuid.New()

	c := newTestClient(streamID)
	hub.Register(c)

	hub.PublishToStreamOnly(streamID, "chat_message", map[string]string{"message": "hi"})

	assert.Equal(t, []string{"chat_message"}, pub.published)
	select {
	case msg := <-c.send:
		t.Fatalf("local client received %q before the subscriber callback", msg.Event)
	default:
	}
}

func TestViewerStillConnectedWithSecondTab(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil, nil)
	streamID := uuid.New()
	userID := uuid.New()

	tab1 := newTestClient(streamID)
	tab1.Viewer.UserID = userID
	tab2 := newTestClient(streamID)
	tab2.Viewer.UserID = userID
	hub.Register(tab1)
	hub.Register(tab2)

	assert.True(t, hub.viewerStillConnected(streamID, userID, tab1.ID))

	hub.Unregister(tab2)
	assert.False(t, hub.viewerStillConnected(streamID, userID, tab1.ID))
}

type failingSubscriber struct{}

func (failingSubscriber) SubscribeStream(uuid.UUID, func(event string, payload []byte)) (func(), error) {
	return nil, assert.AnError
}

func TestRegisterWarnsWhenSubscribeFails(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hub := NewHub(zap.New(core), nil, nil, failingSubscriber{})
	streamID := uuid.New()

	c := newTestClient(streamID)
	hub.Register(c)

	// The room still accepts local clients.
	assert.Equal(t, 1, hub.ConnectionCount(streamID))
	assert.Equal(t, 1, logs.FilterMessage("stream subscribe failed").Len())

	// Unregister must not call a cancel that was never stored.
	hub.Unregister(c)
	assert.Equal(t, 0, hub.ConnectionCount(streamID))
}
