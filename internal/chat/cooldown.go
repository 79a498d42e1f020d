package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// cooldownTracker remembers when each sender's last message was accepted.
// The cooldown clock starts at the last accepted message, so a rejected send
// does not push the window out.
type cooldownTracker struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

func newCooldownTracker() *cooldownTracker {
	return &cooldownTracker{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

func cooldownKey(streamID, userID uuid.UUID) string {
	return streamID.String() + ":" + userID.String()
}

// remaining returns how long the sender must still wait under the given
// cooldown window, zero when clear to send.
func (c *cooldownTracker) remaining(streamID, userID uuid.UUID, window time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.last[cooldownKey(streamID, userID)]
	if !ok {
		return 0
	}
	if left := window - c.now().Sub(last); left > 0 {
		return left
	}
	return 0
}

// mark records an accepted message, restarting the sender's cooldown window.
func (c *cooldownTracker) mark(streamID, userID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[cooldownKey(streamID, userID)] = c.now()
}

// forgetStream drops cooldown state for a stream that ended.
func (c *cooldownTracker) forgetStream(streamID uuid.UUID) {
	prefix := streamID.String() + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.last {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			delete(c.last, k)
		}
	}
}
