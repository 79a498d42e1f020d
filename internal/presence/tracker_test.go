package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tiktik-live/backend/internal/models"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu      sync.Mutex
	leases  map[uuid.UUID]map[uuid.UUID]time.Time
	viewers map[uuid.UUID]map[uuid.UUID]models.Viewer
	counts  map[uuid.UUID]int64
}

func newMemStore() *memStore {
	return &memStore{
		leases:  make(map[uuid.UUID]map[uuid.UUID]time.Time),
		viewers: make(map[uuid.UUID]map[uuid.UUID]models.Viewer),
		counts:  make(map[uuid.UUID]int64),
	}
}

func (m *memStore) AddMember(_ context.Context, streamID uuid.UUID, viewer models.Viewer, expiry time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.leases[streamID] == nil {
		m.leases[streamID] = make(map[uuid.UUID]time.Time)
		m.viewers[streamID] = make(map[uuid.UUID]models.Viewer)
	}
	_, exists := m.leases[streamID][viewer.UserID]
	m.leases[streamID][viewer.UserID] = expiry
	m.viewers[streamID][viewer.UserID] = viewer
	return !exists, nil
}

func (m *memStore) RefreshMember(_ context.Context, streamID, userID uuid.UUID, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leases[streamID][userID]; ok {
		m.leases[streamID][userID] = expiry
	}
	return nil
}

func (m *memStore) RemoveMember(_ context.Context, streamID, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.leases[streamID][userID]; !ok {
		return false, nil
	}
	delete(m.leases[streamID], userID)
	delete(m.viewers[streamID], userID)
	return true, nil
}

func (m *memStore) ExpiredMembers(_ context.Context, streamID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for id, exp := range m.leases[streamID] {
		if exp.Before(now) {
			out = append(out, id)
			delete(m.leases[streamID], id)
			delete(m.viewers[streamID], id)
		}
	}
	return out, nil
}

func (m *memStore) Members(_ context.Context, streamID uuid.UUID) ([]models.Viewer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Viewer, 0, len(m.viewers[streamID]))
	for _, v := range m.viewers[streamID] {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) MemberCount(_ context.Context, streamID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.leases[streamID])), nil
}

func (m *memStore) AdjustCount(_ context.Context, streamID uuid.UUID, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[streamID] += delta
	if m.counts[streamID] < 0 {
		m.counts[streamID] = 0
	}
	return m.counts[streamID], nil
}

func (m *memStore) Count(_ context.Context, streamID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[streamID], nil
}

func (m *memStore) SetCount(_ context.Context, streamID uuid.UUID, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[streamID] = value
	return nil
}

func (m *memStore) TrackedStreams(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, 0, len(m.leases))
	for id := range m.leases {
		out = append(out, id)
	}
	return out, nil
}

func (m *memStore) Forget(_ context.Context, streamID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.leases, streamID)
	delete(m.viewers, streamID)
	delete(m.counts, streamID)
	return nil
}

func newTestTracker(store Store, ttl time.Duration) *Tracker {
	return NewTracker(store, ttl, zap.NewNop(), nil)
}

func viewer() models.Viewer {
	return models.Viewer{UserID: uuid.New(), UserName: "viewer"}
}

func TestJoinIsIdempotent(t *testing.T) {
	tr := newTestTracker(newMemStore(), time.Minute)
	streamID := uuid.New()
	v := viewer()

	count, err := tr.Join(context.Background(), streamID, v)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = tr.Join(context.Background(), streamID, v)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "re-join must not bump the count")
}

func TestLeaveWhenAbsentIsNoop(t *testing.T) {
	tr := newTestTracker(newMemStore(), time.Minute)
	streamID := uuid.New()

	count, err := tr.Leave(context.Background(), streamID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestCountNeverNegative(t *testing.T) {
	tr := newTestTracker(newMemStore(), time.Minute)
	streamID := uuid.New()
	v := viewer()

	_, err := tr.Join(context.Background(), streamID, v)
	require.NoError(t, err)
	_, err = tr.Leave(context.Background(), streamID, v.UserID)
	require.NoError(t, err)
	count, err := tr.Leave(context.Background(), streamID, v.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestSweepReclaimsExpiredLeases(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, 50*time.Millisecond)
	streamID := uuid.New()

	var notified []int64
	tr.SetCountHandler(func(_ uuid.UUID, count int64) {
		notified = append(notified, count)
	})

	_, err := tr.Join(context.Background(), streamID, viewer())
	require.NoError(t, err)
	_, err = tr.Join(context.Background(), streamID, viewer())
	require.NoError(t, err)

	// Move the clock past every lease.
	tr.now = func() time.Time { return time.Now().Add(time.Hour) }
	tr.Sweep(context.Background())

	count, err := tr.Count(context.Background(), streamID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	require.NotEmpty(t, notified)
	assert.Equal(t, int64(0), notified[len(notified)-1])
}

func TestHeartbeatExtendsLease(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, time.Minute)
	streamID := uuid.New()
	v := viewer()

	_, err := tr.Join(context.Background(), streamID, v)
	require.NoError(t, err)

	// Heartbeat pushes the lease past the sweep horizon.
	tr.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
	require.NoError(t, tr.Heartbeat(context.Background(), streamID, v.UserID))

	// Sweep after the original lease would have expired but before the
	// refreshed one does.
	sweepAt := time.Now().Add(15 * time.Minute)
	tr.now = func() time.Time { return sweepAt }
	tr.Sweep(context.Background())

	count, err := tr.Count(context.Background(), streamID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSweepReconcilesDriftedCounter(t *testing.T) {
	store := newMemStore()
	tr := newTestTracker(store, time.Minute)
	streamID := uuid.New()

	_, err := tr.Join(context.Background(), streamID, viewer())
	require.NoError(t, err)
	// Simulate counter drift.
	require.NoError(t, store.SetCount(context.Background(), streamID, 40))

	tr.Sweep(context.Background())

	count, err := tr.Count(context.Background(), streamID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCountMatchesJoinsMinusLeaves(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("count equals distinct joins minus leaves", prop.ForAll(
		func(joins int, leaves int) bool {
			tr := newTestTracker(newMemStore(), time.Minute)
			streamID := uuid.New()
			ctx := context.Background()

			viewers := make([]models.Viewer, joins)
			for i := range viewers {
				viewers[i] = viewer()
				if _, err := tr.Join(ctx, streamID, viewers[i]); err != nil {
					return false
				}
			}
			if leaves > joins {
				leaves = joins
			}
			for i := 0; i < leaves; i++ {
				if _, err := tr.Leave(ctx, streamID, viewers[i].UserID); err != nil {
					return false
				}
			}
			count, err := tr.Count(ctx, streamID)
			return err == nil && count == int64(joins-leaves)
		},
		gen.IntRange(0, 25),
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t)
}
