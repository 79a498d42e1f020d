package presence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tiktik-live/backend/internal/models"
)

// Store is the shared presence state. Members are held under a lease that the
// client must refresh; expired leases are reclaimed by the sweeper.
type Store interface {
	// AddMember registers a viewer with a lease expiring at expiry. It
	// reports whether the member was newly created (false on re-join).
	AddMember(ctx context.Context, streamID uuid.UUID, viewer models.Viewer, expiry time.Time) (created bool, err error)

	// RefreshMember extends an existing member's lease. Unknown members are
	// not created.
	RefreshMember(ctx context.Context, streamID, userID uuid.UUID, expiry time.Time) error

	// RemoveMember drops a viewer and reports whether it was present.
	RemoveMember(ctx context.Context, streamID, userID uuid.UUID) (removed bool, err error)

	// ExpiredMembers removes and returns every member whose lease expired
	// before now.
	ExpiredMembers(ctx context.Context, streamID uuid.UUID, now time.Time) ([]uuid.UUID, error)

	// Members returns the current viewer roster.
	Members(ctx context.Context, streamID uuid.UUID) ([]models.Viewer, error)

	// MemberCount returns the size of the member set. This is the ground
	// truth the counter is reconciled against.
	MemberCount(ctx context.Context, streamID uuid.UUID) (int64, error)

	// AdjustCount atomically adds delta to the viewer counter and returns
	// the new value, floored at zero.
	AdjustCount(ctx context.Context, streamID uuid.UUID, delta int64) (int64, error)

	// Count returns the current viewer counter.
	Count(ctx context.Context, streamID uuid.UUID) (int64, error)

	// SetCount overwrites the viewer counter, used when reconciling the
	// counter against the member set.
	SetCount(ctx context.Context, streamID uuid.UUID, value int64) error

	// TrackedStreams lists streams with presence state, for the sweeper.
	TrackedStreams(ctx context.Context) ([]uuid.UUID, error)

	// Forget drops all presence state for a stream once it has no members.
	Forget(ctx context.Context, streamID uuid.UUID) error
}
