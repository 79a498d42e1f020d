package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tiktik-live/backend/internal/models"
	"github.com/tiktik-live/backend/pkg/redis"
)

// Redis key layout:
//
//	presence:{stream}          ZSET  member=userID score=lease expiry (unix)
//	presence:{stream}:viewers  HASH  field=userID value=viewer JSON
//	presence:{stream}:count    INT   viewer counter
//	presence:streams           SET   stream IDs with presence state
const (
	keyStreamsSet = "presence:streams"
)

func keyLeases(streamID uuid.UUID) string {
	return "presence:" + streamID.String()
}

func keyViewers(streamID uuid.UUID) string {
	return "presence:" + streamID.String() + ":viewers"
}

func keyCount(streamID uuid.UUID) string {
	return "presence:" + streamID.String() + ":count"
}

// RedisStore implements Store on Redis, so presence is shared across server
// instances and survives a server restart.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed presence store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) AddMember(ctx context.Context, streamID uuid.UUID, viewer models.Viewer, expiry time.Time) (bool, error) {
	data, err := json.Marshal(viewer)
	if err != nil {
		return false, fmt.Errorf("marshal viewer: %w", err)
	}
	added, err := s.client.ZAddNX(ctx, keyLeases(streamID), goredis.Z{
		Score:  float64(expiry.Unix()),
		Member: viewer.UserID.String(),
	}).Result()
	if err != nil {
		return false, err
	}
	if added == 0 {
		// Already present: treat as a lease refresh.
		if err := s.RefreshMember(ctx, streamID, viewer.UserID, expiry); err != nil {
			return false, err
		}
	}
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, keyViewers(streamID), viewer.UserID.String(), data)
	pipe.SAdd(ctx, keyStreamsSet, streamID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return added == 1, nil
}

func (s *RedisStore) RefreshMember(ctx context.Context, streamID, userID uuid.UUID, expiry time.Time) error {
	return s.client.ZAddXX(ctx, keyLeases(streamID), goredis.Z{
		Score:  float64(expiry.Unix()),
		Member: userID.String(),
	}).Err()
}

func (s *RedisStore) RemoveMember(ctx context.Context, streamID, userID uuid.UUID) (bool, error) {
	removed, err := s.client.ZRem(ctx, keyLeases(streamID), userID.String()).Result()
	if err != nil {
		return false, err
	}
	if err := s.client.HDel(ctx, keyViewers(streamID), userID.String()).Err(); err != nil {
		return false, err
	}
	return removed == 1, nil
}

func (s *RedisStore) ExpiredMembers(ctx context.Context, streamID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	max := strconv.FormatInt(now.Unix(), 10)
	members, err := s.client.ZRangeByScore(ctx, keyLeases(streamID), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + max,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(members))
	fields := make([]string, len(members))
	ids := make([]uuid.UUID, 0, len(members))
	for i, m := range members {
		args[i] = m
		fields[i] = m
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	pipe := s.client.Pipeline()
	pipe.ZRem(ctx, keyLeases(streamID), args...)
	pipe.HDel(ctx, keyViewers(streamID), fields...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *RedisStore) Members(ctx context.Context, streamID uuid.UUID) ([]models.Viewer, error) {
	raw, err := s.client.HGetAll(ctx, keyViewers(streamID)).Result()
	if err != nil {
		return nil, err
	}
	viewers := make([]models.Viewer, 0, len(raw))
	for _, data := range raw {
		var v models.Viewer
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			continue
		}
		viewers = append(viewers, v)
	}
	return viewers, nil
}

func (s *RedisStore) MemberCount(ctx context.Context, streamID uuid.UUID) (int64, error) {
	return s.client.ZCard(ctx, keyLeases(streamID)).Result()
}

func (s *RedisStore) AdjustCount(ctx context.Context, streamID uuid.UUID, delta int64) (int64, error) {
	val, err := s.client.IncrBy(ctx, keyCount(streamID), delta).Result()
	if err != nil {
		return 0, err
	}
	if val < 0 {
		if err := s.client.Set(ctx, keyCount(streamID), 0, 0).Err(); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return val, nil
}

func (s *RedisStore) Count(ctx context.Context, streamID uuid.UUID) (int64, error) {
	val, err := s.client.Get(ctx, keyCount(streamID)).Int64()
	if err == goredis.Nil {
		return 0, nil
	}
	return val, err
}

func (s *RedisStore) SetCount(ctx context.Context, streamID uuid.UUID, value int64) error {
	return s.client.Set(ctx, keyCount(streamID), value, 0).Err()
}

func (s *RedisStore) TrackedStreams(ctx context.Context) ([]uuid.UUID, error) {
	members, err := s.client.SMembers(ctx, keyStreamsSet).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *RedisStore) Forget(ctx context.Context, streamID uuid.UUID) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, keyLeases(streamID), keyViewers(streamID), keyCount(streamID))
	pipe.SRem(ctx, keyStreamsSet, streamID.String())
	_, err := pipe.Exec(ctx)
	return err
}
