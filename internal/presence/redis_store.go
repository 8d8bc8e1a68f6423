package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eduline/chat-gateway/internal/domain"
	"github.com/eduline/chat-gateway/pkg/log"
)

// Redis key pattern:
// presence:{user_id}   STRING<json PresenceRecord>  - expires with the TTL

func presenceKey(userID int64) string {
	return fmt.Sprintf("presence:%d", userID)
}

// redisStore implements Store using Redis string keys with TTLs.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed presence store on an existing
// client. The caller owns the client's lifecycle.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Set(ctx context.Context, rec domain.PresenceRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, presenceKey(rec.UserID), string(data), ttl).Err()
}

func (s *redisStore) Get(ctx context.Context, userID int64) (*domain.PresenceRecord, error) {
	data, err := s.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec domain.PresenceRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *redisStore) GetMulti(ctx context.Context, userIDs []int64) (map[int64]domain.PresenceRecord, error) {
	if len(userIDs) == 0 {
		return map[int64]domain.PresenceRecord{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make(map[int64]domain.PresenceRecord, len(userIDs))
	for i, v := range values {
		if v == nil {
			continue
		}
		str, ok := v.(string)
		if !ok {
			continue
		}
		var rec domain.PresenceRecord
		if err := json.Unmarshal([]byte(str), &rec); err != nil {
			l := log.L()
			l.Warn().Err(err).Int64(log.FieldUserID, userIDs[i]).Msg("corrupt presence record, skipping")
			continue
		}
		records[userIDs[i]] = rec
	}
	return records, nil
}

func (s *redisStore) Refresh(ctx context.Context, userID int64, ttl time.Duration) (bool, error) {
	ok, err := s.client.Expire(ctx, presenceKey(userID), ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
