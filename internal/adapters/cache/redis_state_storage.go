package cache

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/vittapay/portal-gateway/internal/domain"
)

const stateKey = "portal:appstate"

// RedisStateStorage persists the application record as one Redis value, for
// deployments where the gateway restarts or runs more than one replica. The
// whole-object-replace contract of the store maps directly onto SET.
type RedisStateStorage struct {
	client *redis.Client
}

func NewRedisStateStorage(client *redis.Client) *RedisStateStorage {
	return &RedisStateStorage{client: client}
}

func (s *RedisStateStorage) Load(ctx context.Context) (domain.AppState, bool, error) {
	raw, err := s.client.Get(ctx, stateKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.EmptyState(), false, nil
		}
		return domain.EmptyState(), false, err
	}
	var state domain.AppState
	if err := json.Unmarshal(raw, &state); err != nil {
		// Malformed storage is treated as no session, not as a failure.
		return domain.EmptyState(), false, nil
	}
	return state, true, nil
}

func (s *RedisStateStorage) Save(ctx context.Context, state domain.AppState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, stateKey, raw, 0).Err()
}
