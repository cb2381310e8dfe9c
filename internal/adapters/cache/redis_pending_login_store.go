package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vittapay/portal-gateway/internal/ports"
)

// RedisPendingLoginStore keeps in-progress OTP logins in Redis. The TTL is
// aligned with the backend's OTP expiry so stale pending state cannot outlive
// the code it belongs to.
type RedisPendingLoginStore struct {
	client *redis.Client
}

func NewRedisPendingLoginStore(client *redis.Client) *RedisPendingLoginStore {
	return &RedisPendingLoginStore{client: client}
}

func (s *RedisPendingLoginStore) Put(ctx context.Context, identity string, pending ports.PendingLogin, ttl time.Duration) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, "portal:pending:"+identity, raw, ttl).Err()
}

func (s *RedisPendingLoginStore) Get(ctx context.Context, identity string) (*ports.PendingLogin, error) {
	raw, err := s.client.Get(ctx, "portal:pending:"+identity).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out ports.PendingLogin
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *RedisPendingLoginStore) Delete(ctx context.Context, identity string) error {
	return s.client.Del(ctx, "portal:pending:"+identity).Err()
}
