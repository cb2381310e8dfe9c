package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vittapay/portal-gateway/internal/domain"
)

// RedisCaptchaStore holds answer hashes for server-issued captcha
// challenges. Consume is destructive so a challenge id can be answered once.
type RedisCaptchaStore struct {
	client *redis.Client
}

func NewRedisCaptchaStore(client *redis.Client) *RedisCaptchaStore {
	return &RedisCaptchaStore{client: client}
}

func (s *RedisCaptchaStore) Put(ctx context.Context, challengeID, answerHash string, ttl time.Duration) error {
	return s.client.Set(ctx, "portal:captcha:"+challengeID, answerHash, ttl).Err()
}

func (s *RedisCaptchaStore) Consume(ctx context.Context, challengeID string) (string, error) {
	hash, err := s.client.GetDel(ctx, "portal:captcha:"+challengeID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return hash, nil
}
