package ports

import (
	"context"
	"time"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// PendingLogin is the transient envelope of an OTP flow that has dispatched a
// code but not verified it. It is never written to the persisted application
// state; it lives in a TTL cache bounded by the backend's OTP expiry.
type PendingLogin struct {
	AttemptID     string               `json:"attempt_id"`
	Identity      string               `json:"identity"`
	CandidateUser domain.CandidateUser `json:"candidate_user"`
	Method        domain.LoginMethod   `json:"method"`
	RequestedAt   time.Time            `json:"requested_at"`
}

// PendingLoginStore keeps in-progress OTP logins keyed by identity.
// Get returns nil without error when no pending login exists.
type PendingLoginStore interface {
	Put(ctx context.Context, identity string, pending PendingLogin, ttl time.Duration) error
	Get(ctx context.Context, identity string) (*PendingLogin, error)
	Delete(ctx context.Context, identity string) error
}

// CaptchaStore holds server-issued captcha challenges. Only an answer hash is
// stored; the expected text never leaves the gateway. Consume is one-shot:
// a second read of the same challenge id misses.
type CaptchaStore interface {
	Put(ctx context.Context, challengeID, answerHash string, ttl time.Duration) error
	Consume(ctx context.Context, challengeID string) (answerHash string, err error)
}
