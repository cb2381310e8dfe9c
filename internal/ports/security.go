package ports

import (
	"time"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// PortalClaims is the gateway's own session assertion. It wraps the backend's
// opaque token so route guards and sibling services can validate a session
// without another backend round trip.
type PortalClaims struct {
	UserID    string
	Role      domain.Role
	Mobile    string
	Portal    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenSigner signs and validates portal session tokens.
type TokenSigner interface {
	Sign(claims PortalClaims) (string, error)
	ParseAndValidate(token string) (PortalClaims, error)
}

// AnswerHasher hashes and checks captcha answers. Hashing lives behind a port
// so the application layer stays crypto-library agnostic.
type AnswerHasher interface {
	Hash(answer string) (string, error)
	Compare(hash, answer string) error
}
