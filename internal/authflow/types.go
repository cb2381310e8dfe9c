package authflow

import (
	"time"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// Portal identifies which role-scoped shell a login attempt belongs to.
type Portal string

const (
	PortalRetailer    Portal = "retailer"
	PortalDistributor Portal = "distributor"
	PortalSuperAdmin  Portal = "superadmin"
)

// ParsePortal degrades unknown values to the retailer portal, mirroring the
// dispatcher's default rule.
func ParsePortal(raw string) Portal {
	switch Portal(raw) {
	case PortalDistributor:
		return PortalDistributor
	case PortalSuperAdmin:
		return PortalSuperAdmin
	default:
		return PortalRetailer
	}
}

// ExpectedRole is the role a portal's login form authenticates against.
func (p Portal) ExpectedRole() domain.Role {
	switch p {
	case PortalDistributor:
		return domain.RoleDistributor
	case PortalSuperAdmin:
		return domain.RoleSuperDistributor
	default:
		return domain.RoleRetailer
	}
}

// Config tunes flow behavior. Zero values fall back to the defaults set by
// NewFlow.
type Config struct {
	// OTPPendingTTL bounds a pending login's lifetime. The backend owns the
	// real OTP expiry; this only keeps the cache from outliving it.
	OTPPendingTTL time.Duration
	// CaptchaTTL bounds an issued captcha challenge.
	CaptchaTTL time.Duration
	// RequireCaptcha gates password login behind a server-issued challenge.
	RequireCaptcha bool
	// LocationTimeout bounds the optional geolocation lookup; past it the
	// flow proceeds with no location recorded.
	LocationTimeout time.Duration
	// TokenTTL is the portal session token lifetime.
	TokenTTL time.Duration
}

// PasswordLoginInput is one password-based submit.
type PasswordLoginInput struct {
	Portal        Portal
	Identity      string
	Password      string
	CaptchaID     string
	CaptchaAnswer string
	Location      *domain.Location
	IPAddress     string
	UserAgent     string
}

// VerifyOTPInput is one code-verification submit for a pending login.
type VerifyOTPInput struct {
	Portal    Portal
	Identity  string
	Code      string
	Location  *domain.Location
	IPAddress string
	UserAgent string
}

// LoginResult is the terminal AUTHENTICATED payload: the committed session,
// the gateway's signed portal token, and the landing route the dispatcher
// chose for the role.
type LoginResult struct {
	Session     domain.Session
	PortalToken string
	Route       string
}

// OTPPending describes the OTP_PENDING state handed back to the form after a
// successful code dispatch.
type OTPPending struct {
	Identity     string
	BusinessName string
	RequestedAt  time.Time
}

// CaptchaChallenge is the public half of a server-issued challenge; the
// expected answer stays hashed on the gateway.
type CaptchaChallenge struct {
	ChallengeID string
	DisplayText string
	ExpiresAt   time.Time
}
