package ports

import (
	"context"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// BackendClient wraps the remote reseller backend's authentication contract.
// Implementations translate every outcome into the domain error taxonomy:
// transport problems surface as domain.ErrConnection, business rejections as
// their specific sentinel. The client never touches the persisted store; the
// auth flow applies results so there is a single write path.
type BackendClient interface {
	// LoginWithPassword exchanges identity+password for a session in one
	// round trip. The returned session has not passed the approval gate yet.
	LoginWithPassword(ctx context.Context, identity, password string, role domain.Role, loc *domain.Location) (domain.Session, error)

	// RequestOTP triggers backend OTP dispatch for the mobile number and
	// returns the unconfirmed candidate profile.
	RequestOTP(ctx context.Context, mobile string) (domain.CandidateUser, error)

	// VerifyOTP exchanges the one-time code for a session.
	VerifyOTP(ctx context.Context, identity, code string, loc *domain.Location) (domain.Session, error)

	// SendMobileOTP dispatches a bare verification code with no login intent,
	// used during registration mobile confirmation.
	SendMobileOTP(ctx context.Context, mobile string) error

	// Register submits an applicant and returns the server-issued tracking
	// id. Registration never auto-authenticates.
	Register(ctx context.Context, req domain.RegistrationRequest) (string, error)

	// ForgotPassword triggers an identity-verified credential reset.
	ForgotPassword(ctx context.Context, mobile, dob string) error
}
