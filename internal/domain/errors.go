package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether the identity or the password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidOTP signals a rejected one-time code. It is fatal to the current
	// verify attempt; the pending login itself stays alive until its TTL.
	ErrInvalidOTP = errors.New("invalid otp")
	// ErrUserNotFound is surfaced when the reseller backend reports no account
	// for the mobile number an OTP was requested for.
	ErrUserNotFound = errors.New("user not found")
	// ErrPendingApproval means the account authenticated but has not been
	// approved by an administrator. Retrying will not help, so this is kept
	// distinct from ErrInvalidCredentials all the way to the user.
	ErrPendingApproval = errors.New("account pending approval")
	// ErrDuplicateMobile is returned when registration collides with an
	// existing account on the same mobile number.
	ErrDuplicateMobile = errors.New("mobile number already registered")
	// ErrValidation covers input rejected before any network call is made.
	ErrValidation = errors.New("invalid input")
	// ErrConnection marks transport-level failures (timeout, DNS, refused).
	// It is the only retryable kind and must never be conflated with a
	// business rejection.
	ErrConnection = errors.New("backend unreachable")
	// ErrCaptchaMismatch signals a wrong or expired captcha answer.
	ErrCaptchaMismatch = errors.New("captcha mismatch")
	// ErrAttemptInFlight guards against a second concurrent submit through
	// the same login attempt.
	ErrAttemptInFlight = errors.New("operation already in flight")
	// ErrNoPendingLogin means verify was called without a prior successful
	// OTP request for the identity in the current attempt.
	ErrNoPendingLogin = errors.New("no pending login for identity")
	// ErrAttemptSuperseded marks a completion that arrived after the attempt
	// was abandoned or replaced. Its result is discarded, never applied.
	ErrAttemptSuperseded = errors.New("login attempt superseded")

	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknown      = errors.New("unknown backend failure")
)
