// Package authflow sequences login, registration, and recovery attempts for
// the three portal shells. It is the only component allowed to commit a
// session to the persisted store and the only one that maps backend results
// onto state transitions, so every rejected branch ends in exactly one typed
// error and never a silent failure.
package authflow

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vittapay/portal-gateway/internal/dispatch"
	"github.com/vittapay/portal-gateway/internal/domain"
	"github.com/vittapay/portal-gateway/internal/ports"
	"github.com/vittapay/portal-gateway/internal/store"
)

const (
	eventLoginSucceeded         = "portal.login.succeeded"
	eventLoginFailed            = "portal.login.failed"
	eventRegistrationSubmitted  = "portal.registration.submitted"
	eventPasswordResetRequested = "portal.password_reset.requested"
)

// LocationResolver supplies a device location when the form did not send one.
// Lookups are bounded by Config.LocationTimeout; failure is not fatal.
type LocationResolver interface {
	Resolve(ctx context.Context) (*domain.Location, error)
}

// Flow drives one portal's credentials -> otp -> authenticated transitions.
type Flow struct {
	cfg      Config
	backend  ports.BackendClient
	store    *store.Store
	pending  ports.PendingLoginStore
	captchas ports.CaptchaStore
	hasher   ports.AnswerHasher
	signer   ports.TokenSigner
	audit    ports.AuditRepository
	outbox   ports.OutboxRepository
	locator  LocationResolver
	logger   *slog.Logger
	nowFn    func() time.Time

	guard *attemptGuard
}

// Dependencies wires the flow. Audit, Outbox, and Locator are optional;
// everything else is required.
type Dependencies struct {
	Config   Config
	Backend  ports.BackendClient
	Store    *store.Store
	Pending  ports.PendingLoginStore
	Captchas ports.CaptchaStore
	Hasher   ports.AnswerHasher
	Signer   ports.TokenSigner
	Audit    ports.AuditRepository
	Outbox   ports.OutboxRepository
	Locator  LocationResolver
	Logger   *slog.Logger
}

// NewFlow constructs the state machine with defaulted timings.
func NewFlow(deps Dependencies) *Flow {
	cfg := deps.Config
	if cfg.OTPPendingTTL <= 0 {
		cfg.OTPPendingTTL = 5 * time.Minute
	}
	if cfg.CaptchaTTL <= 0 {
		cfg.CaptchaTTL = 2 * time.Minute
	}
	if cfg.LocationTimeout <= 0 {
		cfg.LocationTimeout = 4 * time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 12 * time.Hour
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		cfg:      cfg,
		backend:  deps.Backend,
		store:    deps.Store,
		pending:  deps.Pending,
		captchas: deps.Captchas,
		hasher:   deps.Hasher,
		signer:   deps.Signer,
		audit:    deps.Audit,
		outbox:   deps.Outbox,
		locator:  deps.Locator,
		logger:   logger,
		nowFn:    func() time.Time { return time.Now().UTC() },
		guard:    newAttemptGuard(),
	}
}

// LoginWithPassword runs the single-round-trip password exchange, then the
// approval gate, then commits. A non-approved account is a PendingApproval
// failure even when the backend hands back a token.
func (f *Flow) LoginWithPassword(ctx context.Context, in PasswordLoginInput) (LoginResult, error) {
	identity := strings.TrimSpace(in.Identity)
	if identity == "" || in.Password == "" {
		return LoginResult{}, fmt.Errorf("%w: identity and password are required", domain.ErrValidation)
	}
	if f.cfg.RequireCaptcha {
		if err := f.checkCaptcha(ctx, in.CaptchaID, in.CaptchaAnswer); err != nil {
			return LoginResult{}, err
		}
	}

	gen, release, err := f.guard.beginNew(identity)
	if err != nil {
		return LoginResult{}, err
	}
	defer release()

	// Starting a fresh attempt invalidates any pending OTP state so partial
	// state from an earlier flow cannot leak into this one.
	_ = f.pending.Delete(ctx, identity)

	loc := f.resolveLocation(ctx, in.Location)
	session, err := f.backend.LoginWithPassword(ctx, identity, in.Password, in.Portal.ExpectedRole(), loc)
	if err != nil {
		f.recordFailure(ctx, identity, in.Portal, domain.MethodPassword, in.IPAddress, in.UserAgent, err)
		return LoginResult{}, err
	}
	return f.finishLogin(ctx, gen, identity, in.Portal, domain.MethodPassword, session, in.IPAddress, in.UserAgent)
}

// RequestOTP starts an OTP attempt: a successful dispatch is the only way
// into OTP_PENDING, and the candidate profile is retained so verification
// never re-asks the user who they are.
func (f *Flow) RequestOTP(ctx context.Context, portal Portal, mobile string) (OTPPending, error) {
	if err := domain.ValidateMobile(mobile); err != nil {
		return OTPPending{}, err
	}
	mobile = strings.TrimSpace(mobile)

	_, release, err := f.guard.beginNew(mobile)
	if err != nil {
		return OTPPending{}, err
	}
	defer release()

	candidate, err := f.backend.RequestOTP(ctx, mobile)
	if err != nil {
		f.recordFailure(ctx, mobile, portal, domain.MethodOTP, "", "", err)
		return OTPPending{}, err
	}

	now := f.nowFn()
	pendingLogin := ports.PendingLogin{
		AttemptID:     uuid.NewString(),
		Identity:      mobile,
		CandidateUser: candidate,
		Method:        domain.MethodOTP,
		RequestedAt:   now,
	}
	if err := f.pending.Put(ctx, mobile, pendingLogin, f.cfg.OTPPendingTTL); err != nil {
		return OTPPending{}, fmt.Errorf("store pending login: %w", err)
	}
	return OTPPending{
		Identity:     mobile,
		BusinessName: candidate.BusinessName,
		RequestedAt:  now,
	}, nil
}

// VerifyOTP exchanges the code for a session. A wrong code is fatal to this
// verify call but leaves the machine in OTP_PENDING; the user may re-enter
// the code until the pending login expires. The machine never retries a
// rejected code on its own.
func (f *Flow) VerifyOTP(ctx context.Context, in VerifyOTPInput) (LoginResult, error) {
	identity := strings.TrimSpace(in.Identity)
	if identity == "" || strings.TrimSpace(in.Code) == "" {
		return LoginResult{}, fmt.Errorf("%w: mobile and otp are required", domain.ErrValidation)
	}

	gen, release, err := f.guard.beginExisting(identity)
	if err != nil {
		return LoginResult{}, err
	}
	defer release()

	pendingLogin, err := f.pending.Get(ctx, identity)
	if err != nil {
		return LoginResult{}, fmt.Errorf("read pending login: %w", err)
	}
	if pendingLogin == nil {
		return LoginResult{}, domain.ErrNoPendingLogin
	}

	loc := f.resolveLocation(ctx, in.Location)
	session, err := f.backend.VerifyOTP(ctx, identity, strings.TrimSpace(in.Code), loc)
	if err != nil {
		// OTP_PENDING survives a rejected code; only transport errors and
		// rejections are reported, nothing is retried silently.
		f.recordFailure(ctx, identity, in.Portal, domain.MethodOTP, in.IPAddress, in.UserAgent, err)
		return LoginResult{}, err
	}

	// The backend's verify response can be thinner than the request step;
	// backfill from the retained candidate before gating.
	if session.BusinessName == "" {
		session.BusinessName = pendingLogin.CandidateUser.BusinessName
	}
	if session.UserID == "" {
		session.UserID = pendingLogin.CandidateUser.UserID
	}

	result, err := f.finishLogin(ctx, gen, identity, in.Portal, domain.MethodOTP, session, in.IPAddress, in.UserAgent)
	if err != nil {
		return LoginResult{}, err
	}
	// Promotion succeeded: the pending login is consumed.
	_ = f.pending.Delete(ctx, identity)
	return result, nil
}

// Back abandons an OTP attempt and returns the form to CREDENTIALS. Any
// in-flight completion for the old attempt is superseded and will be
// discarded instead of applied.
func (f *Flow) Back(ctx context.Context, identity string) {
	identity = strings.TrimSpace(identity)
	f.guard.supersede(identity)
	_ = f.pending.Delete(ctx, identity)
}

// Register validates locally, submits once, and returns the backend tracking
// id. The agreement gate rejects before any network call.
func (f *Flow) Register(ctx context.Context, req domain.RegistrationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	trackingID, err := f.backend.Register(ctx, req)
	if err != nil {
		return "", err
	}

	now := f.nowFn()
	if f.audit != nil {
		if auditErr := f.audit.InsertSubmission(ctx, ports.RegistrationSubmission{
			TrackingID:    trackingID,
			Mobile:        req.Mobile,
			RequestedRole: string(req.RequestedRole),
			State:         req.State,
			SubmittedAt:   now,
		}); auditErr != nil {
			f.logger.WarnContext(ctx, "registration audit write failed",
				"module", "authflow",
				"operation", "register",
				"outcome", "warning",
				"error", auditErr,
			)
		}
	}
	f.publish(ctx, eventRegistrationSubmitted, req.Mobile, map[string]any{
		"tracking_id":    trackingID,
		"mobile":         req.Mobile,
		"requested_role": req.RequestedRole,
		"submitted_at":   now,
	})
	return trackingID, nil
}

// ForgotPassword triggers the identity-verified reset and returns the form
// to CREDENTIALS on success.
func (f *Flow) ForgotPassword(ctx context.Context, mobile, dob string) error {
	if err := domain.ValidateMobile(mobile); err != nil {
		return err
	}
	if err := f.backend.ForgotPassword(ctx, strings.TrimSpace(mobile), strings.TrimSpace(dob)); err != nil {
		return err
	}
	f.publish(ctx, eventPasswordResetRequested, mobile, map[string]any{
		"mobile":       mobile,
		"requested_at": f.nowFn(),
	})
	return nil
}

// SendMobileOTP dispatches a bare verification code during registration.
func (f *Flow) SendMobileOTP(ctx context.Context, mobile string) error {
	if err := domain.ValidateMobile(mobile); err != nil {
		return err
	}
	return f.backend.SendMobileOTP(ctx, strings.TrimSpace(mobile))
}

// Logout clears the persisted session. The locale preference survives, and
// calling it on an already-empty store is a no-op.
func (f *Flow) Logout(ctx context.Context) {
	f.store.ClearSession(ctx)
}

// IssueCaptcha mints a server-issued challenge. Only a bcrypt hash of the
// expected text is stored; the display text goes to the client once.
func (f *Flow) IssueCaptcha(ctx context.Context) (CaptchaChallenge, error) {
	display := randomCaptchaText(5)
	hash, err := f.hasher.Hash(strings.ToUpper(display))
	if err != nil {
		return CaptchaChallenge{}, fmt.Errorf("hash captcha answer: %w", err)
	}
	id := uuid.NewString()
	if err := f.captchas.Put(ctx, id, hash, f.cfg.CaptchaTTL); err != nil {
		return CaptchaChallenge{}, fmt.Errorf("store captcha: %w", err)
	}
	return CaptchaChallenge{
		ChallengeID: id,
		DisplayText: display,
		ExpiresAt:   f.nowFn().Add(f.cfg.CaptchaTTL),
	}, nil
}

func (f *Flow) checkCaptcha(ctx context.Context, challengeID, answer string) error {
	if strings.TrimSpace(challengeID) == "" || strings.TrimSpace(answer) == "" {
		return fmt.Errorf("%w: captcha answer is required", domain.ErrCaptchaMismatch)
	}
	hash, err := f.captchas.Consume(ctx, challengeID)
	if err != nil {
		return domain.ErrCaptchaMismatch
	}
	if err := f.hasher.Compare(hash, strings.ToUpper(strings.TrimSpace(answer))); err != nil {
		return domain.ErrCaptchaMismatch
	}
	return nil
}

// finishLogin applies the approval gate and commits the session. The
// generation check discards completions that outlived their attempt.
func (f *Flow) finishLogin(ctx context.Context, gen uint64, identity string, portal Portal, method domain.LoginMethod, session domain.Session, ip, userAgent string) (LoginResult, error) {
	if !session.Approved() {
		err := fmt.Errorf("%w: administrator has not approved this account", domain.ErrPendingApproval)
		f.recordFailure(ctx, identity, portal, method, ip, userAgent, err)
		return LoginResult{}, err
	}
	if !f.guard.current(identity, gen) {
		return LoginResult{}, domain.ErrAttemptSuperseded
	}

	now := f.nowFn()
	// The token is signed before the commit so a signing failure leaves no
	// half-established session behind.
	token, err := f.signer.Sign(ports.PortalClaims{
		UserID:    session.UserID,
		Role:      session.Role,
		Mobile:    session.Mobile,
		Portal:    string(portal),
		IssuedAt:  now,
		ExpiresAt: now.Add(f.cfg.TokenTTL),
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign portal token: %w", err)
	}

	f.store.CommitSession(ctx, session, domain.LoginRecord{
		Identity:  identity,
		Method:    string(method),
		Portal:    string(portal),
		At:        now,
		Succeeded: true,
	})

	f.auditAttempt(ctx, identity, portal, method, ip, userAgent, "SUCCESS", "")
	f.publish(ctx, eventLoginSucceeded, identity, map[string]any{
		"user_id":  session.UserID,
		"role":     session.Role,
		"portal":   portal,
		"method":   method,
		"login_at": now,
	})

	return LoginResult{
		Session:     session,
		PortalToken: token,
		Route:       dispatch.Route(session),
	}, nil
}

func (f *Flow) recordFailure(ctx context.Context, identity string, portal Portal, method domain.LoginMethod, ip, userAgent string, cause error) {
	f.store.RecordAttempt(ctx, domain.LoginRecord{
		Identity:  identity,
		Method:    string(method),
		Portal:    string(portal),
		At:        f.nowFn(),
		Succeeded: false,
	})
	f.auditAttempt(ctx, identity, portal, method, ip, userAgent, "FAILED", failureReason(cause))
	f.publish(ctx, eventLoginFailed, identity, map[string]any{
		"identity": identity,
		"portal":   portal,
		"method":   method,
		"reason":   failureReason(cause),
	})
}

func (f *Flow) auditAttempt(ctx context.Context, identity string, portal Portal, method domain.LoginMethod, ip, userAgent, status, reason string) {
	if f.audit == nil {
		return
	}
	if err := f.audit.InsertAttempt(ctx, ports.AuthAttempt{
		Identity:      identity,
		Portal:        string(portal),
		Method:        string(method),
		AttemptAt:     f.nowFn(),
		Status:        status,
		FailureReason: reason,
		IPAddress:     ip,
		UserAgent:     userAgent,
	}); err != nil {
		f.logger.WarnContext(ctx, "login attempt audit write failed",
			"module", "authflow",
			"operation", "audit_attempt",
			"outcome", "warning",
			"identity", identity,
			"error", err,
		)
	}
}

func (f *Flow) publish(ctx context.Context, eventType, partitionKey string, payload map[string]any) {
	if f.outbox == nil {
		return
	}
	raw, _ := json.Marshal(payload)
	if err := f.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    eventType,
		PartitionKey: partitionKey,
		Payload:      raw,
		OccurredAt:   f.nowFn(),
	}); err != nil {
		f.logger.WarnContext(ctx, "outbox enqueue failed",
			"module", "authflow",
			"operation", "publish",
			"outcome", "warning",
			"event_type", eventType,
			"error", err,
		)
	}
}

// resolveLocation prefers the location the form sent; otherwise it asks the
// configured resolver, bounded by the location timeout. Denied or slow
// lookups degrade to no location recorded.
func (f *Flow) resolveLocation(ctx context.Context, provided *domain.Location) *domain.Location {
	if provided != nil {
		return provided
	}
	if f.locator == nil {
		return nil
	}
	lookupCtx, cancel := context.WithTimeout(ctx, f.cfg.LocationTimeout)
	defer cancel()
	loc, err := f.locator.Resolve(lookupCtx)
	if err != nil {
		f.logger.WarnContext(ctx, "location lookup skipped",
			"module", "authflow",
			"operation", "resolve_location",
			"outcome", "warning",
			"error", err,
		)
		return nil
	}
	return loc
}

func failureReason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

const captchaAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomCaptchaText(size int) string {
	raw := make([]byte, size)
	_, _ = rand.Read(raw)
	out := make([]byte, size)
	for i, b := range raw {
		out[i] = captchaAlphabet[int(b)%len(captchaAlphabet)]
	}
	return string(out)
}
