package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vittapay/portal-gateway/internal/adapters/security"
	"github.com/vittapay/portal-gateway/internal/authflow"
	"github.com/vittapay/portal-gateway/internal/domain"
	"github.com/vittapay/portal-gateway/internal/locale"
	"github.com/vittapay/portal-gateway/internal/ports"
	"github.com/vittapay/portal-gateway/internal/store"
)

type memStorage struct {
	state domain.AppState
	found bool
}

func (m *memStorage) Load(context.Context) (domain.AppState, bool, error) {
	return m.state, m.found, nil
}

func (m *memStorage) Save(_ context.Context, state domain.AppState) error {
	m.state = state
	m.found = true
	return nil
}

type stubBackend struct {
	session domain.Session
	err     error
}

func (b *stubBackend) LoginWithPassword(context.Context, string, string, domain.Role, *domain.Location) (domain.Session, error) {
	return b.session, b.err
}

func (b *stubBackend) RequestOTP(context.Context, string) (domain.CandidateUser, error) {
	return domain.CandidateUser{UserID: b.session.UserID, BusinessName: b.session.BusinessName, Approval: b.session.Approval}, b.err
}

func (b *stubBackend) VerifyOTP(context.Context, string, string, *domain.Location) (domain.Session, error) {
	return b.session, b.err
}

func (b *stubBackend) SendMobileOTP(context.Context, string) error { return b.err }

func (b *stubBackend) Register(context.Context, domain.RegistrationRequest) (string, error) {
	return "REG-1", b.err
}

func (b *stubBackend) ForgotPassword(context.Context, string, string) error { return b.err }

type memPending struct {
	pending map[string]ports.PendingLogin
}

func (m *memPending) Put(_ context.Context, identity string, p ports.PendingLogin, _ time.Duration) error {
	m.pending[identity] = p
	return nil
}

func (m *memPending) Get(_ context.Context, identity string) (*ports.PendingLogin, error) {
	p, ok := m.pending[identity]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memPending) Delete(_ context.Context, identity string) error {
	delete(m.pending, identity)
	return nil
}

type memCaptcha struct {
	hashes map[string]string
}

func (m *memCaptcha) Put(_ context.Context, id, hash string, _ time.Duration) error {
	m.hashes[id] = hash
	return nil
}

func (m *memCaptcha) Consume(_ context.Context, id string) (string, error) {
	hash, ok := m.hashes[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	delete(m.hashes, id)
	return hash, nil
}

type apiFixture struct {
	router  http.Handler
	backend *stubBackend
	store   *store.Store
	signer  ports.TokenSigner
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	backend := &stubBackend{}
	appStore := store.New(context.Background(), &memStorage{}, nil)
	signer, err := security.NewEphemeralJWTSigner("test-key")
	if err != nil {
		t.Fatalf("signer init failed: %v", err)
	}

	flow := authflow.NewFlow(authflow.Dependencies{
		Backend:  backend,
		Store:    appStore,
		Pending:  &memPending{pending: make(map[string]ports.PendingLogin)},
		Captchas: &memCaptcha{hashes: make(map[string]string)},
		Hasher:   security.NewBcryptHasher(4),
		Signer:   signer,
	})
	handler := NewHandler(flow, appStore, locale.NewTranslator(appStore), signer, nil)
	return &apiFixture{
		router:  NewRouter(handler),
		backend: backend,
		store:   appStore,
		signer:  signer,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not json: %v body=%q", err, rec.Body.String())
	}
	return rec, envelope
}

func approvedSession() domain.Session {
	return domain.Session{
		UserID:        "u-1",
		Role:          domain.RoleRetailer,
		Mobile:        "9876543210",
		BusinessName:  "Asha Traders",
		WalletBalance: 75.5,
		Token:         "backend-secret-token",
		Approval:      domain.ApprovalApproved,
		LoggedInAt:    time.Now().UTC(),
	}
}

func TestLoginEndpointSuccess(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.backend.session = approvedSession()

	rec, env := fx.do(t, http.MethodPost, "/portal/v1/login", map[string]any{
		"portal":   "retailer",
		"identity": "9876543210",
		"password": "secret",
	}, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	if data["route"] != "/retailer/dashboard" {
		t.Fatalf("route %v", data["route"])
	}
	if data["portal_token"] == "" {
		t.Fatalf("missing portal token")
	}
	session := data["session"].(map[string]any)
	if _, leaked := session["token"]; leaked {
		t.Fatalf("backend token leaked in response")
	}
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.backend.err = fmt.Errorf("%w: nope", domain.ErrInvalidCredentials)

	rec, env := fx.do(t, http.MethodPost, "/portal/v1/login", map[string]any{
		"portal":   "retailer",
		"identity": "9876543210",
		"password": "wrong",
	}, "")

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}
	errObj := env["error"].(map[string]any)
	if errObj["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("code %v", errObj["code"])
	}
}

func TestLoginEndpointPendingApproval(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	sess := approvedSession()
	sess.Approval = domain.ApprovalPending
	fx.backend.session = sess

	rec, env := fx.do(t, http.MethodPost, "/portal/v1/login", map[string]any{
		"portal":   "retailer",
		"identity": "9876543210",
		"password": "secret",
	}, "")

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status %d", rec.Code)
	}
	errObj := env["error"].(map[string]any)
	if errObj["code"] != "PENDING_APPROVAL" {
		t.Fatalf("code %v", errObj["code"])
	}
}

func TestLoginEndpointBackendUnreachable(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.backend.err = fmt.Errorf("%w: dial tcp refused", domain.ErrConnection)

	rec, env := fx.do(t, http.MethodPost, "/portal/v1/login", map[string]any{
		"portal":   "retailer",
		"identity": "9876543210",
		"password": "secret",
	}, "")

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status %d", rec.Code)
	}
	errObj := env["error"].(map[string]any)
	if errObj["code"] != "BACKEND_UNREACHABLE" {
		t.Fatalf("code %v", errObj["code"])
	}
}

func TestVerifyWithoutPendingLogin(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	rec, env := fx.do(t, http.MethodPost, "/portal/v1/verify-otp", map[string]any{
		"portal": "retailer",
		"mobile": "9876543210",
		"otp":    "123456",
	}, "")

	if rec.Code != http.StatusConflict {
		t.Fatalf("status %d", rec.Code)
	}
	errObj := env["error"].(map[string]any)
	if errObj["code"] != "NO_PENDING_LOGIN" {
		t.Fatalf("code %v", errObj["code"])
	}
}

func TestRegisterEndpoint(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	rec, env := fx.do(t, http.MethodPost, "/portal/v1/register", map[string]any{
		"name":               "Asha Traders",
		"mobile":             "9876543210",
		"state":              "Maharashtra",
		"agreement_accepted": true,
	}, "")

	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	data := env["data"].(map[string]any)
	if data["tracking_id"] != "REG-1" {
		t.Fatalf("tracking id %v", data["tracking_id"])
	}
}

func TestRegisterAgreementRejected(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	rec, env := fx.do(t, http.MethodPost, "/portal/v1/register", map[string]any{
		"name":   "Asha Traders",
		"mobile": "9876543210",
		"state":  "Maharashtra",
	}, "")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
	errObj := env["error"].(map[string]any)
	if errObj["code"] != "VALIDATION_ERROR" {
		t.Fatalf("code %v", errObj["code"])
	}
}

func TestSessionEndpointRequiresToken(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	rec, _ := fx.do(t, http.MethodGet, "/portal/v1/session", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", rec.Code)
	}

	rec, _ = fx.do(t, http.MethodGet, "/portal/v1/session", nil, "garbage-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token accepted: %d", rec.Code)
	}
}

func TestSessionAndRouteAfterLogin(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.backend.session = approvedSession()

	_, env := fx.do(t, http.MethodPost, "/portal/v1/login", map[string]any{
		"portal":   "retailer",
		"identity": "9876543210",
		"password": "secret",
	}, "")
	token := env["data"].(map[string]any)["portal_token"].(string)

	rec, env := fx.do(t, http.MethodGet, "/portal/v1/session", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("session status %d", rec.Code)
	}
	session := env["data"].(map[string]any)
	if session["user_id"] != "u-1" {
		t.Fatalf("session view %v", session)
	}

	rec, env = fx.do(t, http.MethodGet, "/portal/v1/route", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("route status %d", rec.Code)
	}
	if env["data"].(map[string]any)["route"] != "/retailer/dashboard" {
		t.Fatalf("route %v", env["data"])
	}
}

func TestLogoutAndLocaleEndpoints(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	fx.backend.session = approvedSession()

	_, env := fx.do(t, http.MethodPost, "/portal/v1/login", map[string]any{
		"portal":   "retailer",
		"identity": "9876543210",
		"password": "secret",
	}, "")
	token := env["data"].(map[string]any)["portal_token"].(string)

	rec, env := fx.do(t, http.MethodPut, "/portal/v1/locale", map[string]any{"locale": "hi"}, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("set locale status %d", rec.Code)
	}
	if env["data"].(map[string]any)["locale"] != "hi" {
		t.Fatalf("locale %v", env["data"])
	}

	rec, _ = fx.do(t, http.MethodPost, "/portal/v1/logout", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status %d", rec.Code)
	}
	if fx.store.GetCurrentUser() != nil {
		t.Fatalf("session survived logout")
	}

	// Locale survives logout; the portal token stays valid until expiry.
	rec, env = fx.do(t, http.MethodGet, "/portal/v1/locale", nil, token)
	if rec.Code != http.StatusOK {
		t.Fatalf("get locale status %d", rec.Code)
	}
	if env["data"].(map[string]any)["locale"] != "hi" {
		t.Fatalf("locale lost after logout: %v", env["data"])
	}
}

func TestCaptchaEndpointIssuesChallenge(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	rec, env := fx.do(t, http.MethodGet, "/portal/v1/captcha", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	data := env["data"].(map[string]any)
	if data["challenge_id"] == "" || data["display_text"] == "" {
		t.Fatalf("incomplete challenge %v", data)
	}
}

func TestUnknownBodyFieldRejected(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	rec, _ := fx.do(t, http.MethodPost, "/portal/v1/login", map[string]any{
		"portal":     "retailer",
		"identity":   "9876543210",
		"password":   "secret",
		"unexpected": true,
	}, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field accepted: %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	fx := newAPIFixture(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec, _ := fx.do(t, http.MethodGet, path, nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status %d", path, rec.Code)
		}
	}
}
