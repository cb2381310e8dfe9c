// Package backend wraps the remote reseller backend's authentication
// endpoints. All responses, structured or not, are normalized into the domain
// error taxonomy here so nothing above this layer ever inspects an HTTP body.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vittapay/portal-gateway/internal/domain"
)

// Client talks to the reseller backend over its JSON contract.
type Client struct {
	baseURL    string
	httpClient *http.Client
	nowFn      func() time.Time
}

// New builds a backend client. A zero timeout falls back to eight seconds,
// matching the rest of the gateway's outbound HTTP budget.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

// userPayload mirrors the backend's user object across login-shaped
// responses. The backend is inconsistent about which identifier field it
// fills, so both are read.
type userPayload struct {
	ID             string  `json:"id"`
	UserID         string  `json:"userId"`
	Role           string  `json:"role"`
	Mobile         string  `json:"mobile"`
	Username       string  `json:"username"`
	BusinessName   string  `json:"businessName"`
	WalletBalance  float64 `json:"walletBalance"`
	ApprovalStatus string  `json:"approvalStatus"`
	Plan           string  `json:"plan"`
}

type authEnvelope struct {
	Success        bool         `json:"success"`
	Message        string       `json:"message"`
	User           *userPayload `json:"user"`
	Token          string       `json:"token"`
	RegistrationID string       `json:"registrationId"`
}

// LoginWithPassword performs the single-round-trip password exchange.
func (c *Client) LoginWithPassword(ctx context.Context, identity, password string, role domain.Role, loc *domain.Location) (domain.Session, error) {
	body := map[string]any{
		"username": identity,
		"mobile":   identity,
		"password": password,
		"role":     string(role),
	}
	if loc != nil {
		body["location"] = loc
	}
	env, err := c.postAuth(ctx, "/login", body)
	if err != nil {
		return domain.Session{}, err
	}
	if !env.Success {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, failureMessage(env.Message))
	}
	return c.sessionFrom(env, identity)
}

// RequestOTP asks the backend to dispatch a login code and returns the
// unconfirmed candidate profile.
func (c *Client) RequestOTP(ctx context.Context, mobile string) (domain.CandidateUser, error) {
	env, err := c.postAuth(ctx, "/request-otp", map[string]any{"mobile": mobile})
	if err != nil {
		return domain.CandidateUser{}, err
	}
	if !env.Success {
		return domain.CandidateUser{}, fmt.Errorf("%w: %s", domain.ErrUserNotFound, failureMessage(env.Message))
	}
	if env.User == nil {
		return domain.CandidateUser{}, fmt.Errorf("%w: otp response missing user", domain.ErrUnknown)
	}
	return domain.CandidateUser{
		UserID:       firstNonEmpty(env.User.UserID, env.User.ID),
		Role:         domain.ParseRole(env.User.Role),
		Mobile:       firstNonEmpty(env.User.Mobile, mobile),
		BusinessName: env.User.BusinessName,
		Approval:     domain.ParseApprovalStatus(env.User.ApprovalStatus),
	}, nil
}

// VerifyOTP exchanges the one-time code for a session.
func (c *Client) VerifyOTP(ctx context.Context, identity, code string, loc *domain.Location) (domain.Session, error) {
	body := map[string]any{
		"mobile":   identity,
		"identity": identity,
		"otp":      code,
	}
	if loc != nil {
		body["location"] = loc
	}
	env, err := c.postAuth(ctx, "/verify-otp", body)
	if err != nil {
		return domain.Session{}, err
	}
	if !env.Success {
		return domain.Session{}, fmt.Errorf("%w: %s", domain.ErrInvalidOTP, failureMessage(env.Message))
	}
	return c.sessionFrom(env, identity)
}

// SendMobileOTP dispatches a bare verification code. The endpoint is the
// backend's least structured: errors arrive as JSON or plain text.
func (c *Client) SendMobileOTP(ctx context.Context, mobile string) error {
	resp, raw, err := c.post(ctx, "/send-mobile-otp", map[string]any{"mobile": mobile})
	if err != nil {
		return err
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: backend status %d: %s", domain.ErrConnection, resp.StatusCode, errorText(raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", domain.ErrUnknown, errorText(raw))
	}
	return nil
}

// Register submits an applicant and returns the server tracking id.
func (c *Client) Register(ctx context.Context, req domain.RegistrationRequest) (string, error) {
	env, err := c.postAuth(ctx, "/register", req)
	if err != nil {
		return "", err
	}
	if !env.Success {
		msg := failureMessage(env.Message)
		if strings.Contains(strings.ToLower(msg), "already") || strings.Contains(strings.ToLower(msg), "exist") {
			return "", fmt.Errorf("%w: %s", domain.ErrDuplicateMobile, msg)
		}
		return "", fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	}
	return env.RegistrationID, nil
}

// ForgotPassword triggers an identity-verified reset.
func (c *Client) ForgotPassword(ctx context.Context, mobile, dob string) error {
	env, err := c.postAuth(ctx, "/forgot-password", map[string]any{"mobile": mobile, "dob": dob})
	if err != nil {
		return err
	}
	if !env.Success {
		msg := failureMessage(env.Message)
		if strings.Contains(strings.ToLower(msg), "not found") {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
		}
		return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
	}
	return nil
}

func (c *Client) sessionFrom(env authEnvelope, identity string) (domain.Session, error) {
	if env.User == nil || env.Token == "" {
		return domain.Session{}, fmt.Errorf("%w: login response missing user or token", domain.ErrUnknown)
	}
	return domain.Session{
		UserID:        firstNonEmpty(env.User.UserID, env.User.ID),
		Role:          domain.ParseRole(env.User.Role),
		Mobile:        firstNonEmpty(env.User.Mobile, identity),
		BusinessName:  env.User.BusinessName,
		WalletBalance: env.User.WalletBalance,
		Token:         env.Token,
		Approval:      domain.ParseApprovalStatus(env.User.ApprovalStatus),
		Plan:          env.User.Plan,
		LoggedInAt:    c.nowFn(),
	}, nil
}

// postAuth runs a JSON POST and decodes the standard auth envelope. A 5xx
// means the backend itself is broken, not that the request was rejected, so
// it maps to the retryable connection kind rather than a business failure.
// Any other non-2xx status is a failure even when the body parses as a
// success shape.
func (c *Client) postAuth(ctx context.Context, path string, body any) (authEnvelope, error) {
	resp, raw, err := c.post(ctx, path, body)
	if err != nil {
		return authEnvelope{}, err
	}
	if resp.StatusCode >= 500 {
		return authEnvelope{}, fmt.Errorf("%w: backend status %d: %s", domain.ErrConnection, resp.StatusCode, errorText(raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		env := decodeEnvelope(raw)
		env.Success = false
		if env.Message == "" {
			env.Message = errorText(raw)
		}
		return env, nil
	}
	return decodeEnvelope(raw), nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encode request: %v", domain.ErrUnknown, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: build request: %v", domain.ErrUnknown, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport failures (timeout, DNS, refused, aborted context) are
		// normalized once, here, into the retryable connection kind.
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read response: %v", domain.ErrConnection, err)
	}
	return resp, raw, nil
}

// decodeEnvelope parses the standard envelope, tolerating garbage bodies.
func decodeEnvelope(raw []byte) authEnvelope {
	var env authEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return authEnvelope{Success: false, Message: errorText(raw)}
	}
	return env
}

// errorText extracts a human-readable message from an error body that may be
// JSON or plain text. This is the single place the fallback lives.
func errorText(raw []byte) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return "backend returned no error detail"
	}
	var structured struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &structured); err == nil {
		if structured.Message != "" {
			return structured.Message
		}
		if structured.Error != "" {
			return structured.Error
		}
	}
	if len(trimmed) > 300 {
		trimmed = trimmed[:300]
	}
	return trimmed
}

func failureMessage(message string) string {
	if strings.TrimSpace(message) == "" {
		return "request rejected"
	}
	return message
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
