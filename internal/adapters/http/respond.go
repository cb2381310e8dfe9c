package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vittapay/portal-gateway/internal/domain"
)

func httpLogger() *slog.Logger {
	return slog.Default().With("module", "http", "layer", "adapter")
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"message": message,
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// mapDomainError is the single translation from the error taxonomy to a
// user-facing status, code, and message. PendingApproval deliberately reads
// differently from InvalidCredentials: no retry will help until an
// administrator acts.
func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid credentials; check your details and try again"
	case errors.Is(err, domain.ErrInvalidOTP):
		return http.StatusUnauthorized, "INVALID_OTP", "the code you entered is incorrect"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "no account found for this mobile number"
	case errors.Is(err, domain.ErrPendingApproval):
		return http.StatusForbidden, "PENDING_APPROVAL", "account is awaiting administrator approval"
	case errors.Is(err, domain.ErrDuplicateMobile):
		return http.StatusConflict, "DUPLICATE_MOBILE", "this mobile number is already registered"
	case errors.Is(err, domain.ErrCaptchaMismatch):
		return http.StatusBadRequest, "CAPTCHA_MISMATCH", "captcha did not match; request a new one"
	case errors.Is(err, domain.ErrAttemptInFlight):
		return http.StatusConflict, "ATTEMPT_IN_FLIGHT", "a submit is already in progress for this identity"
	case errors.Is(err, domain.ErrNoPendingLogin):
		return http.StatusConflict, "NO_PENDING_LOGIN", "request an otp before verifying"
	case errors.Is(err, domain.ErrAttemptSuperseded):
		return http.StatusConflict, "ATTEMPT_SUPERSEDED", "this login attempt was replaced; start again"
	case errors.Is(err, domain.ErrConnection):
		return http.StatusBadGateway, "BACKEND_UNREACHABLE", "could not reach the server; check connectivity and retry"
	case errors.Is(err, domain.ErrTokenExpired):
		return http.StatusUnauthorized, "TOKEN_EXPIRED", "session token expired"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
