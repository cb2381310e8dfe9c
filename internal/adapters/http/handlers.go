package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/vittapay/portal-gateway/internal/authflow"
	"github.com/vittapay/portal-gateway/internal/dispatch"
	"github.com/vittapay/portal-gateway/internal/domain"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
			return
		}
		claims, err := h.signer.ParseAndValidate(raw)
		if err != nil {
			status, code, msg := mapDomainError(err)
			writeError(w, status, code, msg)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type passwordLoginBody struct {
	Portal        string           `json:"portal"`
	Identity      string           `json:"identity"`
	Password      string           `json:"password"`
	CaptchaID     string           `json:"captcha_id"`
	CaptchaAnswer string           `json:"captcha_answer"`
	Location      *domain.Location `json:"location"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body passwordLoginBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.flow.LoginWithPassword(r.Context(), authflow.PasswordLoginInput{
		Portal:        authflow.ParsePortal(body.Portal),
		Identity:      body.Identity,
		Password:      body.Password,
		CaptchaID:     body.CaptchaID,
		CaptchaAnswer: body.CaptchaAnswer,
		Location:      body.Location,
		IPAddress:     readIP(r),
		UserAgent:     r.UserAgent(),
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, loginResultView(result))
}

type requestOTPBody struct {
	Portal string `json:"portal"`
	Mobile string `json:"mobile"`
}

func (h *Handler) requestOTP(w http.ResponseWriter, r *http.Request) {
	var body requestOTPBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	pending, err := h.flow.RequestOTP(r.Context(), authflow.ParsePortal(body.Portal), body.Mobile)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"identity":      pending.Identity,
		"business_name": pending.BusinessName,
		"requested_at":  pending.RequestedAt,
	})
}

type verifyOTPBody struct {
	Portal   string           `json:"portal"`
	Mobile   string           `json:"mobile"`
	OTP      string           `json:"otp"`
	Location *domain.Location `json:"location"`
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var body verifyOTPBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.flow.VerifyOTP(r.Context(), authflow.VerifyOTPInput{
		Portal:    authflow.ParsePortal(body.Portal),
		Identity:  body.Mobile,
		Code:      body.OTP,
		Location:  body.Location,
		IPAddress: readIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, loginResultView(result))
}

type backBody struct {
	Mobile string `json:"mobile"`
}

func (h *Handler) otpBack(w http.ResponseWriter, r *http.Request) {
	var body backBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.flow.Back(r.Context(), body.Mobile)
	writeMessage(w, http.StatusOK, "pending login discarded")
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegistrationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	trackingID, err := h.flow.Register(r.Context(), req)
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{
		"tracking_id": trackingID,
	})
}

type sendOTPBody struct {
	Mobile string `json:"mobile"`
}

func (h *Handler) sendMobileOTP(w http.ResponseWriter, r *http.Request) {
	var body sendOTPBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := h.flow.SendMobileOTP(r.Context(), body.Mobile); err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "otp dispatched")
}

type forgotBody struct {
	Mobile string `json:"mobile"`
	DOB    string `json:"dob"`
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body forgotBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := h.flow.ForgotPassword(r.Context(), body.Mobile, body.DOB); err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeMessage(w, http.StatusOK, "reset instructions sent if the details matched")
}

func (h *Handler) newCaptcha(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.flow.IssueCaptcha(r.Context())
	if err != nil {
		status, code, msg := mapDomainError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"challenge_id": challenge.ChallengeID,
		"display_text": challenge.DisplayText,
		"expires_at":   challenge.ExpiresAt,
	})
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	user := h.store.GetCurrentUser()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no active session")
		return
	}
	writeSuccess(w, http.StatusOK, sessionView(*user))
}

func (h *Handler) route(w http.ResponseWriter, r *http.Request) {
	user := h.store.GetCurrentUser()
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no active session")
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"route": dispatch.Route(*user),
	})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.flow.Logout(r.Context())
	writeMessage(w, http.StatusOK, "logged out")
}

func (h *Handler) getLocale(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, http.StatusOK, map[string]any{
		"locale": h.translator.Current(),
	})
}

type localeBody struct {
	Locale string `json:"locale"`
}

func (h *Handler) setLocale(w http.ResponseWriter, r *http.Request) {
	var body localeBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	h.translator.Set(r.Context(), domain.ParseLocale(body.Locale))
	writeSuccess(w, http.StatusOK, map[string]any{
		"locale": h.translator.Current(),
	})
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "no claims in context")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	if h.audit != nil {
		attempts, err := h.audit.ListAttempts(r.Context(), claims.Mobile, limit)
		if err == nil {
			writeSuccess(w, http.StatusOK, map[string]any{"attempts": attempts})
			return
		}
		httpLogger().WarnContext(r.Context(), "audit history unavailable, serving local history",
			"operation", "login_history",
			"outcome", "warning",
			"error", err,
		)
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"attempts": h.store.Snapshot().LoginHistory,
	})
}

func loginResultView(result authflow.LoginResult) map[string]any {
	return map[string]any{
		"session":      sessionView(result.Session),
		"portal_token": result.PortalToken,
		"route":        result.Route,
	}
}

// sessionView deliberately omits the backend bearer token from API output;
// callers hold the portal token instead.
func sessionView(s domain.Session) map[string]any {
	return map[string]any{
		"user_id":        s.UserID,
		"role":           s.Role,
		"mobile":         s.Mobile,
		"business_name":  s.BusinessName,
		"wallet_balance": s.WalletBalance,
		"plan":           s.Plan,
		"logged_in_at":   s.LoggedInAt,
	}
}
