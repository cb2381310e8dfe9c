package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vittapay/portal-gateway/internal/authflow"
	"github.com/vittapay/portal-gateway/internal/locale"
	"github.com/vittapay/portal-gateway/internal/ports"
	"github.com/vittapay/portal-gateway/internal/store"
)

// Handler is the HTTP adapter entrypoint for the portal auth use-cases.
type Handler struct {
	flow       *authflow.Flow
	store      *store.Store
	translator *locale.Translator
	signer     ports.TokenSigner
	audit      ports.AuditRepository
}

// NewHandler constructs an HTTP handler bound to the auth flow. The audit
// repository is optional; without it login history falls back to the local
// store snapshot.
func NewHandler(flow *authflow.Flow, appStore *store.Store, translator *locale.Translator, signer ports.TokenSigner, audit ports.AuditRepository) *Handler {
	return &Handler{
		flow:       flow,
		store:      appStore,
		translator: translator,
		signer:     signer,
		audit:      audit,
	}
}

// NewRouter registers the portal gateway routes and middleware stack.
// Centralizing routes here keeps auth and error behavior consistent across
// endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/portal/v1", func(r chi.Router) {
		r.Post("/login", handler.login)
		r.Post("/request-otp", handler.requestOTP)
		r.Post("/verify-otp", handler.verifyOTP)
		r.Post("/otp/back", handler.otpBack)
		r.Post("/send-mobile-otp", handler.sendMobileOTP)
		r.Post("/register", handler.register)
		r.Post("/forgot-password", handler.forgotPassword)
		r.Get("/captcha", handler.newCaptcha)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/session", handler.session)
			r.Get("/route", handler.route)
			r.Post("/logout", handler.logout)
			r.Get("/locale", handler.getLocale)
			r.Put("/locale", handler.setLocale)
			r.Get("/login-history", handler.loginHistory)
		})
	})

	return r
}
