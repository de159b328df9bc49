package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/playmate/server/internal/auth"
	"github.com/playmate/server/internal/httpx"
	"github.com/playmate/server/internal/middleware"
	"github.com/playmate/server/internal/observability/logging"
	"github.com/playmate/server/internal/profile"
)

// FacetInvalidator drops cached filter options after a profile changes
type FacetInvalidator interface {
	InvalidateFacets(ctx context.Context)
}

// CookieConfig controls the session cookie attributes
type CookieConfig struct {
	Secure bool
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService  *auth.AuthService
	phoneLimiter *middleware.RateLimiter
	facets       FacetInvalidator
	cookie       CookieConfig
	logger       *slog.Logger
	now          func() time.Time
}

// NewAuthHandler creates a new auth handler. phoneLimiter caps OTP requests per phone number.
func NewAuthHandler(
	authService *auth.AuthService,
	phoneLimiter *middleware.RateLimiter,
	facets FacetInvalidator,
	cookie CookieConfig,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:  authService,
		phoneLimiter: phoneLimiter,
		facets:       facets,
		cookie:       cookie,
		logger:       logger,
		now:          time.Now,
	}
}

// sendOTPRequest is the request body for POST /auth/send-otp
type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// sendOTPResponse is the JSON response for send-otp
type sendOTPResponse struct {
	Message string `json:"message"`
	DevOTP  string `json:"devOtp,omitempty"`
}

// verifyOTPRequest is the request body for POST /auth/verify-otp
type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

// sessionResponse is returned whenever a session is issued
type sessionResponse struct {
	Token                string        `json:"token"`
	ExpiresAt            time.Time     `json:"expiresAt"`
	RequiresRegistration bool          `json:"requiresRegistration"`
	PhoneNumber          string        `json:"phoneNumber"`
	User                 *userResponse `json:"user,omitempty"`
}

// meResponse is the JSON response for GET /auth/me
type meResponse struct {
	PhoneNumber          string        `json:"phoneNumber"`
	SessionKind          string        `json:"sessionKind"`
	RequiresRegistration bool          `json:"requiresRegistration"`
	ExpiresAt            time.Time     `json:"expiresAt"`
	User                 *userResponse `json:"user,omitempty"`
}

// HandleSendOTP handles POST /auth/send-otp
func (h *AuthHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	phone, err := profile.ValidatePhone(req.PhoneNumber)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}

	if !h.phoneLimiter.Allow(middleware.GetPhoneKey(phone)) {
		h.logger.WarnContext(r.Context(), "otp request rate limited", logging.Phone(phone))
		httpx.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	devCode, err := h.authService.SendOTP(r.Context(), phone)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sendOTPResponse{Message: "otp_sent", DevOTP: devCode})
}

// HandleVerifyOTP handles POST /auth/verify-otp
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}

	issued, err := h.authService.VerifyOTP(r.Context(), req.PhoneNumber, strings.TrimSpace(req.OTP))
	if err != nil {
		h.logger.InfoContext(r.Context(), "otp verification failed",
			logging.Phone(req.PhoneNumber), slog.Any("error", err))
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}

	h.setSessionCookie(w, issued)
	httpx.WriteJSON(w, http.StatusOK, h.sessionResponse(issued))
}

// HandleRegister handles POST /users/register. The caller must hold a bridge session.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var in profile.Input
	if err := decodeJSON(w, r, &in); err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		in.PhoneNumber = identity.Session.PhoneNumber
	}

	issued, err := h.authService.CompleteRegistration(r.Context(), identity.Session, in)
	if err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	h.facets.InvalidateFacets(r.Context())

	h.setSessionCookie(w, issued)
	httpx.WriteJSON(w, http.StatusCreated, h.sessionResponse(issued))
}

// HandleLogout handles POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.authService.Logout(r.Context(), identity.Session.ID); err != nil {
		httpx.WriteAppError(w, r, h.logger, err)
		return
	}
	h.clearSessionCookie(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe handles GET /auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	resp := meResponse{
		PhoneNumber:          identity.Session.PhoneNumber,
		SessionKind:          string(identity.Session.Kind),
		RequiresRegistration: !identity.Session.Complete(),
		ExpiresAt:            identity.Session.ExpiresAt,
	}
	if identity.User != nil {
		u := toUserResponse(*identity.User, h.now(), true)
		resp.User = &u
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) sessionResponse(issued auth.Issued) sessionResponse {
	resp := sessionResponse{
		Token:                issued.Token,
		ExpiresAt:            issued.Session.ExpiresAt,
		RequiresRegistration: issued.RequiresRegistration(),
		PhoneNumber:          issued.Session.PhoneNumber,
	}
	if issued.User != nil {
		u := toUserResponse(*issued.User, h.now(), true)
		resp.User = &u
	}
	return resp
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, issued auth.Issued) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    issued.Token,
		Path:     "/",
		Expires:  issued.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
