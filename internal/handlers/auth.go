package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/gate"
	"github.com/diewo77/freelance-desk/httpx"
	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/internal/oauth"
	"github.com/diewo77/freelance-desk/internal/services"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthCallbackCookie = "oauth_callback"
	oauthCookieTTL      = 10 * time.Minute

	landingPath = "/dashboard"

	msgForgotSent = "If an account exists for that email, a reset link has been sent"
)

type AuthHandler struct {
	accounts *services.Accounts
	provider oauth.Provider
	secure   bool
	log      *zap.Logger
}

// NewAuthHandler builds the auth endpoints. provider may be nil when no
// OAuth provider is configured.
func NewAuthHandler(accounts *services.Accounts, provider oauth.Provider, secureCookies bool, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{accounts: accounts, provider: provider, secure: secureCookies, log: log}
}

// startSession issues a session token and sets the cookie.
func (h *AuthHandler) startSession(w http.ResponseWriter, userID uint) error {
	token, expires, err := h.accounts.IssueSession(userID)
	if err != nil {
		return apperr.Internal("issue session", err)
	}
	auth.SetSessionCookie(w, token, expires, h.secure)
	return nil
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var in services.SignupInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	id, err := h.accounts.Signup(r.Context(), in)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Account created. Check your email to verify your address.",
		"user":    id,
	})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	id, err := h.accounts.Authenticate(r.Context(), req.Identifier, req.Password)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.startSession(w, id.ID); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": id})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

type forgotRequest struct {
	Email string `json:"email"`
}

// Forgot always answers with the same message whether or not the email is
// registered.
func (h *AuthHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	var req forgotRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.accounts.RequestReset(r.Context(), req.Email); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": msgForgotSent})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (h *AuthHandler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// Verify consumes an email verification link.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.VerifyEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	http.Redirect(w, r, "/login?verified=1", http.StatusSeeOther)
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.accounts.UpdatePassword(r.Context(), currentUser(r), req.CurrentPassword, req.NewPassword); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := h.accounts.Identity(r.Context(), currentUser(r))
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": id})
}

func (h *AuthHandler) setTempCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/api/auth/oauth",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(oauthCookieTTL.Seconds()),
	})
}

func clearTempCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/api/auth/oauth", MaxAge: -1, HttpOnly: true})
}

// OAuthStart redirects to the provider with a fresh state value.
func (h *AuthHandler) OAuthStart(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httpx.JSONError(w, http.StatusNotFound, "OAuth login is not configured", nil)
		return
	}
	state := uuid.NewString()
	h.setTempCookie(w, oauthStateCookie, state)
	h.setTempCookie(w, oauthCallbackCookie, gate.LocalPath(r.URL.Query().Get("callbackUrl"), landingPath))
	http.Redirect(w, r, h.provider.AuthCodeURL(state), http.StatusSeeOther)
}

// OAuthCallback completes the provider login and starts a session.
func (h *AuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		httpx.JSONError(w, http.StatusNotFound, "OAuth login is not configured", nil)
		return
	}
	stateCookie, err := r.Cookie(oauthStateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || stateCookie.Value != state {
		httpx.JSONError(w, http.StatusBadRequest, "Invalid OAuth state", nil)
		return
	}
	clearTempCookie(w, oauthStateCookie)

	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.JSONError(w, http.StatusBadRequest, "Missing authorization code", nil)
		return
	}
	profile, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.log.Warn("oauth exchange failed", zap.String("provider", h.provider.Name()), zap.Error(err))
		httpx.JSONError(w, http.StatusBadRequest, "OAuth login failed", nil)
		return
	}
	id, err := h.accounts.UpsertOAuthUser(r.Context(), profile)
	if err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}
	if err := h.startSession(w, id.ID); err != nil {
		httpx.WriteError(w, h.log, err)
		return
	}

	target := landingPath
	if c, err := r.Cookie(oauthCallbackCookie); err == nil {
		target = gate.LocalPath(c.Value, landingPath)
	}
	clearTempCookie(w, oauthCallbackCookie)
	http.Redirect(w, r, target, http.StatusSeeOther)
}
