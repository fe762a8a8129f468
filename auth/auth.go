package auth

import (
	"context"
	"net/http"
	"time"
)

type ctxKey string

const (
	SessionCookieName = "session"
	userIDCtxKey      = ctxKey("userID")
)

// UserVerifier is an optional callback to validate that a session's user still exists.
// If nil, no extra verification is performed. An error means the lookup could
// not be made; the session is kept rather than treated as stale.
type UserVerifier func(ctx context.Context, uid uint) (bool, error)

// SetSessionCookie stores a signed session token in an httpOnly cookie.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the session cookie and returns the user id.
// Any decoding failure is reported as "no session".
func ParseSession(r *http.Request, tokens *Tokens) (uint, bool) {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	claims, err := tokens.Verify(PurposeSession, c.Value)
	if err != nil {
		return 0, false
	}
	uid, err := claims.UserID()
	if err != nil {
		return 0, false
	}
	return uid, true
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok && id != 0
}

// Middleware attaches the user id to the request context when the session
// cookie is valid and, if verify is set, the user still exists.
func Middleware(tokens *Tokens, verify UserVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if uid, ok := ParseSession(r, tokens); ok {
				exists := true
				if verify != nil {
					found, err := verify(r.Context(), uid)
					exists = found || err != nil
				}
				if exists {
					r = r.WithContext(WithUserID(r.Context(), uid))
				} else {
					// Session refers to a deleted user: drop the cookie.
					ClearSession(w)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
