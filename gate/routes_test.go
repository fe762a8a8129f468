package gate_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/diewo77/freelance-desk/gate"
)

func TestDecide(t *testing.T) {
	rt := gate.DefaultRoutes()

	tests := []struct {
		path   string
		authed bool
		want   gate.Decision
	}{
		{"/api/auth/login", false, gate.Allow},
		{"/api/auth/login", true, gate.Allow},
		{"/api/auth/oauth/google/callback", false, gate.Allow},
		{"/dashboard", false, gate.RedirectLogin},
		{"/clients", false, gate.RedirectLogin},
		{"/clients/12", false, gate.RedirectLogin},
		{"/income", false, gate.RedirectLogin},
		{"/tasks/new", false, gate.RedirectLogin},
		{"/invoices", false, gate.RedirectLogin},
		{"/profile", false, gate.RedirectLogin},
		{"/clients-info", false, gate.Allow},
		{"/", false, gate.Allow},
		{"/login", false, gate.Allow},
		{"/signup", false, gate.Allow},
		{"/login", true, gate.RedirectLanding},
		{"/signup", true, gate.RedirectLanding},
		{"/login/help", true, gate.Allow},
		{"/dashboard", true, gate.Allow},
		{"/clients/3", true, gate.Allow},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, rt.Decide(tt.path, tt.authed), "authenticated=%v", tt.authed)
		})
	}
}

func TestMiddlewareRedirects(t *testing.T) {
	rt := gate.DefaultRoutes()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	anon := rt.Middleware(func(*http.Request) bool { return false })(next)
	rec := httptest.NewRecorder()
	anon.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/invoices?status=paid", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?callbackUrl=%2Finvoices%3Fstatus%3Dpaid", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	anon.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	authed := rt.Middleware(func(*http.Request) bool { return true })(next)
	rec = httptest.NewRecorder()
	authed.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/signup", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestLocalPath(t *testing.T) {
	assert.Equal(t, "/tasks?x=1", gate.LocalPath("/tasks?x=1", "/dashboard"))
	assert.Equal(t, "/dashboard", gate.LocalPath("https://evil.example", "/dashboard"))
	assert.Equal(t, "/dashboard", gate.LocalPath("//evil.example", "/dashboard"))
	assert.Equal(t, "/dashboard", gate.LocalPath("/\\evil.example", "/dashboard"))
	assert.Equal(t, "/dashboard", gate.LocalPath("", "/dashboard"))
}
