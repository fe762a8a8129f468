package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/internal/config"
	"github.com/diewo77/freelance-desk/internal/db"
	"github.com/diewo77/freelance-desk/internal/mail"
	"github.com/diewo77/freelance-desk/internal/middleware"
	"github.com/diewo77/freelance-desk/internal/models"
	"github.com/diewo77/freelance-desk/internal/services"
)

type testApp struct {
	*httptest.Server
	db     *gorm.DB
	tokens *auth.Tokens
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWith(t, nil)
}

// newTestAppWith lets a test adjust the dependencies before the app is built.
func newTestAppWith(t *testing.T, adjust func(*Deps)) *testApp {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	}
	conn, err := db.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	t.Cleanup(func() { _ = db.Close(conn) })

	tokens := auth.NewTokens("session-secret", "token-secret")
	accounts := services.NewAccounts(conn, tokens, mail.NewLogMailer(nil), nil, services.AccountsConfig{
		PhoneRegion: "US",
		BaseURL:     "http://localhost:8080",
		HashCost:    bcrypt.MinCost,
	})
	deps := Deps{
		DB:       conn,
		Tokens:   tokens,
		Accounts: accounts,
		Limiter:  middleware.NewRateLimiter(100, nil),
	}
	if adjust != nil {
		adjust(&deps)
	}
	srv := httptest.NewServer(NewApp(deps))
	t.Cleanup(srv.Close)
	return &testApp{Server: srv, db: conn, tokens: tokens}
}

// client returns an HTTP client that does not follow redirects.
func (a *testApp) client() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
}

func (a *testApp) do(t *testing.T, method, path, body, session string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: session})
	}
	resp, err := a.client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (a *testApp) session(t *testing.T, email string) (models.User, string) {
	t.Helper()
	u := models.User{Name: "Jane", Email: email, Verified: true}
	require.NoError(t, a.db.Create(&u).Error)
	token, _, err := a.tokens.Issue(auth.PurposeSession, u.ID)
	require.NoError(t, err)
	return u, token
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestGateRedirects(t *testing.T) {
	app := newTestApp(t)
	_, token := app.session(t, "jane@example.com")

	resp := app.do(t, http.MethodGet, "/invoices?status=paid", "", "")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?callbackUrl=%2Finvoices%3Fstatus%3Dpaid", resp.Header.Get("Location"))

	resp = app.do(t, http.MethodGet, "/dashboard", "", "not-a-token")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = app.do(t, http.MethodGet, "/login", "", token)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))

	resp = app.do(t, http.MethodGet, "/login", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = app.do(t, http.MethodGet, "/dashboard", "", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Auth routes always pass the gate, even with a session.
	resp = app.do(t, http.MethodGet, "/api/auth/verify?token=junk", "", token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeletedUserSessionIsDropped(t *testing.T) {
	app := newTestApp(t)
	u, token := app.session(t, "jane@example.com")
	require.NoError(t, app.db.Unscoped().Delete(&u).Error)

	resp := app.do(t, http.MethodGet, "/dashboard", "", token)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login"))
}

func TestAPIRequiresSession(t *testing.T) {
	app := newTestApp(t)
	for _, path := range []string{"/api/clients", "/api/income", "/api/tasks", "/api/invoices", "/api/auth/me"} {
		resp := app.do(t, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, readBody(t, resp))
	}
}

func TestAPIResourceLifecycle(t *testing.T) {
	app := newTestApp(t)
	_, token := app.session(t, "jane@example.com")
	_, otherToken := app.session(t, "other@example.com")

	resp := app.do(t, http.MethodPost, "/api/clients", `{"name":"Acme","email":"a@acme.test"}`, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, readBody(t, resp))

	resp = app.do(t, http.MethodPost, "/api/clients", `{"email":"a@acme.test"}`, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = app.do(t, http.MethodPost, "/api/invoices", `{"clientName":"Acme","amount":10}`, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"invoiceId":"INV-001"`)
	resp = app.do(t, http.MethodPost, "/api/invoices", `{"clientName":"Acme","amount":20}`, token)
	assert.Contains(t, readBody(t, resp), `"invoiceId":"INV-002"`)

	// Invoice ids are sequenced per user.
	resp = app.do(t, http.MethodPost, "/api/invoices", `{"clientName":"Other","amount":5}`, otherToken)
	assert.Contains(t, readBody(t, resp), `"invoiceId":"INV-001"`)

	resp = app.do(t, http.MethodGet, "/api/invoices", "", otherToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, readBody(t, resp), "INV-002")

	resp = app.do(t, http.MethodDelete, "/api/tasks/9999", "", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Task not found"}`, readBody(t, resp))

	resp = app.do(t, http.MethodGet, "/api/nowhere", "", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPageLoginSetsSession(t *testing.T) {
	app := newTestApp(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, app.db.Create(&models.User{Name: "Jane", Email: "jane@example.com", Password: string(hash), Verified: true}).Error)

	form := url.Values{"identifier": {"jane@example.com"}, "password": {"correct-horse"}, "callbackUrl": {"/clients"}}
	req, err := http.NewRequest(http.MethodPost, app.URL+"/login", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/clients", resp.Header.Get("Location"))

	var session string
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			session = c.Value
		}
	}
	require.NotEmpty(t, session)
	resp = app.do(t, http.MethodGet, "/clients", "", session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	resp := app.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, readBody(t, resp))

	resp = app.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "freelance_desk_http_requests_total")
}

// loginFrom posts a login attempt carrying the given X-Forwarded-For header.
func (a *testApp) loginFrom(t *testing.T, forwardedFor string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, a.URL+"/api/auth/login",
		strings.NewReader(`{"identifier":"ghost@example.com","password":"whatever"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", forwardedFor)
	resp, err := a.client().Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestAuthRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	app := newTestAppWith(t, func(d *Deps) {
		d.Limiter = middleware.NewRateLimiter(5, nil)
	})

	limited := 0
	for i := 0; i < 10; i++ {
		if app.loginFrom(t, fmt.Sprintf("203.0.113.%d", i)) == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 5, limited)
}

func TestAuthRateLimitBehindTrustedProxy(t *testing.T) {
	app := newTestAppWith(t, func(d *Deps) {
		d.TrustProxy = true
		d.Limiter = middleware.NewRateLimiter(2, nil)
	})

	assert.NotEqual(t, http.StatusTooManyRequests, app.loginFrom(t, "203.0.113.1"))
	assert.NotEqual(t, http.StatusTooManyRequests, app.loginFrom(t, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, app.loginFrom(t, "203.0.113.1"))
	assert.NotEqual(t, http.StatusTooManyRequests, app.loginFrom(t, "203.0.113.2"))
}
