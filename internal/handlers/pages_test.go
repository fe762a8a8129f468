package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/internal/models"
	"github.com/diewo77/freelance-desk/internal/services"
)

func newPageFixture(t *testing.T) (*PageHandler, *authFixture) {
	t.Helper()
	f := newAuthFixture(t, nil)
	g := NewOwnershipGate()
	invoices := services.NewInvoiceService(f.db)
	pages := NewPageHandler(PageDeps{
		Auth:      f.h,
		Dashboard: services.NewDashboardService(f.db, invoices),
		Clients:   NewClientHandler(f.db, g, nil),
		Income:    NewIncomeHandler(f.db, g, nil),
		Tasks:     NewTaskHandler(f.db, g, nil),
		Invoices:  NewInvoiceHandler(f.db, g, invoices, nil),
	}, nil)
	return pages, f
}

func postForm(h http.HandlerFunc, target string, form url.Values, uid uint) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if uid != 0 {
		req = req.WithContext(auth.WithUserID(req.Context(), uid))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func get(h http.HandlerFunc, target string, uid uint) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if uid != 0 {
		req = req.WithContext(auth.WithUserID(req.Context(), uid))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLoginPage(t *testing.T) {
	pages, f := newPageFixture(t)
	f.seedVerified(t, "jane@example.com", "correct-horse")

	rec := get(pages.LoginForm, "/login?callbackUrl=%2Finvoices&verified=1", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="callbackUrl" value="/invoices"`)
	assert.Contains(t, body, "Your email is verified")

	rec = postForm(pages.Login, "/login", url.Values{
		"identifier": {"jane@example.com"}, "password": {"wrong"}, "callbackUrl": {"/invoices"},
	}, 0)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")

	rec = postForm(pages.Login, "/login", url.Values{
		"identifier": {"jane@example.com"}, "password": {"correct-horse"}, "callbackUrl": {"/invoices?status=paid"},
	}, 0)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/invoices?status=paid", rec.Header().Get("Location"))
	assert.NotNil(t, sessionCookie(rec))

	rec = postForm(pages.Login, "/login", url.Values{
		"identifier": {"jane@example.com"}, "password": {"correct-horse"}, "callbackUrl": {"//evil.test"},
	}, 0)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestSignupPage(t *testing.T) {
	pages, f := newPageFixture(t)

	rec := get(pages.SignupForm, "/signup", 0)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postForm(pages.Signup, "/signup", url.Values{"name": {"Ann"}, "email": {"ann@"}, "password": {"short"}}, 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_email")
	assert.Contains(t, rec.Body.String(), `value="Ann"`)

	rec = postForm(pages.Signup, "/signup", url.Values{"name": {"Ann"}, "email": {"ann@example.com"}, "password": {"long-enough"}}, 0)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "Check your email")
	assert.Len(t, f.mailer.Sent(), 1)
}

func TestResetPage(t *testing.T) {
	pages, f := newPageFixture(t)
	f.seedVerified(t, "jane@example.com", "old-password")

	rec := postForm(pages.Forgot, "/forgot", url.Values{"email": {"jane@example.com"}}, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	token := linkToken(t, f.mailer.Sent()[0].Body)

	rec = get(pages.ResetForm, "/reset?token="+url.QueryEscape(token), 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="token"`)

	rec = postForm(pages.Reset, "/reset", url.Values{"token": {token}, "password": {"new-password"}}, 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Your password has been reset")

	rec = postForm(pages.Reset, "/reset", url.Values{"token": {token}, "password": {"new-password"}}, 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Token expired")
	assert.NotContains(t, rec.Body.String(), `name="token"`)
}

func TestDashboardAndTables(t *testing.T) {
	pages, f := newPageFixture(t)
	u := f.seedVerified(t, "jane@example.com", "password1")
	client := models.Client{UserID: u.ID, Name: "Acme Corp", Email: "a@acme.test", Category: models.ClientCategoryCompany, Status: models.ClientStatusActive}
	require.NoError(t, f.db.Create(&client).Error)
	require.NoError(t, f.db.Create(&models.Task{UserID: u.ID, ClientID: &client.ID, Name: "Landing page", Amount: 1234.5, DueDate: mustDate(t, "2026-11-01")}).Error)
	require.NoError(t, services.NewInvoiceService(f.db).Create(t.Context(), u.ID, &models.Invoice{ClientName: "Acme Corp", Amount: 2500, Status: models.InvoiceStatusPaid, IssueDate: mustDate(t, "2026-10-01")}))

	rec := get(pages.Dashboard, "/dashboard", u.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "Landing page")
	assert.Contains(t, body, "INV-001")
	assert.Contains(t, body, "$2,500.00")

	rec = get(pages.Clients, "/clients", u.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Acme Corp")

	rec = get(pages.Tasks, "/tasks", u.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "$1,234.50")

	rec = get(pages.Invoices, "/invoices?status=bogus", u.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(pages.Income, "/income", u.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No income sources yet")

	rec = get(pages.Profile, "/profile", u.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "jane@example.com")
}

func TestHomeAndLogout(t *testing.T) {
	pages, _ := newPageFixture(t)
	assert.Equal(t, "/login", get(pages.Home, "/", 0).Header().Get("Location"))
	assert.Equal(t, "/dashboard", get(pages.Home, "/", 7).Header().Get("Location"))

	rec := get(pages.Logout, "/logout", 7)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}
