package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/gate"
	"github.com/diewo77/freelance-desk/internal/apperr"
	"github.com/diewo77/freelance-desk/internal/services"
	"github.com/diewo77/freelance-desk/validation"
	"github.com/diewo77/freelance-desk/view"
)

// PageHandler serves the server-rendered pages. Access control for the
// protected pages is applied by the route gate.
type PageHandler struct {
	auth      *AuthHandler
	dashboard *services.DashboardService
	clients   *ClientHandler
	income    *IncomeHandler
	tasks     *TaskHandler
	invoices  *InvoiceHandler
	log       *zap.Logger
}

type PageDeps struct {
	Auth      *AuthHandler
	Dashboard *services.DashboardService
	Clients   *ClientHandler
	Income    *IncomeHandler
	Tasks     *TaskHandler
	Invoices  *InvoiceHandler
}

func NewPageHandler(deps PageDeps, log *zap.Logger) *PageHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PageHandler{
		auth:      deps.Auth,
		dashboard: deps.Dashboard,
		clients:   deps.Clients,
		income:    deps.Income,
		tasks:     deps.Tasks,
		invoices:  deps.Invoices,
		log:       log,
	}
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	if err := view.RenderStatus(w, r, status, name, data); err != nil {
		h.log.Error("render page", zap.String("template", name), zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// renderError shows err on the page using the status mapped from its kind.
func (h *PageHandler) renderError(w http.ResponseWriter, r *http.Request, name string, data map[string]any, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		h.log.Error("page request failed", zap.String("template", name), zap.Error(e))
		data["Error"] = "Something went wrong, please try again"
	} else {
		data["Error"] = e.Message
		if details, ok := e.Details.(validation.Violations); ok {
			data["Errors"] = details
		}
	}
	h.render(w, r, e.Status(), name, data)
}

// Home sends visitors to the dashboard or the login page.
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		http.Redirect(w, r, landingPath, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *PageHandler) loginData(r *http.Request) map[string]any {
	data := map[string]any{
		"Title":         "Log in",
		"CallbackURL":   gate.LocalPath(r.FormValue("callbackUrl"), landingPath),
		"GoogleEnabled": h.auth.provider != nil,
	}
	if r.URL.Query().Get("verified") == "1" {
		data["Notice"] = "Your email is verified. You can now log in."
	}
	return data
}

func (h *PageHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", h.loginData(r))
}

// Login checks the posted credentials and redirects to the callback URL.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	data := h.loginData(r)
	identifier := r.PostFormValue("identifier")
	data["Identifier"] = identifier

	id, err := h.auth.accounts.Authenticate(r.Context(), identifier, r.PostFormValue("password"))
	if err != nil {
		h.renderError(w, r, "login.html", data, err)
		return
	}
	if err := h.auth.startSession(w, id.ID); err != nil {
		h.renderError(w, r, "login.html", data, err)
		return
	}
	http.Redirect(w, r, data["CallbackURL"].(string), http.StatusSeeOther)
}

func (h *PageHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", map[string]any{"Title": "Sign up", "Form": services.SignupInput{}})
}

func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	in := services.SignupInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Phone:    r.PostFormValue("phone"),
	}
	if _, err := h.auth.accounts.Signup(r.Context(), in); err != nil {
		in.Password = ""
		h.renderError(w, r, "signup.html", map[string]any{"Title": "Sign up", "Form": in}, err)
		return
	}
	data := h.loginData(r)
	data["Notice"] = "Account created. Check your email for a verification link."
	h.render(w, r, http.StatusCreated, "login.html", data)
}

func (h *PageHandler) ForgotForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "forgot.html", map[string]any{"Title": "Forgot password"})
}

func (h *PageHandler) Forgot(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Forgot password"}
	if err := h.auth.accounts.RequestReset(r.Context(), r.FormValue("email")); err != nil {
		h.renderError(w, r, "forgot.html", data, err)
		return
	}
	data["Notice"] = msgForgotSent
	h.render(w, r, http.StatusOK, "forgot.html", data)
}

func (h *PageHandler) ResetForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "reset.html", map[string]any{"Title": "Reset password", "Token": r.URL.Query().Get("token")})
}

func (h *PageHandler) Reset(w http.ResponseWriter, r *http.Request) {
	token := r.FormValue("token")
	data := map[string]any{"Title": "Reset password", "Token": token}
	if err := h.auth.accounts.ResetPassword(r.Context(), token, r.FormValue("password")); err != nil {
		if apperr.Is(err, apperr.KindValidation) && apperr.From(err).Details == nil {
			// Token problems: the form cannot be resubmitted.
			data["Token"] = ""
		}
		h.renderError(w, r, "reset.html", data, err)
		return
	}
	data = h.loginData(r)
	data["Notice"] = "Your password has been reset. You can now log in."
	h.render(w, r, http.StatusOK, "login.html", data)
}

func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Dashboard"}
	summary, err := h.dashboard.Summary(r.Context(), currentUser(r))
	if err != nil {
		h.renderError(w, r, "dashboard.html", data, apperr.Internal("dashboard summary", err))
		return
	}
	data["Summary"] = summary
	h.render(w, r, http.StatusOK, "dashboard.html", data)
}

func (h *PageHandler) Clients(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Clients"}
	clients, err := h.clients.list(r)
	if err != nil {
		h.renderError(w, r, "clients.html", data, err)
		return
	}
	data["Clients"] = clients
	h.render(w, r, http.StatusOK, "clients.html", data)
}

func (h *PageHandler) Income(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Income"}
	sources, err := h.income.list(r)
	if err != nil {
		h.renderError(w, r, "income.html", data, err)
		return
	}
	data["Sources"] = sources
	h.render(w, r, http.StatusOK, "income.html", data)
}

func (h *PageHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Tasks"}
	tasks, err := h.tasks.list(r)
	if err != nil {
		h.renderError(w, r, "tasks.html", data, err)
		return
	}
	data["Tasks"] = tasks
	h.render(w, r, http.StatusOK, "tasks.html", data)
}

func (h *PageHandler) Invoices(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Title": "Invoices"}
	invoices, err := h.invoices.list(r)
	if err != nil {
		h.renderError(w, r, "invoices.html", data, err)
		return
	}
	data["Invoices"] = invoices
	h.render(w, r, http.StatusOK, "invoices.html", data)
}

func (h *PageHandler) profileData(r *http.Request) (map[string]any, error) {
	id, err := h.auth.accounts.Identity(r.Context(), currentUser(r))
	if err != nil {
		return nil, err
	}
	return map[string]any{"Title": "Profile", "User": id}, nil
}

func (h *PageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	data, err := h.profileData(r)
	if err != nil {
		h.renderError(w, r, "profile.html", map[string]any{"Title": "Profile"}, err)
		return
	}
	h.render(w, r, http.StatusOK, "profile.html", data)
}

// ChangePassword handles the profile password form.
func (h *PageHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	data, err := h.profileData(r)
	if err != nil {
		h.renderError(w, r, "profile.html", map[string]any{"Title": "Profile"}, err)
		return
	}
	err = h.auth.accounts.UpdatePassword(r.Context(), currentUser(r), r.FormValue("currentPassword"), r.FormValue("newPassword"))
	if err != nil {
		h.renderError(w, r, "profile.html", data, err)
		return
	}
	data["Notice"] = "Password updated"
	h.render(w, r, http.StatusOK, "profile.html", data)
}
