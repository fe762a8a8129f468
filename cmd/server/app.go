package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/freelance-desk/auth"
	"github.com/diewo77/freelance-desk/gate"
	"github.com/diewo77/freelance-desk/httpx"
	"github.com/diewo77/freelance-desk/internal/db"
	"github.com/diewo77/freelance-desk/internal/handlers"
	"github.com/diewo77/freelance-desk/internal/middleware"
	"github.com/diewo77/freelance-desk/internal/oauth"
	"github.com/diewo77/freelance-desk/internal/services"
)

// Deps are the collaborators the application is built from.
type Deps struct {
	DB            *gorm.DB
	Tokens        *auth.Tokens
	Accounts      *services.Accounts
	OAuth         oauth.Provider // nil disables OAuth login
	SecureCookies bool
	Log           *zap.Logger
	Metrics       *middleware.Metrics
	Limiter       *middleware.RateLimiter
	TrustProxy    bool
}

// App is the main application handler that sets up all routes.
type App struct {
	router chi.Router
	deps   Deps
}

// NewApp creates a new application with all routes configured.
func NewApp(deps Deps) *App {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = middleware.NewMetrics()
	}
	app := &App{router: chi.NewRouter(), deps: deps}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *App) setupRoutes() {
	d := a.deps
	r := a.router

	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Recover(d.Log))
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(d.Metrics.Middleware)
	r.Use(auth.Middleware(d.Tokens, d.Accounts.Exists))
	r.Use(gate.DefaultRoutes().Middleware(func(r *http.Request) bool {
		_, ok := auth.UserIDFromContext(r.Context())
		return ok
	}))

	owners := handlers.NewOwnershipGate()
	invoiceSvc := services.NewInvoiceService(d.DB)
	authH := handlers.NewAuthHandler(d.Accounts, d.OAuth, d.SecureCookies, d.Log)
	clientH := handlers.NewClientHandler(d.DB, owners, d.Log)
	incomeH := handlers.NewIncomeHandler(d.DB, owners, d.Log)
	taskH := handlers.NewTaskHandler(d.DB, owners, d.Log)
	invoiceH := handlers.NewInvoiceHandler(d.DB, owners, invoiceSvc, d.Log)
	pages := handlers.NewPageHandler(handlers.PageDeps{
		Auth:      authH,
		Dashboard: services.NewDashboardService(d.DB, invoiceSvc),
		Clients:   clientH,
		Income:    incomeH,
		Tasks:     taskH,
		Invoices:  invoiceH,
	}, d.Log)

	r.Get("/healthz", a.health)
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	// ─────────────────────────────────────────────────────────────────────────
	// Pages
	// ─────────────────────────────────────────────────────────────────────────
	r.Get("/", pages.Home)
	r.Get("/login", pages.LoginForm)
	r.Get("/signup", pages.SignupForm)
	r.Get("/forgot", pages.ForgotForm)
	r.Get("/reset", pages.ResetForm)
	r.Get("/logout", pages.Logout)
	r.Group(func(r chi.Router) {
		if d.Limiter != nil {
			r.Use(d.Limiter.Handler)
		}
		r.Post("/login", pages.Login)
		r.Post("/signup", pages.Signup)
		r.Post("/forgot", pages.Forgot)
		r.Post("/reset", pages.Reset)
	})
	r.Get("/dashboard", pages.Dashboard)
	r.Get("/clients", pages.Clients)
	r.Get("/income", pages.Income)
	r.Get("/tasks", pages.Tasks)
	r.Get("/invoices", pages.Invoices)
	r.Get("/profile", pages.Profile)
	r.Post("/profile", pages.ChangePassword)

	// ─────────────────────────────────────────────────────────────────────────
	// JSON API
	// ─────────────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if d.Limiter != nil {
					r.Use(d.Limiter.Handler)
				}
				r.Post("/signup", authH.Signup)
				r.Post("/login", authH.Login)
				r.Post("/forgot", authH.Forgot)
				r.Post("/reset", authH.Reset)
			})
			r.Post("/logout", authH.Logout)
			r.Get("/verify", authH.Verify)
			r.Get("/oauth/google", authH.OAuthStart)
			r.Get("/oauth/google/callback", authH.OAuthCallback)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireUser)
				r.Get("/me", authH.Me)
				r.Post("/update-password", authH.UpdatePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", clientH.List)
				r.Post("/", clientH.Create)
				r.Get("/{id}", clientH.Get)
				r.Put("/{id}", clientH.Update)
				r.Delete("/{id}", clientH.Delete)
			})
			r.Route("/income", func(r chi.Router) {
				r.Get("/", incomeH.List)
				r.Post("/", incomeH.Create)
				r.Get("/{id}", incomeH.Get)
				r.Put("/{id}", incomeH.Update)
				r.Delete("/{id}", incomeH.Delete)
				r.Post("/{id}/payments", incomeH.AddPayment)
			})
			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", taskH.List)
				r.Post("/", taskH.Create)
				r.Get("/{id}", taskH.Get)
				r.Put("/{id}", taskH.Update)
				r.Delete("/{id}", taskH.Delete)
				r.Post("/{id}/payments", taskH.AddPayment)
			})
			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", invoiceH.List)
				r.Post("/", invoiceH.Create)
				r.Get("/{id}", invoiceH.Get)
				r.Put("/{id}", invoiceH.Update)
				r.Delete("/{id}", invoiceH.Delete)
			})
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSONError(w, http.StatusNotFound, "Not found", nil)
		})
	})
}

// health reports whether the database answers a ping.
func (a *App) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := db.Ping(ctx, a.deps.DB); err != nil {
		a.deps.Log.Warn("health check failed", zap.Error(err))
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
