package gate

import (
	"net/http"
	"net/url"
	"strings"
)

// Decision is the outcome of the route gate for one request.
type Decision int

const (
	Allow Decision = iota
	RedirectLogin
	RedirectLanding
)

func (d Decision) String() string {
	switch d {
	case RedirectLogin:
		return "redirect_login"
	case RedirectLanding:
		return "redirect_landing"
	default:
		return "allow"
	}
}

// Routes configures the route gate.
type Routes struct {
	// AuthPrefix is never gated so login and OAuth flows stay reachable.
	AuthPrefix string
	// Protected prefixes require a session.
	Protected []string
	// Guest pages redirect to Landing when a session exists.
	Guest   []string
	Login   string
	Landing string
}

// DefaultRoutes returns the application's route table.
func DefaultRoutes() Routes {
	return Routes{
		AuthPrefix: "/api/auth",
		Protected:  []string{"/dashboard", "/clients", "/income", "/tasks", "/invoices", "/profile"},
		Guest:      []string{"/login", "/signup"},
		Login:      "/login",
		Landing:    "/dashboard",
	}
}

// underPrefix matches prefix itself or any path below it. "/clients-info"
// does not match "/clients".
func underPrefix(path, prefix string) bool {
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/' || strings.HasSuffix(prefix, "/")
}

// Decide evaluates the gate for path given whether a valid session exists.
func (rt Routes) Decide(path string, authenticated bool) Decision {
	if rt.AuthPrefix != "" && underPrefix(path, rt.AuthPrefix) {
		return Allow
	}
	if !authenticated {
		for _, p := range rt.Protected {
			if underPrefix(path, p) {
				return RedirectLogin
			}
		}
		return Allow
	}
	for _, g := range rt.Guest {
		if path == g {
			return RedirectLanding
		}
	}
	return Allow
}

// LoginURL builds the login redirect carrying the original destination.
func (rt Routes) LoginURL(r *http.Request) string {
	return rt.Login + "?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
}

// Middleware applies the route gate. authenticated reports whether the
// request carries a valid session; it must not panic on bad input.
func (rt Routes) Middleware(authenticated func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch rt.Decide(r.URL.Path, authenticated(r)) {
			case RedirectLogin:
				http.Redirect(w, r, rt.LoginURL(r), http.StatusSeeOther)
			case RedirectLanding:
				http.Redirect(w, r, rt.Landing, http.StatusSeeOther)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// LocalPath returns target when it is a same-origin path, otherwise fallback.
func LocalPath(target, fallback string) string {
	if target == "" || !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
