package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func fakeGoogle(t *testing.T, info map[string]any) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGoogle(srv *httptest.Server) *Google {
	return NewGoogle("cid", "secret", "http://localhost/api/auth/oauth/google/callback").
		WithEndpoints(oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"}, srv.URL+"/userinfo")
}

func TestGoogleAuthCodeURL(t *testing.T) {
	g := NewGoogle("cid", "secret", "http://localhost/cb")
	u, err := url.Parse(g.AuthCodeURL("state-123"))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "http://localhost/cb", q.Get("redirect_uri"))
	assert.Contains(t, q.Get("scope"), "email")
}

func TestGoogleExchange(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{"email": " Jane@Example.com ", "name": "Jane", "email_verified": true})
	p, err := newTestGoogle(srv).Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, Profile{Email: "jane@example.com", Name: "Jane", EmailVerified: true}, p)
}

func TestGoogleExchangeBadCode(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{"email": "jane@example.com"})
	_, err := newTestGoogle(srv).Exchange(context.Background(), "bad-code")
	assert.Error(t, err)
}

func TestGoogleExchangeNoEmail(t *testing.T) {
	srv := fakeGoogle(t, map[string]any{"name": "Nobody"})
	_, err := newTestGoogle(srv).Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, ErrNoEmail)
}
