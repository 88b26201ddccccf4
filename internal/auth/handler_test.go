package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (chi.Router, *serviceFixture) {
	t.Helper()
	f := newServiceFixture(t)
	handler := NewHandler(slog.Default(), f.service)

	r := chi.NewRouter()
	r.Route("/api/auth", func(ar chi.Router) {
		handler.MountPublicRoutes(ar)
		ar.Group(func(priv chi.Router) {
			priv.Use(f.service.RequireAuth)
			handler.MountProtectedRoutes(priv)
		})
	})
	return r, f
}

func postJSON(t *testing.T, router http.Handler, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestLoginEndpointReturnsTokens(t *testing.T) {
	router, f := newTestRouter(t)
	f.seedUser(t, "correct horse battery", nil)

	rr := postJSON(t, router, "/api/auth/login", map[string]string{
		"email":    "cra@site.example",
		"password": "correct horse battery",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		User   map[string]any `json:"user"`
		Tokens *TokenPair     `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "u-1", resp.User["id"])
	require.NotEmpty(t, resp.Tokens.AccessToken)
	require.NotEmpty(t, resp.Tokens.RefreshToken)
}

func TestLoginEndpointBadCredentials(t *testing.T) {
	router, f := newTestRouter(t)
	f.seedUser(t, "correct horse battery", nil)

	rr := postJSON(t, router, "/api/auth/login", map[string]string{
		"email":    "cra@site.example",
		"password": "wrong",
	}, nil)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginEndpointValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := postJSON(t, router, "/api/auth/login", map[string]string{
		"email": "not-an-email",
	}, nil)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginEndpointSignalsMFARequired(t *testing.T) {
	router, f := newTestRouter(t)
	f.seedUser(t, "correct horse battery", func(u *User) {
		u.MFAEnabled = true
		u.MFASecret = testSecret
	})

	rr := postJSON(t, router, "/api/auth/login", map[string]string{
		"email":    "cra@site.example",
		"password": "correct horse battery",
	}, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, true, resp["requiresMfa"])
	require.NotContains(t, resp, "tokens")
}

func TestRefreshEndpointRotates(t *testing.T) {
	router, f := newTestRouter(t)
	f.seedUser(t, "correct horse battery", nil)

	login := postJSON(t, router, "/api/auth/login", map[string]string{
		"email":    "cra@site.example",
		"password": "correct horse battery",
	}, nil)
	require.Equal(t, http.StatusOK, login.Code)
	var loginResp struct {
		Tokens *TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginResp))

	refresh := postJSON(t, router, "/api/auth/refresh", map[string]string{
		"refreshToken": loginResp.Tokens.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, refresh.Code)

	replay := postJSON(t, router, "/api/auth/refresh", map[string]string{
		"refreshToken": loginResp.Tokens.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, replay.Code)
}

func TestLogoutEndpointAlwaysSucceeds(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := postJSON(t, router, "/api/auth/logout", map[string]string{
		"refreshToken": "garbage",
	}, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	empty := httptest.NewRecorder()
	router.ServeHTTP(empty, req)
	require.Equal(t, http.StatusNoContent, empty.Code)
}

func TestMeEndpointRequiresBearer(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMeEndpointReturnsPrincipal(t *testing.T) {
	router, f := newTestRouter(t)
	f.seedUser(t, "correct horse battery", nil)

	result, err := f.service.Login(context.Background(), "cra@site.example", "correct horse battery", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+result.Tokens.AccessToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var principal map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &principal))
	require.Equal(t, "u-1", principal["id"])
}

func TestChangePasswordEndpoint(t *testing.T) {
	router, f := newTestRouter(t)
	f.seedUser(t, "correct horse battery", nil)

	result, err := f.service.Login(context.Background(), "cra@site.example", "correct horse battery", "")
	require.NoError(t, err)
	authz := map[string]string{"Authorization": "Bearer " + result.Tokens.AccessToken}

	rr := postJSON(t, router, "/api/auth/password", map[string]string{
		"currentPassword": "correct horse battery",
		"newPassword":     "a whole new passphrase",
	}, authz)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = postJSON(t, router, "/api/auth/login", map[string]string{
		"email":    "cra@site.example",
		"password": "a whole new passphrase",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMFAVerifyEndpointValidatesToken(t *testing.T) {
	router, f := newTestRouter(t)
	f.seedUser(t, "correct horse battery", nil)

	result, err := f.service.Login(context.Background(), "cra@site.example", "correct horse battery", "")
	require.NoError(t, err)
	authz := map[string]string{"Authorization": "Bearer " + result.Tokens.AccessToken}

	rr := postJSON(t, router, "/api/auth/mfa/verify", map[string]string{
		"token": "12345",
	}, authz)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	// No staged secret: the setup session is gone.
	rr = postJSON(t, router, "/api/auth/mfa/verify", map[string]string{
		"token": "123456",
	}, authz)
	require.Equal(t, http.StatusGone, rr.Code)
}
