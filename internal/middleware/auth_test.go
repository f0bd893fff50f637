package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sipeta-bknd/internal/auth"
	"sipeta-bknd/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVersions struct {
	mock.Mock
}

func (m *mockVersions) CheckTokenVersion(ctx context.Context, id string, version int) (bool, error) {
	args := m.Called(ctx, id, version)
	return args.Bool(0), args.Error(1)
}

func setup(t *testing.T) (*auth.JWTManager, *mockVersions, http.Handler) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	jwtMgr := auth.NewJWTManagerFromKey(key, "sipeta")
	versions := &mockVersions{}
	mw := NewAuthMiddleware(jwtMgr, versions, logger.Nop())

	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Operator", ClaimsFrom(r.Context()).Subject)
		w.WriteHeader(http.StatusNoContent)
	})
	return jwtMgr, versions, mw.JWTAuth(mw.RequireRole(auth.RoleAdmin)(final))
}

func do(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/map/refresh", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth_AdminPasses(t *testing.T) {
	jwtMgr, versions, h := setup(t)
	pair, err := jwtMgr.GenerateTokenPair("op-1", time.Minute, time.Hour, 2, "local", []string{auth.RoleAdmin})
	require.NoError(t, err)
	versions.On("CheckTokenVersion", mock.Anything, "op-1", 2).Return(true, nil)

	rec := do(h, "Bearer "+pair.AccessToken)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "op-1", rec.Header().Get("X-Operator"))
	versions.AssertExpectations(t)
}

func TestJWTAuth_Rejections(t *testing.T) {
	jwtMgr, versions, h := setup(t)

	viewer, err := jwtMgr.GenerateTokenPair("op-2", time.Minute, time.Hour, 0, "ldap", []string{"viewer"})
	require.NoError(t, err)
	revoked, err := jwtMgr.GenerateTokenPair("op-3", time.Minute, time.Hour, 1, "local", []string{auth.RoleAdmin})
	require.NoError(t, err)
	broken, err := jwtMgr.GenerateTokenPair("op-4", time.Minute, time.Hour, 0, "local", []string{auth.RoleAdmin})
	require.NoError(t, err)

	versions.On("CheckTokenVersion", mock.Anything, "op-2", 0).Return(true, nil)
	versions.On("CheckTokenVersion", mock.Anything, "op-3", 1).Return(false, nil)
	versions.On("CheckTokenVersion", mock.Anything, "op-4", 0).Return(false, errors.New("db down"))

	tests := []struct {
		name   string
		authz  string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"no bearer prefix", viewer.AccessToken, http.StatusUnauthorized},
		{"refresh token", "Bearer " + viewer.RefreshToken, http.StatusUnauthorized},
		{"not admin", "Bearer " + viewer.AccessToken, http.StatusForbidden},
		{"revoked version", "Bearer " + revoked.AccessToken, http.StatusUnauthorized},
		{"version lookup fails", "Bearer " + broken.AccessToken, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.authz)
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"success":false`)
		})
	}
}
