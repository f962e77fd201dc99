package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsync/internal/shared/auth"
)

func TestAuth(t *testing.T) {
	issuer := auth.NewJWT("test-secret")
	token, err := issuer.Generate(42, "owner@finsync.test")
	require.NoError(t, err)

	foreign, err := auth.NewJWT("other-secret").Generate(42, "owner@finsync.test")
	require.NoError(t, err)

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
	}{
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
		}, http.StatusOK},
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+token)
		}, http.StatusOK},
		{"cookie wins over bad header", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
			r.Header.Set("Authorization", "Bearer garbage")
		}, http.StatusOK},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong scheme", func(r *http.Request) {
			r.Header.Set("Authorization", "Token "+token)
		}, http.StatusUnauthorized},
		{"signed with another secret", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+foreign)
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen int64
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				id, ok := UserIDFromContext(r.Context())
				require.True(t, ok)
				seen = id
			})

			req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			Auth(issuer)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, int64(42), seen)
				return
			}

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
			assert.Zero(t, seen)
		})
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	_, ok := UserIDFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
