package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	libjwt "github.com/lucasmartins-br/fitgate/internal/lib/jwt"
)

const testSecret = "test-secret"

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestIdentityMiddleware(t *testing.T) {
	maker := libjwt.NewMaker(testSecret)

	validToken, err := maker.GenerateToken("user-1", "user@example.com", true, time.Hour)
	require.NoError(t, err)
	unverifiedToken, err := maker.GenerateToken("user-1", "user@example.com", false, time.Hour)
	require.NoError(t, err)
	expiredToken, err := maker.GenerateToken("user-1", "user@example.com", true, -time.Hour)
	require.NoError(t, err)
	foreignToken, err := libjwt.NewMaker("other-secret").GenerateToken("user-1", "user@example.com", true, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectNext     bool
	}{
		{
			name:           "valid verified token passes",
			authHeader:     "Bearer " + validToken,
			expectedStatus: http.StatusOK,
			expectNext:     true,
		},
		{
			name:           "missing header is rejected",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "non bearer header is rejected",
			authHeader:     "Basic dXNlcjpwYXNz",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "token signed with another secret is rejected",
			authHeader:     "Bearer " + foreignToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "expired token is rejected",
			authHeader:     "Bearer " + expiredToken,
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "unverified identity is rejected",
			authHeader:     "Bearer " + unverifiedToken,
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nextCalled := false
			var gotUID, gotEmail any
			next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				nextCalled = true
				gotUID = r.Context().Value(UserUID)
				gotEmail = r.Context().Value(UserEmail)
			})

			req := httptest.NewRequest(http.MethodGet, "/entitlement", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := httptest.NewRecorder()

			IdentityMiddleware(maker, newNoopLogger())(next).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectNext, nextCalled)
			if tt.expectNext {
				assert.Equal(t, "user-1", gotUID)
				assert.Equal(t, "user@example.com", gotEmail)
			}
		})
	}
}
