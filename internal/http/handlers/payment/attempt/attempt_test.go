package attempt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/lucasmartins-br/fitgate/internal/http/middlewarectx"
	"github.com/lucasmartins-br/fitgate/internal/services/reconciler"
)

type MockService struct{ mock.Mock }

func (m *MockService) StartPaymentAttempt(ctx context.Context, userUID string) (string, error) {
	args := m.Called(ctx, userUID)
	return args.String(0), args.Error(1)
}

func TestAttemptHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))

	tests := []struct {
		name           string
		userUID        string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:    "attempt opened",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("StartPaymentAttempt", mock.Anything, "user-1").Return("TX123", nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"payment_ref":"TX123"`,
		},
		{
			name:    "subscription already active",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("StartPaymentAttempt", mock.Anything, "user-1").
					Return("", reconciler.ErrAlreadyActive)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"subscription already active"`,
		},
		{
			name:           "missing user uid in context",
			userUID:        "",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"unauthorized"`,
		},
		{
			name:    "service failure",
			userUID: "user-1",
			setupMock: func(m *MockService) {
				m.On("StartPaymentAttempt", mock.Anything, "user-1").
					Return("", errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"could not open payment attempt"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/payments/attempt", nil)
			if tt.userUID != "" {
				req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, tt.userUID))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())
			mockService.AssertExpectations(t)
		})
	}
}
