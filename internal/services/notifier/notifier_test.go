package notifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	libsmtp "github.com/lucasmartins-br/fitgate/internal/lib/smtp"
	"github.com/lucasmartins-br/fitgate/internal/models"
)

type ClientMock struct {
	mock.Mock
	buf bytes.Buffer
}

func (m *ClientMock) Mail(from string) error { return m.Called(from).Error(0) }
func (m *ClientMock) Rcpt(to string) error   { return m.Called(to).Error(0) }
func (m *ClientMock) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}
func (m *ClientMock) Quit() error  { return m.Called().Error(0) }
func (m *ClientMock) Close() error { return m.Called().Error(0) }

type nopWriteCloser struct{ *bytes.Buffer }

func (nopWriteCloser) Close() error { return nil }

type TransportMock struct{ mock.Mock }

func (m *TransportMock) Connect() (libsmtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(libsmtp.Client), args.Error(1)
}
func (m *TransportMock) GetSMTPUser() string {
	return m.Called().String(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func activatedEvent(email string) []byte {
	body, _ := json.Marshal(models.LifecycleEvent{
		UserUID:    "user-1",
		Status:     models.StatusActive,
		PaymentRef: "TX123",
		ExpiresAt:  time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Email:      email,
		OccurredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	})
	return body
}

func TestHandleActivated(t *testing.T) {
	client := new(ClientMock)
	client.On("Mail", "noreply@example.com").Return(nil).Once()
	client.On("Rcpt", "payer@example.com").Return(nil).Once()
	client.On("Data").Return(nopWriteCloser{&client.buf}, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()

	transport := new(TransportMock)
	transport.On("Connect").Return(client, nil).Once()
	transport.On("GetSMTPUser").Return("noreply@example.com")

	svc := New(transport, newNoopLogger())
	err := svc.HandleActivated(activatedEvent("payer@example.com"))

	require.NoError(t, err)
	assert.Contains(t, client.buf.String(), "Subject: Your subscription is active")
	assert.Contains(t, client.buf.String(), "01 Jul 2025")
	client.AssertExpectations(t)
	transport.AssertExpectations(t)
}

func TestHandleActivated_NoEmailSkipsMail(t *testing.T) {
	transport := new(TransportMock)

	svc := New(transport, newNoopLogger())
	err := svc.HandleActivated(activatedEvent(""))

	require.NoError(t, err)
	transport.AssertNotCalled(t, "Connect")
}

func TestHandleActivated_BadPayload(t *testing.T) {
	svc := New(new(TransportMock), newNoopLogger())
	err := svc.HandleActivated([]byte("not-json"))
	require.Error(t, err)
}

func TestHandleExpired(t *testing.T) {
	client := new(ClientMock)
	client.On("Mail", "noreply@example.com").Return(nil).Once()
	client.On("Rcpt", "payer@example.com").Return(nil).Once()
	client.On("Data").Return(nopWriteCloser{&client.buf}, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()

	transport := new(TransportMock)
	transport.On("Connect").Return(client, nil).Once()
	transport.On("GetSMTPUser").Return("noreply@example.com")

	body, _ := json.Marshal(models.LifecycleEvent{
		UserUID:    "user-1",
		Status:     models.StatusExpired,
		Email:      "payer@example.com",
		OccurredAt: time.Now().UTC(),
	})

	svc := New(transport, newNoopLogger())
	err := svc.HandleExpired(body)

	require.NoError(t, err)
	assert.Contains(t, client.buf.String(), "Subject: Your subscription has expired")
	client.AssertExpectations(t)
}

func TestHandleActivated_ConnectFailure(t *testing.T) {
	transport := new(TransportMock)
	transport.On("Connect").Return(nil, errors.New("dial failed")).Once()
	transport.On("GetSMTPUser").Return("noreply@example.com")

	svc := New(transport, newNoopLogger())
	err := svc.HandleActivated(activatedEvent("payer@example.com"))

	require.Error(t, err)
	transport.AssertExpectations(t)
}
