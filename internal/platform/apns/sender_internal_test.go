// --- File: internal/platform/apns/sender_internal_test.go ---
package apns

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// MockAPNSClient definition kept here for internal test visibility.
type MockAPNSClient struct {
	mock.Mock
}

func (m *MockAPNSClient) Push(n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

func newTestSender(client APNSClient) *Sender {
	return &Sender{
		client: client,
		topic:  "com.tinywide.messenger",
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func writeSigningKey(t *testing.T, dir string) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	path := filepath.Join(dir, "authkey.p8")
	require.NoError(t, os.WriteFile(path, pemKey, 0o600))
	return path
}

func TestNewSenderCredentialTiers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid signing key", func(t *testing.T) {
		cfg := Config{
			KeyFile:  writeSigningKey(t, t.TempDir()),
			KeyID:    "KEY123",
			TeamID:   "TEAM456",
			BundleID: "com.tinywide.messenger",
		}

		sender, err := NewSender(cfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "com.tinywide.messenger", sender.topic)
	})

	t.Run("missing key file aborts", func(t *testing.T) {
		cfg := Config{KeyFile: filepath.Join(t.TempDir(), "absent.p8")}
		require.Panics(t, func() {
			_, _ = NewSender(cfg, logger)
		})
	})

	t.Run("unparseable key is recoverable", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.p8")
		require.NoError(t, os.WriteFile(path, []byte("not a pem block"), 0o600))

		sender, err := NewSender(Config{KeyFile: path}, logger)

		assert.Nil(t, sender)
		assert.ErrorIs(t, err, push.ErrCredentialLoad)
	})
}

func TestSendFixedAlert(t *testing.T) {
	ctx := context.Background()
	mockClient := new(MockAPNSClient)
	sender := newTestSender(mockClient)

	var sent *apns2.Notification
	mockClient.On("Push", mock.AnythingOfType("*apns2.Notification")).
		Run(func(args mock.Arguments) { sent = args.Get(0).(*apns2.Notification) }).
		Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

	err := sender.Send(ctx, "abc123")

	require.NoError(t, err)
	require.NotNil(t, sent)
	assert.Equal(t, "abc123", sent.DeviceToken)
	assert.Equal(t, "com.tinywide.messenger", sent.Topic)
	assert.Equal(t, "new_chat_messages", sent.CollapseID)

	raw, err := json.Marshal(sent.Payload)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"title":"Tinywide Messenger"`)
	assert.Contains(t, string(raw), `"body":"You have new messages"`)
	mockClient.AssertExpectations(t)
}

func TestSendReasonMapping(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		response *apns2.Response
		want     error
	}{
		{"bad device token is permanently invalid", &apns2.Response{StatusCode: 400, Reason: apns2.ReasonBadDeviceToken}, push.ErrTokenInvalid},
		{"unregistered is permanently invalid", &apns2.Response{StatusCode: 410, Reason: apns2.ReasonUnregistered}, push.ErrTokenInvalid},
		{"token not for topic is permanently invalid", &apns2.Response{StatusCode: 400, Reason: apns2.ReasonDeviceTokenNotForTopic}, push.ErrTokenInvalid},
		{"too many requests rate limits the token", &apns2.Response{StatusCode: 429, Reason: apns2.ReasonTooManyRequests}, push.ErrTokenRateLimited},
		{"service unavailable is a temporary endpoint failure", &apns2.Response{StatusCode: 503, Reason: apns2.ReasonServiceUnavailable}, push.ErrEndpointUnavailable},
		{"shutdown is a temporary endpoint failure", &apns2.Response{StatusCode: 503, Reason: apns2.ReasonShutdown}, push.ErrEndpointUnavailable},
		{"unlisted 5xx is a temporary endpoint failure", &apns2.Response{StatusCode: 500, Reason: "SomethingOdd"}, push.ErrEndpointUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockClient := new(MockAPNSClient)
			mockClient.On("Push", mock.Anything).Return(tc.response, nil)

			err := newTestSender(mockClient).Send(ctx, "stale-token")

			assert.ErrorIs(t, err, tc.want)
		})
	}

	t.Run("configuration rejects are unknown with the status attached", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		mockClient.On("Push", mock.Anything).
			Return(&apns2.Response{StatusCode: 400, Reason: apns2.ReasonTopicDisallowed}, nil)

		err := newTestSender(mockClient).Send(ctx, "abc123")

		var unknown *push.UnknownError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, uint16(400), unknown.Code)
	})

	t.Run("transport failure is a temporary endpoint failure", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		mockClient.On("Push", mock.Anything).Return(nil, errors.New("connection refused"))

		err := newTestSender(mockClient).Send(ctx, "abc123")

		assert.ErrorIs(t, err, push.ErrEndpointUnavailable)
	})
}
