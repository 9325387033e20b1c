// Package web provides the Web Push (VAPID) backend.
package web

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// Config holds the VAPID key pair used to sign web push requests.
type Config struct {
	PublicKey       string
	PrivateKey      string
	SubscriberEmail string
}

type Sender struct {
	subscriber string
	privateKey string
	publicKey  string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewSender builds the Web Push backend. VAPID keys are opaque strings to
// us; a bad pair surfaces per-send, the way a bad FCM token would.
func NewSender(cfg Config, logger *slog.Logger) *Sender {
	return &Sender{
		privateKey: cfg.PrivateKey,
		publicKey:  cfg.PublicKey,
		subscriber: cfg.SubscriberEmail,
		logger:     logger.With("component", "WebPushSender"),
		httpClient: &http.Client{},
	}
}

// Send delivers the fixed wake-up payload to one subscription. The token for
// the webpush platform is the JSON-encoded subscription document the browser
// handed the client (endpoint plus p256dh/auth keys). Payload encryption
// happens locally before any request goes out, so a token that does not
// decode, or whose key material cannot be encrypted to, can never be
// delivered; both map to a permanently dead token.
func (s *Sender) Send(ctx context.Context, subscriptionToken string) error {
	var sub webpush.Subscription
	if err := json.Unmarshal([]byte(subscriptionToken), &sub); err != nil || sub.Endpoint == "" {
		return fmt.Errorf("%w: token is not a webpush subscription", push.ErrTokenInvalid)
	}
	if err := validateKeys(sub.Keys); err != nil {
		return fmt.Errorf("%w: %s", push.ErrTokenInvalid, err)
	}

	// Same fixed shape the mobile backends send; the tag carries the
	// collapse semantics for the service worker.
	payloadBytes, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{
			"title": push.NotificationTitle,
			"body":  push.NotificationBody,
			"tag":   push.CollapseKey,
		},
		"data": map[string]string{},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	resp, err := webpush.SendNotification(payloadBytes, &sub, &webpush.Options{
		Subscriber:      s.subscriber,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
		HTTPClient:      s.httpClient,
	})
	if err != nil {
		s.logger.Debug("WebPush transport failed", "endpoint", sub.Endpoint, "err", err)
		return fmt.Errorf("%w: %s", push.ErrEndpointUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		// 410 Gone / 404 Not Found: the subscription is dead.
		return fmt.Errorf("%w: status %d", push.ErrTokenInvalid, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", push.ErrTokenRateLimited, resp.StatusCode)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", push.ErrEndpointUnavailable, resp.StatusCode)
	default:
		s.logger.Debug("WebPush rejected", "status", resp.StatusCode, "endpoint", sub.Endpoint)
		return &push.UnknownError{Code: uint16(resp.StatusCode)}
	}
}

// validateKeys rejects subscription key material the library could never
// encrypt to. These failures are deterministic and happen before any HTTP
// request; classifying them as endpoint trouble would have callers retry a
// send that cannot succeed.
func validateKeys(keys webpush.Keys) error {
	auth, err := decodeKey(keys.Auth)
	if err != nil || len(auth) == 0 {
		return errors.New("auth secret is unusable")
	}
	dh, err := decodeKey(keys.P256dh)
	if err != nil {
		return errors.New("p256dh key is unusable")
	}
	if _, err := ecdh.P256().NewPublicKey(dh); err != nil {
		return errors.New("p256dh key is not a point on the curve")
	}
	return nil
}

// decodeKey accepts both base64 encodings browsers produce, matching the
// library's own leniency.
func decodeKey(value string) ([]byte, error) {
	value = strings.TrimRight(value, "=")
	if b, err := base64.RawURLEncoding.DecodeString(value); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(value)
}
