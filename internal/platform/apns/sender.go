// --- File: internal/platform/apns/sender.go ---
// Package apns provides the Apple Push Notification service backend.
package apns

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	Push(n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs provider tokens.
type Config struct {
	// KeyFile is the path to the .p8 signing key.
	KeyFile  string
	KeyID    string
	TeamID   string
	BundleID string // the app bundle ID (e.g. com.tinywide.messenger), used as the APNs topic
}

type Sender struct {
	client APNSClient
	topic  string
	logger *slog.Logger
}

// NewSender builds the APNS backend from a .p8 signing key.
//
// The failure contract is two-tier, same as the FCM backend: an unreadable
// key file is a deployment bug and panics, while a key the library cannot
// parse comes back as an error wrapping push.ErrCredentialLoad.
func NewSender(cfg Config, logger *slog.Logger) (*Sender, error) {
	raw, err := os.ReadFile(cfg.KeyFile)
	if err != nil {
		panic(fmt.Sprintf("apns: could not read signing key at %s: %v", cfg.KeyFile, err))
	}

	authKey, err := token.AuthKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", push.ErrCredentialLoad, err)
	}

	// Production endpoint by default; token-based auth signs for both
	// environments.
	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})

	return &Sender{
		client: client,
		topic:  cfg.BundleID,
		logger: logger.With("component", "APNSSender"),
	}, nil
}

// Send delivers the fixed wake-up alert to a single device token. The
// collapse id gives APNs the same replacement semantics the Android tag
// gives FCM.
func (s *Sender) Send(ctx context.Context, deviceToken string) error {
	n := &apns2.Notification{
		DeviceToken: deviceToken,
		Topic:       s.topic,
		CollapseID:  push.CollapseKey,
		Payload: payload.NewPayload().
			AlertTitle(push.NotificationTitle).
			AlertBody(push.NotificationBody),
	}

	res, err := s.client.Push(n)
	if err != nil {
		s.logger.Debug("APNs transport failed", "err", err)
		return fmt.Errorf("%w: %s", push.ErrEndpointUnavailable, err)
	}
	if res.Sent() {
		return nil
	}

	mapped := translateReason(res)
	s.logger.Debug("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode, "mapped", mapped)
	return mapped
}

// translateReason maps an APNs rejection into the push taxonomy.
// See: https://developer.apple.com/documentation/usernotifications/setting_up_a_remote_notification_server/handling_notification_responses_from_apns
func translateReason(res *apns2.Response) error {
	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		return fmt.Errorf("%w: %s", push.ErrTokenInvalid, res.Reason)
	case apns2.ReasonTooManyRequests:
		return fmt.Errorf("%w: %s", push.ErrTokenRateLimited, res.Reason)
	case apns2.ReasonInternalServerError, apns2.ReasonServiceUnavailable, apns2.ReasonShutdown:
		return fmt.Errorf("%w: %s", push.ErrEndpointUnavailable, res.Reason)
	}
	if res.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", push.ErrEndpointUnavailable, res.StatusCode)
	}
	// Reasons like TopicDisallowed or PayloadEmpty mean our configuration is
	// wrong, not the token; surface them as unknown with the status attached.
	return &push.UnknownError{Code: uint16(res.StatusCode)}
}
