// --- File: internal/platform/fcm/sender.go ---
// Package fcm provides the Firebase Cloud Messaging push backend.
package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-push-service/pkg/push"
	"google.golang.org/api/option"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// Config holds the credential location for the FCM backend.
type Config struct {
	// CredentialsFile is the path to the service-account JSON key.
	CredentialsFile string
}

type Sender struct {
	client MessagingClient
	parent string // provider resource path, "projects/<project-id>"
	logger *slog.Logger
}

// serviceAccount is the slice of the credential document we validate
// ourselves before handing the raw bytes to the SDK.
type serviceAccount struct {
	ProjectID string `json:"project_id"`
}

// NewSender builds the FCM backend from a service-account credential file.
//
// Failure is two-tier. A file that cannot be read or parsed, or that lacks a
// project id, is a deployment bug: NewSender panics so the process never
// comes up half-configured. A credential the SDK rejects when constructing
// the authenticator comes back as an error wrapping push.ErrCredentialLoad,
// and the caller decides whether to run without the backend.
//
// No network I/O happens here; the first token exchange is deferred to the
// first Send.
func NewSender(ctx context.Context, cfg Config, logger *slog.Logger) (*Sender, error) {
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		panic(fmt.Sprintf("fcm: could not read credentials file at %s: %v", cfg.CredentialsFile, err))
	}

	var sa serviceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		panic(fmt.Sprintf("fcm: could not parse credentials file at %s: %v", cfg.CredentialsFile, err))
	}
	if sa.ProjectID == "" {
		panic(fmt.Sprintf("fcm: credentials file at %s carries no project_id", cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: sa.ProjectID}, option.WithCredentialsJSON(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", push.ErrCredentialLoad, err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", push.ErrCredentialLoad, err)
	}

	return NewSenderWithClient(client, sa.ProjectID, logger), nil
}

// NewSenderWithClient wires an already-built messaging client.
// Note: *messaging.Client automatically satisfies the interface.
func NewSenderWithClient(client MessagingClient, projectID string, logger *slog.Logger) *Sender {
	return &Sender{
		client: client,
		parent: "projects/" + projectID,
		logger: logger.With("component", "FCMSender"),
	}
}

// ResourcePath returns the provider-scoped path this backend delivers
// through ("projects/<project-id>").
func (s *Sender) ResourcePath() string {
	return s.parent
}

// Send delivers the fixed wake-up notification to a single device token.
// Every failure is mapped into the push taxonomy; retry and token-removal
// policy stay with the caller.
func (s *Sender) Send(ctx context.Context, deviceToken string) error {
	if _, err := s.client.Send(ctx, wakeupMessage(deviceToken)); err != nil {
		mapped := translateSendError(err)
		s.logger.Debug("FCM send failed", "parent", s.parent, "err", err, "mapped", mapped)
		return mapped
	}
	return nil
}

// wakeupMessage builds the fixed envelope. The data map is present but
// empty: clients wake on the notification itself and fetch content over
// their own channel. The Android tag and the apns-collapse-id header make
// repeated wake-ups replace each other instead of stacking up.
func wakeupMessage(deviceToken string) *messaging.Message {
	return &messaging.Message{
		Data:  map[string]string{},
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: push.NotificationTitle,
			Body:  push.NotificationBody,
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Tag: push.CollapseKey,
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-collapse-id": push.CollapseKey,
			},
		},
	}
}

// translateSendError maps an FCM failure into the push taxonomy. Structured
// service errors are recognized through the SDK predicates; a structured
// error we have no mapping for becomes UnknownError with the sentinel code.
// Anything without an HTTP response attached is a transport-level failure.
func translateSendError(err error) error {
	switch {
	case messaging.IsUnregistered(err):
		return fmt.Errorf("%w: %s", push.ErrTokenInvalid, err)
	case messaging.IsSenderIDMismatch(err):
		return fmt.Errorf("%w: %s", push.ErrTokenInvalid, err)
	case messaging.IsQuotaExceeded(err):
		return fmt.Errorf("%w: %s", push.ErrTokenRateLimited, err)
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return fmt.Errorf("%w: %s", push.ErrEndpointUnavailable, err)
	case errorutils.HTTPResponse(err) != nil:
		// The service answered with a structured error we cannot interpret
		// (INVALID_ARGUMENT, THIRD_PARTY_AUTH_ERROR, anything newer than us).
		return &push.UnknownError{Code: push.MaxCode}
	default:
		// Timeout, connection reset, unparseable response.
		return fmt.Errorf("%w: %s", push.ErrEndpointUnavailable, err)
	}
}
