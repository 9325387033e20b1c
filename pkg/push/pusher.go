// --- File: pkg/push/pusher.go ---
// Package push contains the public contract of the push service: the
// one-operation Pusher interface every platform backend implements, the
// error taxonomy those backends report through, and the device-token model
// the registry stores.
package push

import "context"

// The wake-up payload is deliberately fixed. The service never forwards
// message content; clients fetch it over their own secure channel once
// woken. The collapse key keeps repeated wake-ups folded into a single
// pending notification per device.
const (
	NotificationTitle = "Tinywide Messenger"
	NotificationBody  = "You have new messages"
	CollapseKey       = "new_chat_messages"
)

// Pusher is the contract every platform backend implements.
type Pusher interface {
	// Send delivers the fixed wake-up notification to a single device token.
	// It returns nil once the provider has accepted the notification, or one
	// of the taxonomy errors declared in this package. Send never retries and
	// never mutates token state: that policy belongs to the caller.
	Send(ctx context.Context, token string) error
}
