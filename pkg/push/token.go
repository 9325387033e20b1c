// --- File: pkg/push/token.go ---
package push

import (
	"context"

	"github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// DeviceToken is one registered delivery address: a provider token tagged
// with the platform whose backend understands it. For the webpush platform
// the token is the JSON-encoded subscription document.
type DeviceToken struct {
	Platform Platform `json:"platform"`
	Token    string   `json:"token"`
}

// TokenStore defines the contract for managing user device tokens.
// It allows the service to remember "where" to wake a user's devices.
type TokenStore interface {
	// RegisterToken adds or updates a device token for a specific user.
	// It should handle deduplication (e.g., upsert).
	RegisterToken(ctx context.Context, userURN urn.URN, token DeviceToken) error

	// UnregisterToken removes a device token for a specific user. Removing
	// a token that was never registered is not an error.
	UnregisterToken(ctx context.Context, userURN urn.URN, token DeviceToken) error

	// GetTokens retrieves all active tokens for a specific user.
	GetTokens(ctx context.Context, userURN urn.URN) ([]DeviceToken, error)
}
