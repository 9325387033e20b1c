// --- File: internal/dispatch/router.go ---
// Package dispatch routes sends to the platform backend that understands
// the token.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// ErrNoPusher reports a platform no configured backend serves.
var ErrNoPusher = errors.New("dispatch: no pusher for platform")

// Router holds the backends that came up at startup, keyed by platform.
// Backends that failed their (recoverable) credential load are simply
// absent from the map.
type Router struct {
	pushers map[push.Platform]push.Pusher
	logger  *slog.Logger
}

func NewRouter(pushers map[push.Platform]push.Pusher, logger *slog.Logger) *Router {
	return &Router{
		pushers: pushers,
		logger:  logger.With("component", "Router"),
	}
}

// Send routes a single token to its platform backend.
func (r *Router) Send(ctx context.Context, platform push.Platform, token string) error {
	pusher, ok := r.pushers[platform]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoPusher, platform)
	}
	return pusher.Send(ctx, token)
}
