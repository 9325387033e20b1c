package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// Sender routes one wake-up push to the backend registered for a platform.
// *dispatch.Router satisfies this.
type Sender interface {
	Send(ctx context.Context, platform push.Platform, token string) error
}

// CooldownStore remembers tokens whose provider asked us to back off, so a
// chatty contact cannot make us hammer a rate-limited device.
type CooldownStore interface {
	StartCooldown(ctx context.Context, platform push.Platform, token string)
	InCooldown(ctx context.Context, platform push.Platform, token string) bool
}

// Processor handles the fan-out: one wake-up request becomes one push per
// registered device, with the send outcome deciding what happens to each
// token afterwards.
type Processor struct {
	sender    Sender
	store     push.TokenStore
	cooldowns CooldownStore
	logger    *slog.Logger
}

func NewProcessor(sender Sender, store push.TokenStore, cooldowns CooldownStore, logger *slog.Logger) *Processor {
	return &Processor{
		sender:    sender,
		store:     store,
		cooldowns: cooldowns,
		logger:    logger.With("component", "Processor"),
	}
}

// Process delivers one wake-up request. A non-nil return means the message
// should be redelivered; per-token outcomes that retrying cannot fix (dead
// tokens, unclassified rejections) are absorbed here instead.
func (p *Processor) Process(ctx context.Context, req *WakeupRequest) error {
	procLogger := p.logger.With("recipient_id", req.RecipientID.String())

	// 1. Fetch & Fan-Out (The Lookup)
	tokens, err := p.store.GetTokens(ctx, req.RecipientID)
	if err != nil {
		procLogger.Error("Failed to fetch device tokens", "err", err)
		return err
	}
	if len(tokens) == 0 {
		procLogger.Info("No devices registered for user; dropping wakeup.")
		return nil
	}

	// 2. One push per device. Outcomes are independent: a dead Android token
	// must not stop the user's browser from being woken.
	var retryable []error
	for _, device := range tokens {
		if p.cooldowns.InCooldown(ctx, device.Platform, device.Token) {
			procLogger.Debug("Token is cooling down; skipping", "platform", device.Platform)
			continue
		}

		err := p.sender.Send(ctx, device.Platform, device.Token)
		switch {
		case err == nil:
			procLogger.Debug("Wakeup dispatched", "platform", device.Platform)

		case errors.Is(err, push.ErrTokenInvalid):
			// Self-Healing: the provider told us this token is dead. Remove it
			// so the next message does not pay for the same failed send.
			procLogger.Info("Cleaning up invalid token", "platform", device.Platform)
			if delErr := p.store.UnregisterToken(ctx, req.RecipientID, device); delErr != nil {
				procLogger.Warn("Failed to delete invalid token", "platform", device.Platform, "err", delErr)
			}

		case errors.Is(err, push.ErrTokenRateLimited):
			procLogger.Info("Token rate limited; starting cooldown", "platform", device.Platform)
			p.cooldowns.StartCooldown(ctx, device.Platform, device.Token)

		case errors.Is(err, push.ErrEndpointUnavailable):
			// Transient provider outage. Collected so the message gets nacked
			// and redelivered with backoff.
			procLogger.Warn("Push endpoint unavailable", "platform", device.Platform, "err", err)
			retryable = append(retryable, err)

		case errors.Is(err, push.ErrUnknown):
			code := push.MaxCode
			var unknown *push.UnknownError
			if errors.As(err, &unknown) {
				code = unknown.Code
			}
			procLogger.Error("Provider rejected push with unclassified error",
				"platform", device.Platform, "code", code)

		default:
			// No backend for the platform, or an error outside the push
			// taxonomy. Redelivery cannot change either, so log and move on.
			procLogger.Error("Push failed", "platform", device.Platform, "err", err)
		}
	}

	if len(retryable) > 0 {
		return fmt.Errorf("wakeup for %s left %d sends undelivered: %w",
			req.RecipientID.String(), len(retryable), errors.Join(retryable...))
	}
	return nil
}
