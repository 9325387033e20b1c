// --- File: internal/api/push_api.go ---
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	"github.com/tinywideclouds/go-push-service/internal/dispatch"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

// Sender routes one wake-up push to the backend for a platform.
type Sender interface {
	Send(ctx context.Context, platform push.Platform, token string) error
}

// PushAPI is the synchronous door: callers that already hold a device token
// can trigger a wake-up directly and learn the outcome from the status code.
type PushAPI struct {
	Sender Sender
	Logger *slog.Logger
}

func NewPushAPI(sender Sender, logger *slog.Logger) *PushAPI {
	return &PushAPI{
		Sender: sender,
		Logger: logger,
	}
}

func (api *PushAPI) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	platform, err := push.ParsePlatform(req.Platform)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "unknown platform")
		return
	}
	if req.Token == "" {
		response.WriteJSONError(w, http.StatusBadRequest, "missing token")
		return
	}

	err = api.Sender.Send(ctx, platform, req.Token)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)

	case errors.Is(err, dispatch.ErrNoPusher):
		response.WriteJSONError(w, http.StatusBadRequest, "platform not enabled")

	case errors.Is(err, push.ErrTokenInvalid):
		// Gone tells the caller to drop the token from their side too.
		response.WriteJSONError(w, http.StatusGone, "token invalid")

	case errors.Is(err, push.ErrTokenRateLimited):
		response.WriteJSONError(w, http.StatusTooManyRequests, "token rate limited")

	case errors.Is(err, push.ErrEndpointUnavailable):
		response.WriteJSONError(w, http.StatusServiceUnavailable, "push endpoint unavailable")

	case errors.Is(err, push.ErrUnknown):
		code := push.MaxCode
		var unknown *push.UnknownError
		if errors.As(err, &unknown) {
			code = unknown.Code
		}
		api.Logger.Error("provider rejected push", "platform", platform, "code", code)
		response.WriteJSONError(w, http.StatusBadGateway, fmt.Sprintf("provider rejected push (code %d)", code))

	default:
		api.Logger.Error("push failed", "platform", platform, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "push failed")
	}
}
