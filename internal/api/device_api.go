// --- File: internal/api/device_api.go ---
// Package api exposes the HTTP surface of the service: device registration
// for authenticated users and a synchronous push endpoint for other services.
package api

import (
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-push-service/pkg/push"
)

type DeviceAPI struct {
	Store  push.TokenStore
	Logger *slog.Logger
}

func NewDeviceAPI(store push.TokenStore, logger *slog.Logger) *DeviceAPI {
	return &DeviceAPI{
		Store:  store,
		Logger: logger,
	}
}

// DeviceRequest is the body of both register and unregister calls. For web
// push the token field holds the JSON-encoded subscription document.
type DeviceRequest struct {
	Platform string `json:"platform"`
	Token    string `json:"token"`
}

func (api *DeviceAPI) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userURN, _ := urn.Parse(userID)

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

	token := push.DeviceToken{Platform: platform, Token: req.Token}
	if err := api.Store.RegisterToken(ctx, userURN, token); err != nil {
		api.Logger.Error("failed to register device", "platform", platform, "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	api.Logger.Info("Device registered", "user", userURN, "platform", platform)

	w.WriteHeader(http.StatusNoContent)
}

func (api *DeviceAPI) Unregister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := middleware.GetUserHandleFromContext(ctx)
	if !ok {
		response.WriteJSONError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	userURN, _ := urn.Parse(userID)

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

	token := push.DeviceToken{Platform: platform, Token: req.Token}
	if err := api.Store.UnregisterToken(ctx, userURN, token); err != nil {
		// Log but don't fail hard; idempotency is preferred for unregister
		api.Logger.Warn("failed to unregister device", "platform", platform, "err", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
