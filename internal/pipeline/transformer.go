// --- File: internal/pipeline/transformer.go ---
// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"encoding/json"
	"fmt"

	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// WakeupRequest is the decoded form of one queue message: a single recipient
// whose registered devices should all receive a wake-up push. The payload
// deliberately carries no message content; devices fetch that themselves
// over an authenticated channel once woken.
type WakeupRequest struct {
	RecipientID urn.URN
}

// wakeupEnvelope is the wire shape. The recipient stays a plain string until
// it has been validated as a URN.
type wakeupEnvelope struct {
	RecipientID string `json:"recipient_id"`
}

// ParseWakeupRequest unmarshals and validates a raw queue payload.
//
// Failures here are permanent: redelivering a malformed payload can never
// succeed, so callers must route these to the dead-letter queue instead of
// retrying.
func ParseWakeupRequest(payload []byte) (*WakeupRequest, error) {
	var envelope wakeupEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wakeup request: %w", err)
	}

	recipient, err := urn.Parse(envelope.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("wakeup request carries invalid recipient %q: %w", envelope.RecipientID, err)
	}

	return &WakeupRequest{RecipientID: recipient}, nil
}
