package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/nerrad567/iot-device-core/internal/device"
)

// StatusUpdater applies a status transition to the device directory.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, status device.Status) (device.StatusEntry, error)
}

// StatusPublisher announces a status transition.
type StatusPublisher interface {
	PublishDeviceStatus(deviceID string, status device.Status) error
}

// StatusHandler applies device/{id}/status messages.
type StatusHandler struct {
	directory StatusUpdater
	publisher StatusPublisher
	logger    Logger
}

// NewStatusHandler creates a status handler. publisher may be nil.
func NewStatusHandler(directory StatusUpdater, publisher StatusPublisher, logger Logger) *StatusHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StatusHandler{directory: directory, publisher: publisher, logger: logger}
}

// Handle parses {"status": 0|1}, updates the directory and then the status
// cache, and finally announces the change.
//
// A cache write failure is logged and does not undo the directory update.
func (h *StatusHandler) Handle(ctx context.Context, deviceID string, msg Message) error {
	status, err := ParseStatusPayload(msg.Payload)
	if err != nil {
		return err
	}

	entry, err := h.directory.UpdateStatus(ctx, deviceID, status)
	switch {
	case err == nil:
	case errors.Is(err, device.ErrStatusCache):
		h.logger.Warn("status cache refresh failed",
			"device_id", deviceID,
			"status", status.String(),
			"error", err,
		)
	default:
		return fmt.Errorf("%w: device %s: %w", ErrDirectoryUpdate, deviceID, err)
	}

	h.logger.Info("device status changed",
		"device_id", deviceID,
		"status", entry.Status.String(),
		"changed_at", entry.ChangedAt,
	)

	if h.publisher != nil {
		if err := h.publisher.PublishDeviceStatus(deviceID, status); err != nil {
			h.logger.Warn("status publish failed", "device_id", deviceID, "error", err)
		}
	}
	return nil
}

// ParseStatusPayload extracts the integer status member. A missing member,
// a non-integer (including quoted numbers and 1.0) or a value other than 0
// or 1 is malformed.
func ParseStatusPayload(payload []byte) (device.Status, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(payload, &body); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	raw, ok := body["status"]
	if !ok {
		return 0, fmt.Errorf("%w: missing status", ErrMalformedPayload)
	}
	raw = bytes.TrimSpace(raw)

	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: status %s is not an integer", ErrMalformedPayload, raw)
	}

	status, err := device.ParseStatus(n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return status, nil
}
