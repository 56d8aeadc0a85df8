package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

// TelemetryStore persists telemetry points.
type TelemetryStore interface {
	WritePoint(ctx context.Context, p telemetry.Point) error
}

// TelemetryMirror receives a copy of every raw telemetry payload.
type TelemetryMirror interface {
	MirrorTelemetry(ctx context.Context, deviceID, sourceTopic string, payload []byte, receivedAt time.Time) error
}

// DataForwarder republishes decoded telemetry to downstream consumers.
type DataForwarder interface {
	PublishDeviceData(deviceID string, fields telemetry.Fields) error
}

// TelemetryHandler decodes device/{id}/data payloads and writes one point
// per message.
type TelemetryHandler struct {
	store     TelemetryStore
	mirror    TelemetryMirror
	forwarder DataForwarder
	logger    Logger
	now       func() time.Time
}

// TelemetryOption configures a TelemetryHandler.
type TelemetryOption func(*TelemetryHandler)

// WithMirror copies raw payloads to m after decoding succeeds.
func WithMirror(m TelemetryMirror) TelemetryOption {
	return func(h *TelemetryHandler) { h.mirror = m }
}

// WithDataForwarder republishes decoded fields through f.
func WithDataForwarder(f DataForwarder) TelemetryOption {
	return func(h *TelemetryHandler) { h.forwarder = f }
}

// NewTelemetryHandler creates a telemetry handler writing to store. A nil
// store skips the write and still runs the mirror and forwarder.
func NewTelemetryHandler(store TelemetryStore, logger Logger, opts ...TelemetryOption) *TelemetryHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	h := &TelemetryHandler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle decodes the payload and writes it. The point time is the receipt
// time, never a timestamp carried in the payload.
//
// A store failure does not stop the mirror or the forwarder; the message is
// processed either way and the error is returned for logging.
func (h *TelemetryHandler) Handle(ctx context.Context, deviceID string, msg Message) error {
	fields, err := telemetry.DecodeFields(msg.Payload)
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w: no fields", ErrMalformedPayload)
	}

	p := telemetry.Point{
		DeviceID: deviceID,
		Fields:   fields,
		Time:     h.now().Truncate(time.Millisecond),
	}

	var storeErr error
	if h.store != nil {
		if err := h.store.WritePoint(ctx, p); err != nil {
			storeErr = fmt.Errorf("%w: device %s: %w", ErrStoreWrite, deviceID, err)
		} else {
			h.logger.Debug("telemetry written", "device_id", deviceID, "fields", len(fields))
		}
	}

	if h.mirror != nil {
		receivedAt := msg.ReceivedAt
		if receivedAt.IsZero() {
			receivedAt = p.Time
		}
		if err := h.mirror.MirrorTelemetry(ctx, deviceID, msg.Topic, msg.Payload, receivedAt); err != nil {
			h.logger.Warn("telemetry mirror failed", "device_id", deviceID, "error", err)
		}
	}

	if h.forwarder != nil {
		if err := h.forwarder.PublishDeviceData(deviceID, fields); err != nil {
			h.logger.Warn("telemetry forward failed", "device_id", deviceID, "error", err)
		}
	}

	return storeErr
}
