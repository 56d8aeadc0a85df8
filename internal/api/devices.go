package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iot-device-core/internal/device"
)

// handleListDevices returns all devices.
//
// Query parameters:
//   - online: "true" limits the list to devices the directory marks online
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		devices []device.Device
		err     error
	)
	if r.URL.Query().Get("online") == "true" {
		devices, err = s.devices.ListOnline(ctx)
	} else {
		devices, err = s.devices.List(ctx)
	}
	if err != nil {
		s.logger.Error("listing devices failed", "error", err)
		writeInternalError(w, "failed to list devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device with its realtime status overlaid.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := device.ValidateID(id); err != nil {
		writeBadRequest(w, "invalid device ID")
		return
	}

	dev, err := s.devices.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleGetDeviceStatus returns the cached status, falling back to the
// directory.
func (s *Server) handleGetDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := device.ValidateID(id); err != nil {
		writeBadRequest(w, "invalid device ID")
		return
	}

	entry, err := s.devices.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         id,
		"status":     entry.Status.String(),
		"changed_at": entry.ChangedAt,
	})
}

// handleGetDeviceTelemetry returns the latest value of every field written
// in the last hour.
func (s *Server) handleGetDeviceTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.telemetry == nil {
		writeUnavailable(w, "telemetry store")
		return
	}

	id := chi.URLParam(r, "id")
	if err := device.ValidateID(id); err != nil {
		writeBadRequest(w, "invalid device ID")
		return
	}

	samples, err := s.telemetry.QueryLatest(r.Context(), id)
	if err != nil {
		s.logger.Error("telemetry query failed", "device_id", id, "error", err)
		writeInternalError(w, "failed to query telemetry")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"samples": samples, "count": len(samples)})
}
