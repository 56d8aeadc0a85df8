package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/iot-device-core/internal/scene"
)

// maxIDLen limits path identifiers.
const maxIDLen = 64

// maxExecutions caps the execution history returned per request.
const maxExecutions = 50

// activateRequest is the optional body of POST /scenes/{id}/activate.
type activateRequest struct {
	UserID string `json:"user_id"`
}

// handleActivateScene runs a scene synchronously and returns its result.
// This is the same path an MQTT trigger takes, without the hub reply.
func (s *Server) handleActivateScene(w http.ResponseWriter, r *http.Request) {
	if s.scenes == nil {
		writeUnavailable(w, "scene engine")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxIDLen {
		writeBadRequest(w, "invalid scene ID")
		return
	}

	var req activateRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	result, err := s.scenes.Execute(r.Context(), id, req.UserID)
	if err != nil {
		if errors.Is(err, scene.ErrSceneNotFound) {
			writeNotFound(w, "scene not found")
			return
		}
		if errors.Is(err, scene.ErrSceneDisabled) {
			writeError(w, http.StatusConflict, "scene is disabled")
			return
		}
		s.logger.Error("scene activation failed", "scene_id", id, "error", err)
		writeInternalError(w, "failed to activate scene")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleListSceneExecutions returns execution history for a scene, newest
// first.
func (s *Server) handleListSceneExecutions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "scene history")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxIDLen {
		writeBadRequest(w, "invalid scene ID")
		return
	}

	executions, err := s.history.ListExecutions(r.Context(), id, maxExecutions)
	if err != nil {
		writeInternalError(w, "failed to list executions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"executions": executions, "count": len(executions)})
}
