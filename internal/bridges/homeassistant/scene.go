package homeassistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/iot-device-core/internal/ingest"
	"github.com/nerrad567/iot-device-core/internal/scene"
)

// SceneExecutor runs a scene.
type SceneExecutor interface {
	Execute(ctx context.Context, sceneID, userID string) (scene.Result, error)
}

// ResultPublisher emits scene results.
type ResultPublisher interface {
	PublishSceneResult(sceneID string, success bool, message string) error
}

// SceneHandler handles {ns}/scene/{id}/trigger and answers every trigger
// with exactly one result on iot/scene/{id}/result.
type SceneHandler struct {
	executor  SceneExecutor
	publisher ResultPublisher
	logger    Logger
}

// NewSceneHandler creates a scene trigger handler.
func NewSceneHandler(executor SceneExecutor, publisher ResultPublisher, logger Logger) *SceneHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SceneHandler{executor: executor, publisher: publisher, logger: logger}
}

// Handle runs the scene and publishes the result. An empty body triggers the
// scene with no user.
func (h *SceneHandler) Handle(ctx context.Context, sceneID string, msg ingest.Message) error {
	var trigger SceneTrigger
	if body := bytes.TrimSpace(msg.Payload); len(body) > 0 {
		if err := json.Unmarshal(body, &trigger); err != nil {
			return h.respond(sceneID, false, fmt.Sprintf("%v: %v", ErrInvalidTrigger, err))
		}
	}

	h.logger.Info("scene trigger received", "scene_id", sceneID, "user_id", trigger.UserID)

	res := h.execute(ctx, sceneID, trigger.UserID)
	return h.respond(sceneID, res.Success, res.Message)
}

func (h *SceneHandler) execute(ctx context.Context, sceneID, userID string) (res scene.Result) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("scene execution panicked", "scene_id", sceneID, "panic", r)
			res = scene.Result{Success: false, Message: fmt.Sprintf("%v: %v", ErrExecutionPanic, r)}
		}
	}()

	res, err := h.executor.Execute(ctx, sceneID, userID)
	if err != nil {
		return scene.Result{Success: false, Message: err.Error()}
	}
	return res
}

func (h *SceneHandler) respond(sceneID string, success bool, message string) error {
	if !success {
		h.logger.Warn("scene trigger failed", "scene_id", sceneID, "message", message)
	}
	return h.publisher.PublishSceneResult(sceneID, success, message)
}
