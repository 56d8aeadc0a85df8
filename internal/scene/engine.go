package scene

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/iot-device-core/internal/control"
)

// DeviceController is the control path scene actions are sent through.
type DeviceController interface {
	Execute(ctx context.Context, deviceID, verb string, params map[string]any) (control.Result, error)
}

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Engine runs scenes.
//
// Actions run sequentially in stored order. A failed action does not stop
// the ones after it; the Result summarises how many succeeded. Every call to
// Execute is recorded in the execution log, including calls for missing or
// disabled scenes.
//
// Thread Safety: Execute is safe for concurrent use.
type Engine struct {
	repo    Repository
	devices DeviceController
	logger  Logger

	now   func() time.Time
	newID func() string
}

// NewEngine creates a scene engine. A nil logger discards output.
func NewEngine(repo Repository, devices DeviceController, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		repo:    repo,
		devices: devices,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Execute runs the scene on behalf of userID.
//
// A missing or disabled scene is returned as an error. Otherwise the Result
// reports success only when every action succeeded, with a message such as
// "2/3 actions succeeded; lamp-2: device lamp-2 is offline".
func (e *Engine) Execute(ctx context.Context, sceneID, userID string) (Result, error) {
	exec := &Execution{
		ID:        e.newID(),
		SceneID:   sceneID,
		UserID:    userID,
		StartedAt: e.now().UTC(),
	}

	res, err := e.run(ctx, sceneID)
	res.ExecutionID = exec.ID

	exec.FinishedAt = e.now().UTC()
	exec.Success = err == nil && res.Success
	exec.Message = res.Message
	if err != nil {
		exec.Message = err.Error()
	}
	if logErr := e.repo.CreateExecution(ctx, exec); logErr != nil {
		e.logger.Error("failed to record scene execution",
			"scene_id", sceneID,
			"execution_id", exec.ID,
			"error", logErr,
		)
	}

	e.logger.Info("scene executed",
		"scene_id", sceneID,
		"user_id", userID,
		"execution_id", exec.ID,
		"success", exec.Success,
		"message", exec.Message,
		"duration_ms", exec.FinishedAt.Sub(exec.StartedAt).Milliseconds(),
	)

	if err != nil {
		return Result{ExecutionID: exec.ID}, err
	}
	return res, nil
}

func (e *Engine) run(ctx context.Context, sceneID string) (Result, error) {
	s, err := e.repo.GetByID(ctx, sceneID)
	if err != nil {
		return Result{}, err
	}
	if !s.Enabled {
		return Result{}, fmt.Errorf("%w: %s", ErrSceneDisabled, sceneID)
	}

	succeeded := 0
	var failures []string
	for i, a := range s.Actions {
		if ctxErr := ctx.Err(); ctxErr != nil {
			failures = append(failures, fmt.Sprintf("%d actions skipped: %v", len(s.Actions)-i, ctxErr))
			break
		}

		res, err := e.devices.Execute(ctx, a.DeviceID, a.Action, a.Params)
		switch {
		case err != nil:
			failures = append(failures, fmt.Sprintf("%s: %v", a.DeviceID, err))
		case !res.Success:
			failures = append(failures, fmt.Sprintf("%s: %s", a.DeviceID, res.Message))
		default:
			succeeded++
		}
	}

	msg := fmt.Sprintf("%d/%d actions succeeded", succeeded, len(s.Actions))
	if len(failures) > 0 {
		msg += "; " + strings.Join(failures, "; ")
	}
	return Result{Success: len(failures) == 0, Message: msg}, nil
}
