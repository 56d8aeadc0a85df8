package homeassistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nerrad567/iot-device-core/internal/control"
	"github.com/nerrad567/iot-device-core/internal/ingest"
)

// DefaultVerbs is the built-in control verb table.
var DefaultVerbs = []string{
	"switch",
	"setValue",
	"adjustBrightness",
	"setColor",
	"setTemperature",
	"setMode",
}

const commandSchemaURL = "mem://homeassistant/control-command.json"

// commandSchema describes {action, params, requestId}. Verb membership is
// checked separately so the failure message can name the verb.
const commandSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["action", "requestId"],
  "properties": {
    "action":    {"type": "string", "minLength": 1},
    "params":    {"type": ["object", "null"]},
    "requestId": {"type": "string"}
  }
}`

// DeviceExecutor delivers a verb to a device.
type DeviceExecutor interface {
	Execute(ctx context.Context, deviceID, verb string, params map[string]any) (control.Result, error)
}

// ResponsePublisher emits control responses.
type ResponsePublisher interface {
	PublishControlResponse(deviceID, requestID string, success bool, message string) error
}

// CommandHandler handles iot/device/{id}/control.
//
// Every command ends in exactly one response on iot/device/{id}/response
// carrying the inbound requestId: malformed payloads, unknown verbs,
// executor errors and executor panics all become success=false responses.
// Commands are not deduplicated by requestId; a redelivered command runs and
// answers again.
type CommandHandler struct {
	executor  DeviceExecutor
	publisher ResponsePublisher
	verbs     map[string]struct{}
	schema    *jsonschema.Schema
	logger    Logger
}

// NewCommandHandler creates a handler accepting DefaultVerbs plus extraVerbs.
func NewCommandHandler(executor DeviceExecutor, publisher ResponsePublisher, logger Logger, extraVerbs ...string) (*CommandHandler, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(commandSchemaURL, strings.NewReader(commandSchema)); err != nil {
		return nil, fmt.Errorf("loading command schema: %w", err)
	}
	schema, err := c.Compile(commandSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compiling command schema: %w", err)
	}

	verbs := make(map[string]struct{}, len(DefaultVerbs)+len(extraVerbs))
	for _, v := range DefaultVerbs {
		verbs[v] = struct{}{}
	}
	for _, v := range extraVerbs {
		if v = strings.TrimSpace(v); v != "" {
			verbs[v] = struct{}{}
		}
	}

	return &CommandHandler{
		executor:  executor,
		publisher: publisher,
		verbs:     verbs,
		schema:    schema,
		logger:    logger,
	}, nil
}

// Supports reports whether verb is in the table.
func (h *CommandHandler) Supports(verb string) bool {
	_, ok := h.verbs[verb]
	return ok
}

// Handle runs one command and publishes its response. It returns only a
// publish error; every other failure is reported to the hub instead.
func (h *CommandHandler) Handle(ctx context.Context, deviceID string, msg ingest.Message) error {
	cmd, err := h.decode(msg.Payload)
	if err != nil {
		return h.respond(deviceID, cmd.RequestID, control.Result{Success: false, Message: err.Error()})
	}

	h.logger.Info("control command received",
		"device_id", deviceID,
		"action", cmd.Action,
		"request_id", cmd.RequestID,
	)

	if !h.Supports(cmd.Action) {
		return h.respond(deviceID, cmd.RequestID, control.Result{
			Success: false,
			Message: fmt.Errorf("%w: %s", ErrUnknownVerb, cmd.Action).Error(),
		})
	}

	return h.respond(deviceID, cmd.RequestID, h.execute(ctx, deviceID, cmd))
}

// decode validates the payload. On failure the returned command still holds
// whatever requestId could be recovered so the response can be correlated.
func (h *CommandHandler) decode(payload []byte) (ControlCommand, error) {
	var cmd ControlCommand

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return cmd, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if obj, ok := doc.(map[string]any); ok {
		if id, ok := obj["requestId"].(string); ok {
			cmd.RequestID = id
		}
	}

	if err := h.schema.Validate(doc); err != nil {
		return cmd, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return cmd, nil
}

// execute delegates to the executor, turning errors and panics into a
// failed Result.
func (h *CommandHandler) execute(ctx context.Context, deviceID string, cmd ControlCommand) (res control.Result) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("control execution panicked", "device_id", deviceID, "action", cmd.Action, "panic", r)
			res = control.Result{Success: false, Message: fmt.Sprintf("%v: %v", ErrExecutionPanic, r)}
		}
	}()

	res, err := h.executor.Execute(ctx, deviceID, cmd.Action, cmd.Params)
	if err != nil {
		h.logger.Warn("control execution failed", "device_id", deviceID, "action", cmd.Action, "error", err)
		return control.Result{Success: false, Message: err.Error()}
	}
	return res
}

func (h *CommandHandler) respond(deviceID, requestID string, res control.Result) error {
	if !res.Success {
		h.logger.Warn("control command failed",
			"device_id", deviceID,
			"request_id", requestID,
			"message", res.Message,
		)
	}
	return h.publisher.PublishControlResponse(deviceID, requestID, res.Success, res.Message)
}
