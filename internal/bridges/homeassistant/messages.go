package homeassistant

// Wire types exchanged with the Home Assistant hub. Every outbound payload
// carries Timestamp as integer Unix seconds.

// ControlCommand arrives on iot/device/{id}/control.
type ControlCommand struct {
	// Action is the control verb, e.g. "switch" or "adjustBrightness".
	Action string `json:"action"`

	// Params holds verb-specific arguments, e.g. {"brightness": 40}.
	Params map[string]any `json:"params,omitempty"`

	// RequestID correlates the command with its ControlResponse.
	RequestID string `json:"requestId"`
}

// ControlResponse is published on iot/device/{id}/response, exactly once per
// ControlCommand.
type ControlResponse struct {
	RequestID string `json:"requestId"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// SceneTrigger arrives on iot/scene/{id}/trigger. The body may be empty.
type SceneTrigger struct {
	UserID string `json:"userId,omitempty"`
}

// SceneResult is published on iot/scene/{id}/result, exactly once per trigger.
type SceneResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// StatusMessage is published on iot/device/{id}/status.
type StatusMessage struct {
	// Status is "online" or "offline".
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// AlarmMessage is published on iot/device/{id}/alarm.
type AlarmMessage struct {
	AlarmType string `json:"alarmType"`

	// Level is one of info, warning, error, critical. It is passed through
	// unchecked.
	Level     string `json:"level"`
	Value     any    `json:"value"`
	Timestamp int64  `json:"timestamp"`
}

// Alarm levels used by the CLI and documented for rule evaluators.
const (
	AlarmInfo     = "info"
	AlarmWarning  = "warning"
	AlarmError    = "error"
	AlarmCritical = "critical"
)
