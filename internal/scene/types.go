package scene

import "time"

// Scene is a named, ordered list of device control actions.
type Scene struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	Actions   []Action  `json:"actions"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Action is one control verb sent to one device when the scene runs.
type Action struct {
	DeviceID string         `json:"deviceId"`
	Action   string         `json:"action"`
	Params   map[string]any `json:"params,omitempty"`
}

// Execution records one trigger of a scene, including triggers for scenes
// that turned out to be missing or disabled.
type Execution struct {
	ID         string    `json:"id"`
	SceneID    string    `json:"sceneId"`
	UserID     string    `json:"userId,omitempty"`
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Result is the outcome reported back to whoever triggered the scene.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	ExecutionID string `json:"executionId,omitempty"`
}
