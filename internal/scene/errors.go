package scene

import "errors"

// Domain errors for the scene package.
var (
	// ErrSceneNotFound is returned when a scene ID does not exist.
	ErrSceneNotFound = errors.New("scene: not found")

	// ErrSceneExists is returned when creating a scene with an ID that already exists.
	ErrSceneExists = errors.New("scene: already exists")

	// ErrSceneDisabled is returned when triggering a disabled scene.
	ErrSceneDisabled = errors.New("scene: disabled")

	// ErrInvalidScene is returned when scene validation fails.
	ErrInvalidScene = errors.New("scene: invalid")
)
