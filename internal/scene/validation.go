package scene

import (
	"fmt"
	"strings"
)

const (
	maxNameLength = 100
	maxActions    = 100
)

// ValidateScene checks a scene before it is stored.
func ValidateScene(s *Scene) error {
	if s == nil {
		return fmt.Errorf("%w: scene is nil", ErrInvalidScene)
	}
	if s.ID == "" || strings.ContainsAny(s.ID, "/+#") {
		return fmt.Errorf("%w: id %q is not a valid topic segment", ErrInvalidScene, s.ID)
	}
	name := strings.TrimSpace(s.Name)
	if name == "" || len(name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidScene, maxNameLength)
	}
	if len(s.Actions) > maxActions {
		return fmt.Errorf("%w: %d actions exceeds maximum %d", ErrInvalidScene, len(s.Actions), maxActions)
	}
	for i, a := range s.Actions {
		if a.DeviceID == "" {
			return fmt.Errorf("%w: action %d has no device", ErrInvalidScene, i)
		}
		if a.Action == "" {
			return fmt.Errorf("%w: action %d has no verb", ErrInvalidScene, i)
		}
	}
	return nil
}
