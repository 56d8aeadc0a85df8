package device

import (
	"fmt"
	"strings"
)

const (
	maxNameLength = 100
	maxIDLength   = 64
)

var validTypes map[Type]struct{}

func init() {
	validTypes = make(map[Type]struct{}, len(AllTypes()))
	for _, t := range AllTypes() {
		validTypes[t] = struct{}{}
	}
}

// ValidType reports whether t is a known device type.
func ValidType(t Type) bool {
	_, ok := validTypes[t]
	return ok
}

// ValidateDevice checks a device before it is written to the directory.
func ValidateDevice(d *Device) error {
	if d == nil {
		return fmt.Errorf("%w: device is nil", ErrInvalidDevice)
	}
	if err := ValidateID(d.ID); err != nil {
		return err
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidName)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidName, maxNameLength)
	}
	if !ValidType(d.Type) {
		return fmt.Errorf("%w: %q", ErrInvalidDeviceType, d.Type)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidStatus, d.Status)
	}
	return nil
}

// ValidateID checks a device id. Ids become MQTT topic segments, so they may
// not be empty or contain '/', '+' or '#'.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id exceeds %d characters", ErrInvalidDevice, maxIDLength)
	}
	if strings.ContainsAny(id, "/+#") {
		return fmt.Errorf("%w: id %q contains a topic separator or wildcard", ErrInvalidDevice, id)
	}
	return nil
}
