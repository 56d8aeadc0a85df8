package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is a device's connectivity state as reported on device/{id}/status.
type Status int

// Wire values of the status field.
const (
	StatusOffline Status = 0
	StatusOnline  Status = 1
)

// String returns "online" or "offline".
func (s Status) String() string {
	if s == StatusOnline {
		return "online"
	}
	return "offline"
}

// Valid reports whether s is one of the two wire values.
func (s Status) Valid() bool {
	return s == StatusOffline || s == StatusOnline
}

// ParseStatus converts the integer status field of a status message.
func ParseStatus(n int64) (Status, error) {
	s := Status(n)
	if !s.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidStatus, n)
	}
	return s, nil
}

// Type classifies a device for discovery and display.
type Type string

// Device types known to the directory.
const (
	TypeSensor       Type = "sensor"
	TypeSwitch       Type = "switch"
	TypeLight        Type = "light"
	TypeClimate      Type = "climate"
	TypeBinarySensor Type = "binary_sensor"
)

// AllTypes returns every known device type.
func AllTypes() []Type {
	return []Type{TypeSensor, TypeSwitch, TypeLight, TypeClimate, TypeBinarySensor}
}

// Device is a directory record.
type Device struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenantId,omitempty"`
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name"`
	Code      string `json:"code,omitempty"`
	Type      Type   `json:"type"`

	Status          Status     `json:"status"`
	Activated       bool       `json:"activated"`
	LastOnlineTime  *time.Time `json:"lastOnlineTime,omitempty"`
	LastOfflineTime *time.Time `json:"lastOfflineTime,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DeepCopy returns an independent copy of the device.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}
	cpy := *d
	if d.LastOnlineTime != nil {
		t := *d.LastOnlineTime
		cpy.LastOnlineTime = &t
	}
	if d.LastOfflineTime != nil {
		t := *d.LastOfflineTime
		cpy.LastOfflineTime = &t
	}
	return &cpy
}

// IsOnline reports whether the last known status is online.
func (d *Device) IsOnline() bool {
	return d.Status == StatusOnline
}

// StatusEntry is the cached status of one device. Status and ChangedAt are
// always written together.
type StatusEntry struct {
	Status    Status    `json:"status"`
	ChangedAt time.Time `json:"changedAt"`
}

// Entry derives the status entry from the directory record. ChangedAt is the
// transition time matching the current status, or UpdatedAt when none is set.
func (d *Device) Entry() StatusEntry {
	e := StatusEntry{Status: d.Status, ChangedAt: d.UpdatedAt}
	switch {
	case d.Status == StatusOnline && d.LastOnlineTime != nil:
		e.ChangedAt = *d.LastOnlineTime
	case d.Status == StatusOffline && d.LastOfflineTime != nil:
		e.ChangedAt = *d.LastOfflineTime
	}
	return e
}

// MarshalBinary encodes the entry for caches that store bytes.
func (e StatusEntry) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalBinary decodes an entry written by MarshalBinary.
func (e *StatusEntry) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}
