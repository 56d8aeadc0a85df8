package telemetry

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Fields maps field names to typed values.
type Fields map[string]Value

// Names returns the field names in sorted order.
func (f Fields) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Native converts the fields for writers that take map[string]interface{}.
func (f Fields) Native() map[string]any {
	out := make(map[string]any, len(f))
	for name, v := range f {
		out[name] = v.Any()
	}
	return out
}

// DecodeFields parses a telemetry payload.
//
// The payload must be a JSON object. Each member is coerced on its own, so
// one odd field never rejects its siblings. An empty object yields an empty,
// non-nil Fields.
func DecodeFields(payload []byte) (Fields, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if raw == nil {
		// Payload was the literal null.
		return nil, fmt.Errorf("%w: payload is null", ErrMalformedPayload)
	}

	fields := make(Fields, len(raw))
	for name, value := range raw {
		fields[name] = decodeValue(value)
	}
	return fields, nil
}

// Point is one telemetry record. The timestamp is the receipt time, never
// a value taken from the payload.
type Point struct {
	DeviceID string
	Fields   Fields
	Time     time.Time
}

// NewPoint stamps fields with the current time at millisecond precision.
func NewPoint(deviceID string, fields Fields) Point {
	return Point{
		DeviceID: deviceID,
		Fields:   fields,
		Time:     time.Now().Truncate(time.Millisecond),
	}
}

// Sample is one field value read back from the store.
type Sample struct {
	Time  time.Time `json:"time"`
	Field string    `json:"field"`
	Value Value     `json:"value"`
}
