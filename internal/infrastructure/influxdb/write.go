package influxdb

import (
	"context"
	"fmt"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

// WritePoint stores one telemetry point tagged with its device id.
//
// Each field keeps its variant: numbers as float fields, booleans as boolean
// fields, everything else as string fields.
func (c *Client) WritePoint(ctx context.Context, p telemetry.Point) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(p.Fields) == 0 {
		return fmt.Errorf("%w: point for %s has no fields", ErrWriteFailed, p.DeviceID)
	}

	point := buildPoint(c.measurement, p)
	if err := c.writeAPI.WritePoint(ctx, point); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// buildPoint converts a telemetry point to the client's line-protocol point.
func buildPoint(measurement string, p telemetry.Point) *write.Point {
	return write.NewPoint(
		measurement,
		map[string]string{TagDeviceID: p.DeviceID},
		p.Fields.Native(),
		p.Time,
	)
}
