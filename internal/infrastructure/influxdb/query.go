package influxdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/iot-device-core/internal/telemetry"
)

// latestLookback is how far back QueryLatest searches.
const latestLookback = "-1h"

// QueryRange returns every field sample for a device in [start, stop).
func (c *Client) QueryRange(ctx context.Context, deviceID string, start, stop time.Time) ([]telemetry.Sample, error) {
	if err := validateRange(deviceID, start, stop); err != nil {
		return nil, err
	}
	return c.query(ctx, rangeQuery(c.cfg.Bucket, c.measurement, deviceID, start, stop))
}

// QueryLatest returns the most recent value of each field written in the last hour.
func (c *Client) QueryLatest(ctx context.Context, deviceID string) ([]telemetry.Sample, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidQuery)
	}
	return c.query(ctx, latestQuery(c.cfg.Bucket, c.measurement, deviceID))
}

// QueryAggregate returns the windowed mean of one field. Empty windows are omitted.
func (c *Client) QueryAggregate(ctx context.Context, deviceID, field string, start, stop time.Time, every time.Duration) ([]telemetry.Sample, error) {
	if err := validateRange(deviceID, start, stop); err != nil {
		return nil, err
	}
	if field == "" {
		return nil, fmt.Errorf("%w: field is required", ErrInvalidQuery)
	}
	if every < time.Millisecond || every%time.Millisecond != 0 {
		return nil, fmt.Errorf("%w: window must be a whole number of milliseconds, got %v", ErrInvalidQuery, every)
	}
	return c.query(ctx, aggregateQuery(c.cfg.Bucket, c.measurement, deviceID, field, start, stop, every))
}

func (c *Client) query(ctx context.Context, flux string) ([]telemetry.Sample, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	result, err := c.queryAPI.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	defer result.Close() //nolint:errcheck // Read-only result stream

	var samples []telemetry.Sample
	for result.Next() {
		rec := result.Record()
		v, ok := fromFlux(rec.Value())
		if !ok {
			continue
		}
		samples = append(samples, telemetry.Sample{
			Time:  rec.Time(),
			Field: rec.Field(),
			Value: v,
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	// Flux returns one table per field; present a single timeline.
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Time.Equal(samples[j].Time) {
			return samples[i].Field < samples[j].Field
		}
		return samples[i].Time.Before(samples[j].Time)
	})
	return samples, nil
}

func validateRange(deviceID string, start, stop time.Time) error {
	if deviceID == "" {
		return fmt.Errorf("%w: device id is required", ErrInvalidQuery)
	}
	if !stop.After(start) {
		return fmt.Errorf("%w: stop must be after start", ErrInvalidQuery)
	}
	return nil
}

// fromFlux maps a Flux record value onto the telemetry variant.
func fromFlux(v any) (telemetry.Value, bool) {
	switch x := v.(type) {
	case float64:
		return telemetry.Number(x), true
	case int64:
		return telemetry.Number(float64(x)), true
	case uint64:
		return telemetry.Number(float64(x)), true
	case bool:
		return telemetry.Bool(x), true
	case string:
		return telemetry.String(x), true
	default:
		return telemetry.Value{}, false
	}
}

func deviceFilter(measurement, deviceID string) string {
	return fmt.Sprintf(`filter(fn: (r) => r._measurement == %s and r.%s == %s)`,
		fluxString(measurement), TagDeviceID, fluxString(deviceID))
}

func rangeQuery(bucket, measurement, deviceID string, start, stop time.Time) string {
	return fmt.Sprintf("from(bucket: %s)\n  |> range(start: %s, stop: %s)\n  |> %s",
		fluxString(bucket), fluxTime(start), fluxTime(stop), deviceFilter(measurement, deviceID))
}

func latestQuery(bucket, measurement, deviceID string) string {
	return fmt.Sprintf("from(bucket: %s)\n  |> range(start: %s)\n  |> %s\n  |> last()",
		fluxString(bucket), latestLookback, deviceFilter(measurement, deviceID))
}

func aggregateQuery(bucket, measurement, deviceID, field string, start, stop time.Time, every time.Duration) string {
	return fmt.Sprintf("from(bucket: %s)\n  |> range(start: %s, stop: %s)\n  |> %s\n  |> filter(fn: (r) => r._field == %s)\n  |> aggregateWindow(every: %s, fn: mean, createEmpty: false)",
		fluxString(bucket), fluxTime(start), fluxTime(stop), deviceFilter(measurement, deviceID),
		fluxString(field), fluxDuration(every))
}

// fluxString quotes s as a Flux string literal.
func fluxString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "${", `\${`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s) + `"`
}

func fluxTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// fluxDuration renders d as a Flux duration literal. Flux has no fractional
// units, so sub-second windows are expressed in milliseconds. Callers reject
// windows that are not whole milliseconds.
func fluxDuration(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}
	return fmt.Sprintf("%dms", d/time.Millisecond)
}
