// Package influxdb is the telemetry store: it writes device telemetry points
// to InfluxDB v2 and reads them back with Flux.
//
// Every point lands in one measurement (default "device_data") tagged with
// device_id, timestamped at receipt with millisecond precision.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.WritePoint(ctx, telemetry.NewPoint("dev-1", fields))
//	latest, err := client.QueryLatest(ctx, "dev-1")
//
// # Error Handling
//
// Writes use the blocking write API and return ErrWriteFailed on failure.
// Nothing is retried or buffered here.
package influxdb
