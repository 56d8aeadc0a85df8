// Package api implements the ops HTTP server for the IoT device core.
//
// Endpoints:
//   - GET  /api/v1/health                    dependency probes (503 when degraded)
//   - GET  /api/v1/metrics                   JSON runtime, MQTT, ingest and directory stats
//   - GET  /metrics                          Prometheus exposition
//   - GET  /api/v1/devices[?online=true]     directory listing
//   - GET  /api/v1/devices/{id}              device with realtime status overlaid
//   - GET  /api/v1/devices/{id}/status       cached status, directory fallback
//   - GET  /api/v1/devices/{id}/telemetry    latest field values
//   - POST /api/v1/scenes/{id}/activate      run a scene synchronously
//   - GET  /api/v1/scenes/{id}/executions    execution history
//
// Device control is not exposed here; it arrives over MQTT from the hub.
//
// The server follows the same lifecycle as the infrastructure clients:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
