// Package ingest turns inbound MQTT messages into work.
//
// The pipeline has three stages:
//
//   - Dispatcher: a bounded queue sharded by device or scene id in front of
//     a fixed worker pool. One path is processed strictly in order; distinct
//     paths run concurrently. Submit blocks when a shard is full.
//   - Router: classifies the topic by splitting it on "/" and hands the
//     message to exactly one handler. Unknown topics are dropped.
//   - Handlers: TelemetryHandler writes points, StatusHandler updates the
//     device directory and status cache. Control and scene handlers live in
//     the Home Assistant bridge and plug in through the Handler interface.
//
// Handlers report malformed input by wrapping ErrMalformedPayload. The router
// logs and counts everything else; nothing a message does can stop the
// pipeline.
package ingest
