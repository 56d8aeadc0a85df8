// Package kafka mirrors raw device telemetry onto a Kafka topic for
// downstream consumers (stream processors, data lake loaders).
//
// The mirror is optional and off by default. Messages are keyed by device id
// and carry the source MQTT topic and receipt time (Unix ms) as headers; the
// value is the payload exactly as received.
package kafka
