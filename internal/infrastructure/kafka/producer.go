package kafka

import (
	"context"
	"fmt"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
)

// Header keys attached to every mirrored message.
const (
	HeaderSourceTopic = "mqtt-topic"
	HeaderReceivedAt  = "received-at"
)

// Logger is the logging interface used for asynchronous delivery reports.
type Logger interface {
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Producer mirrors raw telemetry payloads onto a Kafka topic, keyed by
// device id so one device's messages stay on one partition.
//
// Delivery is asynchronous and best effort: WriteMessages returns once the
// message is queued and failures are only logged.
type Producer struct {
	writer *kafkago.Writer
	topic  string
	logger Logger
}

// New creates a producer for the configured brokers and topic.
// It returns ErrDisabled when the mirror is switched off.
func New(cfg config.KafkaConfig) (*Producer, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrInvalidConfig)
	}

	p := &Producer{topic: cfg.Topic, logger: noopLogger{}}
	p.writer = &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafkago.Hash{},

		BatchSize:    500,
		BatchBytes:   1 << 20,
		BatchTimeout: 10 * time.Millisecond,

		RequiredAcks: kafkago.RequireOne,
		Async:        true,
		Compression:  kafkago.Snappy,
		Completion:   p.completion,
	}
	return p, nil
}

// SetLogger sets the logger for delivery failures.
func (p *Producer) SetLogger(logger Logger) {
	p.logger = logger
}

// Topic returns the Kafka topic messages are written to.
func (p *Producer) Topic() string {
	return p.topic
}

// MirrorTelemetry queues one raw telemetry payload.
func (p *Producer) MirrorTelemetry(ctx context.Context, deviceID, sourceTopic string, payload []byte, receivedAt time.Time) error {
	msg := buildMessage(deviceID, sourceTopic, payload, receivedAt)
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// Close flushes queued messages and closes the writer.
func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func (p *Producer) completion(messages []kafkago.Message, err error) {
	if err == nil {
		return
	}
	p.logger.Warn("telemetry mirror delivery failed",
		"topic", p.topic,
		"messages", len(messages),
		"error", err,
	)
}

func buildMessage(deviceID, sourceTopic string, payload []byte, receivedAt time.Time) kafkago.Message {
	return kafkago.Message{
		Key:   []byte(deviceID),
		Value: payload,
		Time:  receivedAt,
		Headers: []kafkago.Header{
			{Key: HeaderSourceTopic, Value: []byte(sourceTopic)},
			{Key: HeaderReceivedAt, Value: []byte(strconv.FormatInt(receivedAt.UnixMilli(), 10))},
		},
	}
}
