package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/iot-device-core/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MessageHandler is the callback signature for received messages.
//
// The topic has wildcards expanded. A returned error is logged and does not
// affect acknowledgment. A handler that blocks holds up delivery of later
// messages and of publish acks, which the ingest dispatcher relies on for
// backpressure. Publish never waits for an ack, so workers publishing while
// the handler is blocked still make progress.
type MessageHandler func(topic string, payload []byte) error

// subscription is what gets replayed after a reconnect.
type subscription struct {
	qos     byte
	handler MessageHandler
}

// hooks are the optional observers of the connection lifecycle.
type hooks struct {
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Client is the core's single broker session. It carries both the inbound
// device and hub subscriptions and every outbound publish.
//
// All methods are safe for concurrent use.
type Client struct {
	paho pahomqtt.Client
	cfg  config.MQTTConfig

	online atomic.Bool

	subMu sync.RWMutex
	subs  map[string]subscription // keyed by pattern

	hookMu sync.RWMutex
	hooks  hooks
}

// Connect dials the broker and waits for the first CONNACK.
//
// A will message marks the core offline if the session drops without Close.
// Auto-reconnect is on, and every pattern subscribed through the client is
// subscribed again once the session is back.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:  cfg,
		subs: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.lost(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		c.logger().Warn("MQTT reconnecting", "broker", cfg.Broker.Host)
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), defaultConnectTimeout, ErrConnectionFailed); err != nil {
		return nil, err
	}

	// The connect handler runs on its own goroutine; IsConnected must
	// already be true when Connect returns.
	c.online.Store(true)
	return c, nil
}

// connected runs on the first connect and on every reconnect.
func (c *Client) connected() {
	c.online.Store(true)

	restored := c.resubscribe()
	c.announce("online", "")
	c.logger().Info("MQTT connected", "subscriptions", restored)

	c.hookMu.RLock()
	fn := c.hooks.onConnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (c *Client) lost(err error) {
	c.online.Store(false)
	c.logger().Warn("MQTT connection lost", "error", err)

	c.hookMu.RLock()
	fn := c.hooks.onDisconnect
	c.hookMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// resubscribe replays every tracked pattern and returns how many the
// broker acknowledged. Failures are logged; the next reconnect retries them.
func (c *Client) resubscribe() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	ok := 0
	for pattern, sub := range c.subs {
		err := await(c.paho.Subscribe(pattern, sub.qos, c.wrapHandler(sub.handler)), defaultAckTimeout, ErrSubscribeFailed)
		if err != nil {
			c.logger().Error("MQTT resubscribe failed", "pattern", pattern, "error", err)
			continue
		}
		ok++
	}
	return ok
}

// announce publishes the retained core lifecycle message without waiting.
func (c *Client) announce(status, reason string) pahomqtt.Token {
	return c.paho.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true,
		buildStatusPayload(c.cfg.Broker.ClientID, status, reason))
}

// Close announces a graceful shutdown and disconnects. Closing a client that
// never connected is not an error.
func (c *Client) Close() error {
	if c == nil || c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		c.announce("offline", "graceful_shutdown").WaitTimeout(defaultAckTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.online.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the last known session state.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.online.Load() && c.paho.IsConnected()
}

// SetOnConnect registers a callback for the initial connect and every
// reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.hookMu.Lock()
	c.hooks.onConnect = fn
	c.hookMu.Unlock()
}

// SetOnDisconnect registers a callback for lost connections.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.hookMu.Lock()
	c.hooks.onDisconnect = fn
	c.hookMu.Unlock()
}

// SetLogger sets the logger for lifecycle events and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.hooks.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) logger() Logger {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	if c.hooks.logger == nil {
		return noopLogger{}
	}
	return c.hooks.logger
}

// wrapHandler adapts a MessageHandler to paho. A panicking or failing
// handler is logged and the message is still acknowledged.
func (c *Client) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				c.logger().Error("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.logger().Warn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// await waits for a paho token and wraps its failure in base.
func await(token pahomqtt.Token, timeout time.Duration, base error) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: no response within %v", base, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", base, err)
	}
	return nil
}
