package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind is the classification of an inbound topic.
type Kind int

// Topic kinds.
const (
	KindUnknown Kind = iota
	KindTelemetry
	KindStatus
	KindControl
	KindSceneTrigger
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindTelemetry:
		return "telemetry"
	case KindStatus:
		return "status"
	case KindControl:
		return "control"
	case KindSceneTrigger:
		return "scene_trigger"
	default:
		return "unknown"
	}
}

// Route is a classified topic: what kind of message it carries and the
// device or scene it refers to.
type Route struct {
	Kind     Kind
	EntityID string
}

// Message is one inbound MQTT message.
type Message struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Classify maps a topic onto a Route.
//
// Scene patterns are tried before device patterns:
//
//	{ns}/scene/{sceneId}/trigger   scene trigger
//	device/{id}/data               telemetry
//	device/{id}/status             status
//	device/{id}/control            control
//	iot/device/{id}/control        control
//
// Segments compare exactly: no case folding, no trailing slash, and an empty
// segment never matches. Anything else is KindUnknown.
func Classify(topic string) Route {
	seg := strings.Split(topic, "/")

	if len(seg) == 4 && seg[0] != "" && seg[1] == "scene" && seg[2] != "" && seg[3] == "trigger" {
		return Route{Kind: KindSceneTrigger, EntityID: seg[2]}
	}

	switch {
	case len(seg) == 3 && seg[0] == "device" && seg[1] != "":
		switch seg[2] {
		case "data":
			return Route{Kind: KindTelemetry, EntityID: seg[1]}
		case "status":
			return Route{Kind: KindStatus, EntityID: seg[1]}
		case "control":
			return Route{Kind: KindControl, EntityID: seg[1]}
		}
	case len(seg) == 4 && seg[0] == "iot" && seg[1] == "device" && seg[2] != "" && seg[3] == "control":
		return Route{Kind: KindControl, EntityID: seg[2]}
	}

	return Route{Kind: KindUnknown}
}

// Handler processes one classified message.
//
// Returning an error wrapping ErrMalformedPayload marks the message as
// dropped; any other error is logged as a handler failure. Either way the
// message counts as processed.
type Handler interface {
	Handle(ctx context.Context, entityID string, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, entityID string, msg Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, entityID string, msg Message) error {
	return f(ctx, entityID, msg)
}

// Handlers binds one handler to each routable kind. Nil entries drop the
// message with a debug log.
type Handlers struct {
	Telemetry Handler
	Status    Handler
	Control   Handler
	Scene     Handler
}

// Router classifies messages and invokes the matching handler.
//
// Route never panics and never returns an error: unknown topics are logged
// and dropped, handler errors are logged, and handler panics are recovered.
type Router struct {
	handlers map[Kind]Handler
	logger   Logger
	metrics  *Metrics
}

// NewRouter creates a router. A nil logger discards output; nil metrics
// disables instrumentation.
func NewRouter(h Handlers, logger Logger, metrics *Metrics) *Router {
	if logger == nil {
		logger = noopLogger{}
	}
	handlers := make(map[Kind]Handler, 4)
	for kind, handler := range map[Kind]Handler{
		KindTelemetry:    h.Telemetry,
		KindStatus:       h.Status,
		KindControl:      h.Control,
		KindSceneTrigger: h.Scene,
	} {
		if handler != nil {
			handlers[kind] = handler
		}
	}
	return &Router{handlers: handlers, logger: logger, metrics: metrics}
}

// Route processes one message to completion and returns its classification.
func (r *Router) Route(ctx context.Context, msg Message) Kind {
	route := Classify(msg.Topic)
	r.metrics.received(route.Kind)

	if route.Kind == KindUnknown {
		r.logger.Warn("dropping message on unrecognised topic", "topic", msg.Topic)
		r.metrics.dropped(route.Kind, reasonUnknownTopic)
		return route.Kind
	}

	handler, ok := r.handlers[route.Kind]
	if !ok {
		r.logger.Debug("no handler for topic kind", "topic", msg.Topic, "kind", route.Kind.String())
		r.metrics.dropped(route.Kind, reasonNoHandler)
		return route.Kind
	}

	start := time.Now()
	err := r.invoke(ctx, handler, route, msg)
	r.metrics.observe(route.Kind, time.Since(start))

	switch {
	case err == nil:
	case errors.Is(err, ErrMalformedPayload):
		r.logger.Warn("dropping malformed message",
			"topic", msg.Topic,
			"kind", route.Kind.String(),
			"error", err,
		)
		r.metrics.dropped(route.Kind, reasonMalformed)
	default:
		r.logger.Error("message handler failed",
			"topic", msg.Topic,
			"kind", route.Kind.String(),
			"error", err,
		)
		r.metrics.failed(route.Kind)
	}
	return route.Kind
}

// invoke calls the handler, converting a panic into an error.
func (r *Router) invoke(ctx context.Context, h Handler, route Route, msg Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, rec)
		}
	}()
	return h.Handle(ctx, route.EntityID, msg)
}
