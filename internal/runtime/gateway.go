package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cloudeventspkg "github.com/drblury/stepflow/internal/runtime/cloudevents"
	codecpkg "github.com/drblury/stepflow/internal/runtime/codec"
	errspkg "github.com/drblury/stepflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/stepflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/stepflow/internal/runtime/metadata"
)

// Metadata keys the gateway adds next to the stringified headers.
const (
	MetadataKeyEventSchema = "event_message_schema"
	MetadataKeyContentType = "content_type"
	MetadataKeyTraceID     = "trace_id"
	MetadataKeySpanID      = "span_id"
)

// DefaultTracerName names the tracer used for publish spans.
const DefaultTracerName = "github.com/drblury/stepflow"

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithHooks adds publish hooks. They run after the built-in logging hooks.
func WithHooks(hooks PublishHooks) GatewayOption {
	return func(g *Gateway) {
		g.hooks = g.hooks.Merge(hooks)
	}
}

// WithTracerName overrides the name of the tracer used for publish spans.
func WithTracerName(name string) GatewayOption {
	return func(g *Gateway) {
		if name != "" {
			g.tracer = otel.Tracer(name)
		}
	}
}

// WithTracer sets the tracer used for publish spans.
func WithTracer(tracer trace.Tracer) GatewayOption {
	return func(g *Gateway) {
		if tracer != nil {
			g.tracer = tracer
		}
	}
}

// WithCloudEvents wraps every payload in a structured-mode CloudEvent whose
// source is source. The step type becomes the event type and the routing
// key its subject.
func WithCloudEvents(source string) GatewayOption {
	return func(g *Gateway) {
		g.cloudEventsSource = source
	}
}

// DefaultCloudEventType is used when a step event carries no type.
const DefaultCloudEventType = "stepflow.step"

// Gateway is an EventPublisher on top of a watermill publisher. It encodes
// the payload, turns headers into message metadata and hands the message to
// the transport.
type Gateway struct {
	publisher message.Publisher
	hooks     PublishHooks
	tracer    trace.Tracer
	newID     func() string

	cloudEventsSource string
}

// NewGateway wraps publisher. A nil logger disables logging.
func NewGateway(publisher message.Publisher, logger loggingpkg.ServiceLogger, opts ...GatewayOption) (*Gateway, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if logger == nil {
		logger = loggingpkg.NopLogger()
	}

	g := &Gateway{
		publisher: publisher,
		hooks:     LoggingHooks(logger),
		tracer:    otel.Tracer(DefaultTracerName),
		newID:     codecpkg.NewMessageID,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// NewMessage builds the outgoing watermill message without publishing it.
func (g *Gateway) NewMessage(payload any, headers Headers) (*message.Message, error) {
	if payload == nil {
		return nil, errspkg.ErrPayloadRequired
	}

	encoded, err := codecpkg.EncodePayload(payload)
	if err != nil {
		return nil, err
	}

	id := g.newID()
	if g.cloudEventsSource != "" {
		encoded, err = g.wrapCloudEvent(id, encoded, headers)
		if err != nil {
			return nil, err
		}
	}

	md := metadatapkg.FromHeaders(headers)
	md[MetadataKeyEventSchema] = encoded.Schema
	md[MetadataKeyContentType] = encoded.ContentType

	msg := message.NewMessage(id, encoded.Data)
	msg.Metadata = metadatapkg.ToWatermill(md)
	return msg, nil
}

func (g *Gateway) wrapCloudEvent(id string, encoded codecpkg.Encoded, headers Headers) (codecpkg.Encoded, error) {
	eventType := headers.String(HeaderEventType)
	if eventType == "" {
		eventType = DefaultCloudEventType
	}

	evt := cloudeventspkg.New(id, eventType, g.cloudEventsSource, json.RawMessage(encoded.Data))
	evt.Subject = headers.String(HeaderRoutingKey)
	evt.DataContentType = encoded.ContentType
	evt.DataSchema = encoded.Schema
	if ts, ok := headers[HeaderTimestamp].(time.Time); ok {
		evt.Time = ts
	} else if ts, err := codecpkg.MessageTime(id); err == nil {
		evt.Time = ts
	}
	if v := headers.String(HeaderSagaName); v != "" {
		evt = evt.WithExtension("saganame", v)
	}
	if v := headers.String(HeaderSagaID); v != "" {
		evt = evt.WithExtension("sagaid", v)
	}
	if v := headers.String(HeaderResultType); v != "" {
		evt = evt.WithExtension("resulttype", v)
	}
	if err := evt.Validate(); err != nil {
		return codecpkg.Encoded{}, err
	}

	data, err := codecpkg.Marshal(evt)
	if err != nil {
		return codecpkg.Encoded{}, err
	}
	return codecpkg.Encoded{
		Data:        data,
		ContentType: cloudeventspkg.ContentType,
		Schema:      encoded.Schema,
	}, nil
}

// Publish implements EventPublisher. The transport error is returned unchanged.
func (g *Gateway) Publish(ctx context.Context, payload any, destination string, headers Headers) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if destination == "" {
		return errspkg.ErrTopicRequired
	}

	msg, err := g.NewMessage(payload, headers)
	if err != nil {
		g.hooks.finish(PublishContext{
			Destination: destination,
			RoutingKey:  headers.String(HeaderRoutingKey),
			EventType:   headers.String(HeaderEventType),
			Context:     ctx,
			StartedAt:   time.Now(),
		}, err)
		return err
	}

	ctx, span := g.tracer.Start(ctx, "PublishStepEvent",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", destination),
			attribute.String("messaging.message.id", msg.UUID),
			attribute.String("stepflow.routing_key", msg.Metadata.Get(HeaderRoutingKey)),
			attribute.String("stepflow.event_type", msg.Metadata.Get(HeaderEventType)),
		),
	)
	defer span.End()

	if sc := span.SpanContext(); sc.IsValid() {
		msg.Metadata.Set(MetadataKeyTraceID, sc.TraceID().String())
		msg.Metadata.Set(MetadataKeySpanID, sc.SpanID().String())
	}
	msg.SetContext(ctx)

	pc := PublishContext{
		Destination: destination,
		MessageUUID: msg.UUID,
		RoutingKey:  msg.Metadata.Get(HeaderRoutingKey),
		EventType:   msg.Metadata.Get(HeaderEventType),
		Metadata:    msg.Metadata,
		Context:     ctx,
		StartedAt:   time.Now(),
	}
	g.hooks.start(pc)

	err = g.publisher.Publish(destination, msg)
	pc.Duration = time.Since(pc.StartedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	g.hooks.finish(pc, err)

	return err
}

// Close closes the underlying transport publisher.
func (g *Gateway) Close() error {
	return g.publisher.Close()
}
