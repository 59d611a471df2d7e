package runtime

import (
	"context"
	"strings"
	"time"

	configpkg "github.com/drblury/stepflow/internal/runtime/config"
	errspkg "github.com/drblury/stepflow/internal/runtime/errors"
)

// DefaultTopic is the destination used when neither the envelope nor the
// bridge configuration names one.
const DefaultTopic = configpkg.DefaultStepEventsTopic

// StepEventPublisher is the capability the orchestration engine calls after
// every step.
type StepEventPublisher interface {
	Publish(ctx context.Context, envelope *StepEventEnvelope) error
}

// EventPublisher delivers an opaque payload to a destination with headers.
// Implementations decide the transport, serialization, and any timeout policy.
type EventPublisher interface {
	Publish(ctx context.Context, payload any, destination string, headers Headers) error
}

// EventPublisherFunc adapts a function to EventPublisher.
type EventPublisherFunc func(ctx context.Context, payload any, destination string, headers Headers) error

func (f EventPublisherFunc) Publish(ctx context.Context, payload any, destination string, headers Headers) error {
	return f(ctx, payload, destination, headers)
}

// Delivery is the fully resolved routing for one envelope.
type Delivery struct {
	Destination string
	RoutingKey  string
	Headers     Headers
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithClock overrides the source of the step.timestamp header.
func WithClock(now func() time.Time) BridgeOption {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// Bridge forwards step events to an EventPublisher, adding routing and
// traceability headers. Its fields are fixed at construction, so one Bridge
// can serve concurrent calls as long as each call has its own envelope.
type Bridge struct {
	defaultTopic string
	publisher    EventPublisher
	now          func() time.Time
}

// NewBridge returns a Bridge publishing to defaultTopic unless an envelope
// names its own topic. A blank defaultTopic falls back to DefaultTopic.
func NewBridge(defaultTopic string, publisher EventPublisher, opts ...BridgeOption) (*Bridge, error) {
	if publisher == nil {
		return nil, errspkg.ErrPublisherRequired
	}
	if strings.TrimSpace(defaultTopic) == "" {
		defaultTopic = DefaultTopic
	}

	b := &Bridge{
		defaultTopic: defaultTopic,
		publisher:    publisher,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// DefaultTopic returns the destination used for envelopes without a topic.
func (b *Bridge) DefaultTopic() string {
	return b.defaultTopic
}

// Resolve computes destination, routing key and headers for env without
// touching it. Caller headers go in first so the derived keys always win.
func (b *Bridge) Resolve(env *StepEventEnvelope) (Delivery, error) {
	if env == nil {
		return Delivery{}, errspkg.NewValidationError("", errspkg.ErrEnvelopeRequired)
	}

	headers := make(Headers, len(env.Headers)+11)
	for k, v := range env.Headers {
		headers[k] = v
	}

	headers[HeaderSagaName] = env.SagaName
	headers[HeaderSagaID] = env.SagaID
	headers[HeaderStepType] = env.Type
	headers[HeaderAttempts] = env.Attempts
	headers[HeaderLatencyMs] = env.LatencyMs
	headers[HeaderStartedAt] = env.StartedAt
	headers[HeaderCompletedAt] = env.CompletedAt
	headers[HeaderResultType] = env.ResultType
	headers[HeaderTimestamp] = b.now()

	routingKey := env.RoutingKey()
	headers[HeaderRoutingKey] = routingKey
	headers[HeaderEventType] = env.Type

	destination := b.defaultTopic
	if env.Topic != "" {
		destination = env.Topic
	}

	return Delivery{
		Destination: destination,
		RoutingKey:  routingKey,
		Headers:     headers,
	}, nil
}

// Publish resolves the delivery, writes the routing key back into env.Key and
// hands the envelope itself to the publisher. The publisher's error is
// returned as is.
func (b *Bridge) Publish(ctx context.Context, env *StepEventEnvelope) error {
	d, err := b.Resolve(env)
	if err != nil {
		return err
	}
	env.Key = d.RoutingKey

	return b.publisher.Publish(ctx, env, d.Destination, d.Headers)
}

// PublishAsync runs Publish on its own goroutine. The returned channel
// receives exactly one value and is then closed.
func (b *Bridge) PublishAsync(ctx context.Context, env *StepEventEnvelope) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- b.Publish(ctx, env)
	}()
	return result
}

// NopStepEventPublisher drops every step event. It stands in for the bridge
// when step events are disabled.
type NopStepEventPublisher struct{}

func (NopStepEventPublisher) Publish(ctx context.Context, env *StepEventEnvelope) error {
	return nil
}
