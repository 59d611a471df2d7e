package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	loggingpkg "github.com/drblury/stepflow/internal/runtime/logging"
)

// PublishContext describes one step event delivery to hooks.
type PublishContext struct {
	// Destination is the topic the event is published to.
	Destination string
	// MessageUUID is the unique identifier of the outgoing message.
	MessageUUID string
	// RoutingKey is the partition/routing key of the event.
	RoutingKey string
	// EventType is the step type, as carried in the event_type metadata.
	EventType string
	// Metadata contains the outgoing message metadata.
	Metadata message.Metadata
	// Context is the context of the publish call.
	Context context.Context
	// StartedAt is when the publish began.
	StartedAt time.Time
	// Duration is how long the publish took (only set in OnPublishDone and OnPublishError).
	Duration time.Duration
}

// PublishHooks defines callbacks around each gateway publish.
// All hooks are optional - nil hooks are simply not called.
type PublishHooks struct {
	// OnPublishStart is called after the message is built, right before it
	// is handed to the transport.
	OnPublishStart func(ctx PublishContext)

	// OnPublishDone is called when the transport accepted the message.
	OnPublishDone func(ctx PublishContext)

	// OnPublishError is called when encoding or the transport failed.
	OnPublishError func(ctx PublishContext, err error)
}

// Merge combines two PublishHooks, creating a new PublishHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h PublishHooks) Merge(other PublishHooks) PublishHooks {
	return PublishHooks{
		OnPublishStart: chainHooks(h.OnPublishStart, other.OnPublishStart),
		OnPublishDone:  chainHooks(h.OnPublishDone, other.OnPublishDone),
		OnPublishError: chainErrorHooks(h.OnPublishError, other.OnPublishError),
	}
}

func chainHooks(a, b func(PublishContext)) func(PublishContext) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx PublishContext) {
		a(ctx)
		b(ctx)
	}
}

func chainErrorHooks(a, b func(PublishContext, error)) func(PublishContext, error) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx PublishContext, err error) {
		a(ctx, err)
		b(ctx, err)
	}
}

func (h PublishHooks) start(ctx PublishContext) {
	if h.OnPublishStart != nil {
		h.OnPublishStart(ctx)
	}
}

func (h PublishHooks) finish(ctx PublishContext, err error) {
	if err != nil {
		if h.OnPublishError != nil {
			h.OnPublishError(ctx, err)
		}
		return
	}
	if h.OnPublishDone != nil {
		h.OnPublishDone(ctx)
	}
}

// LoggingHooks returns pre-built hooks that log each delivery.
func LoggingHooks(logger loggingpkg.ServiceLogger) PublishHooks {
	return PublishHooks{
		OnPublishStart: func(ctx PublishContext) {
			logger.Debug("Publishing step event", loggingpkg.LogFields{
				"destination":  ctx.Destination,
				"message_uuid": ctx.MessageUUID,
				"routing_key":  ctx.RoutingKey,
				"event_type":   ctx.EventType,
			})
		},
		OnPublishDone: func(ctx PublishContext) {
			logger.Debug("Step event published", loggingpkg.LogFields{
				"destination":  ctx.Destination,
				"message_uuid": ctx.MessageUUID,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
		OnPublishError: func(ctx PublishContext, err error) {
			logger.Error("Step event publish failed", err, loggingpkg.LogFields{
				"destination":  ctx.Destination,
				"message_uuid": ctx.MessageUUID,
				"routing_key":  ctx.RoutingKey,
				"event_type":   ctx.EventType,
				"duration_ms":  ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that feed PublishMetrics.
func MetricsHooks(metrics *PublishMetrics) PublishHooks {
	if metrics == nil {
		return PublishHooks{}
	}
	return PublishHooks{
		OnPublishDone: func(ctx PublishContext) {
			metrics.RecordPublished(ctx.Destination, ctx.EventType, ctx.Duration)
		},
		OnPublishError: func(ctx PublishContext, err error) {
			metrics.RecordFailed(ctx.Destination, ctx.EventType, ctx.Duration)
		},
	}
}
