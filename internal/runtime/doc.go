/*
Package runtime turns saga step results into published events.

# Architecture Overview

The orchestration engine hands a StepEventEnvelope to a StepEventPublisher
after every step. The Bridge implements StepEventPublisher: it derives the
routing key, the destination and the step.* headers, then forwards the
envelope to an EventPublisher. The Gateway is the EventPublisher backed by a
Watermill publisher; it encodes the payload, converts headers to message
metadata, opens a tracing span and runs publish hooks.

# Package Structure

## Envelope and Bridge (envelope.go, bridge.go)

The data contract and the translation rules:
  - Routing key: envelope key, else "<saga name>:<saga id>"
  - Destination: envelope topic, else the bridge default topic
  - Headers: caller headers first, derived step.* keys on top

## Gateway (gateway.go, hooks.go, metrics.go)

Delivery through any registered transport:
  - ULID message IDs, protojson or sonic payload encoding
  - Optional CloudEvents structured mode
  - OpenTelemetry producer spans with trace_id/span_id metadata
  - Publish hooks for logging and Prometheus metrics

## Wiring (factory.go, setup.go)

PublisherFactory builds and caches one Gateway per transport name.
NewStepEventPublisher and Bootstrap assemble the bridge from configuration.

# Sub-packages

  - cloudevents/: CloudEvents v1.0 structured-mode rendering
  - codec/: payload encoding and message IDs
  - config/: YAML and environment configuration with validation
  - errors/: sentinel errors and error types
  - logging/: logger interface and adapters
  - metadata/: message metadata utilities
*/
package runtime
