// Package stepflow publishes saga step lifecycle events. After every step the
// orchestration engine hands a StepEventEnvelope to a StepEventPublisher; the
// Bridge resolves the destination and routing key, stamps traceability
// headers, and forwards the envelope to an EventPublisher.
//
// The bundled EventPublisher is a Gateway on top of a Watermill publisher. It
// encodes the envelope (protojson for protobuf payloads, JSON otherwise),
// copies headers into message metadata, starts an OpenTelemetry producer span,
// and runs PublishHooks around the transport call. PublisherFactory builds one
// Gateway per transport name from Config, and Bootstrap wires the whole chain
// in one call:
//
//	conf, err := stepflow.LoadConfig("application.yaml")
//	if err != nil { ... }
//	publisher, closeFn, err := stepflow.Bootstrap(ctx, conf, nil)
//	if err != nil { ... }
//	defer closeFn()
//
//	err = publisher.Publish(ctx, &stepflow.StepEventEnvelope{
//		SagaName: "MoneyTransferSaga",
//		SagaID:   "SAGA-67890",
//		Type:     "transfer.step.completed",
//		...
//	})
//
// # Transports
//
// Importing this package registers every bundled transport:
//   - channel: in-memory Go channels for tests and local runs
//   - kafka: partitioned by the routing key
//   - rabbitmq: AMQP topic exchange
//   - nats: NATS core subjects
//   - nats-jetstream: durable JetStream streams with broker deduplication
//   - http: POST to a base URL with the topic appended
//   - aws: AWS SNS topics with LocalStack support
//
// Applications that only need some of them can import the packages under
// transport/ directly and use the internal wiring through this facade.
//
// # Hooks and metrics
//
// PublishHooks exposes OnPublishStart, OnPublishDone and OnPublishError for
// custom logging or alerting. With MetricsEnabled the factory also records
// Prometheus counters and a duration histogram per destination.
package stepflow
