package transport

// Capabilities describes what a transport does with a published step event.
// Use this to introspect delivery guarantees at runtime.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// SupportsPartitioning indicates the routing key selects a partition, so
	// events sharing a key land together.
	SupportsPartitioning bool

	// SupportsOrdering indicates events sharing a routing key keep their
	// publish order.
	SupportsOrdering bool

	// SupportsHeaders indicates message metadata travels with the payload.
	SupportsHeaders bool

	// SupportsDeduplication indicates the broker drops redelivered message IDs.
	SupportsDeduplication bool

	// Durable indicates published events survive a broker restart.
	Durable bool

	// SupportsTracing indicates the transport propagates tracing headers natively.
	SupportsTracing bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// HonorsRoutingKey reports whether the routing key affects delivery.
func (c Capabilities) HonorsRoutingKey() bool {
	return c.SupportsPartitioning
}

// FitsMessage reports whether a payload of size bytes can be published.
func (c Capabilities) FitsMessage(size int) bool {
	return c.MaxMessageSize <= 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsHeaders:  true,
	}

	// KafkaCapabilities for Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsPartitioning: true,
		SupportsOrdering:     true,
		SupportsHeaders:      true,
		Durable:              true,
		SupportsTracing:      true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsHeaders:  true,
		Durable:          true,
		SupportsTracing:  true,
	}

	// NATSCapabilities for NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsHeaders: true,
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for NATS JetStream transport.
	NATSJetStreamCapabilities = Capabilities{
		Name:                  "nats-jetstream",
		SupportsOrdering:      true,
		SupportsHeaders:       true,
		SupportsDeduplication: true,
		Durable:               true,
		SupportsTracing:       true,
		MaxMessageSize:        1048576, // Default 1MB
	}

	// AWSCapabilities for AWS SNS transport.
	AWSCapabilities = Capabilities{
		Name:            "aws",
		SupportsHeaders: true,
		Durable:         true,
		SupportsTracing: true,
		MaxMessageSize:  262144, // 256KB
	}

	// HTTPCapabilities for HTTP-based transport.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsHeaders: true,
		SupportsTracing: true,
	}
)

// GetCapabilities returns the capabilities for a transport by name.
// Returns a Capabilities value carrying only the name if the transport is unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
