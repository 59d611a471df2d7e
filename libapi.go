package stepflow

import (
	runtimepkg "github.com/drblury/stepflow/internal/runtime"
	ce "github.com/drblury/stepflow/internal/runtime/cloudevents"
	codecpkg "github.com/drblury/stepflow/internal/runtime/codec"
	configpkg "github.com/drblury/stepflow/internal/runtime/config"
	errspkg "github.com/drblury/stepflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/stepflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/stepflow/internal/runtime/metadata"
	"github.com/drblury/stepflow/transport"

	_ "github.com/drblury/stepflow/transport/transports"
)

type (
	// Step events
	StepEventEnvelope  = runtimepkg.StepEventEnvelope
	StepEventPublisher = runtimepkg.StepEventPublisher
	EventPublisher     = runtimepkg.EventPublisher
	EventPublisherFunc = runtimepkg.EventPublisherFunc
	Headers            = runtimepkg.Headers
	Delivery           = runtimepkg.Delivery

	Bridge                = runtimepkg.Bridge
	BridgeOption          = runtimepkg.BridgeOption
	NopStepEventPublisher = runtimepkg.NopStepEventPublisher

	// Watermill-backed publishing
	Gateway           = runtimepkg.Gateway
	GatewayOption     = runtimepkg.GatewayOption
	PublisherFactory  = runtimepkg.PublisherFactory
	PublisherProvider = runtimepkg.PublisherProvider
	FactoryOption     = runtimepkg.FactoryOption

	// Publish lifecycle hooks
	PublishContext = runtimepkg.PublishContext
	PublishHooks   = runtimepkg.PublishHooks

	// Publish metrics
	PublishMetrics         = runtimepkg.PublishMetrics
	DestinationMetrics     = runtimepkg.DestinationMetrics
	PublishMetricsSnapshot = runtimepkg.PublishMetricsSnapshot

	Config           = configpkg.Config
	StepEventsConfig = configpkg.StepEventsConfig

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	ValidationError       = errspkg.ValidationError
	ConfigValidationError = errspkg.ConfigValidationError

	CloudEvent = ce.Event

	TransportBuilder      = transport.Builder
	TransportConfig       = transport.Config
	TransportRegistry     = transport.Registry
	TransportCapabilities = transport.Capabilities
)

var (
	NewBridge             = runtimepkg.NewBridge
	WithClock             = runtimepkg.WithClock
	NewGateway            = runtimepkg.NewGateway
	WithHooks             = runtimepkg.WithHooks
	WithTracerName        = runtimepkg.WithTracerName
	WithTracer            = runtimepkg.WithTracer
	WithCloudEvents       = runtimepkg.WithCloudEvents
	NewStepEventPublisher = runtimepkg.NewStepEventPublisher
	Bootstrap             = runtimepkg.Bootstrap
	NewPublisherFactory   = runtimepkg.NewPublisherFactory
	WithRegistry          = runtimepkg.WithRegistry
	WithRegisterer        = runtimepkg.WithRegisterer
	WithPublishHooks      = runtimepkg.WithPublishHooks

	LoggingHooks      = runtimepkg.LoggingHooks
	MetricsHooks      = runtimepkg.MetricsHooks
	NewPublishMetrics = runtimepkg.NewPublishMetrics

	LoadConfig        = configpkg.Load
	ParseConfig       = configpkg.Parse
	LoadConfigFromEnv = configpkg.LoadFromEnv
	ValidateConfig    = configpkg.ValidateConfig

	NewServiceLogger     = loggingpkg.NewServiceLogger
	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NopLogger            = loggingpkg.NopLogger

	NewMetadata = metadatapkg.New

	NewMessageID = codecpkg.NewMessageID
	Marshal      = codecpkg.Marshal
	Unmarshal    = codecpkg.Unmarshal

	ErrEnvelopeRequired         = errspkg.ErrEnvelopeRequired
	ErrPublisherRequired        = errspkg.ErrPublisherRequired
	ErrTopicRequired            = errspkg.ErrTopicRequired
	ErrConfigRequired           = errspkg.ErrConfigRequired
	ErrLoggerRequired           = errspkg.ErrLoggerRequired
	ErrPublisherFactoryRequired = errspkg.ErrPublisherFactoryRequired
	ErrUnknownPublisher         = errspkg.ErrUnknownPublisher
	ErrPayloadRequired          = errspkg.ErrPayloadRequired
	ErrFactoryClosed            = errspkg.ErrFactoryClosed

	DefaultTransportRegistry = transport.DefaultRegistry
	RegisterTransport        = transport.RegisterWithCapabilities
	GetCapabilities          = transport.GetCapabilities
)

// Header keys the bridge writes on every step event.
const (
	HeaderSagaName    = runtimepkg.HeaderSagaName
	HeaderSagaID      = runtimepkg.HeaderSagaID
	HeaderStepType    = runtimepkg.HeaderStepType
	HeaderAttempts    = runtimepkg.HeaderAttempts
	HeaderLatencyMs   = runtimepkg.HeaderLatencyMs
	HeaderStartedAt   = runtimepkg.HeaderStartedAt
	HeaderCompletedAt = runtimepkg.HeaderCompletedAt
	HeaderResultType  = runtimepkg.HeaderResultType
	HeaderTimestamp   = runtimepkg.HeaderTimestamp
	HeaderRoutingKey  = runtimepkg.HeaderRoutingKey
	HeaderEventType   = runtimepkg.HeaderEventType
)

// Metadata keys the gateway adds to outgoing messages.
const (
	MetadataKeyEventSchema = runtimepkg.MetadataKeyEventSchema
	MetadataKeyContentType = runtimepkg.MetadataKeyContentType
	MetadataKeyTraceID     = runtimepkg.MetadataKeyTraceID
	MetadataKeySpanID      = runtimepkg.MetadataKeySpanID
)

const (
	ResultSuccess          = runtimepkg.ResultSuccess
	ResultFailure          = runtimepkg.ResultFailure
	DefaultTopic           = runtimepkg.DefaultTopic
	DefaultPubSubSystem    = runtimepkg.DefaultPubSubSystem
	CloudEventsSpecVersion = ce.SpecVersion
)
