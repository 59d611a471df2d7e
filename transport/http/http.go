// Package http provides an HTTP transport for step events. Every event is
// POSTed to the configured base URL joined with the destination.
package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/stepflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "http"

// ErrNoURL is returned when no publisher base URL is configured.
var ErrNoURL = errors.New("http: publisher url is required")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(config http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return http.NewPublisher(config, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// EndpointURL joins the base URL and the destination with exactly one slash.
func EndpointURL(baseURL, topic string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(topic, "/")
}

// Build creates a new HTTP publisher.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	baseURL := cfg.GetHTTPPublisherURL()
	if baseURL == "" {
		return nil, ErrNoURL
	}

	return PublisherFactory(
		http.PublisherConfig{
			MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
				return http.DefaultMarshalMessageFunc(EndpointURL(baseURL, topic), msg)
			},
		},
		logger,
	)
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
