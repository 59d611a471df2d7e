// Package channel provides an in-memory Go channel transport for step events.
// This transport is useful for testing and local development.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/stepflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "channel"

// DefaultConfig keeps events for subscribers that attach after publishing.
var DefaultConfig = gochannel.Config{
	OutputChannelBuffer: 64,
	Persistent:          true,
}

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) message.Publisher {
	return gochannel.NewGoChannel(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build creates a new Go channel publisher. The returned value also
// implements message.Subscriber, so in-process consumers can read from it.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return Factory(DefaultConfig, logger), nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
