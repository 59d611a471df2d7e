// Package codec turns step event payloads into wire bytes and mints message IDs.
package codec

import (
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ContentTypeJSON is reported for every encoded payload.
const ContentTypeJSON = "application/json"

var (
	defaultConfig = sonic.ConfigStd

	protoJSONMarshalOptions = protojson.MarshalOptions{
		EmitUnpopulated: true,
	}
)

// Encoded is a payload ready to be placed on a message.
type Encoded struct {
	Data        []byte
	ContentType string
	// Schema is the Go type name of the payload, or the full protobuf message name.
	Schema string
}

// EncodePayload marshals proto messages with protojson and anything else with sonic.
func EncodePayload(payload any) (Encoded, error) {
	if msg, ok := payload.(proto.Message); ok {
		data, err := protoJSONMarshalOptions.Marshal(msg)
		if err != nil {
			return Encoded{}, fmt.Errorf("failed to marshal proto payload: %w", err)
		}
		return Encoded{
			Data:        data,
			ContentType: ContentTypeJSON,
			Schema:      string(msg.ProtoReflect().Descriptor().FullName()),
		}, nil
	}

	data, err := Marshal(payload)
	if err != nil {
		return Encoded{}, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return Encoded{
		Data:        data,
		ContentType: ContentTypeJSON,
		Schema:      fmt.Sprintf("%T", payload),
	}, nil
}

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}
