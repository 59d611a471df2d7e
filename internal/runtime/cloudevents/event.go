// Package cloudevents renders step events in the CloudEvents v1.0 JSON
// structured format, for consumers that expect CloudEvents on the wire.
// See https://github.com/cloudevents/spec/blob/v1.0/spec.md.
package cloudevents

import (
	"errors"
	"fmt"
	"time"

	codecpkg "github.com/drblury/stepflow/internal/runtime/codec"
)

// SpecVersion is the CloudEvents specification version implemented.
const SpecVersion = "1.0"

// ContentType is the media type of a structured-mode CloudEvent.
const ContentType = "application/cloudevents+json"

var reservedAttributes = map[string]bool{
	"specversion":     true,
	"type":            true,
	"source":          true,
	"id":              true,
	"time":            true,
	"datacontenttype": true,
	"dataschema":      true,
	"subject":         true,
	"data":            true,
	"data_base64":     true,
}

// Event is a CloudEvents v1.0 event. Extensions are flattened into the top
// level object when marshaled.
type Event struct {
	SpecVersion     string
	Type            string
	Source          string
	ID              string
	Time            time.Time
	DataContentType string
	DataSchema      string
	Subject         string
	Data            any
	Extensions      map[string]any
}

// New creates an event with the required attributes populated.
func New(id, eventType, source string, data any) Event {
	return Event{
		SpecVersion: SpecVersion,
		Type:        eventType,
		Source:      source,
		ID:          id,
		Data:        data,
		Extensions:  make(map[string]any),
	}
}

// WithExtension sets an extension attribute and returns the event.
// Invalid names are reported by Validate.
func (e Event) WithExtension(key string, value any) Event {
	ext := make(map[string]any, len(e.Extensions)+1)
	for k, v := range e.Extensions {
		ext[k] = v
	}
	ext[key] = value
	e.Extensions = ext
	return e
}

// ValidExtensionName reports whether name is a legal extension attribute:
// lowercase ASCII letters and digits, at most 20 characters, not reserved.
func ValidExtensionName(name string) bool {
	if name == "" || len(name) > 20 || reservedAttributes[name] {
		return false
	}
	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Validate checks the required attributes and the extension names.
func (e Event) Validate() error {
	var errs []error
	if e.SpecVersion != SpecVersion {
		errs = append(errs, fmt.Errorf("specversion must be %q, got %q", SpecVersion, e.SpecVersion))
	}
	if e.Type == "" {
		errs = append(errs, errors.New("type is required"))
	}
	if e.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if e.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	for name := range e.Extensions {
		if !ValidExtensionName(name) {
			errs = append(errs, fmt.Errorf("invalid extension name %q", name))
		}
	}
	return errors.Join(errs...)
}

// MarshalJSON renders the structured-mode JSON object.
func (e Event) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 10+len(e.Extensions))
	for k, v := range e.Extensions {
		m[k] = v
	}

	m["specversion"] = e.SpecVersion
	m["type"] = e.Type
	m["source"] = e.Source
	m["id"] = e.ID
	if !e.Time.IsZero() {
		m["time"] = e.Time.UTC().Format(time.RFC3339Nano)
	}
	if e.DataContentType != "" {
		m["datacontenttype"] = e.DataContentType
	}
	if e.DataSchema != "" {
		m["dataschema"] = e.DataSchema
	}
	if e.Subject != "" {
		m["subject"] = e.Subject
	}
	if e.Data != nil {
		m["data"] = e.Data
	}

	return codecpkg.Marshal(m)
}
