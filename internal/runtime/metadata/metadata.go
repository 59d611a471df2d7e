package metadata

import (
	"fmt"
	"strconv"
	"time"
)

// Metadata represents the string headers carried alongside a published message.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a cloned metadata map containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}

// FromHeaders flattens typed headers into wire metadata. Nil values and zero
// times are dropped; times are written as RFC3339Nano in UTC.
func FromHeaders(headers map[string]any) Metadata {
	md := make(Metadata, len(headers))
	for k, v := range headers {
		if s, ok := Stringify(v); ok {
			md[k] = s
		}
	}
	return md
}

// Stringify renders a single header value. The boolean is false when the
// value should not be put on the wire.
func Stringify(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case uint64:
		return strconv.FormatUint(val, 10), true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case time.Time:
		if val.IsZero() {
			return "", false
		}
		return val.UTC().Format(time.RFC3339Nano), true
	case *time.Time:
		if val == nil || val.IsZero() {
			return "", false
		}
		return val.UTC().Format(time.RFC3339Nano), true
	case time.Duration:
		return val.String(), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}
