package event

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Name returns the event name for a payload: the bare type name with pointers
// unwrapped (broker.OracleRequest and *broker.OracleRequest both yield "OracleRequest").
// Type names must be unique across packages that share a bus.
func Name(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func unmarshalPayload[T any](payload any) (T, error) {
	var zero T

	// Direct type match - payload is already the correct type
	if v, ok := payload.(T); ok {
		return v, nil
	}

	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = p
	case json.RawMessage:
		data = p
	case map[string]any:
		// Event.Payload is typed as any, so the JSON decoder produces a map.
		b, err := json.Marshal(p)
		if err != nil {
			return zero, fmt.Errorf("failed to marshal map payload: %w", err)
		}
		data = b
	default:
		return zero, fmt.Errorf("%w: expected %T, got %T", ErrInvalidPayload, zero, payload)
	}

	var evt T
	if err := json.Unmarshal(data, &evt); err != nil {
		return zero, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return evt, nil
}
