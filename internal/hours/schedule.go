// Package hours decides whether a store is open from either of the two
// opening-hours shapes the store data carries: a per-weekday map of
// "HH:MM-HH:MM" strings, or a free-text weekly schedule with one
// "<Weekday>: <start> – <end>" line per day in 12-hour time.
package hours

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Schedule is a parsed opening-hours value. The only implementations are
// Weekly and FreeText.
type Schedule interface {
	schedule()
}

// Weekly maps lowercase English weekday names to a "HH:MM-HH:MM" range or a
// closed marker such as "Fermé".
type Weekly map[string]string

// FreeText is a newline-separated weekly schedule, one line per weekday.
type FreeText string

func (Weekly) schedule()   {}
func (FreeText) schedule() {}

// ErrUnsupportedShape is returned for opening-hours values that are neither
// an object, a string nor null.
var ErrUnsupportedShape = errors.New("opening hours must be an object, a string or null")

// Parse detects the shape of a raw JSON opening-hours value.
// Null, empty input and blank strings yield a nil Schedule.
func Parse(raw []byte) (Schedule, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return nil, fmt.Errorf("decode opening hours: %w", err)
	}
	return FromValue(v)
}

// FromValue converts an already decoded JSON or YAML value into a Schedule.
// Map entries whose value is not a string are dropped.
func FromValue(v any) (Schedule, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case Weekly:
		return normalizeKeys(t), nil
	case FreeText:
		return fromString(string(t)), nil
	case string:
		return fromString(t), nil
	case map[string]string:
		return normalizeKeys(t), nil
	case map[string]any:
		w := make(Weekly, len(t))
		for day, entry := range t {
			if s, ok := entry.(string); ok {
				w[dayKey(day)] = s
			}
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedShape, v)
	}
}

func fromString(s string) Schedule {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return FreeText(s)
}

func normalizeKeys(m map[string]string) Weekly {
	w := make(Weekly, len(m))
	for day, entry := range m {
		w[dayKey(day)] = entry
	}
	return w
}

func dayKey(day string) string {
	return strings.ToLower(strings.TrimSpace(day))
}

// OpeningHours carries a Schedule through JSON encoding so that both
// shapes survive a round trip.
type OpeningHours struct {
	Schedule Schedule
}

// IsZero reports whether no schedule is set.
func (h OpeningHours) IsZero() bool {
	return h.Schedule == nil
}

// MarshalJSON implements json.Marshaler.
func (h OpeningHours) MarshalJSON() ([]byte, error) {
	switch s := h.Schedule.(type) {
	case nil:
		return []byte("null"), nil
	case Weekly:
		return json.Marshal(map[string]string(s))
	case FreeText:
		return json.Marshal(string(s))
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnsupportedShape, s)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *OpeningHours) UnmarshalJSON(data []byte) error {
	s, err := Parse(data)
	if err != nil {
		return err
	}
	h.Schedule = s
	return nil
}

// JSONSchema describes the accepted shapes for schema generation.
func (OpeningHours) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Description: "Per-weekday map of HH:MM-HH:MM ranges, or a free-text weekly schedule",
		OneOf: []*jsonschema.Schema{
			{Type: "object", AdditionalProperties: &jsonschema.Schema{Type: "string"}},
			{Type: "string"},
			{Type: "null"},
		},
	}
}
