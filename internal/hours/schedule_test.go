package hours

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Schedule
		wantErr bool
	}{
		{name: "object", raw: `{"Monday":"08:00-20:00","sunday":"Fermé"}`, want: Weekly{"monday": "08:00-20:00", "sunday": "Fermé"}},
		{name: "non-string entries dropped", raw: `{"monday":"08:00-20:00","tuesday":null,"wednesday":9}`, want: Weekly{"monday": "08:00-20:00"}},
		{name: "string", raw: `"Monday: 8:30 AM – 7:00 PM"`, want: FreeText("Monday: 8:30 AM – 7:00 PM")},
		{name: "null", raw: `null`, want: nil},
		{name: "empty input", raw: ``, want: nil},
		{name: "blank string", raw: `"   "`, want: nil},
		{name: "number", raw: `42`, wantErr: true},
		{name: "array", raw: `["08:00-20:00"]`, wantErr: true},
		{name: "malformed", raw: `{"monday":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejectsOtherShapesWithSentinel(t *testing.T) {
	_, err := Parse([]byte(`true`))
	assert.ErrorIs(t, err, ErrUnsupportedShape)
}

func TestFromValueAcceptsYAMLMaps(t *testing.T) {
	got, err := FromValue(map[string]any{"Friday": "09:00-21:00", "note": []any{"x"}})
	require.NoError(t, err)
	assert.Equal(t, Weekly{"friday": "09:00-21:00"}, got)

	got, err = FromValue(map[string]string{" SATURDAY ": "Fermé"})
	require.NoError(t, err)
	assert.Equal(t, Weekly{"saturday": "Fermé"}, got)
}

func TestOpeningHoursJSON(t *testing.T) {
	type wrapper struct {
		Hours OpeningHours `json:"hours"`
	}

	for _, raw := range []string{
		`{"hours":{"monday":"08:00-20:00"}}`,
		`{"hours":"Monday: 8:30 AM – 7:00 PM"}`,
		`{"hours":null}`,
	} {
		var w wrapper
		require.NoError(t, json.Unmarshal([]byte(raw), &w))

		out, err := json.Marshal(w)
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(out))
	}
}
