package rules

import (
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want any
	}{
		{name: "quoted string", raw: "'abc'", want: "abc"},
		{name: "quoted number stays text", raw: "'42'", want: "42"},
		{name: "empty quotes", raw: "''", want: ""},
		{name: "integer", raw: "42", want: 42},
		{name: "negative integer", raw: "-7", want: -7},
		{name: "integer with whitespace", raw: " 15 ", want: 15},
		{name: "float", raw: "3.14", want: 3.14},
		{name: "bool true", raw: "true", want: true},
		{name: "bool mixed case", raw: "False", want: false},
		{name: "raw string", raw: "not-a-number", want: "not-a-number"},
		{name: "single quote only", raw: "'", want: "'"},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseValue(tt.raw)
			if got != tt.want {
				t.Errorf("ParseValue(%q) = %#v (%T), want %#v (%T)", tt.raw, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestParseValue_Timestamps(t *testing.T) {
	got, ok := ParseValue("2020-01-01 00:00:00.000").(time.Time)
	if !ok {
		t.Fatalf("ParseValue(fixed layout) did not return time.Time")
	}
	want := time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("ParseValue(fixed layout) = %v, want %v", got, want)
	}

	general, ok := ParseValue("2021-06-15T10:30:00Z").(time.Time)
	if !ok {
		t.Fatalf("ParseValue(RFC3339) did not return time.Time")
	}
	if general.Year() != 2021 || general.Month() != time.June || general.Day() != 15 {
		t.Errorf("ParseValue(RFC3339) = %v, want 2021-06-15", general)
	}
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		value any
		want  string
	}{
		{value: 15, want: "15"},
		{value: 3.14, want: "3.14"},
		{value: 2.0, want: "2"},
		{value: true, want: "true"},
		{value: "abc", want: "abc"},
		{value: ts, want: "2020-01-01 00:00:00.000"},
		{value: nil, want: ""},
		{value: int64(9), want: "9"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.value); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestParseBoolean(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{in: "true", want: true},
		{in: "False", want: false},
		{in: "yes", want: true},
		{in: "off", want: false},
		{in: "1", want: true},
		{in: "0", want: false},
		{in: "2.5", want: true},
		{in: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseBoolean(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBoolean(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseBoolean(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// Property-based test: integers always parse back to the same int.
func TestParseValue_PropertyIntegers(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("integer text parses to int", prop.ForAll(
		func(n int) bool {
			got, ok := ParseValue(strconv.Itoa(n)).(int)
			return ok && got == n
		},
		gen.Int(),
	))

	properties.Property("quoted text is always a string with quotes stripped", prop.ForAll(
		func(s string) bool {
			got, ok := ParseValue("'" + s + "'").(string)
			return ok && got == s
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
