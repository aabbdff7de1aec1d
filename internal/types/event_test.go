package types

import (
	"testing"
	"time"
)

func TestParseEventType(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   EventType
		wantOK bool
	}{
		{name: "canonical name", input: "Alarm", want: EventAlarm, wantOK: true},
		{name: "lower case", input: "warning", want: EventWarning, wantOK: true},
		{name: "surrounding whitespace", input: "  CatchUp ", want: EventCatchUp, wantOK: true},
		{name: "ordinal text", input: "4", want: EventError, wantOK: true},
		{name: "ordinal out of range", input: "12", want: EventSuccess, wantOK: false},
		{name: "zero ordinal", input: "0", want: EventSuccess, wantOK: false},
		{name: "unknown name", input: "Exploded", want: EventSuccess, wantOK: false},
		{name: "empty", input: "", want: EventSuccess, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseEventType(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseEventType(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestEventTypeOrdinals(t *testing.T) {
	if EventSuccess != 1 {
		t.Errorf("EventSuccess = %d, want 1", EventSuccess)
	}
	if EventAlarm != 3 {
		t.Errorf("EventAlarm = %d, want 3", EventAlarm)
	}
	if EventCatchUp != 11 {
		t.Errorf("EventCatchUp = %d, want 11", EventCatchUp)
	}
	if got := EventType(99).String(); got != "EventType(99)" {
		t.Errorf("String() = %q, want EventType(99)", got)
	}
}

func TestRecordID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewRecordID()

	if next := NewRecordID(); next == id {
		t.Errorf("NewRecordID() repeated %v", id)
	}

	ts := RecordIDTime(id)
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("RecordIDTime() = %v, want close to now", ts)
	}

	if !RecordIDTime("bogus").IsZero() {
		t.Error("RecordIDTime() expected zero time for malformed id")
	}
}
