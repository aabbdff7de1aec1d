package types

import (
	"strconv"
	"strings"
)

// EventType is the closed set of states a rule can raise.
// Ordinals start at 1 and are part of the downstream command contract.
type EventType int

const (
	EventSuccess EventType = iota + 1
	EventWarning
	EventAlarm
	EventError
	EventInformation
	EventEscalation
	EventFailover
	EventQuit
	EventSynchronize
	EventReschedule
	EventCatchUp
)

var eventTypeNames = [...]string{
	EventSuccess:     "Success",
	EventWarning:     "Warning",
	EventAlarm:       "Alarm",
	EventError:       "Error",
	EventInformation: "Information",
	EventEscalation:  "Escalation",
	EventFailover:    "Failover",
	EventQuit:        "Quit",
	EventSynchronize: "Synchronize",
	EventReschedule:  "Reschedule",
	EventCatchUp:     "CatchUp",
}

// String returns the canonical state name.
func (e EventType) String() string {
	if !e.Valid() {
		return "EventType(" + strconv.Itoa(int(e)) + ")"
	}
	return eventTypeNames[e]
}

// Valid reports whether e is one of the defined states.
func (e EventType) Valid() bool {
	return e >= EventSuccess && e <= EventCatchUp
}

// ParseEventType resolves a state name (case-insensitive) or its ordinal
// text. Unknown values yield EventSuccess with ok=false.
func ParseEventType(s string) (EventType, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if e := EventType(n); e.Valid() {
			return e, true
		}
		return EventSuccess, false
	}
	for i := EventSuccess; i <= EventCatchUp; i++ {
		if strings.EqualFold(eventTypeNames[i], s) {
			return i, true
		}
	}
	return EventSuccess, false
}
