// Package types provides domain models shared across trapmapper components.
//
// Transport agnostic: the SNMP listener converts gosnmp packets into
// Notification values at the boundary, and the point trigger receives
// Measurement values from whatever feed is wired in. Nothing in this package
// imports a transport or storage library except uuid for record IDs.
package types

import "time"

// RecordID represents a UUIDv7 dispatch record identifier.
type RecordID string

// Variable is one (OID, raw value) binding carried by a notification.
// Raw holds the textual form produced by the transport; typing happens
// later through the value parsing policy.
type Variable struct {
	OID string
	Raw string
}

// Notification is a decoded trap as delivered by the transport layer.
type Notification struct {
	Version    string
	Community  string
	Enterprise string
	Source     string
	Variables  []Variable
}

// DispatchRecord is the transient result of one matched rule. It is created
// by the dispatcher and consumed by exactly one queue flush.
type DispatchRecord struct {
	ID          RecordID
	EventType   EventType
	Flow        string
	Description string
	Value       any
	Timestamp   time.Time
	Parameters  []string
}

// Measurement is a single time-series point value fed to the point trigger.
type Measurement struct {
	Tag       string    `json:"tag"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
