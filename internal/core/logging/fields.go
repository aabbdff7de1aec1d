package logging

import (
	"log/slog"
	"time"
)

// Common field names for consistent logging across components.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldCommunity = "community"
	FieldOID       = "oid"
	FieldFlow      = "flow"
	FieldEventType = "event_type"
	FieldRecordID  = "record_id"
	FieldSource    = "source"
	FieldTag       = "tag"
	FieldSink      = "sink"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Component returns a slog attribute naming the emitting component.
func Component(name string) slog.Attr {
	return slog.String(FieldComponent, name)
}

// Community returns a slog attribute for an SNMP community or v3 user.
func Community(c string) slog.Attr {
	return slog.String(FieldCommunity, c)
}

// OID returns a slog attribute for a variable binding OID.
func OID(oid string) slog.Attr {
	return slog.String(FieldOID, oid)
}

// Flow returns a slog attribute for a rule's flow name.
func Flow(flow string) slog.Attr {
	return slog.String(FieldFlow, flow)
}

// EventType returns a slog attribute for an event type name.
func EventType(name string) slog.Attr {
	return slog.String(FieldEventType, name)
}

// RecordID returns a slog attribute for a dispatch record ID.
func RecordID(id string) slog.Attr {
	return slog.String(FieldRecordID, id)
}

// Source returns a slog attribute for a sender address.
func Source(addr string) slog.Attr {
	return slog.String(FieldSource, addr)
}

// Tag returns a slog attribute for a measurement point tag.
func Tag(tag string) slog.Attr {
	return slog.String(FieldTag, tag)
}

// Sink returns a slog attribute naming a sink kind.
func Sink(kind string) slog.Attr {
	return slog.String(FieldSink, kind)
}

// Duration returns a slog attribute for a duration in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Status returns a slog attribute for an HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}
