package types

import "errors"

// Sentinel errors for trapmapper operations.
var (
	// ErrConfig indicates the rule document is missing, malformed, or
	// carries a source without community or secrets. Fatal at startup.
	ErrConfig = errors.New("invalid rule configuration")

	// ErrEval indicates a condition failed to compile or evaluate.
	// The offending rule is skipped for the current notification only.
	ErrEval = errors.New("condition evaluation failed")

	// ErrSink indicates a downstream actuator rejected or failed a record.
	ErrSink = errors.New("sink execution failed")

	// ErrUnknownSource indicates no source is configured for a community.
	ErrUnknownSource = errors.New("unknown source community")

	// ErrStopped indicates the component is shutting down and no longer
	// accepts work.
	ErrStopped = errors.New("component stopped")

	// ErrEvalTimeout indicates a condition exceeded the evaluation deadline.
	ErrEvalTimeout = errors.New("condition evaluation timed out")
)
