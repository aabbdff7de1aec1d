// Package sink implements the actuators that receive action records from the
// delivery queue: an HTTP GET action and a database command.
package sink

import (
	"context"
	"fmt"

	"github.com/solatis/trapmapper/internal/types"
)

// Sink performs the side effect for one action record. params are the
// record's positional parameters after value parsing. The returned result is
// sink specific (HTTP status code, database scalar).
type Sink interface {
	Execute(ctx context.Context, params []any) (any, error)
}

// Func adapts a function to the Sink interface.
type Func func(ctx context.Context, params []any) (any, error)

// Execute calls f.
func (f Func) Execute(ctx context.Context, params []any) (any, error) {
	return f(ctx, params)
}

// Error is a failed sink call. It matches types.ErrSink with errors.Is.
type Error struct {
	Kind   string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s sink: status %d: %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s sink: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{types.ErrSink, e.Err}
}
