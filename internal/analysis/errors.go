package analysis

import "errors"

// Failure classes raised by Analyze. Callers match them with errors.Is;
// the wrapped message carries the row or column detail.
var (
	// ErrParse means the input is not well-formed CSV text.
	ErrParse = errors.New("parse error")

	// ErrValidation means the CSV is well-formed but violates the schema
	// or contains a value that cannot be coerced.
	ErrValidation = errors.New("validation error")

	// ErrComputation means an unexpected fault occurred while aggregating.
	ErrComputation = errors.New("computation fault")
)
