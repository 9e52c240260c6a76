package domain

import "fmt"

// DataLoadError is fatal: the source could not be read at all, or its header
// is missing a required column. No partial result is produced.
type DataLoadError struct {
	Source string // path or URI of the offending source
	Err    error
}

func (e *DataLoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// RowParseError is non-fatal: the row is skipped, the error is recorded as a
// diagnostic and processing continues with the remaining rows.
type RowParseError struct {
	Source string
	Line   int // 1-based line number in the source, including the header
	Err    error
}

func (e *RowParseError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Source, e.Line, e.Err)
}

func (e *RowParseError) Unwrap() error { return e.Err }

// InputError reports an invalid caller-supplied parameter (bad user id,
// unparsable date, negative threshold). No partial result is computed.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewInputError builds an InputError with a formatted reason.
func NewInputError(field, format string, args ...interface{}) *InputError {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
