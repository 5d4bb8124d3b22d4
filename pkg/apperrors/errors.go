package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("datastore unavailable")
)

// FormatError indicates a file could not be read in any attempted
// dialect/encoding combination, or that its date column could not be parsed
// under any known pattern.
type FormatError struct {
	Msg string
	// UnparseableRows is the number of rows whose date failed every
	// attempted pattern. Zero when the failure is not temporal.
	UnparseableRows int
}

func (e *FormatError) Error() string {
	if e.UnparseableRows > 0 {
		return fmt.Sprintf("%s (%d unparseable rows)", e.Msg, e.UnparseableRows)
	}
	return e.Msg
}

// SchemaError indicates required canonical columns are absent after
// normalization.
type SchemaError struct {
	MissingColumns []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.MissingColumns, ", ")
}

// ValidationError indicates no rows survived validation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// IsBadInput reports whether err stems from the uploaded file rather than
// from the service itself. Handlers map these to client errors.
func IsBadInput(err error) bool {
	var fe *FormatError
	var se *SchemaError
	var ve *ValidationError
	return errors.As(err, &fe) || errors.As(err, &se) || errors.As(err, &ve)
}
