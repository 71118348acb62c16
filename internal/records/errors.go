package records

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no case law row exists for the given id
	ErrNotFound = errors.New("case law record not found")

	// ErrDuplicate means a record with the same business key
	// (parties, citation, classification, year) already exists
	ErrDuplicate = errors.New("case law record already exists")
)

// ValidationError reports rejected caller input. The message is safe to
// return to the client verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
