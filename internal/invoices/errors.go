package invoices

import (
	"errors"
	"fmt"
)

// ErrNumberConflict means the requested invoice number is already taken
var ErrNumberConflict = errors.New("invoice number already exists")

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
