package content

import (
	"errors"
	"fmt"
)

// RecoverableError marks an element-local conversion failure. The block
// converter catches it and substitutes an inert placeholder, a single
// malformed element never aborts the whole conversion.
type RecoverableError struct {
	Element string
	Err     error
}

func (e *RecoverableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("unable to convert %s", e.Element)
	}
	return fmt.Sprintf("unable to convert %s: %v", e.Element, e.Err)
}

func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// recoverable wraps an error as element-local.
func recoverable(element string, err error) error {
	return &RecoverableError{Element: element, Err: err}
}

// asRecoverable reports whether err is element-local and can be substituted
// with a placeholder.
func asRecoverable(err error) (*RecoverableError, bool) {
	var re *RecoverableError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
