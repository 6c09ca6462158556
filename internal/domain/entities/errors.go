package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedDocument marks a course document without a usable title line.
	ErrMalformedDocument = errors.New("malformed course document")

	// ErrCourseNotFound is returned when fuzzy course resolution yields nothing.
	ErrCourseNotFound = errors.New("course not found")
)

// TransportError wraps a failed call to the language model, the embedding
// service or the vector store. It is never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err carries a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
