package kittygfx

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every *ValidationError returned from Builder.Build
	ErrValidation = errors.New("invalid command")
	// ErrSerialization is matched by every *SerializationError
	ErrSerialization = errors.New("cannot serialize command")
	// ErrQueryTimeout means the terminal did not answer before the query timeout
	ErrQueryTimeout = errors.New("terminal query timed out")
	// ErrParse is matched by every *ParseError
	ErrParse = errors.New("malformed terminal reply")
	// ErrNotTerminal means the file given as a terminal is not one
	ErrNotTerminal = errors.New("not a terminal")
	// ErrInvalidDimensions means a raw pixel payload does not match width*height*bpp
	ErrInvalidDimensions = errors.New("invalid image dimensions")
)

// ValidationError reports a field combination that is inconsistent with the action
type ValidationError struct {
	Action Action
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s command: %s %s", e.Action, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// SerializationError signals a command that slipped past validation. It is a
// programming error, not a runtime condition.
type SerializationError struct {
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot serialize command: %s: %v", e.Reason, e.Err)
	}
	return "cannot serialize command: " + e.Reason
}

func (e *SerializationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSerialization, e.Err}
	}
	return []error{ErrSerialization}
}

// ParseError reports a reply that arrived but violates the expected grammar
type ParseError struct {
	Reply  []byte
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed terminal reply %q: %s", e.Reply, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }
