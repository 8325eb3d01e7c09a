package hashing

import (
	"errors"
	"fmt"
)

// ErrTooDeep is returned when a value nests deeper than Options.MaxDepth.
// Cyclic values always end here since cycles are not detected.
var ErrTooDeep = errors.New("hashing: value nested too deeply (cyclic?)")

// UnsupportedTypeError reports a value the hasher cannot decompose
// structurally, such as a reflect.Type or a channel.
type UnsupportedTypeError struct {
	Type   string // Go type of the offending value
	Path   string // location inside the hashed value, e.g. "[1].Weights"
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	msg := "hashing: unsupported type " + e.Type
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// within prefixes the error location with a parent path segment.
// Errors of other types are returned unchanged.
func within(err error, seg string) error {
	var ute *UnsupportedTypeError
	if errors.As(err, &ute) {
		ute.Path = seg + ute.Path
	}
	return err
}

func tooDeep(limit int) error {
	return fmt.Errorf("%w: limit %d", ErrTooDeep, limit)
}
