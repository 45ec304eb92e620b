package store

import (
	"errors"
	"fmt"
)

// Kind classifies a store failure.
type Kind string

const (
	FingerprintCollision Kind = "fingerprint_collision"
	IOFailure            Kind = "io_failure"
	NotFound             Kind = "not_found"
)

// Error is a failed store operation.
type Error struct {
	Kind        Kind
	Op          string
	Fingerprint string
	Err         error
}

func (e *Error) Error() string {
	switch e.Kind {
	case NotFound:
		return fmt.Sprintf("artifact not found: %s", e.Fingerprint)
	case FingerprintCollision:
		return fmt.Sprintf("fingerprint collision: %s already stored with different bytes", e.Fingerprint)
	}
	if e.Fingerprint != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Fingerprint, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a store error of the given kind.
func IsKind(err error, kind Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == kind
}

func ioError(op, fp string, err error) error {
	return &Error{Kind: IOFailure, Op: op, Fingerprint: fp, Err: err}
}
