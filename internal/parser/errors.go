package parser

import (
	"errors"
	"fmt"

	"github.com/rcliao/devplan/internal/model"
)

// ErrorKind classifies a parse failure.
type ErrorKind string

const (
	UnknownNodeType       ErrorKind = "unknown_node_type"
	AttributeTypeMismatch ErrorKind = "attribute_type_mismatch"
	DanglingReference     ErrorKind = "dangling_reference"
	UnexpectedToken       ErrorKind = "unexpected_token"
	UnknownAttribute      ErrorKind = "unknown_attribute"
	DuplicateAttribute    ErrorKind = "duplicate_attribute"
	DuplicateIdentifier   ErrorKind = "duplicate_identifier"
	InvalidIndent         ErrorKind = "invalid_indent"
	InvalidNesting        ErrorKind = "invalid_nesting"
	DependencyCycle       ErrorKind = "dependency_cycle"
)

// Error is a syntax or semantic failure. Key is set for attribute errors and
// ReferencedID for dangling references.
type Error struct {
	Kind         ErrorKind `json:"kind"`
	Pos          model.Pos `json:"pos"`
	Key          string    `json:"key,omitempty"`
	ReferencedID string    `json:"referenced_id,omitempty"`
	Msg          string    `json:"message"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("parse error at %s: %s: %s", e.Pos, e.Kind, e.Msg)
}

// IsKind reports whether err is a parse error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

func errorf(kind ErrorKind, pos model.Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
