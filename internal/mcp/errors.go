package mcp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the dispatcher can pick an envelope and
// decide whether the failure counts toward alerting.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindProtocol
	KindUnknownTool
	KindValidation
	KindUpstream
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "protocol"
	case KindUnknownTool:
		return "unknown_tool"
	case KindValidation:
		return "validation"
	case KindUpstream:
		return "upstream"
	default:
		return "internal"
	}
}

// Error is a classified tool failure.
type Error struct {
	Kind    ErrorKind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Errorf creates an Error of the given kind.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind with a leading message.
func Wrap(kind ErrorKind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal when there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
