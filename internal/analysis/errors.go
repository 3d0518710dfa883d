package analysis

import (
	"errors"
	"fmt"
)

// Kind classifies why a document did not produce a result.
type Kind string

const (
	KindInvalidType      Kind = "invalid_type"
	KindTooLarge         Kind = "too_large"
	KindEmptyResponse    Kind = "empty_response"
	KindUnexpectedFormat Kind = "unexpected_response_format"
	KindServerReported   Kind = "server_reported_error"
	KindEmptyResult      Kind = "empty_result"
	KindConnectivity     Kind = "connectivity_error"
	KindMalformedResult  Kind = "malformed_result"
	KindCanceled         Kind = "canceled"
	KindInternal         Kind = "internal_error"
)

var defaultMessages = map[Kind]string{
	KindInvalidType:      "Please select a PDF file.",
	KindTooLarge:         "The file is too large.",
	KindEmptyResponse:    "The server returned an empty response.",
	KindUnexpectedFormat: "The server returned an unexpected response.",
	KindServerReported:   "The server could not process the file.",
	KindEmptyResult:      "The server returned no result.",
	KindConnectivity:     "Could not reach the analysis server.",
	KindMalformedResult:  "The server returned a result that could not be read.",
	KindCanceled:         "The analysis was canceled.",
	KindInternal:         "Something went wrong while analyzing the file.",
}

// Error is a classified failure. Message is safe to show to the user;
// Detail is diagnostic context meant for logs only.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

// NewError returns an Error of the given kind with its default user message.
func NewError(kind Kind) *Error {
	return &Error{Kind: kind, Message: defaultMessages[kind]}
}

// Errorf returns an Error with a formatted user message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithDetail sets the diagnostic detail and returns the receiver.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// Wrap sets the underlying cause and returns the receiver.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

func (e *Error) Error() string {
	msg := string(e.Kind) + ": " + e.UserMessage()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage returns the single message surfaced to the user.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if m, ok := defaultMessages[e.Kind]; ok {
		return m
	}
	return string(e.Kind)
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
