package http

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRequestLine = errors.New("http: malformed request line")
	ErrInvalidContentLength = errors.New("http: invalid content-length")
	ErrLineTooLong          = errors.New("http: line too long")
	ErrTooManyHeaders       = errors.New("http: too many headers")
	ErrBodyTooLarge         = errors.New("http: body too large")
	ErrServerClosed         = errors.New("http: server closed")
	ErrHandlerPanic         = errors.New("http: handler panicked")
	ErrNoResponse           = errors.New("http: handler returned no response")
)

// ParseError reports input that is not a readable request. It ends the
// connection without a response.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %q", e.Err, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }

// TransportError wraps a failed read or write on the connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return "http: " + e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// HandlerError is a failure inside a handler. The connection loop turns it
// into a 500 response and keeps the connection open.
type HandlerError struct {
	Method string
	Path   string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("http: handler for %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
