// Package transport performs single HTTP exchanges with the photo service.
//
// It is the only layer that touches the network. Status codes are returned
// as-is; interpreting them belongs to the classify package.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Request is a fully encoded outbound exchange. Body is kept as bytes so the
// same request can be re-sent on retry.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is the raw result of an exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport sends one request and returns the raw response, or a
// *NetworkError if the exchange could not complete.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// NetworkError reports an exchange that did not produce a response
// (DNS, TCP, TLS, timeout, cancellation).
type NetworkError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: timeout: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func networkError(op string, err error) *NetworkError {
	timeout := errors.Is(err, context.DeadlineExceeded)
	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		timeout = true
	}
	return &NetworkError{Op: op, Timeout: timeout, Err: err}
}
