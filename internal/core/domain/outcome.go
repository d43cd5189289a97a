package domain

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// OutcomeKind tags the variant held by an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeClientError
	OutcomeAuthError
	OutcomeCreditError
	OutcomeServerError
	OutcomeNetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	case OutcomeAuthError:
		return "auth_error"
	case OutcomeCreditError:
		return "credit_error"
	case OutcomeServerError:
		return "server_error"
	case OutcomeNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// ParseOutcomeKind is the inverse of OutcomeKind.String.
func ParseOutcomeKind(s string) (OutcomeKind, error) {
	for k := OutcomeSuccess; k <= OutcomeNetworkError; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome kind %q", s)
}

// Error codes reported by ClientError outcomes and client-side validation.
const (
	CodeInvalidDocumentID   = "invalid_document_id"
	CodeInvalidImageFormat  = "invalid_image_format"
	CodeImageTooLarge       = "image_too_large"
	CodeMissingField        = "missing_field"
	CodeFaceDetectionFailed = "face_detection_failed"
	CodeMalformedRequest    = "malformed_request"
	CodeFileUnreadable      = "file_unreadable"
)

// Synthetic codes for outcomes the service did not describe itself.
const (
	CodeUnauthorized        = "unauthorized"
	CodeInsufficientCredits = "insufficient_credits"
	CodeInternal            = "internal_error"
	CodeMalformedSuccess    = "malformed_success"
	CodeInvalidResponseBody = "invalid_response_body"
	CodeRateLimited         = "rate_limited"
	CodeUnexpectedStatus    = "unexpected_status"
)

// OutputLocator points at the processed photo: CDN URLs for the JSON API,
// an inline base64 image for the multipart API.
type OutputLocator struct {
	InputURL    string
	OutputURL   string
	ImageBase64 string
}

// DecodeImage returns the inline processed image.
func (l OutputLocator) DecodeImage() ([]byte, error) {
	if l.ImageBase64 == "" {
		return nil, errors.New("no inline image in response")
	}
	data, err := base64.StdEncoding.DecodeString(l.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode inline image: %w", err)
	}
	return data, nil
}

// SuccessResult is the payload of a Success outcome.
type SuccessResult struct {
	// Score is nil when the service did not score the photo.
	Score    *int
	Passed   bool
	Warnings []string
	Errors   []string
	Summary  string
	Message  string
	Output   OutputLocator
}

// APIError is the payload of ClientError, AuthError, CreditError and ServerError.
type APIError struct {
	Code    string
	Message string
	Details map[string]any
}

// Outcome is the normalized result of one request/response exchange.
// Exactly one of Success, Error or Cause is set, according to Kind.
type Outcome struct {
	Kind       OutcomeKind
	RequestID  RequestID
	Trial      int
	HTTPStatus int
	// RetryAfter is the server's requested wait, if it sent one.
	RetryAfter time.Duration

	Success        *SuccessResult
	Error          *APIError
	CurrentBalance float64
	Cause          error
}

// Succeeded builds a Success outcome.
func Succeeded(res SuccessResult) Outcome {
	return Outcome{Kind: OutcomeSuccess, Success: &res}
}

// Failed builds a ClientError, AuthError or ServerError outcome.
func Failed(kind OutcomeKind, code, message string, details map[string]any) Outcome {
	return Outcome{Kind: kind, Error: &APIError{Code: code, Message: message, Details: details}}
}

// OutOfCredit builds a CreditError outcome.
func OutOfCredit(balance float64, code, message string, details map[string]any) Outcome {
	o := Failed(OutcomeCreditError, code, message, details)
	o.CurrentBalance = balance
	return o
}

// NetworkFailure builds a NetworkError outcome.
func NetworkFailure(cause error) Outcome {
	return Outcome{Kind: OutcomeNetworkError, Cause: cause}
}

// Retryable reports whether another attempt may produce a different outcome.
func (o Outcome) Retryable() bool {
	return o.Kind == OutcomeNetworkError || o.Kind == OutcomeServerError
}

// Code returns the error code, or "" for Success and NetworkError.
func (o Outcome) Code() string {
	if o.Error == nil {
		return ""
	}
	return o.Error.Code
}

// Message returns a human readable description of the outcome.
func (o Outcome) Message() string {
	switch {
	case o.Success != nil:
		return o.Success.Message
	case o.Error != nil:
		return o.Error.Message
	case o.Cause != nil:
		return o.Cause.Error()
	}
	return ""
}

// Clean reports a Success with no validation errors.
func (o Outcome) Clean() bool {
	return o.Kind == OutcomeSuccess && o.Success != nil && o.Success.Passed && len(o.Success.Errors) == 0
}

// Err returns nil for Success and an *OutcomeError otherwise.
func (o Outcome) Err() error {
	if o.Kind == OutcomeSuccess {
		return nil
	}
	return &OutcomeError{Outcome: o}
}

// OutcomeError exposes a non-success outcome as an error.
type OutcomeError struct {
	Outcome Outcome
}

func (e *OutcomeError) Error() string {
	o := e.Outcome
	if o.Kind == OutcomeNetworkError {
		return fmt.Sprintf("%s: %v", o.Kind, o.Cause)
	}
	if o.Kind == OutcomeCreditError {
		return fmt.Sprintf("%s (%s): %s [balance=%g]", o.Kind, o.Code(), o.Message(), o.CurrentBalance)
	}
	return fmt.Sprintf("%s (%s): %s", o.Kind, o.Code(), o.Message())
}

func (e *OutcomeError) Unwrap() error {
	return e.Outcome.Cause
}

// ValidationError is a client-side rejection raised before any network call.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Code, e.Message)
}

// Outcome converts the rejection into the ClientError it stands for.
func (e *ValidationError) Outcome() Outcome {
	return Failed(OutcomeClientError, e.Code, e.Message, map[string]any{"client_side": true})
}

// ErrRetriesExhausted marks a retryable outcome that survived every attempt.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Result is what a caller observes after the retry loop finishes.
type Result struct {
	Outcome  Outcome
	Attempts int
	// Exhausted is set when the last outcome was retryable but the attempt
	// budget ran out.
	Exhausted bool
}

// Err returns nil for Success, an ErrRetriesExhausted wrap when exhausted,
// and the outcome's error otherwise.
func (r Result) Err() error {
	err := r.Outcome.Err()
	if err == nil {
		return nil
	}
	if r.Exhausted {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.Attempts, err)
	}
	return err
}
