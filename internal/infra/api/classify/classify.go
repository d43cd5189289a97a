// Package classify maps an HTTP status and body onto exactly one
// domain.Outcome. It is the single place that decides what a response means,
// and therefore whether it may be retried.
package classify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

// Classifier decodes responses of one wire variant.
type Classifier struct {
	protocol domain.Protocol
	now      func() time.Time
}

// New creates a classifier for protocol.
func New(protocol domain.Protocol) *Classifier {
	if protocol == "" {
		protocol = domain.ProtocolCurrent
	}
	return &Classifier{protocol: protocol, now: time.Now}
}

// Classify maps a response to an outcome. It never panics and never returns
// an outcome without a variant payload.
func (c *Classifier) Classify(status int, header http.Header, body []byte) domain.Outcome {
	var o domain.Outcome
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		o = c.success(body)
	case status >= 400 && status < 600:
		o = c.failure(status, body)
	default:
		o = domain.Failed(domain.OutcomeServerError, domain.CodeUnexpectedStatus,
			fmt.Sprintf("unexpected HTTP status %d", status), nil)
	}

	o.HTTPStatus = status
	if status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable {
		o.RetryAfter = c.retryAfter(header)
	}
	return o
}

func (c *Classifier) success(body []byte) domain.Outcome {
	if c.protocol == domain.ProtocolLegacy {
		return c.legacySuccess(body)
	}
	return c.currentSuccess(body)
}

func (c *Classifier) currentSuccess(body []byte) domain.Outcome {
	var resp currentSuccess
	if err := decode(body, &resp); err != nil {
		return unparseable(err)
	}
	if resp.Success != nil && !*resp.Success {
		return malformed("success flag is false on a 2xx response", resp.RequestID)
	}
	if resp.Valid == nil || resp.Valid.Passed == nil {
		return malformed("response has no validation verdict", resp.RequestID)
	}

	res := domain.SuccessResult{
		Passed:   *resp.Valid.Passed,
		Warnings: resp.Valid.Warnings,
		Errors:   resp.Valid.Errors,
		Summary:  resp.Valid.Summary,
		Message:  resp.Valid.Summary,
	}
	if resp.Valid.Score != nil {
		score, err := parseScore(*resp.Valid.Score)
		if err != nil {
			return malformed(err.Error(), resp.RequestID)
		}
		res.Score = &score
	}
	if resp.ImageURLs != nil {
		res.Output.InputURL = resp.ImageURLs.Input
		res.Output.OutputURL = resp.ImageURLs.Output
	}

	o := domain.Succeeded(res)
	o.RequestID = domain.RequestID(resp.RequestID)
	return o
}

func (c *Classifier) legacySuccess(body []byte) domain.Outcome {
	var resp legacySuccess
	if err := decode(body, &resp); err != nil {
		return unparseable(err)
	}
	if resp.RequestID == "" {
		return malformed("response has no request_id", "")
	}

	o := domain.Succeeded(domain.SuccessResult{
		Passed:  len(resp.Errors) == 0,
		Errors:  resp.Errors,
		Message: resp.Message,
		Output:  domain.OutputLocator{ImageBase64: resp.Image},
	})
	o.RequestID = domain.RequestID(resp.RequestID)
	o.Trial = resp.TrialNumber
	return o
}

func (c *Classifier) failure(status int, body []byte) domain.Outcome {
	var resp errorBody
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return unparseable(err)
		}
	}

	code, msg, details := resp.Code, resp.Message, resp.Details
	if resp.Error != nil {
		code, msg, details = resp.Error.Code, resp.Error.Message, resp.Error.Details
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	var o domain.Outcome
	switch {
	case status == http.StatusBadRequest:
		o = domain.Failed(domain.OutcomeClientError, clientCode(code, msg), msg, withServiceCode(details, code))
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		o = domain.Failed(domain.OutcomeAuthError, orDefault(code, domain.CodeUnauthorized), msg, details)
	case status == http.StatusPaymentRequired:
		o = domain.OutOfCredit(balance(details), orDefault(code, domain.CodeInsufficientCredits), msg, details)
	case status == http.StatusRequestEntityTooLarge:
		o = domain.Failed(domain.OutcomeClientError, domain.CodeImageTooLarge, msg, withServiceCode(details, code))
	case status == http.StatusTooManyRequests:
		o = domain.Failed(domain.OutcomeServerError, domain.CodeRateLimited, msg, details)
	case status >= 500:
		o = domain.Failed(domain.OutcomeServerError, orDefault(code, domain.CodeInternal), msg, details)
	default:
		o = domain.Failed(domain.OutcomeClientError, domain.CodeMalformedRequest, msg, withServiceCode(details, code))
	}
	o.RequestID = domain.RequestID(resp.RequestID)
	return o
}

func (c *Classifier) retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(c.now()); d > 0 {
			return d
		}
	}
	return 0
}

func decode(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(v)
}

func parseScore(n json.Number) (int, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("score %q is not a number", n)
	}
	if f != math.Trunc(f) || f < 0 || f > 100 {
		return 0, fmt.Errorf("score %v is not an integer in 0..100", n)
	}
	return int(f), nil
}

func balance(details map[string]any) float64 {
	switch v := details["current_balance"].(type) {
	case float64:
		return v
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func unparseable(err error) domain.Outcome {
	return domain.Failed(domain.OutcomeServerError, domain.CodeInvalidResponseBody,
		fmt.Sprintf("response body is not valid JSON: %v", err), nil)
}

func malformed(msg string, requestID string) domain.Outcome {
	o := domain.Failed(domain.OutcomeServerError, domain.CodeMalformedSuccess, msg, nil)
	o.RequestID = domain.RequestID(requestID)
	return o
}

func orDefault(code, def string) string {
	if code == "" {
		return def
	}
	return code
}

func withServiceCode(details map[string]any, code string) map[string]any {
	if code == "" {
		return details
	}
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out["service_code"] = code
	return out
}
