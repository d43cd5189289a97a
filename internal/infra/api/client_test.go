package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/infra/api/retry"
	"github.com/vietddude/snap2pass/internal/infra/api/transport"
)

var jpeg = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F', 0}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

// countingTransport returns a fixed response and counts calls.
type countingTransport struct {
	calls atomic.Int32
	resp  *transport.Response
	err   error
}

func (c *countingTransport) Send(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	c.calls.Add(1)
	return c.resp, c.err
}

func newTestClient(t *testing.T, url string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithSleep(noSleep)}, opts...)
	c, err := NewClient(Config{BaseURL: url, APIKey: "sk_test", Timeout: 5 * time.Second}, retry.DefaultPolicy, opts...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Config{}, retry.DefaultPolicy); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	if _, err := NewClient(Config{APIKey: "k", BaseURL: "ftp://x"}, retry.DefaultPolicy); err == nil {
		t.Errorf("expected scheme error")
	}
	if _, err := NewClient(Config{APIKey: "k", Protocol: "soap"}, retry.DefaultPolicy); err == nil {
		t.Errorf("expected protocol error")
	}
}

func TestClient_ValidationNeverTouchesTransport(t *testing.T) {
	ct := &countingTransport{err: errors.New("must not be called")}
	c := newTestClient(t, "http://unused", WithTransport(ct))

	subs := []domain.PhotoSubmission{
		{Image: jpeg},
		{Image: jpeg, Spec: domain.NamedSpec("USA", "passport")},
		{Image: []byte("GIF89a...."), Spec: domain.NamedSpec("US", "passport")},
		{Source: "/does/not/exist.jpg", Spec: domain.NamedSpec("US", "passport")},
	}
	for _, sub := range subs {
		res := c.Submit(context.Background(), sub)
		if res.Outcome.Kind != domain.OutcomeClientError {
			t.Errorf("expected client error, got %s", res.Outcome.Kind)
		}
		if res.Attempts != 0 {
			t.Errorf("expected zero attempts, got %d", res.Attempts)
		}
	}
	if n := ct.calls.Load(); n != 0 {
		t.Errorf("transport called %d times", n)
	}
}

func TestClient_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create-photo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("unexpected authorization %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		var req struct {
			Photo      string `json:"photo"`
			DocumentID string `json:"document_id"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		if req.DocumentID != "us_passport" || req.Photo == "" {
			t.Errorf("unexpected request %+v", req)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"request_id":"req_1","validation":{"score":95,"passed":true}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	res := c.Submit(context.Background(), domain.PhotoSubmission{
		Image: jpeg,
		Spec:  domain.NamedSpec("US", "passport"),
	})
	if err := res.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Outcome.RequestID != "req_1" || *res.Outcome.Success.Score != 95 {
		t.Errorf("unexpected outcome %+v", res.Outcome)
	}
	if res.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", res.Attempts)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"request_id":"abc","trial_number":1,"validation_errors":[]}`))
	}))
	defer server.Close()

	c, err := NewClient(Config{BaseURL: server.URL, APIKey: "k", Protocol: "legacy"}, retry.DefaultPolicy, WithSleep(noSleep))
	if err != nil {
		t.Fatal(err)
	}
	res := c.Submit(context.Background(), domain.PhotoSubmission{
		Image: jpeg,
		Spec:  domain.NamedSpec("US", "passport"),
	})
	if res.Outcome.Kind != domain.OutcomeSuccess || res.Attempts != 3 {
		t.Fatalf("expected success on third attempt, got %s after %d", res.Outcome.Kind, res.Attempts)
	}
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_document_id","message":"unknown"}}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	res := c.Submit(context.Background(), domain.PhotoSubmission{
		Image: jpeg,
		Spec:  domain.NamedSpec("XX", "passport"),
	})
	if res.Outcome.Kind != domain.OutcomeClientError || res.Outcome.Code() != domain.CodeInvalidDocumentID {
		t.Errorf("unexpected outcome %s/%s", res.Outcome.Kind, res.Outcome.Code())
	}
	if hits.Load() != 1 {
		t.Errorf("expected a single request, got %d", hits.Load())
	}
}

func TestClient_NetworkFailureExhausts(t *testing.T) {
	ct := &countingTransport{err: &transport.NetworkError{Op: "send", Err: errors.New("connection refused")}}
	c := newTestClient(t, "http://unused", WithTransport(ct))

	res := c.Submit(context.Background(), domain.PhotoSubmission{
		Image: jpeg,
		Spec:  domain.NamedSpec("US", "passport"),
	})
	if res.Outcome.Kind != domain.OutcomeNetworkError || !res.Exhausted {
		t.Fatalf("expected exhausted network error, got %+v", res)
	}
	if ct.calls.Load() != int32(retry.DefaultPolicy.MaxAttempts) {
		t.Errorf("expected %d calls, got %d", retry.DefaultPolicy.MaxAttempts, ct.calls.Load())
	}
	var netErr *transport.NetworkError
	if !errors.As(res.Err(), &netErr) {
		t.Errorf("expected the transport error in the chain, got %v", res.Err())
	}
}
