// Package api provides the photo service client.
//
// A Submit call runs the full request pipeline:
//   - encoder/   - client-side validation and body encoding (JSON or multipart)
//   - transport/ - one HTTP exchange, optionally behind a shared in-flight gate
//   - classify/  - status + body to a domain.Outcome
//   - retry/     - exponential backoff for NetworkError and ServerError outcomes
//
// # Quick Start
//
//	client, err := api.NewClient(api.Config{
//	    BaseURL: "https://api.snap2pass.com",
//	    APIKey:  key,
//	}, retry.DefaultPolicy)
//
//	res := client.Submit(ctx, domain.PhotoSubmission{
//	    Source: "me.jpg",
//	    Spec:   domain.NamedSpec("US", "passport"),
//	})
//	if err := res.Err(); err != nil { ... }
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/infra/api/classify"
	"github.com/vietddude/snap2pass/internal/infra/api/encoder"
	"github.com/vietddude/snap2pass/internal/infra/api/retry"
	"github.com/vietddude/snap2pass/internal/infra/api/transport"
	"github.com/vietddude/snap2pass/internal/metrics"
)

// Config holds the service connection settings.
type Config struct {
	BaseURL  string `yaml:"base_url"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Protocol string `yaml:"protocol"` // current (json) or legacy (multipart)
	// Timeout bounds a single exchange.
	Timeout       time.Duration `yaml:"timeout"`
	MaxImageBytes int64         `yaml:"max_image_bytes"` // 0 = protocol default
	// MaxInFlight gates concurrent exchanges across every pipeline using this client.
	MaxInFlight int    `yaml:"max_in_flight"` // 0 = unlimited
	UserAgent   string `yaml:"user_agent"`
}

// Defaults used when the corresponding Config field is empty.
const (
	DefaultBaseURL  = "https://api.snap2pass.com"
	DefaultEndpoint = "/create-photo"
	DefaultTimeout  = 60 * time.Second
)

var ErrMissingAPIKey = errors.New("api key is required")

// Client submits photos to the service.
type Client struct {
	url        string
	apiKey     string
	userAgent  string
	protocol   domain.Protocol
	encoder    *encoder.Encoder
	transport  transport.Transport
	classifier *classify.Classifier
	retrier    *retry.Retrier
	log        *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport. The in-flight gate still wraps it.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSleep replaces the backoff wait.
func WithSleep(fn retry.SleepFunc) Option {
	return func(c *Client) { c.retrier.Sleep = fn }
}

// NewClient creates a client. The API key is part of cfg; nothing is read from
// process-wide state.
func NewClient(cfg Config, policy retry.Policy, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	protocol, err := domain.ParseProtocol(cfg.Protocol)
	if err != nil {
		return nil, err
	}
	endpoint, err := endpointURL(cfg.BaseURL, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		url:        endpoint,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		protocol:   protocol,
		encoder:    encoder.New(encoder.Config{Protocol: protocol, MaxImageBytes: cfg.MaxImageBytes}),
		transport:  transport.NewHTTPTransport(timeout),
		classifier: classify.New(protocol),
		retrier:    retry.New(policy),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retrier.Log = c.log
	c.retrier.OnRetry = func(o domain.Outcome, attempt int, delay time.Duration) {
		metrics.RetriesTotal.WithLabelValues(o.Kind.String()).Inc()
	}
	if cfg.MaxInFlight > 0 {
		c.transport = transport.NewGatedTransport(c.transport, cfg.MaxInFlight)
	}
	return c, nil
}

// Protocol returns the active wire variant.
func (c *Client) Protocol() domain.Protocol {
	return c.protocol
}

// Submit validates, sends and classifies sub, retrying transient outcomes.
// Validation failures come back as a ClientError with zero attempts.
func (c *Client) Submit(ctx context.Context, sub domain.PhotoSubmission) domain.Result {
	payload, err := c.encoder.Encode(sub)
	if err != nil {
		var vErr *domain.ValidationError
		if !errors.As(err, &vErr) {
			vErr = &domain.ValidationError{Code: domain.CodeMalformedRequest, Message: err.Error()}
		}
		metrics.ValidationRejectsTotal.WithLabelValues(vErr.Code).Inc()
		c.log.Warn("Submission rejected before sending", "code", vErr.Code, "error", vErr.Message)
		return domain.Result{Outcome: vErr.Outcome()}
	}

	req := &transport.Request{
		Method: http.MethodPost,
		URL:    c.url,
		Header: c.headers(payload.ContentType),
		Body:   payload.Body,
	}

	res := c.retrier.Do(ctx, func(ctx context.Context, attempt int) domain.Outcome {
		return c.exchange(ctx, req)
	})

	c.log.Debug("Submission finished",
		"request_id", res.Outcome.RequestID,
		"kind", res.Outcome.Kind.String(),
		"attempts", res.Attempts,
		"exhausted", res.Exhausted,
	)
	return res
}

func (c *Client) exchange(ctx context.Context, req *transport.Request) domain.Outcome {
	start := time.Now()
	resp, err := c.transport.Send(ctx, req)
	metrics.RequestLatency.WithLabelValues(string(c.protocol)).Observe(time.Since(start).Seconds())

	var o domain.Outcome
	if err != nil {
		o = domain.NetworkFailure(err)
	} else {
		o = c.classifier.Classify(resp.StatusCode, resp.Header, resp.Body)
	}
	metrics.RequestsTotal.WithLabelValues(string(c.protocol), o.Kind.String(), o.Code()).Inc()
	return o
}

func (c *Client) headers(contentType string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.apiKey)
	h.Set("Content-Type", contentType)
	h.Set("Accept", "application/json")
	if c.userAgent != "" {
		h.Set("User-Agent", c.userAgent)
	}
	return h
}

func endpointURL(base, endpoint string) (string, error) {
	if base == "" {
		base = DefaultBaseURL
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid endpoint %q: scheme must be http or https", u.String())
	}
	return u.String(), nil
}
