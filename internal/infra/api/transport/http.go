package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultMaxResponseBytes caps how much of a response body is read. Legacy
// success bodies inline the processed image as base64.
const DefaultMaxResponseBytes = 32 << 20

// HTTPTransport implements Transport over net/http.
type HTTPTransport struct {
	httpClient *http.Client
	maxBody    int64
}

// NewHTTPTransport creates a transport whose exchanges time out after timeout.
// A zero timeout disables the per-exchange limit; the caller's context still applies.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		maxBody: DefaultMaxResponseBytes,
	}
}

// WithHTTPClient overrides the internal HTTP client.
func (t *HTTPTransport) WithHTTPClient(c *http.Client) *HTTPTransport {
	if c != nil {
		t.httpClient = c
	}
	return t
}

// WithMaxResponseBytes overrides the response body cap.
func (t *HTTPTransport) WithMaxResponseBytes(n int64) *HTTPTransport {
	if n > 0 {
		t.maxBody = n
	}
	return t
}

// Send performs the exchange.
func (t *HTTPTransport) Send(ctx context.Context, r *Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		return nil, &NetworkError{Op: "create request", Err: err}
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, networkError("send", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBody+1))
	if err != nil {
		return nil, networkError("read response", err)
	}
	if int64(len(body)) > t.maxBody {
		return nil, &NetworkError{
			Op:  "read response",
			Err: fmt.Errorf("response body exceeds %d bytes", t.maxBody),
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// Close releases idle connections.
func (t *HTTPTransport) Close() error {
	t.httpClient.CloseIdleConnections()
	return nil
}
