package transport

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// GatedTransport limits how many exchanges are on the wire at once across
// every caller sharing it. The slot is held only for the exchange itself, so
// a pipeline sleeping in backoff does not occupy it.
type GatedTransport struct {
	next Transport
	sem  *semaphore.Weighted
}

// NewGatedTransport wraps next with a gate of size limit.
// A non-positive limit returns a gate that never blocks.
func NewGatedTransport(next Transport, limit int) *GatedTransport {
	g := &GatedTransport{next: next}
	if limit > 0 {
		g.sem = semaphore.NewWeighted(int64(limit))
	}
	return g
}

// Send waits for a slot and forwards the request.
func (g *GatedTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	if g.sem != nil {
		if err := g.sem.Acquire(ctx, 1); err != nil {
			return nil, networkError("acquire gate", err)
		}
		defer g.sem.Release(1)
	}
	return g.next.Send(ctx, req)
}
