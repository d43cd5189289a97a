package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

// Policy defines retry behavior.
type Policy struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// DefaultPolicy provides sensible defaults.
var DefaultPolicy = Policy{
	MaxAttempts:     3,
	BaseDelay:       500 * time.Millisecond,
	MaxDelay:        30 * time.Second,
	BackoffMultiple: 2.0,
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultPolicy.BaseDelay
	}
	if p.BackoffMultiple <= 0 {
		p.BackoffMultiple = DefaultPolicy.BackoffMultiple
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultPolicy.MaxDelay
	}
	return p
}

// Decision is the answer of ShouldRetry.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// ShouldRetry decides whether attempt (0-based) should be followed by another.
// Only NetworkError and ServerError are retried; the others mean the request
// itself is wrong or the account cannot proceed.
func (p Policy) ShouldRetry(o domain.Outcome, attempt int) Decision {
	if !o.Retryable() {
		return Decision{}
	}
	if attempt+1 >= p.MaxAttempts {
		return Decision{}
	}
	delay := p.Backoff(attempt)
	if o.RetryAfter > delay {
		delay = o.RetryAfter
	}
	return Decision{Retry: true, Delay: delay}
}

// Backoff returns BaseDelay * BackoffMultiple^attempt, capped by MaxDelay
// when set and never beyond the largest time.Duration.
func (p Policy) Backoff(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiple, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if math.IsNaN(delay) || delay >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is a context-aware wait. It parks only the calling goroutine.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier runs attempts under a Policy.
type Retrier struct {
	Policy Policy
	Sleep  SleepFunc
	// OnRetry is called before each backoff wait.
	OnRetry func(o domain.Outcome, attempt int, delay time.Duration)
	Log     *slog.Logger
}

// New creates a retrier with the real clock.
func New(p Policy) *Retrier {
	return &Retrier{Policy: p.WithDefaults(), Sleep: Sleep, Log: slog.Default()}
}

// Do calls attempt until it returns a terminal outcome or the attempt budget
// runs out. Cancellation during a backoff wait ends the loop with the last
// outcome.
func (r *Retrier) Do(ctx context.Context, attempt func(ctx context.Context, n int) domain.Outcome) domain.Result {
	sleep := r.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	log := r.Log
	if log == nil {
		log = slog.Default()
	}

	var last domain.Outcome
	for n := 0; ; n++ {
		last = attempt(ctx, n)

		d := r.Policy.ShouldRetry(last, n)
		if !d.Retry {
			return domain.Result{
				Outcome:   last,
				Attempts:  n + 1,
				Exhausted: last.Retryable() && n+1 >= r.Policy.MaxAttempts,
			}
		}

		log.Debug("Retrying after transient outcome",
			"kind", last.Kind.String(),
			"code", last.Code(),
			"attempt", n+1,
			"delay", d.Delay,
		)
		if r.OnRetry != nil {
			r.OnRetry(last, n, d.Delay)
		}

		if err := sleep(ctx, d.Delay); err != nil {
			return domain.Result{Outcome: last, Attempts: n + 1}
		}
	}
}
