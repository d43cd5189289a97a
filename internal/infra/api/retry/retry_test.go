package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
	err    error
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

func newTestRetrier(base time.Duration) (*Retrier, *recordingSleep) {
	rec := &recordingSleep{}
	r := New(Policy{BaseDelay: base})
	r.Sleep = rec.sleep
	return r, rec
}

func TestRetrier_NeverRetriesCallerSideOutcomes(t *testing.T) {
	outcomes := []domain.Outcome{
		domain.Failed(domain.OutcomeClientError, domain.CodeInvalidDocumentID, "bad", nil),
		domain.Failed(domain.OutcomeAuthError, domain.CodeUnauthorized, "no", nil),
		domain.OutOfCredit(0, domain.CodeInsufficientCredits, "broke", nil),
	}
	for _, o := range outcomes {
		t.Run(o.Kind.String(), func(t *testing.T) {
			r, rec := newTestRetrier(time.Second)
			calls := 0
			res := r.Do(context.Background(), func(ctx context.Context, n int) domain.Outcome {
				calls++
				return o
			})
			if calls != 1 {
				t.Errorf("expected 1 attempt, got %d", calls)
			}
			if res.Attempts != 1 || res.Exhausted {
				t.Errorf("unexpected result %+v", res)
			}
			if len(rec.delays) != 0 {
				t.Errorf("expected no waits, got %v", rec.delays)
			}
			if res.Outcome.Code() != o.Code() {
				t.Errorf("outcome must be surfaced intact")
			}
		})
	}
}

func TestRetrier_TransientOutcomesUseFullBudget(t *testing.T) {
	const d = 100 * time.Millisecond
	outcomes := []domain.Outcome{
		domain.NetworkFailure(errors.New("connection reset")),
		domain.Failed(domain.OutcomeServerError, domain.CodeInternal, "boom", nil),
	}
	for _, o := range outcomes {
		t.Run(o.Kind.String(), func(t *testing.T) {
			r, rec := newTestRetrier(d)
			calls := 0
			res := r.Do(context.Background(), func(ctx context.Context, n int) domain.Outcome {
				if n != calls {
					t.Errorf("expected attempt index %d, got %d", calls, n)
				}
				calls++
				return o
			})
			if calls != 3 {
				t.Fatalf("expected 3 attempts, got %d", calls)
			}
			if len(rec.delays) != 2 || rec.delays[0] != d || rec.delays[1] != 2*d {
				t.Errorf("expected delays [%v %v], got %v", d, 2*d, rec.delays)
			}
			if !res.Exhausted || res.Attempts != 3 {
				t.Errorf("expected exhausted after 3 attempts, got %+v", res)
			}
			if !errors.Is(res.Err(), domain.ErrRetriesExhausted) {
				t.Errorf("expected ErrRetriesExhausted, got %v", res.Err())
			}
		})
	}
}

func TestRetrier_RecoversAfterTransientFailure(t *testing.T) {
	r, rec := newTestRetrier(time.Millisecond)
	res := r.Do(context.Background(), func(ctx context.Context, n int) domain.Outcome {
		if n == 0 {
			return domain.NetworkFailure(errors.New("timeout"))
		}
		return domain.Succeeded(domain.SuccessResult{Passed: true})
	})
	if res.Outcome.Kind != domain.OutcomeSuccess || res.Attempts != 2 || res.Exhausted {
		t.Errorf("unexpected result %+v", res)
	}
	if len(rec.delays) != 1 {
		t.Errorf("expected one wait, got %v", rec.delays)
	}
	if res.Err() != nil {
		t.Errorf("expected nil error, got %v", res.Err())
	}
}

func TestRetrier_CancelDuringBackoff(t *testing.T) {
	r, rec := newTestRetrier(time.Second)
	rec.err = context.Canceled

	calls := 0
	res := r.Do(context.Background(), func(ctx context.Context, n int) domain.Outcome {
		calls++
		return domain.Failed(domain.OutcomeServerError, domain.CodeInternal, "boom", nil)
	})
	if calls != 1 {
		t.Errorf("expected no attempt after cancellation, got %d", calls)
	}
	if res.Exhausted {
		t.Errorf("cancellation is not exhaustion")
	}
}

func TestPolicy_RetryAfterOverridesShorterBackoff(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Second, BackoffMultiple: 2}
	o := domain.Failed(domain.OutcomeServerError, domain.CodeRateLimited, "slow", nil)
	o.RetryAfter = 5 * time.Second

	if d := p.ShouldRetry(o, 0); !d.Retry || d.Delay != 5*time.Second {
		t.Errorf("expected 5s wait, got %+v", d)
	}

	o.RetryAfter = time.Millisecond
	if d := p.ShouldRetry(o, 1); d.Delay != 2*time.Second {
		t.Errorf("expected backoff to win, got %v", d.Delay)
	}
}

func TestPolicy_BackoffCap(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second, BackoffMultiple: 2}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i); got != w {
			t.Errorf("attempt %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestPolicy_BackoffNeverOverflows(t *testing.T) {
	uncapped := Policy{BaseDelay: 500 * time.Millisecond, BackoffMultiple: 2}
	for _, attempt := range []int{40, 100, 2000} {
		if got := uncapped.Backoff(attempt); got <= 0 {
			t.Errorf("attempt %d: expected a positive wait, got %v", attempt, got)
		}
	}

	p := Policy{BaseDelay: 500 * time.Millisecond}.WithDefaults()
	if p.MaxDelay != DefaultPolicy.MaxDelay {
		t.Fatalf("expected default max delay %v, got %v", DefaultPolicy.MaxDelay, p.MaxDelay)
	}
	if got := p.Backoff(40); got != DefaultPolicy.MaxDelay {
		t.Errorf("expected capped wait %v, got %v", DefaultPolicy.MaxDelay, got)
	}
}

func TestSleep_ReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("sleep did not return promptly")
	}
}
