// Package trial runs the resubmission protocol: the first submission of a photo
// carries no request identifier, later ones reuse the identifier the service
// assigned and count up the trial number.
package trial

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/infra/storage"
	"github.com/vietddude/snap2pass/internal/metrics"
)

// DefaultMaxTrials matches the service's documented resubmission allowance.
const DefaultMaxTrials = 3

// ErrTrialLimit is returned by Run when a resumed state has no trials left.
var ErrTrialLimit = errors.New("trial limit reached")

// Submitter performs one submission including its retry loop.
type Submitter interface {
	Submit(ctx context.Context, sub domain.PhotoSubmission) domain.Result
}

// Tracker records trials. It never decides when to stop; Run takes that
// decision from its RunOptions.
type Tracker struct {
	submitter Submitter
	store     storage.TrialStateStore
	history   storage.OutcomeRepository
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Tracker)

// WithStore persists unfinished states under their key.
func WithStore(s storage.TrialStateStore) Option {
	return func(t *Tracker) { t.store = s }
}

// WithHistory records every trial outcome.
func WithHistory(r storage.OutcomeRepository) Option {
	return func(t *Tracker) { t.history = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) { t.log = l }
}

// New creates a tracker.
func New(s Submitter, opts ...Option) *Tracker {
	t := &Tracker{
		submitter: s,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Submit performs one trial on state. The submission's own RequestID is
// replaced by the one the state dictates.
func (t *Tracker) Submit(ctx context.Context, state *domain.TrialState, sub domain.PhotoSubmission) (domain.Result, error) {
	trial, id, err := state.Begin()
	if err != nil {
		return domain.Result{}, err
	}
	metrics.TrialsTotal.WithLabelValues(string(state.Phase)).Inc()

	res := t.submitter.Submit(ctx, sub.WithRequestID(id))

	o := res.Outcome
	if o.Kind == domain.OutcomeSuccess && o.Trial != 0 && o.Trial != trial {
		t.log.Warn("Service trial number differs from tracked trial",
			"key", state.Key,
			"request_id", o.RequestID,
			"tracked", trial,
			"reported", o.Trial,
		)
	}

	now := t.now()
	if err := state.Record(res, now); err != nil {
		return res, fmt.Errorf("record trial %d: %w", trial, err)
	}
	t.persist(ctx, state, sub.Source, trial, res, now)

	t.log.Info("Trial finished",
		"key", state.Key,
		"trial", trial,
		"request_id", state.RequestID,
		"kind", o.Kind.String(),
		"code", o.Code(),
		"attempts", res.Attempts,
	)
	return res, nil
}

// Accept closes state on its latest outcome and discards the stored copy.
func (t *Tracker) Accept(ctx context.Context, state *domain.TrialState) (domain.TrialRecord, error) {
	rec, err := state.Accept()
	if err != nil {
		return rec, err
	}
	metrics.TrialsTotal.WithLabelValues(string(domain.PhaseAccepted)).Inc()
	if t.store != nil {
		if err := t.store.Delete(ctx, state.Key); err != nil {
			t.log.Warn("Failed to discard trial state", "key", state.Key, "error", err)
		}
	}
	return rec, nil
}

// Load returns the stored state for key, or a fresh one. A stored state that
// never received an identifier cannot be resubmitted and is replaced.
func (t *Tracker) Load(ctx context.Context, key string) (*domain.TrialState, error) {
	if key == "" {
		key = uuid.NewString()
	}
	if t.store == nil {
		return domain.NewTrialState(key), nil
	}

	state, err := t.store.Get(ctx, key)
	if errors.Is(err, storage.ErrStateNotFound) {
		return domain.NewTrialState(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load trial state %s: %w", key, err)
	}
	if state.Phase != domain.PhaseUnsubmitted && state.RequestID == "" {
		t.log.Warn("Stored trial state has no request id, starting over", "key", key, "trial", state.Trial)
		return domain.NewTrialState(key), nil
	}
	return state, nil
}

// RunOptions control Run.
type RunOptions struct {
	// MaxTrials counts every trial of the state, including resumed ones.
	MaxTrials int
	// Accept decides whether an outcome ends the loop. Defaults to Outcome.Clean.
	Accept func(domain.Outcome) bool
}

func (o RunOptions) withDefaults() RunOptions {
	if o.MaxTrials <= 0 {
		o.MaxTrials = DefaultMaxTrials
	}
	if o.Accept == nil {
		o.Accept = domain.Outcome.Clean
	}
	return o
}

// Run submits sub under key until an outcome is accepted, an outcome other
// than Success comes back, or MaxTrials is reached. The returned state is
// Accepted only in the first case.
func (t *Tracker) Run(ctx context.Context, key string, sub domain.PhotoSubmission, opts RunOptions) (*domain.TrialState, domain.Result, error) {
	opts = opts.withDefaults()

	state, err := t.Load(ctx, key)
	if err != nil {
		return nil, domain.Result{}, err
	}
	if state.Phase == domain.PhaseAccepted {
		return state, lastResult(state), domain.ErrTrialClosed
	}
	if state.Trial >= opts.MaxTrials {
		return state, lastResult(state), fmt.Errorf("%w: %d of %d used", ErrTrialLimit, state.Trial, opts.MaxTrials)
	}

	var res domain.Result
	for state.Trial < opts.MaxTrials {
		res, err = t.Submit(ctx, state, sub)
		if err != nil {
			return state, res, err
		}
		if opts.Accept(res.Outcome) {
			if _, err := t.Accept(ctx, state); err != nil {
				return state, res, err
			}
			return state, res, nil
		}
		if res.Outcome.Kind != domain.OutcomeSuccess || ctx.Err() != nil {
			break
		}
	}
	return state, res, nil
}

func (t *Tracker) persist(ctx context.Context, state *domain.TrialState, source string, trial int, res domain.Result, at time.Time) {
	if t.store != nil {
		if err := t.store.Save(ctx, state); err != nil {
			t.log.Warn("Failed to save trial state", "key", state.Key, "error", err)
		}
	}
	if t.history != nil {
		rec := storage.NewOutcomeRecord(state.Key, source, trial, res, at)
		if err := t.history.Save(ctx, rec); err != nil {
			t.log.Warn("Failed to record outcome", "key", state.Key, "error", err)
		}
	}
}

func lastResult(state *domain.TrialState) domain.Result {
	last, ok := state.Last()
	if !ok {
		return domain.Result{}
	}
	return domain.Result{Outcome: last.Outcome, Attempts: last.Attempts, Exhausted: last.Exhausted}
}
