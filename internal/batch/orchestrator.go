// Package batch runs many independent submissions with bounded parallelism and
// reports one entry per input item, in input order.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/infra/storage"
	"github.com/vietddude/snap2pass/internal/metrics"
	"github.com/vietddude/snap2pass/internal/trial"
)

const DefaultConcurrency = 4

// Config holds orchestrator settings.
type Config struct {
	// Concurrency bounds the pipelines running at once. 1 runs items strictly
	// in order.
	Concurrency int `yaml:"concurrency"`
	// AbandonInFlight passes batch cancellation into running pipelines instead
	// of letting them finish.
	AbandonInFlight bool `yaml:"abandon_in_flight"`
}

// Options apply to one Run.
type Options struct {
	// SharedSpec is used by items that carry no document specification.
	SharedSpec *domain.DocumentSpec
	// UseTrials routes every item through the trial tracker.
	UseTrials bool
	Trial     trial.RunOptions
}

// Orchestrator runs batches.
type Orchestrator struct {
	cfg       Config
	submitter trial.Submitter
	tracker   *trial.Tracker
	history   storage.OutcomeRepository
	log       *slog.Logger
	now       func() time.Time
}

type Option func(*Orchestrator)

// WithTracker sets the tracker used when Options.UseTrials is set.
func WithTracker(t *trial.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithHistory records outcomes of items run without the tracker.
func WithHistory(r storage.OutcomeRepository) Option {
	return func(o *Orchestrator) { o.history = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// New creates an orchestrator.
func New(cfg Config, submitter trial.Submitter, opts ...Option) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	o := &Orchestrator{
		cfg:       cfg,
		submitter: submitter,
		log:       slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.tracker == nil {
		trackerOpts := []trial.Option{trial.WithLogger(o.log)}
		if o.history != nil {
			trackerOpts = append(trackerOpts, trial.WithHistory(o.history))
		}
		o.tracker = trial.New(submitter, trackerOpts...)
	}
	return o
}

// Run processes items and always returns len(items) entries. Once ctx is
// done no new item starts; those items report a NetworkError wrapping
// domain.ErrNotStarted.
func (o *Orchestrator) Run(ctx context.Context, items []domain.BatchItem, opts Options) domain.BatchResult {
	result := domain.BatchResult{
		ID:      uuid.NewString(),
		Entries: make([]domain.BatchEntry, len(items)),
	}
	for i, item := range items {
		result.Entries[i] = domain.BatchEntry{Index: i, Ref: refOf(item, i)}
	}

	log := o.log.With("batch_id", result.ID)
	log.Info("Starting batch", "items", len(items), "concurrency", o.cfg.Concurrency, "trials", opts.UseTrials)
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(o.cfg.Concurrency)

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			itemCtx := ctx
			if !o.cfg.AbandonInFlight {
				itemCtx = context.WithoutCancel(ctx)
			}

			metrics.BatchInFlight.Inc()
			defer metrics.BatchInFlight.Dec()

			// Each goroutine owns exactly one index.
			o.runItem(itemCtx, result.ID, items[i], opts, &result.Entries[i])
			return nil
		})
	}
	_ = g.Wait()

	skipped := 0
	for i := range result.Entries {
		e := &result.Entries[i]
		if e.Result.Outcome.Kind != 0 {
			continue
		}
		cause := domain.ErrNotStarted
		if err := ctx.Err(); err != nil {
			cause = fmt.Errorf("%w: %w", domain.ErrNotStarted, err)
		}
		e.Result = domain.Result{Outcome: domain.NetworkFailure(cause)}
		metrics.BatchItemsTotal.WithLabelValues(domain.OutcomeNetworkError.String()).Inc()
		skipped++
	}

	summary := result.Summary()
	log.Info("Batch finished",
		"items", len(items),
		"succeeded", summary[domain.OutcomeSuccess],
		"failed", len(items)-summary[domain.OutcomeSuccess],
		"not_started", skipped,
		"duration", time.Since(start),
	)
	return result
}

func (o *Orchestrator) runItem(ctx context.Context, batchID string, item domain.BatchItem, opts Options, entry *domain.BatchEntry) {
	sub := item.Submission
	if opts.SharedSpec != nil && sub.Spec.IsZero() {
		sub = sub.WithSpec(*opts.SharedSpec)
	}
	// Refs may repeat within a batch; the index keeps trial state per item.
	key := itemKey(batchID, entry.Index, entry.Ref)

	if opts.UseTrials {
		state, res, err := o.tracker.Run(ctx, key, sub, opts.Trial)
		if err != nil && res.Outcome.Kind == 0 {
			res = domain.Result{Outcome: domain.NetworkFailure(err)}
		}
		if err != nil {
			o.log.Warn("Trial run failed", "batch_id", batchID, "ref", entry.Ref, "error", err)
		}
		entry.Result = res
		entry.Trial = state
	} else {
		entry.Result = o.submitter.Submit(ctx, sub)
		if o.history != nil {
			rec := storage.NewOutcomeRecord(key, sub.Source, 0, entry.Result, o.now())
			if err := o.history.Save(ctx, rec); err != nil {
				o.log.Warn("Failed to record outcome", "batch_id", batchID, "ref", entry.Ref, "error", err)
			}
		}
	}

	outcome := entry.Result.Outcome
	metrics.BatchItemsTotal.WithLabelValues(outcome.Kind.String()).Inc()
	o.log.Debug("Batch item finished",
		"batch_id", batchID,
		"ref", entry.Ref,
		"kind", outcome.Kind.String(),
		"code", outcome.Code(),
		"attempts", entry.Result.Attempts,
	)
}

func itemKey(batchID string, index int, ref string) string {
	return fmt.Sprintf("%s/%d/%s", batchID, index, ref)
}

func refOf(item domain.BatchItem, i int) string {
	switch {
	case item.Ref != "":
		return item.Ref
	case item.Submission.Source != "":
		return item.Submission.Source
	default:
		return "#" + strconv.Itoa(i)
	}
}
