package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/snap2pass/internal/core/domain"
)

var (
	// ErrStateNotFound is returned when no trial state is stored under a key
	ErrStateNotFound = errors.New("trial state not found")
)

// TrialStateStore persists unfinished trial states so a later run can resubmit
// with the identifier the service already assigned.
type TrialStateStore interface {
	// Get retrieves the state stored under key, or ErrStateNotFound
	Get(ctx context.Context, key string) (*domain.TrialState, error)

	// Save saves/updates the state under state.Key
	Save(ctx context.Context, state *domain.TrialState) error

	// Delete discards the state; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error
}

// OutcomeRecord is one persisted trial outcome.
type OutcomeRecord struct {
	ID         int64     `db:"id"`
	Key        string    `db:"trial_key"`
	Source     string    `db:"source"`
	RequestID  string    `db:"request_id"`
	Trial      int       `db:"trial"`
	Kind       string    `db:"kind"`
	Code       string    `db:"code"`
	Message    string    `db:"message"`
	HTTPStatus int       `db:"http_status"`
	Attempts   int       `db:"attempts"`
	Exhausted  bool      `db:"exhausted"`
	Score      *int      `db:"score"`
	Passed     bool      `db:"passed"`
	RecordedAt time.Time `db:"recorded_at"`
}

// NewOutcomeRecord flattens the result of one trial.
func NewOutcomeRecord(key, source string, trial int, res domain.Result, at time.Time) *OutcomeRecord {
	o := res.Outcome
	rec := &OutcomeRecord{
		Key:        key,
		Source:     source,
		RequestID:  string(o.RequestID),
		Trial:      trial,
		Kind:       o.Kind.String(),
		Code:       o.Code(),
		Message:    o.Message(),
		HTTPStatus: o.HTTPStatus,
		Attempts:   res.Attempts,
		Exhausted:  res.Exhausted,
		RecordedAt: at.UTC(),
	}
	if o.Success != nil {
		rec.Score = o.Success.Score
		rec.Passed = o.Clean()
	}
	return rec
}

// OutcomeFilter narrows OutcomeRepository.List.
type OutcomeFilter struct {
	KeyPrefix string
	RequestID string
	Kind      string
	Limit     int // 0 = no limit
}

// OutcomeRepository stores the outcome history, newest first on List.
type OutcomeRepository interface {
	// Save appends a record and sets its ID
	Save(ctx context.Context, rec *OutcomeRecord) error

	// List returns matching records, newest first
	List(ctx context.Context, filter OutcomeFilter) ([]*OutcomeRecord, error)

	// DeleteOlderThan removes records recorded before the threshold
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
