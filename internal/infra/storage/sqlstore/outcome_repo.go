// Package sqlstore implements the outcome history on any database/sql driver
// sqlx knows how to rebind. Schemas are owned by the postgres and sqlite
// packages.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/snap2pass/internal/infra/storage"
)

// OutcomeRepo implements storage.OutcomeRepository over sqlx.
type OutcomeRepo struct {
	db *sqlx.DB
}

// NewOutcomeRepo creates a new SQL outcome repository.
func NewOutcomeRepo(db *sqlx.DB) *OutcomeRepo {
	return &OutcomeRepo{db: db}
}

const insertOutcome = `
INSERT INTO trial_outcomes (
    trial_key, source, request_id, trial, kind, code, message,
    http_status, attempts, exhausted, score, passed, recorded_at
) VALUES (
    :trial_key, :source, :request_id, :trial, :kind, :code, :message,
    :http_status, :attempts, :exhausted, :score, :passed, :recorded_at
) RETURNING id`

const selectOutcomes = `
SELECT id, trial_key, source, request_id, trial, kind, code, message,
       http_status, attempts, exhausted, score, passed, recorded_at
FROM trial_outcomes`

// Save appends a record and sets its ID.
func (r *OutcomeRepo) Save(ctx context.Context, rec *storage.OutcomeRecord) error {
	rows, err := r.db.NamedQueryContext(ctx, insertOutcome, rec)
	if err != nil {
		return fmt.Errorf("failed to save outcome: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&rec.ID); err != nil {
			return fmt.Errorf("failed to read outcome id: %w", err)
		}
	}
	return rows.Err()
}

// List returns matching records, newest first.
func (r *OutcomeRepo) List(ctx context.Context, f storage.OutcomeFilter) ([]*storage.OutcomeRecord, error) {
	query, args := buildListQuery(f)

	var out []*storage.OutcomeRecord
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes records recorded before the threshold.
func (r *OutcomeRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	query := r.db.Rebind("DELETE FROM trial_outcomes WHERE recorded_at < ?")
	res, err := r.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune outcomes: %w", err)
	}
	return res.RowsAffected()
}

// buildListQuery uses ? placeholders; callers rebind for their driver.
func buildListQuery(f storage.OutcomeFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if f.KeyPrefix != "" {
		where = append(where, `trial_key LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(f.KeyPrefix)+"%")
	}
	if f.RequestID != "" {
		where = append(where, "request_id = ?")
		args = append(args, f.RequestID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, f.Kind)
	}

	var b strings.Builder
	b.WriteString(selectOutcomes)
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString("\nORDER BY recorded_at DESC, id DESC")
	if f.Limit > 0 {
		b.WriteString("\nLIMIT ?")
		args = append(args, f.Limit)
	}
	return b.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
