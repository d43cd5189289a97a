package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/snap2pass/internal/infra/storage"
)

// Pruner deletes outcome history older than the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.OutcomeRepository
	log       *slog.Logger
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.OutcomeRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		log:       slog.Default(),
		now:       time.Now,
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check at 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

// PruneOnce deletes records older than the retention period.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	return p.repo.DeleteOlderThan(ctx, p.now().Add(-p.retention))
}

func (p *Pruner) prune(ctx context.Context) {
	n, err := p.PruneOnce(ctx)
	if err != nil {
		p.log.Error("Failed to prune outcome history", "error", err)
		return
	}
	if n > 0 {
		p.log.Info("Pruned outcome history", "deleted", n, "retention", p.retention)
	}
}
