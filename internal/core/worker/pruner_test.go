package worker

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/snap2pass/internal/infra/storage"
	"github.com/vietddude/snap2pass/internal/infra/storage/memory"
)

func TestPruner_PruneOnce(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutcomeRepo(memory.NewMemoryStorage())
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, age := range []time.Duration{48 * time.Hour, 25 * time.Hour, time.Hour} {
		if err := repo.Save(ctx, &storage.OutcomeRecord{Key: age.String(), RecordedAt: now.Add(-age)}); err != nil {
			t.Fatal(err)
		}
	}

	p := NewPruner(24*time.Hour, repo)
	p.now = func() time.Time { return now }

	n, err := p.PruneOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	left, _ := repo.List(ctx, storage.OutcomeFilter{})
	if len(left) != 1 || left[0].Key != "1h0m0s" {
		t.Errorf("unexpected remaining records %v", left)
	}
}

func TestPruner_StartDisabled(t *testing.T) {
	p := NewPruner(0, memory.NewOutcomeRepo(memory.NewMemoryStorage()))
	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start must return immediately when retention is disabled")
	}
}
