package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/snap2pass/internal/infra/storage"
	"github.com/vietddude/snap2pass/internal/infra/storage/sqlstore"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := NewDB(ctx, Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	return db
}

func TestOutcomeHistory(t *testing.T) {
	ctx := context.Background()
	repo := sqlstore.NewOutcomeRepo(openTestDB(t).DB)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	score := 91

	recs := []*storage.OutcomeRecord{
		{Key: "batch_1/a.jpg", RequestID: "r1", Trial: 1, Kind: "client_error", Code: "face_detection_failed", RecordedAt: base},
		{Key: "batch_1/a.jpg", RequestID: "r1", Trial: 2, Kind: "success", Score: &score, Passed: true, RecordedAt: base.Add(time.Minute)},
		{Key: "batch%2/b.jpg", Kind: "network_error", Attempts: 3, Exhausted: true, RecordedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range recs {
		if err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if rec.ID == 0 {
			t.Errorf("expected Save to set the id")
		}
	}

	all, err := repo.List(ctx, storage.OutcomeFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Key != "batch%2/b.jpg" || !all[0].Exhausted {
		t.Fatalf("expected newest first, got %+v", all)
	}

	got, err := repo.List(ctx, storage.OutcomeFilter{KeyPrefix: "batch_1/", Kind: "success"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Trial != 2 || got[0].Score == nil || *got[0].Score != 91 || !got[0].Passed {
		t.Errorf("unexpected filtered result %+v", got)
	}
	if !got[0].RecordedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("recorded_at round trip: got %s", got[0].RecordedAt)
	}

	// % in the prefix is literal
	got, _ = repo.List(ctx, storage.OutcomeFilter{KeyPrefix: "batch%"})
	if len(got) != 1 {
		t.Errorf("expected an escaped LIKE prefix, got %d rows", len(got))
	}

	n, err := repo.DeleteOlderThan(ctx, base.Add(90*time.Second))
	if err != nil || n != 2 {
		t.Errorf("expected 2 pruned rows, got %d (%v)", n, err)
	}
	all, _ = repo.List(ctx, storage.OutcomeFilter{Limit: 10})
	if len(all) != 1 {
		t.Errorf("expected one remaining row, got %d", len(all))
	}
}

func TestDSN(t *testing.T) {
	if dsn(":memory:") != ":memory:" {
		t.Errorf("in-memory databases take no pragmas")
	}
	if got := dsn("h.db"); got != "file:h.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)" {
		t.Errorf("unexpected dsn %s", got)
	}
}
