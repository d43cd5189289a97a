package postgres

import (
	"io/fs"
	"strings"
	"testing"
)

func TestDriverName(t *testing.T) {
	tests := map[string]string{"": "postgres", "pq": "postgres", "postgres": "postgres", "pgx": "pgx"}
	for in, want := range tests {
		got, err := driverName(in)
		if err != nil || got != want {
			t.Errorf("driverName(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := driverName("mysql"); err == nil {
		t.Errorf("expected an error for mysql")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	files, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil || len(files) == 0 {
		t.Fatalf("expected embedded migrations, got %v (%v)", files, err)
	}
	data, _ := fs.ReadFile(migrationsFS, files[0])
	if !strings.Contains(string(data), "-- +goose Up") {
		t.Errorf("migration %s lacks goose annotations", files[0])
	}
}
