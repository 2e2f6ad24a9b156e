package db

import (
	"context"
	"database/sql"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir(), LocalFile)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSetValues_GetValues(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := SetValues(ctx, db, map[string]string{
		"memos": `[]`,
		"tags":  `[{"name":"Travel"}]`,
	})
	if err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	got, err := GetValues(ctx, db, []string{"memos", "tags", "missing"})
	if err != nil {
		t.Fatalf("GetValues() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got["tags"] != `[{"name":"Travel"}]` {
		t.Errorf("tags = %q", got["tags"])
	}
	if _, ok := got["missing"]; ok {
		t.Error("missing key should be absent from result")
	}
}

func TestSetValues_Overwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := SetValues(ctx, db, map[string]string{"k": "1"}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}
	if err := SetValues(ctx, db, map[string]string{"k": "22"}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	got, err := GetValues(ctx, db, []string{"k"})
	if err != nil {
		t.Fatalf("GetValues() error = %v", err)
	}
	if got["k"] != "22" {
		t.Errorf("k = %q, want 22", got["k"])
	}
}

func TestGetValues_NoKeys(t *testing.T) {
	db := openTestDB(t)

	got, err := GetValues(context.Background(), db, nil)
	if err != nil {
		t.Fatalf("GetValues() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}

func TestStats(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := SetValues(ctx, db, map[string]string{"small": "1", "large": "1234567890"}); err != nil {
		t.Fatalf("SetValues() error = %v", err)
	}

	stats, err := Stats(ctx, db)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("len(stats) = %d, want 2", len(stats))
	}
	if stats[0].Key != "large" {
		t.Errorf("stats[0].Key = %q, want large (largest first)", stats[0].Key)
	}
	if stats[0].SizeBytes != len("large")+10 {
		t.Errorf("SizeBytes = %d, want %d", stats[0].SizeBytes, len("large")+10)
	}
}
