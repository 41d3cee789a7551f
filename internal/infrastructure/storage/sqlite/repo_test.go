package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"klinerelay/internal/domain/model"
)

func TestSQLiteRepoEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	tick, d, err := repo.LoadLatest(context.Background())
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if tick != nil || d != nil {
		t.Errorf("expected no state, got tick=%v decision=%v", tick, d)
	}
}

func TestSQLiteRepoKeepsOnlyLatest(t *testing.T) {
	dbPath := "test_latest.db"
	defer os.Remove(dbPath)

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	for _, c := range []float64{100, 101, 102} {
		if err := repo.SaveTick(ctx, model.Tick{Symbol: "BTCUSDT", Close: c}); err != nil {
			t.Fatalf("SaveTick failed: %v", err)
		}
	}
	roi := 2.5
	if err := repo.SaveDecision(ctx, model.Decision{Action: "BUY", Symbol: "BTCUSDT", RoiPct: &roi}); err != nil {
		t.Fatalf("SaveDecision failed: %v", err)
	}

	var n int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM latest_state`).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows, got %d", n)
	}

	tick, d, err := repo.LoadLatest(ctx)
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if tick == nil || tick.Close != 102 {
		t.Errorf("expected latest close 102, got %v", tick)
	}
	if d == nil || d.Action != "BUY" || d.RoiPct == nil || *d.RoiPct != 2.5 {
		t.Errorf("unexpected decision %+v", d)
	}
}

func TestSQLiteRepoReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "state.db")

	repo, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	if err := repo.SaveTick(context.Background(), model.Tick{Symbol: "ETHUSDT", Close: 3000}); err != nil {
		t.Fatalf("SaveTick failed: %v", err)
	}
	repo.Close()

	repo, err = New(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen repo: %v", err)
	}
	defer repo.Close()

	tick, _, err := repo.LoadLatest(context.Background())
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if tick == nil || tick.Symbol != "ETHUSDT" {
		t.Errorf("expected ETHUSDT tick after reopen, got %v", tick)
	}
}
