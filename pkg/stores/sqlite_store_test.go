package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bootkit/bootkit/pkg/engine"
)

// setupTestStore creates a file-backed store in a temp directory.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal", "runs.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleResults() []engine.ExecutionResult {
	return []engine.ExecutionResult{
		{
			Action:  engine.PlannedAction{Kind: engine.ActionSkip, Category: engine.CategoryPackages, Adapter: "scoop", Package: &engine.PackageSpec{Name: "git"}, Reason: engine.SkipAlreadySatisfied},
			Outcome: engine.OutcomeAlreadySatisfied,
		},
		{
			Action:   engine.PlannedAction{Kind: engine.ActionInstall, Category: engine.CategoryPackages, Adapter: "scoop", Package: &engine.PackageSpec{Name: "ripgrep"}},
			Outcome:  engine.OutcomeFailed,
			Cause:    "Couldn't find manifest for 'ripgrep'",
			ExitCode: 1,
			Command:  "scoop install ripgrep",
			Duration: 1500 * time.Millisecond,
		},
		{
			Action:  engine.PlannedAction{Kind: engine.ActionInstall, Category: engine.CategoryRuntimes, Adapter: "mise", Runtime: &engine.RuntimeSpec{Name: "node", Version: "20", Command: "node"}},
			Outcome: engine.OutcomeSucceeded,
			Command: "mise use --global --yes node@20",
		},
	}
}

func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "action_results"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running migrations again is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("Expected repeated migration to succeed, got: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Errorf("health check failed: %v", err)
	}
}

func TestRecordRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run := &Run{
		PlanID:         "plan-1",
		Target:         "windows",
		PackageManager: engine.ManagerScoop,
		ManifestPath:   "/home/octo/windows.json",
		Status:         engine.RunStatusPartial,
		StartedAt:      started,
		CompletedAt:    started.Add(time.Minute),
	}
	if err := store.RecordRun(ctx, run, sampleResults()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if run.ID == "" {
		t.Fatal("Expected a generated run ID")
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got.Status != engine.RunStatusPartial || got.Target != "windows" || got.DryRun {
		t.Errorf("Unexpected run: %+v", got)
	}
	if got.Counts != (Counts{Succeeded: 1, AlreadySatisfied: 1, Failed: 1}) {
		t.Errorf("Unexpected counts: %+v", got.Counts)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("Expected start %v, got %v", started, got.StartedAt)
	}

	records, err := store.ListResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	failed := records[1]
	if failed.ActionID != "packages/scoop/ripgrep" || failed.Outcome != engine.OutcomeFailed || failed.ExitCode != 1 {
		t.Errorf("Unexpected failed record: %+v", failed)
	}
	if failed.Duration != 1500*time.Millisecond {
		t.Errorf("Expected duration 1.5s, got %v", failed.Duration)
	}
}

func TestRecordRun_InvalidStatus(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordRun(context.Background(), &Run{Status: "bogus"}, nil)
	if err == nil {
		t.Fatal("Expected error for an invalid status")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("Expected ErrRunNotFound, got %v", err)
	}
}

func TestListAndPruneRuns(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		run := &Run{
			ID:          string(rune('a' + i)),
			Status:      engine.RunStatusSucceeded,
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			CompletedAt: base.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := store.RecordRun(ctx, run, sampleResults()); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	runs, err := store.ListRuns(ctx, 3, 0)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "e" || runs[2].ID != "c" {
		t.Errorf("Expected newest runs first, got %v", runIDs(runs))
	}

	removed, err := store.PruneRuns(ctx, 2)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 runs removed, got %d", removed)
	}

	records, err := store.ListResults(ctx, "a")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected results of pruned runs to cascade, got %d", len(records))
	}
}

func runIDs(runs []*Run) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
