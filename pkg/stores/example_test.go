package stores_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bootkit/bootkit/pkg/engine"
	"github.com/bootkit/bootkit/pkg/stores"
)

// Example demonstrates recording a run and reading the history back.
func Example() {
	dir, err := os.MkdirTemp("", "bootkit-journal")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	ctx := context.Background()
	store, err := stores.Open(ctx, filepath.Join(dir, "runs.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	now := time.Now()
	run := &stores.Run{
		ID:          "run-1",
		Target:      "arch",
		Status:      engine.RunStatusSucceeded,
		StartedAt:   now,
		CompletedAt: now.Add(time.Second),
	}
	results := []engine.ExecutionResult{{
		Action:  engine.PlannedAction{Kind: engine.ActionInstall, Category: engine.CategoryPackages, Adapter: "pacman", Package: &engine.PackageSpec{Name: "git"}},
		Outcome: engine.OutcomeSucceeded,
	}}
	if err := store.RecordRun(ctx, run, results); err != nil {
		log.Fatal(err)
	}

	runs, err := store.ListRuns(ctx, 10, 0)
	if err != nil {
		log.Fatal(err)
	}
	for _, r := range runs {
		fmt.Printf("%s %s %s succeeded=%d\n", r.ID, r.Target, r.Status, r.Counts.Succeeded)
	}
	// Output:
	// run-1 arch succeeded succeeded=1
}
