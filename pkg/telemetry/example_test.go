package telemetry_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bootkit/bootkit/pkg/engine"
	"github.com/bootkit/bootkit/pkg/telemetry"
)

// Example_metricsTextfile demonstrates exporting run metrics to a textfile.
func Example_metricsTextfile() {
	dir, err := os.MkdirTemp("", "bootkit-metrics")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	metrics := telemetry.NewMetrics(telemetry.MetricsConfig{
		Enabled:      true,
		Namespace:    "bootkit",
		TextfilePath: filepath.Join(dir, "bootkit.prom"),
	})

	metrics.RecordResult(engine.ExecutionResult{
		Action:  engine.PlannedAction{Kind: engine.ActionInstall, Category: engine.CategoryPackages},
		Outcome: engine.OutcomeSucceeded,
	})
	metrics.RecordRun(engine.RunStatusSucceeded, 3*time.Second)

	if err := metrics.WriteTextfile(); err != nil {
		panic(err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "bootkit.prom"))
	if err != nil {
		panic(err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "bootkit_actions_total{") || strings.HasPrefix(line, "bootkit_runs_total{") {
			fmt.Println(line)
		}
	}
	// Output:
	// bootkit_actions_total{category="packages",kind="install",outcome="succeeded"} 1
	// bootkit_runs_total{status="succeeded"} 1
}

// Example_setup demonstrates initializing telemetry for one invocation.
func Example_setup() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		panic(err)
	}
	defer tel.Shutdown(context.Background())

	ctx, span := tel.Tracer.StartRunSpan(context.Background(), "apply", "windows")
	defer span.End()

	fmt.Println(ctx != nil)
	// Output: true
}
