package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bootkit/bootkit/pkg/adapters"
	"github.com/bootkit/bootkit/pkg/engine"
	"github.com/bootkit/bootkit/pkg/manifest"
	"github.com/bootkit/bootkit/pkg/policy"
	"github.com/bootkit/bootkit/pkg/probe"
	"github.com/bootkit/bootkit/pkg/stores"
	"github.com/bootkit/bootkit/pkg/telemetry"
)

// pipeline wires the stages of one run: probe, plan, policy gate, execute.
type pipeline struct {
	adapters *engine.Adapters
	runner   engine.Runner
	pc       engine.PathContext
	policies *policy.Engine
	metrics  *telemetry.Metrics
}

func newPipeline(ctx context.Context) (*pipeline, error) {
	runner := &adapters.ExecRunner{}
	if verbose && !jsonOutput {
		runner.Stdout = os.Stderr
		runner.Stderr = os.Stderr
	}

	policies, err := policy.NewEngine(log.Logger, policy.WithConfig(policy.InputConfig{
		DeniedPackages: settings.Policy.DeniedPackages,
		AllowHTTP:      settings.Policy.AllowHTTP,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(settings.Policy.Paths) > 0 {
		if err := policies.LoadPolicies(ctx, settings.Policy.Paths); err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}
	for _, name := range settings.Policy.Disabled {
		if err := policies.DisablePolicy(name); err != nil {
			log.Warn().Err(err).Str("policy", name).Msg("Cannot disable unknown policy")
		}
	}

	p := &pipeline{
		adapters: adapters.New(adapters.Options{
			Runner:     runner,
			EnvFile:    settings.EnvFile,
			PowerShell: settings.PowerShell,
			Sudo:       settings.Sudo,
		}),
		runner:   runner,
		pc:       engine.NewPathContext(os.Environ()),
		policies: policies,
	}
	if tel != nil {
		p.metrics = tel.Metrics
	}
	return p, nil
}

// loadManifest loads the manifest and resolves an "auto" package manager.
func loadManifest() (*engine.Manifest, error) {
	if manifestPath == "" {
		return nil, engine.NewManifestNotFoundError("", fmt.Errorf("no manifest given; use --manifest or set manifest in the settings file"))
	}
	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	return probe.ResolvePackageManager(m, settings.OSRelease, settings.PackageManager)
}

// plan snapshots the host, plans against it and applies the policy gate.
func (p *pipeline) plan(ctx context.Context, m *engine.Manifest, opts engine.PlanOptions) (*engine.Plan, []policy.Violation, error) {
	ctx, span := otel.Tracer("bootkit/cli").Start(ctx, "plan")
	defer span.End()

	prober := probe.New(p.adapters, p.pc)
	host, err := prober.Snapshot(ctx, m)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}
	p.pc = prober.PathContext()
	for name, ms := range host.Managers {
		if ms.PackagesErr != nil {
			p.metrics.RecordProbeUnavailable(name)
		}
	}

	plan, err := engine.NewPlanner(p.adapters).Plan(m, host, opts)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}

	gated, violations, err := p.policies.Apply(ctx, plan)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, nil, err
	}
	for _, v := range violations {
		if v.Severity.Blocking() {
			p.metrics.RecordPolicyDenial(v.Policy)
		}
	}

	span.SetAttributes(
		telemetry.AttrPlanID.String(gated.ID),
		attribute.Int("plan.actions", len(gated.Actions)),
		attribute.Int("plan.installs", gated.Count(engine.ActionInstall)),
	)
	log.Debug().
		Str("plan_id", gated.ID).
		Int("actions", len(gated.Actions)).
		Int("violations", len(violations)).
		Msg("Plan ready")
	return gated, violations, nil
}

// execute runs the plan, logging each recorded result.
func (p *pipeline) execute(ctx context.Context, plan *engine.Plan, dryRun bool) ([]engine.ExecutionResult, error) {
	progress := func(index, total int, r engine.ExecutionResult) {
		evt := log.Debug()
		if r.Outcome == engine.OutcomeFailed {
			evt = log.Warn().Str("cause", r.Cause)
		}
		evt.Int("step", index+1).
			Int("total", total).
			Str("action", r.Action.ID()).
			Str("outcome", string(r.Outcome)).
			Msg("Action recorded")
	}

	var opts []engine.ExecutorOption
	opts = append(opts, engine.WithProgress(progress))
	if p.metrics != nil {
		opts = append(opts, engine.WithRecorder(p.metrics))
	}

	executor := engine.NewExecutor(p.adapters, p.runner, p.pc, opts...)
	results, err := executor.Execute(ctx, plan, engine.ExecuteOptions{DryRun: dryRun})
	p.pc = executor.PathContext()
	return results, err
}

// journal records the run in the history database and prunes old runs.
// Journal failures never change the outcome of the run.
func journal(run *stores.Run, results []engine.ExecutionResult) {
	if !settings.Journal.Enabled {
		return
	}

	// The run context may already be cancelled by an interrupt.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := stores.Open(ctx, settings.Journal.Path)
	if err != nil {
		log.Warn().Err(err).Str("path", settings.Journal.Path).Msg("Run journal unavailable")
		return
	}
	defer store.Close()

	if err := store.RecordRun(ctx, run, results); err != nil {
		log.Warn().Err(err).Msg("Failed to record run")
		return
	}
	if settings.Journal.Keep > 0 {
		if pruned, err := store.PruneRuns(ctx, settings.Journal.Keep); err != nil {
			log.Warn().Err(err).Msg("Failed to prune run history")
		} else if pruned > 0 {
			log.Debug().Int64("pruned", pruned).Msg("Pruned run history")
		}
	}
}
