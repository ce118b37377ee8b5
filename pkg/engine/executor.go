package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ExecuteOptions controls a single Execute call.
type ExecuteOptions struct {
	// DryRun records every action without dispatching it.
	DryRun bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRecorder registers an observer for every recorded result.
func WithRecorder(r ResultRecorder) ExecutorOption {
	return func(e *Executor) {
		if r != nil {
			e.recorders = append(e.recorders, r)
		}
	}
}

// WithProgress registers a callback invoked after each action completes.
func WithProgress(fn func(index, total int, result ExecutionResult)) ExecutorOption {
	return func(e *Executor) {
		e.progress = fn
	}
}

// Executor runs a plan sequentially. One action executes and is recorded
// before the next begins; package managers hold host-level locks, so
// actions are never run concurrently.
type Executor struct {
	adapters  *Adapters
	runner    Runner
	pc        PathContext
	recorders []ResultRecorder
	progress  func(index, total int, result ExecutionResult)
	tracer    trace.Tracer
}

// NewExecutor creates an executor that starts from path context pc.
func NewExecutor(adapters *Adapters, runner Runner, pc PathContext, opts ...ExecutorOption) *Executor {
	e := &Executor{
		adapters: adapters,
		runner:   runner,
		pc:       pc,
		tracer:   otel.Tracer("bootkit/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PathContext returns the context after the most recent reload.
func (e *Executor) PathContext() PathContext {
	return e.pc
}

// Execute runs every action of plan in order and returns the recorded results.
//
// A failed install is recorded and the run continues. A failed bootstrap of
// the primary package manager halts the run with a PrerequisiteError; any
// other failed prerequisite fails only the actions that use that tool.
// Cancelling ctx stops before the next action; results recorded so far are
// returned with the error.
func (e *Executor) Execute(ctx context.Context, plan *Plan, opts ExecuteOptions) ([]ExecutionResult, error) {
	if plan == nil {
		return nil, NewPermanentError("plan is nil", nil).WithCode(ErrCodeValidation)
	}

	ctx, span := e.tracer.Start(ctx, "execute",
		trace.WithAttributes(
			attribute.String("plan.id", plan.ID),
			attribute.Int("plan.actions", len(plan.Actions)),
			attribute.Bool("dry_run", opts.DryRun),
		))
	defer span.End()

	results := make([]ExecutionResult, 0, len(plan.Actions))
	unavailable := make(map[string]string)
	var previous Category

	for i, action := range plan.Actions {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, "interrupted")
			return results, NewTransientError("run interrupted", err).
				WithCode(ErrCodeInterrupted).
				WithDetail("completed", len(results))
		}

		if previous != "" && action.Category != previous && previous.AltersPath() {
			e.reload(previous)
		}
		previous = action.Category

		var result ExecutionResult
		if cause, ok := unavailable[action.Adapter]; ok && action.Category != CategoryPrerequisites {
			result = e.blocked(action, cause)
		} else {
			result = e.executeAction(ctx, action, opts)
		}
		results = append(results, result)
		e.record(i, len(plan.Actions), result)

		if result.Outcome != OutcomeFailed || action.Category != CategoryPrerequisites {
			continue
		}
		if action.Prerequisite == plan.PackageManager {
			span.SetStatus(codes.Error, "prerequisite missing")
			return results, NewPrerequisiteError(action.Prerequisite, fmt.Errorf("%s", result.Cause))
		}
		unavailable[action.Prerequisite] = result.Cause
	}

	return results, nil
}

// blocked records an action whose tool could not be bootstrapped. Nothing is
// run; the command is kept so the failure can be retried by hand.
func (e *Executor) blocked(action PlannedAction, cause string) ExecutionResult {
	result := ExecutionResult{
		Action:  action,
		Outcome: OutcomeFailed,
		Cause:   fmt.Sprintf("prerequisite %s unavailable", action.Adapter),
		Err:     NewPrerequisiteError(action.Adapter, errors.New(cause)),
	}
	if inv, err := e.invocationFor(action); err == nil {
		result.Command = inv.String()
	}
	log.Error().
		Str("action", action.ID()).
		Str("prerequisite", action.Adapter).
		Msg("Action not attempted, prerequisite unavailable")
	return result
}

// reload refreshes the path context from persisted state so child processes
// see executables installed by the category that just finished.
func (e *Executor) reload(after Category) {
	if e.adapters == nil || e.adapters.Env == nil {
		return
	}
	persisted, err := e.adapters.Env.Persisted()
	if err != nil {
		log.Warn().Err(err).Str("after", string(after)).Msg("Failed to read persisted environment, keeping current path")
		return
	}
	e.pc = ReloadPath(persisted, e.pc)
	log.Debug().Str("after", string(after)).Int("path_entries", len(e.pc.Path())).Msg("Reloaded execution path")
}

func (e *Executor) record(index, total int, result ExecutionResult) {
	for _, r := range e.recorders {
		r.RecordResult(result)
	}
	if e.progress != nil {
		e.progress(index, total, result)
	}
}

func (e *Executor) executeAction(ctx context.Context, action PlannedAction, opts ExecuteOptions) ExecutionResult {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "action",
		trace.WithAttributes(
			attribute.String("action.id", action.ID()),
			attribute.String("action.kind", string(action.Kind)),
			attribute.String("action.category", string(action.Category)),
		))
	defer span.End()

	result := e.dispatch(ctx, action, opts)
	result.Duration = time.Since(start)
	if result.Outcome == OutcomeFailed && result.Err == nil {
		result.Err = NewActionError(action.ID(), result.ExitCode, errors.New(result.Cause))
	}

	span.SetAttributes(attribute.String("action.outcome", string(result.Outcome)))
	if result.Outcome == OutcomeFailed {
		span.SetStatus(codes.Error, result.Cause)
	}

	logEvent := log.Info()
	if result.Outcome == OutcomeFailed {
		logEvent = log.Error().Int("exit_code", result.ExitCode).Str("cause", result.Cause)
	} else if result.Outcome == OutcomeWarned {
		logEvent = log.Warn().Str("cause", result.Cause)
	}
	logEvent.
		Str("action", action.ID()).
		Str("outcome", string(result.Outcome)).
		Bool("dry_run", opts.DryRun).
		Dur("duration", result.Duration).
		Msg("Action recorded")

	return result
}

// dispatch translates the action into its invocation. Dry-run and live mode
// share everything up to the point where steps are run.
func (e *Executor) dispatch(ctx context.Context, action PlannedAction, opts ExecuteOptions) ExecutionResult {
	result := ExecutionResult{Action: action}

	switch action.Kind {
	case ActionSkip:
		if action.Reason == SkipAlreadySatisfied {
			result.Outcome = OutcomeAlreadySatisfied
			return result
		}
		result.Outcome = OutcomeWarned
		result.Cause = action.Detail
		if action.Reason == SkipPolicyDenied {
			result.Err = NewPermanentError(action.Detail, nil).
				WithCode(ErrCodePolicyDenied).
				WithResource(action.ID())
		}
		return result

	case ActionReconcile:
		result.Outcome = OutcomeWarned
		result.Cause = action.Detail
		return result

	case ActionInstall:
	default:
		result.Outcome = OutcomeFailed
		result.Cause = fmt.Sprintf("unknown action kind %q", action.Kind)
		result.ExitCode = -1
		return result
	}

	inv, err := e.invocationFor(action)
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Cause = err.Error()
		result.ExitCode = -1
		var ee *EngineError
		if errors.As(err, &ee) {
			result.Err = err
		}
		return result
	}
	result.Command = inv.String()

	if opts.DryRun {
		result.Outcome = OutcomeSucceeded
		return result
	}

	for _, step := range inv.Steps {
		if step.Apply != nil {
			if err := step.Apply(ctx); err != nil {
				result.Outcome = OutcomeFailed
				result.Cause = fmt.Sprintf("%s: %v", step.String(), err)
				result.ExitCode = -1
				return result
			}
			continue
		}

		out, err := e.runner.Run(ctx, Command{Argv: step.Argv, Env: e.pc.Environ()})
		if err != nil {
			result.Outcome = OutcomeFailed
			result.Cause = err.Error()
			result.ExitCode = -1
			return result
		}
		if out.ExitCode != 0 {
			result.Outcome = OutcomeFailed
			result.ExitCode = out.ExitCode
			result.Cause = failureCause(step, out)
			return result
		}
	}

	result.Outcome = OutcomeSucceeded
	return result
}

func (e *Executor) invocationFor(action PlannedAction) (Invocation, error) {
	if e.adapters == nil {
		return Invocation{}, NewPermanentError("no adapters configured", nil).WithCode(ErrCodeUnknownAdapter)
	}

	switch action.Category {
	case CategoryPrerequisites:
		tool, err := e.adapters.Tool(action.Prerequisite)
		if err != nil {
			return Invocation{}, err
		}
		return tool.BootstrapInvocation()

	case CategorySources:
		pm, err := e.adapters.PackageManager(action.Adapter)
		if err != nil {
			return Invocation{}, err
		}
		return pm.AddSourceInvocation(*action.Source), nil

	case CategoryPackages:
		pm, err := e.adapters.PackageManager(action.Adapter)
		if err != nil {
			return Invocation{}, err
		}
		return pm.InstallInvocation(*action.Package), nil

	case CategoryRuntimes:
		if e.adapters.Runtime == nil {
			return Invocation{}, NewPermanentError("no runtime manager configured", nil).WithCode(ErrCodeUnknownAdapter)
		}
		return e.adapters.Runtime.InstallInvocation(*action.Runtime), nil

	case CategoryEnvironment:
		if e.adapters.Env == nil {
			return Invocation{}, NewPermanentError("no environment store configured", nil).WithCode(ErrCodeUnknownAdapter)
		}
		return e.adapters.Env.SetInvocation(*action.EnvVar), nil

	case CategoryDotfiles:
		if e.adapters.Dotfiles == nil {
			return Invocation{}, NewPermanentError("no dotfile manager configured", nil).WithCode(ErrCodeUnknownAdapter)
		}
		if action.DotfilesStep == DotfilesApply {
			return e.adapters.Dotfiles.ApplyInvocation(), nil
		}
		return e.adapters.Dotfiles.InitAndApplyInvocation(*action.Dotfiles), nil
	}

	return Invocation{}, NewPermanentError("unknown action category", nil).
		WithCode(ErrCodeValidation).
		WithResource(string(action.Category))
}

// failureCause summarizes a non-zero exit using the last line of stderr.
func failureCause(step Step, out *CommandResult) string {
	cause := fmt.Sprintf("%s exited with status %d", step.String(), out.ExitCode)
	stderr := strings.TrimSpace(out.Stderr)
	if stderr == "" {
		return cause
	}
	lines := strings.Split(stderr, "\n")
	last := strings.TrimSpace(lines[len(lines)-1])
	if len(last) > 200 {
		last = last[:200] + "..."
	}
	return cause + ": " + last
}
