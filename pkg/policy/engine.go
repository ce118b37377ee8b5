package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog"

	"github.com/bootkit/bootkit/pkg/engine"
)

// Engine evaluates Rego policies against planned actions.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	config   InputConfig
	logger   zerolog.Logger
}

// compiledPolicy represents a compiled Rego policy.
type compiledPolicy struct {
	policy   *Policy
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the settings exposed to policies as input.config.
func WithConfig(cfg InputConfig) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.config.DeniedPackages == nil {
		e.config.DeniedPackages = []string{}
	}

	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(context.Background(), &builtins[i]); err != nil {
			return nil, fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}

	e.logger.Debug().
		Int("count", len(builtins)).
		Msg("Built-in policies loaded")

	return e, nil
}

// LoadPolicies loads additional .rego files or directories of them.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	loader := NewLoader(e.logger)
	policies, err := loader.LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}

	e.logger.Info().
		Int("count", len(policies)).
		Msg("Policies loaded successfully")

	return nil
}

// compileAndStorePolicy compiles a policy and prepares its deny query.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}
	if module == nil {
		return fmt.Errorf("policy %s is empty", policy.Name)
	}

	r := rego.New(
		rego.Module(policy.Name, policy.Rego),
		rego.Query(module.Package.Path.String()+".deny"),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().
		Str("policy", policy.Name).
		Msg("Policy compiled successfully")

	return nil
}

// EvaluateAction evaluates every enabled policy against one action.
func (e *Engine) EvaluateAction(ctx context.Context, plan *engine.Plan, action *engine.PlannedAction) ([]Violation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	input := &Input{
		Action:         action,
		Target:         plan.Target,
		PackageManager: plan.PackageManager,
		Config:         e.config,
	}

	var violations []Violation
	for _, name := range e.enabled() {
		cp := e.policies[name]
		results, err := cp.query.Eval(ctx, rego.EvalInput(input))
		if err != nil {
			return violations, fmt.Errorf("policy %s evaluation error: %w", name, err)
		}
		for _, result := range results {
			if len(result.Expressions) == 0 {
				continue
			}
			denySet, ok := result.Expressions[0].Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				violations = append(violations, createViolation(cp.policy, action.ID(), d))
			}
		}
	}

	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Policy != violations[j].Policy {
			return violations[i].Policy < violations[j].Policy
		}
		return violations[i].Message < violations[j].Message
	})
	return violations, nil
}

// Apply returns a copy of the plan in which installs denied by a blocking
// violation become Skip(PolicyDenied). Non-blocking violations and failed
// evaluations are added as plan warnings. The input plan is not modified.
func (e *Engine) Apply(ctx context.Context, plan *engine.Plan) (*engine.Plan, []Violation, error) {
	start := time.Now()

	out := *plan
	out.Actions = append([]engine.PlannedAction(nil), plan.Actions...)
	out.Warnings = append([]string(nil), plan.Warnings...)

	var all []Violation
	denied := 0
	for i := range out.Actions {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		action := &out.Actions[i]
		if action.Kind != engine.ActionInstall {
			continue
		}

		violations, err := e.EvaluateAction(ctx, plan, action)
		if err != nil {
			e.logger.Error().Err(err).Str("action", action.ID()).Msg("Policy evaluation failed")
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %v", action.ID(), err))
		}
		all = append(all, violations...)

		var reasons []string
		for _, v := range violations {
			if v.Severity.Blocking() {
				reasons = append(reasons, v.Message)
			} else {
				out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %s (%s)", action.ID(), v.Message, v.Policy))
			}
		}
		if len(reasons) > 0 {
			denied++
			action.Kind = engine.ActionSkip
			action.Reason = engine.SkipPolicyDenied
			action.Detail = strings.Join(reasons, "; ")
			action.BestEffort = false
			action.DotfilesStep = ""
		}
	}

	out.ID = out.ContentID()

	e.logger.Debug().
		Str("plan_id", out.ID).
		Int("violations", len(all)).
		Int("denied", denied).
		Dur("duration", time.Since(start)).
		Msg("Plan policy evaluation completed")

	return &out, all, nil
}

// enabled returns enabled policy names in a stable order.
func (e *Engine) enabled() []string {
	names := make([]string, 0, len(e.policies))
	for name, cp := range e.policies {
		if cp.policy.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// createViolation creates a Violation from one deny set member.
func createViolation(policy *Policy, actionID string, result interface{}) Violation {
	violation := Violation{
		Policy:   policy.Name,
		ActionID: actionID,
		Severity: policy.Severity,
	}

	switch v := result.(type) {
	case string:
		violation.Message = v
	case map[string]interface{}:
		if msg, ok := v["message"].(string); ok {
			violation.Message = msg
		}
		if sev, ok := v["severity"].(string); ok {
			violation.Severity = Severity(sev)
		}
	default:
		violation.Message = fmt.Sprintf("%v", result)
	}

	return violation
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}

	return cp.policy, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, cp := range e.policies {
		policies = append(policies, *cp.policy)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })

	return policies
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}

	cp.policy.Enabled = false
	e.logger.Info().Str("policy", name).Msg("Policy disabled")

	return nil
}
