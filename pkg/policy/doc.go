// Package policy gates planned installs with Open Policy Agent (OPA) rules.
//
// Each policy is a Rego module whose package defines a "deny" set. The set
// is evaluated once per Install action with this input:
//
//	{
//	  "action": {"kind": "install", "category": "packages", "package": {...}, ...},
//	  "target": "windows",
//	  "package_manager": "scoop",
//	  "config": {"denied_packages": [...], "allow_http": false}
//	}
//
// Members of the deny set are either strings or objects with "message" and
// "severity". Error and critical violations turn the install into
// Skip(PolicyDenied); warnings are attached to the plan and the action runs.
//
// # Built-in Policies
//
//   - secure-sources: sources and dotfile repositories must not use http://
//   - denied-packages: packages on the settings deny list are skipped
//   - runtime-pinning: warns when a runtime tracks "latest"
//
// Additional policies are loaded from the policy paths in the settings file:
//
//	eng, err := policy.NewEngine(logger, policy.WithConfig(policy.InputConfig{
//	    DeniedPackages: []string{"telemetry-agent"},
//	}))
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"~/.config/bootkit/policies"}); err != nil {
//	    return err
//	}
//	gated, violations, err := eng.Apply(ctx, plan)
package policy
