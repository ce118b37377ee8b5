// Package engine provides the core types, planner and executor for bootkit.
//
// # Overview
//
// A run reconciles one machine against a manifest in four phases:
//
//  1. Load - Parse and validate the manifest (package manifest)
//  2. Probe - Snapshot the host into a HostState (package probe)
//  3. Plan - Diff manifest against HostState into a Plan (Planner)
//  4. Execute - Run the plan in order and record results (Executor)
//
// Planning is pure: the same manifest and HostState always produce the
// same Plan, including its ID. Execution is strictly sequential and follows
// the category order:
//
//	prerequisites, sources, packages, runtimes, environment, dotfiles
//
// # Actions
//
// Every planned action is one of:
//
//   - Skip: already satisfied, or denied by policy
//   - Install: bring the subject into existence
//   - Reconcile: the host disagrees with the manifest; never resolved automatically
//
// Install actions map to an Invocation built by an adapter. In dry-run mode
// the invocation is rendered and recorded but never dispatched, so a dry run
// and a live run report the same commands.
//
// # Path Context
//
// Child processes inherit an in-memory PathContext rather than persisted
// state. The executor calls ReloadPath after each category that may put new
// executables on the path so later categories can find them.
//
// # Error Classification
//
//   - Transient: unavailable probes, failed actions, interrupted runs
//   - Permanent: invalid manifests, missing prerequisites, policy denials
//
// Failed results carry the classified error in ExecutionResult.Err. A run
// error from Execute is a PrerequisiteError only when the primary package
// manager could not be bootstrapped:
//
//	if engine.IsPrerequisite(err) {
//	    // nothing later in the run can succeed
//	}
package engine
