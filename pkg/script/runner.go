package script

import (
	"context"

	"github.com/dshills/apiflow/pkg/env"
	"github.com/dshills/apiflow/pkg/snapshot"
)

// Runner orchestrates single pre- or post-script invocations: it clones the
// inputs, builds the capability binding, runs the sandbox and shapes the
// outcome. It holds no state between calls; concurrent invocations share
// nothing mutable.
type Runner struct {
	sandbox *Sandbox
}

// NewRunner creates a runner. Options are forwarded to the underlying
// sandbox.
func NewRunner(opts ...Option) *Runner {
	return &Runner{sandbox: NewSandbox(opts...)}
}

// ExecutePreScript runs a pre-request script against a clone of request and
// a snapshot of environment (nil environment is treated as empty).
//
// On success the returned request reflects every mutation the script made.
// On any failure the returned request equals the original and the result's
// EnvChanges and VariableChanges are emptied: mutations from a failed run are
// discarded in full, never applied up to the point of failure. Logs, test
// results and errors are preserved either way. The call never returns a Go
// error and never panics.
func (r *Runner) ExecutePreScript(ctx context.Context, source string, request *snapshot.RequestSnapshot, environment *env.Environment) (*ExecutionResult, *snapshot.RequestSnapshot) {
	working := request.Clone()
	binding := NewPreBinding(env.NewSnapshot(environment), working)

	result := r.sandbox.Run(ctx, source, binding)
	if !result.Success {
		discardMutations(result)
		return result, request.Clone()
	}
	return result, working
}

// ExecutePostScript runs a post-response script against read-only views of
// request and response plus a snapshot of environment. Symmetric with
// ExecutePreScript, minus the mutable request: the failure policy and
// no-error contract are identical.
func (r *Runner) ExecutePostScript(ctx context.Context, source string, request *snapshot.RequestSnapshot, response *snapshot.ResponseSnapshot, environment *env.Environment) *ExecutionResult {
	binding := NewPostBinding(env.NewSnapshot(environment), request.Clone(), response.Clone())

	result := r.sandbox.Run(ctx, source, binding)
	if !result.Success {
		discardMutations(result)
	}
	return result
}

// discardMutations enforces the all-or-nothing policy for failed runs: the
// diff and the transient variable layer are dropped while logs, tests and
// errors survive for diagnosis.
func discardMutations(result *ExecutionResult) {
	result.EnvChanges = env.NewDiff()
	result.VariableChanges = map[string]string{}
}
