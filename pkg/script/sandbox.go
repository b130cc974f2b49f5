package script

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single script execution unless overridden.
const DefaultTimeout = 5 * time.Second

// Sandbox executes one script body against one capability binding. The only
// names visible to the script are the ones the binding installs plus goja's
// ECMAScript built-ins; there is no host process, filesystem, network or
// timer surface. Execution is bounded by a wall-clock budget enforced with a
// VM interrupt, and every fault — parse error, uncaught exception, timeout —
// is converted into result data instead of propagating to the caller.
type Sandbox struct {
	timeout time.Duration
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithTimeout overrides the default time budget per run.
func WithTimeout(d time.Duration) Option {
	return func(s *Sandbox) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewSandbox creates a sandbox with the default time budget.
func NewSandbox(opts ...Option) *Sandbox {
	s := &Sandbox{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes source against binding and returns everything the run
// observed and changed. It never returns an error and never panics; all
// failure modes surface on the result. Logs, tests and diff entries
// accumulated before a fault are preserved — whether the caller keeps the
// diff from a failed run is the runner's decision.
func (s *Sandbox) Run(ctx context.Context, source string, binding *Binding) *ExecutionResult {
	start := time.Now()
	result := newExecutionResult(uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			// A fault escaping goja must not take down the host.
			s.collect(result, binding)
			result.Success = false
			result.Failure = FailureRuntime
			result.Errors = append(result.Errors, fmt.Sprintf("%v: internal fault: %v", ErrScriptRuntime, r))
			result.Duration = time.Since(start)
		}
	}()

	program, err := goja.Compile("script.js", source, false)
	if err != nil {
		result.Success = false
		result.Failure = FailureSyntax
		result.Errors = append(result.Errors, fmt.Sprintf("%v: %v", ErrScriptSyntax, err))
		result.Duration = time.Since(start)
		return result
	}

	vm := goja.New()
	if err := binding.install(vm); err != nil {
		result.Success = false
		result.Failure = FailureRuntime
		result.Errors = append(result.Errors, fmt.Sprintf("%v: capability setup failed: %v", ErrScriptRuntime, err))
		result.Duration = time.Since(start)
		return result
	}

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Watchdog: interrupt the VM when the budget expires or the caller
	// cancels. Interruption stops forward progress at the next VM tick, so no
	// script code runs after the caller receives the result.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-runCtx.Done():
			vm.Interrupt(ErrScriptTimeout)
		case <-done:
		}
	}()

	_, runErr := vm.RunProgram(program)
	duration := time.Since(start)

	s.collect(result, binding)
	result.Duration = duration

	switch {
	case runErr == nil && !binding.interrupted:
		result.Success = true
	case runErr == nil && binding.interrupted:
		s.recordTimeout(result, ctx)
	default:
		if _, ok := runErr.(*goja.InterruptedError); ok || binding.interrupted {
			s.recordTimeout(result, ctx)
			break
		}
		result.Success = false
		result.Failure = FailureRuntime
		result.Errors = append(result.Errors, fmt.Sprintf("%v: %v", ErrScriptRuntime, exceptionMessage(runErr)))
	}

	return result
}

func (s *Sandbox) recordTimeout(result *ExecutionResult, callerCtx context.Context) {
	result.Success = false
	result.Failure = FailureTimeout
	if callerCtx.Err() != nil {
		result.Errors = append(result.Errors, ErrScriptCanceled.Error())
		return
	}
	result.Errors = append(result.Errors, fmt.Sprintf("%v: exceeded budget of %s", ErrScriptTimeout, s.timeout))
}

// collect copies the binding accumulators onto the result. Partial effects
// from an aborted run are preserved here, best-effort.
func (s *Sandbox) collect(result *ExecutionResult, binding *Binding) {
	result.Logs = append(result.Logs[:0], binding.logs...)
	result.TestResults = append(result.TestResults[:0], binding.tests...)
	result.EnvChanges = binding.diff.Clone()
	result.VariableChanges = make(map[string]string, len(binding.vars))
	for k, v := range binding.vars {
		result.VariableChanges[k] = v
	}
}
