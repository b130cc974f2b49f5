package script

import (
	"time"

	"github.com/dshills/apiflow/pkg/env"
)

// LogLevel classifies a console entry captured from a script.
type LogLevel string

// Console levels surfaced in results. console.info is folded into LevelLog.
const (
	LevelLog   LogLevel = "log"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is one console call captured during a run. Console output is
// result data; it is never forwarded to the host's own logging.
type LogEntry struct {
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TestResult records one test(name, fn) invocation. Duplicate names are not
// deduplicated; every call appends a result.
type TestResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Error  string `json:"error,omitempty"`
}

// FailureKind classifies why a run could not complete. Empty for successful
// runs.
type FailureKind string

// Failure classifications.
const (
	FailureNone    FailureKind = ""
	FailureSyntax  FailureKind = "syntax"
	FailureRuntime FailureKind = "runtime"
	FailureTimeout FailureKind = "timeout"
)

// ExecutionResult is everything a script run observed and changed. It is the
// only channel through which script effects reach the caller.
//
// A failed run ("script could not run at all") carries Success=false and a
// non-empty Errors slice. A script that ran but whose tests failed carries
// Success=true with failing entries in TestResults.
type ExecutionResult struct {
	RunID   string      `json:"runId"`
	Success bool        `json:"success"`
	Failure FailureKind `json:"failure,omitempty"`

	Logs        []LogEntry   `json:"logs"`
	Errors      []string     `json:"errors"`
	TestResults []TestResult `json:"testResults"`

	// EnvChanges is the environment diff the run produced, to be merged by
	// the environment's owner. Empty after a failed run: mutations are
	// discarded all-or-nothing.
	EnvChanges *env.Diff `json:"envChanges"`

	// VariableChanges is the request-scoped variable layer (the sandbox
	// "vars" object). It is transient and never written back to the
	// persisted environment.
	VariableChanges map[string]string `json:"variableChanges"`

	Duration time.Duration `json:"duration"`
}

// FailedTests returns the number of failing test results.
func (r *ExecutionResult) FailedTests() int {
	n := 0
	for _, t := range r.TestResults {
		if !t.Passed {
			n++
		}
	}
	return n
}

func newExecutionResult(id string) *ExecutionResult {
	return &ExecutionResult{
		RunID:           id,
		Logs:            []LogEntry{},
		Errors:          []string{},
		TestResults:     []TestResult{},
		EnvChanges:      env.NewDiff(),
		VariableChanges: map[string]string{},
	}
}
