package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/apiflow/pkg/assert"
	"github.com/dshills/apiflow/pkg/env"
	"github.com/dshills/apiflow/pkg/script"
	"github.com/dshills/apiflow/pkg/storage"
	"github.com/dshills/apiflow/pkg/transport"
)

// NewRunCommand creates the run command: pre-script, send, post-script,
// assertions, then merge the surviving environment diffs into the store.
func NewRunCommand() *cobra.Command {
	var scriptTimeout time.Duration
	var requestTimeout time.Duration
	var noSend bool

	cmd := &cobra.Command{
		Use:   "run <fixture.yaml>",
		Short: "Run a request fixture through scripts and assertions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := LoadFixture(args[0])
			if err != nil {
				return err
			}
			return runFixture(cmd.Context(), cmd.OutOrStdout(), fixture, runOptions{
				scriptTimeout:  scriptTimeout,
				requestTimeout: requestTimeout,
				noSend:         noSend,
			})
		},
	}

	cmd.Flags().DurationVar(&scriptTimeout, "script-timeout", script.DefaultTimeout, "Time budget per script run")
	cmd.Flags().DurationVar(&requestTimeout, "request-timeout", transport.DefaultTimeout, "HTTP request timeout")
	cmd.Flags().BoolVar(&noSend, "no-send", false, "Run only the pre-script, skip transport and post steps")

	return cmd
}

type runOptions struct {
	scriptTimeout  time.Duration
	requestTimeout time.Duration
	noSend         bool
}

func runFixture(ctx context.Context, out io.Writer, fixture *Fixture, opts runOptions) error {
	runner := script.NewRunner(script.WithTimeout(opts.scriptTimeout))

	environment, store, err := resolveEnvironment(ctx, fixture)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	request := fixture.RequestSnapshot()

	// Pre-script.
	preResult, modified := runner.ExecutePreScript(ctx, fixture.PreScript, request, environment)
	printScriptResult(out, "pre-script", fixture.PreScript, preResult)
	mergeDiff(ctx, out, store, fixture.EnvironmentID, preResult.EnvChanges)
	if environment != nil {
		// Post-script and assertions observe the pre-script's merged view.
		preResult.EnvChanges.Apply(environment)
	}

	if opts.noSend {
		return failOnScriptErrors(preResult, nil, nil)
	}

	// Transport.
	client := transport.NewClient(opts.requestTimeout)
	response, err := client.Do(ctx, modified)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	fmt.Fprintf(out, "-> %s %s: %d %s (%d ms, %d bytes)\n",
		modified.Method, modified.URL, response.Status, response.StatusText, response.TimeMS, response.SizeBytes)

	// Post-script.
	postResult := runner.ExecutePostScript(ctx, fixture.PostScript, modified, response, environment)
	printScriptResult(out, "post-script", fixture.PostScript, postResult)
	mergeDiff(ctx, out, store, fixture.EnvironmentID, postResult.EnvChanges)

	// Assertions.
	assertResults := assert.NewEvaluator().RunAssertions(ctx, fixture.AssertionList(), response)
	printAssertionResults(out, assertResults)

	return failOnScriptErrors(preResult, postResult, assertResults)
}

// resolveEnvironment picks the stored environment when the fixture names
// one, otherwise the inline environment (which may be nil — runs without an
// environment are valid).
func resolveEnvironment(ctx context.Context, fixture *Fixture) (*env.Environment, *storage.EnvironmentStore, error) {
	if fixture.EnvironmentID == "" {
		return fixture.InlineEnvironment(), nil, nil
	}
	store, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	environment, err := store.Load(ctx, fixture.EnvironmentID)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return environment, store, nil
}

func openStore() (*storage.EnvironmentStore, error) {
	if GlobalConfig.DBPath != "" {
		return storage.NewEnvironmentStoreWithPath(GlobalConfig.DBPath)
	}
	return storage.NewEnvironmentStore()
}

// mergeDiff persists a run's environment changes. Failed runs hand back an
// empty diff, so there is nothing to guard here.
func mergeDiff(ctx context.Context, out io.Writer, store *storage.EnvironmentStore, id string, diff *env.Diff) {
	if store == nil || id == "" || diff == nil || diff.Empty() {
		return
	}
	if _, err := store.ApplyDiff(ctx, id, diff); err != nil {
		fmt.Fprintf(out, "warning: failed to merge environment changes: %v\n", err)
	}
}

func printScriptResult(out io.Writer, phase, source string, result *script.ExecutionResult) {
	if source == "" {
		return
	}
	status := "ok"
	if !result.Success {
		status = string(result.Failure)
	}
	fmt.Fprintf(out, "%s: %s (%d ms)\n", phase, status, result.Duration.Milliseconds())
	for _, entry := range result.Logs {
		fmt.Fprintf(out, "  [%s] %s\n", entry.Level, entry.Message)
	}
	for _, errMsg := range result.Errors {
		fmt.Fprintf(out, "  error: %s\n", errMsg)
	}
	for _, test := range result.TestResults {
		mark := "PASS"
		if !test.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(out, "  %s %s", mark, test.Name)
		if test.Error != "" {
			fmt.Fprintf(out, ": %s", test.Error)
		}
		fmt.Fprintln(out)
	}
}

func printAssertionResults(out io.Writer, results []assert.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(out, "assertions:")
	for _, r := range results {
		mark := "PASS"
		if !r.Passed {
			mark = "FAIL"
		}
		name := r.Name
		if name == "" {
			name = r.Message
		}
		fmt.Fprintf(out, "  %s %s", mark, name)
		if !r.Passed && r.Name != "" {
			fmt.Fprintf(out, ": %s", r.Message)
		}
		fmt.Fprintln(out)
	}
}

// failOnScriptErrors folds the run outcome into the process exit status.
func failOnScriptErrors(pre, post *script.ExecutionResult, assertions []assert.Result) error {
	failures := 0
	for _, result := range []*script.ExecutionResult{pre, post} {
		if result == nil {
			continue
		}
		if !result.Success {
			failures++
		}
		failures += result.FailedTests()
	}
	for _, r := range assertions {
		if !r.Passed {
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("run finished with %d failure(s)", failures)
	}
	return nil
}
