package script

import "errors"

// Sentinel errors classifying script run failures. They never cross the
// public API as Go errors; the runner folds them into result data.
var (
	// ErrScriptSyntax indicates the script failed to parse before any
	// execution took place.
	ErrScriptSyntax = errors.New("script syntax error")

	// ErrScriptRuntime indicates an uncaught exception during execution.
	ErrScriptRuntime = errors.New("script runtime error")

	// ErrScriptTimeout indicates the script exceeded its time budget and was
	// interrupted.
	ErrScriptTimeout = errors.New("script execution timed out")

	// ErrScriptCanceled indicates the caller's context was canceled while the
	// script was running.
	ErrScriptCanceled = errors.New("script execution canceled")
)
