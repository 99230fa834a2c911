package ports

import "context"

// ScriptResult captures a finished lifecycle script.
type ScriptResult struct {
	// Output is the combined stdout/stderr of the script.
	Output []byte

	// ExitCode is the process exit status, -1 when the process never ran.
	ExitCode int
}

// ScriptRunner executes lifecycle scripts as synchronous, cancellable tasks
// with captured output. No implicit background execution.
//
//go:generate mockgen -source=script_runner.go -destination=mocks/mock_script_runner.go -package=mocks
type ScriptRunner interface {
	// Run executes the shell command in dir with the given .bin directories
	// prepended to PATH, nearest first. A non-zero exit returns the result
	// alongside a non-nil error.
	Run(ctx context.Context, command, dir string, binDirs []string) (ScriptResult, error)
}
