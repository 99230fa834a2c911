// Package shell runs lifecycle scripts through the system shell.
package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"go.trai.ch/zerr"

	"github.com/AqwozTheDeveloper/crabby/internal/core/domain"
	"github.com/AqwozTheDeveloper/crabby/internal/core/ports"
)

// Runner implements ports.ScriptRunner using os/exec.
type Runner struct {
	logger ports.Logger
}

var _ ports.ScriptRunner = (*Runner)(nil)

func NewRunner(logger ports.Logger) *Runner {
	return &Runner{logger: logger}
}

// Run executes command via `sh -c` in dir. binDirs are prepended to PATH,
// nearest first, so package executables shadow system ones exactly as they
// do at runtime. Output is captured, not streamed; it belongs to the caller,
// who decides what a failure log looks like.
func (r *Runner) Run(ctx context.Context, command, dir string, binDirs []string) (ports.ScriptResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command) //nolint:gosec // scripts come from the manifest on purpose
	cmd.Dir = dir
	cmd.Env = scriptEnvironment(os.Environ(), binDirs)

	// The script runs in its own process group so cancellation reaches its
	// children too; otherwise they keep the output pipe open and Run blocks
	// until the whole tree exits on its own.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	r.logger.Debug("running script: " + command)

	err := cmd.Run()
	result := ports.ScriptResult{Output: output.Bytes(), ExitCode: 0}
	if err == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, zerr.Wrap(ctx.Err(), "script cancelled")
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
	}
	wrapped := zerr.With(zerr.Wrap(domain.ErrScriptFailed, err.Error()), "command", command)
	return result, zerr.With(wrapped, "exit_code", result.ExitCode)
}

// scriptEnvironment rebuilds the process environment with binDirs prepended
// to PATH in the order given.
func scriptEnvironment(sysEnv, binDirs []string) []string {
	if len(binDirs) == 0 {
		return sysEnv
	}

	prefix := strings.Join(binDirs, string(os.PathListSeparator))
	env := make([]string, 0, len(sysEnv)+1)
	found := false
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if ok && k == "PATH" {
			found = true
			if v != "" {
				v = prefix + string(os.PathListSeparator) + v
			} else {
				v = prefix
			}
			env = append(env, "PATH="+v)
			continue
		}
		env = append(env, entry)
	}
	if !found {
		env = append(env, "PATH="+prefix)
	}
	return env
}
