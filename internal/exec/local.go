package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// maxCapture bounds how much of each output stream is kept.
const maxCapture = 64 * 1024

const waitDelay = 2 * time.Second

// pathListVars are prepended to rather than replaced when augmenting the
// environment.
var pathListVars = map[string]bool{
	"LD_LIBRARY_PATH":   true,
	"DYLD_LIBRARY_PATH": true,
	"PATH":              true,
	"PYTHONPATH":        true,
}

// Runner executes a step. RunLocal satisfies it; tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, step Step) (*Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, step Step) (*Result, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, step Step) (*Result, error) {
	return f(ctx, step)
}

// LocalRunner runs steps as child processes of this one.
type LocalRunner struct{}

// Run implements Runner.
func (LocalRunner) Run(ctx context.Context, step Step) (*Result, error) {
	return RunLocal(ctx, step)
}

// RunLocal executes step on the local host and blocks until it exits. A
// non-zero exit is reported in Result.ExitCode with a nil error. A missing
// executable maps to 127 and a non-executable one to 126, as in a shell.
func RunLocal(ctx context.Context, step Step) (*Result, error) {
	if len(step.Cmd) == 0 {
		return nil, fmt.Errorf("step %s has no command", step.ID)
	}

	startTime := time.Now()

	cmd := osexec.CommandContext(ctx, step.Cmd[0], step.Cmd[1:]...)
	cmd.Dir = step.Workdir
	cmd.Env = AugmentedEnv(os.Environ(), step.Env)
	// Grandchildren can hold the output pipes open after a kill.
	cmd.WaitDelay = waitDelay

	stdout := &tailBuffer{limit: maxCapture}
	stderr := &tailBuffer{limit: maxCapture}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()

	exitCode := 0
	if errors.Is(err, osexec.ErrWaitDelay) {
		err = nil
	}
	if err != nil {
		var exitErr *osexec.ExitError
		var lookErr *osexec.Error
		switch {
		case errors.As(err, &exitErr):
			exitCode = exitErr.ExitCode()
			if exitCode < 0 {
				// Killed by a signal; report it the way a shell would.
				exitCode = 128 + signalNumber(exitErr)
			}
		case errors.As(err, &lookErr), errors.Is(err, fs.ErrNotExist):
			exitCode = 127
		case errors.Is(err, fs.ErrPermission):
			exitCode = 126
		default:
			return nil, fmt.Errorf("failed to execute %s: %w", step.Cmd[0], err)
		}
	}

	return &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(startTime),
		Error:    err,
	}, nil
}

// AugmentedEnv returns base with extra applied. Path-list variables are
// prepended to any existing value; others replace it. The result is sorted
// for reproducible manifests.
func AugmentedEnv(base []string, extra map[string]string) []string {
	env := make(map[string]string, len(base)+len(extra))
	for _, kv := range base {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		env[k] = v
	}
	for k, v := range extra {
		if old, ok := env[k]; ok && old != "" && pathListVars[k] {
			env[k] = v + string(filepath.ListSeparator) + old
			continue
		}
		env[k] = v
	}

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func signalNumber(exitErr *osexec.ExitError) int {
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return int(ws.Signal())
	}
	return 0
}

// CommandLine renders argv for logs and error reports.
func CommandLine(argv []string) string {
	return strings.Join(argv, " ")
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.limit {
		t.buf.Reset()
		t.buf.Write(p[len(p)-t.limit:])
		return n, nil
	}
	if over := t.buf.Len() + len(p) - t.limit; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
