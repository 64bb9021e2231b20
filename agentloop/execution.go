package agentloop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// DefaultMaxCaptureBytes bounds how much combined output a command may
// produce before the rest is discarded.
const DefaultMaxCaptureBytes = 1 << 20

// outputDrainTimeout bounds how long output is read after the shell exits.
const outputDrainTimeout = 2 * time.Second

// ExecResult holds the result of a command execution.
type ExecResult struct {
	Output     string `json:"output"` // interleaved stdout and stderr
	ExitCode   int    `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	Truncated  bool   `json:"truncated"`
	DurationMs int64  `json:"duration_ms"`
}

// ExecutionEnvironment abstracts where tool operations run.
type ExecutionEnvironment interface {
	// ReadFile returns the raw contents of path.
	ReadFile(path string) (string, error)
	// WriteFile creates or replaces path, creating parent directories.
	WriteFile(path string, content string) error

	// ExecCommand runs command through the environment's shell. A non-nil
	// error means the process could not be started or was cancelled;
	// non-zero exits and timeouts are reported in ExecResult.
	ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error)

	WorkingDirectory() string
	Platform() string
}

// sensitiveEnvPatterns are case-insensitive suffixes for environment variables
// that should not leak into subprocesses.
var sensitiveEnvPatterns = []string{
	"_API_KEY",
	"_SECRET",
	"_TOKEN",
	"_PASSWORD",
	"_CREDENTIAL",
}

// safeEnvVars are always included regardless of filtering.
var safeEnvVars = map[string]bool{
	"PATH": true, "HOME": true, "USER": true, "SHELL": true,
	"LANG": true, "TERM": true, "TMPDIR": true,
	"GOPATH": true, "GOROOT": true, "CARGO_HOME": true,
	"XDG_CONFIG_HOME": true, "XDG_DATA_HOME": true, "XDG_CACHE_HOME": true,
}

// isSensitiveEnvVar checks if a variable name matches sensitive patterns.
func isSensitiveEnvVar(name string) bool {
	upper := strings.ToUpper(name)
	for _, pattern := range sensitiveEnvPatterns {
		if strings.HasSuffix(upper, pattern) {
			return true
		}
	}
	return false
}

// filterEnvironment returns environ without credential-looking variables.
func filterEnvironment(environ []string) []string {
	filtered := make([]string, 0, len(environ))
	for _, env := range environ {
		name, _, ok := strings.Cut(env, "=")
		if !ok {
			continue
		}
		if safeEnvVars[name] || !isSensitiveEnvVar(name) {
			filtered = append(filtered, env)
		}
	}
	return filtered
}

// LocalExecutionEnvironment runs tools on the local machine.
type LocalExecutionEnvironment struct {
	workingDir      string
	shell           string
	maxCaptureBytes int
	environ         func() []string
}

// LocalEnvOption configures a LocalExecutionEnvironment.
type LocalEnvOption func(*LocalExecutionEnvironment)

// WithShell sets the shell used for commands. It is invoked as
// `<shell> -c <command>`.
func WithShell(shell string) LocalEnvOption {
	return func(e *LocalExecutionEnvironment) {
		if shell != "" {
			e.shell = shell
		}
	}
}

// WithMaxCaptureBytes bounds captured command output.
func WithMaxCaptureBytes(n int) LocalEnvOption {
	return func(e *LocalExecutionEnvironment) {
		if n > 0 {
			e.maxCaptureBytes = n
		}
	}
}

// NewLocalExecutionEnvironment creates a local execution environment rooted
// at workingDir, or the process working directory when empty.
func NewLocalExecutionEnvironment(workingDir string, opts ...LocalEnvOption) *LocalExecutionEnvironment {
	if workingDir == "" {
		workingDir, _ = os.Getwd()
	}
	e := &LocalExecutionEnvironment{
		workingDir:      workingDir,
		shell:           defaultShell(),
		maxCaptureBytes: DefaultMaxCaptureBytes,
		environ:         os.Environ,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultShell() string {
	if runtime.GOOS == "windows" {
		return "cmd.exe"
	}
	return "/bin/sh"
}

func (e *LocalExecutionEnvironment) WorkingDirectory() string {
	return e.workingDir
}

func (e *LocalExecutionEnvironment) Platform() string {
	return runtime.GOOS
}

// Shell returns the shell used for commands.
func (e *LocalExecutionEnvironment) Shell() string {
	return e.shell
}

func (e *LocalExecutionEnvironment) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.workingDir, path)
}

func (e *LocalExecutionEnvironment) ReadFile(path string) (string, error) {
	resolved := e.resolvePath(path)
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("read_file: %s: %w", resolved, ErrIsDirectory)
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

func (e *LocalExecutionEnvironment) WriteFile(path string, content string) error {
	resolved := e.resolvePath(path)
	if info, err := os.Stat(resolved); err == nil && info.IsDir() {
		return fmt.Errorf("write_file: %s: %w", resolved, ErrIsDirectory)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return fmt.Errorf("write_file: failed to create directory: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
		return fmt.Errorf("write_file: %w", err)
	}
	return nil
}

func (e *LocalExecutionEnvironment) ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	shellArg := "-c"
	if runtime.GOOS == "windows" {
		shellArg = "/c"
	}

	cmd := exec.CommandContext(runCtx, e.shell, shellArg, command)
	cmd.Dir = e.workingDir
	cmd.Env = filterEnvironment(e.environ())
	configureProcessGroup(cmd)
	cmd.WaitDelay = outputDrainTimeout

	// The command writes straight into a pipe we own, so Wait returns when
	// the shell exits even if background jobs still hold the write end.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("exec_command: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	out := newCappedBuffer(e.maxCaptureBytes)
	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = io.Copy(out, pr)
	}()

	start := time.Now()
	err = cmd.Start()
	_ = pw.Close()
	if err != nil {
		<-copied
		_ = pr.Close()
		return nil, fmt.Errorf("exec_command: %w", err)
	}
	err = cmd.Wait()

	killProcessGroup(cmd)
	select {
	case <-copied:
	case <-time.After(outputDrainTimeout):
		// Something outside the group still has the pipe open.
		_ = pr.Close()
		<-copied
	}
	_ = pr.Close()

	result := &ExecResult{
		Output:     out.String(),
		Truncated:  out.Truncated(),
		DurationMs: time.Since(start).Milliseconds(),
	}

	switch {
	case ctx.Err() != nil:
		return nil, fmt.Errorf("exec_command: %w", ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.ExitCode = -1
	case err == nil:
		result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else if cmd.ProcessState != nil {
			result.ExitCode = cmd.ProcessState.ExitCode()
		} else {
			return nil, fmt.Errorf("exec_command: %w", err)
		}
	}

	return result, nil
}

// cappedBuffer keeps the first limit bytes written to it and counts the rest.
// It has a single writer, the goroutine draining the output pipe.
type cappedBuffer struct {
	buf     []byte
	limit   int
	dropped int
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - len(b.buf)
	if room >= len(p) {
		b.buf = append(b.buf, p...)
		return len(p), nil
	}
	if room > 0 {
		b.buf = append(b.buf, p[:room]...)
	}
	b.dropped += len(p) - max(room, 0)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.dropped == 0 {
		return string(b.buf)
	}
	return string(b.buf) + fmt.Sprintf("\n[... %d further bytes of output discarded ...]", b.dropped)
}

func (b *cappedBuffer) Truncated() bool {
	return b.dropped > 0
}
