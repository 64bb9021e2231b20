package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
	"time"
)

// CoreToolOptions bounds the Bash tool.
type CoreToolOptions struct {
	CommandTimeout time.Duration
	BashCharLimit  int
	BashLineLimit  int
}

// DefaultCoreToolOptions returns the default bounds: two minutes per
// command, 30000 characters and 256 lines of output.
func DefaultCoreToolOptions() CoreToolOptions {
	return CoreToolOptions{
		CommandTimeout: 2 * time.Minute,
		BashCharLimit:  30000,
		BashLineLimit:  256,
	}
}

// NewCoreToolRegistry builds the fixed Read, Write, Bash table.
func NewCoreToolRegistry(opts CoreToolOptions) *ToolRegistry {
	return newToolRegistry(
		readTool(),
		writeTool(),
		bashTool(opts),
	)
}

func readTool() RegisteredTool {
	return RegisteredTool{
		Kind:    ToolRead,
		Aliases: []string{"readfile", "read_file"},
		Definition: ToolDefinition{
			Name:        "Read",
			Description: "Read and return the full contents of a file.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file_path": stringSchema("The path to the file to read."),
				},
				"required": []string{"file_path"},
			},
		},
		Executor: func(_ context.Context, arguments json.RawMessage, env ExecutionEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			filePath, err := requireStringArg(args, "file_path", false)
			if err != nil {
				return "", err
			}
			content, err := env.ReadFile(filePath)
			if err != nil {
				return "", classifyFSError(err, filePath)
			}
			return content, nil
		},
	}
}

func writeTool() RegisteredTool {
	return RegisteredTool{
		Kind:    ToolWrite,
		Aliases: []string{"writefile", "write_file"},
		Definition: ToolDefinition{
			Name:        "Write",
			Description: "Write content to a file, replacing it if it exists. Parent directories are created as needed.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"file_path": stringSchema("The path of the file to write to."),
					"content":   stringSchema("The content to write to the file."),
				},
				"required": []string{"file_path", "content"},
			},
		},
		Executor: func(_ context.Context, arguments json.RawMessage, env ExecutionEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			filePath, err := requireStringArg(args, "file_path", true)
			if err != nil {
				return "", err
			}
			if filePath == "" {
				return "", newToolError(ToolErrInvalidPath, nil, "file_path must not be empty")
			}
			// Empty content is a valid write; only absence is an error.
			content, err := requireStringArg(args, "content", true)
			if err != nil {
				return "", err
			}
			if err := env.WriteFile(filePath, content); err != nil {
				return "", classifyFSError(err, filePath)
			}
			return fmt.Sprintf("Successfully wrote %d bytes to %s", len(content), filePath), nil
		},
	}
}

func bashTool(opts CoreToolOptions) RegisteredTool {
	return RegisteredTool{
		Kind:            ToolBash,
		Aliases:         []string{"shell"},
		OutputCharLimit: opts.BashCharLimit,
		OutputLineLimit: opts.BashLineLimit,
		Definition: ToolDefinition{
			Name:        "Bash",
			Description: "Run a shell command in the working directory. Returns combined stdout and stderr followed by the exit code. A non-zero exit code is reported, not treated as a failure.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"command": stringSchema("The shell command to run."),
				},
				"required": []string{"command"},
			},
		},
		Executor: func(ctx context.Context, arguments json.RawMessage, env ExecutionEnvironment) (string, error) {
			args, err := ParseToolArguments(arguments)
			if err != nil {
				return "", err
			}
			command, err := requireStringArg(args, "command", false)
			if err != nil {
				return "", err
			}

			result, err := env.ExecCommand(ctx, command, opts.CommandTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return "", err
				}
				return "", newToolError(ToolErrLaunchFailed, err, "could not start command: %v", err)
			}

			return formatExecResult(result, opts.CommandTimeout), nil
		},
	}
}

// formatExecResult renders command output with a trailing status line so
// the model always sees how the command ended.
func formatExecResult(result *ExecResult, timeout time.Duration) string {
	var sb strings.Builder
	sb.WriteString(result.Output)
	if result.Output != "" && !strings.HasSuffix(result.Output, "\n") {
		sb.WriteString("\n")
	}
	if result.TimedOut {
		fmt.Fprintf(&sb, "[command timed out after %s; partial output is shown above]\n", timeout)
	}
	fmt.Fprintf(&sb, "[exit code: %d]", result.ExitCode)
	return sb.String()
}

// classifyFSError maps filesystem errors onto tool error kinds.
func classifyFSError(err error, path string) *ToolError {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return newToolError(ToolErrFileNotFound, err, "file not found: %s", path)
	case errors.Is(err, fs.ErrPermission):
		return newToolError(ToolErrPermissionDenied, err, "permission denied: %s", path)
	case errors.Is(err, ErrIsDirectory):
		return newToolError(ToolErrInvalidPath, err, "%s is a directory", path)
	case errors.Is(err, syscall.ENOTDIR):
		return newToolError(ToolErrInvalidPath, err, "a parent of %s is not a directory", path)
	case errors.Is(err, syscall.ENAMETOOLONG):
		return newToolError(ToolErrInvalidPath, err, "path too long: %s", path)
	default:
		return newToolError(ToolErrIO, err, "%s: %v", path, err)
	}
}
