package agentloop

import (
	"errors"
	"fmt"
)

// ToolErrorKind classifies why a tool call could not produce output.
type ToolErrorKind string

const (
	ToolErrFileNotFound     ToolErrorKind = "FileNotFound"
	ToolErrPermissionDenied ToolErrorKind = "PermissionDenied"
	ToolErrInvalidPath      ToolErrorKind = "InvalidPath"
	ToolErrInvalidArguments ToolErrorKind = "InvalidArguments"
	ToolErrLaunchFailed     ToolErrorKind = "LaunchFailed"
	ToolErrUnknownTool      ToolErrorKind = "UnknownTool"
	ToolErrIO               ToolErrorKind = "IOError"
)

// ToolError is a tool-level failure. The loop folds it into a failed
// ToolResult; it never ends a run.
type ToolError struct {
	Kind    ToolErrorKind
	Message string
	Cause   error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Cause
}

func newToolError(kind ToolErrorKind, cause error, format string, args ...interface{}) *ToolError {
	return &ToolError{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// UnknownToolError is returned by ToolRegistry.Lookup for names that match
// no registered tool or alias.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("%s: no tool named %q (available: Read, Write, Bash)", ToolErrUnknownTool, e.Name)
}

// TurnLimitError ends a run whose model requests reached the configured
// maximum without a final answer.
type TurnLimitError struct {
	Rounds int
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("TurnLimitExceeded: no final answer after %d model requests", e.Rounds)
}

// ErrSessionUsed is returned when Run is called on a session that has
// already run.
var ErrSessionUsed = errors.New("session has already run")

// ErrIsDirectory is returned by file operations whose target is a directory.
var ErrIsDirectory = errors.New("is a directory")
