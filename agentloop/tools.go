package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/martinemde/tinyagent/unifiedllm"
)

// ToolKind tags the three built-in tools.
type ToolKind int

const (
	ToolRead ToolKind = iota
	ToolWrite
	ToolBash
)

func (k ToolKind) String() string {
	switch k {
	case ToolRead:
		return "Read"
	case ToolWrite:
		return "Write"
	case ToolBash:
		return "Bash"
	default:
		return fmt.Sprintf("ToolKind(%d)", int(k))
	}
}

// ToolExecutor is the function signature for tool execution.
// It receives raw JSON arguments and the execution environment.
type ToolExecutor func(ctx context.Context, arguments json.RawMessage, env ExecutionEnvironment) (string, error)

// ToolDefinition describes a tool for the LLM (serializable metadata).
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// RegisteredTool pairs a tool definition with its executor.
type RegisteredTool struct {
	Kind       ToolKind
	Definition ToolDefinition
	Executor   ToolExecutor
	// Aliases are alternative names accepted case-insensitively by Lookup.
	Aliases []string
	// OutputCharLimit and OutputLineLimit bound the text returned to the
	// model. Zero means unbounded.
	OutputCharLimit int
	OutputLineLimit int
}

// ToolRegistry is a fixed, ordered table of tools. It has no mutators; build
// it once with NewCoreToolRegistry.
type ToolRegistry struct {
	tools []RegisteredTool
	index map[string]int
}

func newToolRegistry(tools ...RegisteredTool) *ToolRegistry {
	r := &ToolRegistry{
		tools: tools,
		index: make(map[string]int, len(tools)*4),
	}
	for i, t := range tools {
		r.index[strings.ToLower(t.Definition.Name)] = i
		for _, alias := range t.Aliases {
			r.index[strings.ToLower(alias)] = i
		}
	}
	return r
}

// Lookup resolves a tool by its exact name, falling back to a
// case-insensitive match on names and aliases.
func (r *ToolRegistry) Lookup(name string) (*RegisteredTool, error) {
	for i := range r.tools {
		if r.tools[i].Definition.Name == name {
			return &r.tools[i], nil
		}
	}
	if i, ok := r.index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return &r.tools[i], nil
	}
	return nil, &UnknownToolError{Name: name}
}

// Definitions returns all tool definitions in registration order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = t.Definition
	}
	return defs
}

// Names returns the canonical tool names in registration order.
func (r *ToolRegistry) Names() []string {
	names := make([]string, len(r.tools))
	for i, t := range r.tools {
		names[i] = t.Definition.Name
	}
	return names
}

// Count returns the number of registered tools.
func (r *ToolRegistry) Count() int {
	return len(r.tools)
}

// ToUnifiedLLMToolDefs converts registry definitions to request tool defs.
func (r *ToolRegistry) ToUnifiedLLMToolDefs() []unifiedllm.ToolDefinition {
	defs := make([]unifiedllm.ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = unifiedllm.ToolDefinition{
			Name:        t.Definition.Name,
			Description: t.Definition.Description,
			Parameters:  t.Definition.Parameters,
		}
	}
	return defs
}

// ParseToolArguments unmarshals tool call arguments into a map. Empty
// arguments are treated as an empty object.
func ParseToolArguments(raw json.RawMessage) (map[string]interface{}, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return map[string]interface{}{}, nil
	}
	var args map[string]interface{}
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, newToolError(ToolErrInvalidArguments, err, "arguments are not a JSON object: %v", err)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, nil
}

// requireStringArg returns a string argument or an InvalidArguments error.
// allowEmpty permits "" as a present value.
func requireStringArg(args map[string]interface{}, key string, allowEmpty bool) (string, error) {
	v, present := args[key]
	if !present || v == nil {
		return "", newToolError(ToolErrInvalidArguments, nil, "%s is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", newToolError(ToolErrInvalidArguments, nil, "%s must be a string, got %T", key, v)
	}
	if s == "" && !allowEmpty {
		return "", newToolError(ToolErrInvalidArguments, nil, "%s must not be empty", key)
	}
	return s, nil
}

func stringSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}
