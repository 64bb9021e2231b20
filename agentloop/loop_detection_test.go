package agentloop

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/martinemde/tinyagent/unifiedllm"
)

func historyWithCalls(commands ...string) []Turn {
	turns := []Turn{NewUserTurn("go")}
	for i, cmd := range commands {
		args, _ := json.Marshal(map[string]string{"command": cmd})
		call := unifiedllm.ToolCall{ID: fmt.Sprintf("call_%d", i), Name: "Bash", Arguments: args}
		turns = append(turns,
			NewAssistantTurn("", []unifiedllm.ToolCall{call}, unifiedllm.Usage{}, ""),
			NewToolResultTurn(unifiedllm.ToolResult{ToolCallID: call.ID, Content: "[exit code: 0]"}),
		)
	}
	return turns
}

func TestDetectLoop(t *testing.T) {
	tests := []struct {
		name     string
		commands []string
		window   int
		want     bool
	}{
		{"same call repeated", []string{"ls", "ls", "ls", "ls"}, 4, true},
		{"alternating pair", []string{"ls", "pwd", "ls", "pwd"}, 4, true},
		{"cycle of three", []string{"a", "b", "c", "a", "b", "c"}, 6, true},
		{"varied calls", []string{"ls", "pwd", "cat x", "ls"}, 4, false},
		{"too few calls", []string{"ls", "ls"}, 4, false},
		{"only recent calls count", []string{"x", "y", "ls", "ls", "ls"}, 3, true},
		{"disabled window", []string{"ls", "ls"}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLoop(historyWithCalls(tt.commands...), tt.window))
		})
	}
}
