package agentloop

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/tinyagent/unifiedllm"
)

func call(id, name, args string) unifiedllm.ToolCall {
	return unifiedllm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func assistantWith(calls ...unifiedllm.ToolCall) Turn {
	return NewAssistantTurn("", calls, unifiedllm.Usage{}, "")
}

func requireInvalidToolCall(t *testing.T, err error) {
	t.Helper()
	var invalid *unifiedllm.InvalidToolCallError
	require.True(t, errors.As(err, &invalid), "expected *InvalidToolCallError, got %T: %v", err, err)
}

func TestConversationAppendOrder(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("prompt")
	require.NoError(t, conv.AppendAssistant(assistantWith(call("c1", "Read", `{"file_path":"a"}`))))
	require.NoError(t, conv.AppendToolResult(unifiedllm.ToolResult{ToolCallID: "c1", Content: "A"}))
	require.NoError(t, conv.AppendAssistant(NewAssistantTurn("final", nil, unifiedllm.Usage{}, "resp")))

	turns := conv.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, TurnUser, turns[0].Kind)
	assert.Equal(t, TurnAssistant, turns[1].Kind)
	assert.Equal(t, TurnToolResult, turns[2].Kind)
	assert.Equal(t, "A", turns[2].TextContent())
	assert.Equal(t, "final", turns[3].TextContent())

	// Turns returns a copy.
	turns[0].User = &UserTurn{Content: "changed"}
	assert.Equal(t, "prompt", conv.Turns()[0].TextContent())
}

func TestConversationRejectsDuplicateIDsInOneResponse(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("prompt")

	err := conv.AppendAssistant(assistantWith(call("c1", "Read", `{}`), call("c1", "Bash", `{}`)))
	requireInvalidToolCall(t, err)
	assert.Equal(t, 1, conv.Len(), "nothing appended on failure")
}

func TestConversationRejectsReusedIDs(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("prompt")
	require.NoError(t, conv.AppendAssistant(assistantWith(call("c1", "Read", `{}`))))
	require.NoError(t, conv.AppendToolResult(unifiedllm.ToolResult{ToolCallID: "c1", Content: "x"}))

	err := conv.AppendAssistant(assistantWith(call("c1", "Read", `{}`)))
	requireInvalidToolCall(t, err)
}

func TestConversationRejectsEmptyIDs(t *testing.T) {
	conv := NewConversation()
	err := conv.AppendAssistant(assistantWith(call("", "Read", `{}`)))
	requireInvalidToolCall(t, err)
}

func TestConversationToolResultMustAnswerPendingCall(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("prompt")
	require.NoError(t, conv.AppendAssistant(assistantWith(call("c1", "Read", `{}`))))

	requireInvalidToolCall(t, conv.AppendToolResult(unifiedllm.ToolResult{ToolCallID: "nope"}))
	require.NoError(t, conv.AppendToolResult(unifiedllm.ToolResult{ToolCallID: "c1"}))
	requireInvalidToolCall(t, conv.AppendToolResult(unifiedllm.ToolResult{ToolCallID: "c1"}))
}

func TestConversationAppendAssistantRejectsOtherKinds(t *testing.T) {
	conv := NewConversation()
	assert.Error(t, conv.AppendAssistant(NewUserTurn("hi")))
}

func TestConversationMessages(t *testing.T) {
	conv := NewConversation()
	conv.AppendUser("prompt")
	require.NoError(t, conv.AppendAssistant(assistantWith(
		call("c1", "Write", `{"file_path":"a","content":"b"}`),
		call("c2", "Read", `{"file_path":"a"}`),
	)))
	require.NoError(t, conv.AppendToolResult(unifiedllm.ToolResult{ToolCallID: "c1", Content: "ok"}))
	require.NoError(t, conv.AppendToolResult(unifiedllm.ToolResult{ToolCallID: "c2", Content: "boom", IsError: true}))
	require.NoError(t, conv.AppendAssistant(NewAssistantTurn("done", nil, unifiedllm.Usage{}, "")))

	msgs := conv.Messages()
	require.Len(t, msgs, 5)

	assert.Equal(t, unifiedllm.RoleUser, msgs[0].Role)
	assert.Equal(t, "prompt", msgs[0].TextContent())

	assert.Equal(t, unifiedllm.RoleAssistant, msgs[1].Role)
	calls := msgs[1].ToolCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, "c1", calls[0].ID)
	assert.Equal(t, "Read", calls[1].Name)

	assert.Equal(t, unifiedllm.RoleTool, msgs[2].Role)
	require.NotNil(t, msgs[3].ToolResult())
	assert.Equal(t, "c2", msgs[3].ToolResult().ToolCallID)
	assert.True(t, msgs[3].ToolResult().IsError)

	assert.Equal(t, "done", msgs[4].TextContent())
}
