package agentloop

import (
	"fmt"
	"time"

	"github.com/martinemde/tinyagent/unifiedllm"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser       TurnKind = "user"
	TurnAssistant  TurnKind = "assistant"
	TurnToolResult TurnKind = "tool_result"
)

// Turn is a single entry in the conversation history.
type Turn struct {
	Kind       TurnKind        `json:"kind"`
	Timestamp  time.Time       `json:"timestamp"`
	User       *UserTurn       `json:"user,omitempty"`
	Assistant  *AssistantTurn  `json:"assistant,omitempty"`
	ToolResult *ToolResultTurn `json:"tool_result,omitempty"`
}

// UserTurn holds user input.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds the model's response. Content may be empty when the
// turn carries tool calls.
type AssistantTurn struct {
	Content    string                `json:"content"`
	ToolCalls  []unifiedllm.ToolCall `json:"tool_calls,omitempty"`
	Usage      unifiedllm.Usage      `json:"usage"`
	ResponseID string                `json:"response_id,omitempty"`
}

// ToolResultTurn answers exactly one tool call.
type ToolResultTurn struct {
	Result unifiedllm.ToolResult `json:"result"`
}

// NewUserTurn creates a Turn wrapping user input.
func NewUserTurn(content string) Turn {
	return Turn{
		Kind:      TurnUser,
		Timestamp: time.Now(),
		User:      &UserTurn{Content: content},
	}
}

// NewAssistantTurn creates a Turn wrapping an assistant response.
func NewAssistantTurn(content string, toolCalls []unifiedllm.ToolCall, usage unifiedllm.Usage, responseID string) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &AssistantTurn{
			Content:    content,
			ToolCalls:  toolCalls,
			Usage:      usage,
			ResponseID: responseID,
		},
	}
}

// NewToolResultTurn creates a Turn wrapping a single tool result.
func NewToolResultTurn(result unifiedllm.ToolResult) Turn {
	return Turn{
		Kind:       TurnToolResult,
		Timestamp:  time.Now(),
		ToolResult: &ToolResultTurn{Result: result},
	}
}

// TextContent returns the text content of a turn regardless of its kind.
func (t Turn) TextContent() string {
	switch t.Kind {
	case TurnUser:
		if t.User != nil {
			return t.User.Content
		}
	case TurnAssistant:
		if t.Assistant != nil {
			return t.Assistant.Content
		}
	case TurnToolResult:
		if t.ToolResult != nil {
			return t.ToolResult.Result.Content
		}
	}
	return ""
}

// Conversation is the append-only history of one session. Every tool call
// ID in it is unique, and every tool result answers exactly one earlier,
// still-unanswered call.
type Conversation struct {
	turns []Turn
	// calls maps each issued call ID to whether it has been answered.
	calls map[string]bool
}

// NewConversation returns an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{calls: make(map[string]bool)}
}

// AppendUser appends a user message.
func (c *Conversation) AppendUser(content string) {
	c.turns = append(c.turns, NewUserTurn(content))
}

// AppendAssistant validates the call IDs of an assistant turn and appends
// it. Nothing is appended when validation fails.
func (c *Conversation) AppendAssistant(turn Turn) error {
	if turn.Kind != TurnAssistant || turn.Assistant == nil {
		return fmt.Errorf("append assistant: turn kind %q", turn.Kind)
	}
	if err := c.CheckCallIDs(turn.Assistant.ToolCalls); err != nil {
		return err
	}
	for _, tc := range turn.Assistant.ToolCalls {
		c.calls[tc.ID] = false
	}
	c.turns = append(c.turns, turn)
	return nil
}

// CheckCallIDs reports an InvalidToolCallError if any call has an empty ID,
// repeats an ID within calls, or reuses an ID already in the conversation.
func (c *Conversation) CheckCallIDs(calls []unifiedllm.ToolCall) error {
	seen := make(map[string]bool, len(calls))
	for _, tc := range calls {
		switch {
		case tc.ID == "":
			return invalidToolCall("tool call %q has no id", tc.Name)
		case seen[tc.ID]:
			return invalidToolCall("duplicate tool call id %q in one response", tc.ID)
		}
		if _, used := c.calls[tc.ID]; used {
			return invalidToolCall("tool call id %q was already used in this conversation", tc.ID)
		}
		seen[tc.ID] = true
	}
	return nil
}

// AppendToolResult appends the answer to a pending tool call.
func (c *Conversation) AppendToolResult(result unifiedllm.ToolResult) error {
	answered, issued := c.calls[result.ToolCallID]
	if !issued {
		return invalidToolCall("tool result for unknown call id %q", result.ToolCallID)
	}
	if answered {
		return invalidToolCall("tool call id %q already has a result", result.ToolCallID)
	}
	c.calls[result.ToolCallID] = true
	c.turns = append(c.turns, NewToolResultTurn(result))
	return nil
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	return len(c.turns)
}

// Turns returns a copy of the history.
func (c *Conversation) Turns() []Turn {
	h := make([]Turn, len(c.turns))
	copy(h, c.turns)
	return h
}

// Messages converts the history into endpoint messages.
func (c *Conversation) Messages() []unifiedllm.Message {
	messages := make([]unifiedllm.Message, 0, len(c.turns))
	for _, turn := range c.turns {
		switch turn.Kind {
		case TurnUser:
			messages = append(messages, unifiedllm.UserMessage(turn.User.Content))
		case TurnAssistant:
			if len(turn.Assistant.ToolCalls) == 0 {
				messages = append(messages, unifiedllm.AssistantMessage(turn.Assistant.Content))
				continue
			}
			messages = append(messages,
				unifiedllm.AssistantToolCallMessage(turn.Assistant.Content, turn.Assistant.ToolCalls))
		case TurnToolResult:
			r := turn.ToolResult.Result
			messages = append(messages, unifiedllm.ToolResultMessage(r.ToolCallID, r.Content, r.IsError))
		}
	}
	return messages
}

func invalidToolCall(format string, args ...interface{}) *unifiedllm.InvalidToolCallError {
	return &unifiedllm.InvalidToolCallError{SDKError: unifiedllm.SDKError{Message: fmt.Sprintf(format, args...)}}
}
