package unifiedllm

import (
	"testing"
)

func TestGollmAdapterName(t *testing.T) {
	// Construction may fail without network-reachable providers; only the
	// naming contract is checked when it succeeds.
	for _, provider := range []string{"openai", "anthropic"} {
		adapter, err := NewGollmAdapter(provider, "test-key-not-real")
		if err != nil {
			t.Logf("skipping %s adapter creation (expected without real key): %v", provider, err)
			continue
		}
		if adapter.Name() != "gollm-"+provider {
			t.Errorf("expected name %q, got %q", "gollm-"+provider, adapter.Name())
		}
	}
}

func TestGollmAdapterOptions(t *testing.T) {
	cfg := &gollmAdapterConfig{maxTokens: 4096}
	for _, opt := range []GollmAdapterOption{WithAPIKey("sk-ant"), WithModel("claude-haiku-4-5"), WithMaxTokens(0)} {
		opt(cfg)
	}
	if cfg.apiKey != "sk-ant" || cfg.model != "claude-haiku-4-5" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.maxTokens != 4096 {
		t.Errorf("zero max tokens should keep the default, got %d", cfg.maxTokens)
	}
	WithMaxTokens(512)(cfg)
	if cfg.maxTokens != 512 {
		t.Errorf("expected 512 max tokens, got %d", cfg.maxTokens)
	}
}

func TestGollmAdapterTranslateError(t *testing.T) {
	adapter := &GollmAdapter{provider: "gollm-openai"}

	tests := []struct {
		errMsg string
		check  func(error) bool
		want   string
	}{
		{"401 Unauthorized", func(e error) bool { _, ok := e.(*AuthenticationError); return ok }, "AuthenticationError"},
		{"invalid api key", func(e error) bool { _, ok := e.(*AuthenticationError); return ok }, "AuthenticationError"},
		{"403 Forbidden", func(e error) bool { _, ok := e.(*AccessDeniedError); return ok }, "AccessDeniedError"},
		{"404 not found", func(e error) bool { _, ok := e.(*NotFoundError); return ok }, "NotFoundError"},
		{"429 rate limit exceeded", func(e error) bool { _, ok := e.(*RateLimitError); return ok }, "RateLimitError"},
		{"context length exceeded", func(e error) bool { _, ok := e.(*ContextLengthError); return ok }, "ContextLengthError"},
		{"500 internal server error", func(e error) bool { _, ok := e.(*ServerError); return ok }, "ServerError"},
		{"timeout waiting for response", func(e error) bool { _, ok := e.(*RequestTimeoutError); return ok }, "RequestTimeoutError"},
		{"content filter triggered", func(e error) bool { _, ok := e.(*ContentFilterError); return ok }, "ContentFilterError"},
		{"something unknown", func(e error) bool { _, ok := e.(*ProviderError); return ok }, "ProviderError"},
	}

	for _, tt := range tests {
		err := adapter.translateError(errForMsg(tt.errMsg))
		if err == nil {
			t.Errorf("expected non-nil error for %q", tt.errMsg)
			continue
		}
		if !tt.check(err) {
			t.Errorf("for %q: expected %s, got %T", tt.errMsg, tt.want, err)
		}
	}

	if adapter.translateError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

type simpleError struct{ msg string }

func (e *simpleError) Error() string { return e.msg }
func errForMsg(msg string) error     { return &simpleError{msg: msg} }

func TestGollmAdapterSupportsToolChoice(t *testing.T) {
	adapter := &GollmAdapter{provider: "gollm-openai"}

	for _, mode := range []string{"auto", "none", "required"} {
		if !adapter.SupportsToolChoice(mode) {
			t.Errorf("expected %s to be supported", mode)
		}
	}
	if adapter.SupportsToolChoice("named") {
		t.Error("expected named to not be supported")
	}
}

func TestParseToolCalls(t *testing.T) {
	text := `I'll read the file first.
[{"name": "Read", "arguments": {"file_path": "notes.txt"}}, {"name": "Bash", "arguments": {"command": "ls"}}]`

	calls, remaining := parseToolCalls(text)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Name != "Read" || calls[1].Name != "Bash" {
		t.Errorf("unexpected call names %q, %q", calls[0].Name, calls[1].Name)
	}
	if calls[0].ID == "" || calls[0].ID == calls[1].ID {
		t.Errorf("expected distinct non-empty IDs, got %q and %q", calls[0].ID, calls[1].ID)
	}
	if remaining != "I'll read the file first." {
		t.Errorf("unexpected remaining text %q", remaining)
	}
}

func TestParseToolCallsPlainText(t *testing.T) {
	calls, remaining := parseToolCalls("The answer is 4.")
	if len(calls) != 0 {
		t.Errorf("expected no calls, got %d", len(calls))
	}
	if remaining != "The answer is 4." {
		t.Errorf("expected text untouched, got %q", remaining)
	}
}

func TestGollmBuildResponse(t *testing.T) {
	adapter := &GollmAdapter{provider: "gollm-openai", model: "gpt-4o-mini"}

	resp := adapter.buildResponse(Request{}, `[{"name": "Bash", "arguments": {"command": "pwd"}}]`)
	if resp.FinishReason.Reason != "tool_calls" {
		t.Errorf("expected finish reason tool_calls, got %q", resp.FinishReason.Reason)
	}
	if len(resp.ToolCallsFromResponse()) != 1 {
		t.Errorf("expected 1 tool call")
	}
	if resp.Model != "gpt-4o-mini" {
		t.Errorf("expected default model, got %q", resp.Model)
	}

	resp = adapter.buildResponse(Request{Model: "gpt-4o"}, "done")
	if resp.Text() != "done" || resp.FinishReason.Reason != "stop" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestEstimateTokens(t *testing.T) {
	req := Request{
		Messages: []Message{
			UserMessage("Hello world, this is a test message."),
			ToolResultMessage("call_1", "some longer tool output text here", false),
		},
	}
	tokens := estimateTokens(req)
	if tokens <= 0 {
		t.Errorf("expected positive token estimate, got %d", tokens)
	}
}

func TestEstimateTokensEmpty(t *testing.T) {
	req := Request{Messages: []Message{}}
	tokens := estimateTokens(req)
	if tokens != 10 {
		t.Errorf("expected default token estimate of 10, got %d", tokens)
	}
}
