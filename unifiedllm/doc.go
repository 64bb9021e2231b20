// Package unifiedllm is the model-endpoint boundary for tinyagent. It presents
// a provider-agnostic chat-completions interface with tool calling, and keeps
// wire formats out of the agent loop.
//
// # Architecture
//
//   - ProviderAdapter: one backend (OpenAI-compatible HTTP via go-openai, or gollm)
//   - Client: routes requests to adapters and applies middleware
//   - Middleware: retry with backoff, structured logging
//   - Errors: a typed taxonomy so callers can tell retryable failures apart
//
// # Quick Start
//
//	adapter := unifiedllm.NewOpenAIAdapter("openrouter", os.Getenv("OPENROUTER_API_KEY"),
//	    unifiedllm.WithBaseURL("https://openrouter.ai/api/v1"))
//	client := unifiedllm.NewClient(
//	    unifiedllm.WithProvider("openrouter", adapter),
//	    unifiedllm.WithMiddleware(unifiedllm.RetryMiddleware(unifiedllm.DefaultRetryPolicy())),
//	)
//
//	resp, _ := client.Complete(ctx, unifiedllm.Request{
//	    Model:    "anthropic/claude-haiku-4.5",
//	    Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hello")},
//	})
//	fmt.Print(resp.Text())
//
// # Tool Calling
//
// Tools are advertised through Request.ToolDefs. Calls come back on the
// assistant message and are answered with ToolResultMessage, one per call:
//
//	for _, call := range resp.ToolCallsFromResponse() {
//	    msgs = append(msgs, unifiedllm.ToolResultMessage(call.ID, "72F and sunny", false))
//	}
package unifiedllm
