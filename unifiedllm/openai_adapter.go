package unifiedllm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// OpenRouterBaseURL is the default endpoint for the openrouter provider.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// EmptyToolResultContent stands in for a tool result with no output.
const EmptyToolResultContent = "(empty)"

// OpenAIAdapter talks to any OpenAI-compatible chat-completions endpoint
// (OpenAI itself, OpenRouter, local gateways) through go-openai.
type OpenAIAdapter struct {
	provider string
	client   *openai.Client
	model    string
}

// OpenAIAdapterOption configures an OpenAIAdapter.
type OpenAIAdapterOption func(*openaiAdapterConfig)

type openaiAdapterConfig struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

// WithBaseURL points the adapter at a different endpoint.
func WithBaseURL(url string) OpenAIAdapterOption {
	return func(c *openaiAdapterConfig) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) OpenAIAdapterOption {
	return func(c *openaiAdapterConfig) {
		c.httpClient = hc
	}
}

// WithDefaultModel sets the model used when a request does not name one.
func WithDefaultModel(model string) OpenAIAdapterOption {
	return func(c *openaiAdapterConfig) {
		c.model = model
	}
}

// NewOpenAIAdapter creates an adapter for the named provider. The
// "openrouter" provider defaults to OpenRouterBaseURL.
func NewOpenAIAdapter(provider, apiKey string, opts ...OpenAIAdapterOption) *OpenAIAdapter {
	cfg := &openaiAdapterConfig{}
	if provider == "openrouter" {
		cfg.baseURL = OpenRouterBaseURL
	}
	for _, opt := range opts {
		opt(cfg)
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		clientConfig.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		clientConfig.HTTPClient = cfg.httpClient
	}

	model := cfg.model
	if model == "" {
		if info := GetLatestModel(provider, "tools"); info != nil {
			model = info.ID
		}
	}

	return &OpenAIAdapter{
		provider: provider,
		client:   openai.NewClientWithConfig(clientConfig),
		model:    model,
	}
}

// Name returns the provider identifier.
func (a *OpenAIAdapter) Name() string {
	return a.provider
}

// SupportsToolChoice reports whether the adapter supports a particular tool choice mode.
func (a *OpenAIAdapter) SupportsToolChoice(mode string) bool {
	switch mode {
	case "auto", "none", "required", "named":
		return true
	default:
		return false
	}
}

// Complete sends a blocking chat-completions request.
func (a *OpenAIAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	creq, err := a.translateRequest(req)
	if err != nil {
		return nil, err
	}

	cresp, err := a.client.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, a.translateError(ctx, err)
	}

	return a.translateResponse(cresp)
}

// translateRequest converts a unified Request into a go-openai request.
func (a *OpenAIAdapter) translateRequest(req Request) (openai.ChatCompletionRequest, error) {
	model := req.Model
	if model == "" {
		model = a.model
	}
	if model == "" {
		return openai.ChatCompletionRequest{}, NewConfigurationError("no model specified for provider %q", a.provider)
	}

	creq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.TextContent(),
			})
		case RoleUser:
			creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.TextContent(),
			})
		case RoleAssistant:
			out := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.TextContent(),
			}
			for _, tc := range msg.ToolCalls() {
				args := string(tc.Arguments)
				if args == "" {
					args = "{}"
				}
				out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: args,
					},
				})
			}
			creq.Messages = append(creq.Messages, out)
		case RoleTool:
			result := msg.ToolResult()
			if result == nil {
				return openai.ChatCompletionRequest{}, &InvalidRequestError{ProviderError: ProviderError{
					SDKError: SDKError{Message: "tool message without a tool result"},
					Provider: a.provider,
				}}
			}
			content := result.Content
			if content == "" {
				// Endpoints reject tool messages without content.
				content = EmptyToolResultContent
			}
			creq.Messages = append(creq.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    content,
				ToolCallID: result.ToolCallID,
			})
		default:
			return openai.ChatCompletionRequest{}, &InvalidRequestError{ProviderError: ProviderError{
				SDKError: SDKError{Message: fmt.Sprintf("unsupported message role %q", msg.Role)},
				Provider: a.provider,
			}}
		}
	}

	for _, t := range req.ToolDefs {
		creq.Tools = append(creq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	if req.ToolChoice != nil && len(creq.Tools) > 0 {
		switch req.ToolChoice.Mode {
		case "named":
			creq.ToolChoice = openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: req.ToolChoice.ToolName},
			}
		case "":
		default:
			creq.ToolChoice = req.ToolChoice.Mode
		}
	}

	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}
	if req.MaxTokens != nil {
		creq.MaxTokens = *req.MaxTokens
	}

	return creq, nil
}

// translateResponse converts the first choice of a chat completion into a
// unified Response.
func (a *OpenAIAdapter) translateResponse(cresp openai.ChatCompletionResponse) (*Response, error) {
	if len(cresp.Choices) == 0 {
		return nil, &MalformedResponseError{SDKError: SDKError{Message: "no choices in response"}}
	}
	choice := cresp.Choices[0]

	var parts []ContentPart
	if choice.Message.Content != "" {
		parts = append(parts, TextPart(choice.Message.Content))
	}
	for _, tc := range choice.Message.ToolCalls {
		if tc.Function.Name == "" {
			return nil, &MalformedResponseError{SDKError: SDKError{
				Message: fmt.Sprintf("tool call %q has no function name", tc.ID),
			}}
		}
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		parts = append(parts, ToolCallPart(tc.ID, tc.Function.Name, args))
	}

	id := cresp.ID
	if id == "" {
		id = "resp_" + uuid.New().String()[:8]
	}

	return &Response{
		ID:       id,
		Model:    cresp.Model,
		Provider: a.provider,
		Message: Message{
			Role:    RoleAssistant,
			Content: parts,
		},
		FinishReason: translateFinishReason(string(choice.FinishReason)),
		Usage: Usage{
			InputTokens:  cresp.Usage.PromptTokens,
			OutputTokens: cresp.Usage.CompletionTokens,
			TotalTokens:  cresp.Usage.TotalTokens,
		},
	}, nil
}

func translateFinishReason(raw string) FinishReason {
	switch raw {
	case "stop", "length", "tool_calls", "content_filter":
		return FinishReason{Reason: raw, Raw: raw}
	case "function_call":
		return FinishReason{Reason: "tool_calls", Raw: raw}
	case "":
		return FinishReason{Reason: "other"}
	default:
		return FinishReason{Reason: "other", Raw: raw}
	}
}

// translateError converts a go-openai or transport error into the unified
// error hierarchy.
func (a *OpenAIAdapter) translateError(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
		return withCause(ErrorFromStatusCode(apiErr.HTTPStatusCode, apiErr.Message, a.provider, code, nil), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return withCause(ErrorFromStatusCode(reqErr.HTTPStatusCode, msg, a.provider, "", nil), err)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &RequestTimeoutError{SDKError: SDKError{Message: "model request timed out", Cause: err}}
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		return &AbortError{SDKError: SDKError{Message: "model request cancelled", Cause: err}}
	default:
		return &NetworkError{SDKError: SDKError{Message: "could not reach " + a.provider, Cause: err}}
	}
}

// withCause attaches the original error to a classified one so callers can
// still reach the wire-level detail with errors.As.
func withCause(classified, cause error) error {
	switch e := classified.(type) {
	case *InvalidRequestError:
		e.Cause = cause
	case *AuthenticationError:
		e.Cause = cause
	case *QuotaExceededError:
		e.Cause = cause
	case *AccessDeniedError:
		e.Cause = cause
	case *NotFoundError:
		e.Cause = cause
	case *RequestTimeoutError:
		e.Cause = cause
	case *ContextLengthError:
		e.Cause = cause
	case *RateLimitError:
		e.Cause = cause
	case *ServerError:
		e.Cause = cause
	case *ProviderError:
		e.Cause = cause
	}
	return classified
}
