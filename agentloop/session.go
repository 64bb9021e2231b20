package agentloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinemde/tinyagent/unifiedllm"
)

// LoopState is the lifecycle state of a session.
type LoopState string

const (
	StateIdle           LoopState = "idle"
	StateAwaitingModel  LoopState = "awaiting_model"
	StateExecutingTools LoopState = "executing_tools"
	StateDone           LoopState = "done"
	StateFailed         LoopState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s LoopState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Completer is the one capability the loop needs from a model endpoint.
// *unifiedllm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req unifiedllm.Request) (*unifiedllm.Response, error)
}

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	Model    string `json:"model"`
	Provider string `json:"provider,omitempty"` // empty lets the client infer it from Model
	// MaxRounds caps the number of model requests in one run. 0 = unlimited.
	MaxRounds           int             `json:"max_rounds"`
	RequestTimeout      time.Duration   `json:"request_timeout"`
	MaxTokens           int             `json:"max_tokens,omitempty"` // 0 leaves the provider default
	EnableLoopDetection bool            `json:"enable_loop_detection"`
	LoopDetectionWindow int             `json:"loop_detection_window"`
	Tools               CoreToolOptions `json:"tools"`
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:               unifiedllm.DefaultModel,
		MaxRounds:           50,
		RequestTimeout:      5 * time.Minute,
		EnableLoopDetection: true,
		LoopDetectionWindow: 10,
		Tools:               DefaultCoreToolOptions(),
	}
}

// RunResult summarizes a successful run.
type RunResult struct {
	FinalText string           `json:"final_text"`
	Rounds    int              `json:"rounds"`     // model requests made
	ToolCalls int              `json:"tool_calls"` // tool calls executed
	Usage     unifiedllm.Usage `json:"usage"`
}

// Session drives one prompt through the model/tool loop. A session runs
// exactly once.
type Session struct {
	id     string
	model  Completer
	env    ExecutionEnvironment
	tools  *ToolRegistry
	config SessionConfig
	logger *zap.Logger

	mu    sync.Mutex
	state LoopState
	conv  *Conversation
}

// NewSession creates a session that talks to model and runs tools in env.
// A nil config selects DefaultSessionConfig.
func NewSession(model Completer, env ExecutionEnvironment, config *SessionConfig) *Session {
	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}
	return &Session{
		id:     uuid.New().String(),
		model:  model,
		env:    env,
		tools:  NewCoreToolRegistry(cfg.Tools),
		config: cfg,
		logger: zap.NewNop(),
		state:  StateIdle,
		conv:   NewConversation(),
	}
}

// SetLogger replaces the session's logger. Nil restores the no-op logger.
func (s *Session) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s.logger = logger.With(zap.String("session_id", s.id))
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Tools returns the session's tool registry.
func (s *Session) Tools() *ToolRegistry { return s.tools }

// State returns the current state.
func (s *Session) State() LoopState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Conversation returns a copy of the history.
func (s *Session) Conversation() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Turns()
}

// Run sends prompt to the model and executes the tools it asks for until it
// answers without tool calls. Tool failures are reported back to the model;
// any other failure ends the run in StateFailed and is returned.
func (s *Session) Run(ctx context.Context, prompt string) (*RunResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrSessionUsed
	}
	s.conv.AppendUser(prompt)
	s.mu.Unlock()

	s.transition(StateAwaitingModel)
	result := &RunResult{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(err)
		}
		if s.config.MaxRounds > 0 && result.Rounds >= s.config.MaxRounds {
			return nil, s.fail(&TurnLimitError{Rounds: result.Rounds})
		}

		response, err := s.requestModel(ctx)
		result.Rounds++
		if err != nil {
			return nil, s.fail(fmt.Errorf("model request failed: %w", err))
		}
		result.Usage = result.Usage.Add(response.Usage)

		toolCalls := assignCallIDs(response.ToolCallsFromResponse())
		s.mu.Lock()
		err = s.conv.AppendAssistant(NewAssistantTurn(response.Text(), toolCalls, response.Usage, response.ID))
		s.mu.Unlock()
		if err != nil {
			return nil, s.fail(err)
		}

		if len(toolCalls) == 0 {
			result.FinalText = response.Text()
			s.transition(StateDone)
			return result, nil
		}

		s.transition(StateExecutingTools)
		for _, tc := range toolCalls {
			toolResult := s.executeSingleTool(ctx, tc)
			if err := ctx.Err(); err != nil {
				return nil, s.fail(err)
			}
			s.mu.Lock()
			err := s.conv.AppendToolResult(toolResult)
			s.mu.Unlock()
			if err != nil {
				return nil, s.fail(err)
			}
			result.ToolCalls++
		}

		s.checkForLoop()
		s.transition(StateAwaitingModel)
	}
}

func (s *Session) requestModel(ctx context.Context) (*unifiedllm.Response, error) {
	s.mu.Lock()
	messages := s.conv.Messages()
	s.mu.Unlock()

	request := unifiedllm.Request{
		Model:      s.config.Model,
		Provider:   s.config.Provider,
		Messages:   messages,
		ToolDefs:   s.tools.ToUnifiedLLMToolDefs(),
		ToolChoice: &unifiedllm.ToolChoice{Mode: "auto"},
	}
	if s.config.MaxTokens > 0 {
		maxTokens := s.config.MaxTokens
		request.MaxTokens = &maxTokens
	}

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	start := time.Now()
	response, err := s.model.Complete(ctx, request)
	if err != nil {
		return nil, err
	}
	if response == nil {
		return nil, &unifiedllm.MalformedResponseError{SDKError: unifiedllm.SDKError{Message: "empty response"}}
	}
	s.logger.Debug("model responded",
		zap.Duration("latency", time.Since(start)),
		zap.String("finish_reason", response.FinishReason.Reason),
		zap.Int("tool_calls", len(response.ToolCallsFromResponse())),
	)
	return response, nil
}

// executeSingleTool handles the full tool execution pipeline:
// lookup -> execute -> truncate -> return
func (s *Session) executeSingleTool(ctx context.Context, toolCall unifiedllm.ToolCall) unifiedllm.ToolResult {
	log := s.logger.With(zap.String("tool", toolCall.Name), zap.String("call_id", toolCall.ID))

	registered, err := s.tools.Lookup(toolCall.Name)
	if err != nil {
		log.Warn("unknown tool requested")
		return unifiedllm.ToolResult{
			ToolCallID: toolCall.ID,
			Content:    err.Error(),
			IsError:    true,
		}
	}

	start := time.Now()
	rawOutput, err := registered.Executor(ctx, toolCall.Arguments, s.env)
	if err != nil {
		content := fmt.Sprintf("Tool error (%s): %v", registered.Definition.Name, err)
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			content = toolErr.Error()
			log.Debug("tool failed", zap.String("kind", string(toolErr.Kind)), zap.Error(err))
		} else {
			log.Warn("tool failed", zap.Error(err))
		}
		return unifiedllm.ToolResult{
			ToolCallID: toolCall.ID,
			Content:    content,
			IsError:    true,
		}
	}

	output := TruncateToolOutput(rawOutput, registered)
	log.Debug("tool executed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("output_bytes", len(rawOutput)),
		zap.Bool("truncated", len(output) != len(rawOutput)),
	)

	return unifiedllm.ToolResult{
		ToolCallID: toolCall.ID,
		Content:    output,
	}
}

func (s *Session) checkForLoop() {
	if !s.config.EnableLoopDetection {
		return
	}
	s.mu.Lock()
	turns := s.conv.Turns()
	s.mu.Unlock()
	if DetectLoop(turns, s.config.LoopDetectionWindow) {
		s.logger.Warn("possible loop: recent tool calls repeat a pattern",
			zap.Int("window", s.config.LoopDetectionWindow))
	}
}

func (s *Session) transition(to LoopState) {
	s.mu.Lock()
	from := s.state
	s.state = to
	s.mu.Unlock()
	s.logger.Debug("state transition", zap.String("from", string(from)), zap.String("to", string(to)))
}

// fail moves the session to StateFailed and returns err.
func (s *Session) fail(err error) error {
	s.transition(StateFailed)
	s.logger.Debug("run failed", zap.Error(err))
	return err
}

// assignCallIDs fills in IDs the endpoint left empty.
func assignCallIDs(calls []unifiedllm.ToolCall) []unifiedllm.ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}
	return calls
}
