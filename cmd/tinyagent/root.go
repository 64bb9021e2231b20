package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/martinemde/tinyagent/agentloop"
	"github.com/martinemde/tinyagent/internal/config"
	"github.com/martinemde/tinyagent/unifiedllm"
)

type options struct {
	prompt         string
	configPath     string
	model          string
	baseURL        string
	provider       string
	workDir        string
	maxRounds      int
	maxRetries     int
	timeout        time.Duration
	commandTimeout time.Duration
	maxOutput      int
	verbose        bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "tinyagent -p <prompt>",
		Short: "Run a prompt through a tool-using model",
		Long: `tinyagent sends a prompt to a chat-completions model that may call three
tools: Read, Write and Bash. Tool results are fed back until the model
answers without tool calls; that answer is printed to stdout.

Tools run without sandboxing or confirmation, in the working directory.

The API key is read from OPENROUTER_API_KEY. gollm-<backend> providers use
the backend's own variable (for example ANTHROPIC_API_KEY) unless
gollm_api_key is configured.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrompt(cmd, opts, stdout, stderr)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.prompt, "prompt", "p", "", "Prompt to send to the model (required)")
	flags.StringVar(&opts.configPath, "config", "", "Config file (default: $TINYAGENT_CONFIG or the user config dir)")
	flags.StringVar(&opts.model, "model", "", "Model ID or alias (default "+unifiedllm.DefaultModel+")")
	flags.StringVar(&opts.baseURL, "base-url", "", "Endpoint base URL (or set OPENROUTER_BASE_URL)")
	flags.StringVar(&opts.provider, "provider", "", "Provider: openrouter, openai or gollm-<backend>")
	flags.StringVar(&opts.workDir, "workdir", "", "Directory tools run in (default: current)")
	flags.IntVar(&opts.maxRounds, "max-rounds", 0, "Maximum model requests, 0 for unlimited")
	flags.IntVar(&opts.maxRetries, "max-retries", 0, "Retries for transient model errors")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Timeout for each model request")
	flags.DurationVar(&opts.commandTimeout, "command-timeout", 0, "Timeout for each Bash command")
	flags.IntVar(&opts.maxOutput, "max-output", 0, "Bytes of Bash output captured per command")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	_ = cmd.MarkFlagRequired("prompt")

	cmd.AddCommand(newConfigCmd(stdout))

	return cmd
}

// applyFlags overrides cfg with the flags that were set explicitly.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = opts.model
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = opts.baseURL
	}
	if flags.Changed("provider") {
		cfg.Provider = opts.provider
	}
	if flags.Changed("workdir") {
		cfg.WorkDir = opts.workDir
	}
	if flags.Changed("max-rounds") {
		cfg.MaxRounds = opts.maxRounds
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = opts.maxRetries
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = opts.timeout
	}
	if flags.Changed("command-timeout") {
		cfg.CommandTimeout = opts.commandTimeout
	}
	if flags.Changed("max-output") {
		cfg.MaxOutputBytes = opts.maxOutput
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
}

func runPrompt(cmd *cobra.Command, opts *options, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, opts, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.Level()
	logger := newLogger(stderr, level)
	defer func() { _ = logger.Sync() }()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	env := agentloop.NewLocalExecutionEnvironment(cfg.WorkDir,
		agentloop.WithShell(cfg.Shell),
		agentloop.WithMaxCaptureBytes(cfg.MaxOutputBytes),
	)
	sessionCfg := cfg.SessionConfig()
	session := agentloop.NewSession(client, env, &sessionCfg)
	session.SetLogger(logger)

	logger.Debug("starting run",
		zap.String("provider", sessionCfg.Provider),
		zap.String("model", sessionCfg.Model),
		zap.String("workdir", env.WorkingDirectory()),
		zap.String("shell", env.Shell()),
		zap.Strings("tools", session.Tools().Names()),
	)

	result, err := session.Run(cmd.Context(), opts.prompt)
	if err != nil {
		return err
	}

	logger.Info("run complete",
		zap.Int("rounds", result.Rounds),
		zap.Int("tool_calls", result.ToolCalls),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	)
	_, err = fmt.Fprint(stdout, result.FinalText)
	return err
}

// newClient wires the configured provider adapter behind logging and retry
// middleware.
func newClient(cfg *config.Config, logger *zap.Logger) (*unifiedllm.Client, error) {
	model := unifiedllm.ResolveModelID(cfg.Model)

	var adapter unifiedllm.ProviderAdapter
	if backend, ok := cfg.GollmBackend(); ok {
		// OPENROUTER_API_KEY is not passed on; gollm reads the backend's own
		// variable unless a gollm key is configured.
		gollmOpts := []unifiedllm.GollmAdapterOption{
			unifiedllm.WithModel(model),
			unifiedllm.WithMaxTokens(cfg.MaxTokens),
		}
		if cfg.GollmAPIKey != "" {
			gollmOpts = append(gollmOpts, unifiedllm.WithAPIKey(cfg.GollmAPIKey))
		}
		a, err := unifiedllm.NewGollmAdapter(backend, "", gollmOpts...)
		if err != nil {
			return nil, err
		}
		adapter = a
	} else {
		adapterOpts := []unifiedllm.OpenAIAdapterOption{unifiedllm.WithDefaultModel(model)}
		if cfg.BaseURL != "" {
			adapterOpts = append(adapterOpts, unifiedllm.WithBaseURL(cfg.BaseURL))
		}
		adapter = unifiedllm.NewOpenAIAdapter(cfg.Provider, cfg.APIKey, adapterOpts...)
	}

	return unifiedllm.NewClient(
		unifiedllm.WithProvider(adapter.Name(), adapter),
		unifiedllm.WithDefaultProvider(adapter.Name()),
		unifiedllm.WithMiddleware(
			unifiedllm.LoggingMiddleware(logger),
			unifiedllm.RetryMiddleware(cfg.RetryPolicy()),
		),
	), nil
}

// newLogger builds a console logger on w. Library packages take the logger
// as a dependency and never build their own.
func newLogger(w io.Writer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(w)),
		level,
	)
	return zap.New(core)
}
