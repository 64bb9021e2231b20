// Package agentloop runs a single prompt through a model/tool loop.
//
// The model is offered three tools, Read, Write and Bash. Whenever it
// answers with tool calls, the calls are executed one at a time in the
// order given and their results are appended to the conversation before the
// model is asked again. The loop ends when the model answers without tool
// calls (StateDone) or when something other than a tool fails (StateFailed).
//
// Tool failures, such as a missing file or an unknown tool name, are
// reported to the model as failed results and never end the run. Endpoint
// failures, malformed tool call IDs, cancellation and the round limit do.
//
// # Quick Start
//
//	adapter := unifiedllm.NewOpenAIAdapter("openrouter", apiKey)
//	client := unifiedllm.NewClient(unifiedllm.WithProvider("openrouter", adapter))
//	env := agentloop.NewLocalExecutionEnvironment("/path/to/project")
//	session := agentloop.NewSession(client, env, nil)
//
//	result, err := session.Run(ctx, "Create a hello.py file")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(result.FinalText)
package agentloop
