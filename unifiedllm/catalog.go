package unifiedllm

// DefaultModel is used when no model is configured.
const DefaultModel = "anthropic/claude-haiku-4.5"

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID            string   `json:"id"`
	Provider      string   `json:"provider"`
	DisplayName   string   `json:"display_name"`
	ContextWindow int      `json:"context_window"`
	SupportsTools bool     `json:"supports_tools"`
	Aliases       []string `json:"aliases,omitempty"`
}

// Models is the built-in model catalog. OpenRouter model IDs carry the
// upstream vendor as a path prefix.
var Models = []ModelInfo{
	// OpenRouter
	{
		ID: "anthropic/claude-haiku-4.5", Provider: "openrouter", DisplayName: "Claude Haiku 4.5",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"haiku", "claude-haiku"},
	},
	{
		ID: "anthropic/claude-sonnet-4.5", Provider: "openrouter", DisplayName: "Claude Sonnet 4.5",
		ContextWindow: 200000, SupportsTools: true,
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "openai/gpt-4o-mini", Provider: "openrouter", DisplayName: "GPT-4o Mini (OpenRouter)",
		ContextWindow: 128000, SupportsTools: true,
	},
	{
		ID: "google/gemini-2.5-flash", Provider: "openrouter", DisplayName: "Gemini 2.5 Flash",
		ContextWindow: 1048576, SupportsTools: true,
		Aliases: []string{"gemini-flash"},
	},

	// OpenAI
	{
		ID: "gpt-4o", Provider: "openai", DisplayName: "GPT-4o",
		ContextWindow: 128000, SupportsTools: true,
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow: 128000, SupportsTools: true,
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// ResolveModelID maps an alias to its canonical ID. Unknown names are
// returned unchanged so any endpoint-supported model can be used.
func ResolveModelID(name string) string {
	if info := GetModelInfo(name); info != nil {
		return info.ID
	}
	return name
}

// ListModels returns all known models, optionally filtered by provider.
func ListModels(provider string) []ModelInfo {
	if provider == "" {
		result := make([]ModelInfo, len(Models))
		copy(result, Models)
		return result
	}
	var result []ModelInfo
	for _, m := range Models {
		if m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// GetLatestModel returns the first model for a provider, optionally
// restricted to tool-capable models.
func GetLatestModel(provider string, capability string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider != provider {
			continue
		}
		switch capability {
		case "":
			return &Models[i]
		case "tools":
			if Models[i].SupportsTools {
				return &Models[i]
			}
		}
	}
	return nil
}
