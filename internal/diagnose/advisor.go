package diagnose

import (
	"context"

	"github.com/havenmind/haven/internal/provider"
	"github.com/havenmind/haven/internal/provider/ollama"
)

// recommended holds a short curated list per provider, best default
// first. It intentionally stays smaller than the full catalogs: the
// settings UI shows it to users who have no opinion about models yet.
var recommended = map[provider.ID][]string{
	provider.Gemini: {
		"gemini-2.5-flash",
		"gemini-2.5-pro",
	},
	provider.Ollama: {
		ollama.FallbackLocalModel,
		"gpt-oss:20b-cloud",
	},
	provider.OpenRouter: {
		"openai/gpt-4o-mini",
		"anthropic/claude-3.5-haiku",
	},
}

// RecommendedModels returns the curated model list for a provider. The
// first entry is the suggested default.
func RecommendedModels(id provider.ID) []string {
	src := recommended[id]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// ValidateModel reports whether a model name appears in the provider's
// current model list. Discovery errors propagate so the caller can tell
// "unknown model" apart from "could not check".
func ValidateModel(ctx context.Context, a provider.Adapter, apiKey, model string) (bool, error) {
	models, err := a.ListModels(ctx, apiKey)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m == model {
			return true, nil
		}
	}
	return false, nil
}

// FallbackSuggestion picks a replacement model when the requested one
// cannot be used. A cloud-tier Ollama model without a key maps to the
// local fallback; anything else maps to the first recommended model
// that differs from the request.
func FallbackSuggestion(id provider.ID, model, apiKey string) string {
	if id == provider.Ollama && ollama.IsCloudModel(model) && apiKey == "" {
		return ollama.FallbackLocalModel
	}
	for _, m := range RecommendedModels(id) {
		if m != model {
			return m
		}
	}
	return model
}
