// Package provider defines the common contract every LLM backend adapter
// implements, the normalized result types, the shared error taxonomy, and
// the tolerant parsing of model output.
package provider

import "context"

// ID identifies a backend. Adapter selection happens through a lookup
// table keyed on ID, so new backends are additions, not edits.
type ID string

const (
	Gemini     ID = "gemini"
	Ollama     ID = "ollama"
	OpenRouter ID = "openrouter"
)

// Known reports whether the id names a registered backend kind.
func (id ID) Known() bool {
	switch id {
	case Gemini, Ollama, OpenRouter:
		return true
	}
	return false
}

// KnownIDs lists the registered backend ids in stable order.
func KnownIDs() []ID {
	return []ID{Gemini, Ollama, OpenRouter}
}

// Exercise is one normalized coping exercise. ID is assigned locally at
// the adapter boundary; model-supplied ids are discarded.
type Exercise struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"` // Mindfulness | Cognitive | Somatic | Behavioral | Grounding
	Steps           []string `json:"steps"`
	DurationMinutes float64  `json:"duration_minutes"`
}

// Source is provenance for a web-search-grounded response.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ExerciseSet is the normalized result of the exercises task. Sources is
// never nil: adapters without grounding support return an empty slice.
type ExerciseSet struct {
	Exercises []Exercise `json:"exercises"`
	Sources   []Source   `json:"sources"`
}

// Adapter is the per-backend translation layer. Each method performs at
// most one outbound HTTP call; no retries happen at this layer.
type Adapter interface {
	// ID returns the backend identifier this adapter serves.
	ID() ID

	// ListModels discovers the models available for the given key.
	// Backends that require a key return a MissingCredential error
	// without touching the network when the key is empty.
	ListModels(ctx context.Context, apiKey string) ([]string, error)

	// GenerateExercises runs the structured exercises task.
	GenerateExercises(ctx context.Context, model, apiKey, system, userPrompt string) (ExerciseSet, error)

	// GenerateText runs a free-text task (journal analysis, for-you
	// suggestion, thought challenge).
	GenerateText(ctx context.Context, model, apiKey, system, userPrompt string) (string, error)

	// GenerateQuotes runs the motivational-quotes task. Unparseable
	// output degrades to an empty list instead of an error.
	GenerateQuotes(ctx context.Context, model, apiKey, system, userPrompt string) ([]string, error)
}
