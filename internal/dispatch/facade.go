// Package dispatch routes generation tasks to provider adapters. All
// call parameters arrive explicitly; nothing is read from ambient state,
// and the only retry policy in the system lives here: exercises and
// quotes fall back once to the default provider, every other task
// propagates the original failure untouched.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/havenmind/haven/internal/knowledge"
	"github.com/havenmind/haven/internal/prompt"
	"github.com/havenmind/haven/internal/provider"
)

// retrievalTopK is how many knowledge chunks augment an exercises prompt.
const retrievalTopK = 3

// Validation failures, raised before any adapter is touched.
var (
	ErrEmptySymptoms = errors.New("symptoms must not be empty")
	ErrEmptyEntry    = errors.New("journal entry must not be empty")
	ErrEmptyThought  = errors.New("thought must not be empty")
	ErrEmptyLanguage = errors.New("language must not be empty")
	ErrBadConsent    = errors.New("unknown consent level")
)

// Call carries the per-request provider selection. Persistence of these
// values is a caller concern; the facade only consumes them.
type Call struct {
	Provider provider.ID
	Model    string
	APIKey   string
	Language string
}

// Facade routes tasks to adapters by provider id.
type Facade struct {
	adapters      map[provider.ID]provider.Adapter
	defaultID     provider.ID
	defaultModel  string
	corpus        []knowledge.Chunk
	now           func() time.Time
	logger        *slog.Logger
}

// Option configures a Facade.
type Option func(*Facade)

// WithClock injects the clock used for time-of-day tone bucketing.
func WithClock(now func() time.Time) Option {
	return func(f *Facade) { f.now = now }
}

// WithCorpus replaces the built-in knowledge base.
func WithCorpus(corpus []knowledge.Chunk) Option {
	return func(f *Facade) { f.corpus = corpus }
}

// New creates a Facade over the given adapters. defaultID names the
// provider used both for unknown ids and for the fallback retry;
// defaultModel is the model the fallback runs with.
func New(adapters []provider.Adapter, defaultID provider.ID, defaultModel string, opts ...Option) *Facade {
	registry := make(map[provider.ID]provider.Adapter, len(adapters))
	for _, a := range adapters {
		registry[a.ID()] = a
	}
	f := &Facade{
		adapters:     registry,
		defaultID:    defaultID,
		defaultModel: defaultModel,
		corpus:       knowledge.MustCorpus(),
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// adapterFor resolves the adapter for id. Unknown ids resolve to the
// default provider so stale persisted settings degrade instead of
// erroring.
func (f *Facade) adapterFor(id provider.ID) (provider.Adapter, error) {
	if a, ok := f.adapters[id]; ok {
		return a, nil
	}
	f.logger.Warn("unknown provider id, routing to default", "provider", id, "default", f.defaultID)
	if a, ok := f.adapters[f.defaultID]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("no adapter registered for default provider %q", f.defaultID)
}

func validateCall(call Call) error {
	if call.Language == "" {
		return ErrEmptyLanguage
	}
	return nil
}

// PersonalizedExercises retrieves matching knowledge chunks, builds the
// exercises prompt, and dispatches it. On failure against a non-default
// provider it retries exactly once against the default provider.
func (f *Facade) PersonalizedExercises(ctx context.Context, call Call, symptoms string, profile prompt.UserProfile, consent prompt.ConsentLevel, feedback prompt.FeedbackMap) (provider.ExerciseSet, error) {
	if err := validateCall(call); err != nil {
		return provider.ExerciseSet{}, err
	}
	if symptoms == "" {
		return provider.ExerciseSet{}, ErrEmptySymptoms
	}
	if !consent.Valid() {
		return provider.ExerciseSet{}, ErrBadConsent
	}

	docs := knowledge.Retrieve(symptoms, f.corpus, retrievalTopK)
	system, user := prompt.Exercises(symptoms, profile, consent, feedback, call.Language, docs)

	adapter, err := f.adapterFor(call.Provider)
	if err != nil {
		return provider.ExerciseSet{}, err
	}

	set, err := adapter.GenerateExercises(ctx, call.Model, call.APIKey, system, user)
	if err == nil {
		return set, nil
	}

	fallback, ok := f.fallbackAdapter(adapter)
	if !ok {
		return provider.ExerciseSet{}, err
	}
	f.logger.Warn("exercises generation failed, retrying on default provider",
		"provider", adapter.ID(), "default", f.defaultID, "error", err)
	return fallback.GenerateExercises(ctx, f.defaultModel, call.APIKey, system, user)
}

// JournalAnalysis dispatches the journal task. Failures propagate
// unchanged: no fallback applies here.
func (f *Facade) JournalAnalysis(ctx context.Context, call Call, entry string) (string, error) {
	if err := validateCall(call); err != nil {
		return "", err
	}
	if entry == "" {
		return "", ErrEmptyEntry
	}

	system, user := prompt.JournalAnalysis(entry, call.Language)
	adapter, err := f.adapterFor(call.Provider)
	if err != nil {
		return "", err
	}
	return adapter.GenerateText(ctx, call.Model, call.APIKey, system, user)
}

// ForYouSuggestion dispatches the "for you" task using the facade clock
// for tone bucketing. No fallback applies here.
func (f *Facade) ForYouSuggestion(ctx context.Context, call Call, profile prompt.UserProfile, consent prompt.ConsentLevel) (string, error) {
	if err := validateCall(call); err != nil {
		return "", err
	}
	if !consent.Valid() {
		return "", ErrBadConsent
	}

	system, user := prompt.ForYouSuggestion(profile, consent, call.Language, f.now())
	adapter, err := f.adapterFor(call.Provider)
	if err != nil {
		return "", err
	}
	return adapter.GenerateText(ctx, call.Model, call.APIKey, system, user)
}

// ThoughtChallengeHelp dispatches the Socratic-questions task. No
// fallback applies here.
func (f *Facade) ThoughtChallengeHelp(ctx context.Context, call Call, thought string) (string, error) {
	if err := validateCall(call); err != nil {
		return "", err
	}
	if thought == "" {
		return "", ErrEmptyThought
	}

	system, user := prompt.ThoughtChallenge(thought, call.Language)
	adapter, err := f.adapterFor(call.Provider)
	if err != nil {
		return "", err
	}
	return adapter.GenerateText(ctx, call.Model, call.APIKey, system, user)
}

// MotivationalQuotes dispatches the quotes task, falling back once to
// the default provider on failure like the exercises task.
func (f *Facade) MotivationalQuotes(ctx context.Context, call Call) ([]string, error) {
	if err := validateCall(call); err != nil {
		return nil, err
	}

	system, user := prompt.Quotes(call.Language)
	adapter, err := f.adapterFor(call.Provider)
	if err != nil {
		return nil, err
	}

	quotes, err := adapter.GenerateQuotes(ctx, call.Model, call.APIKey, system, user)
	if err == nil {
		return quotes, nil
	}

	fallback, ok := f.fallbackAdapter(adapter)
	if !ok {
		return nil, err
	}
	f.logger.Warn("quotes generation failed, retrying on default provider",
		"provider", adapter.ID(), "default", f.defaultID, "error", err)
	return fallback.GenerateQuotes(ctx, f.defaultModel, call.APIKey, system, user)
}

// ListModels exposes discovery for the diagnostics and settings surfaces.
func (f *Facade) ListModels(ctx context.Context, id provider.ID, apiKey string) ([]string, error) {
	adapter, err := f.adapterFor(id)
	if err != nil {
		return nil, err
	}
	return adapter.ListModels(ctx, apiKey)
}

// Adapter resolves the adapter for id, falling back to the default for
// unknown ids.
func (f *Facade) Adapter(id provider.ID) (provider.Adapter, error) {
	return f.adapterFor(id)
}

// DefaultProvider returns the configured default provider id.
func (f *Facade) DefaultProvider() provider.ID { return f.defaultID }

// fallbackAdapter returns the default adapter when the failed adapter is
// not already the default; otherwise there is nothing left to try.
func (f *Facade) fallbackAdapter(failed provider.Adapter) (provider.Adapter, bool) {
	if failed.ID() == f.defaultID {
		return nil, false
	}
	a, ok := f.adapters[f.defaultID]
	return a, ok
}
