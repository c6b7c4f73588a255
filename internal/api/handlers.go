// Package api exposes the orchestration layer over REST and MCP. All
// responses are JSON; provider failures are translated into stable
// status codes with user-safe messages, and raw provider bodies never
// pass through.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/havenmind/haven/internal/diagnose"
	"github.com/havenmind/haven/internal/dispatch"
	"github.com/havenmind/haven/internal/prompt"
	"github.com/havenmind/haven/internal/provider"
	"github.com/havenmind/haven/internal/provider/ollama"
	"github.com/havenmind/haven/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Orchestrator is the slice of the dispatch facade the handlers need.
// *dispatch.Facade satisfies it; tests substitute a stub.
type Orchestrator interface {
	PersonalizedExercises(ctx context.Context, call dispatch.Call, symptoms string, profile prompt.UserProfile, consent prompt.ConsentLevel, feedback prompt.FeedbackMap) (provider.ExerciseSet, error)
	JournalAnalysis(ctx context.Context, call dispatch.Call, entry string) (string, error)
	ForYouSuggestion(ctx context.Context, call dispatch.Call, profile prompt.UserProfile, consent prompt.ConsentLevel) (string, error)
	ThoughtChallengeHelp(ctx context.Context, call dispatch.Call, thought string) (string, error)
	MotivationalQuotes(ctx context.Context, call dispatch.Call) ([]string, error)
	ListModels(ctx context.Context, id provider.ID, apiKey string) ([]string, error)
	Adapter(id provider.ID) (provider.Adapter, error)
	DefaultProvider() provider.ID
}

// Settings keys the handlers read and write.
const (
	settingProvider = "provider"
	settingLanguage = "language"
	settingConsent  = "consent"
	settingProfile  = "profile"
)

func settingModel(id provider.ID) string  { return "model." + string(id) }
func settingAPIKey(id provider.ID) string { return "api_key." + string(id) }

// Deps holds what the REST handlers need.
type Deps struct {
	Orchestrator Orchestrator
	Store        *storage.Store
	Token        string
}

// NewHandler builds the REST router. All /v1 routes sit behind bearer
// auth when a token is configured.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/exercises", handleExercises(deps))
		r.Post("/journal", handleJournal(deps))
		r.Post("/suggestions", handleSuggestion(deps))
		r.Post("/thoughts", handleThought(deps))
		r.Post("/quotes", handleQuotes(deps))

		r.Get("/providers", handleListProviders(deps))
		r.Get("/providers/{provider}/models", handleProviderModels(deps))
		r.Get("/providers/{provider}/diagnose", handleProviderDiagnose(deps))
		r.Get("/providers/{provider}/setup", handleProviderSetup(deps))
		r.Get("/providers/{provider}/recommended-models", handleRecommendedModels(deps))
		r.Get("/providers/{provider}/validate-model", handleValidateModel(deps))
		r.Get("/providers/{provider}/fallback-suggestion", handleFallbackSuggestion(deps))
		r.Get("/diagnose", handleDiagnoseAll(deps))

		r.Get("/settings", handleGetSettings(deps))
		r.Put("/settings", handlePutSettings(deps))

		r.Get("/feedback", handleListFeedback(deps))
		r.Post("/feedback", handlePostFeedback(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// callOverrides are the per-request fields a client may send to override
// stored settings for one call.
type callOverrides struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

// resolveCall merges request overrides over stored settings. The API key
// always comes from the store; clients never send keys per request.
func resolveCall(deps Deps, o callOverrides) dispatch.Call {
	call := dispatch.Call{
		Provider: deps.Orchestrator.DefaultProvider(),
		Language: "en",
	}

	if v, err := deps.Store.GetSetting(settingProvider); err == nil && provider.ID(v).Known() {
		call.Provider = provider.ID(v)
	}
	if o.Provider != "" {
		call.Provider = provider.ID(o.Provider)
	}

	if v, err := deps.Store.GetSetting(settingModel(call.Provider)); err == nil {
		call.Model = v
	}
	if o.Model != "" {
		call.Model = o.Model
	}

	if v, err := deps.Store.GetSetting(settingLanguage); err == nil && v != "" {
		call.Language = v
	}
	if o.Language != "" {
		call.Language = o.Language
	}

	if v, err := deps.Store.GetSetting(settingAPIKey(call.Provider)); err == nil {
		call.APIKey = v
	}
	return call
}

// loadPersonalization reads the stored profile, consent level, and
// feedback history. Missing or unreadable values degrade to zero values;
// personalization is never a reason to fail a request.
func loadPersonalization(deps Deps) (prompt.UserProfile, prompt.ConsentLevel, prompt.FeedbackMap) {
	var profile prompt.UserProfile
	if raw, err := deps.Store.GetSetting(settingProfile); err == nil {
		if err := json.Unmarshal([]byte(raw), &profile); err != nil {
			slog.Warn("stored profile is unreadable, ignoring", "error", err)
			profile = prompt.UserProfile{}
		}
	}

	consent := prompt.ConsentEssential
	if v, err := deps.Store.GetSetting(settingConsent); err == nil && prompt.ConsentLevel(v).Valid() {
		consent = prompt.ConsentLevel(v)
	}

	feedback := prompt.FeedbackMap{}
	entries, err := deps.Store.ListFeedback()
	if err != nil {
		slog.Warn("loading feedback history failed, ignoring", "error", err)
	}
	for _, e := range entries {
		feedback[e.ExerciseID] = prompt.Feedback{Rating: e.Rating, Title: e.Title}
	}
	return profile, consent, feedback
}

type exercisesRequest struct {
	callOverrides
	Symptoms string `json:"symptoms"`
}

func handleExercises(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exercisesRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Symptoms) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "symptoms is required")
			return
		}

		call := resolveCall(deps, req.callOverrides)
		profile, consent, feedback := loadPersonalization(deps)

		set, err := deps.Orchestrator.PersonalizedExercises(r.Context(), call, strings.TrimSpace(req.Symptoms), profile, consent, feedback)
		if err != nil {
			writeTaskError(w, err)
			return
		}

		writeJSON(w, map[string]any{
			"exercises": set.Exercises,
			"sources":   set.Sources,
		})
	}
}

type journalRequest struct {
	callOverrides
	Entry string `json:"entry"`
}

func handleJournal(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req journalRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Entry) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "entry is required")
			return
		}

		call := resolveCall(deps, req.callOverrides)
		text, err := deps.Orchestrator.JournalAnalysis(r.Context(), call, strings.TrimSpace(req.Entry))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, map[string]string{"analysis": text})
	}
}

func handleSuggestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callOverrides
		if !decodeBody(w, r, &req) {
			return
		}

		call := resolveCall(deps, req)
		profile, consent, _ := loadPersonalization(deps)

		text, err := deps.Orchestrator.ForYouSuggestion(r.Context(), call, profile, consent)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, map[string]string{"suggestion": text})
	}
}

type thoughtRequest struct {
	callOverrides
	Thought string `json:"thought"`
}

func handleThought(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req thoughtRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Thought) == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "thought is required")
			return
		}

		call := resolveCall(deps, req.callOverrides)
		text, err := deps.Orchestrator.ThoughtChallengeHelp(r.Context(), call, strings.TrimSpace(req.Thought))
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, map[string]string{"questions": text})
	}
}

func handleQuotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req callOverrides
		if !decodeBody(w, r, &req) {
			return
		}

		call := resolveCall(deps, req)
		// Quotes are ambient content: when a cloud Ollama model is
		// selected without a key, substitute the local fallback model
		// instead of surfacing a credential error.
		if call.Provider == provider.Ollama && ollama.IsCloudModel(call.Model) && call.APIKey == "" {
			slog.Debug("substituting local model for quotes", "requested", call.Model, "substitute", ollama.FallbackLocalModel)
			call.Model = ollama.FallbackLocalModel
		}

		quotes, err := deps.Orchestrator.MotivationalQuotes(r.Context(), call)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, map[string]any{"quotes": quotes})
	}
}

func handleListProviders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"providers": provider.KnownIDs(),
			"default":   deps.Orchestrator.DefaultProvider(),
		})
	}
}

// pathProvider parses the {provider} URL param. Unknown ids are a 400
// here: discovery and diagnostics address providers explicitly, unlike
// generation calls which degrade to the default.
func pathProvider(w http.ResponseWriter, r *http.Request) (provider.ID, bool) {
	id := provider.ID(chi.URLParam(r, "provider"))
	if !id.Known() {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown provider %q", id)
		return "", false
	}
	return id, true
}

func handleProviderModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathProvider(w, r)
		if !ok {
			return
		}
		apiKey, _ := deps.Store.GetSetting(settingAPIKey(id))

		models, err := deps.Orchestrator.ListModels(r.Context(), id, apiKey)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		if models == nil {
			models = []string{}
		}
		writeJSON(w, map[string]any{"models": models})
	}
}

func handleProviderDiagnose(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathProvider(w, r)
		if !ok {
			return
		}
		adapter, err := deps.Orchestrator.Adapter(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving provider: %v", err)
			return
		}
		apiKey, _ := deps.Store.GetSetting(settingAPIKey(id))
		writeJSON(w, diagnose.Check(r.Context(), adapter, apiKey, requestLanguage(deps, r)))
	}
}

func handleProviderSetup(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathProvider(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]string{
			"instructions": diagnose.SetupInstructions(id, requestLanguage(deps, r)),
		})
	}
}

func handleRecommendedModels(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathProvider(w, r)
		if !ok {
			return
		}
		writeJSON(w, map[string]any{"models": diagnose.RecommendedModels(id)})
	}
}

func handleValidateModel(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathProvider(w, r)
		if !ok {
			return
		}
		model := r.URL.Query().Get("model")
		if model == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
			return
		}
		adapter, err := deps.Orchestrator.Adapter(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "resolving provider: %v", err)
			return
		}
		apiKey, _ := deps.Store.GetSetting(settingAPIKey(id))

		valid, err := diagnose.ValidateModel(r.Context(), adapter, apiKey, model)
		if err != nil {
			writeTaskError(w, err)
			return
		}
		writeJSON(w, map[string]any{"model": model, "valid": valid})
	}
}

func handleFallbackSuggestion(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathProvider(w, r)
		if !ok {
			return
		}
		model := r.URL.Query().Get("model")
		if model == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
			return
		}
		apiKey, _ := deps.Store.GetSetting(settingAPIKey(id))
		writeJSON(w, map[string]string{
			"suggestion": diagnose.FallbackSuggestion(id, model, apiKey),
		})
	}
}

func handleDiagnoseAll(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var adapters []provider.Adapter
		keys := map[provider.ID]string{}
		for _, id := range provider.KnownIDs() {
			adapter, err := deps.Orchestrator.Adapter(id)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "resolving provider: %v", err)
				return
			}
			adapters = append(adapters, adapter)
			keys[id], _ = deps.Store.GetSetting(settingAPIKey(id))
		}
		writeJSON(w, map[string]any{
			"reports": diagnose.All(r.Context(), adapters, keys, requestLanguage(deps, r)),
		})
	}
}

// requestLanguage picks ?language=, then the stored language, then "en".
func requestLanguage(deps Deps, r *http.Request) string {
	if lang := r.URL.Query().Get("language"); lang != "" {
		return lang
	}
	if lang, err := deps.Store.GetSetting(settingLanguage); err == nil && lang != "" {
		return lang
	}
	return "en"
}

func handleGetSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Store.GetAllSettings()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading settings: %v", err)
			return
		}
		// Keys are write-only through the API.
		for k := range all {
			if strings.HasPrefix(k, "api_key.") {
				all[k] = maskSecret(all[k])
			}
		}
		writeJSON(w, all)
	}
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func handlePutSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields map[string]string
		if !decodeBody(w, r, &fields) {
			return
		}

		for key, value := range fields {
			if key == settingProvider && !provider.ID(value).Known() {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown provider %q", value)
				return
			}
			if key == settingConsent && !prompt.ConsentLevel(value).Valid() {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown consent level %q", value)
				return
			}
			if err := deps.Store.SetSetting(key, value); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "saving setting %q: %v", key, err)
				return
			}
		}
		writeJSON(w, map[string]string{"status": "updated"})
	}
}

type feedbackRequest struct {
	ExerciseID string `json:"exerciseId"`
	Title      string `json:"title"`
	Rating     int    `json:"rating"`
}

func handlePostFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.ExerciseID == "" || req.Title == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "exerciseId and title are required")
			return
		}
		if req.Rating < 1 || req.Rating > 5 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "rating must be between 1 and 5")
			return
		}

		err := deps.Store.UpsertFeedback(storage.FeedbackEntry{
			ExerciseID: req.ExerciseID,
			Title:      req.Title,
			Rating:     req.Rating,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving feedback: %v", err)
			return
		}
		writeJSON(w, map[string]string{"status": "saved"})
	}
}

func handleListFeedback(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Store.ListFeedback()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading feedback: %v", err)
			return
		}
		if entries == nil {
			entries = []storage.FeedbackEntry{}
		}
		out := make([]feedbackRequest, len(entries))
		for i, e := range entries {
			out[i] = feedbackRequest{ExerciseID: e.ExerciseID, Title: e.Title, Rating: e.Rating}
		}
		writeJSON(w, out)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeTaskError maps orchestration failures onto stable status codes
// with user-safe messages. Provider error text stays in the logs.
func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrEmptySymptoms),
		errors.Is(err, dispatch.ErrEmptyEntry),
		errors.Is(err, dispatch.ErrEmptyThought),
		errors.Is(err, dispatch.ErrEmptyLanguage),
		errors.Is(err, dispatch.ErrBadConsent):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}

	slog.Error("task failed", "error", err)
	switch provider.KindOf(err) {
	case provider.MissingCredential, provider.InvalidCredential:
		httpError(w, http.StatusUnauthorized, "authentication_error", "the provider rejected the configured API key; update it in settings")
	case provider.RateLimited:
		httpError(w, http.StatusTooManyRequests, "rate_limit_error", "the provider is busy; try again in a moment")
	case provider.TransportUnavailable:
		httpError(w, http.StatusServiceUnavailable, "api_error", "the provider could not be reached")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "the provider returned an unusable response")
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
