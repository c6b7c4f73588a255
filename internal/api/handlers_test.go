package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/havenmind/haven/internal/dispatch"
	"github.com/havenmind/haven/internal/prompt"
	"github.com/havenmind/haven/internal/provider"
	"github.com/havenmind/haven/internal/storage"
)

// stubOrchestrator records the resolved call and replays canned results.
type stubOrchestrator struct {
	lastCall     dispatch.Call
	lastFeedback prompt.FeedbackMap
	lastConsent  prompt.ConsentLevel

	set    provider.ExerciseSet
	text   string
	quotes []string
	models []string
	err    error

	adapter provider.Adapter
}

func (s *stubOrchestrator) PersonalizedExercises(_ context.Context, call dispatch.Call, _ string, _ prompt.UserProfile, consent prompt.ConsentLevel, feedback prompt.FeedbackMap) (provider.ExerciseSet, error) {
	s.lastCall, s.lastConsent, s.lastFeedback = call, consent, feedback
	return s.set, s.err
}

func (s *stubOrchestrator) JournalAnalysis(_ context.Context, call dispatch.Call, _ string) (string, error) {
	s.lastCall = call
	return s.text, s.err
}

func (s *stubOrchestrator) ForYouSuggestion(_ context.Context, call dispatch.Call, _ prompt.UserProfile, consent prompt.ConsentLevel) (string, error) {
	s.lastCall, s.lastConsent = call, consent
	return s.text, s.err
}

func (s *stubOrchestrator) ThoughtChallengeHelp(_ context.Context, call dispatch.Call, _ string) (string, error) {
	s.lastCall = call
	return s.text, s.err
}

func (s *stubOrchestrator) MotivationalQuotes(_ context.Context, call dispatch.Call) ([]string, error) {
	s.lastCall = call
	return s.quotes, s.err
}

func (s *stubOrchestrator) ListModels(_ context.Context, _ provider.ID, _ string) ([]string, error) {
	return s.models, s.err
}

func (s *stubOrchestrator) Adapter(provider.ID) (provider.Adapter, error) {
	return s.adapter, nil
}

func (s *stubOrchestrator) DefaultProvider() provider.ID { return provider.Gemini }

type stubAdapter struct {
	id     provider.ID
	models []string
	err    error
}

func (a *stubAdapter) ID() provider.ID { return a.id }

func (a *stubAdapter) ListModels(context.Context, string) ([]string, error) {
	return a.models, a.err
}

func (a *stubAdapter) GenerateExercises(context.Context, string, string, string, string) (provider.ExerciseSet, error) {
	return provider.ExerciseSet{}, nil
}

func (a *stubAdapter) GenerateText(context.Context, string, string, string, string) (string, error) {
	return "", nil
}

func (a *stubAdapter) GenerateQuotes(context.Context, string, string, string, string) ([]string, error) {
	return nil, nil
}

func newTestDeps(t *testing.T, orch *stubOrchestrator) (Deps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return Deps{Orchestrator: orch, Store: store}, store
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestExercises_RequiresSymptoms(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	rec := doJSON(t, NewHandler(deps), http.MethodPost, "/v1/exercises", `{"symptoms":"  "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestExercises_ResolvesCallFromSettings(t *testing.T) {
	orch := &stubOrchestrator{set: provider.ExerciseSet{Exercises: []provider.Exercise{}, Sources: []provider.Source{}}}
	deps, store := newTestDeps(t, orch)
	store.SetSetting("provider", "openrouter")
	store.SetSetting("model.openrouter", "meta-llama/llama-3.3-70b-instruct")
	store.SetSetting("api_key.openrouter", "sk-or-secret")
	store.SetSetting("language", "de")
	store.SetSetting("consent", "complete")
	store.UpsertFeedback(storage.FeedbackEntry{ExerciseID: "ex-1", Title: "Box Breathing", Rating: 5})

	rec := doJSON(t, NewHandler(deps), http.MethodPost, "/v1/exercises", `{"symptoms":"stress"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if orch.lastCall.Provider != provider.OpenRouter ||
		orch.lastCall.Model != "meta-llama/llama-3.3-70b-instruct" ||
		orch.lastCall.APIKey != "sk-or-secret" ||
		orch.lastCall.Language != "de" {
		t.Errorf("call = %+v", orch.lastCall)
	}
	if orch.lastConsent != prompt.ConsentComplete {
		t.Errorf("consent = %s", orch.lastConsent)
	}
	if fb, ok := orch.lastFeedback["ex-1"]; !ok || fb.Rating != 5 || fb.Title != "Box Breathing" {
		t.Errorf("feedback = %+v", orch.lastFeedback)
	}
}

func TestExercises_RequestOverridesSettings(t *testing.T) {
	orch := &stubOrchestrator{set: provider.ExerciseSet{Exercises: []provider.Exercise{}, Sources: []provider.Source{}}}
	deps, store := newTestDeps(t, orch)
	store.SetSetting("provider", "gemini")
	store.SetSetting("language", "en")

	rec := doJSON(t, NewHandler(deps), http.MethodPost, "/v1/exercises",
		`{"symptoms":"stress","provider":"ollama","model":"llama3.2:latest","language":"fr"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if orch.lastCall.Provider != provider.Ollama || orch.lastCall.Model != "llama3.2:latest" || orch.lastCall.Language != "fr" {
		t.Errorf("call = %+v", orch.lastCall)
	}
}

func TestTaskErrorMapping(t *testing.T) {
	cases := []struct {
		kind provider.Kind
		want int
	}{
		{provider.MissingCredential, http.StatusUnauthorized},
		{provider.InvalidCredential, http.StatusUnauthorized},
		{provider.RateLimited, http.StatusTooManyRequests},
		{provider.TransportUnavailable, http.StatusServiceUnavailable},
		{provider.MalformedProviderResponse, http.StatusInternalServerError},
		{provider.ResponseFormat, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		orch := &stubOrchestrator{err: provider.Errf(provider.Gemini, tc.kind, "upstream secret detail")}
		deps, _ := newTestDeps(t, orch)

		rec := doJSON(t, NewHandler(deps), http.MethodPost, "/v1/journal", `{"entry":"rough day"}`)
		if rec.Code != tc.want {
			t.Errorf("kind %s: status = %d, want %d", tc.kind, rec.Code, tc.want)
		}
		if strings.Contains(rec.Body.String(), "upstream secret detail") {
			t.Errorf("kind %s: provider error text leaked: %s", tc.kind, rec.Body)
		}
	}
}

func TestQuotes_SubstitutesLocalModelWithoutCloudKey(t *testing.T) {
	orch := &stubOrchestrator{quotes: []string{"Keep going."}}
	deps, store := newTestDeps(t, orch)
	store.SetSetting("provider", "ollama")
	store.SetSetting("model.ollama", "gpt-oss:120b-cloud")

	rec := doJSON(t, NewHandler(deps), http.MethodPost, "/v1/quotes", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if orch.lastCall.Model != "llama3.2:latest" {
		t.Errorf("model = %q, want the local fallback", orch.lastCall.Model)
	}
}

func TestQuotes_KeepsCloudModelWithKey(t *testing.T) {
	orch := &stubOrchestrator{quotes: []string{"Keep going."}}
	deps, store := newTestDeps(t, orch)
	store.SetSetting("provider", "ollama")
	store.SetSetting("model.ollama", "gpt-oss:120b-cloud")
	store.SetSetting("api_key.ollama", "ok-key")

	doJSON(t, NewHandler(deps), http.MethodPost, "/v1/quotes", `{}`)
	if orch.lastCall.Model != "gpt-oss:120b-cloud" {
		t.Errorf("model = %q, cloud model must be kept when a key exists", orch.lastCall.Model)
	}
}

func TestProviders_List(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/v1/providers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got struct {
		Providers []string `json:"providers"`
		Default   string   `json:"default"`
	}
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got.Providers) != 3 || got.Default != "gemini" {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestProviderModels_UnknownProvider(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/v1/providers/bogus/models", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProviderModels_UsesStoredKey(t *testing.T) {
	orch := &stubOrchestrator{models: []string{"gemini-2.5-flash"}}
	deps, store := newTestDeps(t, orch)
	store.SetSetting("api_key.gemini", "g-key")

	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/v1/providers/gemini/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "gemini-2.5-flash") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestProviderDiagnose(t *testing.T) {
	orch := &stubOrchestrator{adapter: &stubAdapter{
		id:  provider.Gemini,
		err: provider.Errf(provider.Gemini, provider.MissingCredential, "no key"),
	}}
	deps, _ := newTestDeps(t, orch)

	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/v1/providers/gemini/diagnose", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"warning"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestProviderSetup_Localized(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/v1/providers/openrouter/setup?language=fr", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "openrouter.ai/keys") {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestSettings_PutGetMasksKeys(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPut, "/v1/settings", `{"provider":"ollama","api_key.ollama":"super-secret-key"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/settings", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	body := rec.Body.String()
	if strings.Contains(body, "super-secret-key") {
		t.Errorf("api key leaked: %s", body)
	}
	if !strings.Contains(body, `"provider":"ollama"`) {
		t.Errorf("body = %s", body)
	}
}

func TestSettings_RejectsUnknownProviderAndConsent(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	h := NewHandler(deps)

	if rec := doJSON(t, h, http.MethodPut, "/v1/settings", `{"provider":"bogus"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("provider: status = %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodPut, "/v1/settings", `{"consent":"everything"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("consent: status = %d", rec.Code)
	}
}

func TestFeedback_PostValidatesRating(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/v1/feedback", `{"exerciseId":"ex-1","title":"Box Breathing","rating":9}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFeedback_PostThenList(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodPost, "/v1/feedback", `{"exerciseId":"ex-1","title":"Box Breathing","rating":4}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d, body %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/feedback", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var got []feedbackRequest
	json.Unmarshal(rec.Body.Bytes(), &got)
	if len(got) != 1 || got[0].ExerciseID != "ex-1" || got[0].Rating != 4 {
		t.Errorf("feedback = %+v", got)
	}
}

func TestBearerAuth_GuardsV1(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	deps.Token = "token-123"
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodGet, "/v1/settings", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	ok := httptest.NewRecorder()
	h.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d", ok.Code)
	}

	// Health stays open.
	rec = doJSON(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestRecommendedModels(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/v1/providers/gemini/recommended-models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var result struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Models) == 0 {
		t.Fatal("expected recommended models")
	}
	if result.Models[0] != "gemini-2.5-flash" {
		t.Errorf("first recommendation = %q", result.Models[0])
	}
}

func TestValidateModel(t *testing.T) {
	orch := &stubOrchestrator{adapter: &stubAdapter{
		id:     provider.Gemini,
		models: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
	}}
	deps, _ := newTestDeps(t, orch)
	h := NewHandler(deps)

	rec := doJSON(t, h, http.MethodGet, "/v1/providers/gemini/validate-model?model=gemini-2.5-pro", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result struct {
		Model string `json:"model"`
		Valid bool   `json:"valid"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Valid {
		t.Error("expected model to be valid")
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/providers/gemini/validate-model?model=nonexistent", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Valid {
		t.Error("expected unknown model to be invalid")
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/providers/gemini/validate-model", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing model status = %d, want 400", rec.Code)
	}
}

func TestFallbackSuggestion_CloudModelWithoutKey(t *testing.T) {
	deps, _ := newTestDeps(t, &stubOrchestrator{})
	rec := doJSON(t, NewHandler(deps), http.MethodGet, "/v1/providers/ollama/fallback-suggestion?model=gpt-oss:120b-cloud", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result["suggestion"] != "llama3.2:latest" {
		t.Errorf("suggestion = %q, want llama3.2:latest", result["suggestion"])
	}
}
