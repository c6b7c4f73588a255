// Package ollama adapts a local Ollama server, and Ollama's hosted cloud
// tier, to the provider contract. Local models talk to the configured
// base URL without auth; cloud-tier models ("-cloud" suffix) go to
// ollama.com with a bearer token.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/havenmind/haven/internal/provider"
)

const (
	// DefaultBaseURL is the standard local Ollama address.
	DefaultBaseURL = "http://localhost:11434"

	defaultCloudURL = "https://ollama.com"

	// FallbackLocalModel is substituted by boundary callers when a
	// cloud-tier model is requested without an API key.
	FallbackLocalModel = "llama3.2:latest"

	listTimeout     = 10 * time.Second
	generateTimeout = 120 * time.Second
)

// cloudCatalog is the static list of hosted cloud-tier models. The cloud
// tier has no unauthenticated discovery endpoint, so the catalog is
// compiled in.
var cloudCatalog = []string{
	"gpt-oss:120b-cloud",
	"gpt-oss:20b-cloud",
	"deepseek-v3.1:671b-cloud",
	"qwen3-coder:480b-cloud",
}

// IsCloudModel reports whether the model name targets the hosted cloud
// tier rather than the local server.
func IsCloudModel(model string) bool {
	return strings.HasSuffix(model, "-cloud")
}

// CloudCatalog returns a copy of the static cloud-tier model list.
func CloudCatalog() []string {
	out := make([]string, len(cloudCatalog))
	copy(out, cloudCatalog)
	return out
}

// Client implements provider.Adapter for the Ollama hybrid backend.
type Client struct {
	baseURL    string
	cloudURL   string
	httpClient *http.Client
}

// New creates a Client for the local server at baseURL. An empty baseURL
// falls back to DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		cloudURL:   defaultCloudURL,
		httpClient: &http.Client{},
	}
}

// NewWithCloudURL overrides the cloud endpoint (for tests).
func NewWithCloudURL(baseURL, cloudURL string) *Client {
	c := New(baseURL)
	c.cloudURL = strings.TrimRight(cloudURL, "/")
	return c
}

func (c *Client) ID() provider.ID { return provider.Ollama }

// tagsResponse mirrors the JSON returned by GET /api/tags.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels merges the live local catalog with the static cloud-tier
// catalog. A dead local server degrades to the cloud catalog alone
// rather than failing: the settings UI should still show cloud options.
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	models := c.localModels(ctx)
	return append(models, cloudCatalog...), nil
}

func (c *Client) localModels(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Debug("local ollama unreachable, listing cloud catalog only", "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Debug("local ollama tags returned non-200", "status", resp.StatusCode)
		return nil
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names
}

// generateRequest is the JSON body for the local POST /api/generate.
// The system instruction rides as a sibling field of the prompt.
type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// chatMessage and chatRequest form the cloud-tier POST /api/chat body,
// where the system instruction is a role:"system" message.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// generate routes one completion to the local or cloud endpoint based on
// the model tier and returns the raw assistant text.
func (c *Client) generate(ctx context.Context, model, apiKey, system, userPrompt string) (string, error) {
	if IsCloudModel(model) {
		return c.cloudChat(ctx, model, apiKey, system, userPrompt)
	}
	return c.localGenerate(ctx, model, system, userPrompt)
}

func (c *Client) localGenerate(ctx context.Context, model, system, userPrompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  model,
		System: system,
		Prompt: userPrompt,
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", provider.ClassifyTransport(provider.Ollama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", provider.Errf(provider.Ollama, provider.ClassifyStatus(resp.StatusCode),
			"local generate returned status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", provider.WrapErr(provider.Ollama, provider.MalformedProviderResponse, err, "decoding generate response")
	}
	if result.Response == "" {
		return "", provider.Errf(provider.Ollama, provider.MalformedProviderResponse, "generate response missing content")
	}
	return result.Response, nil
}

func (c *Client) cloudChat(ctx context.Context, model, apiKey, system, userPrompt string) (string, error) {
	if apiKey == "" {
		return "", provider.Errf(provider.Ollama, provider.MissingCredential,
			"model %s is cloud-tier and requires an API key", model)
	}

	body, err := json.Marshal(chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cloudURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating cloud chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", provider.ClassifyTransport(provider.Ollama, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", provider.Errf(provider.Ollama, provider.ClassifyStatus(resp.StatusCode),
			"cloud chat returned status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", provider.WrapErr(provider.Ollama, provider.MalformedProviderResponse, err, "decoding cloud chat response")
	}
	if result.Message.Content == "" {
		return "", provider.Errf(provider.Ollama, provider.MalformedProviderResponse, "cloud chat response missing message content")
	}
	return result.Message.Content, nil
}

func (c *Client) GenerateExercises(ctx context.Context, model, apiKey, system, userPrompt string) (provider.ExerciseSet, error) {
	raw, err := c.generate(ctx, model, apiKey, system, userPrompt)
	if err != nil {
		return provider.ExerciseSet{}, err
	}
	exercises, err := provider.DecodeExercises(provider.Ollama, raw)
	if err != nil {
		return provider.ExerciseSet{}, err
	}
	// No web-search grounding on this backend; sources stay empty.
	return provider.ExerciseSet{Exercises: exercises, Sources: []provider.Source{}}, nil
}

func (c *Client) GenerateText(ctx context.Context, model, apiKey, system, userPrompt string) (string, error) {
	raw, err := c.generate(ctx, model, apiKey, system, userPrompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) GenerateQuotes(ctx context.Context, model, apiKey, system, userPrompt string) ([]string, error) {
	raw, err := c.generate(ctx, model, apiKey, system, userPrompt)
	if err != nil {
		return nil, err
	}
	return provider.DecodeQuotes(provider.Ollama, raw), nil
}
