// Package openrouter adapts the OpenRouter chat-completions API to the
// provider contract. Cloud-only, bearer-token auth, chat-style transport
// with the system instruction as a role:"system" message.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/havenmind/haven/internal/provider"
)

const (
	defaultBaseURL  = "https://openrouter.ai/api/v1"
	listTimeout     = 10 * time.Second
	generateTimeout = 120 * time.Second
)

// Client implements provider.Adapter for OpenRouter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	referer    string
	title      string
}

// New creates an OpenRouter client. API keys are supplied per call, not
// held on the client.
func New() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
		referer:    "https://github.com/havenmind/haven",
		title:      "haven",
	}
}

// NewWithBaseURL points the client at a custom base URL (for tests).
func NewWithBaseURL(baseURL string) *Client {
	c := New()
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

func (c *Client) ID() provider.ID { return provider.OpenRouter }

func (c *Client) setHeaders(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}

// modelList mirrors GET /models.
type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels requires a key up front: without one it reports
// MissingCredential immediately instead of attempting the call.
func (c *Client) ListModels(ctx context.Context, apiKey string) ([]string, error) {
	if apiKey == "" {
		return nil, provider.Errf(provider.OpenRouter, provider.MissingCredential, "an API key is required to list models")
	}

	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating models request: %w", err)
	}
	c.setHeaders(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, provider.ClassifyTransport(provider.OpenRouter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, provider.Errf(provider.OpenRouter, provider.ClassifyStatus(resp.StatusCode),
			"models listing returned status %d", resp.StatusCode)
	}

	var list modelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, provider.WrapErr(provider.OpenRouter, provider.MalformedProviderResponse, err, "decoding models response")
	}
	names := make([]string, len(list.Data))
	for i, m := range list.Data {
		names[i] = m.ID
	}
	return names, nil
}

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
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// generate performs one chat completion and returns the assistant text.
// No retries here: the dispatch facade owns the single fallback policy.
func (c *Client) generate(ctx context.Context, model, apiKey, system, userPrompt string) (string, error) {
	if apiKey == "" {
		return "", provider.Errf(provider.OpenRouter, provider.MissingCredential, "an API key is required")
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
		return "", fmt.Errorf("marshaling chat request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating chat request: %w", err)
	}
	c.setHeaders(req, apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", provider.ClassifyTransport(provider.OpenRouter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused; the body is never
		// surfaced to callers.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", provider.Errf(provider.OpenRouter, provider.ClassifyStatus(resp.StatusCode),
			"chat completion returned status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", provider.WrapErr(provider.OpenRouter, provider.MalformedProviderResponse, err, "decoding chat response")
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return "", provider.Errf(provider.OpenRouter, provider.MalformedProviderResponse, "chat response missing choices content")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *Client) GenerateExercises(ctx context.Context, model, apiKey, system, userPrompt string) (provider.ExerciseSet, error) {
	raw, err := c.generate(ctx, model, apiKey, system, userPrompt)
	if err != nil {
		return provider.ExerciseSet{}, err
	}
	exercises, err := provider.DecodeExercises(provider.OpenRouter, raw)
	if err != nil {
		return provider.ExerciseSet{}, err
	}
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
	return provider.DecodeQuotes(provider.OpenRouter, raw), nil
}
