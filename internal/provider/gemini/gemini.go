// Package gemini adapts the Gemini API to the provider contract through
// the official genai client. Calls are generate-style: the system
// instruction and user turn travel as one concatenated text part.
// Exercises run with Google Search grounding enabled, which is why the
// output needs tolerant parsing (grounded responses cannot use JSON
// response MIME and tend to arrive fenced).
package gemini

import (
	"context"
	"errors"
	"strings"

	genai "google.golang.org/genai"

	"github.com/havenmind/haven/internal/provider"
)

// catalog is the compiled-in model list. Gemini is cloud-only and its
// discovery endpoint needs the same key as generation, so a static
// catalog keeps the settings UI usable before any call succeeds.
var catalog = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
}

// Catalog returns a copy of the static model list.
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// Client implements provider.Adapter for Gemini. It holds no state; the
// SDK client is constructed per call from the caller-supplied key.
type Client struct{}

// New creates a Gemini adapter.
func New() *Client { return &Client{} }

func (c *Client) ID() provider.ID { return provider.Gemini }

// ListModels returns the static catalog. Without a key the catalog is
// useless, so the call reports MissingCredential instead of a list the
// caller cannot exercise.
func (c *Client) ListModels(_ context.Context, apiKey string) ([]string, error) {
	if apiKey == "" {
		return nil, provider.Errf(provider.Gemini, provider.MissingCredential, "an API key is required")
	}
	return Catalog(), nil
}

// generate performs one GenerateContent call and returns the raw text
// along with any grounding metadata.
func (c *Client) generate(ctx context.Context, model, apiKey, system, userPrompt string, cfg *genai.GenerateContentConfig) (string, *genai.GroundingMetadata, error) {
	if apiKey == "" {
		return "", nil, provider.Errf(provider.Gemini, provider.MissingCredential, "an API key is required")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", nil, provider.WrapErr(provider.Gemini, provider.TransportUnavailable, err, "creating client")
	}

	full := system + "\n\n" + userPrompt
	resp, err := cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		cfg,
	)
	if err != nil {
		return "", nil, classify(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil, provider.Errf(provider.Gemini, provider.MalformedProviderResponse, "response has no candidates")
	}
	cand := resp.Candidates[0]

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	text := sb.String()
	if text == "" {
		return "", nil, provider.Errf(provider.Gemini, provider.MalformedProviderResponse, "response candidate has no text parts")
	}
	return text, cand.GroundingMetadata, nil
}

// classify maps genai SDK failures onto the shared taxonomy.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		e := provider.Errf(provider.Gemini, provider.ClassifyStatus(apiErr.Code), "api call returned status %d", apiErr.Code)
		e.Err = err
		return e
	}
	return provider.ClassifyTransport(provider.Gemini, err)
}

func (c *Client) GenerateExercises(ctx context.Context, model, apiKey, system, userPrompt string) (provider.ExerciseSet, error) {
	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	raw, grounding, err := c.generate(ctx, model, apiKey, system, userPrompt, cfg)
	if err != nil {
		return provider.ExerciseSet{}, err
	}
	exercises, err := provider.DecodeExercises(provider.Gemini, raw)
	if err != nil {
		return provider.ExerciseSet{}, err
	}
	return provider.ExerciseSet{
		Exercises: exercises,
		Sources:   groundingSources(grounding),
	}, nil
}

func (c *Client) GenerateText(ctx context.Context, model, apiKey, system, userPrompt string) (string, error) {
	raw, _, err := c.generate(ctx, model, apiKey, system, userPrompt, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(raw), nil
}

func (c *Client) GenerateQuotes(ctx context.Context, model, apiKey, system, userPrompt string) ([]string, error) {
	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	raw, _, err := c.generate(ctx, model, apiKey, system, userPrompt, cfg)
	if err != nil {
		return nil, err
	}
	return provider.DecodeQuotes(provider.Gemini, raw), nil
}

// groundingSources converts web grounding metadata into normalized
// sources, dropping entries with a missing url or title. The result is
// never nil.
func groundingSources(md *genai.GroundingMetadata) []provider.Source {
	sources := []provider.Source{}
	if md == nil {
		return sources
	}
	for _, chunk := range md.GroundingChunks {
		if chunk == nil || chunk.Web == nil {
			continue
		}
		if chunk.Web.URI == "" || chunk.Web.Title == "" {
			continue
		}
		sources = append(sources, provider.Source{
			URL:   chunk.Web.URI,
			Title: chunk.Web.Title,
		})
	}
	return sources
}
