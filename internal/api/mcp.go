package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/havenmind/haven/internal/diagnose"
	"github.com/havenmind/haven/internal/provider"
	"github.com/havenmind/haven/internal/storage"
)

// NewMCPServer creates an MCP server exposing the wellbeing tasks as
// tools. Tool calls resolve provider, model, key, and language from
// stored settings the same way the REST handlers do.
func NewMCPServer(deps Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"haven",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("haven — mental-wellness assistant: personalized coping exercises, journal reflection, thought challenging, and motivational quotes."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("get_exercises",
			mcp.WithDescription("Generate personalized coping exercises for the given symptoms, grounded in the local knowledge base."),
			mcp.WithString("symptoms", mcp.Description("Current symptoms or state, in the user's own words"), mcp.Required()),
		),
		mcpGetExercises(deps),
	)

	s.AddTool(
		mcp.NewTool("analyze_journal",
			mcp.WithDescription("Return a short supportive reflection on a journal entry."),
			mcp.WithString("entry", mcp.Description("The journal entry text"), mcp.Required()),
		),
		mcpAnalyzeJournal(deps),
	)

	s.AddTool(
		mcp.NewTool("get_suggestion",
			mcp.WithDescription("Get one small wellbeing suggestion for right now, tuned to the time of day."),
		),
		mcpGetSuggestion(deps),
	)

	s.AddTool(
		mcp.NewTool("challenge_thought",
			mcp.WithDescription("Get Socratic questions that help examine a recurring negative thought."),
			mcp.WithString("thought", mcp.Description("The thought to examine"), mcp.Required()),
		),
		mcpChallengeThought(deps),
	)

	s.AddTool(
		mcp.NewTool("get_quotes",
			mcp.WithDescription("Get a few short motivational quotes."),
		),
		mcpGetQuotes(deps),
	)

	s.AddTool(
		mcp.NewTool("diagnose_provider",
			mcp.WithDescription("Check whether an LLM provider is configured and reachable."),
			mcp.WithString("provider", mcp.Description("Provider id: gemini, ollama, or openrouter"), mcp.Required()),
		),
		mcpDiagnoseProvider(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"haven://settings",
			"Settings",
			mcp.WithResourceDescription("Current settings as JSON, API keys masked"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceSettings(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"haven://feedback",
			"Exercise Feedback",
			mcp.WithResourceDescription("Stored exercise ratings as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceFeedback(deps),
	)

	return s
}

func mcpGetExercises(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symptoms, err := req.RequireString("symptoms")
		if err != nil || strings.TrimSpace(symptoms) == "" {
			return mcpError("symptoms is required"), nil
		}

		call := resolveCall(deps, callOverrides{})
		profile, consent, feedback := loadPersonalization(deps)

		set, err := deps.Orchestrator.PersonalizedExercises(ctx, call, strings.TrimSpace(symptoms), profile, consent, feedback)
		if err != nil {
			return mcpError(taskErrorMessage(err)), nil
		}

		b, err := json.Marshal(set)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal exercises: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAnalyzeJournal(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		entry, err := req.RequireString("entry")
		if err != nil || strings.TrimSpace(entry) == "" {
			return mcpError("entry is required"), nil
		}

		call := resolveCall(deps, callOverrides{})
		text, err := deps.Orchestrator.JournalAnalysis(ctx, call, strings.TrimSpace(entry))
		if err != nil {
			return mcpError(taskErrorMessage(err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpGetSuggestion(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := resolveCall(deps, callOverrides{})
		profile, consent, _ := loadPersonalization(deps)

		text, err := deps.Orchestrator.ForYouSuggestion(ctx, call, profile, consent)
		if err != nil {
			return mcpError(taskErrorMessage(err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpChallengeThought(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		thought, err := req.RequireString("thought")
		if err != nil || strings.TrimSpace(thought) == "" {
			return mcpError("thought is required"), nil
		}

		call := resolveCall(deps, callOverrides{})
		text, err := deps.Orchestrator.ThoughtChallengeHelp(ctx, call, strings.TrimSpace(thought))
		if err != nil {
			return mcpError(taskErrorMessage(err)), nil
		}
		return mcpText(text), nil
	}
}

func mcpGetQuotes(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		call := resolveCall(deps, callOverrides{})
		quotes, err := deps.Orchestrator.MotivationalQuotes(ctx, call)
		if err != nil {
			return mcpError(taskErrorMessage(err)), nil
		}

		b, err := json.Marshal(quotes)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal quotes: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDiagnoseProvider(deps Deps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("provider")
		if err != nil {
			return mcpError("provider is required"), nil
		}
		id := provider.ID(raw)
		if !id.Known() {
			return mcpError(fmt.Sprintf("unknown provider %q", raw)), nil
		}

		adapter, err := deps.Orchestrator.Adapter(id)
		if err != nil {
			return mcpError(fmt.Sprintf("resolving provider: %v", err)), nil
		}

		apiKey, _ := deps.Store.GetSetting(settingAPIKey(id))
		lang := "en"
		if v, err := deps.Store.GetSetting(settingLanguage); err == nil && v != "" {
			lang = v
		}

		report := diagnose.Check(ctx, adapter, apiKey, lang)
		b, err := json.Marshal(report)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal report: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceSettings(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		all, err := deps.Store.GetAllSettings()
		if err != nil {
			return nil, fmt.Errorf("loading settings: %w", err)
		}
		for k := range all {
			if strings.HasPrefix(k, "api_key.") {
				all[k] = maskSecret(all[k])
			}
		}

		b, err := json.Marshal(all)
		if err != nil {
			return nil, fmt.Errorf("marshaling settings: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceFeedback(deps Deps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		entries, err := deps.Store.ListFeedback()
		if err != nil {
			return nil, fmt.Errorf("loading feedback: %w", err)
		}
		if entries == nil {
			entries = []storage.FeedbackEntry{}
		}

		out := make([]feedbackRequest, len(entries))
		for i, e := range entries {
			out[i] = feedbackRequest{ExerciseID: e.ExerciseID, Title: e.Title, Rating: e.Rating}
		}
		b, err := json.Marshal(out)
		if err != nil {
			return nil, fmt.Errorf("marshaling feedback: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

// taskErrorMessage renders the same user-safe wording the REST layer
// uses, without the HTTP status.
func taskErrorMessage(err error) string {
	switch provider.KindOf(err) {
	case provider.MissingCredential, provider.InvalidCredential:
		return "the provider rejected the configured API key; update it in settings"
	case provider.RateLimited:
		return "the provider is busy; try again in a moment"
	case provider.TransportUnavailable:
		return "the provider could not be reached"
	case provider.MalformedProviderResponse, provider.ResponseFormat:
		return "the provider returned an unusable response"
	}
	return err.Error()
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
