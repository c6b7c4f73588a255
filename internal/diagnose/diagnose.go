// Package diagnose runs provider health checks and renders localized,
// user-facing guidance. A check is a model listing: it exercises the
// provider's credential path and transport without generating anything.
package diagnose

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/havenmind/haven/internal/provider"
)

// Status is the coarse outcome of a provider check.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Report is the result of checking one provider.
type Report struct {
	Provider    provider.ID `json:"provider"`
	Status      Status      `json:"status"`
	Message     string      `json:"message"`
	Suggestions []string    `json:"suggestions"`
}

//go:embed locales.json
var localesRaw []byte

var locales map[string]map[string]string

func init() {
	if err := json.Unmarshal(localesRaw, &locales); err != nil {
		panic(fmt.Sprintf("diagnose: embedded locales are invalid: %v", err))
	}
}

// localize resolves key in lang, falling back to English for unknown
// languages and missing keys.
func localize(lang, key string) string {
	if m, ok := locales[lang]; ok {
		if s, ok := m[key]; ok && s != "" {
			return s
		}
	}
	return locales["en"][key]
}

// SetupInstructions returns the localized first-run setup text for a
// provider. Unknown providers get an empty string.
func SetupInstructions(id provider.ID, lang string) string {
	return localize(lang, "setup."+string(id))
}

// Check probes one adapter by listing its models. A missing credential is
// a warning with setup instructions; any other failure is an error with a
// remediation keyed to the failure kind.
func Check(ctx context.Context, a provider.Adapter, apiKey, lang string) Report {
	models, err := a.ListModels(ctx, apiKey)
	if err == nil {
		return Report{
			Provider: a.ID(),
			Status:   StatusHealthy,
			Message:  localize(lang, "healthy.message"),
			Suggestions: []string{
				fmt.Sprintf(localize(lang, "healthy.models"), len(models)),
			},
		}
	}

	kind := provider.KindOf(err)
	if kind == provider.MissingCredential {
		return Report{
			Provider:    a.ID(),
			Status:      StatusWarning,
			Message:     localize(lang, "warning.missing_credential"),
			Suggestions: []string{SetupInstructions(a.ID(), lang)},
		}
	}

	suggestions := []string{}
	if remedy := localize(lang, "remedy."+string(kind)); remedy != "" {
		suggestions = append(suggestions, remedy)
	}
	return Report{
		Provider:    a.ID(),
		Status:      StatusError,
		Message:     localize(lang, "error.message"),
		Suggestions: suggestions,
	}
}

// All checks every adapter concurrently and returns reports in the input
// order. Individual failures become error reports, never a failed call.
func All(ctx context.Context, adapters []provider.Adapter, keys map[provider.ID]string, lang string) []Report {
	reports := make([]Report, len(adapters))
	g, ctx := errgroup.WithContext(ctx)
	for i, a := range adapters {
		g.Go(func() error {
			reports[i] = Check(ctx, a, keys[a.ID()], lang)
			return nil
		})
	}
	g.Wait()
	return reports
}
