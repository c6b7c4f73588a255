package main

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/havenmind/haven/internal/config"
	"github.com/havenmind/haven/internal/knowledge"
	"github.com/havenmind/haven/internal/provider"
	"github.com/havenmind/haven/internal/storage"
)

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage haven configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		for _, info := range config.ShowAll(cfg) {
			printStatus(info.Key, "%s", info.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Valid keys: ` + strings.Join(config.ValidKeys(), ", "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetKey(args[0], args[1]); err != nil {
			return err
		}
		printSuccess("%s = %s", args[0], args[1])
		return nil
	},
}

// --- models ---

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List available models for a provider",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		ids := provider.KnownIDs()
		if len(args) == 1 {
			ids = []provider.ID{provider.ID(args[0])}
		}

		for _, id := range ids {
			resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/providers/%s/models", id))
			if err != nil {
				return err
			}
			var result struct {
				Models []string `json:"models"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				printWarning("%s: %v", id, err)
				continue
			}
			printStep("%s (%d models)", id, len(result.Models))
			for _, m := range result.Models {
				fmt.Printf("  %s\n", m)
			}
		}
		return nil
	},
}

// --- diagnose ---

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose [provider]",
	Short: "Check provider connectivity and credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		lang, _ := cmd.Flags().GetString("language")
		query := ""
		if lang != "" {
			query = "?language=" + url.QueryEscape(lang)
		}

		type report struct {
			Provider    string   `json:"provider"`
			Status      string   `json:"status"`
			Message     string   `json:"message"`
			Suggestions []string `json:"suggestions"`
		}

		var reports []report
		if len(args) == 1 {
			resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/providers/%s/diagnose%s", args[0], query))
			if err != nil {
				return err
			}
			var r report
			if err := decodeJSON(resp, &r); err != nil {
				return err
			}
			reports = []report{r}
		} else {
			resp, err := client.get(cmd.Context(), "/v1/diagnose"+query)
			if err != nil {
				return err
			}
			var result struct {
				Reports []report `json:"reports"`
			}
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			reports = result.Reports
		}

		for _, r := range reports {
			switch r.Status {
			case "healthy":
				printSuccess("%s: %s", r.Provider, r.Message)
			case "warning":
				printWarning("%s: %s", r.Provider, r.Message)
			default:
				printError("%s: %s", r.Provider, r.Message)
			}
			for _, s := range r.Suggestions {
				fmt.Printf("    %s\n", s)
			}
		}
		return nil
	},
}

// --- knowledge base ---

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage imported knowledge documents",
}

var kbImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a document (txt, md, html, pdf) into the knowledge base",
	Long: `Import a document into the knowledge base.

The file is split into retrieval chunks and stored locally. Imported
chunks are picked up the next time the server starts. Supported
formats: plain text, Markdown, HTML, and PDF.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		source, _ := cmd.Flags().GetString("source")
		if source == "" {
			source = filepath.Base(path)
		}

		text, err := knowledge.ExtractText(path)
		if err != nil {
			return fmt.Errorf("extracting text: %w", err)
		}
		chunks := knowledge.SplitChunks(text, source)
		if len(chunks) == 0 {
			return fmt.Errorf("no text found in %s", path)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		for _, c := range chunks {
			err := store.SaveKnowledgeDoc(storage.KnowledgeDoc{
				ID:      c.ID,
				Content: c.Content,
				Source:  source,
			})
			if err != nil {
				return fmt.Errorf("saving chunk %s: %w", c.ID, err)
			}
		}

		printSuccess("Imported %d chunks from %s (source %q)", len(chunks), path, source)
		printStep("Restart the server to pick up the new documents")
		return nil
	},
}

var kbRemoveCmd = &cobra.Command{
	Use:   "remove <source>",
	Short: "Remove all documents imported under a source name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		n, err := store.DeleteKnowledgeDocsBySource(args[0])
		if err != nil {
			return err
		}
		if n == 0 {
			printWarning("No documents found for source %q", args[0])
			return nil
		}
		printSuccess("Removed %d documents for source %q", n, args[0])
		return nil
	},
}

var kbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported knowledge documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		docs, err := store.ListKnowledgeDocs()
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			printStep("No imported documents")
			return nil
		}
		counts := map[string]int{}
		var order []string
		for _, d := range docs {
			if _, seen := counts[d.Source]; !seen {
				order = append(order, d.Source)
			}
			counts[d.Source]++
		}
		for _, src := range order {
			printStatus(src, "%d chunks", counts[src])
		}
		return nil
	},
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Show recorded exercise feedback",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/feedback")
		if err != nil {
			return err
		}
		var entries []struct {
			ExerciseID string `json:"exerciseId"`
			Title      string `json:"title"`
			Rating     int    `json:"rating"`
		}
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}
		if len(entries) == 0 {
			printStep("No feedback recorded yet")
			return nil
		}
		for _, e := range entries {
			printStatus(e.Title, "rating %d/5 (%s)", e.Rating, e.ExerciseID)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	diagnoseCmd.Flags().String("language", "", "language for diagnostic messages (en, es, de, fr)")

	kbImportCmd.Flags().String("source", "", "source label for the imported document (default: file name)")
	kbCmd.AddCommand(kbImportCmd)
	kbCmd.AddCommand(kbRemoveCmd)
	kbCmd.AddCommand(kbListCmd)
}
