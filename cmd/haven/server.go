package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/havenmind/haven/internal/api"
	"github.com/havenmind/haven/internal/config"
	"github.com/havenmind/haven/internal/dispatch"
	"github.com/havenmind/haven/internal/knowledge"
	"github.com/havenmind/haven/internal/provider"
	"github.com/havenmind/haven/internal/provider/gemini"
	"github.com/havenmind/haven/internal/provider/ollama"
	"github.com/havenmind/haven/internal/provider/openrouter"
	"github.com/havenmind/haven/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the haven server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running haven server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show haven system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "haven.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "haven version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	})))

	// Refuse a second instance: probe the health endpoint before
	// claiming the PID file.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("haven is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("haven is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Seed the language setting on first run so API calls pick up the
	// configured default.
	if _, err := store.GetSetting("language"); errors.Is(err, storage.ErrNotFound) {
		if err := store.SetSetting("language", cfg.Dispatch.Language); err != nil {
			return fmt.Errorf("seeding language setting: %w", err)
		}
	}

	facade, err := buildFacade(cfg, store)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Orchestrator: facade,
		Store:        store,
		Token:        cfg.Server.Token,
	}
	if cfg.Server.Token == "" {
		slog.Warn("no server token configured, /v1 routes are unauthenticated (set HAVEN_SERVER_TOKEN)")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: api.NewHandler(deps),
	}

	// MCP server over stdio, alongside HTTP.
	stdioSrv := server.NewStdioServer(api.NewMCPServer(deps))
	go func() {
		if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("MCP stdio server error", "error", err)
		}
	}()
	slog.Info("MCP server started (stdio transport)")

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "haven listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildFacade assembles the provider adapters and the knowledge corpus
// (compiled-in chunks plus any imported documents) into a dispatch facade.
func buildFacade(cfg config.Config, store *storage.Store) (*dispatch.Facade, error) {
	adapters := []provider.Adapter{
		gemini.New(),
		ollama.New(cfg.Ollama.BaseURL),
		openrouter.New(),
	}

	corpus, err := knowledge.Corpus()
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}
	docs, err := store.ListKnowledgeDocs()
	if err != nil {
		return nil, fmt.Errorf("loading imported knowledge docs: %w", err)
	}
	for _, d := range docs {
		corpus = append(corpus, knowledge.Chunk{ID: d.ID, Content: d.Content})
	}
	slog.Info("knowledge base loaded", "chunks", len(corpus), "imported", len(docs))

	return dispatch.New(
		adapters,
		provider.ID(cfg.Dispatch.DefaultProvider),
		cfg.Dispatch.DefaultModel,
		dispatch.WithCorpus(corpus),
	), nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("haven is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop haven (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to haven (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == 200 {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	ollamaResp, err := client.Get(cfg.Ollama.BaseURL + "/api/version")
	if err != nil {
		printStatus("Ollama", "not running")
	} else {
		ollamaResp.Body.Close()
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	}

	printStatus("Default provider", "%s", cfg.Dispatch.DefaultProvider)
	printStatus("Default model", "%s", cfg.Dispatch.DefaultModel)
	printStatus("Language", "%s", cfg.Dispatch.Language)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
