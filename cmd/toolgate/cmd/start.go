package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	inboundhttp "github.com/toolgate/toolgate/internal/adapter/inbound/http"
	"github.com/toolgate/toolgate/internal/adapter/outbound/memory"
	"github.com/toolgate/toolgate/internal/adapter/outbound/sqlite"
	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/port/outbound"
	"github.com/toolgate/toolgate/internal/service"
)

var listenAddr string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway and its background refresh loop",
	Long: `Start loads the configured mcpServers, bootstraps each one, builds the
federated tool index, and serves the agent-facing HTTP endpoints
(/call, /search, /discover, /tools) until interrupted.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&listenAddr, "addr", "127.0.0.1:8088", "address the agent-facing HTTP endpoint listens on")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	documents, closeDocuments, err := openDocumentStore(cfg)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer closeDocuments()

	store := memory.NewUpstreamStore()
	gateway, err := service.NewGateway(cfg, store, documents, logger)
	if err != nil {
		return fmt.Errorf("construct gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := gateway.Start(ctx, cfg); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	defer gateway.Stop()

	transport := inboundhttp.NewTransport(gateway, inboundhttp.WithAddr(listenAddr), inboundhttp.WithLogger(logger))
	if err := transport.Start(ctx); err != nil {
		return fmt.Errorf("http transport: %w", err)
	}

	logger.Info("toolgate stopped")
	return nil
}

// documentStoreCloser closes a document store adapter that owns an
// underlying resource (the sqlite backend); the memory backend is a
// no-op.
type documentStoreCloser func() error

func openDocumentStore(cfg *config.GatewayConfig) (outbound.IndexStore, documentStoreCloser, error) {
	switch cfg.StateBackend {
	case "memory":
		return memory.NewIndexStore(), func() error { return nil }, nil
	default:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
