package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolgate/toolgate/internal/adapter/outbound/memory"
	"github.com/toolgate/toolgate/internal/config"
	"github.com/toolgate/toolgate/internal/service"
)

var discoverServerID string

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run a one-shot full discovery build",
	Long: `Discover loads the configured mcpServers, bootstraps them, runs the
catalogue's discover operation, and prints the resulting tool set as
JSON. Useful for CI smoke checks and cold-start verification.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringVar(&discoverServerID, "server", "", "discover only this server id (default: all)")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}))

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

	ctx := context.Background()
	if err := gateway.Registry.LoadFromConfig(ctx, cfg); err != nil {
		return fmt.Errorf("load servers: %w", err)
	}
	if err := gateway.Registry.BootstrapAll(ctx, gateway.Catalogue); err != nil {
		return fmt.Errorf("bootstrap servers: %w", err)
	}

	tools, err := gateway.Discover(ctx, discoverServerID, true)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	out, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tools: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
