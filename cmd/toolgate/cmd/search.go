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

var (
	searchTopK     int
	searchMinScore float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the federated tool index",
	Long: `Search bootstraps every configured server, builds the tool index, and
runs the federated search operation against query, printing the
matching tools as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "maximum number of results (default: 10)")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0, "minimum match score (accepted, currently a no-op)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

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
	if _, err := gateway.Index.FullBuild(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	hits, err := gateway.Search(ctx, query, searchTopK, searchMinScore)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	out, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
