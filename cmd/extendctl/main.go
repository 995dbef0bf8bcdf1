// Package main implements the extendctl CLI for operating on the
// extenderd knowledge base: ingesting policy documents, seeding
// precedent cases and peeking at stored collections.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ezextender/extenderd/internal/config"
	"github.com/ezextender/extenderd/internal/embeddings"
	"github.com/ezextender/extenderd/internal/logging"
	"github.com/ezextender/extenderd/internal/vectorstore"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "extendctl",
	Short: "CLI for extenderd knowledge base operations",
	Long: `extendctl manages the extenderd vector collections directly.
It ingests policy documents, seeds precedent cases and inspects
stored data without going through the daemon.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(peekCmd)
}

// openStore builds the embedder and vector store from configuration.
// The returned cleanup closes both.
func openStore() (vectorstore.Store, *zap.Logger, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: "console"})
	if err != nil {
		return nil, nil, nil, err
	}

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider: cfg.Embeddings.Provider,
		Model:    cfg.Embeddings.Model,
		BaseURL:  cfg.Embeddings.BaseURL,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialize embeddings: %w", err)
	}

	store, err := vectorstore.NewStore(vectorstore.FactoryConfig{
		Backend:      cfg.VectorStore.Backend,
		Path:         cfg.VectorStore.Path,
		Compress:     cfg.VectorStore.Compress,
		Host:         cfg.VectorStore.Host,
		Port:         cfg.VectorStore.Port,
		UseTLS:       cfg.VectorStore.UseTLS,
		VectorSize:   int(cfg.VectorStore.VectorSize),
		RetryBackoff: cfg.VectorStore.RetryBackoff.Duration(),
	}, embedder, logger)
	if err != nil {
		embedder.Close()
		return nil, nil, nil, fmt.Errorf("initialize vector store: %w", err)
	}

	cleanup := func() {
		_ = store.Close()
		_ = embedder.Close()
		_ = logger.Sync()
	}
	return store, logger, cleanup, nil
}
