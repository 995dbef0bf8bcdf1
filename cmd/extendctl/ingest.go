package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ezextender/extenderd/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Ingest policy documents into the policy collection",
	Long: `Ingest every .txt and .md file in a directory into the policy
collection. Explicit ALLOW:/DENY: rule lines become individually
retrievable chunks.

Examples:
  extendctl ingest ./policies
  extendctl --config ./config.yaml ingest ./policies`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	store, logger, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	ing, err := ingest.NewIngestor(store, logger)
	if err != nil {
		return err
	}

	res, err := ing.IngestDir(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d file(s): %d rule chunk(s), %d text chunk(s)\n",
		res.Files, res.RuleChunks, res.TextChunks)
	return nil
}
