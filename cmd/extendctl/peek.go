package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ezextender/extenderd/internal/vectorstore"
)

var (
	peekQuery string
	peekTopK  int
)

var peekCmd = &cobra.Command{
	Use:   "peek",
	Short: "Show collection counts and sample nearest matches",
	Long: `Show what the daemon knows: document counts for both collections,
plus the nearest precedent matches for a sample query.

Examples:
  extendctl peek
  extendctl peek --query "I caught a bad flu last week" --top-k 5`,
	RunE: runPeek,
}

func init() {
	peekCmd.Flags().StringVar(&peekQuery, "query", "I caught a bad flu last week", "sample query for nearest matches")
	peekCmd.Flags().IntVar(&peekTopK, "top-k", 5, "how many matches to show")
}

func runPeek(cmd *cobra.Command, args []string) error {
	store, _, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	for _, collection := range []string{vectorstore.CollectionPolicy, vectorstore.CollectionPrecedent} {
		count, err := store.Count(ctx, collection)
		if err != nil {
			return fmt.Errorf("count %s: %w", collection, err)
		}
		fmt.Fprintf(out, "%s: %d vector(s)\n", collection, count)
	}

	matches, err := store.Query(ctx, vectorstore.CollectionPrecedent, peekQuery, peekTopK)
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		fmt.Fprintln(out, "\nNo precedent collection yet; run extendctl seed first")
		return nil
	}
	if err != nil {
		return fmt.Errorf("query precedents: %w", err)
	}

	fmt.Fprintf(out, "\nNearest precedents for %q:\n", peekQuery)
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	for _, m := range matches {
		if err := enc.Encode(m); err != nil {
			return err
		}
	}
	return nil
}
