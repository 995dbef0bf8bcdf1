package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ezextender/extenderd/internal/clock"
	"github.com/ezextender/extenderd/internal/precedent"
	"github.com/ezextender/extenderd/internal/request"
)

// seedCases are representative past rulings used to bootstrap an empty
// precedent collection so the first real requests retrieve something.
var seedCases = []struct {
	justification string
	decision      precedent.VerdictDecision
	rationale     string
}{
	{"My grandfather passed away", precedent.VerdictApproved, "bereavement in the immediate family"},
	{"Death in the family, need time for funeral", precedent.VerdictApproved, "bereavement, funeral attendance"},
	{"Cold/flu for two days", precedent.VerdictDenied, "a short minor illness is not sufficient grounds"},
	{"Common cold, minor symptoms", precedent.VerdictDenied, "minor illness is not sufficient grounds"},
	{"Hospitalized for surgery, recovery expected 1 week", precedent.VerdictApproved, "serious medical event with recovery time"},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the precedent collection with representative cases",
	Long: `Seed the precedent collection with a small set of representative
past rulings. Safe to run more than once, though each run appends a
fresh copy of every case.`,
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	store, logger, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	clk, err := clock.FromEnv()
	if err != nil {
		return err
	}
	writer, err := precedent.NewWriter(store, clk, nil, logger)
	if err != nil {
		return err
	}

	now := clk.Now()
	original := now.Add(24 * time.Hour).Format("2006-01-02T15:04:05Z")
	requested := now.Add(96 * time.Hour).Format("2006-01-02T15:04:05Z")

	for n, c := range seedCases {
		req, err := request.New(fmt.Sprintf("seed%d", n+1), original, requested, c.justification, now)
		if err != nil {
			return fmt.Errorf("build seed request %d: %w", n+1, err)
		}
		verdict := precedent.ReviewVerdict{
			Decision:   c.decision,
			ReviewerID: fmt.Sprintf("seed%d", n+1),
			Rationale:  c.rationale,
			Timestamp:  now,
		}
		if _, err := writer.Write(cmd.Context(), req, verdict); err != nil {
			return fmt.Errorf("seed case %d: %w", n+1, err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d precedent case(s)\n", len(seedCases))
	return nil
}
