package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/PrismoFinance/bounties/internal/replay"
	"github.com/PrismoFinance/bounties/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	PageSize uint32
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the event log and verify vault totals",
		Long: `Replay the event log of every vault and compare the folded totals with
the stored vault records: deposited, swapped, received and escrowed
amounts, balance, status and height order.

Exit codes:
  0 - Every vault matches its event log
  1 - At least one mismatch was found
  2 - Command error (database not found, etc.)

Examples:
  bounties replay --db ./bounties.db
  bounties replay --db ./bounties.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().Uint32Var(&opts.PageSize, "page-size", 100, "vaults and events read per query")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	report, err := replay.Run(ctx, st, opts.PageSize)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to replay event log", err)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, report)
	}
	return outputReplayText(cmd, report)
}

// outputReplayJSON outputs the replay report as JSON.
func outputReplayJSON(cmd *cobra.Command, report replay.Report) error {
	response := Response{
		Status: "ok",
		Data:   report,
	}

	if !report.OK() {
		response.Status = "error"
		response.Error = &Rejection{
			Code:    "MISMATCH",
			Message: "replayed totals differ from stored vaults",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !report.OK() {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay report as text.
func outputReplayText(cmd *cobra.Command, report replay.Report) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d vault(s), %d event(s)\n", report.Vaults, report.Events)

	if report.OK() {
		fmt.Fprintln(w, "✓ All vaults match their event log")
		return nil
	}

	fmt.Fprintln(w)
	for _, m := range report.Mismatches {
		fmt.Fprintf(w, "✗ %s\n", m)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "✗ %d mismatch(es) found\n", len(report.Mismatches))
	return NewExitError(ExitFailure, "replay verification failed")
}
