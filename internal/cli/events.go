package cli

import (
	"github.com/spf13/cobra"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Vault      uint64
	StartAfter uint64
	Limit      uint32
	Reverse    bool
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List ledger events",
		Long: `List ledger events in id order, optionally for one vault.

Example:
  bounties events --vault 1 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var resource *uint64
			if cmd.Flags().Changed("vault") {
				resource = &opts.Vault
			}
			page := pageFromFlags(cmd, opts.StartAfter, opts.Limit, opts.Reverse)
			return runQuery(opts.RootOptions, cmd, func(a *app) (any, error) {
				events, err := a.engine.ListEvents(commandContext(cmd), resource, page)
				if err != nil {
					return nil, err
				}
				return eventListView(events), nil
			})
		},
	}

	cmd.Flags().Uint64Var(&opts.Vault, "vault", 0, "only events of this vault")
	addPageFlags(cmd, &opts.StartAfter, &opts.Limit, &opts.Reverse)

	return cmd
}
