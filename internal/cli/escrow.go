package cli

import (
	"github.com/spf13/cobra"

	"github.com/PrismoFinance/bounties/internal/engine"
)

// NewEscrowCommand creates the escrow command group.
func NewEscrowCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "Release escrowed proceeds",
	}

	cmd.AddCommand(newEscrowDisburseCommand(opts))
	cmd.AddCommand(newEscrowListDueCommand(opts))

	return cmd
}

func newEscrowDisburseCommand(opts *RootOptions) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "disburse <vault-id>",
		Short: "Settle a vault's performance fee and release its escrow",
		Long: `Settle a vault's performance fee against the current TWAP and pay the
rest of the escrow to its destinations. Allowed once the vault is
cancelled or inactive and its escrow task is due.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVaultID(args[0])
			if err != nil {
				return err
			}
			return runWithApp(opts, cmd, func(a *app, f *OutputFormatter) error {
				return submit(commandContext(cmd), a, f, engine.DisburseEscrow{
					Sender:  senderOr(sender, a.cfg.Keeper.Executor),
					VaultID: id,
				})
			})
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "admin or executor address (defaults to keeper.executor)")

	return cmd
}

func newEscrowListDueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list-due",
		Short:         "List escrow tasks that are due",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := opts.at()
			if err != nil {
				return err
			}
			return runQuery(opts.RootOptions, cmd, func(a *app) (any, error) {
				tasks, err := a.engine.DueEscrowTasks(commandContext(cmd), at, opts.Limit)
				if err != nil {
					return nil, err
				}
				return escrowTaskListView(tasks), nil
			})
		},
	}
	opts.addFlags(cmd)

	return cmd
}
