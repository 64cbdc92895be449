package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/PrismoFinance/bounties/internal/engine"
)

// NewTriggerCommand creates the trigger command group.
func NewTriggerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Fire and inspect vault triggers",
	}

	cmd.AddCommand(newTriggerExecuteCommand(opts))
	cmd.AddCommand(newTriggerListDueCommand(opts))

	return cmd
}

func newTriggerExecuteCommand(opts *RootOptions) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "execute <vault-id>",
		Short: "Fire a vault's trigger once",
		Long: `Fire a vault's trigger once, performing the swap and payouts it causes.
The sender defaults to keeper.executor.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVaultID(args[0])
			if err != nil {
				return err
			}
			return runWithApp(opts, cmd, func(a *app, f *OutputFormatter) error {
				return submit(commandContext(cmd), a, f, engine.ExecuteTrigger{
					Sender:  senderOr(sender, a.cfg.Keeper.Executor),
					VaultID: id,
				})
			})
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "executor address (defaults to keeper.executor)")

	return cmd
}

// DueOptions holds flags shared by the list-due commands.
type DueOptions struct {
	*RootOptions
	At    string
	Limit uint32
}

func (opts *DueOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&opts.At, "at", "", "evaluate at this time (RFC3339, default now)")
	cmd.Flags().Uint32Var(&opts.Limit, "limit", 0, "maximum entries (0 for no limit)")
}

func (opts *DueOptions) at() (time.Time, error) {
	if opts.At == "" {
		return time.Now(), nil
	}
	t, err := parseTimeFlag("at", opts.At)
	if err != nil {
		return time.Time{}, commandError(err)
	}
	return *t, nil
}

func newTriggerListDueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list-due",
		Short:         "List vaults whose time trigger is due",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := opts.at()
			if err != nil {
				return err
			}
			return runQuery(opts.RootOptions, cmd, func(a *app) (any, error) {
				ids, err := a.engine.DueTriggerIDs(commandContext(cmd), at, opts.Limit)
				if err != nil {
					return nil, err
				}
				return idListView(ids), nil
			})
		},
	}
	opts.addFlags(cmd)

	return cmd
}

// runWithApp opens the app and hands it to fn with a formatter.
func runWithApp(opts *RootOptions, cmd *cobra.Command, fn func(*app, *OutputFormatter) error) error {
	a, err := openApp(commandContext(cmd), opts, cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a, formatter(opts, cmd))
}

func senderOr(sender, fallback string) string {
	if sender != "" {
		return sender
	}
	return fallback
}
