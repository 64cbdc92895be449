package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/PrismoFinance/bounties/internal/engine"
	"github.com/PrismoFinance/bounties/internal/trigger"
	"github.com/PrismoFinance/bounties/internal/vault"
)

// NewVaultCommand creates the vault command group.
func NewVaultCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Create, fund, update and inspect vaults",
	}

	cmd.AddCommand(newVaultCreateCommand(opts))
	cmd.AddCommand(newVaultDepositCommand(opts))
	cmd.AddCommand(newVaultUpdateCommand(opts))
	cmd.AddCommand(newVaultCancelCommand(opts))
	cmd.AddCommand(newVaultGetCommand(opts))
	cmd.AddCommand(newVaultListCommand(opts))
	cmd.AddCommand(newVaultPerformanceCommand(opts))

	return cmd
}

// VaultCreateOptions holds flags for vault create.
type VaultCreateOptions struct {
	*RootOptions
	Sender                string
	Owner                 string
	Label                 string
	Destinations          []string
	SourceDenom           string
	TargetDenom           string
	Route                 []string
	SlippageTolerance     string
	MinimumReceiveAmount  string
	SwapAmount            string
	Interval              string
	StartTime             string
	TargetReceiveAmount   string
	PerformanceAssessment bool
	SwapAdjustment        string
	Funds                 []string
}

func newVaultCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VaultCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a vault",
		Long: `Create a vault that sells --swap-amount of its deposit every --interval.

Destinations take the form address:allocation, optionally followed by
:delegate:VALIDATOR or :invoke:JSON. Allocations must sum to 1.

Example:
  bounties vault create --sender alice --target-denom uusdc \
    --swap-amount 100 --interval daily --funds 1000uosmo \
    --destination alice:0.5 --destination bob:0.5:delegate:val1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVaultCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "", "address submitting the request")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "vault owner (defaults to sender)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "vault label")
	cmd.Flags().StringArrayVar(&opts.Destinations, "destination", nil, "payout destination (repeatable)")
	cmd.Flags().StringVar(&opts.SourceDenom, "source-denom", "", "denom to sell when no funds are attached")
	cmd.Flags().StringVar(&opts.TargetDenom, "target-denom", "", "denom to buy")
	cmd.Flags().StringSliceVar(&opts.Route, "route", nil, "swap route hops")
	cmd.Flags().StringVar(&opts.SlippageTolerance, "slippage-tolerance", "", "maximum spread per swap")
	cmd.Flags().StringVar(&opts.MinimumReceiveAmount, "minimum-receive-amount", "", "skip swaps that would receive less")
	cmd.Flags().StringVar(&opts.SwapAmount, "swap-amount", "", "amount sold per execution")
	cmd.Flags().StringVar(&opts.Interval, "interval", "daily", "execution interval (hourly, daily, custom:SECONDS, cron:EXPR, ...)")
	cmd.Flags().StringVar(&opts.StartTime, "start-time", "", "first execution time (RFC3339)")
	cmd.Flags().StringVar(&opts.TargetReceiveAmount, "target-receive-amount", "", "start with a limit order receiving this amount")
	cmd.Flags().BoolVar(&opts.PerformanceAssessment, "performance-assessment", false, "track a baseline and escrow a share of proceeds")
	cmd.Flags().StringVar(&opts.SwapAdjustment, "swap-adjustment", "", "base_receive_amount:multiplier[:increase-only]")
	cmd.Flags().StringArrayVar(&opts.Funds, "funds", nil, "attached funds, e.g. 1000uosmo (repeatable)")

	return cmd
}

func (opts *VaultCreateOptions) request() (engine.CreateVault, error) {
	if opts.Sender == "" {
		return engine.CreateVault{}, requiredFlag("sender")
	}
	if opts.SwapAmount == "" {
		return engine.CreateVault{}, requiredFlag("swap-amount")
	}

	req := engine.CreateVault{
		Sender:                opts.Sender,
		Owner:                 opts.Owner,
		Label:                 opts.Label,
		SourceDenom:           opts.SourceDenom,
		TargetDenom:           opts.TargetDenom,
		Route:                 opts.Route,
		PerformanceAssessment: opts.PerformanceAssessment,
	}

	var err error
	if req.Destinations, err = vault.ParseDestinations(opts.Destinations); err != nil {
		return req, commandError(err)
	}
	if req.Funds, err = parseCoins(opts.Funds); err != nil {
		return req, commandError(err)
	}
	swap, err := parseIntFlag("swap-amount", opts.SwapAmount)
	if err != nil {
		return req, commandError(err)
	}
	req.SwapAmount = *swap
	if req.Interval, err = trigger.ParseInterval(opts.Interval); err != nil {
		return req, commandError(err)
	}
	if opts.SlippageTolerance != "" {
		if req.SlippageTolerance, err = parseDecFlag("slippage-tolerance", opts.SlippageTolerance); err != nil {
			return req, commandError(err)
		}
	}
	if opts.MinimumReceiveAmount != "" {
		if req.MinimumReceiveAmount, err = parseIntFlag("minimum-receive-amount", opts.MinimumReceiveAmount); err != nil {
			return req, commandError(err)
		}
	}
	if opts.StartTime != "" {
		if req.TargetStartTime, err = parseTimeFlag("start-time", opts.StartTime); err != nil {
			return req, commandError(err)
		}
	}
	if opts.TargetReceiveAmount != "" {
		if req.TargetReceiveAmount, err = parseIntFlag("target-receive-amount", opts.TargetReceiveAmount); err != nil {
			return req, commandError(err)
		}
	}
	if opts.SwapAdjustment != "" {
		if req.SwapAdjustment, err = vault.ParseSwapAdjustment(opts.SwapAdjustment); err != nil {
			return req, commandError(err)
		}
	}
	return req, nil
}

func runVaultCreate(opts *VaultCreateOptions, cmd *cobra.Command) error {
	req, err := opts.request()
	if err != nil {
		return err
	}
	return runRequest(opts.RootOptions, cmd, req)
}

// runRequest opens the app, submits req and prints the trace.
func runRequest(opts *RootOptions, cmd *cobra.Command, req engine.Request) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, opts, cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	return submit(ctx, a, formatter(opts, cmd), req)
}

// VaultDepositOptions holds flags for vault deposit.
type VaultDepositOptions struct {
	*RootOptions
	Sender  string
	Address string
	Funds   []string
}

func newVaultDepositCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VaultDepositOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deposit <vault-id>",
		Short: "Add funds to a vault",
		Long: `Add funds to a vault. A vault that ran out of funds is reactivated.

Example:
  bounties vault deposit 1 --sender alice --address alice --funds 500uosmo`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVaultID(args[0])
			if err != nil {
				return err
			}
			if opts.Sender == "" {
				return requiredFlag("sender")
			}
			funds, err := parseCoins(opts.Funds)
			if err != nil {
				return commandError(err)
			}
			address := opts.Address
			if address == "" {
				address = opts.Sender
			}
			return runRequest(opts.RootOptions, cmd, engine.Deposit{
				Sender:  opts.Sender,
				Address: address,
				VaultID: id,
				Funds:   funds,
			})
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "", "address submitting the request")
	cmd.Flags().StringVar(&opts.Address, "address", "", "vault owner the deposit is for (defaults to sender)")
	cmd.Flags().StringArrayVar(&opts.Funds, "funds", nil, "attached funds (repeatable)")

	return cmd
}

// VaultUpdateOptions holds flags for vault update. Only flags that are
// set change the vault.
type VaultUpdateOptions struct {
	*RootOptions
	Sender               string
	Label                string
	Destinations         []string
	SlippageTolerance    string
	MinimumReceiveAmount string
	Interval             string
	SwapAmount           string
	SwapAdjustment       string
}

func newVaultUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VaultUpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "update <vault-id>",
		Short:         "Change vault settings",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVaultID(args[0])
			if err != nil {
				return err
			}
			req, err := opts.request(cmd, id)
			if err != nil {
				return err
			}
			return runRequest(opts.RootOptions, cmd, req)
		},
	}

	cmd.Flags().StringVar(&opts.Sender, "sender", "", "address submitting the request")
	cmd.Flags().StringVar(&opts.Label, "label", "", "new label")
	cmd.Flags().StringArrayVar(&opts.Destinations, "destination", nil, "replacement destinations (repeatable)")
	cmd.Flags().StringVar(&opts.SlippageTolerance, "slippage-tolerance", "", "new slippage tolerance")
	cmd.Flags().StringVar(&opts.MinimumReceiveAmount, "minimum-receive-amount", "", "new minimum receive amount")
	cmd.Flags().StringVar(&opts.Interval, "interval", "", "new execution interval")
	cmd.Flags().StringVar(&opts.SwapAmount, "swap-amount", "", "new swap amount")
	cmd.Flags().StringVar(&opts.SwapAdjustment, "swap-adjustment", "", "new swap adjustment")

	return cmd
}

func (opts *VaultUpdateOptions) request(cmd *cobra.Command, id uint64) (engine.UpdateVault, error) {
	if opts.Sender == "" {
		return engine.UpdateVault{}, requiredFlag("sender")
	}
	req := engine.UpdateVault{Sender: opts.Sender, VaultID: id}
	changed := cmd.Flags().Changed

	var err error
	if changed("label") {
		label := opts.Label
		req.Label = &label
	}
	if changed("destination") {
		dests, err := vault.ParseDestinations(opts.Destinations)
		if err != nil {
			return req, commandError(err)
		}
		req.Destinations = &dests
	}
	if changed("slippage-tolerance") {
		if req.SlippageTolerance, err = parseDecFlag("slippage-tolerance", opts.SlippageTolerance); err != nil {
			return req, commandError(err)
		}
	}
	if changed("minimum-receive-amount") {
		if req.MinimumReceiveAmount, err = parseIntFlag("minimum-receive-amount", opts.MinimumReceiveAmount); err != nil {
			return req, commandError(err)
		}
	}
	if changed("interval") {
		iv, err := trigger.ParseInterval(opts.Interval)
		if err != nil {
			return req, commandError(err)
		}
		req.Interval = &iv
	}
	if changed("swap-amount") {
		if req.SwapAmount, err = parseIntFlag("swap-amount", opts.SwapAmount); err != nil {
			return req, commandError(err)
		}
	}
	if changed("swap-adjustment") {
		if req.SwapAdjustment, err = vault.ParseSwapAdjustment(opts.SwapAdjustment); err != nil {
			return req, commandError(err)
		}
	}
	return req, nil
}

func newVaultCancelCommand(opts *RootOptions) *cobra.Command {
	var sender string

	cmd := &cobra.Command{
		Use:   "cancel <vault-id>",
		Short: "Cancel a vault and refund its balance",
		Long: `Cancel a vault. The remaining balance is returned to the owner and an
open limit order is retracted. Escrow is released later by disburse.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVaultID(args[0])
			if err != nil {
				return err
			}
			if sender == "" {
				return requiredFlag("sender")
			}
			return runRequest(opts, cmd, engine.CancelVault{Sender: sender, VaultID: id})
		},
	}

	cmd.Flags().StringVar(&sender, "sender", "", "address submitting the request")

	return cmd
}

func newVaultGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <vault-id>",
		Short:         "Show a vault",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVaultID(args[0])
			if err != nil {
				return err
			}
			return runQuery(opts, cmd, func(a *app) (any, error) {
				v, err := a.engine.GetVault(commandContext(cmd), id)
				if err != nil {
					return nil, err
				}
				return vaultView{v}, nil
			})
		},
	}
}

// VaultListOptions holds flags for vault list.
type VaultListOptions struct {
	*RootOptions
	Owner      string
	Status     string
	StartAfter uint64
	Limit      uint32
	Reverse    bool
}

func newVaultListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VaultListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List vaults",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := engine.VaultFilter{Owner: opts.Owner}
			if opts.Status != "" {
				status, err := vault.ParseStatus(opts.Status)
				if err != nil {
					return commandError(err)
				}
				filter.Status = &status
			}
			page := pageFromFlags(cmd, opts.StartAfter, opts.Limit, opts.Reverse)
			return runQuery(opts.RootOptions, cmd, func(a *app) (any, error) {
				vaults, err := a.engine.ListVaults(commandContext(cmd), filter, page)
				if err != nil {
					return nil, err
				}
				return vaultListView(vaults), nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "only vaults of this owner")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only vaults with this status")
	addPageFlags(cmd, &opts.StartAfter, &opts.Limit, &opts.Reverse)

	return cmd
}

func newVaultPerformanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "performance <vault-id>",
		Short:         "Show the fee the vault would pay if its escrow were disbursed now",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVaultID(args[0])
			if err != nil {
				return err
			}
			return runQuery(opts, cmd, func(a *app) (any, error) {
				perf, err := a.engine.GetPerformance(commandContext(cmd), id)
				if err != nil {
					return nil, err
				}
				return performanceView(perf), nil
			})
		},
	}
}

type performanceView engine.Performance

func (p performanceView) String() string {
	return fmt.Sprintf("fee: %s\nfactor: %s", p.Fee, p.Factor)
}

// runQuery opens the app, runs fn and prints its result.
func runQuery(opts *RootOptions, cmd *cobra.Command, fn func(*app) (any, error)) error {
	a, err := openApp(commandContext(cmd), opts, cmd, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	f := formatter(opts, cmd)
	out, err := fn(a)
	if err != nil {
		return f.Reject(err)
	}
	return f.Success(out)
}

func parseVaultID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid vault id %q", s))
	}
	return id, nil
}

func addPageFlags(cmd *cobra.Command, startAfter *uint64, limit *uint32, reverse *bool) {
	cmd.Flags().Uint64Var(startAfter, "start-after", 0, "resume after this id")
	cmd.Flags().Uint32Var(limit, "limit", 0, "page size (default from ledger config)")
	cmd.Flags().BoolVar(reverse, "reverse", false, "newest first")
}

func pageFromFlags(cmd *cobra.Command, startAfter uint64, limit uint32, reverse bool) engine.Page {
	page := engine.Page{Reverse: reverse}
	if cmd.Flags().Changed("start-after") {
		page.StartAfter = &startAfter
	}
	if cmd.Flags().Changed("limit") {
		page.Limit = &limit
	}
	return page
}
