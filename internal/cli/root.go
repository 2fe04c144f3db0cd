package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/runner"
)

type globalFlags struct {
	configPath string
	account    string
}

// NewRootCmd builds the defilend command tree. Without a subcommand it opens
// the dashboard.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "defilend",
		Short: "Terminal client for the BorrowFi lending protocol",
		Long: `defilend reads a BorrowFi position and sends lending transactions:
- status and health of the configured account
- add-collateral, borrow, repay and withdraw with automatic ERC-20 approval
- local history of every submitted transaction, with CSV/JSON export

Run without a subcommand to open the interactive dashboard.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), flags)
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "configs/config.json", "Path to config file")
	root.PersistentFlags().StringVar(&flags.account, "account", "", "Read-only session for this address")

	root.AddCommand(
		newStatusCmd(flags),
		newHealthCmd(),
		newActionCmd(flags, "add-collateral", "Deposit CLT as collateral", domain.OpAddCollateral),
		newActionCmd(flags, "borrow", "Borrow BFI against collateral", domain.OpBorrow),
		newActionCmd(flags, "repay", "Repay borrowed BFI", domain.OpRepay),
		newActionCmd(flags, "withdraw", "Withdraw CLT collateral", domain.OpWithdrawCollateral),
		newHistoryCmd(flags),
		newExportCmd(flags),
		newTUICmd(flags),
	)
	return root
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (f *globalFlags) open(ctx context.Context, opts runner.Options) (*runner.Runner, error) {
	opts.ConfigPath = f.configPath
	opts.Account = f.account
	return runner.New(ctx, opts)
}
