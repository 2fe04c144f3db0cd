package cli

import (
	"fmt"
	"io"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/health"
	"github.com/rovshanmuradov/defilend/internal/runner"
	"github.com/rovshanmuradov/defilend/internal/units"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the account position and protocol totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := flags.open(cmd.Context(), runner.Options{NoHistory: true})
			if err != nil {
				return err
			}
			defer r.Close()

			snap, err := r.Lending.Snapshot(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read position: %w", err)
			}
			printSnapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health <loan> <collateral>",
		Short: "Evaluate position health for the given amounts",
		Long: `Evaluate a position offline. Amounts are decimal token amounts.
A position is healthy when loan / collateral is at least ` + bpsPercent(big.NewInt(health.ThresholdBps)) + `.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			loan, err := units.ParseEther(args[0])
			if err != nil {
				return fmt.Errorf("loan: %w", err)
			}
			collateral, err := units.ParseEther(args[1])
			if err != nil {
				return fmt.Errorf("collateral: %w", err)
			}

			out := cmd.OutOrStdout()
			r, _ := health.Ratio(loan, collateral)
			fmt.Fprintf(out, "● %s\n", health.Label(health.IsHealthy(loan, collateral)))
			fmt.Fprintf(out, "  ratio:     %s\n", bpsPercent(r))
			fmt.Fprintf(out, "  threshold: %s\n", bpsPercent(big.NewInt(health.ThresholdBps)))
			return nil
		},
	}
}

func bpsPercent(bps *big.Int) string {
	if bps == nil {
		return "n/a"
	}
	whole := new(big.Int).Quo(bps, big.NewInt(100))
	frac := new(big.Int).Rem(bps, big.NewInt(100))
	return fmt.Sprintf("%s.%02d%%", whole, frac.Int64())
}

func tokens(v *big.Int, symbol string) string {
	if v == nil {
		return "n/a"
	}
	return units.FormatEther(v) + " " + symbol
}

func printSnapshot(out io.Writer, s domain.Snapshot) {
	mode := "signer"
	if s.ReadOnly {
		mode = "read-only"
	}
	contract := "unknown"
	if s.ContractHealthKnown {
		contract = health.Label(s.ContractHealthy)
	}
	ltc := "n/a"
	if s.LTC != nil {
		ltc = s.LTC.String()
	}

	fmt.Fprintf(out, "● Account %s (%s)\n", s.Account.Hex(), mode)
	fmt.Fprintf(out, "  collateral:          %s\n", tokens(s.Collateral, "CLT"))
	fmt.Fprintf(out, "  loan:                %s\n", tokens(s.Loan, "BFI"))
	fmt.Fprintf(out, "  wallet:              %s, %s\n", tokens(s.CollateralBalance, "CLT"), tokens(s.BorrowBalance, "BFI"))
	fmt.Fprintf(out, "  ltc:                 %s\n", ltc)
	fmt.Fprintf(out, "  contract health:     %s\n", contract)
	fmt.Fprintf(out, "  simulated health:    %s (%s)\n", health.Label(s.SimulatedHealthy), bpsPercent(s.SimulatedRatio))
	fmt.Fprintf(out, "  allowances:          %s, %s\n", tokens(s.CollateralAllowance, "CLT"), tokens(s.BorrowAllowance, "BFI"))
	fmt.Fprintln(out, "● Protocol")
	fmt.Fprintf(out, "  available to borrow: %s\n", tokens(s.AvailableBorrow, "BFI"))
	fmt.Fprintf(out, "  residual collateral: %s\n", tokens(s.ResidualCollateral, "CLT"))
	fmt.Fprintf(out, "  total borrowed:      %s\n", tokens(s.TotalBorrowed, "BFI"))
	fmt.Fprintf(out, "  total collateral:    %s\n", tokens(s.TotalCollateral, "CLT"))
}

