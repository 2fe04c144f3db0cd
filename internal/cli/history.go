package cli

import (
	"fmt"
	"io"
	"maps"
	"math/big"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/export"
	"github.com/rovshanmuradov/defilend/internal/runner"
	"github.com/rovshanmuradov/defilend/internal/storage"
	"github.com/rovshanmuradov/defilend/internal/storage/models"
	"github.com/rovshanmuradov/defilend/internal/units"
)

type filterFlags struct {
	operation string
	status    string
	since     time.Duration
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.operation, "operation", "", "Only this operation (add-collateral, borrow, repay, withdraw)")
	cmd.Flags().StringVar(&f.status, "status", "", "Only records with this status (confirmed, failed)")
	cmd.Flags().DurationVar(&f.since, "since", 0, "Only records newer than this, e.g. 24h")
}

func (f *filterFlags) filter(account string) (storage.Filter, error) {
	filter := storage.Filter{Account: account}
	if f.operation != "" {
		op, err := domain.ParseOperation(f.operation)
		if err != nil {
			return filter, err
		}
		filter.Operation = string(op)
	}
	switch f.status {
	case "", models.StatusConfirmed, models.StatusFailed:
		filter.Status = f.status
	default:
		return filter, fmt.Errorf("unknown status %q", f.status)
	}
	if f.since > 0 {
		filter.From = time.Now().Add(-f.since)
	}
	return filter, nil
}

func newHistoryCmd(flags *globalFlags) *cobra.Command {
	var (
		filters filterFlags
		limit   int
		stats   bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transactions of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := flags.open(cmd.Context(), runner.Options{})
			if err != nil {
				return err
			}
			defer r.Close()
			if r.Store == nil {
				return fmt.Errorf("history_dsn is not configured")
			}

			account := r.Lending.Account().Hex()
			filter, err := filters.filter(account)
			if err != nil {
				return err
			}
			filter.Limit = limit

			records, err := r.Store.ListFiltered(cmd.Context(), filter)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			printRecords(out, records)

			if stats {
				s, err := r.Store.Stats(cmd.Context(), account)
				if err != nil {
					return err
				}
				printStats(out, s)
			}
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of records")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print totals by status, operation and failure kind")
	return cmd
}

func printRecords(out io.Writer, records []*models.TxRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No transactions recorded")
		return
	}
	fmt.Fprintf(out, "%-19s  %-19s  %-19s  %22s  %-9s  %-18s  %s\n", "TIME", "OPERATION", "STEP", "AMOUNT", "STATUS", "FAILURE", "TX")
	for _, r := range records {
		amount := r.Amount
		if v, ok := new(big.Int).SetString(r.Amount, 10); ok {
			amount = units.FormatEther(v)
		}
		fmt.Fprintf(out, "%-19s  %-19s  %-19s  %22s  %-9s  %-18s  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Operation, r.Step, amount, r.Status, r.FailureKind, r.TxHash)
	}
}

func printStats(out io.Writer, s *models.Stats) {
	fmt.Fprintf(out, "● %d transactions: %d confirmed, %d failed\n", s.Total, s.Confirmed, s.Failed)
	for _, op := range slices.Sorted(maps.Keys(s.ByOperation)) {
		fmt.Fprintf(out, "  %-19s %d\n", op, s.ByOperation[op])
	}
	for _, kind := range slices.Sorted(maps.Keys(s.ByFailure)) {
		fmt.Fprintf(out, "  failure %-11s %d\n", kind, s.ByFailure[kind])
	}
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		filters filterFlags
		format  string
		outDir  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded transactions to CSV or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}

			r, err := flags.open(cmd.Context(), runner.Options{})
			if err != nil {
				return err
			}
			defer r.Close()
			if r.Store == nil {
				return fmt.Errorf("history_dsn is not configured")
			}

			filter, err := filters.filter(r.Lending.Account().Hex())
			if err != nil {
				return err
			}
			path, err := export.NewHistoryExporter(r.Store, r.Logger).Export(cmd.Context(), export.Options{
				Format:    f,
				Filter:    filter,
				OutputDir: outDir,
			})
			if err != nil {
				return err
			}
			abs, _ := filepath.Abs(path)
			fmt.Fprintf(cmd.OutOrStdout(), "● Exported to %s\n", abs)
			return nil
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVar(&format, "format", "csv", "Output format: csv or json")
	cmd.Flags().StringVar(&outDir, "out", "exports", "Output directory")
	return cmd
}
