package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/defilend/internal/domain"
	"github.com/rovshanmuradov/defilend/internal/events"
	"github.com/rovshanmuradov/defilend/internal/runner"
	"github.com/rovshanmuradov/defilend/internal/units"
)

// ErrActionFailed is returned when a lending action did not complete.
var ErrActionFailed = errors.New("action failed")

func newActionCmd(flags *globalFlags, use, short string, op domain.Operation) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <amount>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := units.ParsePositiveEther(args[0])
			if err != nil {
				return err
			}

			r, err := flags.open(cmd.Context(), runner.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			return runAction(cmd.Context(), cmd.OutOrStdout(), r.Lending, r.Bus, op, amount)
		},
	}
}

// Executor runs one lending action.
type Executor interface {
	Execute(ctx context.Context, op domain.Operation, amount *big.Int) domain.Outcome
}

// runAction executes op and prints submitted transactions as they happen.
func runAction(ctx context.Context, out io.Writer, exec Executor, bus *events.Bus, op domain.Operation, amount *big.Int) error {
	fmt.Fprintf(out, "● %s %s %s\n", op.Title(), units.FormatEther(amount), op.Token())

	progress := make(chan events.Event, 16)
	stop := make(chan struct{})
	done := make(chan struct{})
	if bus != nil {
		sub := bus.Subscribe(events.TxSubmitted, events.Forward(progress))
		defer sub.Unsubscribe()
	}
	go func() {
		defer close(done)
		for {
			select {
			case e := <-progress:
				printProgress(out, e)
			case <-stop:
				for {
					select {
					case e := <-progress:
						printProgress(out, e)
					default:
						return
					}
				}
			}
		}
	}()

	outcome := exec.Execute(ctx, op, amount)
	close(stop)
	<-done

	return printOutcome(out, outcome)
}

func printProgress(out io.Writer, e events.Event) {
	if sent, ok := e.(events.TxSubmittedEvent); ok {
		fmt.Fprintf(out, "  • %s sent %s\n", sent.Step, sent.TxHash.Hex())
	}
}

func printOutcome(out io.Writer, o domain.Outcome) error {
	for _, step := range o.Steps {
		if step.OK() {
			fmt.Fprintf(out, "  ✔ %s confirmed in block %d, gas %d\n", step.Label, step.Block, step.GasUsed)
		} else {
			fmt.Fprintf(out, "  ✘ %s %s: %v\n", step.Label, step.Kind, step.Err)
		}
	}
	if o.OK() {
		fmt.Fprintf(out, "✔ %s completed in %s\n", o.Operation.Title(), o.EndedAt.Sub(o.StartedAt).Round(time.Millisecond))
		return nil
	}
	return fmt.Errorf("%w: %s [%s]: %v", ErrActionFailed, o.Operation.Title(), o.Kind(), o.Error())
}
