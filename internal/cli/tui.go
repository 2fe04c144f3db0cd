package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/defilend/internal/runner"
	"github.com/rovshanmuradov/defilend/internal/ui"
	"github.com/rovshanmuradov/defilend/internal/ui/app"
)

func newTUICmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd.Context(), flags)
		},
	}
}

// runDashboard starts the position monitor and the metrics endpoint, then
// blocks in the dashboard until the user quits.
func runDashboard(ctx context.Context, flags *globalFlags) error {
	r, err := flags.open(ctx, runner.Options{TUI: true})
	if err != nil {
		return err
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.ServeMetrics(ctx)
	go r.Monitor.Run(ctx)

	svc := ui.Services{
		Ctx:      ctx,
		Lending:  r.Lending,
		Position: r.Monitor,
		Logs:     r.LogBuffer,
		Logger:   r.Logger,
	}
	if r.Store != nil {
		svc.History = r.Store
	}
	return app.Run(ctx, svc, r.Bus, r.Logger)
}
