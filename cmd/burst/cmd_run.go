package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xraph/burst"
	"github.com/xraph/burst/run"
)

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		dryRun bool
		scale  float64
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Compile a scenario and deliver it on its schedule",
		Long: "Compiles FILE (or - for stdin) and fires every plan entry at its offset. " +
			"Interrupting the command aborts entries that have not fired yet. " +
			"The final run report is printed as JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("scale") {
				f.Scenario.TimeScale = scale
			}
			if cmd.Flags().Changed("seed") {
				f.Scenario.Seed = &seed
			}
			if err := f.Validate(); err != nil {
				return err
			}

			raw, err := readInput(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			sender, err := newSender(f, logger, dryRun)
			if err != nil {
				return err
			}
			eng, closeAudit, err := newEngine(f, logger, sender)
			if err != nil {
				return err
			}
			defer closeAudit() //nolint:errcheck // append-only log

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			comp, err := eng.Compile(ctx, raw)
			if err != nil {
				return err
			}
			rn, err := eng.Start(ctx, comp.Plan)
			if err != nil {
				return err
			}
			logger.Info("run started",
				slog.String("run_id", rn.ID().String()),
				slog.Int("entries", comp.Plan.Len()),
				slog.Duration("span", comp.Plan.Span()),
			)

			rep, err := rn.Wait(context.WithoutCancel(ctx))
			if err != nil {
				return err
			}
			if err := eng.Stop(context.Background()); err != nil {
				logger.Warn("engine stop", slog.String("error", err.Error()))
			}
			if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
				return err
			}
			if rep.State == run.StateAborted {
				return burst.ErrRunAborted
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log deliveries instead of sending them")
	cmd.Flags().Float64Var(&scale, "scale", 1, "Time scale (2 fires twice as fast)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "Seed token generation for reproducible values")
	return cmd
}
