package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/burst/api"
	"github.com/xraph/burst/config"
	"github.com/xraph/burst/engine"
	"github.com/xraph/burst/export"
	"github.com/xraph/burst/id"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/replay"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var (
		listen string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the replay scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, logger, err := setup(cmd, flags)
			if err != nil {
				return err
			}
			if listen != "" {
				f.HTTP.Listen = listen
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
			return serve(ctx, f, flags.configPath, eng, logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Override http.listen")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Log deliveries instead of sending them")
	return cmd
}

// serve runs the API server and replay scheduler until ctx is done, then
// stops both and the engine.
func serve(ctx context.Context, f *config.File, configPath string, eng *engine.Engine, logger *slog.Logger) error {
	// Runs outlive the request that started them; they end with the server.
	runCtx, cancelRuns := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRuns()

	sched := replay.NewScheduler(func(ctx context.Context, p *plan.Plan) (id.RunID, error) {
		rn, err := eng.Start(ctx, p)
		if err != nil {
			return id.Nil, err
		}
		return rn.ID(), nil
	}, eng.Extensions(), logger)
	if err := loadReplays(ctx, f, configPath, eng, sched); err != nil {
		return err
	}

	apiOpts := []api.Option{
		api.WithLogger(logger),
		api.WithReplays(sched),
		api.WithBaseContext(runCtx),
		api.WithEndpoints(export.Endpoints{Events: f.PagerDuty.EventsURL, Change: f.PagerDuty.ChangeURL}),
	}
	if len(f.HTTP.Tokens) > 0 {
		keys := make([]api.APIKeyEntry, 0, len(f.HTTP.Tokens))
		for _, tok := range f.HTTP.Tokens {
			keys = append(keys, api.APIKeyEntry{
				Token:    tok.Token,
				Identity: api.Identity{Subject: tok.Subject, Scopes: tok.Scopes},
			})
		}
		apiOpts = append(apiOpts, api.WithAuth(api.NewAPIKeyAuthenticator(keys...)))
	}
	handler := api.New(eng, apiOpts...).Handler()
	srv := &http.Server{
		Addr:              f.HTTP.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return sched.Start(runCtx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), f.Scenario.ShutdownTimeout)
		defer cancel()

		// Stopping the engine ends open event streams before the server
		// waits on them.
		errs := []error{
			sched.Stop(shutdownCtx),
			eng.Stop(shutdownCtx),
			srv.Shutdown(shutdownCtx),
		}
		cancelRuns()
		return errors.Join(errs...)
	})
	return g.Wait()
}

// loadReplays compiles each configured replay file and registers it.
// Relative paths are resolved against the configuration file directory.
func loadReplays(ctx context.Context, f *config.File, configPath string, eng *engine.Engine, sched *replay.Scheduler) error {
	base := filepath.Dir(configPath)
	for _, r := range f.Replays {
		path := r.File
		if !filepath.IsAbs(path) && configPath != "" {
			path = filepath.Join(base, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("replay %q: %w", r.Name, err)
		}
		comp, err := eng.Compile(ctx, string(raw))
		if err != nil {
			return fmt.Errorf("replay %q: %w", r.Name, err)
		}
		if _, err := sched.Add(r.Name, r.Schedule, comp.Plan); err != nil {
			return err
		}
	}
	return nil
}
