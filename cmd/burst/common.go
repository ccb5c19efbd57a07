package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	audithook "github.com/xraph/burst/audit_hook"
	"github.com/xraph/burst/config"
	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/engine"
)

// setup loads the configuration and builds the logger.
func setup(cmd *cobra.Command, flags *rootFlags) (*config.File, *slog.Logger, error) {
	f, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, err
	}
	if flags.logLevel != "" {
		if _, err := config.ParseLevel(flags.logLevel); err != nil {
			return nil, nil, fmt.Errorf("--log-level: %w", err)
		}
		f.Log.Level = flags.logLevel
	}
	return f, f.Logger(cmd.ErrOrStderr()), nil
}

// newSender returns the PagerDuty sender, or the logging dry-run sender
// when dryRun is set or no routing key is configured.
func newSender(f *config.File, logger *slog.Logger, dryRun bool) (delivery.Sender, error) {
	if dryRun || f.PagerDuty.RoutingKey == "" {
		if !dryRun {
			logger.Warn("no routing key configured; deliveries are logged only",
				slog.String("env", config.EnvRoutingKey),
			)
		}
		return delivery.Log(logger), nil
	}
	opts := append(f.PagerDutyOptions(), delivery.WithLogger(logger))
	return delivery.NewPagerDuty(f.PagerDuty.RoutingKey, opts...)
}

// newEngine builds an engine from f. A nil sender yields a compile-only
// engine. The returned close function releases the audit log.
func newEngine(f *config.File, logger *slog.Logger, sender delivery.Sender) (*engine.Engine, func() error, error) {
	res, err := f.Resolver()
	if err != nil {
		return nil, nil, err
	}
	opts := []engine.Option{
		engine.WithConfig(f.Config()),
		engine.WithLogger(logger),
		engine.WithResolver(res),
	}
	if sender != nil {
		opts = append(opts, engine.WithSender(sender))
	}

	closeAudit := func() error { return nil }
	if f.Audit.File != "" {
		file, err := os.OpenFile(f.Audit.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("audit log: %w", err)
		}
		auditOpts := []audithook.Option{audithook.WithLogger(logger)}
		if len(f.Audit.Actions) > 0 {
			auditOpts = append(auditOpts, audithook.WithActions(f.Audit.Actions...))
		}
		if f.Audit.MinSeverity != "" {
			auditOpts = append(auditOpts, audithook.WithMinSeverity(f.Audit.MinSeverity))
		}
		opts = append(opts, engine.WithExtension(audithook.New(audithook.NewWriterRecorder(file), auditOpts...)))
		closeAudit = file.Close
	}

	eng, err := engine.New(opts...)
	if err != nil {
		_ = closeAudit()
		return nil, nil, err
	}
	return eng, closeAudit, nil
}

// readInput reads a scenario from path, or from in when path is "-".
func readInput(path string, in io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(in)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
