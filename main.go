package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/dhcgn/application-tracker/cmd"
	"github.com/dhcgn/application-tracker/config"
	"github.com/dhcgn/application-tracker/filter"
	"github.com/dhcgn/application-tracker/gmail"
	"github.com/dhcgn/application-tracker/imap"
	"github.com/dhcgn/application-tracker/mbox"
	"github.com/dhcgn/application-tracker/normalize"
	"github.com/dhcgn/application-tracker/progress"
	"github.com/dhcgn/application-tracker/runner"
	"github.com/dhcgn/application-tracker/source"
	"github.com/dhcgn/application-tracker/stats"
	"github.com/dhcgn/application-tracker/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:           "application-tracker",
		Short:         "Track job applications found in your mailbox as CSV rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting application-tracker", "source", cfg.Source, "out", cfg.Out, "append", cfg.Append, "max", cfg.Max)

			return run(cmd.Context(), cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}
	rootCmd.AddCommand(cmd.NewSummaryCommand(), cmd.NewCredentialCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	f, err := filter.New(filter.Options{
		IncludeHeader: cfg.IncludeHeader,
		IncludeBody:   cfg.IncludeBody,
		ExcludeHeader: cfg.ExcludeHeader,
		ExcludeBody:   cfg.ExcludeBody,
	})
	if err != nil {
		return fmt.Errorf("filter.New: %w", err)
	}

	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn("closing source", "err", err)
		}
	}()

	mode := store.ModeOverwrite
	if cfg.Append {
		mode = store.ModeAppend
	}

	r, err := runner.New(runner.Options{
		Query:      cfg.Query,
		Max:        cfg.Max,
		Out:        cfg.Out,
		Mode:       mode,
		Filter:     f,
		Normalizer: normalize.New(normalize.Options{Location: cfg.Location, Logger: logger}),
	}, src, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	reporter := stats.NewReporter(r, logger)
	bar := progress.New(cfg.LogLevel)
	r.SubscribeStats("progress", bar.Update)

	if cfg.Query != "" {
		pterm.Info.Printf("Searching %s with query: %s\n", cfg.Source, cfg.Query)
	}

	runErr := r.Run(ctx)
	bar.Stop()
	reporter.Log()
	if runErr != nil {
		return runErr
	}

	progress.PrintSummary(reporter.Summary(), reporter.Duration(), cfg.Out)
	return nil
}

func openSource(ctx context.Context, cfg config.Config, logger *slog.Logger) (source.Source, error) {
	switch cfg.Source {
	case config.SourceGmail:
		c, err := gmail.NewClient(ctx, gmail.Options{
			CredentialsPath: cfg.CredentialsPath,
			TokenPath:       cfg.TokenPath,
		})
		if err != nil {
			return nil, fmt.Errorf("gmail.NewClient: %w", err)
		}
		return c, nil
	case config.SourceIMAP:
		c, err := imap.NewClient(ctx, imap.Options{
			Host:               cfg.IMAPHost,
			Port:               cfg.IMAPPort,
			Username:           cfg.IMAPUser,
			Password:           cfg.IMAPPass,
			UseTLS:             cfg.UseTLS,
			StartTLS:           cfg.StartTLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Folder:             cfg.IMAPFolder,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("imap.NewClient: %w", err)
		}
		return c, nil
	case config.SourceMbox:
		r, err := mbox.NewReader(mbox.Options{Path: cfg.MboxPath}, logger)
		if err != nil {
			return nil, fmt.Errorf("mbox.NewReader: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }
	runID := uuid.NewString()

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("application-tracker-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler).With("run", runID), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler).With("run", runID), cleanup, nil
}
