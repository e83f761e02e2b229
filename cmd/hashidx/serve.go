package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/untoldecay/hashindex/internal/config"
	"github.com/untoldecay/hashindex/internal/daemon"
	"github.com/untoldecay/hashindex/internal/hashindex"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run an idle daemon: open the index and watch for config changes until signalled",
	Long: "Run an idle daemon: open the index and watch for config changes until signalled.\n\n" +
		"serve accepts no requests. The flush timer is only checked when a\n" +
		"Reserve or Commit arrives, so no flush runs while the daemon is idle;\n" +
		"the trailing transaction is committed when serve shuts down.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newServeLogger()
		idx, err := hashindex.Open(ctx, hashindex.Config{
			Path:          pathOrConfig(),
			FlushInterval: config.GetDuration("flush_interval"),
			DigestWidth:   config.GetInt("digest_width"),
			BusyTimeout:   config.GetDuration("busy_timeout"),
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		defer idx.Close(context.Background())

		watcher, err := daemon.NewConfigWatcher(config.ConfigFileUsed(), idx, logger)
		if err != nil {
			return err
		}
		defer watcher.Close()
		watcher.Start(ctx)

		logger.Info("hashidx serve: waiting for shutdown signal")
		<-ctx.Done()
		logger.Info("hashidx serve: shutting down")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func pathOrConfig() string {
	if flagPath != "" {
		return flagPath
	}
	return config.GetString("path")
}

// newServeLogger builds a Logger that rotates its output file with
// lumberjack when log.file is configured, or logs to stderr otherwise.
func newServeLogger() hashindex.Logger {
	logFile := config.GetString("log.file")
	if logFile == "" {
		return hashindex.NewSlogLogger(slog.Default())
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    config.GetInt("log.max_size_mb"),
		MaxBackups: config.GetInt("log.max_backups"),
	}
	handler := slog.NewJSONHandler(rotator, nil)
	return hashindex.NewSlogLogger(slog.New(handler))
}
