// Command hashidx is a manual-inspection and integration-test CLI over
// a Hash Index: each subcommand opens its own index against the
// configured path; most issue exactly one C6 message, import issues one
// Reserve per record, and serve issues none.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/hashindex/internal/config"
	"github.com/untoldecay/hashindex/internal/hashindex"
)

var (
	flagPath          string
	flagDigestWidth   int
	flagBusyTimeout   time.Duration
	flagFlushInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "hashidx",
	Short: "Inspect and drive a Hash Index database",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagPath, "path", "", "database path (overrides config.yaml's path)")
	rootCmd.PersistentFlags().IntVar(&flagDigestWidth, "digest-width", 0, "digest width override in bytes")
	rootCmd.PersistentFlags().DurationVar(&flagBusyTimeout, "busy-timeout", 0, "SQLite busy timeout override")
	rootCmd.PersistentFlags().DurationVar(&flagFlushInterval, "flush-interval", 0, "flush interval override")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openIndex opens the Hash Index named by --path / config.yaml's path,
// applying any of the tuning flags the caller set.
func openIndex(ctx context.Context) (*hashindex.Index, error) {
	path := flagPath
	if path == "" {
		path = config.GetString("path")
	}

	cfg := hashindex.Config{
		Path:          path,
		FlushInterval: flagFlushInterval,
		DigestWidth:   flagDigestWidth,
		BusyTimeout:   flagBusyTimeout,
		Logger:        hashindex.NewSlogLogger(slog.Default()),
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = config.GetDuration("flush_interval")
	}
	if cfg.DigestWidth <= 0 {
		cfg.DigestWidth = config.GetInt("digest_width")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = config.GetDuration("busy_timeout")
	}
	return hashindex.Open(ctx, cfg)
}

// hexDigest decodes a command-line digest argument, hashing it as raw
// text if it isn't valid hex — convenient for ad hoc testing without
// precomputing a SHA-512 by hand.
func hexDigest(idx *hashindex.Index, arg string) hashindex.Digest {
	if d, err := hashindex.DecodeDigestHex(arg); err == nil {
		return d
	}
	return idx.NewDigest([]byte(arg))
}
