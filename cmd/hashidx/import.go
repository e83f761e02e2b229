package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/untoldecay/hashindex/internal/hashindex"
)

// importEntry is one record of a batch-reserve YAML file: a flat list
// of records, each with a digest and its local payload.
type importEntry struct {
	Digest  string `yaml:"digest"`
	Level   int64  `yaml:"level"`
	Payload string `yaml:"payload"`
}

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Reserve a batch of digests described in a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		var entries []importEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("parse %s: %w", args[0], err)
		}

		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		imported := 0
		for _, e := range entries {
			digest, err := hashindex.DecodeDigestHex(e.Digest)
			if err != nil {
				return fmt.Errorf("entry %q: decode digest: %w", e.Digest, err)
			}
			payload, err := hex.DecodeString(e.Payload)
			if err != nil {
				return fmt.Errorf("entry %q: decode payload: %w", e.Digest, err)
			}
			known, err := idx.Reserve(ctx, hashindex.HashEntry{Digest: digest, Level: e.Level, Payload: payload})
			if err != nil {
				return fmt.Errorf("entry %q: reserve: %w", e.Digest, err)
			}
			if !known {
				imported++
			}
		}

		fmt.Printf("imported %d of %d entries (rest already known)\n", imported, len(entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
