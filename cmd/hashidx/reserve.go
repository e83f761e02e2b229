package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/hashindex/internal/hashindex"
)

var (
	reserveLevel   int64
	reservePayload string
)

var reserveCmd = &cobra.Command{
	Use:   "reserve <digest>",
	Short: "Reserve a digest, failing closed if it is already known",
	Long: "Reserve a digest, failing closed if it is already known.\n\n" +
		"Each hashidx invocation opens its own Index and closes it on exit,\n" +
		"so a reservation left uncommitted when this process exits is lost:\n" +
		"a later `commit` or `update` in a new process cannot see a pending\n" +
		"entry from a different process's lifetime.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		payload, err := hex.DecodeString(reservePayload)
		if err != nil {
			return fmt.Errorf("decode --payload: %w", err)
		}

		digest := hexDigest(idx, args[0])
		known, err := idx.Reserve(ctx, hashindex.HashEntry{
			Digest:  digest,
			Level:   reserveLevel,
			Payload: payload,
		})
		if err != nil {
			return err
		}
		if known {
			fmt.Println("already known")
			return nil
		}
		fmt.Println("reserved")
		return nil
	},
}

func init() {
	reserveCmd.Flags().Int64Var(&reserveLevel, "level", 0, "tree height of this digest")
	reserveCmd.Flags().StringVar(&reservePayload, "payload", "", "hex-encoded local payload")
	rootCmd.AddCommand(reserveCmd)
}
