package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/hashindex/internal/hashindex"
)

var (
	updateLevel   int64
	updatePayload string
)

var updateCmd = &cobra.Command{
	Use:   "update <digest>",
	Short: "Update a still-pending reservation's level or payload",
	Long: "Update a still-pending reservation's level or payload.\n\n" +
		"Since each hashidx invocation opens and closes its own Index, this\n" +
		"only changes a digest reserved earlier within the same process; it\n" +
		"cannot see a reservation still pending in another live process.\n" +
		"Against a digest already durable from a prior run it succeeds\n" +
		"without changing anything; against an unknown digest it fails.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		payload, err := hex.DecodeString(updatePayload)
		if err != nil {
			return fmt.Errorf("decode --payload: %w", err)
		}

		digest := hexDigest(idx, args[0])
		if err := idx.UpdateReserved(ctx, hashindex.HashEntry{
			Digest:  digest,
			Level:   updateLevel,
			Payload: payload,
		}); err != nil {
			return err
		}
		fmt.Println("updated")
		return nil
	},
}

func init() {
	updateCmd.Flags().Int64Var(&updateLevel, "level", 0, "tree height of this digest")
	updateCmd.Flags().StringVar(&updatePayload, "payload", "", "hex-encoded local payload")
	rootCmd.AddCommand(updateCmd)
}
