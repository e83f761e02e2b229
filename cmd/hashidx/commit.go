package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var commitBlobRef string

var commitCmd = &cobra.Command{
	Use:   "commit <digest>",
	Short: "Finalize a digest with a persistent blob reference",
	Long: "Finalize a digest with a persistent blob reference.\n\n" +
		"Since each hashidx invocation opens and closes its own Index, this\n" +
		"only succeeds against a digest still pending in this process's\n" +
		"Index. This subcommand reserves nothing itself, and it cannot see a\n" +
		"reservation pending in another process; committing a digest that is\n" +
		"already durable from a prior run is a fatal error.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		blobRef, err := hex.DecodeString(commitBlobRef)
		if err != nil {
			return fmt.Errorf("decode --blob-ref: %w", err)
		}

		digest := hexDigest(idx, args[0])
		if err := idx.Commit(ctx, digest, blobRef); err != nil {
			return err
		}
		fmt.Println("committed")
		return nil
	},
}

func init() {
	commitCmd.Flags().StringVar(&commitBlobRef, "blob-ref", "", "hex-encoded persistent blob reference")
	rootCmd.AddCommand(commitCmd)
}
