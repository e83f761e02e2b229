package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var existsCmd = &cobra.Command{
	Use:   "exists <digest>",
	Short: "Report whether a digest is known to the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		digest := hexDigest(idx, args[0])
		known, err := idx.HashExists(ctx, digest)
		if err != nil {
			return err
		}
		fmt.Println(known)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(existsCmd)
}
