package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Commit the trailing transaction and release ready callbacks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		if err := idx.Flush(ctx); err != nil {
			return err
		}
		fmt.Println("flushed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(flushCmd)
}
