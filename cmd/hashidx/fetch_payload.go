package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"
)

var fetchPayloadCmd = &cobra.Command{
	Use:   "fetch-payload <digest>",
	Short: "Print a digest's local payload, hex-encoded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		digest := hexDigest(idx, args[0])
		payload, present, found, err := idx.FetchPayload(ctx, digest)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("digest not known")
		}
		if !present {
			fmt.Println("(absent)")
			return nil
		}
		fmt.Println(hex.EncodeToString(payload))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchPayloadCmd)
}
