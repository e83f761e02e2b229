package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/hashindex/internal/hashindex"
)

var fetchRefCmd = &cobra.Command{
	Use:   "fetch-ref <digest>",
	Short: "Print a digest's persistent blob reference, hex-encoded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		idx, err := openIndex(ctx)
		if err != nil {
			return err
		}
		defer idx.Close(ctx)

		digest := hexDigest(idx, args[0])
		ref, result, err := idx.FetchPersistentRef(ctx, digest)
		if err != nil {
			return err
		}
		switch result {
		case hashindex.FetchNotKnown:
			return fmt.Errorf("digest not known")
		case hashindex.FetchRetry:
			fmt.Println("(not yet committed; retry)")
		default:
			fmt.Println(hex.EncodeToString(ref))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(fetchRefCmd)
}
