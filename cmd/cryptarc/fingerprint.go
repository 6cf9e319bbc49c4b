package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/postalsys/cryptarc/internal/keyfile"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the public key's fingerprint",
		Long: `fingerprint renders SHA-256(public key)[0..16] as four dash-joined
8-hex-digit words, for out-of-band comparison with a correspondent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCLIContext(cmd)
			if err != nil {
				return err
			}
			pub, err := keyfile.ReadPublic(ctx.pubPath)
			if err != nil {
				return err
			}
			fmt.Println(keyfile.Fingerprint(pub))
			return nil
		},
	}
	return cmd
}
