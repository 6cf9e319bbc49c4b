package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/postalsys/cryptarc/internal/cleanup"
	"github.com/postalsys/cryptarc/internal/codec"
	"github.com/postalsys/cryptarc/internal/envelope"
	"github.com/postalsys/cryptarc/internal/keyagent"
	"github.com/postalsys/cryptarc/internal/keyfile"
	"github.com/postalsys/cryptarc/internal/logging"
	"github.com/postalsys/cryptarc/internal/primitives"
	"github.com/postalsys/cryptarc/internal/tty"
)

func extractCmd() *cobra.Command {
	var (
		del   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "extract <input> [output]",
		Short: "Decrypt a previously archived file",
		Long: `extract decrypts <input>, which must end in "` + archiveSuffix + `", writing the
recovered plaintext to [output] or, if omitted, to <input> with the suffix
stripped.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCLIContext(cmd)
			if err != nil {
				return err
			}

			in := args[0]
			var out string
			if len(args) == 2 {
				out = args[1]
			} else {
				out, err = stripArchiveSuffix(in)
				if err != nil {
					return err
				}
			}
			if err := keyfile.EnsureNotClobbering(out, force); err != nil {
				return err
			}

			var client *keyagent.Client
			if ctx.agentOn {
				client = &keyagent.Client{IdleTimeout: ctx.agentIdle, Logger: ctx.logger}
			}
			readOpts := keyfile.ReadSecretOptions{Prompt: tty.Prompter{}}
			if client != nil {
				readOpts.Agent = client
				readOpts.SpawnAgent = true
			}

			secret, err := keyfile.ReadSecret(ctx.secPath, readOpts)
			if err != nil {
				return err
			}
			defer primitives.ZeroArray(&secret)

			inFile, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("extract: open input: %w", err)
			}
			defer inFile.Close()

			reg := cleanup.New()
			defer reg.Close()
			handle := reg.Track(out)

			outFile, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
			if err != nil {
				return fmt.Errorf("extract: open output: %w", err)
			}

			extractErr := envelope.Extract(outFile, inFile, secret)
			closeErr := outFile.Close()
			if extractErr != nil {
				return renderExtractError(extractErr)
			}
			if closeErr != nil {
				return fmt.Errorf("extract: close output: %w", closeErr)
			}
			handle.Commit()

			outSize := fileSize(out)
			ctx.logger.Info("extract complete",
				logging.KeyPath, out,
				"plaintext_size", humanize.Bytes(uint64(outSize)),
			)

			if del {
				if err := os.Remove(in); err != nil {
					return fmt.Errorf("extract: --delete: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&del, "delete", false, "remove the input file after a successful extract")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing output file")
	return cmd
}

// renderExtractError maps the envelope/codec sentinel errors to the exact
// single-line diagnostics spec.md §7/§8 names, without losing wrapped
// context for anything unexpected.
func renderExtractError(err error) error {
	switch {
	case errors.Is(err, envelope.ErrInvalidKeyOrFormat):
		return envelope.ErrInvalidKeyOrFormat
	case errors.Is(err, codec.ErrChecksumMismatch):
		return codec.ErrChecksumMismatch
	case errors.Is(err, codec.ErrTooShort):
		return codec.ErrTooShort
	default:
		return err
	}
}
