package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/postalsys/cryptarc/internal/cleanup"
	"github.com/postalsys/cryptarc/internal/envelope"
	"github.com/postalsys/cryptarc/internal/keyfile"
	"github.com/postalsys/cryptarc/internal/logging"
)

// archiveSuffix is the conventional archive filename suffix, named
// literally in spec.md's GLOSSARY and §6 filename convention.
const archiveSuffix = ".enchive"

func archiveCmd() *cobra.Command {
	var (
		del   bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "archive <input> [output]",
		Short: "Encrypt a file for yourself",
		Long: `archive encrypts <input> under the recipient public key, writing the
result to [output] or, if omitted, to <input> with the conventional
"` + archiveSuffix + `" suffix appended.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := newCLIContext(cmd)
			if err != nil {
				return err
			}

			in := args[0]
			out := in + archiveSuffix
			if len(args) == 2 {
				out = args[1]
			}
			if err := keyfile.EnsureNotClobbering(out, force); err != nil {
				return err
			}

			pub, err := keyfile.ReadPublic(ctx.pubPath)
			if err != nil {
				return err
			}

			inFile, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("archive: open input: %w", err)
			}
			defer inFile.Close()

			reg := cleanup.New()
			defer reg.Close()
			handle := reg.Track(out)

			outFile, err := os.OpenFile(out, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
			if err != nil {
				return fmt.Errorf("archive: open output: %w", err)
			}

			if err := envelope.Archive(outFile, inFile, pub); err != nil {
				outFile.Close()
				return err
			}
			if err := outFile.Close(); err != nil {
				return fmt.Errorf("archive: close output: %w", err)
			}
			handle.Commit()

			inSize, outSize := fileSize(in), fileSize(out)
			ctx.logger.Info("archive complete",
				logging.KeyPath, out,
				"plaintext_size", humanize.Bytes(uint64(inSize)),
				"archive_size", humanize.Bytes(uint64(outSize)),
			)

			if del {
				if err := os.Remove(in); err != nil {
					return fmt.Errorf("archive: --delete: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&del, "delete", false, "remove the input file after a successful archive")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing output file")
	return cmd
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// stripArchiveSuffix removes the conventional suffix from an archive path,
// failing if it is not present (extract's input naming rule, spec.md §6).
func stripArchiveSuffix(path string) (string, error) {
	if !strings.HasSuffix(path, archiveSuffix) {
		return "", fmt.Errorf("extract: input %q does not end in %q", path, archiveSuffix)
	}
	return strings.TrimSuffix(path, archiveSuffix), nil
}
