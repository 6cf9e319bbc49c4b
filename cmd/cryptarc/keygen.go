package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/postalsys/cryptarc/internal/cleanup"
	"github.com/postalsys/cryptarc/internal/entropy"
	"github.com/postalsys/cryptarc/internal/kdf"
	"github.com/postalsys/cryptarc/internal/keyagent"
	"github.com/postalsys/cryptarc/internal/keyfile"
	"github.com/postalsys/cryptarc/internal/logging"
	"github.com/postalsys/cryptarc/internal/primitives"
	"github.com/postalsys/cryptarc/internal/tty"
)

// defaultDeriveIterations is the KDF cost for --derive's deterministic
// scalar derivation, distinct from the at-rest protection cost controlled
// by --iterations (original_source/src/enchive.c keeps these as two
// separate knobs: seckey_derive_iterations vs key_derive_iterations).
const defaultDeriveIterations = 28

func keygenCmd() *cobra.Command {
	var (
		derive      string
		edit        bool
		force       bool
		fingerprint bool
		iterations  int
		plain       bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new key pair, or re-protect an existing secret key",
		Long: `keygen creates a fresh Curve25519 key pair and writes the public key
and secret key to their default (or --pubkey/--seckey) locations.

By default the secret key file is itself encrypted under a passphrase
("protected at rest"); --plain stores it unencrypted instead. --iterations
sets the cost of that at-rest protection.

--derive[=N] skips entropy entirely and derives the secret scalar itself
from a passphrase via the memory-hard KDF with cost N (default 28),
producing a key that is reproducible from the passphrase alone. --derive
and --edit are mutually exclusive.

--edit re-protects an existing secret key in place: the old passphrase (or
agent) unlocks it, and it is rewritten under a new at-rest protection mode
instead of generating a new scalar.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if edit && derive != "" {
				return fmt.Errorf("keygen: --edit and --derive are mutually exclusive")
			}

			ctx, err := newCLIContext(cmd)
			if err != nil {
				return err
			}

			if !edit && !force {
				if err := keyfile.EnsureNotClobbering(ctx.pubPath, force); err != nil {
					return err
				}
				if err := keyfile.EnsureNotClobbering(ctx.secPath, force); err != nil {
					return err
				}
			}

			var scalar [primitives.ScalarSize]byte
			switch {
			case edit:
				scalar, err = readExistingSecret(ctx)
			case derive != "":
				scalar, err = deriveScalar(derive)
			default:
				scalar, err = entropy.GenerateScalar()
			}
			if err != nil {
				return err
			}
			defer primitives.ZeroArray(&scalar)

			pub := keyfile.PublicKey(primitives.ScalarBaseMult(scalar))

			if fingerprint {
				fmt.Println(keyfile.Fingerprint(pub))
			}

			protectIexp := 0
			if !plain {
				protectIexp = iterations
				if protectIexp == 0 {
					protectIexp = ctx.cfg.KDF.IterationExponent
				}
				if ctx.interactive() {
					var err error
					protectIexp, err = confirmProtectionCost(protectIexp)
					if err != nil {
						return err
					}
				}
			}

			reg := cleanup.New()
			defer reg.Close()

			secHandle, err := keyfile.TrackedWriteSecret(reg, ctx.secPath, scalar, keyfile.WriteSecretOptions{
				IterationExponent: protectIexp,
				Prompt:            tty.Prompter{},
			})
			if err != nil {
				return err
			}

			pubHandle, err := keyfile.TrackedWritePublic(reg, ctx.pubPath, pub)
			if err != nil {
				return err
			}

			secHandle.Commit()
			pubHandle.Commit()

			ctx.logger.Info("key pair written",
				logging.KeyPath, ctx.secPath,
				"protected", protectIexp != 0,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&derive, "derive", "", "derive the secret scalar from a passphrase instead of entropy; optional =N sets the derivation cost")
	cmd.Flags().Lookup("derive").NoOptDefVal = "true"
	cmd.Flags().BoolVar(&edit, "edit", false, "re-protect an existing secret key instead of generating a new one")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing key files")
	cmd.Flags().BoolVar(&fingerprint, "fingerprint", false, "print the fingerprint of the generated key")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "at-rest protection KDF iteration exponent (5-31)")
	cmd.Flags().BoolVar(&plain, "plain", false, "store the secret key unprotected at rest")
	return cmd
}

// deriveScalar implements --derive: the secret scalar is the KDF output for
// a twice-entered passphrase, under a zero salt, clamped into the valid
// Curve25519 subgroup. This is deterministic -- the same passphrase always
// reproduces the same key pair, with no secret-key file required to
// recover it (though one is still written for convenience).
func deriveScalar(arg string) ([primitives.ScalarSize]byte, error) {
	var scalar [primitives.ScalarSize]byte

	iexp := defaultDeriveIterations
	if arg != "true" {
		if _, err := fmt.Sscanf(arg, "%d", &iexp); err != nil {
			return scalar, fmt.Errorf("invalid --derive value %q: %w", arg, err)
		}
	}

	prompt := tty.Prompter{}
	pass1, err := prompt.ReadPassphrase("secret key passphrase: ")
	if err != nil {
		return scalar, err
	}
	defer primitives.Zero(pass1)

	pass2, err := prompt.ReadPassphrase("secret key passphrase (repeat): ")
	if err != nil {
		return scalar, err
	}
	defer primitives.Zero(pass2)

	if string(pass1) != string(pass2) {
		return scalar, keyfile.ErrPassphraseMismatch
	}

	key, err := kdf.Derive(pass1, iexp, [8]byte{})
	if err != nil {
		return scalar, err
	}
	copy(scalar[:], key[:])
	primitives.ClampScalar(&scalar)
	return scalar, nil
}

// confirmProtectionCost offers an interactive choice of at-rest protection
// cost through a huh select, when the terminal supports it. It never
// touches the passphrase itself -- that is always collected afterward via
// internal/tty, per spec.md §6's direct-terminal requirement.
func confirmProtectionCost(iexp int) (int, error) {
	choice := iexp
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("At-rest protection cost (higher = slower, more memory-hard)").
				Options(
					huh.NewOption("18 (256 KiB)", 18),
					huh.NewOption("20 (1 MiB)", 20),
					huh.NewOption("24 (16 MiB)", 24),
				).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return 0, fmt.Errorf("keygen: protection cost prompt: %w", err)
	}
	return choice, nil
}

func readExistingSecret(ctx *cliContext) ([primitives.ScalarSize]byte, error) {
	var client *keyagent.Client
	if ctx.agentOn {
		client = &keyagent.Client{IdleTimeout: ctx.agentIdle, Logger: ctx.logger}
	}
	opts := keyfile.ReadSecretOptions{Prompt: tty.Prompter{}}
	if client != nil {
		opts.Agent = client
	}
	return keyfile.ReadSecret(ctx.secPath, opts)
}
