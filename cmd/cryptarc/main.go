// Package main provides the CLI entry point for cryptarc, a personal
// file-encryption utility built around ephemeral-static Curve25519 key
// agreement and a passphrase-protected secret key.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/cryptarc/internal/config"
	"github.com/postalsys/cryptarc/internal/logging"
	"github.com/postalsys/cryptarc/internal/tty"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"
)

// verbs lists the known top-level commands, used by resolveVerbPrefix to
// implement spec.md §6's prefix-matchable verb dispatch ("arch" = "archive").
var verbs = []string{"keygen", "fingerprint", "archive", "extract"}

func main() {
	rootCmd := &cobra.Command{
		Use:     "cryptarc",
		Short:   "cryptarc - personal file encryption",
		Version: Version,
		Long: `cryptarc generates an asymmetric key pair, encrypts files for yourself
(archive), and decrypts them later (extract). Encryption never needs a
passphrase; the secret key itself can be protected at rest by one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("pubkey", "", "path to the public key file (default: platform config dir)")
	rootCmd.PersistentFlags().String("seckey", "", "path to the secret key file (default: platform config dir)")
	rootCmd.PersistentFlags().String("agent", "", "enable the key agent, optionally with an idle timeout in seconds")
	rootCmd.PersistentFlags().Lookup("agent").NoOptDefVal = "-1"
	rootCmd.PersistentFlags().Bool("no-agent", false, "disable the key agent for this invocation")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn, or error")
	rootCmd.PersistentFlags().String("log-format", "", "text or json")
	rootCmd.PersistentFlags().String("config", "", "path to an optional YAML defaults file")

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(fingerprintCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(agentServeCmd())

	args := resolveVerbPrefix(os.Args[1:])
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "cryptarc: %v\n", err)
		os.Exit(1)
	}
}

// valueFlags lists the root persistent flags that consume a separate
// following argument (as opposed to "--flag=value" or a bare boolean), so
// resolveVerbPrefix can skip over their values while scanning for the verb
// position.
var valueFlags = map[string]bool{
	"--pubkey":     true,
	"--seckey":     true,
	"--log-level":  true,
	"--log-format": true,
	"--config":     true,
}

// resolveVerbPrefix rewrites a unique, unambiguous prefix of a known verb
// (e.g. "arch") to its full name (e.g. "archive") before cobra ever sees it.
// cobra's own abbreviation support only covers flags, not subcommands, so
// this runs ahead of rootCmd.Execute() per SPEC_FULL.md's supplemented
// prefix-matching dispatch. Only the first non-flag argument is considered,
// since that is always the verb position in cryptarc's flat command tree;
// a value-taking flag's separate argument is skipped rather than mistaken
// for the verb.
func resolveVerbPrefix(args []string) []string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) == 0 {
			continue
		}
		if a[0] == '-' {
			if valueFlags[a] {
				i++
			}
			continue
		}
		if full, ok := uniqueVerbMatch(a); ok {
			out := make([]string, len(args))
			copy(out, args)
			out[i] = full
			return out
		}
		return args
	}
	return args
}

func uniqueVerbMatch(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	var match string
	for _, v := range verbs {
		if v == prefix {
			return v, true
		}
		if len(prefix) < len(v) && v[:len(prefix)] == prefix {
			if match != "" {
				return "", false
			}
			match = v
		}
	}
	if match == "" {
		return "", false
	}
	return match, true
}

// cliContext bundles the resolved global configuration every command needs:
// key paths, the logger, agent behavior, and the optional YAML defaults.
type cliContext struct {
	cfg         *config.Config
	logger      *logging.Logger
	pubPath     string
	secPath     string
	agentOn     bool
	agentIdleOK bool
	agentIdle   time.Duration
}

// interactive reports whether the process has a controlling terminal,
// used to decide whether an interactive huh prompt is even possible.
func (c *cliContext) interactive() bool {
	return tty.IsInteractive()
}

// newCLIContext resolves cmd's persistent flags against the optional config
// file and the platform default key paths, in that precedence order: flags
// override config, config overrides built-in defaults.
func newCLIContext(cmd *cobra.Command) (*cliContext, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = cfg.LogFormat
	}
	logger := logging.NewLogger(level, format)

	pub, _ := cmd.Flags().GetString("pubkey")
	sec, _ := cmd.Flags().GetString("seckey")
	if pub == "" || sec == "" {
		paths, err := defaultKeyPaths()
		if err != nil {
			return nil, err
		}
		if pub == "" {
			pub = paths.Public
		}
		if sec == "" {
			sec = paths.Secret
		}
	}

	agentOn := cfg.Agent.Enabled
	agentIdle := cfg.Agent.IdleTimeout
	agentIdleSet := false

	noAgent, _ := cmd.Flags().GetBool("no-agent")
	if noAgent {
		agentOn = false
	} else if cmd.Flags().Changed("agent") {
		agentOn = true
		raw, _ := cmd.Flags().GetString("agent")
		if raw != "" && raw != "-1" {
			secs, err := parseSeconds(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid --agent timeout: %w", err)
			}
			agentIdle = secs
			agentIdleSet = true
		}
	}

	return &cliContext{
		cfg:         cfg,
		logger:      logger,
		pubPath:     pub,
		secPath:     sec,
		agentOn:     agentOn,
		agentIdleOK: agentIdleSet,
		agentIdle:   agentIdle,
	}, nil
}

func loadConfig(explicitPath string) (*config.Config, error) {
	if explicitPath != "" {
		return config.Load(explicitPath)
	}
	dir, err := configDirQuiet()
	if err != nil {
		return config.Default(), nil
	}
	return config.LoadOptional(filepath.Join(dir, "config.yaml"))
}

func parseSeconds(raw string) (time.Duration, error) {
	var secs int
	if _, err := fmt.Sscanf(raw, "%d", &secs); err != nil {
		return 0, err
	}
	if secs <= 0 {
		return 0, fmt.Errorf("must be a positive number of seconds")
	}
	return time.Duration(secs) * time.Second, nil
}
