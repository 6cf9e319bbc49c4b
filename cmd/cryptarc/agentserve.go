package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/postalsys/cryptarc/internal/keyagent"
	"github.com/postalsys/cryptarc/internal/logging"
	"github.com/postalsys/cryptarc/internal/primitives"
)

// agentKeyFD is the file descriptor the parent process hands the agent
// child its protection key over, via exec.Cmd.ExtraFiles (fd 0-2 are
// stdin/stdout/stderr, so the first extra file lands at fd 3).
const agentKeyFD = 3

// agentServeCmd is the hidden re-exec target for internal/keyagent.Spawn.
// It is never invoked directly by a user; spec.md §9 calls this out as the
// portable substitute for fork() ("spawn of the same executable with a
// hidden sub-command that takes (protection_key, iv, timeout) over an
// inherited pipe, then detaches").
func agentServeCmd() *cobra.Command {
	var (
		ivHex      string
		socketPath string
		timeoutStr string
	)

	cmd := &cobra.Command{
		Use:    keyagent.AgentServeArg,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ivBytes, err := hex.DecodeString(ivHex)
			if err != nil || len(ivBytes) != primitives.IVSize {
				return fmt.Errorf("agent-serve: invalid --iv")
			}
			var iv [primitives.IVSize]byte
			copy(iv[:], ivBytes)

			timeout, err := time.ParseDuration(timeoutStr)
			if err != nil {
				timeout = keyagent.DefaultIdleTimeout
			}

			keyPipe := os.NewFile(agentKeyFD, "agent-key")
			if keyPipe == nil {
				return fmt.Errorf("agent-serve: key descriptor not inherited")
			}
			defer keyPipe.Close()

			var key [32]byte
			if _, err := io.ReadFull(keyPipe, key[:]); err != nil {
				return fmt.Errorf("agent-serve: read key: %w", err)
			}
			defer primitives.ZeroArray(&key)

			logger := logging.NewLogger("info", "text")
			return keyagent.Serve(keyagent.ServeOptions{
				Key:         key,
				IV:          iv,
				SocketPath:  socketPath,
				IdleTimeout: timeout,
				Logger:      logger,
			})
		},
	}

	cmd.Flags().StringVar(&ivHex, "iv", "", "hex-encoded 8-byte rendezvous id")
	cmd.Flags().StringVar(&socketPath, "socket", "", "rendezvous socket path")
	cmd.Flags().StringVar(&timeoutStr, "timeout", keyagent.DefaultIdleTimeout.String(), "idle timeout")
	return cmd
}
