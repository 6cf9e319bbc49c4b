// Package keyagent implements the background key agent (C7): a short-lived
// child process that caches a secret key's protection key in memory and
// serves it over a filesystem rendezvous socket keyed by the secret key's
// IV, so a passphrase only needs to be typed once per idle window. See
// spec.md §4.7.
//
// The agent is an availability optimization only. Nothing in this package's
// client half asserts that a key it returns is correct; callers (internal/keyfile)
// always re-validate against the file's ProtectHash.
package keyagent

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/postalsys/cryptarc/internal/logging"
	"github.com/postalsys/cryptarc/internal/primitives"
	"github.com/postalsys/cryptarc/internal/recovery"
)

// AgentServeArg is the hidden cobra subcommand name cmd/cryptarc re-execs
// itself with to become the agent child.
const AgentServeArg = "__agent-serve"

// DefaultIdleTimeout is used when the caller does not configure one.
const DefaultIdleTimeout = 180 * time.Second

var (
	// ErrUnsupported is returned on platforms without filesystem-local IPC.
	ErrUnsupported = errors.New("keyagent: not supported on this platform")
	// errPathTooLong signals a rendezvous path over the platform's socket
	// path limit; callers treat this as "skip the agent, warn", not fatal.
	errPathTooLong = errors.New("keyagent: rendezvous path exceeds socket path limit")
)

var (
	servesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cryptarc_agent_serves_total",
		Help: "Number of times a key agent successfully served its cached key to a client.",
	})
	timeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cryptarc_agent_timeouts_total",
		Help: "Number of times a key agent exited due to its idle timeout.",
	})
)

func init() {
	prometheus.MustRegister(servesTotal, timeoutsTotal)
}

// Client is the caller-facing half of the agent protocol: TryRead and Spawn
// satisfy internal/keyfile's Agent interface structurally.
type Client struct {
	// IdleTimeout is the window a spawned agent waits between accepts
	// before giving up and exiting.
	IdleTimeout time.Duration
	// DialTimeout bounds how long TryRead waits to connect; the default
	// (zero) uses a conservative short timeout since a missing or wedged
	// agent must never make the caller hang noticeably.
	DialTimeout time.Duration
	Logger      *logging.Logger
}

func (c *Client) idleTimeout() time.Duration {
	if c.IdleTimeout > 0 {
		return c.IdleTimeout
	}
	return DefaultIdleTimeout
}

func (c *Client) dialTimeout() time.Duration {
	if c.DialTimeout > 0 {
		return c.DialTimeout
	}
	return 200 * time.Millisecond
}

func (c *Client) logger() *logging.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logging.NopLogger()
}

// TryRead asks a running agent for the protection key cached for iv. It
// never returns an error: any failure to connect or read is reported as
// ok=false, per spec.md §4.7's client contract ("on any connect or read
// failure return 'no key'").
func (c *Client) TryRead(iv [primitives.IVSize]byte) (key [32]byte, ok bool) {
	if !supported {
		return key, false
	}
	path, err := rendezvousPath(iv)
	if err != nil {
		return key, false
	}

	conn, err := net.DialTimeout("unix", path, c.dialTimeout())
	if err != nil {
		return key, false
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(c.dialTimeout()))
	if _, err := io.ReadFull(conn, key[:]); err != nil {
		var zero [32]byte
		return zero, false
	}
	return key, true
}

// Spawn starts a background agent process caching key under the rendezvous
// id iv. An unsupported platform or an oversized rendezvous path is only
// logged and Spawn returns nil. Other failures (resolving the executable,
// creating the key pipe, starting the child, handing it the key) are
// returned as errors, which internal/keyfile reports as a warning rather
// than a fatal error.
func (c *Client) Spawn(key [32]byte, iv [primitives.IVSize]byte) error {
	if !supported {
		c.logger().Debug("key agent not supported on this platform")
		return nil
	}
	path, err := rendezvousPath(iv)
	if err != nil {
		c.logger().Warn("skipping key agent: rendezvous path too long", logging.KeyError, err)
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("keyagent: resolve executable: %w", err)
	}

	keyR, keyW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("keyagent: create key pipe: %w", err)
	}
	defer keyR.Close()

	cmd := exec.Command(execPath, AgentServeArg,
		"--iv", hex.EncodeToString(iv[:]),
		"--socket", path,
		"--timeout", c.idleTimeout().String(),
	)
	cmd.ExtraFiles = []*os.File{keyR}
	cmd.Stdin = nil
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		cmd.Stdout = devnull
		cmd.Stderr = devnull
	}
	setDetached(cmd)

	if err := cmd.Start(); err != nil {
		keyW.Close()
		if devnull != nil {
			devnull.Close()
		}
		return fmt.Errorf("keyagent: spawn agent: %w", err)
	}
	if devnull != nil {
		devnull.Close()
	}

	if _, err := keyW.Write(key[:]); err != nil {
		keyW.Close()
		return fmt.Errorf("keyagent: write key to agent: %w", err)
	}
	keyW.Close()

	// The parent does not wait for the child; a spawned agent outlives
	// this invocation. Reap it in the background so it doesn't linger as
	// a zombie once it exits.
	go func() {
		defer recovery.RecoverWithLog(c.logger(), "keyagent.reap")
		cmd.Wait()
	}()

	return nil
}

// ServeOptions configures Serve.
type ServeOptions struct {
	Key         [32]byte
	IV          [primitives.IVSize]byte
	SocketPath  string
	IdleTimeout time.Duration
	Logger      *logging.Logger
}

// Serve runs the agent's accept loop: bind the rendezvous socket, then
// repeatedly accept a connection, write the 32-byte key, and close it,
// until IdleTimeout elapses between accepts. It returns nil on a clean
// idle-timeout exit and a non-nil error on a bind or listener failure.
//
// Serve always unlinks the socket before returning, matching spec.md
// §4.7 step 3/4.
func Serve(opts ServeOptions) error {
	if !supported {
		return ErrUnsupported
	}
	log := opts.Logger
	if log == nil {
		log = logging.NopLogger()
	}

	restrictUmask()

	ln, err := bindRendezvous(opts.SocketPath)
	if err != nil {
		return fmt.Errorf("keyagent: bind: %w", err)
	}
	defer os.Remove(opts.SocketPath)
	defer ln.Close()

	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	var served, timedOut int
	defer func() {
		log.Info("key agent exiting",
			logging.KeyCount, served,
			"idle_timeout", timedOut == 1,
		)
	}()

	for {
		if dl, ok := ln.(interface{ SetDeadline(time.Time) error }); ok {
			dl.SetDeadline(time.Now().Add(idle))
		}

		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				timedOut = 1
				timeoutsTotal.Inc()
				return nil
			}
			return fmt.Errorf("keyagent: accept: %w", err)
		}

		_, writeErr := conn.Write(opts.Key[:])
		conn.Close()
		if writeErr != nil {
			log.Warn("key agent: write to client failed", logging.KeyError, writeErr)
			continue
		}
		served++
		servesTotal.Inc()
	}
}
