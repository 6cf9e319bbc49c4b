//go:build !unix && !windows

package keyagent

import (
	"net"
	"os/exec"

	"github.com/postalsys/cryptarc/internal/primitives"
)

// supported is false on any platform without a POSIX-style filesystem
// socket namespace.
const supported = false

func rendezvousPath(iv [primitives.IVSize]byte) (string, error) {
	return "", ErrUnsupported
}

func bindRendezvous(path string) (net.Listener, error) {
	return nil, ErrUnsupported
}

func restrictUmask() {}

func setDetached(cmd *exec.Cmd) {}
