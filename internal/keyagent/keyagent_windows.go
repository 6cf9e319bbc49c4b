//go:build windows

package keyagent

import (
	"net"
	"os/exec"
	"syscall"

	"github.com/postalsys/cryptarc/internal/primitives"
)

// supported is false: Windows' AF_UNIX support is version-gated and its
// rendezvous semantics (permissions, ACLs) do not map onto spec.md §4.7's
// "owner-only" model the way a POSIX socket's mode bits do. The agent
// degrades to a no-op here, exactly as spec.md allows.
const supported = false

func rendezvousPath(iv [primitives.IVSize]byte) (string, error) {
	return "", ErrUnsupported
}

func bindRendezvous(path string) (net.Listener, error) {
	return nil, ErrUnsupported
}

func restrictUmask() {}

func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}
