//go:build unix

package keyagent

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/postalsys/cryptarc/internal/primitives"
)

// supported reports that this platform has filesystem-local IPC (a real
// AF_UNIX namespace), per spec.md §4.7's "degraded to a no-op elsewhere".
const supported = true

// maxSocketPathLen mirrors sockaddr_un's sun_path capacity; x/sys/unix
// exposes the platform struct directly rather than hardcoding 108/104.
var maxSocketPathLen = len(unix.RawSockaddrUnix{}.Path) - 1

func runtimeDir() string {
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR"} {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}
	return "/tmp"
}

func rendezvousPath(iv [primitives.IVSize]byte) (string, error) {
	// The rendezvous path is fixed as ${RUNTIME_DIR}/hex(iv) with no
	// decoration; any other cryptarc process (or a future reimplementation)
	// must compute the same path from the same iv to find this socket.
	path := filepath.Join(runtimeDir(), hex.EncodeToString(iv[:]))
	if len(path) > maxSocketPathLen {
		return "", errPathTooLong
	}
	return path, nil
}

// bindRendezvous binds the rendezvous socket without a TOCTOU window: it
// listens on a uniquely-named temporary path in the same directory, then
// renames it into place, instead of unlinking the target path and binding
// over it.
func bindRendezvous(path string) (net.Listener, error) {
	tmp := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	os.Remove(tmp)

	ln, err := net.Listen("unix", tmp)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, path); err != nil {
		ln.Close()
		os.Remove(tmp)
		return nil, err
	}
	return ln, nil
}

// restrictUmask ensures the rendezvous socket this process creates is only
// connectable by its owner, per spec.md §4.7 step 2.
func restrictUmask() {
	unix.Umask(0077)
}

func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
