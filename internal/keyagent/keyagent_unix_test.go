//go:build unix

package keyagent

import (
	"encoding/hex"
	"path/filepath"
	"testing"

	"github.com/postalsys/cryptarc/internal/primitives"
)

func TestRendezvousPathIsBareHexIV(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	iv := [primitives.IVSize]byte{0xde, 0xad, 0xbe, 0xef, 1, 2, 3, 4}
	path, err := rendezvousPath(iv)
	if err != nil {
		t.Fatalf("rendezvousPath() error = %v", err)
	}
	want := filepath.Join("/run/user/1000", hex.EncodeToString(iv[:]))
	if path != want {
		t.Errorf("rendezvousPath() = %q, want %q (no prefix, per the fixed wire path)", path, want)
	}
}

func TestRendezvousPathTooLong(t *testing.T) {
	filler := make([]byte, maxSocketPathLen)
	for i := range filler {
		filler[i] = 'a'
	}
	t.Setenv("XDG_RUNTIME_DIR", "/"+string(filler))
	var iv [primitives.IVSize]byte
	if _, err := rendezvousPath(iv); err == nil {
		t.Error("rendezvousPath() should fail for an oversized runtime dir")
	}
}
