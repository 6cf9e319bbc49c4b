package cleanup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCloseUnlinksUncommitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.enchive")
	if err := os.WriteFile(path, []byte("partial"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r := New()
	r.Track(path)
	r.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat err = %v", path, err)
	}
}

func TestCloseKeepsCommitted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.enchive")
	if err := os.WriteFile(path, []byte("done"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	r := New()
	h := r.Track(path)
	h.Commit()
	r.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected %s to survive, stat err = %v", path, err)
	}
}

func TestCloseHandlesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "never-created")

	r := New()
	r.Track(path)
	// Must not panic even though the file was never written.
	r.Close()
}

func TestMultipleHandlesIndependentCommit(t *testing.T) {
	dir := t.TempDir()
	pub := filepath.Join(dir, "k.pub")
	sec := filepath.Join(dir, "k.sec")
	os.WriteFile(pub, []byte("pub"), 0644)
	os.WriteFile(sec, []byte("sec"), 0600)

	r := New()
	hPub := r.Track(pub)
	r.Track(sec) // sec left uncommitted, simulating a failure after writing pub
	hPub.Commit()
	r.Close()

	if _, err := os.Stat(pub); err != nil {
		t.Errorf("committed pub file should survive: %v", err)
	}
	if _, err := os.Stat(sec); !os.IsNotExist(err) {
		t.Errorf("uncommitted sec file should be removed: %v", err)
	}
}
