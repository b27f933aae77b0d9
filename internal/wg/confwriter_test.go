package wg

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteConf(t *testing.T) {
	dir := t.TempDir()
	content := []byte("[Interface]\nAddress = 10.0.0.1/24\n")

	path, err := WriteConf(dir, "wg0", content)
	if err != nil {
		t.Fatalf("WriteConf: %v", err)
	}
	if path != filepath.Join(dir, "wg0.conf") {
		t.Fatalf("unexpected path %q", path)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != string(content) {
		t.Fatal("content mismatch")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}
}

func TestWriteConfReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	if _, err := WriteConf(dir, "wg0", []byte("old")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := WriteConf(dir, "wg0", []byte("new")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, _ := os.ReadFile(filepath.Join(dir, "wg0.conf"))
	if string(got) != "new" {
		t.Fatalf("expected replaced content, got %q", got)
	}

	// No temp leftovers.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".wg0.conf.") {
			t.Fatalf("leftover temp file %s", e.Name())
		}
	}
}

func TestWriteConfPermissionDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	dir := t.TempDir()
	if err := os.Chmod(dir, 0o500); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })

	_, err := WriteConf(dir, "wg0", []byte("x"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}
