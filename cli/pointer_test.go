package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jack-avery/srpk/vault"
	"github.com/pkg/errors"
)

func TestReadPointerMissing(t *testing.T) {
	got, err := readPointer(filepath.Join(t.TempDir(), pointerFilename))
	if err != nil || got != "" {
		t.Fatalf("readPointer() = %q, %v", got, err)
	}
}

func TestReadPointerNotText(t *testing.T) {
	file := filepath.Join(t.TempDir(), pointerFilename)
	if err := os.WriteFile(file, []byte{0xff, 0xfe, 0x00}, 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := readPointer(file); !errors.Is(err, vault.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestWritePointer(t *testing.T) {
	dir := t.TempDir()
	vaultPath := filepath.Join(dir, "vault1.db")
	if err := os.WriteFile(vaultPath, nil, 0600); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(dir, "conf", pointerFilename)

	abs, err := writePointer(file, vaultPath)
	if err != nil {
		t.Fatal(err)
	}
	if abs != vaultPath {
		t.Fatalf("writePointer returned %q, want %q", abs, vaultPath)
	}
	got, err := readPointer(file)
	if err != nil || got != vaultPath {
		t.Fatalf("readPointer() = %q, %v", got, err)
	}
	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("pointer file mode %v", info.Mode().Perm())
	}
}

func TestWritePointerRelative(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if err := os.WriteFile("vault1.db", nil, 0600); err != nil {
		t.Fatal(err)
	}
	abs, err := writePointer(filepath.Join(dir, pointerFilename), "vault1.db")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(abs) || filepath.Base(abs) != "vault1.db" {
		t.Fatalf("pointer %q is not an absolute path to the vault", abs)
	}
}

func TestWritePointerMissingVault(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, pointerFilename)
	_, err := writePointer(file, filepath.Join(dir, "nope.db"))
	if !errors.Is(err, vault.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Fatal("pointer written for a missing vault")
	}
}
