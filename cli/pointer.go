package cli

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/jack-avery/srpk/vault"
	"github.com/pkg/errors"
)

func readPointer(file string) (string, error) {
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "read active vault from %s", file)
	}
	if !utf8.Valid(data) {
		return "", errors.Wrapf(vault.ErrCorrupt, "active vault pointer %s is not text", file)
	}
	return strings.TrimSpace(string(data)), nil
}

// writePointer makes vaultPath the active vault. Relative paths are made
// absolute so the pointer stays valid from any working directory.
func writePointer(file, vaultPath string) (string, error) {
	abs, err := filepath.Abs(vaultPath)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", vaultPath)
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return "", errors.Wrapf(vault.ErrNotFound, "no vault at %s", abs)
	}
	if err := os.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return "", errors.Wrapf(err, "create %s", filepath.Dir(file))
	}
	if err := atomicWriteFile(file, []byte(abs), 0600); err != nil {
		return "", errors.Wrapf(err, "write active vault to %s", file)
	}
	log.Debugf("Active vault pointer %s -> %s", file, abs)
	return abs, nil
}

func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, ".srpk-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return err
	}
	if err := tmpFile.Chmod(perm); err != nil {
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	_ = syncDir(dir)
	return nil
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
