package generator

import (
	"fmt"
	"os"
	"path/filepath"
)

func toStdout(path string) bool {
	return path == "" || path == "-"
}

// writeFileAtomic replaces path with data through a temp file in the same
// directory, so readers never see a half-written header.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".xlate_vreg-*.tmp")
	if err != nil {
		return fmt.Errorf("can't create %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("can't create %s: %w", path, err)
	}
	return nil
}
