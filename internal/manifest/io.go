package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/validator"
)

// Load reads a manifest written by a previous run
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("can't open %s: %w", path, err)
	}

	v, err := validator.NewManifestValidator()
	if err != nil {
		return Manifest{}, err
	}
	if err := v.ValidateJSON(data); err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}

	m := Empty()
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	Sort(&m)
	return m, nil
}

// Validate checks m against the manifest contract
func Validate(m Manifest) error {
	v, err := validator.NewManifestValidator()
	if err != nil {
		return err
	}
	if err := v.Validate(m); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

// ValidateDelta checks d against the delta contract
func ValidateDelta(d Delta) error {
	v, err := validator.NewManifestValidator()
	if err != nil {
		return err
	}
	if err := v.ValidateDelta(d); err != nil {
		return fmt.Errorf("manifest delta: %w", err)
	}
	return nil
}

// Write validates m and writes it to path
func Write(path string, m Manifest) error {
	if err := Validate(m); err != nil {
		return err
	}
	return writeJSONAtomic(path, m)
}

// WriteDelta validates d and writes it to path
func WriteDelta(path string, d Delta) error {
	if err := ValidateDelta(d); err != nil {
		return err
	}
	return writeJSONAtomic(path, d)
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest json: %w", err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("manifest dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("can't create %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write manifest file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close manifest file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename manifest file: %w", err)
	}
	return nil
}
