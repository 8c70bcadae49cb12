package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LoadBundle reads and validates a bundle written by SaveBundle. A missing
// file is reported as ErrBundleNotFound.
func LoadBundle(path string) (*Bundle, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s; run the train command first", ErrBundleNotFound, path)
		}
		return nil, err
	}
	var bundle Bundle
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	if bundle.Encoders == nil {
		bundle.Encoders = map[string]*LabelEncoder{}
	}
	if bundle.UnseenPolicy == "" {
		bundle.UnseenPolicy = UnseenReject
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle %s: %w", path, err)
	}
	return &bundle, nil
}

// SaveBundle writes the bundle to path through a temporary file so readers
// never observe a partial bundle.
func SaveBundle(bundle *Bundle, path string) error {
	bundle.Fingerprint = bundle.ComputeFingerprint()
	if err := bundle.Validate(); err != nil {
		return fmt.Errorf("refusing to save invalid bundle: %w", err)
	}
	payload, err := json.Marshal(bundle)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".bundle-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
