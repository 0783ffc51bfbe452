package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// StatePath returns where the bucket map last synced with ref is kept inside the
// cache directory. The leading dot keeps it out of blob listings.
func StatePath(cacheDir, ref string) string {
	name := strings.NewReplacer("/", "_", ":", "_", "@", "_").Replace(ref)
	return filepath.Join(cacheDir, ".sync", name+".json")
}

// LoadState reads a bucket map. A missing file is an empty map.
func LoadState(path string) (map[string]PrefixInfo, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]PrefixInfo{}, nil
	}
	if err != nil {
		return nil, err
	}
	prefixes := map[string]PrefixInfo{}
	if err := json.Unmarshal(data, &prefixes); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return prefixes, nil
}

// SaveState writes a bucket map.
func SaveState(path string, prefixes map[string]PrefixInfo) error {
	data, err := json.MarshalIndent(prefixes, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return os.Rename(tmp, path)
}
