package controls

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// pack is the YAML form of a control list snapshot:
//
//	version: 2025-q2
//	valid_from: 2025-04-01T00:00:00Z
//	expires_at: 2025-10-01T00:00:00Z
//	lists:
//	  IR: [US, GB]
type pack struct {
	Version   string              `yaml:"version"`
	ValidFrom time.Time           `yaml:"valid_from"`
	ExpiresAt time.Time           `yaml:"expires_at"`
	Lists     map[string][]string `yaml:"lists"`
}

// LoadSnapshot reads a control list snapshot from YAML.
func LoadSnapshot(r io.Reader) (*Snapshot, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var p pack
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("control list: decode: %w", err)
	}
	if p.Version == "" {
		return nil, fmt.Errorf("control list: version is required")
	}
	if p.ValidFrom.IsZero() {
		return nil, fmt.Errorf("control list %s: valid_from is required", p.Version)
	}
	return NewSnapshot(p.Version, p.ValidFrom, p.ExpiresAt, p.Lists), nil
}

// LoadSnapshotFile reads a control list snapshot from a file path.
func LoadSnapshotFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("control list: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadSnapshot(f)
}
