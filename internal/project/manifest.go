// Package project describes a VBA project laid out as exported module files.
package project

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// ManifestFile is the project manifest name at the project root.
const ManifestFile = "vbaproject.toml"

// Manifest is the root structure of vbaproject.toml.
type Manifest struct {
	// Version is the schema version
	Version int `toml:"version"`

	// Name is the VBA project name, as shown in the host
	Name string `toml:"name"`

	// ID identifies the project in qualified names (defaults to Name)
	ID string `toml:"id,omitempty"`

	// Source is the root-relative directory holding module files (defaults to ".")
	Source string `toml:"source,omitempty"`

	// Exclude lists doublestar globs of files that are not project components
	Exclude []string `toml:"exclude,omitempty"`
}

// ParseManifest parses a manifest file.
func ParseManifest(filePath string) (*Manifest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ManifestFile, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ManifestFile, err)
	}

	if m.Version < 1 {
		m.Version = 1
	}
	return &m, nil
}

// LoadManifest loads the manifest under root. A missing manifest yields a
// default one named after the root directory.
func LoadManifest(root string) (*Manifest, error) {
	filePath := filepath.Join(root, ManifestFile)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &Manifest{Version: 1, Name: defaultName(root)}, nil
	}

	m, err := ParseManifest(filePath)
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		m.Name = defaultName(root)
	}
	if strings.ContainsAny(m.Name, " .") {
		return nil, fmt.Errorf("invalid project name %q: must not contain spaces or dots", m.Name)
	}
	return m, nil
}

// ProjectID returns the identifier used in qualified module names.
func (m *Manifest) ProjectID() string {
	if m.ID != "" {
		return m.ID
	}
	return m.Name
}

// SourceDir returns the absolute directory holding module files.
func (m *Manifest) SourceDir(root string) string {
	if m.Source == "" || m.Source == "." {
		return root
	}
	return filepath.Join(root, filepath.FromSlash(m.Source))
}

func defaultName(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	name := filepath.Base(abs)
	name = strings.Map(func(r rune) rune {
		if r == ' ' || r == '.' || r == '-' {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "_" || name == string(filepath.Separator) {
		return "VBAProject"
	}
	return name
}
