package project

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"ducklint/internal/declarations"
	"ducklint/internal/paths"
)

// Component is one module file found in the project.
type Component struct {
	// Name is the VB_Name of the module, or the file base name when the
	// attribute is missing.
	Name string `json:"name"`

	Type declarations.ComponentType `json:"type"`

	// Path is the absolute path of the exported file.
	Path string `json:"path"`

	// RelPath is the root-relative, slash-separated path.
	RelPath string `json:"relPath"`
}

var extTypes = map[string]declarations.ComponentType{
	".bas":    declarations.StandardModule,
	".cls":    declarations.ClassModule,
	".frm":    declarations.UserForm,
	".doccls": declarations.Document,
}

// ComponentTypeForExt maps a file extension to a component type.
func ComponentTypeForExt(ext string) (declarations.ComponentType, bool) {
	t, ok := extTypes[strings.ToLower(ext)]
	return t, ok
}

// ExtForComponentType returns the file extension used when exporting t.
func ExtForComponentType(t declarations.ComponentType) string {
	for ext, ct := range extTypes {
		if ct == t {
			return ext
		}
	}
	return ".bas"
}

// IsComponentFile reports whether path looks like a module file.
func IsComponentFile(path string) bool {
	_, ok := ComponentTypeForExt(filepath.Ext(path))
	return ok
}

// Excluded reports whether the root-relative path matches an exclude glob.
func (m *Manifest) Excluded(relPath string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, pattern := range m.Exclude {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

// DiscoverComponents walks the manifest's source directory and returns every
// component file, sorted by name. Two files declaring the same VB_Name are an
// error, as the host cannot hold both.
func DiscoverComponents(root string, m *Manifest) ([]Component, error) {
	for _, pattern := range m.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	var components []Component
	seen := make(map[string]string)

	err := filepath.WalkDir(m.SourceDir(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := paths.CanonicalizePath(path, root)
		if relErr != nil {
			return relErr
		}
		if d.IsDir() {
			if rel != "." && (paths.IsStatePath(rel) || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		ct, ok := ComponentTypeForExt(filepath.Ext(path))
		if !ok || m.Excluded(rel) {
			return nil
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		name, ok := VBName(string(data))
		if !ok {
			name = strings.TrimSuffix(d.Name(), filepath.Ext(path))
		}
		key := strings.ToLower(name)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("component %q is declared by both %s and %s", name, prev, rel)
		}
		seen[key] = rel

		components = append(components, Component{Name: name, Type: ct, Path: path, RelPath: rel})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(components, func(i, j int) bool {
		return strings.ToLower(components[i].Name) < strings.ToLower(components[j].Name)
	})
	return components, nil
}
