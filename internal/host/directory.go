package host

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/paths"
	"ducklint/internal/project"
)

// Directory is a host over a folder of exported module files.
type Directory struct {
	root     string
	manifest *project.Manifest
	logger   *slog.Logger

	mu         sync.Mutex
	components map[string]project.Component
}

// NewDirectory opens the project at root.
func NewDirectory(root string, manifest *project.Manifest, logger *slog.Logger) (*Directory, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	d := &Directory{
		root:       abs,
		manifest:   manifest,
		logger:     logger,
		components: make(map[string]project.Component),
	}
	if _, err := d.refresh(); err != nil {
		return nil, err
	}
	return d, nil
}

// Root returns the absolute project root.
func (d *Directory) Root() string { return d.root }

// ProjectID returns the manifest's project id.
func (d *Directory) ProjectID() string { return d.manifest.ProjectID() }

// Manifest returns the project manifest.
func (d *Directory) Manifest() *project.Manifest { return d.manifest }

// PathOf returns the file backing module.
func (d *Directory) PathOf(module declarations.QualifiedModuleName) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.components[strings.ToLower(module.ComponentName)]
	return c.Path, ok
}

// ModuleForPath maps a file back to its module.
func (d *Directory) ModuleForPath(path string) (declarations.QualifiedModuleName, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.components {
		if c.Path == path {
			return d.qualify(c), true
		}
	}
	return declarations.QualifiedModuleName{}, false
}

// Components rescans the project so files added or removed outside the tool
// are picked up.
func (d *Directory) Components(ctx context.Context) ([]declarations.QualifiedModuleName, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comps, err := d.refresh()
	if err != nil {
		return nil, err
	}
	out := make([]declarations.QualifiedModuleName, 0, len(comps))
	for _, c := range comps {
		out = append(out, d.qualify(c))
	}
	return out, nil
}

func (d *Directory) ComponentType(module declarations.QualifiedModuleName) (declarations.ComponentType, error) {
	c, err := d.component(module)
	if err != nil {
		return "", err
	}
	return c.Type, nil
}

func (d *Directory) CodePaneContent(module declarations.QualifiedModuleName) (string, error) {
	text, err := d.AttributedContent(module)
	if err != nil {
		return "", err
	}
	return project.PaneCode(text), nil
}

func (d *Directory) AttributedContent(module declarations.QualifiedModuleName) (string, error) {
	c, err := d.component(module)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", c.RelPath, err)
	}
	return string(data), nil
}

// ReplaceCodePaneContent rewrites the module file with new pane code, keeping
// the header and hidden attributes.
func (d *Directory) ReplaceCodePaneContent(module declarations.QualifiedModuleName, content string) error {
	c, err := d.component(module)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return errors.New(errors.RewriteFailed, "failed to read "+c.RelPath, err)
	}
	merged := project.MergePane(string(data), content)
	if err := writeAtomic(c.Path, merged); err != nil {
		return errors.New(errors.RewriteFailed, "failed to write "+c.RelPath, err)
	}
	d.logger.Debug("Replaced code pane content", "module", module.String(), "path", c.RelPath)
	return nil
}

// Export copies the module file into the project's export scratch directory.
func (d *Directory) Export(module declarations.QualifiedModuleName) (string, error) {
	c, err := d.component(module)
	if err != nil {
		return "", err
	}
	dir, err := paths.EnsureExportDir(d.root)
	if err != nil {
		return "", errors.New(errors.RewriteFailed, "failed to create export directory", err)
	}
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return "", errors.New(errors.RewriteFailed, "failed to read "+c.RelPath, err)
	}
	path := filepath.Join(dir, filepath.Base(c.Path))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", errors.New(errors.RewriteFailed, "failed to export "+c.RelPath, err)
	}
	return path, nil
}

// Import replaces the module file with the exported file. When the file
// carries a new VB_Name the module file is renamed to match.
func (d *Directory) Import(module declarations.QualifiedModuleName, path string) error {
	c, err := d.component(module)
	if err != nil {
		return err
	}
	if !c.Type.IsReimportable() {
		return errors.Newf(errors.RewriteFailed, "component %s cannot be re-imported", module)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.RewriteFailed, "failed to read exported file", err)
	}
	text := string(data)

	target := c.Path
	name, ok := project.VBName(text)
	renamed := ok && name != c.Name
	if renamed {
		target = filepath.Join(filepath.Dir(c.Path), name+filepath.Ext(c.Path))
		if _, taken := d.lookup(name); taken && !strings.EqualFold(name, c.Name) {
			return errors.Newf(errors.RewriteFailed, "cannot import %s: component %q already exists", module, name)
		}
	}

	if err := writeAtomic(target, text); err != nil {
		return errors.New(errors.RewriteFailed, "failed to import "+c.RelPath, err)
	}
	if renamed && target != c.Path {
		if err := os.Remove(c.Path); err != nil {
			return errors.New(errors.RewriteFailed, "failed to remove "+c.RelPath, err)
		}
	}
	_ = os.Remove(path)

	if _, err := d.refresh(); err != nil {
		return err
	}
	d.logger.Debug("Imported module", "module", module.String(), "name", name, "renamed", renamed)
	return nil
}

func (d *Directory) refresh() ([]project.Component, error) {
	comps, err := project.DiscoverComponents(d.root, d.manifest)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components = make(map[string]project.Component, len(comps))
	for _, c := range comps {
		d.components[strings.ToLower(c.Name)] = c
	}
	return comps, nil
}

func (d *Directory) lookup(name string) (project.Component, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.components[strings.ToLower(name)]
	return c, ok
}

func (d *Directory) component(module declarations.QualifiedModuleName) (project.Component, error) {
	if module.ProjectID != "" && !strings.EqualFold(module.ProjectID, d.ProjectID()) {
		return project.Component{}, moduleNotFound(module)
	}
	c, ok := d.lookup(module.ComponentName)
	if !ok {
		if _, err := d.refresh(); err != nil {
			return project.Component{}, err
		}
		if c, ok = d.lookup(module.ComponentName); !ok {
			return project.Component{}, moduleNotFound(module)
		}
	}
	return c, nil
}

func (d *Directory) qualify(c project.Component) declarations.QualifiedModuleName {
	return declarations.QualifiedModuleName{ProjectID: d.ProjectID(), ComponentName: c.Name, ComponentType: c.Type}
}

func writeAtomic(path, content string) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(content), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
