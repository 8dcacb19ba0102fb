package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/project"
)

type memModule struct {
	name     string
	ct       declarations.ComponentType
	exported string
}

// Memory is an in-process host. It counts every mutation call so callers can
// assert that nothing was written.
type Memory struct {
	mu        sync.Mutex
	projectID string
	modules   []*memModule
	exportDir string
	mutations int
	failNext  error
}

// NewMemory returns an empty host for projectID. Exported files go to
// exportDir, or to a fresh temporary directory when exportDir is empty.
func NewMemory(projectID, exportDir string) *Memory {
	return &Memory{projectID: projectID, exportDir: exportDir}
}

// ProjectID returns the project identifier.
func (m *Memory) ProjectID() string { return m.projectID }

// AddModule adds a module from exported file text. A VB_Name attribute is
// prepended when the text has none.
func (m *Memory) AddModule(name string, ct declarations.ComponentType, exported string) declarations.QualifiedModuleName {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := project.VBName(exported); !ok {
		exported = fmt.Sprintf("Attribute VB_Name = \"%s\"\r\n", name) + exported
	}
	m.modules = append(m.modules, &memModule{name: name, ct: ct, exported: exported})
	return m.qualify(name, ct)
}

// SetPane replaces pane code outside of any rewrite, as a user typing in the
// editor would. It is not counted as a mutation.
func (m *Memory) SetPane(module declarations.QualifiedModuleName, pane string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod := m.find(module)
	if mod == nil {
		return moduleNotFound(module)
	}
	mod.exported = project.MergePane(mod.exported, pane)
	return nil
}

// Mutations returns how many mutation calls the host has received.
func (m *Memory) Mutations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations
}

// FailNextWrite makes the next mutation call fail with err and leave the
// module untouched.
func (m *Memory) FailNextWrite(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Components returns the modules in insertion order.
func (m *Memory) Components(ctx context.Context) ([]declarations.QualifiedModuleName, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]declarations.QualifiedModuleName, 0, len(m.modules))
	for _, mod := range m.modules {
		out = append(out, m.qualify(mod.name, mod.ct))
	}
	return out, nil
}

func (m *Memory) ComponentType(module declarations.QualifiedModuleName) (declarations.ComponentType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod := m.find(module)
	if mod == nil {
		return "", moduleNotFound(module)
	}
	return mod.ct, nil
}

func (m *Memory) CodePaneContent(module declarations.QualifiedModuleName) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod := m.find(module)
	if mod == nil {
		return "", moduleNotFound(module)
	}
	return project.PaneCode(mod.exported), nil
}

func (m *Memory) AttributedContent(module declarations.QualifiedModuleName) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod := m.find(module)
	if mod == nil {
		return "", moduleNotFound(module)
	}
	return mod.exported, nil
}

func (m *Memory) ReplaceCodePaneContent(module declarations.QualifiedModuleName, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	if err := m.takeFailure(); err != nil {
		return err
	}
	mod := m.find(module)
	if mod == nil {
		return moduleNotFound(module)
	}
	mod.exported = project.MergePane(mod.exported, content)
	return nil
}

// Export writes the attributed content to <exportDir>/<name><ext>.
func (m *Memory) Export(module declarations.QualifiedModuleName) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mod := m.find(module)
	if mod == nil {
		return "", moduleNotFound(module)
	}
	if m.exportDir == "" {
		dir, err := os.MkdirTemp("", "ducklint-export-")
		if err != nil {
			return "", errors.New(errors.RewriteFailed, "failed to create export directory", err)
		}
		m.exportDir = dir
	}
	path := filepath.Join(m.exportDir, mod.name+project.ExtForComponentType(mod.ct))
	if err := os.WriteFile(path, []byte(mod.exported), 0644); err != nil {
		return "", errors.New(errors.RewriteFailed, "failed to export "+module.String(), err)
	}
	return path, nil
}

// Import replaces the module with the file content. A changed VB_Name renames
// the module.
func (m *Memory) Import(module declarations.QualifiedModuleName, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations++
	if err := m.takeFailure(); err != nil {
		return err
	}
	mod := m.find(module)
	if mod == nil {
		return moduleNotFound(module)
	}
	if !mod.ct.IsReimportable() {
		return errors.Newf(errors.RewriteFailed, "component %s cannot be re-imported", module)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.RewriteFailed, "failed to read exported file", err)
	}
	text := string(data)
	if name, ok := project.VBName(text); ok && name != mod.name {
		if other := m.find(m.qualify(name, mod.ct)); other != nil && other != mod {
			return errors.Newf(errors.RewriteFailed, "cannot import %s: component %q already exists", module, name)
		}
		mod.name = name
	}
	mod.exported = text
	_ = os.Remove(path)
	return nil
}

func (m *Memory) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *Memory) find(module declarations.QualifiedModuleName) *memModule {
	if module.ProjectID != "" && !strings.EqualFold(module.ProjectID, m.projectID) {
		return nil
	}
	for _, mod := range m.modules {
		if strings.EqualFold(mod.name, module.ComponentName) {
			return mod
		}
	}
	return nil
}

func (m *Memory) qualify(name string, ct declarations.ComponentType) declarations.QualifiedModuleName {
	return declarations.QualifiedModuleName{ProjectID: m.projectID, ComponentName: name, ComponentType: ct}
}
