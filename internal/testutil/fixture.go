// Package testutil provides parsed in-memory workbenches and fixture projects for tests.
package testutil

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"ducklint/internal/declarations"
	"ducklint/internal/host"
	"ducklint/internal/parsing"
	"ducklint/internal/rewriter"
	"ducklint/internal/slogutil"
	"ducklint/internal/vba"
)

// ProjectID is the project name used by in-memory workbenches.
const ProjectID = "TestProject"

// Module is one module of an in-memory workbench.
type Module struct {
	Name string
	Type declarations.ComponentType
	// Code is the exported file text; a VB_Name attribute is added when
	// missing.
	Code string
}

// Workbench wires an in-memory host to a parse state and a rewriting
// manager, the way the CLI wires a directory host.
type Workbench struct {
	Host    *host.Memory
	State   *parsing.State
	Manager *rewriter.Manager
	modules map[string]declarations.QualifiedModuleName
}

// NewWorkbench loads modules and parses them, failing the test on error.
func NewWorkbench(t *testing.T, modules ...Module) *Workbench {
	t.Helper()

	logger := slogutil.NewDiscardLogger()
	h := host.NewMemory(ProjectID, t.TempDir())
	wb := &Workbench{
		Host:    h,
		modules: make(map[string]declarations.QualifiedModuleName, len(modules)),
	}
	for _, m := range modules {
		wb.modules[m.Name] = h.AddModule(m.Name, m.Type, m.Code)
	}
	wb.State = parsing.NewState(h, vba.NewParser(logger, 2), logger)
	wb.Manager = rewriter.NewManager(h, wb.State, logger)
	wb.Reparse(t)
	return wb
}

// Reparse parses the host again, failing the test on error.
func (w *Workbench) Reparse(t *testing.T) {
	t.Helper()
	if err := w.State.Reparse(context.Background()); err != nil {
		t.Fatalf("Reparse failed: %v", err)
	}
}

// Module returns the qualified name of a module added at construction.
func (w *Workbench) Module(t *testing.T, name string) declarations.QualifiedModuleName {
	t.Helper()
	m, ok := w.modules[name]
	if !ok {
		t.Fatalf("Module %s is not part of the workbench", name)
	}
	return m
}

// Graph returns the latest declaration graph.
func (w *Workbench) Graph() *declarations.Graph {
	return w.State.Graph()
}

// Pane returns the current code pane text of a module.
func (w *Workbench) Pane(t *testing.T, name string) string {
	t.Helper()
	content, err := w.Host.CodePaneContent(w.Module(t, name))
	if err != nil {
		t.Fatalf("Reading pane of %s failed: %v", name, err)
	}
	return content
}

// Exported returns the current exported file text of a module.
func (w *Workbench) Exported(t *testing.T, name string) string {
	t.Helper()
	content, err := w.Host.AttributedContent(w.Module(t, name))
	if err != nil {
		t.Fatalf("Reading attributes of %s failed: %v", name, err)
	}
	return content
}

// LoadFixture copies the project testdata/fixtures/<name> into a temporary
// directory and returns its root, so tests may rewrite it freely.
func LoadFixture(t *testing.T, name string) string {
	t.Helper()

	src := filepath.Join(fixturesRoot(t), name)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		t.Fatalf("Fixture directory not found: %s", src)
	}

	dst := t.TempDir()
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
	if err != nil {
		t.Fatalf("Copying fixture %s failed: %v", name, err)
	}
	return dst
}

// fixturesRoot returns the absolute path to testdata/fixtures/.
func fixturesRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	return filepath.Join(projectRoot, "testdata", "fixtures")
}
