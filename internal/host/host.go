// Package host models the editor that owns the project's modules. The core
// never touches module text except through these interfaces.
package host

import (
	"context"
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
)

// Modules reads and writes module code.
type Modules interface {
	// Components lists the project's modules.
	Components(ctx context.Context) ([]declarations.QualifiedModuleName, error)
	ComponentType(module declarations.QualifiedModuleName) (declarations.ComponentType, error)
	// CodePaneContent is the code the user sees, without hidden attributes.
	CodePaneContent(module declarations.QualifiedModuleName) (string, error)
	// AttributedContent is the full exported text, hidden attributes included.
	AttributedContent(module declarations.QualifiedModuleName) (string, error)
	ReplaceCodePaneContent(module declarations.QualifiedModuleName, content string) error
}

// SourceCodeHandler is the only way to change hidden attributes: export the
// module to a file, edit the file, import it back.
type SourceCodeHandler interface {
	// Export writes the module's attributed content to a file and returns its path.
	Export(module declarations.QualifiedModuleName) (string, error)
	// Import replaces the module with the file at path. The file's VB_Name
	// decides the resulting module name.
	Import(module declarations.QualifiedModuleName, path string) error
}

// Host is a whole editor project.
type Host interface {
	Modules
	SourceCodeHandler
	ProjectID() string
}

// Content returns the module text of the given code kind.
func Content(h Modules, module declarations.QualifiedModuleName, attributes bool) (string, error) {
	if attributes {
		return h.AttributedContent(module)
	}
	return h.CodePaneContent(module)
}

// Resolve finds the host's name for a component, matching case-insensitively.
func Resolve(ctx context.Context, h Host, component string) (declarations.QualifiedModuleName, error) {
	modules, err := h.Components(ctx)
	if err != nil {
		return declarations.QualifiedModuleName{}, err
	}
	for _, m := range modules {
		if strings.EqualFold(m.ComponentName, component) {
			return m, nil
		}
	}
	return declarations.QualifiedModuleName{}, errors.Newf(errors.ModuleNotFound, "no component named %q in project %s", component, h.ProjectID())
}

func moduleNotFound(module declarations.QualifiedModuleName) error {
	return errors.Newf(errors.ModuleNotFound, "component %s not found", module)
}
