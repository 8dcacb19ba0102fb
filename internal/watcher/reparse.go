package watcher

import (
	"context"
	"log/slog"

	"ducklint/internal/declarations"
)

// ModuleLocator maps a module file back to its module.
type ModuleLocator interface {
	ModuleForPath(path string) (declarations.QualifiedModuleName, bool)
}

// Reparser is the part of the parser state a watcher drives.
type Reparser interface {
	MarkModified(module declarations.QualifiedModuleName)
	RequestReparse(ctx context.Context)
}

// ReparseOnChange returns a handler that flags every changed module as
// modified, so pending refactorings refuse to touch it, and then requests a
// background parse. Files that are not known modules yet still trigger the
// parse, which discovers them.
func ReparseOnChange(ctx context.Context, locator ModuleLocator, state Reparser, logger *slog.Logger) ChangeHandler {
	return func(events []Event) {
		marked := 0
		for _, e := range events {
			if module, ok := locator.ModuleForPath(e.Path); ok {
				state.MarkModified(module)
				marked++
			}
		}
		logger.Info("External edits detected",
			"files", len(events),
			"modules", marked,
		)
		state.RequestReparse(ctx)
	}
}
