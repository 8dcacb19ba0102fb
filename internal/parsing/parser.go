// Package parsing tracks the project's current parse: its declaration graph,
// token streams and readiness.
package parsing

import (
	"context"

	"ducklint/internal/declarations"
	"ducklint/internal/tokens"
)

// Source is the text of one module as read from the host.
type Source struct {
	Module     declarations.QualifiedModuleName
	Pane       string
	Attributes string
}

// ModuleStreams are the token streams produced for one module.
type ModuleStreams struct {
	Module     declarations.QualifiedModuleName
	Pane       *tokens.Stream
	Attributes *tokens.Stream
}

// Result is the output of one parse pass.
type Result struct {
	Graph   *declarations.Graph
	Modules []ModuleStreams
}

// Parser turns module sources into a declaration graph and token streams.
// Streams must be built from exactly the given source text.
type Parser interface {
	Parse(ctx context.Context, projectID string, sources []Source, generation uint64) (*Result, error)
}
