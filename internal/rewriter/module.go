// Package rewriter applies buffered token edits to host modules through
// transactional, single-writer sessions.
package rewriter

import (
	"log/slog"
	"os"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/host"
	"ducklint/internal/project"
	"ducklint/internal/tokens"
)

// StreamProvider supplies token streams of the current parse.
type StreamProvider interface {
	Stream(module declarations.QualifiedModuleName, kind tokens.CodeKind) (*tokens.Stream, error)
	Generation() uint64
}

// Change is one module write performed by a commit.
type Change struct {
	Module declarations.QualifiedModuleName `json:"module"`
	Kind   tokens.CodeKind                  `json:"kind"`
	Before string                           `json:"before"`
	After  string                           `json:"after"`
}

// ModuleRewriter buffers edits for one module in one code kind and writes
// them back to the host.
type ModuleRewriter struct {
	module  declarations.QualifiedModuleName
	kind    tokens.CodeKind
	buf     *tokens.Rewriter
	host    host.Host
	streams StreamProvider
	logger  *slog.Logger
}

func newModuleRewriter(module declarations.QualifiedModuleName, stream *tokens.Stream, h host.Host, streams StreamProvider, logger *slog.Logger) *ModuleRewriter {
	return &ModuleRewriter{
		module:  module,
		kind:    stream.Kind(),
		buf:     tokens.NewRewriter(stream),
		host:    h,
		streams: streams,
		logger:  logger,
	}
}

func (r *ModuleRewriter) Module() declarations.QualifiedModuleName { return r.module }
func (r *ModuleRewriter) Kind() tokens.CodeKind                    { return r.kind }
func (r *ModuleRewriter) Stream() *tokens.Stream                   { return r.buf.Stream() }

func (r *ModuleRewriter) InsertBefore(index int, text string) error {
	return r.buf.InsertBefore(index, text)
}

func (r *ModuleRewriter) InsertAfter(index int, text string) error {
	return r.buf.InsertAfter(index, text)
}

func (r *ModuleRewriter) Replace(from, to int, text string) error {
	return r.buf.Replace(from, to, text)
}

func (r *ModuleRewriter) ReplaceToken(index int, text string) error {
	return r.buf.ReplaceToken(index, text)
}

func (r *ModuleRewriter) Remove(from, to int) error {
	return r.buf.Remove(from, to)
}

func (r *ModuleRewriter) ReplaceAll(text string) error {
	return r.buf.ReplaceAll(text)
}

// LastEdit returns the edit made by the most recent call.
func (r *ModuleRewriter) LastEdit() tokens.Edit { return r.buf.LastEdit() }

func (r *ModuleRewriter) HasEdit(e tokens.Edit) bool { return r.buf.HasEdit(e) }

func (r *ModuleRewriter) Amend(e tokens.Edit, text string) error {
	return r.buf.Amend(e, text)
}

// Text returns the buffered module text.
func (r *ModuleRewriter) Text() string { return r.buf.Text() }

// IsDirty reports whether the buffered text differs from what the host holds
// right now. The host is read on every call.
func (r *ModuleRewriter) IsDirty() (bool, error) {
	current, err := r.currentContent()
	if err != nil {
		return false, err
	}
	return current != r.buf.Text(), nil
}

// Rewrite writes the buffer to the host. It does nothing when the module is
// clean, and nothing for attributes of modules the host cannot re-import.
// The returned change is nil when nothing was written.
func (r *ModuleRewriter) Rewrite() (*Change, error) {
	current, err := r.currentContent()
	if err != nil {
		return nil, err
	}
	text := r.buf.Text()
	if current == text {
		return nil, nil
	}

	if r.kind == tokens.Attributes {
		ct, err := r.host.ComponentType(r.module)
		if err != nil {
			return nil, err
		}
		if !ct.IsReimportable() {
			r.logger.Debug("Skipping attributes rewrite of non-reimportable module",
				"module", r.module.String(),
				"componentType", string(ct),
			)
			return nil, nil
		}
	}

	stream := r.buf.Stream()
	if current != stream.Source() {
		return nil, errors.Newf(errors.StaleTokenStream, "%s changed since it was parsed", r.module)
	}
	if gen := r.streams.Generation(); stream.Generation() != gen {
		return nil, errors.Newf(errors.StaleTokenStream, "%s stream is from parse %d, current parse is %d", r.module, stream.Generation(), gen)
	}

	if err := r.write(r.module, text); err != nil {
		return nil, err
	}
	return &Change{Module: r.module, Kind: r.kind, Before: current, After: text}, nil
}

// restore puts back the content a change replaced.
func (r *ModuleRewriter) restore(c *Change) error {
	module := c.Module
	if c.Kind == tokens.Attributes {
		// an import may have renamed the module
		if name, ok := project.VBName(c.After); ok {
			module.ComponentName = name
		}
	}
	return r.write(module, c.Before)
}

func (r *ModuleRewriter) write(module declarations.QualifiedModuleName, text string) error {
	switch r.kind {
	case tokens.CodePane:
		if err := r.host.ReplaceCodePaneContent(module, text); err != nil {
			return errors.New(errors.RewriteFailed, "failed to replace code of "+module.String(), err)
		}
		return nil
	case tokens.Attributes:
		path, err := r.host.Export(module)
		if err != nil {
			return errors.New(errors.RewriteFailed, "failed to export "+module.String(), err)
		}
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return errors.New(errors.RewriteFailed, "failed to write exported "+module.String(), err)
		}
		if err := r.host.Import(module, path); err != nil {
			return errors.New(errors.RewriteFailed, "failed to import "+module.String(), err)
		}
		return nil
	default:
		return errors.Newf(errors.UnsupportedCodeKind, "unsupported code kind %d", int(r.kind))
	}
}

func (r *ModuleRewriter) currentContent() (string, error) {
	return host.Content(r.host, r.module, r.kind == tokens.Attributes)
}
