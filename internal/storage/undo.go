package storage

import (
	"context"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/host"
	"ducklint/internal/project"
	"ducklint/internal/rewriter"
	"ducklint/internal/tokens"
)

// UndoResult describes a reverted session.
type UndoResult struct {
	SessionID string   `json:"sessionId" yaml:"sessionId"`
	UndoneBy  string   `json:"undoneBy" yaml:"undoneBy"`
	Modules   []string `json:"modules" yaml:"modules"`
}

// Undo reverts journaled session id through a new session of the same kind,
// so the revert is journaled too. Every module must still hold the text the
// session left behind; otherwise nothing is written. The new session reads
// token streams from the last parse, which must be current.
func Undo(ctx context.Context, j *Journal, m *rewriter.Manager, id string) (*UndoResult, error) {
	entry, undoneBy, err := j.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if undoneBy != "" {
		return nil, errors.Newf(errors.InvalidEdit, "session %s was already undone by %s", id, undoneBy)
	}
	if len(entry.Changes) == 0 {
		return nil, errors.Newf(errors.InvalidEdit, "session %s changed nothing", id)
	}

	h := m.Host()
	modules := make([]declarations.QualifiedModuleName, len(entry.Changes))
	for i, c := range entry.Changes {
		module, err := currentModule(ctx, h, c)
		if err != nil {
			return nil, err
		}
		current, err := host.Content(h, module, entry.Kind == tokens.Attributes)
		if err != nil {
			return nil, err
		}
		if current != c.After {
			return nil, errors.Newf(errors.StaleTokenStream, "%s changed after session %s", module, id)
		}
		modules[i] = module
	}

	session, err := m.CheckOut(entry.Kind)
	if err != nil {
		return nil, err
	}
	res := &UndoResult{SessionID: id}
	for i, c := range entry.Changes {
		rw, err := session.Rewriter(modules[i])
		if err != nil {
			session.Abandon()
			return nil, err
		}
		if err := rw.ReplaceAll(c.Before); err != nil {
			session.Abandon()
			return nil, err
		}
		res.Modules = append(res.Modules, modules[i].ComponentName)
	}
	if err := session.Commit(ctx); err != nil {
		return nil, err
	}
	res.UndoneBy = session.ID()
	if err := j.MarkUndone(ctx, id, res.UndoneBy); err != nil {
		return res, err
	}
	return res, nil
}

// currentModule finds the module a change wrote to. An attributes change may
// have renamed it through VB_Name.
func currentModule(ctx context.Context, h host.Host, c rewriter.Change) (declarations.QualifiedModuleName, error) {
	if c.Kind == tokens.Attributes {
		if name, ok := project.VBName(c.After); ok {
			if m, err := host.Resolve(ctx, h, name); err == nil {
				return m, nil
			}
		}
	}
	return host.Resolve(ctx, h, c.Module.ComponentName)
}
