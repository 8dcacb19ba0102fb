package quickfix

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/inspections"
	"ducklint/internal/rewriter"
)

// Provider indexes quick fixes by inspection and applies them. The index is
// built once at construction and never changes.
type Provider struct {
	sessions Sessions
	notifier FailureNotifier
	logger   *slog.Logger

	byID         map[string]QuickFix
	byInspection map[string][]QuickFix
}

// NewProvider registers fixes. Fix ids must be unique.
func NewProvider(sessions Sessions, notifier FailureNotifier, logger *slog.Logger, fixes ...QuickFix) (*Provider, error) {
	p := &Provider{
		sessions:     sessions,
		notifier:     notifier,
		logger:       logger,
		byID:         make(map[string]QuickFix, len(fixes)),
		byInspection: make(map[string][]QuickFix),
	}
	for _, fix := range fixes {
		key := strings.ToLower(fix.ID())
		if _, dup := p.byID[key]; dup {
			return nil, errors.Newf(errors.InternalError, "quick fix %s registered twice", fix.ID())
		}
		p.byID[key] = fix
		for _, inspection := range fix.SupportedInspections() {
			p.byInspection[inspection] = append(p.byInspection[inspection], fix)
		}
	}
	for _, list := range p.byInspection {
		sortBySpecificity(list)
	}
	return p, nil
}

// Lookup returns the registered fix with id.
func (p *Provider) Lookup(id string) (QuickFix, bool) {
	fix, ok := p.byID[strings.ToLower(id)]
	return fix, ok
}

// QuickFixesFor returns every fix registered for an inspection.
func (p *Provider) QuickFixesFor(inspection string) []QuickFix {
	src := p.byInspection[inspection]
	out := make([]QuickFix, len(src))
	copy(out, src)
	return out
}

// QuickFixes returns the fixes for result's inspection that result has not
// disabled. Fixes supporting fewer inspections come first.
func (p *Provider) QuickFixes(result *inspections.Result) []QuickFix {
	var out []QuickFix
	for _, fix := range p.byInspection[result.Inspection()] {
		if !result.IsQuickFixDisabled(fix.ID()) {
			out = append(out, fix)
		}
	}
	return out
}

// HasQuickFixes reports whether any fix is registered for result's
// inspection, whatever result has disabled.
func (p *Provider) HasQuickFixes(result *inspections.Result) bool {
	return len(p.byInspection[result.Inspection()]) > 0
}

func (p *Provider) canFix(fix QuickFix, result *inspections.Result) bool {
	for _, f := range p.QuickFixes(result) {
		if f.ID() == fix.ID() {
			return true
		}
	}
	return false
}

// Fix applies fix to a single result and commits. An ineligible fix is
// dropped without a session being opened.
func (p *Provider) Fix(ctx context.Context, fix QuickFix, result *inspections.Result) Outcome {
	out := Outcome{Fix: fix.ID(), Scope: ScopeResult}
	if !p.canFix(fix, result) {
		out.Skipped = 1
		return out
	}

	session, err := p.sessions.CheckOut(fix.TargetCodeKind())
	if err != nil {
		return p.checkoutFailed(out, err)
	}
	out.SessionID = session.ID()

	p.apply(fix, result, session, &out)
	return p.commit(ctx, session, out)
}

// FixInProcedure applies fix to the results of inspection inside member.
func (p *Provider) FixInProcedure(ctx context.Context, fix QuickFix, member declarations.QualifiedMemberName, inspection string, results []*inspections.Result) Outcome {
	return p.fixBatch(ctx, fix, ScopeProcedure, inspection, results, func(r *inspections.Result) bool {
		m := r.QualifiedMember()
		return m.Module.SameModule(member.Module) && strings.EqualFold(m.MemberName, member.MemberName)
	})
}

// FixInModule applies fix to the results of inspection inside module.
func (p *Provider) FixInModule(ctx context.Context, fix QuickFix, module declarations.QualifiedModuleName, inspection string, results []*inspections.Result) Outcome {
	return p.fixBatch(ctx, fix, ScopeModule, inspection, results, func(r *inspections.Result) bool {
		return r.Module().SameModule(module)
	})
}

// FixInProject applies fix to the results of inspection inside project.
func (p *Provider) FixInProject(ctx context.Context, fix QuickFix, projectID string, inspection string, results []*inspections.Result) Outcome {
	return p.fixBatch(ctx, fix, ScopeProject, inspection, results, func(r *inspections.Result) bool {
		return strings.EqualFold(r.ProjectID(), projectID)
	})
}

// FixAll applies fix to every result of inspection.
func (p *Provider) FixAll(ctx context.Context, fix QuickFix, inspection string, results []*inspections.Result) Outcome {
	return p.fixBatch(ctx, fix, ScopeAll, inspection, results, func(*inspections.Result) bool { return true })
}

// fixBatch applies fix to the matching results in one session and commits
// once. A result whose edits fail is rolled back on its own and the batch
// continues.
func (p *Provider) fixBatch(ctx context.Context, fix QuickFix, scope Scope, inspection string, results []*inspections.Result, match func(*inspections.Result) bool) Outcome {
	out := Outcome{Fix: fix.ID(), Scope: scope}

	var filtered []*inspections.Result
	for _, r := range results {
		if r.Inspection() == inspection && match(r) {
			filtered = append(filtered, r)
		}
	}
	if len(filtered) == 0 {
		return out
	}
	if !fix.CanFix(scope) {
		out.Skipped = len(filtered)
		return out
	}

	session, err := p.sessions.CheckOut(fix.TargetCodeKind())
	if err != nil {
		return p.checkoutFailed(out, err)
	}
	out.SessionID = session.ID()

	for _, r := range filtered {
		if !p.canFix(fix, r) {
			out.Skipped++
			continue
		}
		p.apply(fix, r, session, &out)
	}
	return p.commit(ctx, session, out)
}

// apply runs one fix; on failure its edits are rolled back and the failure
// is reported.
func (p *Provider) apply(fix QuickFix, result *inspections.Result, session *rewriter.Session, out *Outcome) {
	cp := session.Checkpoint()
	if err := fix.Fix(result, session); err != nil {
		session.Rollback(cp)
		out.Failed++
		if !errors.HasCode(err, errors.RewriteFailed) {
			err = errors.New(errors.RewriteFailed, "quick fix "+fix.ID()+" failed on "+result.QualifiedSelection().String(), err)
		}
		p.logger.Debug("Quick fix mutation failed",
			"fix", fix.ID(),
			"session", session.ID(),
			"error", err,
		)
		p.notifier.NotifyQuickFixFailure(session.Status(), err)
		if out.Err == nil {
			out.Err = err
		}
		return
	}
	out.Applied++
}

func (p *Provider) commit(ctx context.Context, session *rewriter.Session, out Outcome) Outcome {
	for _, m := range session.Modules() {
		out.Modules = append(out.Modules, m.ComponentName)
	}
	if err := session.Commit(ctx); err != nil {
		p.notifier.NotifyQuickFixFailure(session.Status(), err)
		out.Err = err
	}
	out.Status = session.Status()
	if out.Err != nil {
		out.Error = out.Err.Error()
	}
	p.logger.Debug("Quick fix session finished",
		"fix", out.Fix,
		"scope", string(out.Scope),
		"session", out.SessionID,
		"status", string(out.Status),
		"applied", out.Applied,
		"failed", out.Failed,
	)
	return out
}

func (p *Provider) checkoutFailed(out Outcome, err error) Outcome {
	status := rewriter.StatusStale
	if errors.HasCode(err, errors.UnsupportedCodeKind) {
		status = rewriter.StatusAbandoned
	}
	p.notifier.NotifyQuickFixFailure(status, err)
	out.Status = status
	out.Failed = 1
	out.Err = err
	out.Error = err.Error()
	return out
}

// sortBySpecificity orders fixes by how few inspections they support, then
// by id.
func sortBySpecificity(fixes []QuickFix) {
	sort.SliceStable(fixes, func(i, j int) bool {
		ni, nj := len(fixes[i].SupportedInspections()), len(fixes[j].SupportedInspections())
		if ni != nj {
			return ni < nj
		}
		return fixes[i].ID() < fixes[j].ID()
	})
}
