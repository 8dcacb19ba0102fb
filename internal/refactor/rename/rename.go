// Package rename renames a declaration and every reference to it through
// rewrite sessions, then re-parses so the graph shows the new name.
package rename

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/parsing"
	"ducklint/internal/rewriter"
	"ducklint/internal/tokens"
	"ducklint/internal/vba"
)

// Presenter asks the user for the new name. ok is false when the user
// cancelled.
type Presenter interface {
	NewName(ctx context.Context, target *declarations.Declaration) (name string, ok bool, err error)
}

// FixedName is a presenter that always answers with the same name.
type FixedName string

func (n FixedName) NewName(context.Context, *declarations.Declaration) (string, bool, error) {
	return string(n), n != "", nil
}

// Result describes a completed rename.
type Result struct {
	Target    string   `json:"target" yaml:"target"`
	OldName   string   `json:"oldName" yaml:"oldName"`
	NewName   string   `json:"newName,omitempty" yaml:"newName,omitempty"`
	Sites     int      `json:"sites" yaml:"sites"`
	Modules   []string `json:"modules,omitempty" yaml:"modules,omitempty"`
	Sessions  []string `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty" yaml:"cancelled,omitempty"`
}

// Refactoring renames declarations of one parsed project.
type Refactoring struct {
	state     *parsing.State
	manager   *rewriter.Manager
	presenter Presenter
	logger    *slog.Logger
}

// New creates a rename refactoring.
func New(state *parsing.State, manager *rewriter.Manager, presenter Presenter, logger *slog.Logger) *Refactoring {
	return &Refactoring{state: state, manager: manager, presenter: presenter, logger: logger}
}

// CanExecute reports whether target can be renamed right now.
func (r *Refactoring) CanExecute(target *declarations.Declaration) bool {
	return r.check(target) == nil
}

// TargetAt resolves the declaration at a selection.
func (r *Refactoring) TargetAt(qs declarations.QualifiedSelection) (*declarations.Declaration, error) {
	if r.state.Status() != parsing.StatusReady {
		return nil, errors.Newf(errors.ParserNotReady, "parser is %s", r.state.Status())
	}
	d := r.state.FindSelectedDeclaration(qs)
	if d == nil {
		return nil, errors.Newf(errors.TargetNotFound, "no declaration at %s", qs)
	}
	return d, nil
}

// check enforces the preconditions: a ready parse, a user-defined target and
// no unparsed edits in the target's module.
func (r *Refactoring) check(target *declarations.Declaration) error {
	if status := r.state.Status(); status != parsing.StatusReady {
		return errors.Newf(errors.ParserNotReady, "parser is %s", status)
	}
	if target == nil {
		return errors.New(errors.TargetNotFound, "no rename target", nil)
	}
	if !target.IsUserDefined() || target.Kind() == declarations.KindProject {
		return errors.Newf(errors.TargetNotFound, "%s is not user-defined", target)
	}
	if r.state.IsNewOrModified(target.Module()) {
		return errors.Newf(errors.StaleTokenStream, "%s has changed since it was parsed", target.Module())
	}
	return nil
}

// Refactor asks the presenter for a name and renames target. The code pane
// edits are committed in one session; a module rename then updates VB_Name
// through an attributes session. Each commit is followed by a re-parse.
func (r *Refactoring) Refactor(ctx context.Context, target *declarations.Declaration) (*Result, error) {
	if err := r.check(target); err != nil {
		return nil, err
	}
	g := r.state.Graph()
	res := &Result{Target: target.QualifiedName().String(), OldName: target.IdentifierName()}

	name, ok, err := r.presenter.NewName(ctx, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		res.Cancelled = true
		return res, nil
	}
	if err := Validate(g, target, name); err != nil {
		return nil, err
	}
	res.NewName = name

	p := buildPlan(g, target, name)
	for _, m := range p.modules() {
		if r.state.IsNewOrModified(m) {
			return nil, errors.Newf(errors.StaleTokenStream, "%s has changed since it was parsed", m)
		}
		res.Modules = append(res.Modules, m.ComponentName)
	}
	res.Sites = len(p.sites)

	r.logger.Info("Renaming declaration",
		"target", res.Target,
		"newName", name,
		"sites", res.Sites,
	)

	id, err := r.renamePane(ctx, p)
	if err != nil {
		return nil, err
	}
	res.Sessions = append(res.Sessions, id)
	if err := r.state.Reparse(ctx); err != nil {
		return res, err
	}

	var follow func(context.Context) (string, error)
	switch {
	case target.Kind().IsModule():
		follow = func(ctx context.Context) (string, error) {
			return r.renameModule(ctx, target.Module(), name)
		}
	case len(p.attributes) > 0:
		follow = func(ctx context.Context) (string, error) {
			return r.reattach(ctx, target.Module(), name, p.attributes)
		}
	default:
		return res, nil
	}

	id, err = follow(ctx)
	if err != nil {
		return res, err
	}
	res.Sessions = append(res.Sessions, id)
	if err := r.state.Reparse(ctx); err != nil {
		return res, err
	}
	return res, nil
}

func (r *Refactoring) renamePane(ctx context.Context, p *plan) (string, error) {
	session, err := r.manager.CheckOutCodePane()
	if err != nil {
		return "", err
	}
	for _, s := range p.sites {
		rw, err := session.Rewriter(s.module)
		if err != nil {
			session.Abandon()
			return "", err
		}
		if err := replaceIdentifier(rw, s); err != nil {
			session.Abandon()
			return "", err
		}
	}
	if err := session.Commit(ctx); err != nil {
		return "", err
	}
	return session.ID(), nil
}

// renameModule rewrites the VB_Name attribute. Importing the result renames
// the component in the host.
func (r *Refactoring) renameModule(ctx context.Context, module declarations.QualifiedModuleName, name string) (string, error) {
	decl, ok := r.state.Graph().Module(module)
	if !ok {
		return "", errors.Newf(errors.ModuleNotFound, "%s is not in the parse result", module)
	}
	session, err := r.manager.CheckOutAttributes()
	if err != nil {
		return "", err
	}
	rw, err := session.Rewriter(module)
	if err != nil {
		session.Abandon()
		return "", err
	}
	value := `"` + name + `"`
	if attr, ok := decl.Attribute("VB_Name"); ok {
		err = rw.Replace(attr.ValueStart, attr.ValueEnd, value)
	} else {
		err = rw.InsertBefore(0, "Attribute VB_Name = "+value+rw.Stream().NewlineStyle())
	}
	if err != nil {
		session.Abandon()
		return "", err
	}
	if err := session.Commit(ctx); err != nil {
		return "", err
	}
	return session.ID(), nil
}

// reattach writes member attributes back under the renamed member. The host
// drops them when the code pane no longer declares their member.
func (r *Refactoring) reattach(ctx context.Context, module declarations.QualifiedModuleName, name string, attrs []declarations.Attribute) (string, error) {
	session, err := r.manager.CheckOutAttributes()
	if err != nil {
		return "", err
	}
	rw, err := session.Rewriter(module)
	if err != nil {
		session.Abandon()
		return "", err
	}
	stream := rw.Stream()
	nl := stream.NewlineStyle()

	var b strings.Builder
	for _, a := range attrs {
		fmt.Fprintf(&b, "Attribute %s.%s = %s%s", name, a.Name, strings.Join(a.Values, ", "), nl)
	}
	idx, terminated, ok := signatureEnd(stream, name)
	if !ok {
		session.Abandon()
		return "", errors.Newf(errors.RewriteFailed, "no declaration of %s in %s", name, module)
	}
	text := b.String()
	if !terminated {
		text = nl + strings.TrimSuffix(text, nl)
	}
	if err := rw.InsertAfter(idx, text); err != nil {
		session.Abandon()
		return "", err
	}
	if err := session.Commit(ctx); err != nil {
		return "", err
	}
	return session.ID(), nil
}

// signatureEnd finds the first procedure declaring name and returns the
// newline token ending its signature. terminated is false when the signature
// runs to the end of the stream and idx is its last token.
func signatureEnd(stream *tokens.Stream, name string) (idx int, terminated, ok bool) {
	toks := stream.Tokens()
	start := -1
	for i, t := range toks {
		if t.Kind != tokens.Identifier || !strings.EqualFold(unbracket(t.Text), name) {
			continue
		}
		if prev := prevSignificant(toks, i); prev >= 0 && isProcedureKeyword(toks[prev].Text) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false, false
	}
	continued := false
	for i := start + 1; i < len(toks); i++ {
		switch toks[i].Kind {
		case tokens.LineContinuation:
			continued = true
		case tokens.Newline:
			if !continued {
				return i, true, true
			}
			continued = false
		case tokens.Whitespace:
		default:
			continued = false
		}
	}
	return len(toks) - 1, false, true
}

func isProcedureKeyword(s string) bool {
	switch strings.ToLower(s) {
	case "sub", "function", "get", "let", "set":
		return true
	}
	return false
}

func prevSignificant(toks []tokens.Token, i int) int {
	for j := i - 1; j >= 0; j-- {
		if toks[j].Kind != tokens.Whitespace {
			return j
		}
	}
	return -1
}

// replaceIdentifier swaps one identifier token, keeping brackets and a type
// suffix. The token must still spell the old name.
func replaceIdentifier(rw *rewriter.ModuleRewriter, s site) error {
	tok, ok := rw.Stream().Get(s.token)
	if !ok {
		return errors.Newf(errors.RewriteFailed, "token %d not found in %s", s.token, s.module)
	}
	text := unbracket(tok.Text)
	bare := vba.StripSuffix(text)
	if !strings.EqualFold(bare, s.from) {
		return errors.Newf(errors.RewriteFailed, "token %d of %s is %q, expected %s", s.token, s.module, tok.Text, s.from)
	}
	out := s.to + text[len(bare):]
	if text != tok.Text {
		out = "[" + out + "]"
	}
	return rw.ReplaceToken(s.token, out)
}

func unbracket(s string) string {
	if len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']' {
		return s[1 : len(s)-1]
	}
	return s
}
