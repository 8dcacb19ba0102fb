package quickfix

import (
	"fmt"
	"strings"
	"sync"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/inspections"
	"ducklint/internal/rewriter"
	"ducklint/internal/tokens"
	"ducklint/internal/vba"
)

// Fix ids.
const (
	UseTypedFunctionFix    = "UseTypedFunction"
	AddMissingAttributeFix = inspections.AddMissingAttributeFix
	IgnoreOnceFix          = "IgnoreOnce"
)

// UseTypedFunctionQuickFix appends '$' to a call such as Left( so it
// returns a String instead of a Variant.
type UseTypedFunctionQuickFix struct{}

func NewUseTypedFunction() *UseTypedFunctionQuickFix { return &UseTypedFunctionQuickFix{} }

func (f *UseTypedFunctionQuickFix) ID() string                      { return UseTypedFunctionFix }
func (f *UseTypedFunctionQuickFix) TargetCodeKind() tokens.CodeKind { return tokens.CodePane }

func (f *UseTypedFunctionQuickFix) SupportedInspections() []string {
	return []string{inspections.UntypedFunctionUsage}
}

func (f *UseTypedFunctionQuickFix) Description(result *inspections.Result) string {
	return fmt.Sprintf("Use '%s$'", result.Target().Name.MemberName)
}

// CanFix excludes ScopeAll: the fix is offered per project at most.
func (f *UseTypedFunctionQuickFix) CanFix(scope Scope) bool {
	return scope != ScopeAll
}

func (f *UseTypedFunctionQuickFix) Fix(result *inspections.Result, session *rewriter.Session) error {
	rw, err := session.Rewriter(result.Module())
	if err != nil {
		return err
	}
	idx, _ := result.TokenRange()
	tok, ok := rw.Stream().Get(idx)
	if !ok || !strings.EqualFold(tok.Text, result.Target().Name.MemberName) {
		return errors.Newf(errors.RewriteFailed, "token %d of %s no longer holds %s", idx, result.Module(), result.Target().Name.MemberName)
	}
	return rw.InsertAfter(idx, "$")
}

// AddMissingAttributeQuickFix writes the module attribute an annotation
// stands for, replacing a conflicting value.
type AddMissingAttributeQuickFix struct {
	graphs GraphSource
}

func NewAddMissingAttribute(graphs GraphSource) *AddMissingAttributeQuickFix {
	return &AddMissingAttributeQuickFix{graphs: graphs}
}

func (f *AddMissingAttributeQuickFix) ID() string                      { return AddMissingAttributeFix }
func (f *AddMissingAttributeQuickFix) TargetCodeKind() tokens.CodeKind { return tokens.Attributes }
func (f *AddMissingAttributeQuickFix) CanFix(Scope) bool               { return true }

func (f *AddMissingAttributeQuickFix) SupportedInspections() []string {
	return []string{inspections.MissingAttribute}
}

func (f *AddMissingAttributeQuickFix) Description(result *inspections.Result) string {
	name, _ := result.Property(inspections.AttributeNameProperty)
	value, _ := result.Property(inspections.AttributeValueProperty)
	return fmt.Sprintf("Set attribute %v = %v", name, value)
}

func (f *AddMissingAttributeQuickFix) Fix(result *inspections.Result, session *rewriter.Session) error {
	name, ok := result.Property(inspections.AttributeNameProperty)
	if !ok {
		return errors.New(errors.RewriteFailed, "result names no attribute", nil)
	}
	value, _ := result.Property(inspections.AttributeValueProperty)

	module, rw, err := checkOut(f.graphs, result, session)
	if err != nil {
		return err
	}

	text := fmt.Sprint(value)
	if attr, ok := module.Attribute(fmt.Sprint(name)); ok {
		return rw.Replace(attr.ValueStart, attr.ValueEnd, text)
	}
	line := fmt.Sprintf("Attribute %v = %s", name, text)
	nl := rw.Stream().NewlineStyle()
	if attrs := module.Attributes(); len(attrs) > 0 {
		return rw.InsertAfter(attrs[len(attrs)-1].EndToken, nl+line)
	}
	return rw.InsertBefore(0, line+nl)
}

// IgnoreOnceQuickFix suppresses a result with an '@Ignore annotation above
// its line, or '@IgnoreModule for module-level results. An existing
// annotation is extended instead of adding a second one, including one this
// fix wrote earlier in the same session.
type IgnoreOnceQuickFix struct {
	graphs      GraphSource
	inspections []string

	mu      sync.Mutex
	session string
	written map[ignoreKey]*ignoreEdit
}

// ignoreKey is the line an annotation applies to; line 0 is the module.
type ignoreKey struct {
	module declarations.QualifiedModuleName
	line   int
}

// ignoreEdit is an annotation buffered in the current session.
type ignoreEdit struct {
	edit   tokens.Edit
	names  []string
	added  []string
	render func(added []string) string
}

func (e *ignoreEdit) covers(name string) bool {
	for _, n := range e.names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func NewIgnoreOnce(graphs GraphSource, inspectionNames []string) *IgnoreOnceQuickFix {
	names := make([]string, len(inspectionNames))
	copy(names, inspectionNames)
	return &IgnoreOnceQuickFix{graphs: graphs, inspections: names}
}

func (f *IgnoreOnceQuickFix) ID() string                      { return IgnoreOnceFix }
func (f *IgnoreOnceQuickFix) TargetCodeKind() tokens.CodeKind { return tokens.CodePane }
func (f *IgnoreOnceQuickFix) CanFix(Scope) bool               { return true }

func (f *IgnoreOnceQuickFix) SupportedInspections() []string {
	out := make([]string, len(f.inspections))
	copy(out, f.inspections)
	return out
}

func (f *IgnoreOnceQuickFix) Description(result *inspections.Result) string {
	if result.Target().Kind.IsModule() {
		return "Ignore in module"
	}
	return "Ignore once"
}

func (f *IgnoreOnceQuickFix) Fix(result *inspections.Result, session *rewriter.Session) error {
	module, rw, err := checkOut(f.graphs, result, session)
	if err != nil {
		return err
	}
	name := result.Inspection()
	key := ignoreKey{module: result.Module()}
	if !result.Target().Kind.IsModule() {
		key.line = result.QualifiedSelection().Selection.StartLine
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != session.ID() {
		f.session = session.ID()
		f.written = make(map[ignoreKey]*ignoreEdit)
	}

	if e, ok := f.written[key]; ok && rw.HasEdit(e.edit) {
		if e.covers(name) {
			return nil
		}
		added := append(append([]string(nil), e.added...), name)
		if err := rw.Amend(e.edit, e.render(added)); err != nil {
			return err
		}
		e.added = added
		e.names = append(e.names, name)
		return nil
	}

	e, err := annotate(module, rw, key.line, name)
	if err != nil || e == nil {
		return err
	}
	f.written[key] = e
	return nil
}

// annotate writes the first suppression of name for line, or for the module
// when line is 0. It returns nil when an existing annotation already names it.
func annotate(module *declarations.Declaration, rw *rewriter.ModuleRewriter, line int, name string) (*ignoreEdit, error) {
	stream := rw.Stream()
	nl := stream.NewlineStyle()

	var existing *declarations.Annotation
	var prefix string
	var at int
	if line == 0 {
		if a, ok := module.Annotation(vba.AnnotationIgnoreModule); ok && len(a.Args) > 0 {
			existing = &a
		}
		prefix = "'@" + vba.AnnotationIgnoreModule + " "
	} else {
		for _, a := range module.Annotations() {
			if strings.EqualFold(a.Name, vba.AnnotationIgnore) && a.AppliesToLine == line && len(a.Args) > 0 {
				existing = &a
				break
			}
		}
		start, ok := stream.LineStart(line)
		if !ok {
			return nil, errors.Newf(errors.RewriteFailed, "line %d not found in %s", line, rw.Module())
		}
		prefix = stream.Indentation(line) + "'@" + vba.AnnotationIgnore + " "
		at = start
	}

	if existing != nil {
		e := &ignoreEdit{names: append([]string(nil), existing.Args...)}
		if e.covers(name) {
			return nil, nil
		}
		tok, ok := stream.Get(existing.TokenIndex)
		if !ok {
			return nil, errors.Newf(errors.RewriteFailed, "annotation token %d not found", existing.TokenIndex)
		}
		base := strings.TrimRight(tok.Text, " \t")
		e.render = func(added []string) string { return base + ", " + strings.Join(added, ", ") }
		return e.write(rw, name, func(text string) error { return rw.ReplaceToken(existing.TokenIndex, text) })
	}

	e := &ignoreEdit{render: func(added []string) string { return prefix + strings.Join(added, ", ") + nl }}
	return e.write(rw, name, func(text string) error { return rw.InsertBefore(at, text) })
}

func (e *ignoreEdit) write(rw *rewriter.ModuleRewriter, name string, apply func(text string) error) (*ignoreEdit, error) {
	e.added = []string{name}
	if err := apply(e.render(e.added)); err != nil {
		return nil, err
	}
	e.edit = rw.LastEdit()
	e.names = append(e.names, name)
	return e, nil
}

// checkOut returns the result's module declaration and the session's
// rewriter for it, refusing when the graph and the stream come from
// different parses.
func checkOut(graphs GraphSource, result *inspections.Result, session *rewriter.Session) (*declarations.Declaration, *rewriter.ModuleRewriter, error) {
	g := graphs.Graph()
	if g == nil {
		return nil, nil, errors.New(errors.ParserNotReady, "no parse result", nil)
	}
	module, ok := g.Module(result.Module())
	if !ok {
		return nil, nil, errors.Newf(errors.RewriteFailed, "module %s is not in the parse result", result.Module())
	}
	rw, err := session.Rewriter(result.Module())
	if err != nil {
		return nil, nil, err
	}
	if rw.Stream().Generation() != g.Generation() {
		return nil, nil, errors.Newf(errors.RewriteFailed, "%s changed since it was inspected", result.Module())
	}
	return module, rw, nil
}
