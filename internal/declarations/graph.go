package declarations

import (
	"sort"
	"strings"
)

// Graph is the declaration snapshot of one parse generation. It is safe for
// concurrent reads and never changes after Build.
type Graph struct {
	generation uint64
	all        []*Declaration
	byKind     map[Kind][]*Declaration
	byModule   map[string][]*Declaration
	modules    map[string]*Declaration
	byName     map[string][]*Declaration
}

func moduleKey(q QualifiedModuleName) string {
	return strings.ToLower(q.ProjectID) + "\x00" + strings.ToLower(q.ComponentName)
}

// Generation identifies the parse pass that produced the graph.
func (g *Graph) Generation() uint64 { return g.generation }

// All returns every declaration in build order.
func (g *Graph) All() []*Declaration {
	out := make([]*Declaration, len(g.all))
	copy(out, g.all)
	return out
}

// Len returns the number of declarations.
func (g *Graph) Len() int { return len(g.all) }

// OfKind returns declarations of any of the given kinds.
func (g *Graph) OfKind(kinds ...Kind) []*Declaration {
	var out []*Declaration
	for _, k := range kinds {
		out = append(out, g.byKind[k]...)
	}
	if len(kinds) > 1 {
		sortByPosition(out)
	}
	return out
}

// UserDeclarations returns user-defined declarations of the given kinds, or
// of every kind when none are given.
func (g *Graph) UserDeclarations(kinds ...Kind) []*Declaration {
	source := g.all
	if len(kinds) > 0 {
		source = g.OfKind(kinds...)
	}
	var out []*Declaration
	for _, d := range source {
		if d.userDefined {
			out = append(out, d)
		}
	}
	return out
}

// Projects returns project declarations.
func (g *Graph) Projects() []*Declaration {
	return g.OfKind(KindProject)
}

// Modules returns module declarations.
func (g *Graph) Modules() []*Declaration {
	return g.OfKind(KindProceduralModule, KindClassModule)
}

// Module returns the module declaration for q.
func (g *Graph) Module(q QualifiedModuleName) (*Declaration, bool) {
	d, ok := g.modules[moduleKey(q)]
	return d, ok
}

// InModule returns every declaration belonging to q, the module included.
func (g *Graph) InModule(q QualifiedModuleName) []*Declaration {
	src := g.byModule[moduleKey(q)]
	out := make([]*Declaration, len(src))
	copy(out, src)
	return out
}

// Member returns the module-level declarations of q named name; property
// accessors can share a name.
func (g *Graph) Member(q QualifiedModuleName, name string) []*Declaration {
	var out []*Declaration
	for _, d := range g.byModule[moduleKey(q)] {
		if d.IsModuleLevel() && strings.EqualFold(d.name.MemberName, name) {
			out = append(out, d)
		}
	}
	return out
}

// ByName returns declarations whose identifier matches name case-insensitively.
func (g *Graph) ByName(name string) []*Declaration {
	src := g.byName[strings.ToLower(name)]
	out := make([]*Declaration, len(src))
	copy(out, src)
	return out
}

// Names returns every distinct user-defined identifier, sorted.
func (g *Graph) Names() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range g.all {
		if !d.userDefined || d.kind == KindProject {
			continue
		}
		if !seen[d.name.MemberName] {
			seen[d.name.MemberName] = true
			out = append(out, d.name.MemberName)
		}
	}
	sort.Strings(out)
	return out
}

// FindSelected returns the declaration whose identifier, or one of whose
// references, contains the selection. Narrower matches win.
func (g *Graph) FindSelected(qs QualifiedSelection) *Declaration {
	var best *Declaration
	bestSpan := -1
	consider := func(d *Declaration, sel Selection) {
		if !sel.Contains(qs.Selection) {
			return
		}
		span := (sel.EndLine-sel.StartLine)*10000 + (sel.EndColumn - sel.StartColumn)
		if best == nil || span < bestSpan {
			best, bestSpan = d, span
		}
	}
	for _, d := range g.all {
		if d.tokenIndex >= 0 && d.name.Module.SameModule(qs.Module) {
			consider(d, d.selection)
		}
		for _, ref := range d.references {
			if ref.Module.SameModule(qs.Module) {
				consider(d, ref.Selection)
			}
		}
	}
	return best
}

// ContainingMember returns the procedure-like member whose body contains qs.
func (g *Graph) ContainingMember(qs QualifiedSelection) *Declaration {
	for _, d := range g.byModule[moduleKey(qs.Module)] {
		if d.kind.IsMember() && d.body.Contains(qs.Selection) {
			return d
		}
	}
	return nil
}

func sortByPosition(decls []*Declaration) {
	sort.SliceStable(decls, func(i, j int) bool {
		a, b := decls[i], decls[j]
		if ka, kb := moduleKey(a.name.Module), moduleKey(b.name.Module); ka != kb {
			return ka < kb
		}
		if a.selection.StartLine != b.selection.StartLine {
			return a.selection.StartLine < b.selection.StartLine
		}
		return a.selection.StartColumn < b.selection.StartColumn
	})
}
