package rename

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
)

const (
	suggestionLimit     = 3
	suggestionThreshold = 0.8
)

// FindTarget resolves a dotted path: Module, Module.Member or
// Module.Member.Local. A bare name is accepted when it is unambiguous. When
// nothing matches, the error carries close names as details.
func FindTarget(g *declarations.Graph, path string) (*declarations.Declaration, error) {
	if g == nil {
		return nil, errors.New(errors.ParserNotReady, "no parse result", nil)
	}
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return findBare(g, path)
	}
	if len(parts) > 3 {
		return nil, errors.Newf(errors.TargetNotFound, "%q has too many parts", path)
	}

	module := findModule(g, parts[0])
	if module == nil {
		return nil, notFound(g, path, parts[0])
	}
	members := g.Member(module.Module(), parts[1])
	if len(members) == 0 {
		return nil, notFound(g, path, parts[1])
	}
	if len(parts) == 2 {
		return members[0], nil
	}
	for _, member := range members {
		for _, d := range g.InModule(module.Module()) {
			if d.Parent() == member && strings.EqualFold(d.IdentifierName(), parts[2]) {
				return d, nil
			}
		}
	}
	return nil, notFound(g, path, parts[2])
}

func findModule(g *declarations.Graph, name string) *declarations.Declaration {
	for _, m := range g.Modules() {
		if strings.EqualFold(m.IdentifierName(), name) {
			return m
		}
	}
	return nil
}

func findBare(g *declarations.Graph, name string) (*declarations.Declaration, error) {
	var found []*declarations.Declaration
	for _, d := range g.ByName(name) {
		if d.IsUserDefined() && d.Kind() != declarations.KindProject {
			found = append(found, d)
		}
	}
	switch {
	case len(found) == 0:
		return nil, notFound(g, name, name)
	case len(found) == 1, found[0].Kind().IsProperty() && allAccessorsOf(found):
		return found[0], nil
	}
	names := make([]string, len(found))
	for i, d := range found {
		names[i] = d.QualifiedName().String()
	}
	err := errors.Newf(errors.TargetNotFound, "%q is ambiguous: %s", name, strings.Join(names, ", "))
	err.Details = names
	return nil, err
}

// allAccessorsOf reports whether decls are the accessors of one property.
func allAccessorsOf(decls []*declarations.Declaration) bool {
	first := decls[0]
	for _, d := range decls[1:] {
		if !d.Kind().IsProperty() || !d.Module().SameModule(first.Module()) {
			return false
		}
	}
	return true
}

func notFound(g *declarations.Graph, path, missing string) error {
	suggestions := Suggest(g, missing)
	msg := "no declaration named " + path
	if len(suggestions) > 0 {
		msg += "; did you mean " + strings.Join(suggestions, ", ") + "?"
	}
	err := errors.New(errors.TargetNotFound, msg, nil)
	if len(suggestions) > 0 {
		err.Details = suggestions
	}
	return err
}

// Suggest returns up to three user-defined names close to name, best first.
func Suggest(g *declarations.Graph, name string) []string {
	type scored struct {
		name  string
		score float32
	}
	var candidates []scored
	lower := strings.ToLower(name)
	for _, n := range g.Names() {
		if strings.EqualFold(n, name) {
			continue
		}
		score, err := edlib.StringsSimilarity(lower, strings.ToLower(n), edlib.JaroWinkler)
		if err != nil || score < suggestionThreshold {
			continue
		}
		candidates = append(candidates, scored{name: n, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > suggestionLimit {
		candidates = candidates[:suggestionLimit]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}
