package rename

import (
	"sort"
	"strconv"
	"strings"

	"ducklint/internal/declarations"
)

// site is one identifier token to rewrite.
type site struct {
	module declarations.QualifiedModuleName
	token  int
	from   string
	to     string
}

type plan struct {
	sites []site
	// attributes are the member attributes of the renamed declarations.
	attributes []declarations.Attribute
}

func (p *plan) modules() []declarations.QualifiedModuleName {
	seen := make(map[string]bool)
	var out []declarations.QualifiedModuleName
	for _, s := range p.sites {
		key := strings.ToLower(s.module.String())
		if !seen[key] {
			seen[key] = true
			out = append(out, s.module)
		}
	}
	return out
}

// buildPlan collects every token that names target. Property accessors
// sharing target's name are renamed with it, and so are the procedures of
// classes implementing an interface member or interface module.
func buildPlan(g *declarations.Graph, target *declarations.Declaration, name string) *plan {
	p := &plan{}
	seen := make(map[string]bool)
	add := func(d *declarations.Declaration, from, to string) {
		if d.TokenIndex() >= 0 {
			p.addSite(seen, site{module: d.Module(), token: d.TokenIndex(), from: from, to: to})
		}
		for _, ref := range d.References() {
			p.addSite(seen, site{module: ref.Module, token: ref.TokenIndex, from: from, to: to})
		}
	}

	old := target.IdentifierName()
	group := accessorGroup(g, target)
	attrSeen := make(map[int]bool)
	for _, d := range group {
		add(d, old, name)
		for _, a := range d.Attributes() {
			if a.Member != "" && !attrSeen[a.StartToken] {
				attrSeen[a.StartToken] = true
				p.attributes = append(p.attributes, a)
			}
		}
	}
	sort.Slice(p.attributes, func(i, j int) bool { return p.attributes[i].StartToken < p.attributes[j].StartToken })

	switch {
	case target.Kind().IsModule() && target.IsInterface():
		prefix := old + "_"
		for _, impl := range implementers(g, target) {
			for _, m := range impl.Members() {
				if len(m.IdentifierName()) > len(prefix) && strings.EqualFold(m.IdentifierName()[:len(prefix)], prefix) {
					add(m, m.IdentifierName(), name+"_"+m.IdentifierName()[len(prefix):])
				}
			}
		}
	case target.IsModuleLevel() && target.Parent().IsInterface():
		iface := target.Parent()
		for _, impl := range implementers(g, iface) {
			implName := iface.IdentifierName() + "_" + old
			for _, m := range g.Member(impl.Module(), implName) {
				add(m, implName, iface.IdentifierName()+"_"+name)
			}
		}
	}

	sort.SliceStable(p.sites, func(i, j int) bool {
		a, b := p.sites[i], p.sites[j]
		if ka, kb := strings.ToLower(a.module.String()), strings.ToLower(b.module.String()); ka != kb {
			return ka < kb
		}
		return a.token < b.token
	})
	return p
}

func (p *plan) addSite(seen map[string]bool, s site) {
	key := strings.ToLower(s.module.String()) + "\x00" + strconv.Itoa(s.token)
	if seen[key] {
		return
	}
	seen[key] = true
	p.sites = append(p.sites, s)
}

// accessorGroup returns target and, for properties, every accessor of the
// same module sharing its name.
func accessorGroup(g *declarations.Graph, target *declarations.Declaration) []*declarations.Declaration {
	if !target.Kind().IsProperty() || !target.IsModuleLevel() {
		return []*declarations.Declaration{target}
	}
	var out []*declarations.Declaration
	for _, d := range g.Member(target.Module(), target.IdentifierName()) {
		if d.Kind().IsProperty() {
			out = append(out, d)
		}
	}
	return out
}

// implementers returns the class modules referencing iface. Only their
// members named <iface>_<member> are renamed, so a class that merely holds
// an iface variable is left alone.
func implementers(g *declarations.Graph, iface *declarations.Declaration) []*declarations.Declaration {
	seen := make(map[string]bool)
	var out []*declarations.Declaration
	for _, ref := range iface.References() {
		if ref.Module.SameModule(iface.Module()) || seen[strings.ToLower(ref.Module.String())] {
			continue
		}
		m, ok := g.Module(ref.Module)
		if !ok || !m.Module().ComponentType.IsClassLike() {
			continue
		}
		seen[strings.ToLower(ref.Module.String())] = true
		out = append(out, m)
	}
	return out
}
