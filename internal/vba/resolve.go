package vba

import (
	"strings"

	"ducklint/internal/declarations"
)

// resolver binds identifier uses to declarations: procedure scope first,
// then module scope, then project scope.
type resolver struct {
	modules    map[string]*moduleScan
	global     map[string][]*declarations.Declaration
	unresolved int
}

func newResolver(scans []*moduleScan) *resolver {
	r := &resolver{
		modules: make(map[string]*moduleScan, len(scans)),
		global:  make(map[string][]*declarations.Declaration),
	}
	for _, sc := range scans {
		r.modules[strings.ToLower(sc.module.ComponentName)] = sc
		if sc.module.ComponentType != declarations.StandardModule {
			continue
		}
		for _, pd := range sc.decls {
			if !visibleOutside(pd) {
				continue
			}
			key := strings.ToLower(pd.decl.IdentifierName())
			r.global[key] = append(r.global[key], pd.decl)
		}
	}
	return r
}

// visibleOutside reports whether a declaration can be named from other
// modules without qualification.
func visibleOutside(pd *pendingDecl) bool {
	d := pd.decl
	switch {
	case d.Kind() == declarations.KindEnumerationMember:
		return d.Accessibility() != declarations.AccessibilityPrivate
	case !d.IsModuleLevel():
		return false
	default:
		return d.Accessibility() != declarations.AccessibilityPrivate
	}
}

func (r *resolver) markInterfaces(b *declarations.Builder, sc *moduleScan) {
	if sc.decl.HasAnnotation(AnnotationInterface) {
		b.MarkInterface(sc.decl)
	}
	for _, t := range sc.implements {
		if target, ok := r.modules[strings.ToLower(identName(t))]; ok {
			b.MarkInterface(target.decl)
		}
	}
}

func (r *resolver) resolve(b *declarations.Builder, sc *moduleScan) {
	for _, u := range sc.uses {
		target := r.lookup(sc, u)
		if target == nil {
			r.unresolved++
			continue
		}
		b.AddReference(target, declarations.Reference{
			Module:     sc.module,
			Selection:  selectionOf(u.tok),
			TokenIndex: u.tok.Index,
			Identifier: u.tok.Text,
		})
	}
}

func (r *resolver) lookup(sc *moduleScan, u use) *declarations.Declaration {
	name := identName(u.tok)

	if u.qualifier != nil {
		q := identName(*u.qualifier)
		if strings.EqualFold(q, "me") {
			return moduleMember(sc, name, true, u.typeOnly)
		}
		if local(sc, u.scope, q) != nil || moduleMember(sc, q, true, false) != nil {
			// a member access on a variable: the object's type is unknown
			return nil
		}
		if other, ok := r.modules[strings.ToLower(q)]; ok {
			return moduleMember(other, name, other == sc, u.typeOnly)
		}
		return nil
	}

	if u.typeOnly {
		if m, ok := r.modules[strings.ToLower(name)]; ok {
			return m.decl
		}
		if d := moduleMember(sc, name, true, true); d != nil {
			return d
		}
		return r.globalMatch(name, true)
	}

	if d := local(sc, u.scope, name); d != nil {
		return d
	}
	if d := moduleMember(sc, name, true, false); d != nil {
		return d
	}
	if d := r.globalMatch(name, false); d != nil {
		return d
	}
	if m, ok := r.modules[strings.ToLower(name)]; ok {
		return m.decl
	}
	return nil
}

func (r *resolver) globalMatch(name string, typeOnly bool) *declarations.Declaration {
	for _, d := range r.global[strings.ToLower(StripSuffix(name))] {
		if !typeOnly || isTypeKind(d.Kind()) {
			return d
		}
	}
	return nil
}

// local finds a parameter or local of the procedure at scope.
func local(sc *moduleScan, scope int, name string) *declarations.Declaration {
	if scope < 0 {
		return nil
	}
	name = StripSuffix(name)
	for _, pd := range sc.decls {
		if pd.parent == scope && strings.EqualFold(StripSuffix(pd.decl.IdentifierName()), name) {
			return pd.decl
		}
	}
	return nil
}

// moduleMember finds a module-level declaration or enum member of sc. Private
// declarations are only found from inside the module.
func moduleMember(sc *moduleScan, name string, inside, typeOnly bool) *declarations.Declaration {
	name = StripSuffix(name)
	for _, pd := range sc.decls {
		d := pd.decl
		if !d.IsModuleLevel() && d.Kind() != declarations.KindEnumerationMember {
			continue
		}
		if typeOnly && !isTypeKind(d.Kind()) {
			continue
		}
		if !inside && d.Accessibility() == declarations.AccessibilityPrivate {
			continue
		}
		if strings.EqualFold(StripSuffix(d.IdentifierName()), name) {
			return d
		}
	}
	return nil
}

func isTypeKind(k declarations.Kind) bool {
	return k == declarations.KindEnumeration || k == declarations.KindUserDefinedType
}
