package declarations

import "strings"

// Spec describes a declaration to add to a Builder.
type Spec struct {
	Name          QualifiedMemberName
	Kind          Kind
	Accessibility Accessibility
	UserDefined   bool
	AsType        string
	Selection     Selection
	// TokenIndex is the identifier token in the pane stream; use -1 for none.
	TokenIndex  int
	Body        Selection
	Parent      *Declaration
	Annotations []Annotation
	Attributes  []Attribute
}

// Builder assembles a Graph. Declarations returned by Add may be passed back to
// the builder (as parents, reference targets) until Build is called.
type Builder struct {
	decls []*Declaration
	built bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add records a declaration and links it under its parent module.
func (b *Builder) Add(spec Spec) *Declaration {
	b.mustBeOpen()
	acc := spec.Accessibility
	if acc == 0 {
		acc = AccessibilityImplicit
	}
	d := &Declaration{
		name:          spec.Name,
		kind:          spec.Kind,
		accessibility: acc,
		userDefined:   spec.UserDefined,
		asType:        spec.AsType,
		selection:     spec.Selection,
		tokenIndex:    spec.TokenIndex,
		body:          spec.Body,
		parent:        spec.Parent,
		annotations:   append([]Annotation(nil), spec.Annotations...),
		attributes:    append([]Attribute(nil), spec.Attributes...),
	}
	if spec.Parent != nil && spec.Parent.kind.IsModule() {
		spec.Parent.members = append(spec.Parent.members, d)
	}
	b.decls = append(b.decls, d)
	return d
}

// AddReference records a use of target's identifier.
func (b *Builder) AddReference(target *Declaration, ref Reference) {
	b.mustBeOpen()
	target.references = append(target.references, ref)
}

// AddAttributes attaches hidden attributes to d.
func (b *Builder) AddAttributes(d *Declaration, attrs ...Attribute) {
	b.mustBeOpen()
	d.attributes = append(d.attributes, attrs...)
}

// AddAnnotations attaches annotations to d.
func (b *Builder) AddAnnotations(d *Declaration, annotations ...Annotation) {
	b.mustBeOpen()
	d.annotations = append(d.annotations, annotations...)
}

// SetBody records the full extent of d once its end is known.
func (b *Builder) SetBody(d *Declaration, body Selection) {
	b.mustBeOpen()
	d.body = body
}

// MarkInterface flags a class module as an interface.
func (b *Builder) MarkInterface(module *Declaration) {
	b.mustBeOpen()
	if module.kind == KindClassModule {
		module.isInterface = true
	}
}

// Declarations returns what has been added so far.
func (b *Builder) Declarations() []*Declaration {
	out := make([]*Declaration, len(b.decls))
	copy(out, b.decls)
	return out
}

// Build freezes the declarations into a Graph. The builder cannot be used
// afterwards.
func (b *Builder) Build(generation uint64) *Graph {
	b.mustBeOpen()
	b.built = true

	g := &Graph{
		generation: generation,
		all:        b.decls,
		byKind:     make(map[Kind][]*Declaration),
		byModule:   make(map[string][]*Declaration),
		modules:    make(map[string]*Declaration),
		byName:     make(map[string][]*Declaration),
	}
	for _, d := range b.decls {
		g.byKind[d.kind] = append(g.byKind[d.kind], d)
		g.byName[strings.ToLower(d.name.MemberName)] = append(g.byName[strings.ToLower(d.name.MemberName)], d)
		if d.kind == KindProject {
			continue
		}
		key := moduleKey(d.name.Module)
		g.byModule[key] = append(g.byModule[key], d)
		if d.kind.IsModule() {
			g.modules[key] = d
		}
	}
	b.decls = nil
	return g
}

func (b *Builder) mustBeOpen() {
	if b.built {
		panic("declarations: builder used after Build")
	}
}
