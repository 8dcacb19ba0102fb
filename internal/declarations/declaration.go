package declarations

import "strings"

// Annotation is a structured comment such as '@Interface or '@Ignore Foo.
type Annotation struct {
	Name string   `json:"name"`
	Args []string `json:"args,omitempty"`
	// Line is the 1-based pane line holding the annotation.
	Line int `json:"line"`
	// TokenIndex is the comment token in the pane stream.
	TokenIndex int `json:"tokenIndex"`
	// AppliesToLine is the first code line below the annotation block.
	AppliesToLine int `json:"appliesToLine"`
}

// Covers reports whether the annotation names inspection, or names nothing
// and so covers every inspection.
func (a Annotation) Covers(inspection string) bool {
	if len(a.Args) == 0 {
		return true
	}
	for _, arg := range a.Args {
		if strings.EqualFold(arg, inspection) {
			return true
		}
	}
	return false
}

// Attribute is a hidden directive read from the attributes stream, e.g.
// Attribute VB_PredeclaredId = True.
type Attribute struct {
	// Member is empty for module-level attributes.
	Member string   `json:"member,omitempty"`
	Name   string   `json:"name"`
	Values []string `json:"values"`
	Line   int      `json:"line"`
	// StartToken and EndToken bound the directive in the attributes stream,
	// excluding the trailing newline.
	StartToken int `json:"startToken"`
	EndToken   int `json:"endToken"`
	// ValueStart and ValueEnd bound the value list.
	ValueStart int `json:"valueStart"`
	ValueEnd   int `json:"valueEnd"`
}

// Reference is one use of a declaration's identifier in pane code.
type Reference struct {
	Module     QualifiedModuleName `json:"module"`
	Selection  Selection           `json:"selection"`
	TokenIndex int                 `json:"tokenIndex"`
	Identifier string              `json:"identifier"`
}

// QualifiedSelection returns the reference location.
func (r Reference) QualifiedSelection() QualifiedSelection {
	return QualifiedSelection{Module: r.Module, Selection: r.Selection}
}

// Declaration is one named program element. All fields are fixed once the
// owning Graph is built.
type Declaration struct {
	name          QualifiedMemberName
	kind          Kind
	accessibility Accessibility
	userDefined   bool
	asType        string
	selection     Selection
	tokenIndex    int
	body          Selection
	parent        *Declaration
	annotations   []Annotation
	attributes    []Attribute
	references    []Reference
	isInterface   bool
	members       []*Declaration
}

func (d *Declaration) QualifiedName() QualifiedMemberName { return d.name }
func (d *Declaration) IdentifierName() string             { return d.name.MemberName }
func (d *Declaration) Module() QualifiedModuleName        { return d.name.Module }
func (d *Declaration) ProjectID() string                  { return d.name.Module.ProjectID }
func (d *Declaration) Kind() Kind                         { return d.kind }
func (d *Declaration) Accessibility() Accessibility       { return d.accessibility }
func (d *Declaration) IsUserDefined() bool                { return d.userDefined }
func (d *Declaration) AsType() string                     { return d.asType }
func (d *Declaration) Parent() *Declaration               { return d.parent }

// Selection is the identifier's location.
func (d *Declaration) Selection() Selection { return d.selection }

// QualifiedSelection is the identifier's location within its module.
func (d *Declaration) QualifiedSelection() QualifiedSelection {
	return QualifiedSelection{Module: d.name.Module, Selection: d.selection}
}

// TokenIndex is the identifier token in the pane stream, -1 when the
// declaration has no identifier token (projects, modules).
func (d *Declaration) TokenIndex() int { return d.tokenIndex }

// Body spans the whole declaration, e.g. Sub ... End Sub.
func (d *Declaration) Body() Selection { return d.body }

// IsInterface reports whether a class module is used as an interface.
func (d *Declaration) IsInterface() bool { return d.isInterface }

// Classify returns the declaration's closed category.
func (d *Declaration) Classify() Category { return CategoryOf(d.kind) }

// Members returns module-level members in declaration order.
func (d *Declaration) Members() []*Declaration {
	out := make([]*Declaration, len(d.members))
	copy(out, d.members)
	return out
}

// Annotations returns a copy of the attached annotations.
func (d *Declaration) Annotations() []Annotation {
	out := make([]Annotation, len(d.annotations))
	copy(out, d.annotations)
	return out
}

// Annotation returns the first annotation named name.
func (d *Declaration) Annotation(name string) (Annotation, bool) {
	for _, a := range d.annotations {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Annotation{}, false
}

// HasAnnotation reports whether an annotation named name is attached.
func (d *Declaration) HasAnnotation(name string) bool {
	_, ok := d.Annotation(name)
	return ok
}

// Attributes returns a copy of the hidden attributes.
func (d *Declaration) Attributes() []Attribute {
	out := make([]Attribute, len(d.attributes))
	copy(out, d.attributes)
	return out
}

// Attribute returns the attribute named name.
func (d *Declaration) Attribute(name string) (Attribute, bool) {
	for _, a := range d.attributes {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Attribute{}, false
}

// References returns a copy of the identifier references.
func (d *Declaration) References() []Reference {
	out := make([]Reference, len(d.references))
	copy(out, d.references)
	return out
}

// IsModuleLevel reports whether d is declared directly at module level.
func (d *Declaration) IsModuleLevel() bool {
	return d.parent != nil && d.parent.kind.IsModule()
}

func (d *Declaration) String() string {
	return d.kind.String() + " " + d.name.String()
}
