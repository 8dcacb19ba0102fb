package inspections

import (
	"fmt"
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/tokens"
	"ducklint/internal/vba"
)

// AddMissingAttributeFix is the quick fix that writes the attribute a
// MissingAttribute result asks for. Document modules cannot take it.
const AddMissingAttributeFix = "AddMissingAttribute"

// Property keys on MissingAttribute results.
const (
	AttributeNameProperty  = "attribute"
	AttributeValueProperty = "value"
	AnnotationProperty     = "annotation"
)

// MissingAttributeInspection flags annotations such as '@PredeclaredId whose
// module attribute is absent or has another value.
type MissingAttributeInspection struct{}

func NewMissingAttribute() *MissingAttributeInspection {
	return &MissingAttributeInspection{}
}

func (i *MissingAttributeInspection) Name() string       { return MissingAttribute }
func (i *MissingAttributeInspection) Severity() Severity { return SeverityWarning }

func (i *MissingAttributeInspection) InspectModule(module *declarations.Declaration, pane *tokens.Stream, _ *declarations.Graph) ([]Finding, error) {
	var findings []Finding
	for _, a := range module.Annotations() {
		fixed, ok := fixedAttributeFor(a.Name)
		if !ok || hasAttributeValue(module, fixed) {
			continue
		}
		tok, ok := pane.Get(a.TokenIndex)
		if !ok {
			continue
		}
		f := Finding{
			Target:     TargetOf(module),
			Selection:  tokenSelection(tok),
			StartToken: tok.Index,
			EndToken:   tok.Index,
			Description: fmt.Sprintf("Module '%s' is annotated '@%s but its %s attribute is not %s",
				module.IdentifierName(), fixed.Annotation, fixed.Attribute, fixed.Value),
			Properties: Properties{
				AnnotationProperty:     fixed.Annotation,
				AttributeNameProperty:  fixed.Attribute,
				AttributeValueProperty: fixed.Value,
			},
		}
		if !module.Module().ComponentType.IsReimportable() {
			f.DisabledFixes = []string{AddMissingAttributeFix}
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func fixedAttributeFor(annotation string) (vba.FixedAttribute, bool) {
	for _, fa := range vba.FixedAttributes {
		if strings.EqualFold(fa.Annotation, annotation) {
			return fa, true
		}
	}
	return vba.FixedAttribute{}, false
}

func hasAttributeValue(module *declarations.Declaration, fixed vba.FixedAttribute) bool {
	attr, ok := module.Attribute(fixed.Attribute)
	if !ok || len(attr.Values) != 1 {
		return false
	}
	return strings.EqualFold(attr.Values[0], fixed.Value)
}
