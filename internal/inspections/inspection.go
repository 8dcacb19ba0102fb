package inspections

import (
	"ducklint/internal/declarations"
	"ducklint/internal/tokens"
)

// Inspection names.
const (
	ExcessiveInterfaceMembers = "ExcessiveInterfaceMembers"
	UntypedFunctionUsage      = "UntypedFunctionUsage"
	MissingAttribute          = "MissingAttribute"
)

// Inspection is a named rule.
type Inspection interface {
	Name() string
	Severity() Severity
}

// DeclarationInspection examines every declaration of the kinds it names.
type DeclarationInspection interface {
	Inspection
	Kinds() []declarations.Kind
	// Evaluate reports whether d is a result. Properties are copied into the
	// result.
	Evaluate(d *declarations.Declaration, g *declarations.Graph) (bool, Properties, error)
	Describe(d *declarations.Declaration, props Properties) string
}

// ModuleInspection examines a module's pane tokens.
type ModuleInspection interface {
	Inspection
	InspectModule(module *declarations.Declaration, pane *tokens.Stream, g *declarations.Graph) ([]Finding, error)
}

// Finding is a module inspection hit; the engine turns it into a Result.
type Finding struct {
	Target      Target
	Selection   declarations.Selection
	StartToken  int
	EndToken    int
	Description string
	Properties  Properties
	// DisabledFixes are quick fixes that cannot apply to this finding.
	DisabledFixes []string
}

// StreamSource provides the token streams a parse produced.
type StreamSource interface {
	Stream(module declarations.QualifiedModuleName, kind tokens.CodeKind) (*tokens.Stream, error)
}

// Settings configure the built-in inspections.
type Settings struct {
	// InterfaceMemberThreshold is the member count an interface may reach
	// before it is flagged.
	InterfaceMemberThreshold int
	// Disabled lists inspection names to leave out.
	Disabled []string
}

// Builtin returns the built-in inspections minus the disabled ones.
func Builtin(s Settings) []Inspection {
	all := []Inspection{
		NewExcessiveInterfaceMembers(s.InterfaceMemberThreshold),
		NewUntypedFunctionUsage(),
		NewMissingAttribute(),
	}
	disabled := make(map[string]bool, len(s.Disabled))
	for _, name := range s.Disabled {
		disabled[name] = true
	}
	out := all[:0]
	for _, insp := range all {
		if !disabled[insp.Name()] {
			out = append(out, insp)
		}
	}
	return out
}
