package inspections

import (
	"fmt"
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/tokens"
)

// stringTwins are built-in functions returning Variant that have a
// String-returning twin spelled with a '$' suffix.
var stringTwins = map[string]bool{
	"chr": true, "chrb": true, "chrw": true, "command": true, "curdir": true,
	"date": true, "dir": true, "environ": true, "error": true, "format": true,
	"hex": true, "input": true, "inputb": true, "lcase": true, "left": true,
	"leftb": true, "ltrim": true, "mid": true, "midb": true, "oct": true,
	"right": true, "rightb": true, "rtrim": true, "space": true, "str": true,
	"string": true, "time": true, "trim": true, "ucase": true,
}

// HasStringTwin reports whether name has a '$' twin.
func HasStringTwin(name string) bool {
	return stringTwins[strings.ToLower(name)]
}

// UntypedFunctionUsageInspection flags calls to the Variant form of a
// string function when the String form exists.
type UntypedFunctionUsageInspection struct{}

func NewUntypedFunctionUsage() *UntypedFunctionUsageInspection {
	return &UntypedFunctionUsageInspection{}
}

func (i *UntypedFunctionUsageInspection) Name() string       { return UntypedFunctionUsage }
func (i *UntypedFunctionUsageInspection) Severity() Severity { return SeverityHint }

func (i *UntypedFunctionUsageInspection) InspectModule(module *declarations.Declaration, pane *tokens.Stream, g *declarations.Graph) ([]Finding, error) {
	toks := pane.Tokens()
	var findings []Finding
	for k, t := range toks {
		if t.Kind != tokens.Identifier && t.Kind != tokens.Keyword {
			continue
		}
		if !HasStringTwin(t.Text) || shadowed(g, t.Text) {
			continue
		}
		next, ok := nextSignificant(toks, k+1)
		if !ok || next.Text != "(" {
			continue
		}
		// obj.Left( is a member call, not the built-in
		if prev, ok := prevSignificant(toks, k-1); ok && (prev.Text == "." || prev.Text == "!" || isDeclaringKeyword(prev.Text)) {
			continue
		}
		findings = append(findings, Finding{
			Target: Target{
				Name:       declarations.QualifiedMemberName{Module: module.Module(), MemberName: t.Text},
				Selection:  tokenSelection(t),
				TokenIndex: t.Index,
			},
			Selection:   tokenSelection(t),
			StartToken:  t.Index,
			EndToken:    t.Index,
			Description: fmt.Sprintf("Replace function '%s' with existing typed function '%s$'", t.Text, t.Text),
			Properties:  Properties{"function": t.Text},
		})
	}
	return findings, nil
}

// shadowed reports whether the project declares its own name.
func shadowed(g *declarations.Graph, name string) bool {
	for _, d := range g.ByName(name) {
		if d.IsUserDefined() {
			return true
		}
	}
	return false
}

func isDeclaringKeyword(word string) bool {
	switch strings.ToLower(word) {
	case "sub", "function", "get", "let", "set", "declare", "as", "new":
		return true
	}
	return false
}

func nextSignificant(toks []tokens.Token, from int) (tokens.Token, bool) {
	for k := from; k < len(toks); k++ {
		if toks[k].Kind != tokens.Whitespace {
			return toks[k], true
		}
	}
	return tokens.Token{}, false
}

func prevSignificant(toks []tokens.Token, from int) (tokens.Token, bool) {
	for k := from; k >= 0; k-- {
		if toks[k].Kind != tokens.Whitespace {
			return toks[k], true
		}
	}
	return tokens.Token{}, false
}

func tokenSelection(t tokens.Token) declarations.Selection {
	return declarations.Selection{StartLine: t.Line, StartColumn: t.Column, EndLine: t.Line, EndColumn: t.EndColumn()}
}
