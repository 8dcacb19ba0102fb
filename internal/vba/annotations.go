package vba

import (
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/tokens"
)

// Annotation names understood by the analysis layer.
const (
	AnnotationInterface     = "Interface"
	AnnotationPredeclaredID = "PredeclaredId"
	AnnotationExposed       = "Exposed"
	AnnotationIgnore        = "Ignore"
	AnnotationIgnoreModule  = "IgnoreModule"
	AnnotationFolder        = "Folder"
	AnnotationDescription   = "Description"
)

// FixedAttribute is the module attribute a value-less annotation stands for.
type FixedAttribute struct {
	Annotation string
	Attribute  string
	Value      string
}

// FixedAttributes lists annotations whose attribute value is implied by the
// annotation itself.
var FixedAttributes = []FixedAttribute{
	{Annotation: AnnotationPredeclaredID, Attribute: "VB_PredeclaredId", Value: "True"},
	{Annotation: AnnotationExposed, Attribute: "VB_Exposed", Value: "True"},
}

// ParseAnnotation reads an annotation comment such as '@Ignore A, B or
// '@Folder("Core.Model"). ok is false for ordinary comments.
func ParseAnnotation(comment tokens.Token) (declarations.Annotation, bool) {
	text := comment.Text
	if !strings.HasPrefix(text, "'@") {
		return declarations.Annotation{}, false
	}
	body := text[2:]
	end := 0
	for end < len(body) && (isIdentByte(body[end])) {
		end++
	}
	if end == 0 {
		return declarations.Annotation{}, false
	}
	a := declarations.Annotation{
		Name:       body[:end],
		Line:       comment.Line,
		TokenIndex: comment.Index,
	}

	rest := strings.TrimSpace(body[end:])
	// a second comment marker ends the argument list
	if i := strings.Index(rest, "'"); i >= 0 {
		rest = strings.TrimSpace(rest[:i])
	}
	if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}
	if rest == "" {
		return a, true
	}
	for _, arg := range strings.Split(rest, ",") {
		arg = strings.TrimSpace(arg)
		arg = strings.TrimPrefix(strings.TrimSuffix(arg, `"`), `"`)
		if arg != "" {
			a.Args = append(a.Args, arg)
		}
	}
	return a, true
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
