package inspections

import (
	"strings"

	"ducklint/internal/vba"
)

// isIgnored reports whether an '@Ignore annotation directly above the
// result's line, or an '@IgnoreModule annotation, covers the result.
func (r *run) isIgnored(res *Result) bool {
	module, ok := r.graph.Module(res.Module())
	if !ok {
		return false
	}
	line := res.selection.Selection.StartLine
	for _, a := range module.Annotations() {
		switch {
		case strings.EqualFold(a.Name, vba.AnnotationIgnoreModule):
			if a.Covers(res.inspection) {
				return true
			}
		case strings.EqualFold(a.Name, vba.AnnotationIgnore):
			if a.AppliesToLine == line && a.Covers(res.inspection) {
				return true
			}
		}
	}
	return false
}
