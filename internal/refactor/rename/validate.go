package rename

import (
	"regexp"
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/vba"
)

// maxIdentifierLength is the longest identifier the editor accepts.
const maxIdentifierLength = 255

var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate checks name as a new name for target: identifier syntax, not a
// reserved word, and no other declaration of that name in target's scope.
// A change of case only is allowed.
func Validate(g *declarations.Graph, target *declarations.Declaration, name string) error {
	if !identifierPattern.MatchString(name) {
		return errors.Newf(errors.InvalidName, "%q is not a valid identifier", name)
	}
	if len(name) > maxIdentifierLength {
		return errors.Newf(errors.InvalidName, "%q is longer than %d characters", name, maxIdentifierLength)
	}
	if vba.IsKeyword(name) {
		return errors.Newf(errors.InvalidName, "%q is a reserved word", name)
	}
	if name == target.IdentifierName() {
		return errors.Newf(errors.InvalidName, "%s is already named %s", target, name)
	}
	if target.Kind().IsModule() && !target.Module().ComponentType.IsReimportable() {
		return errors.Newf(errors.InvalidName, "%s cannot be renamed: the host cannot re-import it", target.Module())
	}
	if strings.EqualFold(name, target.IdentifierName()) {
		return nil
	}
	if clash := findClash(g, target, name); clash != nil {
		return errors.Newf(errors.InvalidName, "%s would clash with %s", name, clash)
	}
	return nil
}

// findClash returns a declaration that name would collide with.
func findClash(g *declarations.Graph, target *declarations.Declaration, name string) *declarations.Declaration {
	switch {
	case target.Kind().IsModule():
		for _, d := range g.ByName(name) {
			if d.ProjectID() == target.ProjectID() && (d.Kind().IsModule() || d.Kind() == declarations.KindProject) {
				return d
			}
		}
	case target.IsModuleLevel():
		if same := g.Member(target.Module(), name); len(same) > 0 {
			return same[0]
		}
		if strings.EqualFold(name, target.Module().ComponentName) {
			m, _ := g.Module(target.Module())
			return m
		}
	default:
		parent := target.Parent()
		for _, d := range g.ByName(name) {
			if d != target && d.Parent() == parent {
				return d
			}
		}
		// a local named like its procedure would hide the return value
		if parent != nil && strings.EqualFold(parent.IdentifierName(), name) {
			return parent
		}
	}
	return nil
}
