// Package declarations holds the immutable symbol graph produced by each parse pass.
package declarations

import (
	"fmt"
	"strings"
)

// ComponentType is the host-side kind of a module.
type ComponentType string

const (
	StandardModule ComponentType = "standard"
	ClassModule    ComponentType = "class"
	UserForm       ComponentType = "form"
	Document       ComponentType = "document"
)

// IsReimportable reports whether the host can replace the module through an
// export/import round trip. Designer-bound document modules cannot.
func (c ComponentType) IsReimportable() bool {
	switch c {
	case StandardModule, ClassModule, UserForm:
		return true
	case Document:
		return false
	default:
		return false
	}
}

// IsClassLike reports whether modules of this type declare a class.
func (c ComponentType) IsClassLike() bool {
	return c == ClassModule || c == UserForm || c == Document
}

// QualifiedModuleName identifies one module of one project.
type QualifiedModuleName struct {
	ProjectID     string        `json:"projectId"`
	ComponentName string        `json:"component"`
	ComponentType ComponentType `json:"componentType"`
}

// String returns "Project.Component".
func (q QualifiedModuleName) String() string {
	if q.ProjectID == "" {
		return q.ComponentName
	}
	return q.ProjectID + "." + q.ComponentName
}

// IsZero reports whether q is unset.
func (q QualifiedModuleName) IsZero() bool {
	return q.ProjectID == "" && q.ComponentName == ""
}

// SameModule compares project and component case-insensitively, the way the
// host resolves names.
func (q QualifiedModuleName) SameModule(other QualifiedModuleName) bool {
	return strings.EqualFold(q.ProjectID, other.ProjectID) &&
		strings.EqualFold(q.ComponentName, other.ComponentName)
}

// QualifiedMemberName identifies a member inside a module.
type QualifiedMemberName struct {
	Module     QualifiedModuleName `json:"module"`
	MemberName string              `json:"member"`
}

func (q QualifiedMemberName) String() string {
	return q.Module.String() + "." + q.MemberName
}

// IsZero reports whether q is unset.
func (q QualifiedMemberName) IsZero() bool {
	return q.Module.IsZero() && q.MemberName == ""
}

// Selection is a 1-based, inclusive text range.
type Selection struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// Contains reports whether other lies entirely within s.
func (s Selection) Contains(other Selection) bool {
	if other.StartLine < s.StartLine || other.EndLine > s.EndLine {
		return false
	}
	if other.StartLine == s.StartLine && other.StartColumn < s.StartColumn {
		return false
	}
	if other.EndLine == s.EndLine && other.EndColumn > s.EndColumn {
		return false
	}
	return true
}

// IsZero reports whether s is unset.
func (s Selection) IsZero() bool {
	return s == Selection{}
}

func (s Selection) String() string {
	return fmt.Sprintf("L%dC%d-L%dC%d", s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}

// QualifiedSelection is a selection inside a specific module.
type QualifiedSelection struct {
	Module    QualifiedModuleName `json:"module"`
	Selection Selection           `json:"selection"`
}

func (q QualifiedSelection) String() string {
	return q.Module.String() + " " + q.Selection.String()
}
