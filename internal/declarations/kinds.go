package declarations

import "strings"

// Kind is the declaration type.
type Kind int

const (
	KindProject Kind = iota + 1
	KindProceduralModule
	KindClassModule
	KindProcedure
	KindFunction
	KindPropertyGet
	KindPropertyLet
	KindPropertySet
	KindEvent
	KindVariable
	KindConstant
	KindParameter
	KindEnumeration
	KindEnumerationMember
	KindUserDefinedType
	KindUserDefinedTypeMember
)

var kindNames = map[Kind]string{
	KindProject:               "Project",
	KindProceduralModule:      "ProceduralModule",
	KindClassModule:           "ClassModule",
	KindProcedure:             "Procedure",
	KindFunction:              "Function",
	KindPropertyGet:           "PropertyGet",
	KindPropertyLet:           "PropertyLet",
	KindPropertySet:           "PropertySet",
	KindEvent:                 "Event",
	KindVariable:              "Variable",
	KindConstant:              "Constant",
	KindParameter:             "Parameter",
	KindEnumeration:           "Enumeration",
	KindEnumerationMember:     "EnumerationMember",
	KindUserDefinedType:       "UserDefinedType",
	KindUserDefinedTypeMember: "UserDefinedTypeMember",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseKind is the inverse of Kind.String, case-insensitive.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return k, true
		}
	}
	return 0, false
}

// IsModule reports whether k declares a module.
func (k Kind) IsModule() bool {
	return k == KindProceduralModule || k == KindClassModule
}

// IsMember reports whether k is a procedure-like member with a body.
func (k Kind) IsMember() bool {
	switch k {
	case KindProcedure, KindFunction, KindPropertyGet, KindPropertyLet, KindPropertySet:
		return true
	default:
		return false
	}
}

// IsProperty reports whether k is a property accessor.
func (k Kind) IsProperty() bool {
	return k == KindPropertyGet || k == KindPropertyLet || k == KindPropertySet
}

// Accessibility is ordered so that range checks can be numeric.
type Accessibility int

const (
	AccessibilityPrivate  Accessibility = 1
	AccessibilityImplicit Accessibility = 2
	AccessibilityFriend   Accessibility = 3
	AccessibilityPublic   Accessibility = 4
	AccessibilityGlobal   Accessibility = 5
)

func (a Accessibility) String() string {
	switch a {
	case AccessibilityPrivate:
		return "Private"
	case AccessibilityImplicit:
		return "Implicit"
	case AccessibilityFriend:
		return "Friend"
	case AccessibilityPublic:
		return "Public"
	case AccessibilityGlobal:
		return "Global"
	default:
		return "Unknown"
	}
}

// InPublicRange reports whether a is Public or Global.
func (a Accessibility) InPublicRange() bool {
	return a >= AccessibilityPublic && a <= AccessibilityGlobal
}

// ParseAccessibility maps a modifier keyword to its accessibility.
func ParseAccessibility(keyword string) (Accessibility, bool) {
	switch strings.ToLower(keyword) {
	case "private":
		return AccessibilityPrivate, true
	case "friend":
		return AccessibilityFriend, true
	case "public":
		return AccessibilityPublic, true
	case "global":
		return AccessibilityGlobal, true
	default:
		return 0, false
	}
}

// Category is the closed set of declaration shapes. Consumers switch on it
// exhaustively instead of probing concrete types.
type Category int

const (
	CategoryProject Category = iota + 1
	CategoryModule
	CategoryClassModule
	CategoryMember
	CategoryEvent
	CategoryVariable
	CategoryType
	CategoryTypeMember
)

func (c Category) String() string {
	switch c {
	case CategoryProject:
		return "project"
	case CategoryModule:
		return "module"
	case CategoryClassModule:
		return "class"
	case CategoryMember:
		return "member"
	case CategoryEvent:
		return "event"
	case CategoryVariable:
		return "variable"
	case CategoryType:
		return "type"
	case CategoryTypeMember:
		return "type-member"
	default:
		return "unknown"
	}
}

// CategoryOf maps every Kind onto its Category.
func CategoryOf(k Kind) Category {
	switch k {
	case KindProject:
		return CategoryProject
	case KindProceduralModule:
		return CategoryModule
	case KindClassModule:
		return CategoryClassModule
	case KindProcedure, KindFunction, KindPropertyGet, KindPropertyLet, KindPropertySet:
		return CategoryMember
	case KindEvent:
		return CategoryEvent
	case KindVariable, KindConstant, KindParameter:
		return CategoryVariable
	case KindEnumeration, KindUserDefinedType:
		return CategoryType
	case KindEnumerationMember, KindUserDefinedTypeMember:
		return CategoryTypeMember
	default:
		return 0
	}
}
