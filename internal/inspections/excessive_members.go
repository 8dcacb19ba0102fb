package inspections

import (
	"fmt"
	"strings"

	"ducklint/internal/declarations"
)

// DefaultInterfaceMemberThreshold is used when no threshold is configured.
const DefaultInterfaceMemberThreshold = 10

// MemberCountProperty holds the computed member count of a flagged interface.
const MemberCountProperty = "memberCount"

// ExcessiveInterfaceMembersInspection flags interfaces with more public
// members than the threshold.
type ExcessiveInterfaceMembersInspection struct {
	threshold int
}

// NewExcessiveInterfaceMembers returns the inspection; threshold <= 0 uses
// DefaultInterfaceMemberThreshold.
func NewExcessiveInterfaceMembers(threshold int) *ExcessiveInterfaceMembersInspection {
	if threshold <= 0 {
		threshold = DefaultInterfaceMemberThreshold
	}
	return &ExcessiveInterfaceMembersInspection{threshold: threshold}
}

func (i *ExcessiveInterfaceMembersInspection) Name() string       { return ExcessiveInterfaceMembers }
func (i *ExcessiveInterfaceMembersInspection) Severity() Severity { return SeveritySuggestion }
func (i *ExcessiveInterfaceMembersInspection) Threshold() int     { return i.threshold }

func (i *ExcessiveInterfaceMembersInspection) Kinds() []declarations.Kind {
	return []declarations.Kind{declarations.KindClassModule}
}

func (i *ExcessiveInterfaceMembersInspection) Evaluate(d *declarations.Declaration, _ *declarations.Graph) (bool, Properties, error) {
	if d.Kind() != declarations.KindClassModule || !d.IsInterface() {
		return false, nil, nil
	}
	count := InterfaceMemberCount(d)
	if count <= i.threshold {
		return false, nil, nil
	}
	return true, Properties{MemberCountProperty: count}, nil
}

func (i *ExcessiveInterfaceMembersInspection) Describe(d *declarations.Declaration, props Properties) string {
	return fmt.Sprintf("Interface '%s' exposes %v members; consider splitting it", d.IdentifierName(), props[MemberCountProperty])
}

// InterfaceMemberCount counts the distinct access points of a class: public
// or global members other than events, with a Property Get folded into a
// Let or Set of the same name.
func InterfaceMemberCount(module *declarations.Declaration) int {
	var public []*declarations.Declaration
	for _, m := range module.Members() {
		if !m.Accessibility().InPublicRange() || m.Kind() == declarations.KindEvent {
			continue
		}
		public = append(public, m)
	}

	count := 0
	for _, m := range public {
		if m.Kind() == declarations.KindPropertyGet && hasSibling(public, m) {
			continue
		}
		count++
	}
	return count
}

func hasSibling(members []*declarations.Declaration, d *declarations.Declaration) bool {
	for _, other := range members {
		if other != d && strings.EqualFold(other.IdentifierName(), d.IdentifierName()) {
			return true
		}
	}
	return false
}
