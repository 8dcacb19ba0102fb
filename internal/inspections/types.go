// Package inspections runs code inspections over a parsed project and
// reports results that quick fixes can act on.
package inspections

import (
	"sort"
	"sync"

	"ducklint/internal/declarations"
)

// Severity indicates how a result is surfaced.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeveritySuggestion Severity = "suggestion"
	SeverityHint       Severity = "hint"
)

// Weight returns a numeric weight for filtering.
func (s Severity) Weight() int {
	switch s {
	case SeverityError:
		return 4
	case SeverityWarning:
		return 3
	case SeveritySuggestion:
		return 2
	case SeverityHint:
		return 1
	default:
		return 0
	}
}

// Properties are extra values an inspection attaches to a result for
// message formatting and fixes.
type Properties map[string]any

func (p Properties) clone() Properties {
	if len(p) == 0 {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Target is a value snapshot of the declaration or token a result is about.
type Target struct {
	Name          declarations.QualifiedMemberName `json:"name"`
	Kind          declarations.Kind                `json:"-"`
	Accessibility declarations.Accessibility       `json:"-"`
	Selection     declarations.Selection           `json:"selection"`
	TokenIndex    int                              `json:"tokenIndex"`
}

// TargetOf snapshots d.
func TargetOf(d *declarations.Declaration) Target {
	return Target{
		Name:          d.QualifiedName(),
		Kind:          d.Kind(),
		Accessibility: d.Accessibility(),
		Selection:     d.Selection(),
		TokenIndex:    d.TokenIndex(),
	}
}

// Result is one inspection finding. Scoping fields never change after
// construction; only the disabled quick-fix set is mutable.
type Result struct {
	inspection  string
	severity    Severity
	description string
	target      Target
	selection   declarations.QualifiedSelection
	member      declarations.QualifiedMemberName
	startToken  int
	endToken    int
	properties  Properties

	mu       sync.Mutex
	disabled map[string]bool
}

// ResultSpec carries the fields of a new Result.
type ResultSpec struct {
	Inspection  string
	Severity    Severity
	Description string
	Target      Target
	Selection   declarations.QualifiedSelection
	// Member is the containing procedure, zero at module level.
	Member     declarations.QualifiedMemberName
	StartToken int
	EndToken   int
	Properties Properties
}

// NewResult builds a result, copying the properties.
func NewResult(spec ResultSpec) *Result {
	return &Result{
		inspection:  spec.Inspection,
		severity:    spec.Severity,
		description: spec.Description,
		target:      spec.Target,
		selection:   spec.Selection,
		member:      spec.Member,
		startToken:  spec.StartToken,
		endToken:    spec.EndToken,
		properties:  spec.Properties.clone(),
	}
}

func (r *Result) Inspection() string  { return r.inspection }
func (r *Result) Severity() Severity  { return r.severity }
func (r *Result) Description() string { return r.description }
func (r *Result) Target() Target      { return r.target }

// QualifiedSelection is where the result points in the module's pane.
func (r *Result) QualifiedSelection() declarations.QualifiedSelection { return r.selection }

// QualifiedMember is the containing procedure, zero for module-level results.
func (r *Result) QualifiedMember() declarations.QualifiedMemberName { return r.member }

// Module is the module the result is in.
func (r *Result) Module() declarations.QualifiedModuleName { return r.selection.Module }

// ProjectID is the project the result is in.
func (r *Result) ProjectID() string { return r.selection.Module.ProjectID }

// TokenRange returns the pane token indexes the result covers.
func (r *Result) TokenRange() (int, int) { return r.startToken, r.endToken }

// Property returns one extra property.
func (r *Result) Property(key string) (any, bool) {
	v, ok := r.properties[key]
	return v, ok
}

// Properties returns a copy of the extra properties.
func (r *Result) Properties() Properties { return r.properties.clone() }

// DisableQuickFix excludes the fix from this result's fix list.
func (r *Result) DisableQuickFix(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disabled == nil {
		r.disabled = make(map[string]bool)
	}
	r.disabled[id] = true
}

// EnableQuickFix undoes DisableQuickFix.
func (r *Result) EnableQuickFix(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.disabled, id)
}

// IsQuickFixDisabled reports whether id was disabled for this result.
func (r *Result) IsQuickFixDisabled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disabled[id]
}

// DisabledQuickFixes returns the disabled fix ids in sorted order.
func (r *Result) DisabledQuickFixes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.disabled))
	for id := range r.disabled {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// View is the serializable form of a Result.
type View struct {
	Inspection         string         `json:"inspection" yaml:"inspection"`
	Severity           Severity       `json:"severity" yaml:"severity"`
	Description        string         `json:"description" yaml:"description"`
	Module             string         `json:"module" yaml:"module"`
	Member             string         `json:"member,omitempty" yaml:"member,omitempty"`
	Target             string         `json:"target" yaml:"target"`
	Line               int            `json:"line" yaml:"line"`
	Column             int            `json:"column" yaml:"column"`
	Properties         map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
	DisabledQuickFixes []string       `json:"disabledQuickFixes,omitempty" yaml:"disabledQuickFixes,omitempty"`
}

// View snapshots r for output.
func (r *Result) View() View {
	v := View{
		Inspection:  r.inspection,
		Severity:    r.severity,
		Description: r.description,
		Module:      r.selection.Module.ComponentName,
		Target:      r.target.Name.MemberName,
		Line:        r.selection.Selection.StartLine,
		Column:      r.selection.Selection.StartColumn,
		Properties:  r.properties.clone(),
	}
	if !r.member.IsZero() {
		v.Member = r.member.MemberName
	}
	if disabled := r.DisabledQuickFixes(); len(disabled) > 0 {
		v.DisabledQuickFixes = disabled
	}
	return v
}

// Summary counts results.
type Summary struct {
	Total        int              `json:"total" yaml:"total"`
	ByInspection map[string]int   `json:"byInspection" yaml:"byInspection"`
	BySeverity   map[Severity]int `json:"bySeverity" yaml:"bySeverity"`
	Modules      int              `json:"modules" yaml:"modules"`
}

// Report is the output of one engine run.
type Report struct {
	ProjectID  string    `json:"projectId"`
	Generation uint64    `json:"generation"`
	Results    []*Result `json:"-"`
	Summary    Summary   `json:"summary"`
	// Failures counts evaluations that errored or panicked and were skipped.
	Failures int    `json:"failures"`
	Ignored  int    `json:"ignored"`
	Duration string `json:"duration"`
}

// Views returns the results in serializable form.
func (r *Report) Views() []View {
	out := make([]View, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.View()
	}
	return out
}

func buildSummary(results []*Result) Summary {
	s := Summary{
		ByInspection: make(map[string]int),
		BySeverity:   make(map[Severity]int),
	}
	modules := make(map[string]bool)
	for _, r := range results {
		s.Total++
		s.ByInspection[r.inspection]++
		s.BySeverity[r.severity]++
		modules[r.selection.Module.String()] = true
	}
	s.Modules = len(modules)
	return s
}
