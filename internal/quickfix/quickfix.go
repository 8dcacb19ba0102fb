// Package quickfix applies automated fixes for inspection results through
// rewrite sessions.
package quickfix

import (
	"log/slog"

	"ducklint/internal/declarations"
	"ducklint/internal/inspections"
	"ducklint/internal/rewriter"
	"ducklint/internal/tokens"
)

// Scope is how widely a fix is applied in one go.
type Scope string

const (
	ScopeResult    Scope = "result"
	ScopeProcedure Scope = "procedure"
	ScopeModule    Scope = "module"
	ScopeProject   Scope = "project"
	ScopeAll       Scope = "all"
)

// ParseScope maps a scope name to its Scope.
func ParseScope(s string) (Scope, bool) {
	switch Scope(s) {
	case ScopeResult, ScopeProcedure, ScopeModule, ScopeProject, ScopeAll:
		return Scope(s), true
	}
	return "", false
}

// QuickFix remediates results of the inspections it supports.
type QuickFix interface {
	ID() string
	SupportedInspections() []string
	TargetCodeKind() tokens.CodeKind
	// Fix buffers the edits for result in session. It does not commit.
	Fix(result *inspections.Result, session *rewriter.Session) error
	Description(result *inspections.Result) string
	CanFix(scope Scope) bool
}

// Sessions opens rewrite sessions.
type Sessions interface {
	CheckOut(kind tokens.CodeKind) (*rewriter.Session, error)
}

// GraphSource returns the latest declaration graph.
type GraphSource interface {
	Graph() *declarations.Graph
}

// FailureNotifier surfaces failed fixes to the user.
type FailureNotifier interface {
	NotifyQuickFixFailure(status rewriter.Status, err error)
}

// LogNotifier reports failures to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier writing warnings to logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyQuickFixFailure(status rewriter.Status, err error) {
	n.logger.Warn("Quick fix failed", "status", string(status), "error", err)
}

// Outcome summarizes one provider call.
type Outcome struct {
	Fix       string          `json:"fix" yaml:"fix"`
	Scope     Scope           `json:"scope" yaml:"scope"`
	SessionID string          `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	Status    rewriter.Status `json:"status,omitempty" yaml:"status,omitempty"`
	Applied   int             `json:"applied" yaml:"applied"`
	Skipped   int             `json:"skipped" yaml:"skipped"`
	Failed    int             `json:"failed" yaml:"failed"`
	Modules   []string        `json:"modules,omitempty" yaml:"modules,omitempty"`
	Err       error           `json:"-" yaml:"-"`
	Error     string          `json:"error,omitempty" yaml:"error,omitempty"`
}

// Committed reports whether the outcome's session was committed.
func (o Outcome) Committed() bool {
	return o.Status == rewriter.StatusCommitted
}

// Fixes returns the built-in quick fixes. Ignore-once supports every
// inspection in names.
func Fixes(graphs GraphSource, names []string) []QuickFix {
	return []QuickFix{
		NewUseTypedFunction(),
		NewAddMissingAttribute(graphs),
		NewIgnoreOnce(graphs, names),
	}
}
