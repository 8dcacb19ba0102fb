package rewriter

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/tokens"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusPending      Status = "pending"
	StatusCommitted    Status = "committed"
	StatusCommitFailed Status = "commit_failed"
	StatusStale        Status = "stale"
	StatusExpired      Status = "expired"
	StatusAbandoned    Status = "abandoned"
)

// IsTerminal reports whether no further commit is possible.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// Checkpoint is a position in a session's edit history.
type Checkpoint map[string]int

// Session groups module rewriters of one code kind into one commit.
type Session struct {
	id      string
	kind    tokens.CodeKind
	manager *Manager

	mu        sync.Mutex
	status    Status
	closed    bool
	rewriters map[string]*ModuleRewriter
	order     []string
}

func newSession(kind tokens.CodeKind, m *Manager) *Session {
	return &Session{
		id:        uuid.New().String(),
		kind:      kind,
		manager:   m,
		status:    StatusPending,
		rewriters: make(map[string]*ModuleRewriter),
	}
}

func (s *Session) ID() string            { return s.id }
func (s *Session) Kind() tokens.CodeKind { return s.kind }

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsOpen reports whether the session still holds its writer slot.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Rewriter returns the session's rewriter for module, checking one out on
// first use.
func (s *Session) Rewriter(module declarations.QualifiedModuleName) (*ModuleRewriter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return nil, err
	}

	key := rewriterKey(module)
	if r, ok := s.rewriters[key]; ok {
		return r, nil
	}
	stream, err := s.manager.streams.Stream(module, s.kind)
	if err != nil {
		return nil, err
	}
	r := newModuleRewriter(module, stream, s.manager.host, s.manager.streams, s.manager.logger)
	s.rewriters[key] = r
	s.order = append(s.order, key)
	return r, nil
}

// Modules returns the modules the session has rewriters for, in checkout order.
func (s *Session) Modules() []declarations.QualifiedModuleName {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]declarations.QualifiedModuleName, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.rewriters[key].module)
	}
	return out
}

// Touches reports whether the session has a rewriter for module.
func (s *Session) Touches(module declarations.QualifiedModuleName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rewriters[rewriterKey(module)]
	return ok
}

// Checkpoint records the buffered edits of every rewriter.
func (s *Session) Checkpoint() Checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(Checkpoint, len(s.rewriters))
	for key, r := range s.rewriters {
		cp[key] = r.buf.Checkpoint()
	}
	return cp
}

// Rollback discards edits buffered after cp. The host is not touched.
// Rewriters checked out after cp lose all their edits.
func (s *Session) Rollback(cp Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, r := range s.rewriters {
		r.buf.RollbackTo(cp[key])
	}
}

// Commit writes every dirty rewriter to the host. Either all modules are
// written or, after a failure, the ones already written are restored.
func (s *Session) Commit(ctx context.Context) error {
	return s.manager.commit(ctx, s)
}

// Abandon releases the writer slot without writing. It is a no-op on a
// session that is already closed.
func (s *Session) Abandon() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.status == StatusPending {
		s.status = StatusAbandoned
	}
	s.mu.Unlock()
	s.manager.release(s)
	s.manager.logger.Debug("Abandoned rewrite session", "session", s.id, "kind", s.kind.String())
}

// expire marks a pending session stale because another session rewrote one
// of its modules.
func (s *Session) expire(changed []declarations.QualifiedModuleName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusPending {
		return false
	}
	for _, m := range changed {
		if _, ok := s.rewriters[rewriterKey(m)]; ok {
			s.status = StatusExpired
			return true
		}
	}
	return false
}

func (s *Session) usableLocked() error {
	if s.closed {
		return errors.Newf(errors.SessionClosed, "session %s is closed (%s)", s.id, s.status)
	}
	if s.status == StatusExpired {
		return errors.Newf(errors.StaleSession, "session %s expired: another session rewrote its modules", s.id)
	}
	return nil
}

func rewriterKey(m declarations.QualifiedModuleName) string {
	return strings.ToLower(m.ProjectID) + "\x00" + strings.ToLower(m.ComponentName)
}
