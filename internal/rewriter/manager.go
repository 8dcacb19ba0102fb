package rewriter

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/host"
	"ducklint/internal/tokens"
)

// Entry is the journal record of one committed session.
type Entry struct {
	SessionID   string          `json:"sessionId"`
	Kind        tokens.CodeKind `json:"kind"`
	Status      Status          `json:"status"`
	CommittedAt time.Time       `json:"committedAt"`
	Changes     []Change        `json:"changes"`
}

// Journal persists committed sessions.
type Journal interface {
	Record(ctx context.Context, entry Entry) error
}

// CommitEvent tells listeners which modules a commit changed.
type CommitEvent struct {
	SessionID string
	Kind      tokens.CodeKind
	Modules   []declarations.QualifiedModuleName
}

// Manager hands out rewrite sessions, at most one open session per code kind.
type Manager struct {
	host    host.Host
	streams StreamProvider
	logger  *slog.Logger

	mu        sync.Mutex
	open      map[tokens.CodeKind]*Session
	journal   Journal
	listeners []func(CommitEvent)
}

// NewManager creates a manager writing to h.
func NewManager(h host.Host, streams StreamProvider, logger *slog.Logger) *Manager {
	return &Manager{
		host:    h,
		streams: streams,
		logger:  logger,
		open:    make(map[tokens.CodeKind]*Session),
	}
}

// Host returns the host sessions write to.
func (m *Manager) Host() host.Host { return m.host }

// SetJournal records every successful commit in j.
func (m *Manager) SetJournal(j Journal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal = j
}

// OnCommit registers fn to run after each commit that changed modules.
func (m *Manager) OnCommit(fn func(CommitEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// CheckOut opens a session for kind. It fails while another session of the
// same kind is open.
func (m *Manager) CheckOut(kind tokens.CodeKind) (*Session, error) {
	if kind != tokens.CodePane && kind != tokens.Attributes {
		return nil, errors.Newf(errors.UnsupportedCodeKind, "unsupported code kind %d", int(kind))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.open[kind]; ok {
		return nil, errors.Newf(errors.StaleSession, "a %s session (%s) is already open", kind, current.id)
	}
	s := newSession(kind, m)
	m.open[kind] = s
	m.logger.Debug("Checked out rewrite session", "session", s.id, "kind", kind.String())
	return s, nil
}

// CheckOutCodePane opens a code pane session.
func (m *Manager) CheckOutCodePane() (*Session, error) {
	return m.CheckOut(tokens.CodePane)
}

// CheckOutAttributes opens an attributes session.
func (m *Manager) CheckOutAttributes() (*Session, error) {
	return m.CheckOut(tokens.Attributes)
}

// IsOpen reports whether a session of kind is open.
func (m *Manager) IsOpen(kind tokens.CodeKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[kind]
	return ok
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open[s.kind] == s {
		delete(m.open, s.kind)
	}
}

func (m *Manager) commit(ctx context.Context, s *Session) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		if s.status == StatusExpired {
			s.closed = true
			s.mu.Unlock()
			m.release(s)
			return err
		}
		s.mu.Unlock()
		return err
	}

	var changes []Change
	var failure error
	for _, key := range s.order {
		if err := ctx.Err(); err != nil {
			failure = err
			break
		}
		c, err := s.rewriters[key].Rewrite()
		if err != nil {
			failure = err
			break
		}
		if c != nil {
			changes = append(changes, *c)
		}
	}

	if failure != nil {
		m.restore(s, changes)
		if errors.HasCode(failure, errors.StaleTokenStream) {
			s.status = StatusStale
		} else {
			s.status = StatusCommitFailed
		}
		s.closed = true
		status := s.status
		s.mu.Unlock()
		m.release(s)
		m.logger.Warn("Rewrite session commit failed",
			"session", s.id,
			"kind", s.kind.String(),
			"status", string(status),
			"error", failure.Error(),
		)
		return errors.New(errors.CommitFailed, "session "+s.id+" was not committed", failure)
	}

	s.status = StatusCommitted
	s.closed = true
	s.mu.Unlock()

	m.mu.Lock()
	if m.open[s.kind] == s {
		delete(m.open, s.kind)
	}
	others := make([]*Session, 0, len(m.open))
	for _, o := range m.open {
		others = append(others, o)
	}
	journal := m.journal
	listeners := slices.Clone(m.listeners)
	m.mu.Unlock()

	if len(changes) == 0 {
		m.logger.Debug("Committed rewrite session with no changes", "session", s.id)
		return nil
	}

	modules := make([]declarations.QualifiedModuleName, len(changes))
	for i, c := range changes {
		modules[i] = c.Module
	}
	for _, o := range others {
		if o.expire(modules) {
			m.logger.Info("Expired rewrite session", "session", o.id, "kind", o.kind.String(), "by", s.id)
		}
	}

	if journal != nil {
		entry := Entry{
			SessionID:   s.id,
			Kind:        s.kind,
			Status:      StatusCommitted,
			CommittedAt: time.Now().UTC(),
			Changes:     changes,
		}
		if err := journal.Record(ctx, entry); err != nil {
			m.logger.Warn("Failed to journal rewrite session", "session", s.id, "error", err.Error())
		}
	}

	m.logger.Info("Committed rewrite session",
		"session", s.id,
		"kind", s.kind.String(),
		"modules", len(modules),
	)
	event := CommitEvent{SessionID: s.id, Kind: s.kind, Modules: modules}
	for _, fn := range listeners {
		fn(event)
	}
	return nil
}

// restore undoes already written changes, newest first.
func (m *Manager) restore(s *Session, changes []Change) {
	for i := len(changes) - 1; i >= 0; i-- {
		c := changes[i]
		r := s.rewriters[rewriterKey(c.Module)]
		if err := r.restore(&c); err != nil {
			m.logger.Error("Failed to restore module after commit failure",
				"session", s.id,
				"module", c.Module.String(),
				"error", err.Error(),
			)
		}
	}
}
