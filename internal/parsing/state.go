package parsing

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/host"
	"ducklint/internal/tokens"
)

// Status is the parser's readiness.
type Status string

const (
	StatusPending Status = "pending"
	StatusParsing Status = "parsing"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// State holds the latest parse of a host project. Readers get immutable
// snapshots; Reparse swaps them atomically.
type State struct {
	host   host.Host
	parser Parser
	logger *slog.Logger

	parseMu sync.Mutex

	mu           sync.RWMutex
	status       Status
	lastErr      error
	generation   uint64
	graph        *declarations.Graph
	streams      map[string]*tokens.Stream
	fingerprints map[string]uint64
	modified     map[string]bool
	listeners    []func(Status)

	queued   atomic.Bool
	inflight sync.WaitGroup
}

// NewState creates a state that has not parsed yet.
func NewState(h host.Host, parser Parser, logger *slog.Logger) *State {
	return &State{
		host:         h,
		parser:       parser,
		logger:       logger,
		status:       StatusPending,
		streams:      make(map[string]*tokens.Stream),
		fingerprints: make(map[string]uint64),
		modified:     make(map[string]bool),
	}
}

// Host returns the parsed host.
func (s *State) Host() host.Host { return s.host }

// Status returns the current status.
func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Err returns the error of the last failed parse.
func (s *State) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Generation returns the number of the latest successful parse.
func (s *State) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Graph returns the latest declaration graph, nil before the first parse.
func (s *State) Graph() *declarations.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// Stream returns the token stream of module in kind.
func (s *State) Stream(module declarations.QualifiedModuleName, kind tokens.CodeKind) (*tokens.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[streamKey(module, kind)]
	if !ok {
		return nil, errors.Newf(errors.ModuleNotFound, "no %s stream for %s", kind, module)
	}
	return st, nil
}

// OnStatusChange registers fn to run after every status transition.
func (s *State) OnStatusChange(fn func(Status)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// FindSelectedDeclaration resolves the declaration at a selection.
func (s *State) FindSelectedDeclaration(qs declarations.QualifiedSelection) *declarations.Declaration {
	g := s.Graph()
	if g == nil {
		return nil
	}
	return g.FindSelected(qs)
}

// MarkModified flags module as changed since the last parse.
func (s *State) MarkModified(module declarations.QualifiedModuleName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified[moduleKey(module)] = true
}

// IsNewOrModified reports whether module was added or changed since the last
// parse. The host is read fresh on every call.
func (s *State) IsNewOrModified(module declarations.QualifiedModuleName) bool {
	s.mu.RLock()
	fp, known := s.fingerprints[moduleKey(module)]
	flagged := s.modified[moduleKey(module)]
	s.mu.RUnlock()
	if !known || flagged {
		return true
	}
	content, err := s.host.CodePaneContent(module)
	if err != nil {
		return true
	}
	return xxhash.Sum64String(content) != fp
}

// Reparse parses the whole project and publishes the result. Concurrent
// calls are serialized.
func (s *State) Reparse(ctx context.Context) error {
	s.parseMu.Lock()
	defer s.parseMu.Unlock()

	s.setStatus(StatusParsing, nil)

	sources, err := s.readSources(ctx)
	if err != nil {
		s.setStatus(StatusError, err)
		return err
	}

	s.mu.RLock()
	generation := s.generation + 1
	s.mu.RUnlock()

	result, err := s.parser.Parse(ctx, s.host.ProjectID(), sources, generation)
	if err != nil {
		s.setStatus(StatusError, err)
		return err
	}

	streams := make(map[string]*tokens.Stream, 2*len(result.Modules))
	for _, m := range result.Modules {
		streams[streamKey(m.Module, tokens.CodePane)] = m.Pane
		streams[streamKey(m.Module, tokens.Attributes)] = m.Attributes
	}
	fingerprints := make(map[string]uint64, len(sources))
	for _, src := range sources {
		fingerprints[moduleKey(src.Module)] = xxhash.Sum64String(src.Pane)
	}

	s.mu.Lock()
	s.generation = generation
	s.graph = result.Graph
	s.streams = streams
	s.fingerprints = fingerprints
	s.modified = make(map[string]bool)
	s.mu.Unlock()

	s.logger.Debug("Parsed project",
		"project", s.host.ProjectID(),
		"generation", generation,
		"modules", len(sources),
		"declarations", result.Graph.Len(),
	)
	s.setStatus(StatusReady, nil)
	return nil
}

// RequestReparse schedules a background Reparse. Requests made while one is
// already queued are merged into it.
func (s *State) RequestReparse(ctx context.Context) {
	if !s.queued.CompareAndSwap(false, true) {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.parseMu.Lock()
		s.queued.Store(false)
		s.parseMu.Unlock()
		if err := s.Reparse(ctx); err != nil {
			s.logger.Warn("Background parse failed", "error", err.Error())
		}
	}()
}

// Wait blocks until background parses have finished.
func (s *State) Wait() {
	s.inflight.Wait()
}

func (s *State) readSources(ctx context.Context) ([]Source, error) {
	modules, err := s.host.Components(ctx)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, 0, len(modules))
	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pane, err := s.host.CodePaneContent(m)
		if err != nil {
			return nil, err
		}
		attrs, err := s.host.AttributedContent(m)
		if err != nil {
			return nil, err
		}
		sources = append(sources, Source{Module: m, Pane: pane, Attributes: attrs})
	}
	return sources, nil
}

func (s *State) setStatus(status Status, err error) {
	s.mu.Lock()
	s.status = status
	if status == StatusError {
		s.lastErr = err
	} else if status == StatusReady {
		s.lastErr = nil
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(status)
	}
}

func moduleKey(m declarations.QualifiedModuleName) string {
	return strings.ToLower(m.ProjectID) + "\x00" + strings.ToLower(m.ComponentName)
}

func streamKey(m declarations.QualifiedModuleName, kind tokens.CodeKind) string {
	return moduleKey(m) + "\x00" + kind.String()
}
