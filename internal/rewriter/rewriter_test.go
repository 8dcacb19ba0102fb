package rewriter

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/host"
	"ducklint/internal/project"
	"ducklint/internal/slogutil"
	"ducklint/internal/tokens"
)

// lineStreams tokenizes every module one token per line, enough to address
// whole lines in edits.
type lineStreams struct {
	h       host.Host
	gen     uint64
	streams map[string]*tokens.Stream
}

func (l *lineStreams) parse(t *testing.T) {
	t.Helper()
	l.gen++
	l.streams = make(map[string]*tokens.Stream)
	modules, err := l.h.Components(context.Background())
	require.NoError(t, err)
	for _, m := range modules {
		for _, kind := range []tokens.CodeKind{tokens.CodePane, tokens.Attributes} {
			content, err := host.Content(l.h, m, kind == tokens.Attributes)
			require.NoError(t, err)
			l.streams[streamKey(m, kind)] = lineStream(kind, l.gen, content)
		}
	}
}

func (l *lineStreams) Stream(module declarations.QualifiedModuleName, kind tokens.CodeKind) (*tokens.Stream, error) {
	s, ok := l.streams[streamKey(module, kind)]
	if !ok {
		return nil, errors.Newf(errors.ModuleNotFound, "no stream for %s", module)
	}
	return s, nil
}

func (l *lineStreams) Generation() uint64 { return l.gen }

func streamKey(m declarations.QualifiedModuleName, kind tokens.CodeKind) string {
	return rewriterKey(m) + "/" + kind.String()
}

func lineStream(kind tokens.CodeKind, gen uint64, content string) *tokens.Stream {
	var toks []tokens.Token
	for i, line := range project.SplitLines(content) {
		body := strings.TrimRight(line, "\r\n")
		if body != "" {
			toks = append(toks, tokens.Token{Index: len(toks), Kind: tokens.Identifier, Text: body, Line: i + 1, Column: 1})
		}
		if nl := line[len(body):]; nl != "" {
			toks = append(toks, tokens.Token{Index: len(toks), Kind: tokens.Newline, Text: nl, Line: i + 1, Column: len(body) + 1})
		}
	}
	return tokens.NewStream(kind, gen, content, toks)
}

type fixture struct {
	host    *host.Memory
	streams *lineStreams
	manager *Manager
	a, b    declarations.QualifiedModuleName
	shape   declarations.QualifiedModuleName
	sheet   declarations.QualifiedModuleName
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := host.NewMemory("Proj", t.TempDir())
	f := &fixture{host: h}
	f.a = h.AddModule("ModuleA", declarations.StandardModule, "Sub A()\r\nEnd Sub\r\n")
	f.b = h.AddModule("ModuleB", declarations.StandardModule, "Sub B()\r\nEnd Sub\r\n")
	f.shape = h.AddModule("Shape", declarations.ClassModule, "Attribute VB_Name = \"Shape\"\r\nAttribute VB_PredeclaredId = False\r\n'@PredeclaredId\r\n")
	f.sheet = h.AddModule("Sheet1", declarations.Document, "Attribute VB_Name = \"Sheet1\"\r\nAttribute VB_PredeclaredId = False\r\n")
	f.streams = &lineStreams{h: h}
	f.streams.parse(t)
	f.manager = NewManager(h, f.streams, slogutil.NewDiscardLogger())
	return f
}

func (f *fixture) pane(t *testing.T, m declarations.QualifiedModuleName) string {
	t.Helper()
	text, err := f.host.CodePaneContent(m)
	require.NoError(t, err)
	return text
}

func TestCleanRewriterPerformsNoHostMutation(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)

	r, err := s.Rewriter(f.a)
	require.NoError(t, err)
	dirty, err := r.IsDirty()
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, s.Commit(context.Background()))
	assert.Equal(t, StatusCommitted, s.Status())
	assert.Equal(t, 0, f.host.Mutations())
	assert.False(t, f.manager.IsOpen(tokens.CodePane))
}

func TestPaneCommitWritesAndNotifies(t *testing.T) {
	f := newFixture(t)
	var events []CommitEvent
	f.manager.OnCommit(func(e CommitEvent) { events = append(events, e) })

	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)
	r, err := s.Rewriter(f.a)
	require.NoError(t, err)
	require.NoError(t, r.InsertBefore(0, "'@Folder(\"Core\")\r\n"))

	dirty, err := r.IsDirty()
	require.NoError(t, err)
	assert.True(t, dirty)

	require.NoError(t, s.Commit(context.Background()))
	assert.Equal(t, "'@Folder(\"Core\")\r\nSub A()\r\nEnd Sub\r\n", f.pane(t, f.a))
	assert.Equal(t, "Sub B()\r\nEnd Sub\r\n", f.pane(t, f.b))
	assert.Equal(t, 1, f.host.Mutations())

	require.Len(t, events, 1)
	assert.Equal(t, s.ID(), events[0].SessionID)
	assert.Equal(t, []declarations.QualifiedModuleName{f.a}, events[0].Modules)
}

func TestCheckOutWhileOpenFails(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)

	_, err = f.manager.CheckOutCodePane()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.StaleSession))
	assert.Equal(t, 0, f.host.Mutations())

	// the other kind has its own slot
	attrs, err := f.manager.CheckOutAttributes()
	require.NoError(t, err)
	attrs.Abandon()

	s.Abandon()
	s.Abandon()
	assert.Equal(t, StatusAbandoned, s.Status())
	_, err = f.manager.CheckOutCodePane()
	assert.NoError(t, err)
}

func TestCheckOutUnsupportedKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.CheckOut(tokens.CodeKind(42))
	assert.True(t, errors.HasCode(err, errors.UnsupportedCodeKind))
}

func TestAttributesRewriteOnDocumentIsSkipped(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutAttributes()
	require.NoError(t, err)
	r, err := s.Rewriter(f.sheet)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceToken(2, "Attribute VB_PredeclaredId = True"))

	change, err := r.Rewrite()
	require.NoError(t, err)
	assert.Nil(t, change)
	assert.Equal(t, 0, f.host.Mutations())

	require.NoError(t, s.Commit(context.Background()))
	assert.Equal(t, StatusCommitted, s.Status())
	assert.Equal(t, 0, f.host.Mutations())
}

func TestAttributesRewriteRoundTrips(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutAttributes()
	require.NoError(t, err)
	r, err := s.Rewriter(f.shape)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceToken(2, "Attribute VB_PredeclaredId = True"))

	require.NoError(t, s.Commit(context.Background()))
	text, err := f.host.AttributedContent(f.shape)
	require.NoError(t, err)
	assert.Contains(t, text, "Attribute VB_PredeclaredId = True\r\n")
	assert.Equal(t, "'@PredeclaredId\r\n", f.pane(t, f.shape))
	assert.Equal(t, 1, f.host.Mutations(), "only the import mutates the project")
}

func TestCommitRestoresWrittenModulesOnFailure(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)

	ra, err := s.Rewriter(f.a)
	require.NoError(t, err)
	require.NoError(t, ra.ReplaceToken(0, "Sub A2()"))
	rb, err := s.Rewriter(f.b)
	require.NoError(t, err)
	require.NoError(t, rb.ReplaceToken(0, "Sub B2()"))

	// the user edits B after the parse
	require.NoError(t, f.host.SetPane(f.b, "Sub B()\r\n    Beep\r\nEnd Sub\r\n"))

	err = s.Commit(context.Background())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CommitFailed))
	assert.ErrorIs(t, err, errors.Sentinel(errors.StaleTokenStream))
	assert.Equal(t, StatusStale, s.Status())

	assert.Equal(t, "Sub A()\r\nEnd Sub\r\n", f.pane(t, f.a))
	assert.Equal(t, "Sub B()\r\n    Beep\r\nEnd Sub\r\n", f.pane(t, f.b))
	assert.False(t, f.manager.IsOpen(tokens.CodePane))
}

func TestCommitFailsOnHostError(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)
	r, err := s.Rewriter(f.a)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceToken(0, "Sub A2()"))

	boom := stderrors.New("host busy")
	f.host.FailNextWrite(boom)
	err = s.Commit(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, StatusCommitFailed, s.Status())

	err = s.Commit(context.Background())
	assert.True(t, errors.HasCode(err, errors.SessionClosed))
}

func TestCommitRejectsOldGeneration(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)
	r, err := s.Rewriter(f.a)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceToken(0, "Sub A2()"))

	f.streams.parse(t)

	err = s.Commit(context.Background())
	assert.ErrorIs(t, err, errors.Sentinel(errors.StaleTokenStream))
	assert.Equal(t, 0, f.host.Mutations())
}

func TestCommitExpiresOverlappingSessions(t *testing.T) {
	f := newFixture(t)
	attrs, err := f.manager.CheckOutAttributes()
	require.NoError(t, err)
	_, err = attrs.Rewriter(f.shape)
	require.NoError(t, err)

	pane, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)
	r, err := pane.Rewriter(f.shape)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceToken(0, "'@PredeclaredId '@Exposed"))
	require.NoError(t, pane.Commit(context.Background()))

	assert.Equal(t, StatusExpired, attrs.Status())
	_, err = attrs.Rewriter(f.a)
	assert.True(t, errors.HasCode(err, errors.StaleSession))

	err = attrs.Commit(context.Background())
	assert.True(t, errors.HasCode(err, errors.StaleSession))
	assert.False(t, f.manager.IsOpen(tokens.Attributes))
}

func TestCheckpointRollback(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)
	ra, err := s.Rewriter(f.a)
	require.NoError(t, err)
	require.NoError(t, ra.ReplaceToken(0, "Sub A2()"))

	cp := s.Checkpoint()
	require.NoError(t, ra.InsertBefore(0, "' note\r\n"))
	rb, err := s.Rewriter(f.b)
	require.NoError(t, err)
	require.NoError(t, rb.ReplaceToken(0, "Sub B2()"))

	s.Rollback(cp)
	assert.Equal(t, "Sub A2()\r\nEnd Sub\r\n", ra.Text())
	assert.Equal(t, "Sub B()\r\nEnd Sub\r\n", rb.Text())
	assert.Equal(t, 0, f.host.Mutations())

	require.NoError(t, s.Commit(context.Background()))
	assert.Equal(t, 1, f.host.Mutations())
}

type memJournal struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (j *memJournal) Record(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return j.err
}

func TestCommitIsJournaled(t *testing.T) {
	f := newFixture(t)
	j := &memJournal{err: fmt.Errorf("disk full")}
	f.manager.SetJournal(j)

	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)
	r, err := s.Rewriter(f.b)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceToken(0, "Sub B2()"))
	require.NoError(t, s.Commit(context.Background()), "journal failures do not fail the commit")

	require.Len(t, j.entries, 1)
	e := j.entries[0]
	assert.Equal(t, s.ID(), e.SessionID)
	require.Len(t, e.Changes, 1)
	assert.Equal(t, "Sub B()\r\nEnd Sub\r\n", e.Changes[0].Before)
	assert.Equal(t, "Sub B2()\r\nEnd Sub\r\n", e.Changes[0].After)
}

func TestCommitHonorsCancellation(t *testing.T) {
	f := newFixture(t)
	s, err := f.manager.CheckOutCodePane()
	require.NoError(t, err)
	r, err := s.Rewriter(f.a)
	require.NoError(t, err)
	require.NoError(t, r.ReplaceToken(0, "Sub A2()"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Commit(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.host.Mutations())
}
