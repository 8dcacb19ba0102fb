package parsing

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ducklint/internal/declarations"
	"ducklint/internal/host"
	"ducklint/internal/slogutil"
	"ducklint/internal/tokens"
)

// moduleParser declares one module per source and treats each text as a
// single token.
type moduleParser struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (p *moduleParser) Parse(ctx context.Context, projectID string, sources []Source, generation uint64) (*Result, error) {
	p.mu.Lock()
	p.calls++
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	b := declarations.NewBuilder()
	res := &Result{}
	for _, src := range sources {
		b.Add(declarations.Spec{
			Name:        declarations.QualifiedMemberName{Module: src.Module, MemberName: src.Module.ComponentName},
			Kind:        declarations.KindProceduralModule,
			UserDefined: true,
			TokenIndex:  -1,
		})
		res.Modules = append(res.Modules, ModuleStreams{
			Module:     src.Module,
			Pane:       single(tokens.CodePane, generation, src.Pane),
			Attributes: single(tokens.Attributes, generation, src.Attributes),
		})
	}
	res.Graph = b.Build(generation)
	return res, nil
}

func single(kind tokens.CodeKind, gen uint64, text string) *tokens.Stream {
	return tokens.NewStream(kind, gen, text, []tokens.Token{{Index: 0, Kind: tokens.Identifier, Text: text, Line: 1, Column: 1}})
}

func newState(t *testing.T) (*State, *host.Memory, *moduleParser, declarations.QualifiedModuleName) {
	t.Helper()
	h := host.NewMemory("Proj", t.TempDir())
	mod := h.AddModule("Module1", declarations.StandardModule, "Sub Main()\r\nEnd Sub\r\n")
	p := &moduleParser{}
	return NewState(h, p, slogutil.NewDiscardLogger()), h, p, mod
}

func TestState_Reparse(t *testing.T) {
	s, _, _, mod := newState(t)
	var seen []Status
	s.OnStatusChange(func(st Status) { seen = append(seen, st) })

	assert.Equal(t, StatusPending, s.Status())
	assert.Nil(t, s.Graph())
	assert.True(t, s.IsNewOrModified(mod))

	require.NoError(t, s.Reparse(context.Background()))
	assert.Equal(t, StatusReady, s.Status())
	assert.Equal(t, uint64(1), s.Generation())
	assert.Equal(t, []Status{StatusParsing, StatusReady}, seen)

	st, err := s.Stream(mod, tokens.CodePane)
	require.NoError(t, err)
	assert.Equal(t, "Sub Main()\r\nEnd Sub\r\n", st.Source())
	assert.Equal(t, uint64(1), st.Generation())

	attrs, err := s.Stream(mod, tokens.Attributes)
	require.NoError(t, err)
	assert.Contains(t, attrs.Source(), "Attribute VB_Name")

	_, ok := s.Graph().Module(mod)
	assert.True(t, ok)
}

func TestState_ListenerAddedDuringNotification(t *testing.T) {
	s, _, _, _ := newState(t)
	var late []Status
	added := false
	s.OnStatusChange(func(st Status) {
		if !added {
			added = true
			s.OnStatusChange(func(st Status) { late = append(late, st) })
		}
	})

	require.NoError(t, s.Reparse(context.Background()))
	// the listener registered while notifying Parsing sees only Ready
	assert.Equal(t, []Status{StatusReady}, late)
}

func TestState_IsNewOrModified(t *testing.T) {
	s, h, _, mod := newState(t)
	require.NoError(t, s.Reparse(context.Background()))
	assert.False(t, s.IsNewOrModified(mod))

	require.NoError(t, h.SetPane(mod, "Sub Main()\r\n    Beep\r\nEnd Sub\r\n"))
	assert.True(t, s.IsNewOrModified(mod), "the host is read on every call")

	require.NoError(t, s.Reparse(context.Background()))
	assert.False(t, s.IsNewOrModified(mod))

	s.MarkModified(mod)
	assert.True(t, s.IsNewOrModified(mod))

	added := h.AddModule("Module2", declarations.StandardModule, "")
	assert.True(t, s.IsNewOrModified(added))
}

func TestState_ParseError(t *testing.T) {
	s, _, p, mod := newState(t)
	require.NoError(t, s.Reparse(context.Background()))

	p.err = stderrors.New("syntax error")
	err := s.Reparse(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusError, s.Status())
	assert.ErrorIs(t, s.Err(), p.err)

	// the last good parse stays available
	assert.Equal(t, uint64(1), s.Generation())
	_, err = s.Stream(mod, tokens.CodePane)
	assert.NoError(t, err)
}

func TestState_RequestReparse(t *testing.T) {
	s, _, p, _ := newState(t)
	s.RequestReparse(context.Background())
	s.Wait()

	assert.Equal(t, StatusReady, s.Status())
	assert.GreaterOrEqual(t, p.calls, 1)
}

func TestState_FindSelectedDeclaration(t *testing.T) {
	s, _, _, mod := newState(t)
	qs := declarations.QualifiedSelection{Module: mod, Selection: declarations.Selection{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1}}
	assert.Nil(t, s.FindSelectedDeclaration(qs))

	require.NoError(t, s.Reparse(context.Background()))
	assert.Nil(t, s.FindSelectedDeclaration(qs), "module declarations have no identifier token")
}
