package vba

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ducklint/internal/declarations"
	"ducklint/internal/parsing"
	"ducklint/internal/project"
	"ducklint/internal/slogutil"
	"ducklint/internal/tokens"
)

const ishapeFile = "VERSION 1.0 CLASS\r\n" +
	"BEGIN\r\n" +
	"  MultiUse = -1  'True\r\n" +
	"END\r\n" +
	"Attribute VB_Name = \"IShape\"\r\n" +
	"Attribute VB_PredeclaredId = False\r\n" +
	"Attribute VB_Exposed = False\r\n" +
	"'@Interface\r\n" +
	"'@Exposed\r\n" +
	"Option Explicit\r\n" +
	"\r\n" +
	"Public Property Get Area() As Double\r\n" +
	"Attribute Area.VB_Description = \"Surface\"\r\n" +
	"End Property\r\n" +
	"\r\n" +
	"Public Sub Scale(ByVal factor As Double, _\r\n" +
	"                 Optional ByVal origin As Long = 0)\r\n" +
	"End Sub\r\n"

const module1File = "Attribute VB_Name = \"Module1\"\r\n" +
	"Option Explicit\r\n" +
	"Private Const MAX_ITEMS As Long = 10\r\n" +
	"Public Counter As Long\r\n" +
	"\r\n" +
	"Public Function Describe(ByVal shape As IShape) As String\r\n" +
	"    Dim text As String\r\n" +
	"    text = Left(shape.Name, MAX_ITEMS) ' trailing\r\n" +
	"    Counter = Counter + 1\r\n" +
	"    '@Ignore UntypedFunctionUsage\r\n" +
	"    Describe = Format(text)\r\n" +
	"End Function\r\n"

const rectFile = "Attribute VB_Name = \"Rect\"\r\n" +
	"Implements IShape\r\n" +
	"Private Property Get IShape_Area() As Double\r\n" +
	"    IShape_Area = Module1.Counter\r\n" +
	"End Property\r\n"

func source(name string, ct declarations.ComponentType, exported string) parsing.Source {
	return parsing.Source{
		Module:     declarations.QualifiedModuleName{ProjectID: "Shapes", ComponentName: name, ComponentType: ct},
		Pane:       project.PaneCode(exported),
		Attributes: exported,
	}
}

func parse(t *testing.T) (*parsing.Result, map[string]declarations.QualifiedModuleName) {
	t.Helper()
	sources := []parsing.Source{
		source("IShape", declarations.ClassModule, ishapeFile),
		source("Module1", declarations.StandardModule, module1File),
		source("Rect", declarations.ClassModule, rectFile),
	}
	p := NewParser(slogutil.NewDiscardLogger(), 2)
	res, err := p.Parse(context.Background(), "Shapes", sources, 7)
	require.NoError(t, err)

	names := make(map[string]declarations.QualifiedModuleName)
	for _, s := range sources {
		names[s.Module.ComponentName] = s.Module
	}
	return res, names
}

func one(t *testing.T, g *declarations.Graph, m declarations.QualifiedModuleName, name string) *declarations.Declaration {
	t.Helper()
	for _, d := range g.InModule(m) {
		if strings.EqualFold(d.IdentifierName(), name) {
			return d
		}
	}
	t.Fatalf("declaration %s not found in %s", name, m)
	return nil
}

func TestLex_RoundTrip(t *testing.T) {
	src := "x$ = Left$(\"a\"\"b\", &H1F&) _\r\n  + 1.5e3 ' note\nRem old\n[odd name] = 2"
	s := Lex(tokens.CodePane, 3, src)

	var b strings.Builder
	for _, tok := range s.Tokens() {
		b.WriteString(tok.Text)
	}
	assert.Equal(t, src, b.String())
	assert.Equal(t, uint64(3), s.Generation())

	kinds := make(map[string]tokens.Kind)
	for _, tok := range s.Tokens() {
		kinds[tok.Text] = tok.Kind
	}
	assert.Equal(t, tokens.Identifier, kinds["x$"])
	assert.Equal(t, tokens.Identifier, kinds["Left$"])
	assert.Equal(t, tokens.String, kinds[`"a""b"`])
	assert.Equal(t, tokens.Number, kinds["&H1F&"])
	assert.Equal(t, tokens.LineContinuation, kinds["_"])
	assert.Equal(t, tokens.Number, kinds["1.5e3"])
	assert.Equal(t, tokens.Comment, kinds["' note"])
	assert.Equal(t, tokens.Comment, kinds["Rem old"])
	assert.Equal(t, tokens.Identifier, kinds["[odd name]"])
}

func TestLex_Keywords(t *testing.T) {
	s := Lex(tokens.CodePane, 1, "Public Sub Foo()")
	toks := s.Tokens()
	require.Len(t, toks, 7)
	assert.Equal(t, tokens.Keyword, toks[0].Kind)
	assert.Equal(t, tokens.Keyword, toks[2].Kind)
	assert.Equal(t, tokens.Identifier, toks[4].Kind)
	assert.Equal(t, 12, toks[4].Column)
	assert.True(t, IsKeyword("END"))
	assert.False(t, IsKeyword("Left"))
}

func TestParseAnnotation(t *testing.T) {
	tests := []struct {
		text string
		name string
		args []string
		ok   bool
	}{
		{"'@Interface", "Interface", nil, true},
		{"'@Ignore UntypedFunctionUsage, ExcessiveInterfaceMembers", "Ignore", []string{"UntypedFunctionUsage", "ExcessiveInterfaceMembers"}, true},
		{"'@Folder(\"Shapes.Core\")", "Folder", []string{"Shapes.Core"}, true},
		{"' plain comment", "", nil, false},
		{"'@ ", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			a, ok := ParseAnnotation(tokens.Token{Text: tt.text, Line: 4, Index: 9})
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.name, a.Name)
			assert.Equal(t, tt.args, a.Args)
			assert.Equal(t, 4, a.Line)
		})
	}
}

func TestParse_Modules(t *testing.T) {
	res, m := parse(t)
	g := res.Graph
	assert.Equal(t, uint64(7), g.Generation())

	require.Len(t, g.Projects(), 1)
	assert.Equal(t, "Shapes", g.Projects()[0].IdentifierName())

	ishape, ok := g.Module(m["IShape"])
	require.True(t, ok)
	assert.Equal(t, declarations.KindClassModule, ishape.Kind())
	assert.True(t, ishape.IsInterface())
	assert.True(t, ishape.HasAnnotation(AnnotationExposed))

	attr, ok := ishape.Attribute("VB_Exposed")
	require.True(t, ok)
	assert.Equal(t, []string{"False"}, attr.Values)

	mod1, ok := g.Module(m["Module1"])
	require.True(t, ok)
	assert.Equal(t, declarations.KindProceduralModule, mod1.Kind())
	assert.False(t, mod1.IsInterface())

	require.Len(t, res.Modules, 3)
	for _, ms := range res.Modules {
		assert.Equal(t, tokens.CodePane, ms.Pane.Kind())
		assert.Equal(t, tokens.Attributes, ms.Attributes.Kind())
		assert.NotContains(t, ms.Pane.Source(), "Attribute VB_Name")
		assert.Contains(t, ms.Attributes.Source(), "Attribute VB_Name")
	}
}

func TestParse_Members(t *testing.T) {
	res, m := parse(t)
	g := res.Graph

	ishape, _ := g.Module(m["IShape"])
	var names []string
	for _, d := range ishape.Members() {
		names = append(names, d.IdentifierName())
	}
	assert.Equal(t, []string{"Area", "Scale"}, names)

	area := one(t, g, m["IShape"], "Area")
	assert.Equal(t, declarations.KindPropertyGet, area.Kind())
	assert.Equal(t, declarations.AccessibilityPublic, area.Accessibility())
	assert.Equal(t, "Double", area.AsType())
	_, ok := area.Attribute("VB_Description")
	assert.True(t, ok)

	origin := one(t, g, m["IShape"], "origin")
	assert.Equal(t, declarations.KindParameter, origin.Kind())
	assert.Equal(t, "Scale", origin.Parent().IdentifierName())
	assert.Equal(t, "Long", origin.AsType())

	describe := one(t, g, m["Module1"], "Describe")
	assert.Equal(t, declarations.KindFunction, describe.Kind())
	assert.Equal(t, "String", describe.AsType())
	assert.Equal(t, 5, describe.Body().StartLine)
	assert.Equal(t, 11, describe.Body().EndLine)

	maxItems := one(t, g, m["Module1"], "MAX_ITEMS")
	assert.Equal(t, declarations.KindConstant, maxItems.Kind())
	assert.Equal(t, declarations.AccessibilityPrivate, maxItems.Accessibility())

	text := one(t, g, m["Module1"], "text")
	assert.Equal(t, declarations.KindVariable, text.Kind())
	assert.False(t, text.IsModuleLevel())
	assert.Same(t, describe, text.Parent())
}

func TestParse_References(t *testing.T) {
	res, m := parse(t)
	g := res.Graph

	counter := one(t, g, m["Module1"], "Counter")
	refs := counter.References()
	require.Len(t, refs, 3)
	assert.Equal(t, 8, refs[0].Selection.StartLine)
	assert.Equal(t, "Rect", refs[2].Module.ComponentName, "qualified Module1.Counter resolves across modules")

	assert.Len(t, one(t, g, m["Module1"], "MAX_ITEMS").References(), 1)
	assert.Len(t, one(t, g, m["Module1"], "text").References(), 2)
	assert.Len(t, one(t, g, m["Module1"], "Describe").References(), 1)

	ishape, _ := g.Module(m["IShape"])
	assert.Len(t, ishape.References(), 2, "As IShape and Implements IShape")

	mod1, _ := g.Module(m["Module1"])
	assert.Len(t, mod1.References(), 1, "the Module1 qualifier in Rect")

	sel := refs[0].QualifiedSelection()
	assert.Same(t, counter, g.FindSelected(sel))
	assert.Equal(t, "Describe", g.ContainingMember(sel).IdentifierName())
}

func TestParse_Annotations(t *testing.T) {
	res, m := parse(t)
	mod1, _ := res.Graph.Module(m["Module1"])

	ignore, ok := mod1.Annotation(AnnotationIgnore)
	require.True(t, ok)
	assert.Equal(t, 9, ignore.Line)
	assert.Equal(t, 10, ignore.AppliesToLine)
	assert.True(t, ignore.Covers("UntypedFunctionUsage"))
	assert.False(t, ignore.Covers("ExcessiveInterfaceMembers"))
}

func TestParse_ImplementsMarksInterface(t *testing.T) {
	sources := []parsing.Source{
		source("IThing", declarations.ClassModule, "Attribute VB_Name = \"IThing\"\r\nPublic Sub Go()\r\nEnd Sub\r\n"),
		source("Thing", declarations.ClassModule, "Attribute VB_Name = \"Thing\"\r\nImplements IThing\r\n"),
	}
	res, err := NewParser(slogutil.NewDiscardLogger(), 0).Parse(context.Background(), "P", sources, 1)
	require.NoError(t, err)

	ithing, ok := res.Graph.Module(sources[0].Module)
	require.True(t, ok)
	assert.True(t, ithing.IsInterface())
	thing, _ := res.Graph.Module(sources[1].Module)
	assert.False(t, thing.IsInterface())
}

func TestParse_ReservedWordNamesAreReported(t *testing.T) {
	file := "Attribute VB_Name = \"Tools\"\r\n" +
		"Public Sub Erase()\r\n" +
		"End Sub\r\n" +
		"Public Sub Tidy()\r\n" +
		"End Sub\r\n"
	var buf bytes.Buffer
	p := NewParser(slogutil.NewFormatLogger(&buf, "json", slog.LevelWarn), 1)
	src := source("Tools", declarations.StandardModule, file)
	res, err := p.Parse(context.Background(), "Shapes", []parsing.Source{src}, 1)
	require.NoError(t, err)

	tools, ok := res.Graph.Module(src.Module)
	require.True(t, ok)
	require.Len(t, tools.Members(), 1)
	assert.Equal(t, "Tidy", tools.Members()[0].IdentifierName())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "Erase", entry["name"])
	assert.Equal(t, "Tools", entry["module"])
	assert.EqualValues(t, 1, entry["line"])
}

func TestParse_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewParser(slogutil.NewDiscardLogger(), 1).Parse(ctx, "P", []parsing.Source{
		source("Module1", declarations.StandardModule, module1File),
	}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
