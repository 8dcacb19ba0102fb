package rename

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/parsing"
	"ducklint/internal/slogutil"
	"ducklint/internal/testutil"
	"ducklint/internal/vba"
)

const workerModule = "Option Explicit\r\n" +
	"\r\n" +
	"Public Counter As Long\r\n" +
	"\r\n" +
	"Public Sub DoWork(ByVal times As Long)\r\n" +
	"    Dim i As Long\r\n" +
	"    For i = 1 To times\r\n" +
	"        Counter = Counter + 1\r\n" +
	"    Next\r\n" +
	"End Sub\r\n"

const callerModule = "Option Explicit\r\n" +
	"\r\n" +
	"Public Sub Main()\r\n" +
	"    Dim i As Long\r\n" +
	"    DoWork 3\r\n" +
	"    Worker.DoWork i\r\n" +
	"    Debug.Print Worker.Counter\r\n" +
	"End Sub\r\n"

const shapeClass = "Attribute VB_Name = \"Shape\"\r\n" +
	"Option Explicit\r\n" +
	"\r\n" +
	"Private mArea As Double\r\n" +
	"\r\n" +
	"Public Property Get Area() As Double\r\n" +
	"Attribute Area.VB_Description = \"Area of the shape\"\r\n" +
	"    Area = mArea\r\n" +
	"End Property\r\n" +
	"\r\n" +
	"Public Property Let Area(ByVal value As Double)\r\n" +
	"    mArea = value\r\n" +
	"End Property\r\n"

const drawingModule = "Option Explicit\r\n" +
	"\r\n" +
	"Public Function Make() As Shape\r\n" +
	"    Dim s As Shape\r\n" +
	"    Set s = New Shape\r\n" +
	"    Set Make = s\r\n" +
	"End Function\r\n"

func workbench(t *testing.T) *testutil.Workbench {
	t.Helper()
	return testutil.NewWorkbench(t,
		testutil.Module{Name: "Worker", Type: declarations.StandardModule, Code: workerModule},
		testutil.Module{Name: "Caller", Type: declarations.StandardModule, Code: callerModule},
		testutil.Module{Name: "Shape", Type: declarations.ClassModule, Code: shapeClass},
		testutil.Module{Name: "Drawing", Type: declarations.StandardModule, Code: drawingModule},
	)
}

func refactoring(wb *testutil.Workbench, name string) *Refactoring {
	return New(wb.State, wb.Manager, FixedName(name), slogutil.NewDiscardLogger())
}

func target(t *testing.T, wb *testutil.Workbench, path string) *declarations.Declaration {
	t.Helper()
	d, err := FindTarget(wb.Graph(), path)
	require.NoError(t, err)
	return d
}

func TestRename_ProcedureAcrossModules(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "Process")

	res, err := r.Refactor(context.Background(), target(t, wb, "Worker.DoWork"))
	require.NoError(t, err)
	assert.Equal(t, "DoWork", res.OldName)
	assert.Equal(t, "Process", res.NewName)
	assert.Equal(t, 3, res.Sites)
	assert.ElementsMatch(t, []string{"Caller", "Worker"}, res.Modules)
	assert.Len(t, res.Sessions, 1)

	assert.Contains(t, wb.Pane(t, "Worker"), "Public Sub Process(ByVal times As Long)")
	caller := wb.Pane(t, "Caller")
	assert.Contains(t, caller, "    Process 3\r\n")
	assert.Contains(t, caller, "    Worker.Process i\r\n")
	assert.Equal(t, drawingModule, wb.Pane(t, "Drawing"))

	assert.Empty(t, wb.Graph().ByName("DoWork"))
	require.Len(t, wb.Graph().ByName("Process"), 1)
	assert.Len(t, wb.Graph().ByName("Process")[0].References(), 2)
}

func TestRename_VariableKeepsOtherIdentifiers(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "Total")

	_, err := r.Refactor(context.Background(), target(t, wb, "Worker.Counter"))
	require.NoError(t, err)

	assert.Contains(t, wb.Pane(t, "Worker"), "        Total = Total + 1\r\n")
	assert.Contains(t, wb.Pane(t, "Caller"), "Debug.Print Worker.Total\r\n")
	assert.Contains(t, wb.Pane(t, "Caller"), "    DoWork 3\r\n")
}

func TestRename_LocalStaysInProcedure(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "n")

	res, err := r.Refactor(context.Background(), target(t, wb, "Worker.DoWork.i"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Worker"}, res.Modules)

	assert.Contains(t, wb.Pane(t, "Worker"), "    For n = 1 To times\r\n")
	assert.Equal(t, callerModule, wb.Pane(t, "Caller"))
}

func TestRename_PropertyAccessorsTogetherKeepAttributes(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "Size")

	res, err := r.Refactor(context.Background(), target(t, wb, "Shape.Area"))
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 2)

	pane := wb.Pane(t, "Shape")
	assert.Contains(t, pane, "Public Property Get Size() As Double\r\n    Size = mArea\r\n")
	assert.Contains(t, pane, "Public Property Let Size(ByVal value As Double)\r\n")
	assert.NotContains(t, pane, "Area(")

	assert.Contains(t, wb.Exported(t, "Shape"),
		"Public Property Get Size() As Double\r\nAttribute Size.VB_Description = \"Area of the shape\"\r\n    Size = mArea\r\n")

	members := wb.Graph().Member(wb.Module(t, "Shape"), "Size")
	require.Len(t, members, 2)
	attr, ok := members[0].Attribute("VB_Description")
	require.True(t, ok)
	assert.Equal(t, []string{"\"Area of the shape\""}, attr.Values)
}

func TestRename_Module(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "Polygon")

	res, err := r.Refactor(context.Background(), target(t, wb, "Shape"))
	require.NoError(t, err)
	assert.Len(t, res.Sessions, 2)

	drawing := wb.Pane(t, "Drawing")
	assert.Contains(t, drawing, "Public Function Make() As Polygon\r\n")
	assert.Contains(t, drawing, "    Set s = New Polygon\r\n")

	modules, err := wb.Host.Components(context.Background())
	require.NoError(t, err)
	var names []string
	for _, m := range modules {
		names = append(names, m.ComponentName)
	}
	assert.Contains(t, names, "Polygon")
	assert.NotContains(t, names, "Shape")

	polygon := findModule(wb.Graph(), "Polygon")
	require.NotNil(t, polygon)
	assert.Len(t, polygon.References(), 3)
	assert.Nil(t, findModule(wb.Graph(), "Shape"))
}

func TestRename_InterfaceMemberRenamesImplementations(t *testing.T) {
	wb := testutil.NewWorkbench(t,
		testutil.Module{Name: "IShape", Type: declarations.ClassModule, Code: "'@Interface\r\nOption Explicit\r\n" +
			"Public Function Area() As Double\r\nEnd Function\r\n"},
		testutil.Module{Name: "Square", Type: declarations.ClassModule, Code: "Option Explicit\r\n" +
			"Implements IShape\r\n" +
			"Private Function IShape_Area() As Double\r\n" +
			"    IShape_Area = 4\r\n" +
			"End Function\r\n"},
	)
	r := refactoring(wb, "Surface")

	_, err := r.Refactor(context.Background(), target(t, wb, "IShape.Area"))
	require.NoError(t, err)

	assert.Contains(t, wb.Pane(t, "IShape"), "Public Function Surface() As Double\r\n")
	square := wb.Pane(t, "Square")
	assert.Contains(t, square, "Private Function IShape_Surface() As Double\r\n")
	assert.Contains(t, square, "    IShape_Surface = 4\r\n")
}

func TestRename_Cancelled(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "")

	res, err := r.Refactor(context.Background(), target(t, wb, "Worker.DoWork"))
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Zero(t, wb.Host.Mutations())
}

func TestValidate(t *testing.T) {
	wb := workbench(t)
	g := wb.Graph()
	doWork := target(t, wb, "Worker.DoWork")

	tests := []struct {
		name    string
		target  *declarations.Declaration
		newName string
		valid   bool
	}{
		{"valid", doWork, "Process", true},
		{"case only", doWork, "dowork", true},
		{"unchanged", doWork, "DoWork", false},
		{"empty", doWork, "", false},
		{"leading digit", doWork, "1Work", false},
		{"space", doWork, "Do Work", false},
		{"keyword", doWork, "Function", false},
		{"member clash", doWork, "counter", false},
		{"module name", doWork, "Worker", false},
		{"module clash", target(t, wb, "Shape"), "drawing", false},
		{"local clash", target(t, wb, "Worker.DoWork.i"), "times", false},
		{"local named like procedure", target(t, wb, "Worker.DoWork.i"), "DoWork", false},
		{"local shadowing module member", target(t, wb, "Worker.DoWork.i"), "Counter", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(g, tt.target, tt.newName)
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.InvalidName), err.Error())
		})
	}
}

func TestRename_InvalidNameLeavesHostUntouched(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "Sub")

	_, err := r.Refactor(context.Background(), target(t, wb, "Worker.DoWork"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InvalidName))
	assert.Zero(t, wb.Host.Mutations())
}

func TestRename_DocumentModuleRefused(t *testing.T) {
	wb := testutil.NewWorkbench(t, testutil.Module{Name: "Sheet1", Type: declarations.Document, Code: "Option Explicit\r\n"})
	err := Validate(wb.Graph(), target(t, wb, "Sheet1"), "Summary")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InvalidName))
}

func TestCanExecute(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "Process")
	doWork := target(t, wb, "Worker.DoWork")

	assert.True(t, r.CanExecute(doWork))
	assert.False(t, r.CanExecute(nil))

	require.NoError(t, wb.Host.SetPane(wb.Module(t, "Worker"), workerModule+"' edited\r\n"))
	assert.False(t, r.CanExecute(doWork))
	_, err := r.Refactor(context.Background(), doWork)
	assert.True(t, errors.HasCode(err, errors.StaleTokenStream))

	wb.Reparse(t)
	assert.True(t, r.CanExecute(target(t, wb, "Worker.DoWork")))
}

func TestCanExecute_ParserNotReady(t *testing.T) {
	wb := workbench(t)
	logger := slogutil.NewDiscardLogger()
	fresh := parsing.NewState(wb.Host, vba.NewParser(logger, 1), logger)
	r := New(fresh, wb.Manager, FixedName("Process"), logger)

	doWork := target(t, wb, "Worker.DoWork")
	assert.False(t, r.CanExecute(doWork))
	_, err := r.Refactor(context.Background(), doWork)
	assert.True(t, errors.HasCode(err, errors.ParserNotReady))
}

func TestRename_SessionOpenFails(t *testing.T) {
	wb := workbench(t)
	held, err := wb.Manager.CheckOutCodePane()
	require.NoError(t, err)
	defer held.Abandon()

	_, err = refactoring(wb, "Process").Refactor(context.Background(), target(t, wb, "Worker.DoWork"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.StaleSession))
	assert.Zero(t, wb.Host.Mutations())
}

func TestTargetAt(t *testing.T) {
	wb := workbench(t)
	r := refactoring(wb, "Process")

	// the DoWork call in Caller, line 5
	qs := declarations.QualifiedSelection{
		Module:    wb.Module(t, "Caller"),
		Selection: declarations.Selection{StartLine: 5, StartColumn: 6, EndLine: 5, EndColumn: 6},
	}
	d, err := r.TargetAt(qs)
	require.NoError(t, err)
	assert.Equal(t, "DoWork", d.IdentifierName())
	assert.Equal(t, "Worker", d.Module().ComponentName)
}

func TestFindTarget(t *testing.T) {
	wb := workbench(t)
	g := wb.Graph()

	d, err := FindTarget(g, "doWork")
	require.NoError(t, err)
	assert.Equal(t, "Worker", d.Module().ComponentName)

	d, err = FindTarget(g, "Area")
	require.NoError(t, err)
	assert.True(t, d.Kind().IsProperty())

	_, err = FindTarget(g, "i")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.TargetNotFound))
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = FindTarget(g, "Worker.DoWrok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DoWork")

	_, err = FindTarget(nil, "Worker")
	assert.True(t, errors.HasCode(err, errors.ParserNotReady))
}

func TestSuggest(t *testing.T) {
	wb := workbench(t)
	assert.Equal(t, "Counter", Suggest(wb.Graph(), "Countr")[0])
	assert.Empty(t, Suggest(wb.Graph(), "zzzzzz"))
}
