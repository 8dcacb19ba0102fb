package inspections

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/slogutil"
	"ducklint/internal/testutil"
)

// publicSubs returns n empty public subs named Member1..Membern.
func publicSubs(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "Public Sub Member%d()\r\nEnd Sub\r\n", i)
	}
	return b.String()
}

func interfaceClass(name, body string) testutil.Module {
	return testutil.Module{Name: name, Type: declarations.ClassModule, Code: "'@Interface\r\nOption Explicit\r\n" + body}
}

func runEngine(t *testing.T, wb *testutil.Workbench, inspections ...Inspection) *Report {
	t.Helper()
	if len(inspections) == 0 {
		inspections = Builtin(Settings{})
	}
	engine, err := NewEngine(slogutil.NewDiscardLogger(), 2, inspections...)
	require.NoError(t, err)
	report, err := engine.Run(context.Background(), wb.Graph(), wb.State, RunOptions{})
	require.NoError(t, err)
	return report
}

func TestExcessiveInterfaceMembers_NonInterfaceNeverFlagged(t *testing.T) {
	wb := testutil.NewWorkbench(t, testutil.Module{
		Name: "Plain", Type: declarations.ClassModule, Code: publicSubs(25),
	})
	report := runEngine(t, wb, NewExcessiveInterfaceMembers(0))
	assert.Empty(t, report.Results)
}

func TestExcessiveInterfaceMembers_Threshold(t *testing.T) {
	tests := []struct {
		members int
		flagged bool
	}{
		{0, false},
		{1, false},
		{10, false},
		{11, true},
		{15, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d members", tt.members), func(t *testing.T) {
			wb := testutil.NewWorkbench(t, interfaceClass("IWide", publicSubs(tt.members)))
			report := runEngine(t, wb, NewExcessiveInterfaceMembers(0))

			if !tt.flagged {
				assert.Empty(t, report.Results)
				return
			}
			require.Len(t, report.Results, 1)
			res := report.Results[0]
			assert.Equal(t, ExcessiveInterfaceMembers, res.Inspection())
			count, ok := res.Property(MemberCountProperty)
			require.True(t, ok)
			assert.Equal(t, tt.members, count)
			assert.Contains(t, res.Description(), fmt.Sprint(tt.members))
			assert.Equal(t, "IWide", res.Module().ComponentName)
			assert.True(t, res.QualifiedMember().IsZero())
		})
	}
}

func TestExcessiveInterfaceMembers_PropertyPairCountsOnce(t *testing.T) {
	body := publicSubs(9) +
		"Public Property Get Size() As Long\r\nEnd Property\r\n" +
		"Public Property Let Size(ByVal value As Long)\r\nEnd Property\r\n"
	wb := testutil.NewWorkbench(t, interfaceClass("IPair", body))

	module, ok := wb.Graph().Module(wb.Module(t, "IPair"))
	require.True(t, ok)
	assert.Equal(t, 10, InterfaceMemberCount(module))
	assert.Empty(t, runEngine(t, wb, NewExcessiveInterfaceMembers(0)).Results)
}

func TestExcessiveInterfaceMembers_ExcludesEventsAndPrivates(t *testing.T) {
	body := publicSubs(10) +
		"Public Event Changed(ByVal value As Long)\r\n" +
		"Private Sub Hidden()\r\nEnd Sub\r\n" +
		"Sub ImplicitlyPublic()\r\nEnd Sub\r\n" +
		"Public Property Get ReadOnly() As Long\r\nEnd Property\r\n"
	wb := testutil.NewWorkbench(t, interfaceClass("IMixed", body))

	module, ok := wb.Graph().Module(wb.Module(t, "IMixed"))
	require.True(t, ok)
	assert.Equal(t, 11, InterfaceMemberCount(module), "10 subs and a lone Property Get")

	report := runEngine(t, wb, NewExcessiveInterfaceMembers(0))
	require.Len(t, report.Results, 1)
	count, _ := report.Results[0].Property(MemberCountProperty)
	assert.Equal(t, 11, count)
}

func TestExcessiveInterfaceMembers_ImplementsMarksInterface(t *testing.T) {
	wb := testutil.NewWorkbench(t,
		testutil.Module{Name: "IShape", Type: declarations.ClassModule, Code: publicSubs(12)},
		testutil.Module{Name: "Square", Type: declarations.ClassModule, Code: "Implements IShape\r\n"},
	)
	report := runEngine(t, wb, NewExcessiveInterfaceMembers(0))
	require.Len(t, report.Results, 1)
	assert.Equal(t, "IShape", report.Results[0].Target().Name.MemberName)
}

func TestExcessiveInterfaceMembers_ConfiguredThreshold(t *testing.T) {
	wb := testutil.NewWorkbench(t, interfaceClass("ISmall", publicSubs(4)))
	insp := NewExcessiveInterfaceMembers(3)
	assert.Equal(t, 3, insp.Threshold())
	assert.Len(t, runEngine(t, wb, insp).Results, 1)
	assert.Equal(t, DefaultInterfaceMemberThreshold, NewExcessiveInterfaceMembers(-1).Threshold())
}

func TestIgnoreModuleAnnotation(t *testing.T) {
	wb := testutil.NewWorkbench(t,
		interfaceClass("IQuiet", "'@IgnoreModule ExcessiveInterfaceMembers\r\n"+publicSubs(12)),
		interfaceClass("ILoud", publicSubs(12)),
	)
	report := runEngine(t, wb, NewExcessiveInterfaceMembers(0))
	require.Len(t, report.Results, 1)
	assert.Equal(t, "ILoud", report.Results[0].Module().ComponentName)
	assert.Equal(t, 1, report.Ignored)
}

const textModule = "Option Explicit\r\n" +
	"\r\n" +
	"Public Function Shorten(ByVal s As String, ByVal obj As Object) As String\r\n" +
	"    Dim a As String\r\n" +
	"    a = Left(s, 2)\r\n" +
	"    a = Left$(s, 2) & obj.Left(1)\r\n" +
	"    '@Ignore UntypedFunctionUsage\r\n" +
	"    a = UCase(a)\r\n" +
	"    Shorten = Trim(a)\r\n" +
	"End Function\r\n"

func TestUntypedFunctionUsage(t *testing.T) {
	wb := testutil.NewWorkbench(t, testutil.Module{Name: "Text", Type: declarations.StandardModule, Code: textModule})
	report := runEngine(t, wb, NewUntypedFunctionUsage())

	require.Len(t, report.Results, 2)
	left, trim := report.Results[0], report.Results[1]

	assert.Equal(t, "Left", left.Target().Name.MemberName)
	assert.Equal(t, 5, left.QualifiedSelection().Selection.StartLine)
	assert.Equal(t, 9, left.QualifiedSelection().Selection.StartColumn)
	assert.Equal(t, "Shorten", left.QualifiedMember().MemberName)
	start, end := left.TokenRange()
	assert.Equal(t, start, end)

	assert.Equal(t, "Trim", trim.Target().Name.MemberName)
	assert.Equal(t, 9, trim.QualifiedSelection().Selection.StartLine)
	assert.Equal(t, 1, report.Ignored, "UCase is covered by '@Ignore")
}

func TestUntypedFunctionUsage_UserFunctionShadows(t *testing.T) {
	wb := testutil.NewWorkbench(t, testutil.Module{Name: "Own", Type: declarations.StandardModule, Code: "" +
		"Public Function Left(ByVal s As String, ByVal n As Long) As String\r\n" +
		"End Function\r\n" +
		"Public Sub Use()\r\n" +
		"    Debug.Print Left(\"abc\", 1)\r\n" +
		"End Sub\r\n",
	})
	assert.Empty(t, runEngine(t, wb, NewUntypedFunctionUsage()).Results)
}

func TestMissingAttribute(t *testing.T) {
	wb := testutil.NewWorkbench(t,
		testutil.Module{Name: "Factory", Type: declarations.ClassModule, Code: "" +
			"Attribute VB_Name = \"Factory\"\r\n" +
			"Attribute VB_PredeclaredId = False\r\n" +
			"'@PredeclaredId\r\n" +
			"Option Explicit\r\n"},
		testutil.Module{Name: "Exposed", Type: declarations.ClassModule, Code: "" +
			"Attribute VB_Name = \"Exposed\"\r\n" +
			"Attribute VB_Exposed = True\r\n" +
			"'@Exposed\r\n"},
		testutil.Module{Name: "Sheet1", Type: declarations.Document, Code: "'@PredeclaredId\r\n"},
	)
	report := runEngine(t, wb, NewMissingAttribute())

	require.Len(t, report.Results, 2)
	factory := report.Results[0]
	assert.Equal(t, "Factory", factory.Module().ComponentName)
	attr, _ := factory.Property(AttributeNameProperty)
	assert.Equal(t, "VB_PredeclaredId", attr)
	assert.Equal(t, 1, factory.QualifiedSelection().Selection.StartLine)
	assert.Empty(t, factory.DisabledQuickFixes())

	sheet := report.Results[1]
	assert.Equal(t, "Sheet1", sheet.Module().ComponentName)
	assert.Equal(t, []string{AddMissingAttributeFix}, sheet.DisabledQuickFixes())
}

// flaky panics on one module and flags every other.
type flaky struct{ panicOn string }

func (f flaky) Name() string               { return "Flaky" }
func (f flaky) Severity() Severity         { return SeverityWarning }
func (f flaky) Kinds() []declarations.Kind { return []declarations.Kind{declarations.KindClassModule} }
func (f flaky) Describe(d *declarations.Declaration, _ Properties) string {
	return d.IdentifierName()
}
func (f flaky) Evaluate(d *declarations.Declaration, _ *declarations.Graph) (bool, Properties, error) {
	switch d.IdentifierName() {
	case f.panicOn:
		panic("boom")
	case "Erroring":
		return false, nil, errors.New(errors.InternalError, "cannot evaluate", nil)
	}
	return true, Properties{"n": 1}, nil
}

func TestEngine_IsolatesFailures(t *testing.T) {
	wb := testutil.NewWorkbench(t,
		testutil.Module{Name: "A", Type: declarations.ClassModule},
		testutil.Module{Name: "Broken", Type: declarations.ClassModule},
		testutil.Module{Name: "Erroring", Type: declarations.ClassModule},
		testutil.Module{Name: "C", Type: declarations.ClassModule},
	)
	report := runEngine(t, wb, flaky{panicOn: "Broken"}, NewExcessiveInterfaceMembers(0))

	var names []string
	for _, r := range report.Results {
		names = append(names, r.Module().ComponentName)
	}
	assert.Equal(t, []string{"A", "C"}, names)
	assert.Equal(t, 2, report.Failures)
	assert.Equal(t, 2, report.Summary.ByInspection["Flaky"])
}

func TestEngine_RejectsDuplicateNames(t *testing.T) {
	_, err := NewEngine(slogutil.NewDiscardLogger(), 1, NewUntypedFunctionUsage(), NewUntypedFunctionUsage())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InternalError))
}

func TestEngine_Options(t *testing.T) {
	wb := testutil.NewWorkbench(t,
		interfaceClass("IOne", publicSubs(11)),
		interfaceClass("ITwo", publicSubs(11)),
		testutil.Module{Name: "Text", Type: declarations.StandardModule, Code: textModule},
	)
	engine, err := NewEngine(slogutil.NewDiscardLogger(), 0, Builtin(Settings{})...)
	require.NoError(t, err)

	report, err := engine.Run(context.Background(), wb.Graph(), wb.State, RunOptions{Modules: []string{"itwo"}})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, "ITwo", report.Results[0].Module().ComponentName)

	report, err = engine.Run(context.Background(), wb.Graph(), wb.State, RunOptions{Inspections: []string{UntypedFunctionUsage}})
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)

	report, err = engine.Run(context.Background(), wb.Graph(), wb.State, RunOptions{MinSeverity: SeveritySuggestion})
	require.NoError(t, err)
	assert.Len(t, report.Results, 2, "hints are dropped")
	assert.Equal(t, 2, report.Summary.Modules)
	assert.Equal(t, testutil.ProjectID, report.ProjectID)
}

func TestEngine_Errors(t *testing.T) {
	engine, err := NewEngine(slogutil.NewDiscardLogger(), 1, Builtin(Settings{})...)
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), nil, nil, RunOptions{})
	assert.True(t, errors.HasCode(err, errors.ParserNotReady))

	wb := testutil.NewWorkbench(t, interfaceClass("IOne", publicSubs(11)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = engine.Run(ctx, wb.Graph(), wb.State, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuiltin_Disabled(t *testing.T) {
	all := Builtin(Settings{})
	assert.Len(t, all, 3)
	some := Builtin(Settings{Disabled: []string{MissingAttribute}})
	require.Len(t, some, 2)
	for _, insp := range some {
		assert.NotEqual(t, MissingAttribute, insp.Name())
	}
}

func TestResult_DisabledQuickFixes(t *testing.T) {
	res := NewResult(ResultSpec{Inspection: UntypedFunctionUsage, Properties: Properties{"k": "v"}})
	res.DisableQuickFix("B")
	res.DisableQuickFix("A")
	assert.Equal(t, []string{"A", "B"}, res.DisabledQuickFixes())
	assert.True(t, res.IsQuickFixDisabled("A"))

	res.EnableQuickFix("A")
	assert.Equal(t, []string{"B"}, res.DisabledQuickFixes())

	props := res.Properties()
	props["k"] = "changed"
	v, _ := res.Property("k")
	assert.Equal(t, "v", v, "properties are snapshots")
}
