package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ducklint/internal/config"
	"ducklint/internal/inspections"
	"ducklint/internal/quickfix"
	"ducklint/internal/rewriter"
	"ducklint/internal/version"
)

func TestParseOutputFormat(t *testing.T) {
	for _, s := range []string{"json", "human", "yaml", "JSON"} {
		f, err := ParseOutputFormat(s)
		require.NoError(t, err, s)
		assert.Equal(t, OutputFormat(strings.ToLower(s)), f)
	}
	_, err := ParseOutputFormat("xml")
	assert.ErrorContains(t, err, "unsupported format")
}

func TestFormatResponse_UnsupportedFormat(t *testing.T) {
	_, err := FormatResponse(map[string]string{"key": "value"}, "xml", false)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestFormatResponse_JSON(t *testing.T) {
	resp := map[string]interface{}{
		"key": "value",
		"num": 42,
	}
	result, err := FormatResponse(resp, FormatJSON, false)
	require.NoError(t, err)
	assert.Contains(t, result, `"key": "value"`)
	assert.Contains(t, result, `"num": 42`)
}

func TestFormatResponse_YAML(t *testing.T) {
	resp := &HistoryResponseCLI{}
	result, err := FormatResponse(resp, FormatYAML, false)
	require.NoError(t, err)
	assert.Equal(t, "sessions: []", result)
}

func TestFormatHuman_Inspect(t *testing.T) {
	resp := &InspectResponseCLI{
		ProjectID: "Shapes",
		Summary: inspections.Summary{
			Total:        1,
			Modules:      1,
			ByInspection: map[string]int{inspections.ExcessiveInterfaceMembers: 1},
		},
		Results: []ResultCLI{{
			Index: 1,
			View: inspections.View{
				Inspection:  inspections.ExcessiveInterfaceMembers,
				Severity:    inspections.SeveritySuggestion,
				Description: "Interface 'IShape' has 11 members",
				Module:      "IShape",
				Line:        3,
				Column:      1,
			},
			QuickFixes: []string{quickfix.IgnoreOnceFix},
		}},
	}

	result, err := FormatResponse(resp, FormatHuman, false)
	require.NoError(t, err)
	assert.Contains(t, result, "Inspection results for Shapes")
	assert.Contains(t, result, "1. IShape:3:1 suggestion [ExcessiveInterfaceMembers]")
	assert.Contains(t, result, "fixes: IgnoreOnce")
	assert.Contains(t, result, "Total: 1 result(s) in 1 module(s)")
	assert.NotContains(t, result, "\x1b[", "a disabled palette prints no escape codes")

	empty, err := FormatResponse(&InspectResponseCLI{ProjectID: "Shapes"}, FormatHuman, false)
	require.NoError(t, err)
	assert.Contains(t, empty, "No issues found.")
}

func TestFormatHuman_Colored(t *testing.T) {
	p := newPalette(true)
	assert.Contains(t, p.severity(inspections.SeverityError), "\x1b[")
	assert.Equal(t, "warning", newPalette(false).severity(inspections.SeverityWarning))
}

func TestFormatHuman_Fix(t *testing.T) {
	remaining := 0
	resp := &FixResponseCLI{
		Outcome: quickfix.Outcome{
			Fix:       quickfix.IgnoreOnceFix,
			Scope:     quickfix.ScopeModule,
			SessionID: "abc",
			Status:    rewriter.StatusCommitted,
			Applied:   1,
			Modules:   []string{"IShape"},
		},
		Remaining: &remaining,
	}
	result, err := FormatResponse(resp, FormatHuman, false)
	require.NoError(t, err)
	assert.Contains(t, result, "IgnoreOnce (module): committed")
	assert.Contains(t, result, "applied: 1  skipped: 0  failed: 0")
	assert.Contains(t, result, "remaining results: 0")

	js, err := FormatResponse(resp, FormatJSON, false)
	require.NoError(t, err)
	assert.Contains(t, js, `"fix": "IgnoreOnce"`)
	assert.Contains(t, js, `"remaining": 0`)

	yml, err := FormatResponse(resp, FormatYAML, false)
	require.NoError(t, err)
	assert.Contains(t, yml, "fix: IgnoreOnce")
	assert.Contains(t, yml, "remaining: 0")
}

func TestFormatHuman_ConfigIsTOML(t *testing.T) {
	result, err := FormatResponse(config.DefaultConfig(), FormatHuman, false)
	require.NoError(t, err)
	assert.Contains(t, result, "[inspections]")
	assert.Contains(t, result, "interfaceMemberThreshold = 10")
}

func TestFormatHuman_Version(t *testing.T) {
	d := version.Get()
	result, err := FormatResponse(&d, FormatHuman, false)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result, "ducklint version "+version.Version))
}

func TestFormatHuman_UnknownFallsBackToJSON(t *testing.T) {
	result, err := FormatResponse(struct {
		Name string `json:"name"`
	}{Name: "test"}, FormatHuman, false)
	require.NoError(t, err)
	assert.Contains(t, result, `"name": "test"`)
}
