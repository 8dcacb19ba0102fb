package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ducklint/internal/config"
	"ducklint/internal/inspections"
	"ducklint/internal/quickfix"
	"ducklint/internal/refactor/rename"
	"ducklint/internal/storage"
	"ducklint/internal/version"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
	FormatYAML  OutputFormat = "yaml"
	FormatSARIF OutputFormat = "sarif"
)

// ParseOutputFormat validates a --format value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatJSON, FormatHuman, FormatYAML, FormatSARIF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// palette colors human output. A disabled palette prints plain text.
type palette struct {
	header  *color.Color
	dim     *color.Color
	ok      *color.Color
	errored *color.Color
	warning *color.Color
	hint    *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		header:  color.New(color.Bold),
		dim:     color.New(color.Faint),
		ok:      color.New(color.FgGreen),
		errored: color.New(color.FgRed, color.Bold),
		warning: color.New(color.FgYellow),
		hint:    color.New(color.FgCyan),
	}
	for _, c := range []*color.Color{p.header, p.dim, p.ok, p.errored, p.warning, p.hint} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) severity(s inspections.Severity) string {
	switch s {
	case inspections.SeverityError:
		return p.errored.Sprint(s)
	case inspections.SeverityWarning:
		return p.warning.Sprint(s)
	case inspections.SeveritySuggestion:
		return p.hint.Sprint(s)
	default:
		return p.dim.Sprint(s)
	}
}

// useColor reports whether human output is colored: output.color must be on
// and stdout must be a terminal without NO_COLOR.
func useColor(_ *cobra.Command, cfg *config.Config) bool {
	if cfg != nil && !cfg.Output.Color {
		return false
	}
	return !color.NoColor
}

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat, colored bool) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatYAML:
		return formatYAML(resp)
	case FormatSARIF:
		return formatSARIF(resp)
	case FormatHuman:
		return formatHuman(resp, newPalette(colored))
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

func formatYAML(resp interface{}) (string, error) {
	data, err := yaml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}, p palette) (string, error) {
	switch v := resp.(type) {
	case *InspectResponseCLI:
		return formatInspectHuman(v, p), nil
	case *FixResponseCLI:
		return formatFixHuman(v, p), nil
	case *rename.Result:
		return formatRenameHuman(v, p), nil
	case *HistoryResponseCLI:
		return formatHistoryHuman(v, p), nil
	case *storage.UndoResult:
		return formatUndoHuman(v, p), nil
	case *config.Config:
		return formatConfigHuman(v)
	case *EnvResponseCLI:
		return formatEnvHuman(v, p), nil
	case *version.Details:
		return formatVersionHuman(v), nil
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatInspectHuman(resp *InspectResponseCLI, p palette) string {
	var b strings.Builder

	b.WriteString(p.header.Sprintf("Inspection results for %s", resp.ProjectID))
	b.WriteString(p.dim.Sprintf(" (generation %d)\n", resp.Generation))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if len(resp.Results) == 0 {
		b.WriteString(p.ok.Sprint("No issues found.") + "\n")
	}
	for _, r := range resp.Results {
		location := fmt.Sprintf("%s:%d:%d", r.Module, r.Line, r.Column)
		b.WriteString(fmt.Sprintf("%3d. %s %s [%s]\n", r.Index, location, p.severity(r.Severity), r.Inspection))
		b.WriteString(fmt.Sprintf("     %s\n", r.Description))
		if len(r.QuickFixes) > 0 {
			b.WriteString(p.dim.Sprintf("     fixes: %s\n", strings.Join(r.QuickFixes, ", ")))
		}
	}

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Total: %d result(s) in %d module(s)", resp.Summary.Total, resp.Summary.Modules))
	if resp.Ignored > 0 {
		b.WriteString(fmt.Sprintf(", %d ignored", resp.Ignored))
	}
	if resp.Failures > 0 {
		b.WriteString(p.warning.Sprintf(", %d evaluation(s) failed", resp.Failures))
	}
	b.WriteString("\n")
	if len(resp.Summary.ByInspection) > 0 {
		names := make([]string, 0, len(resp.Summary.ByInspection))
		for name := range resp.Summary.ByInspection {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			b.WriteString(fmt.Sprintf("  %-32s %d\n", name, resp.Summary.ByInspection[name]))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatFixHuman(resp *FixResponseCLI, p palette) string {
	var b strings.Builder
	o := resp.Outcome
	status := string(o.Status)
	switch {
	case o.Committed():
		status = p.ok.Sprint(status)
	case o.Status == "":
		status = p.dim.Sprint("nothing to commit")
	default:
		status = p.errored.Sprint(status)
	}
	b.WriteString(fmt.Sprintf("%s (%s): %s\n", p.header.Sprint(o.Fix), o.Scope, status))
	b.WriteString(fmt.Sprintf("  applied: %d  skipped: %d  failed: %d\n", o.Applied, o.Skipped, o.Failed))
	if len(o.Modules) > 0 {
		b.WriteString(fmt.Sprintf("  modules: %s\n", strings.Join(o.Modules, ", ")))
	}
	if o.SessionID != "" {
		b.WriteString(p.dim.Sprintf("  session: %s\n", o.SessionID))
	}
	if o.Error != "" {
		b.WriteString(p.errored.Sprintf("  error: %s\n", o.Error))
	}
	if resp.Remaining != nil {
		b.WriteString(fmt.Sprintf("  remaining results: %d\n", *resp.Remaining))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRenameHuman(res *rename.Result, p palette) string {
	if res.Cancelled {
		return p.dim.Sprintf("Rename of %s cancelled", res.Target)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Renamed %s -> %s\n", p.header.Sprint(res.Target), p.ok.Sprint(res.NewName)))
	b.WriteString(fmt.Sprintf("  sites: %d\n", res.Sites))
	if len(res.Modules) > 0 {
		b.WriteString(fmt.Sprintf("  modules: %s\n", strings.Join(res.Modules, ", ")))
	}
	for _, id := range res.Sessions {
		b.WriteString(p.dim.Sprintf("  session: %s\n", id))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatHistoryHuman(resp *HistoryResponseCLI, p palette) string {
	if len(resp.Sessions) == 0 {
		return "No journaled sessions."
	}
	var b strings.Builder
	b.WriteString(p.header.Sprint("Rewrite sessions (newest first)") + "\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, s := range resp.Sessions {
		line := fmt.Sprintf("%s  %-10s %-10s %d module(s)  %s",
			s.SessionID, s.Kind, s.Status, s.Modules, s.CommittedAt.Local().Format(time.DateTime))
		if s.UndoneBy != "" {
			b.WriteString(p.dim.Sprintf("%s  undone by %s", line, s.UndoneBy) + "\n")
			continue
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatUndoHuman(res *storage.UndoResult, p palette) string {
	return fmt.Sprintf("Undid session %s in %s\n  %s",
		p.header.Sprint(res.SessionID),
		strings.Join(res.Modules, ", "),
		p.dim.Sprintf("session: %s", res.UndoneBy))
}

func formatConfigHuman(cfg *config.Config) (string, error) {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal TOML: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func formatEnvHuman(resp *EnvResponseCLI, p palette) string {
	var b strings.Builder
	for _, v := range resp.Variables {
		value := p.dim.Sprint("(unset)")
		if v.Set {
			value = v.Value
		}
		b.WriteString(fmt.Sprintf("%-38s %-40s %s\n", v.Name, v.Key, value))
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatVersionHuman(d *version.Details) string {
	return fmt.Sprintf("ducklint version %s\n  commit: %s\n  built:  %s\n  go:     %s (%s)",
		d.Version, d.Commit, d.BuildDate, d.GoVersion, d.Platform)
}

// FixResponseCLI is the outcome of a fix command
type FixResponseCLI struct {
	quickfix.Outcome `yaml:",inline"`
	// Remaining counts results of the inspection after the fix re-parse.
	Remaining *int `json:"remaining,omitempty" yaml:"remaining,omitempty"`
}
