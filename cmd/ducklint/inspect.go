package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ducklint/internal/declarations"
	"ducklint/internal/inspections"
	"ducklint/internal/project"
	"ducklint/internal/quickfix"
	"ducklint/internal/slogutil"
)

var (
	inspectInspections []string
	inspectModules     []string
	inspectMinSeverity string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run code inspections over the project",
	Long: `Parse the project and run every enabled inspection. Results are numbered;
the numbers select a result for "ducklint fix --result".`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringSliceVarP(&inspectInspections, "inspection", "i", nil, "Only run these inspections")
	inspectCmd.Flags().StringSliceVarP(&inspectModules, "module", "m", nil, "Only report results in these modules")
	inspectCmd.Flags().StringVar(&inspectMinSeverity, "min-severity", "",
		"Drop results below this severity: error, warning, suggestion, hint (default: from config)")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(ctx, slogutil.SubsystemCLI)
	if err != nil {
		return err
	}
	defer ws.Close()

	opts := inspections.RunOptions{
		Inspections: inspectInspections,
		Modules:     inspectModules,
	}
	if inspectMinSeverity != "" {
		severity := inspections.Severity(inspectMinSeverity)
		if severity.Weight() == 0 {
			return fmt.Errorf("unknown severity: %s", inspectMinSeverity)
		}
		opts.MinSeverity = severity
	}

	report, err := ws.inspect(ctx, opts)
	if err != nil {
		return err
	}
	provider, err := ws.quickFixes()
	if err != nil {
		return err
	}
	return printResponse(cmd, ws.config, convertReport(report, provider, ws.locator()))
}

// InspectResponseCLI is the output of the inspect command
type InspectResponseCLI struct {
	ProjectID  string              `json:"projectId" yaml:"projectId"`
	Generation uint64              `json:"generation" yaml:"generation"`
	Summary    inspections.Summary `json:"summary" yaml:"summary"`
	Results    []ResultCLI         `json:"results" yaml:"results"`
	Failures   int                 `json:"failures" yaml:"failures"`
	Ignored    int                 `json:"ignored" yaml:"ignored"`
	Duration   string              `json:"duration" yaml:"duration"`
}

// ResultCLI is one numbered inspection result with its applicable fixes
type ResultCLI struct {
	Index            int `json:"index" yaml:"index"`
	inspections.View `yaml:",inline"`
	QuickFixes       []string `json:"quickFixes,omitempty" yaml:"quickFixes,omitempty"`
	// File is the root-relative module file and FileLine the result's line
	// in it, attribute lines included.
	File             string   `json:"file,omitempty" yaml:"file,omitempty"`
	FileLine         int      `json:"fileLine,omitempty" yaml:"fileLine,omitempty"`
}

// locateFunc maps a result to its module file and file line.
type locateFunc func(module declarations.QualifiedModuleName, paneLine int) (file string, line int, ok bool)

func convertReport(report *inspections.Report, provider *quickfix.Provider, locate locateFunc) *InspectResponseCLI {
	resp := &InspectResponseCLI{
		ProjectID:  report.ProjectID,
		Generation: report.Generation,
		Summary:    report.Summary,
		Results:    make([]ResultCLI, 0, len(report.Results)),
		Failures:   report.Failures,
		Ignored:    report.Ignored,
		Duration:   report.Duration,
	}
	for i, res := range report.Results {
		r := ResultCLI{Index: i + 1, View: res.View()}
		if locate != nil {
			if file, line, ok := locate(res.Module(), r.Line); ok {
				r.File, r.FileLine = file, line
			}
		}
		if provider != nil {
			for _, fix := range provider.QuickFixes(res) {
				r.QuickFixes = append(r.QuickFixes, fix.ID())
			}
		}
		resp.Results = append(resp.Results, r)
	}
	return resp
}

// locator returns a locateFunc over the project's module files. Each file is
// read once.
func (ws *workspace) locator() locateFunc {
	files := make(map[string]*project.ExportFile)
	return func(module declarations.QualifiedModuleName, paneLine int) (string, int, bool) {
		path, ok := ws.host.PathOf(module)
		if !ok {
			return "", 0, false
		}
		ef, ok := files[path]
		if !ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", 0, false
			}
			ef = project.SplitExport(string(data))
			files[path] = ef
		}
		line, ok := ef.FileLine(paneLine)
		if !ok {
			return "", 0, false
		}
		rel, err := filepath.Rel(ws.root, path)
		if err != nil {
			return "", 0, false
		}
		return filepath.ToSlash(rel), line, true
	}
}
