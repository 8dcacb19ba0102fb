package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/host"
	"ducklint/internal/inspections"
	"ducklint/internal/quickfix"
	"ducklint/internal/slogutil"
)

var (
	fixInspection string
	fixScope      string
	fixResult     int
	fixModule     string
	fixMember     string
)

var fixCmd = &cobra.Command{
	Use:   "fix <quick-fix>",
	Short: "Apply a quick fix to inspection results",
	Long: `Apply a quick fix in one rewrite session. The scope decides which results
are fixed together:

  result     the result numbered --result by "ducklint inspect"
  procedure  results inside --member Module.Member
  module     results inside --module
  project    every result in the project
  all        every result

Results are recomputed before fixing, so numbers refer to an unfiltered
inspect run of the current code.`,
	Args: cobra.ExactArgs(1),
	RunE: runFix,
}

func init() {
	fixCmd.Flags().StringVarP(&fixInspection, "inspection", "i", "",
		"Inspection whose results are fixed (default: the result's, or the fix's only inspection)")
	fixCmd.Flags().StringVarP(&fixScope, "scope", "s", "", "Scope: result, procedure, module, project or all (default: from config)")
	fixCmd.Flags().IntVarP(&fixResult, "result", "r", 0, "Result number from inspect")
	fixCmd.Flags().StringVarP(&fixModule, "module", "m", "", "Module for module scope")
	fixCmd.Flags().StringVar(&fixMember, "member", "", "Module.Member for procedure scope")
	rootCmd.AddCommand(fixCmd)
}

func runFix(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(ctx, slogutil.SubsystemCLI)
	if err != nil {
		return err
	}
	defer ws.Close()

	provider, err := ws.quickFixes()
	if err != nil {
		return err
	}
	fix, ok := provider.Lookup(args[0])
	if !ok {
		return errors.Newf(errors.TargetNotFound, "no quick fix named %s (available: %s)", args[0], strings.Join(fixIDs(provider), ", "))
	}

	scopeName := fixScope
	if scopeName == "" {
		scopeName = ws.config.QuickFix.DefaultScope
		if fixResult > 0 {
			scopeName = string(quickfix.ScopeResult)
		}
	}
	scope, ok := quickfix.ParseScope(strings.ToLower(scopeName))
	if !ok {
		return fmt.Errorf("unknown scope: %s", scopeName)
	}

	report, err := ws.inspect(ctx, inspections.RunOptions{})
	if err != nil {
		return err
	}

	outcome, inspection, err := applyFix(ctx, ws, provider, fix, scope, report.Results)
	if err != nil {
		return err
	}
	resp := &FixResponseCLI{Outcome: outcome}

	if outcome.Committed() {
		if err := ws.state.Reparse(ctx); err != nil {
			return err
		}
		after, err := ws.inspect(ctx, inspections.RunOptions{Inspections: []string{inspection}})
		if err != nil {
			return err
		}
		remaining := after.Summary.Total
		resp.Remaining = &remaining
	}

	if err := printResponse(cmd, ws.config, resp); err != nil {
		return err
	}
	if outcome.Err != nil {
		return outcome.Err
	}
	return nil
}

// applyFix resolves the scope's target and runs the provider call for it.
func applyFix(ctx context.Context, ws *workspace, provider *quickfix.Provider, fix quickfix.QuickFix, scope quickfix.Scope, results []*inspections.Result) (quickfix.Outcome, string, error) {
	if scope == quickfix.ScopeResult {
		if fixResult < 1 || fixResult > len(results) {
			return quickfix.Outcome{}, "", errors.Newf(errors.TargetNotFound, "no result number %d (%d results)", fixResult, len(results))
		}
		result := results[fixResult-1]
		return provider.Fix(ctx, fix, result), result.Inspection(), nil
	}

	inspection, err := resolveInspection(fix, results)
	if err != nil {
		return quickfix.Outcome{}, "", err
	}

	switch scope {
	case quickfix.ScopeProcedure:
		member, err := resolveMember(ctx, ws.host, fixMember)
		if err != nil {
			return quickfix.Outcome{}, "", err
		}
		return provider.FixInProcedure(ctx, fix, member, inspection, results), inspection, nil
	case quickfix.ScopeModule:
		if fixModule == "" {
			return quickfix.Outcome{}, "", fmt.Errorf("module scope needs --module")
		}
		module, err := host.Resolve(ctx, ws.host, fixModule)
		if err != nil {
			return quickfix.Outcome{}, "", err
		}
		return provider.FixInModule(ctx, fix, module, inspection, results), inspection, nil
	case quickfix.ScopeProject:
		return provider.FixInProject(ctx, fix, ws.host.ProjectID(), inspection, results), inspection, nil
	default:
		return provider.FixAll(ctx, fix, inspection, results), inspection, nil
	}
}

// resolveInspection picks the inspection a batch fix targets: --inspection
// (any case) when given, else the fix's only supported inspection.
func resolveInspection(fix quickfix.QuickFix, results []*inspections.Result) (string, error) {
	supported := fix.SupportedInspections()
	if fixInspection == "" {
		if len(supported) == 1 {
			return supported[0], nil
		}
		return "", fmt.Errorf("%s supports several inspections; choose one with --inspection", fix.ID())
	}
	for _, name := range supported {
		if strings.EqualFold(name, fixInspection) {
			return name, nil
		}
	}
	for _, r := range results {
		if strings.EqualFold(r.Inspection(), fixInspection) {
			return "", errors.Newf(errors.IneligibleFix, "%s does not fix %s", fix.ID(), r.Inspection())
		}
	}
	return "", errors.Newf(errors.TargetNotFound, "no inspection named %s", fixInspection)
}

// resolveMember parses Module.Member against the host.
func resolveMember(ctx context.Context, h host.Host, path string) (declarations.QualifiedMemberName, error) {
	module, member, ok := strings.Cut(path, ".")
	if !ok || module == "" || member == "" {
		return declarations.QualifiedMemberName{}, fmt.Errorf("procedure scope needs --member Module.Member")
	}
	qm, err := host.Resolve(ctx, h, module)
	if err != nil {
		return declarations.QualifiedMemberName{}, err
	}
	return declarations.QualifiedMemberName{Module: qm, MemberName: member}, nil
}

func fixIDs(p *quickfix.Provider) []string {
	var ids []string
	for _, id := range []string{quickfix.UseTypedFunctionFix, quickfix.AddMissingAttributeFix, quickfix.IgnoreOnceFix} {
		if _, ok := p.Lookup(id); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
