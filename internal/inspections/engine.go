package inspections

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"ducklint/internal/declarations"
	"ducklint/internal/errors"
	"ducklint/internal/tokens"
)

// Engine evaluates a fixed set of inspections against parsed projects.
type Engine struct {
	logger      *slog.Logger
	inspections []Inspection
	jobs        int
}

// NewEngine registers inspections. Names must be unique.
func NewEngine(logger *slog.Logger, jobs int, inspections ...Inspection) (*Engine, error) {
	seen := make(map[string]bool, len(inspections))
	for _, insp := range inspections {
		switch insp.(type) {
		case DeclarationInspection, ModuleInspection:
		default:
			return nil, errors.Newf(errors.InternalError, "inspection %s is neither a declaration nor a module inspection", insp.Name())
		}
		key := strings.ToLower(insp.Name())
		if seen[key] {
			return nil, errors.Newf(errors.InternalError, "inspection %s registered twice", insp.Name())
		}
		seen[key] = true
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return &Engine{logger: logger, inspections: inspections, jobs: jobs}, nil
}

// Inspections returns the registered inspections.
func (e *Engine) Inspections() []Inspection {
	out := make([]Inspection, len(e.inspections))
	copy(out, e.inspections)
	return out
}

// RunOptions narrows an engine run.
type RunOptions struct {
	// Inspections limits the run to these names; empty runs all.
	Inspections []string
	// Modules limits the run to these component names; empty runs all.
	Modules []string
	// MinSeverity drops results below it.
	MinSeverity Severity
}

func (o RunOptions) wantsInspection(name string) bool {
	if len(o.Inspections) == 0 {
		return true
	}
	for _, n := range o.Inspections {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func (o RunOptions) wantsModule(m declarations.QualifiedModuleName) bool {
	if len(o.Modules) == 0 {
		return true
	}
	for _, n := range o.Modules {
		if strings.EqualFold(n, m.ComponentName) {
			return true
		}
	}
	return false
}

// run is the state of one Run call.
type run struct {
	graph    *declarations.Graph
	streams  StreamSource
	opts     RunOptions
	failures atomic.Int64
	ignored  atomic.Int64
}

// Run evaluates every wanted inspection concurrently over g. A failing
// evaluation is logged and skipped; only cancellation aborts the run.
func (e *Engine) Run(ctx context.Context, g *declarations.Graph, streams StreamSource, opts RunOptions) (*Report, error) {
	start := time.Now()
	if g == nil {
		return nil, errors.New(errors.ParserNotReady, "no parse result to inspect", nil)
	}

	var wanted []Inspection
	for _, insp := range e.inspections {
		if opts.wantsInspection(insp.Name()) {
			wanted = append(wanted, insp)
		}
	}

	r := &run{graph: g, streams: streams, opts: opts}
	perInspection := make([][]*Result, len(wanted))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, min(e.jobs, len(wanted))))
	for i, insp := range wanted {
		eg.Go(func() error {
			var (
				results []*Result
				err     error
			)
			switch insp := insp.(type) {
			case DeclarationInspection:
				results, err = e.runDeclarations(gctx, r, insp)
			case ModuleInspection:
				results, err = e.runModules(gctx, r, insp)
			}
			perInspection[i] = results
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var results []*Result
	for _, rs := range perInspection {
		results = append(results, rs...)
	}
	if opts.MinSeverity != "" {
		minWeight := opts.MinSeverity.Weight()
		filtered := results[:0]
		for _, res := range results {
			if res.severity.Weight() >= minWeight {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	sortResults(results)

	projectID := ""
	if projects := g.Projects(); len(projects) > 0 {
		projectID = projects[0].IdentifierName()
	}

	report := &Report{
		ProjectID:  projectID,
		Generation: g.Generation(),
		Results:    results,
		Summary:    buildSummary(results),
		Failures:   int(r.failures.Load()),
		Ignored:    int(r.ignored.Load()),
		Duration:   time.Since(start).String(),
	}
	e.logger.Debug("Inspection run complete",
		"inspections", len(wanted),
		"results", len(results),
		"ignored", report.Ignored,
		"failures", report.Failures,
		"duration", report.Duration,
	)
	return report, nil
}

func (e *Engine) runDeclarations(ctx context.Context, r *run, insp DeclarationInspection) ([]*Result, error) {
	var results []*Result
	for _, d := range r.graph.UserDeclarations(insp.Kinds()...) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.opts.wantsModule(d.Module()) {
			continue
		}
		ok, props, err := evaluate(insp, d, r.graph)
		if err != nil {
			r.failures.Add(1)
			e.logger.Warn("Inspection failed on declaration",
				"inspection", insp.Name(),
				"declaration", d.QualifiedName().String(),
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		sel := d.QualifiedSelection()
		if sel.Selection.IsZero() {
			sel.Selection = declarations.Selection{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1}
		}
		var member declarations.QualifiedMemberName
		if d.Kind().IsMember() {
			member = d.QualifiedName()
		} else if m := r.graph.ContainingMember(sel); m != nil {
			member = m.QualifiedName()
		}
		res := NewResult(ResultSpec{
			Inspection:  insp.Name(),
			Severity:    insp.Severity(),
			Description: insp.Describe(d, props),
			Target:      TargetOf(d),
			Selection:   sel,
			Member:      member,
			StartToken:  d.TokenIndex(),
			EndToken:    d.TokenIndex(),
			Properties:  props,
		})
		if r.isIgnored(res) {
			r.ignored.Add(1)
			continue
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Engine) runModules(ctx context.Context, r *run, insp ModuleInspection) ([]*Result, error) {
	var results []*Result
	for _, module := range r.graph.Modules() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !r.opts.wantsModule(module.Module()) {
			continue
		}
		pane, err := r.streams.Stream(module.Module(), tokens.CodePane)
		if err != nil {
			r.failures.Add(1)
			e.logger.Warn("No pane stream for module",
				"inspection", insp.Name(),
				"module", module.Module().String(),
				"error", err,
			)
			continue
		}
		findings, err := inspectModule(insp, module, pane, r.graph)
		if err != nil {
			r.failures.Add(1)
			e.logger.Warn("Inspection failed on module",
				"inspection", insp.Name(),
				"module", module.Module().String(),
				"error", err,
			)
			continue
		}
		for _, f := range findings {
			sel := declarations.QualifiedSelection{Module: module.Module(), Selection: f.Selection}
			var member declarations.QualifiedMemberName
			if m := r.graph.ContainingMember(sel); m != nil {
				member = m.QualifiedName()
			}
			res := NewResult(ResultSpec{
				Inspection:  insp.Name(),
				Severity:    insp.Severity(),
				Description: f.Description,
				Target:      f.Target,
				Selection:   sel,
				Member:      member,
				StartToken:  f.StartToken,
				EndToken:    f.EndToken,
				Properties:  f.Properties,
			})
			for _, id := range f.DisabledFixes {
				res.DisableQuickFix(id)
			}
			if r.isIgnored(res) {
				r.ignored.Add(1)
				continue
			}
			results = append(results, res)
		}
	}
	return results, nil
}

func evaluate(insp DeclarationInspection, d *declarations.Declaration, g *declarations.Graph) (ok bool, props Properties, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, props = false, nil
			err = errors.New(errors.InternalError, fmt.Sprintf("panic: %v", p), nil)
		}
	}()
	return insp.Evaluate(d, g)
}

func inspectModule(insp ModuleInspection, module *declarations.Declaration, pane *tokens.Stream, g *declarations.Graph) (findings []Finding, err error) {
	defer func() {
		if p := recover(); p != nil {
			findings = nil
			err = errors.New(errors.InternalError, fmt.Sprintf("panic: %v", p), nil)
		}
	}()
	return insp.InspectModule(module, pane, g)
}

// sortResults orders by module, position, then inspection name.
func sortResults(results []*Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ka, kb := a.selection.Module.String(), b.selection.Module.String(); ka != kb {
			return ka < kb
		}
		sa, sb := a.selection.Selection, b.selection.Selection
		if sa.StartLine != sb.StartLine {
			return sa.StartLine < sb.StartLine
		}
		if sa.StartColumn != sb.StartColumn {
			return sa.StartColumn < sb.StartColumn
		}
		return a.inspection < b.inspection
	})
}
