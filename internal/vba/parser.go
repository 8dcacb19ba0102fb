// Package vba is a line-oriented scanner for VBA module code. It finds the
// declarations, annotations, attributes and identifier references the
// analysis layer works with; it does not validate syntax.
package vba

import (
	"context"
	"log/slog"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"ducklint/internal/declarations"
	"ducklint/internal/parsing"
	"ducklint/internal/tokens"
)

// Parser implements parsing.Parser.
type Parser struct {
	logger *slog.Logger
	jobs   int
}

// NewParser returns a parser scanning up to jobs modules at once; jobs <= 0
// uses GOMAXPROCS.
func NewParser(logger *slog.Logger, jobs int) *Parser {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	return &Parser{logger: logger, jobs: jobs}
}

// Parse scans every module concurrently, then resolves identifiers across
// the project.
func (p *Parser) Parse(ctx context.Context, projectID string, sources []parsing.Source, generation uint64) (*parsing.Result, error) {
	scans := make([]*moduleScan, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(p.jobs, len(sources))))
	for i, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pane := Lex(tokens.CodePane, generation, src.Pane)
			attrs := Lex(tokens.Attributes, generation, src.Attributes)
			scans[i] = scanModule(src.Module, pane, attrs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	b := declarations.NewBuilder()
	project := b.Add(declarations.Spec{
		Name: declarations.QualifiedMemberName{
			Module:     declarations.QualifiedModuleName{ProjectID: projectID},
			MemberName: projectID,
		},
		Kind:          declarations.KindProject,
		Accessibility: declarations.AccessibilityPublic,
		UserDefined:   true,
		TokenIndex:    -1,
	})

	for _, sc := range scans {
		for _, t := range sc.reserved {
			p.logger.Warn("Skipped declaration named with a reserved word",
				"module", sc.module.ComponentName,
				"line", t.Line,
				"name", t.Text,
			)
		}
		sc.addTo(b, project)
	}

	r := newResolver(scans)
	for _, sc := range scans {
		r.markInterfaces(b, sc)
		r.resolve(b, sc)
	}

	result := &parsing.Result{Graph: b.Build(generation)}
	for _, sc := range scans {
		result.Modules = append(result.Modules, parsing.ModuleStreams{
			Module:     sc.module,
			Pane:       sc.pane,
			Attributes: sc.attributes,
		})
	}

	p.logger.Debug("Scanned modules",
		"project", projectID,
		"modules", len(scans),
		"declarations", result.Graph.Len(),
		"unresolved", r.unresolved,
	)
	return result, nil
}

// addTo adds the module and its declarations to b.
func (sc *moduleScan) addTo(b *declarations.Builder, project *declarations.Declaration) {
	kind := declarations.KindClassModule
	if sc.module.ComponentType == declarations.StandardModule {
		kind = declarations.KindProceduralModule
	}
	sc.decl = b.Add(declarations.Spec{
		Name:          declarations.QualifiedMemberName{Module: sc.module, MemberName: sc.module.ComponentName},
		Kind:          kind,
		Accessibility: declarations.AccessibilityPublic,
		UserDefined:   true,
		AsType:        sc.module.ComponentName,
		TokenIndex:    -1,
		Body:          sc.body,
		Parent:        project,
		Annotations:   sc.annotations,
		Attributes:    sc.moduleAttributes,
	})

	attached := make(map[string]bool)
	for _, pd := range sc.decls {
		spec := pd.spec
		if pd.parent < 0 {
			spec.Parent = sc.decl
		} else {
			spec.Parent = sc.decls[pd.parent].decl
		}
		pd.decl = b.Add(spec)

		if pd.parent < 0 && pd.decl.Kind().IsMember() {
			key := strings.ToLower(pd.decl.IdentifierName())
			if attrs := sc.memberAttributes[key]; len(attrs) > 0 && !attached[key] {
				b.AddAttributes(pd.decl, attrs...)
				attached[key] = true
			}
		}
	}
}
