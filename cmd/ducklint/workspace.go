package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"ducklint/internal/config"
	"ducklint/internal/host"
	"ducklint/internal/inspections"
	"ducklint/internal/parsing"
	"ducklint/internal/project"
	"ducklint/internal/quickfix"
	"ducklint/internal/rewriter"
	"ducklint/internal/slogutil"
	"ducklint/internal/storage"
	"ducklint/internal/vba"
)

// workspace is one opened project: host, parser state, rewriting manager and
// journal wired together the way every command needs them.
type workspace struct {
	root     string
	config   *config.Config
	factory  *slogutil.LoggerFactory
	logger   *slog.Logger
	manifest *project.Manifest
	host     *host.Directory
	state    *parsing.State
	manager  *rewriter.Manager
	db       *storage.DB
	journal  *storage.Journal
}

// projectRoot returns the absolute --project root.
func projectRoot() (string, error) {
	root := projectFlag
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		root = wd
	}
	return filepath.Abs(root)
}

// loadConfig loads the project configuration, falling back to defaults when
// the file is missing.
func loadConfig(root string) (*config.Config, error) {
	res, err := config.LoadConfigWithDetails(root)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// newLoggerFactory creates the project's logger factory; -v and -q override
// the configured levels.
func newLoggerFactory(root string, cfg *config.Config) *slogutil.LoggerFactory {
	f := slogutil.NewLoggerFactory(root, cfg, os.Stderr)
	if verbosity > 0 || quietFlag {
		f.SetCLILevel(slogutil.LevelFromVerbosity(verbosity, quietFlag))
	}
	return f
}

// openWorkspace opens the project for subsystem and parses it once. The
// journal is opened only when enabled in config.
func openWorkspace(ctx context.Context, subsystem string) (*workspace, error) {
	root, err := projectRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}

	ws := &workspace{root: root, config: cfg}
	ws.factory = newLoggerFactory(root, cfg)
	ws.logger = ws.factory.Logger(subsystem)

	ws.manifest, err = project.LoadManifest(root)
	if err != nil {
		ws.Close()
		return nil, err
	}
	ws.host, err = host.NewDirectory(root, ws.manifest, ws.logger)
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to open project: %w", err)
	}
	ws.state = parsing.NewState(ws.host, vba.NewParser(ws.logger, cfg.Parser.Jobs), ws.logger)
	ws.manager = rewriter.NewManager(ws.host, ws.state, ws.logger)

	if cfg.Journal.Enabled {
		ws.db, err = storage.Open(root, ws.logger)
		if err != nil {
			ws.Close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		ws.journal, err = storage.NewJournal(ws.db, cfg.Journal.Retain, ws.logger)
		if err != nil {
			ws.Close()
			return nil, err
		}
		ws.manager.SetJournal(ws.journal)
	}

	if err := ws.state.Reparse(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	return ws, nil
}

// engine builds the inspection engine from config.
func (ws *workspace) engine() (*inspections.Engine, error) {
	settings := inspections.Settings{
		InterfaceMemberThreshold: ws.config.Inspections.InterfaceMemberThreshold,
		Disabled:                 ws.config.Inspections.Disabled,
	}
	return inspections.NewEngine(ws.logger, ws.config.Parser.Jobs, inspections.Builtin(settings)...)
}

// inspect runs the engine over the current graph.
func (ws *workspace) inspect(ctx context.Context, opts inspections.RunOptions) (*inspections.Report, error) {
	engine, err := ws.engine()
	if err != nil {
		return nil, err
	}
	if opts.MinSeverity == "" {
		opts.MinSeverity = inspections.Severity(ws.config.Inspections.MinSeverity)
	}
	return engine.Run(ctx, ws.state.Graph(), ws.state, opts)
}

// quickFixes builds the quick-fix provider over the configured inspections,
// leaving out fixes disabled in config.
func (ws *workspace) quickFixes() (*quickfix.Provider, error) {
	engine, err := ws.engine()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(engine.Inspections()))
	for _, insp := range engine.Inspections() {
		names = append(names, insp.Name())
	}
	disabled := make(map[string]bool, len(ws.config.QuickFix.Disabled))
	for _, id := range ws.config.QuickFix.Disabled {
		disabled[id] = true
	}
	var fixes []quickfix.QuickFix
	for _, fix := range quickfix.Fixes(ws.state, names) {
		if !disabled[fix.ID()] {
			fixes = append(fixes, fix)
		}
	}
	return quickfix.NewProvider(ws.manager, quickfix.NewLogNotifier(ws.logger), ws.logger, fixes...)
}

// Close releases the journal and log files.
func (ws *workspace) Close() {
	if ws.journal != nil {
		_ = ws.journal.Close()
	}
	if ws.db != nil {
		_ = ws.db.Close()
	}
	if ws.factory != nil {
		_ = ws.factory.Close()
	}
}

// outputFormat resolves --format, falling back to output.format in config.
func outputFormat(cfg *config.Config) (OutputFormat, error) {
	format := formatFlag
	if format == "" && cfg != nil {
		format = cfg.Output.Format
	}
	if format == "" {
		format = string(FormatHuman)
	}
	return ParseOutputFormat(format)
}

// printResponse formats resp and writes it to the command's output.
func printResponse(cmd *cobra.Command, cfg *config.Config, resp interface{}) error {
	format, err := outputFormat(cfg)
	if err != nil {
		return err
	}
	out, err := FormatResponse(resp, format, useColor(cmd, cfg))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}
