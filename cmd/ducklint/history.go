package main

import (
	"github.com/spf13/cobra"

	"ducklint/internal/errors"
	"ducklint/internal/slogutil"
	"ducklint/internal/storage"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled rewrite sessions",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var undoCmd = &cobra.Command{
	Use:   "undo <session-id>",
	Short: "Revert a journaled rewrite session",
	Long: `Restore the text every module of a session had before it was committed.
The revert is refused when any of those modules changed afterwards; it is
itself journaled, so it can be undone in turn.`,
	Args: cobra.ExactArgs(1),
	RunE: runUndo,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of sessions to list (0 for all)")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(undoCmd)
}

// HistoryResponseCLI lists journal rows, newest first
type HistoryResponseCLI struct {
	Sessions []storage.Summary `json:"sessions" yaml:"sessions"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(ctx, slogutil.SubsystemCLI)
	if err != nil {
		return err
	}
	defer ws.Close()

	if ws.journal == nil {
		return journalDisabled()
	}
	sessions, err := ws.journal.List(ctx, historyLimit)
	if err != nil {
		return err
	}
	if sessions == nil {
		sessions = []storage.Summary{}
	}
	return printResponse(cmd, ws.config, &HistoryResponseCLI{Sessions: sessions})
}

func runUndo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(ctx, slogutil.SubsystemCLI)
	if err != nil {
		return err
	}
	defer ws.Close()

	if ws.journal == nil {
		return journalDisabled()
	}
	res, err := storage.Undo(ctx, ws.journal, ws.manager, args[0])
	if err != nil {
		return err
	}
	if err := ws.state.Reparse(ctx); err != nil {
		return err
	}
	return printResponse(cmd, ws.config, res)
}

func journalDisabled() error {
	return errors.New(errors.InvalidEdit, "the rewrite journal is disabled (journal.enabled = false)", nil)
}
