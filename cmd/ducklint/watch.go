package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ducklint/internal/inspections"
	"ducklint/internal/parsing"
	"ducklint/internal/slogutil"
	"ducklint/internal/watcher"
)

var watchInspect bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-parse the project whenever module files change",
	Long: `Watch the project for module files edited outside ducklint. Changed modules
are flagged so refactorings refuse to touch them until the background
re-parse has caught up. With --inspect the inspections run after each parse.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInspect, "inspect", false, "Run inspections after every parse")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ws, err := openWorkspace(ctx, slogutil.SubsystemWatch)
	if err != nil {
		return err
	}
	defer ws.Close()

	if watchInspect {
		ws.state.OnStatusChange(func(status parsing.Status) {
			if status != parsing.StatusReady {
				return
			}
			report, err := ws.inspect(ctx, inspections.RunOptions{})
			if err != nil {
				ws.logger.Warn("Inspection run failed", "error", err.Error())
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generation %d: %d result(s) in %d module(s)\n",
				report.Generation, report.Summary.Total, report.Summary.Modules)
		})
	}

	w, err := watcher.New(ws.root, watcher.ConfigFrom(ws.config.Watch), ws.logger,
		watcher.ReparseOnChange(ctx, ws.host, ws.state, ws.logger))
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	err = w.Stop()
	ws.state.Wait()
	return err
}
