package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ducklint/internal/declarations"
	"ducklint/internal/host"
	"ducklint/internal/refactor/rename"
	"ducklint/internal/slogutil"
)

var renameCmd = &cobra.Command{
	Use:   "rename <target> <new-name>",
	Short: "Rename a declaration and every reference to it",
	Long: `Rename a user-defined declaration. The target is a dotted path
(Module, Module.Member or Module.Member.Local), an unambiguous bare name, or
a position Module:line:column inside the declaration's identifier.`,
	Args: cobra.ExactArgs(2),
	RunE: runRename,
}

func init() {
	rootCmd.AddCommand(renameCmd)
}

func runRename(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	ws, err := openWorkspace(ctx, slogutil.SubsystemCLI)
	if err != nil {
		return err
	}
	defer ws.Close()

	refactoring := rename.New(ws.state, ws.manager, rename.FixedName(args[1]), ws.logger)

	var target *declarations.Declaration
	if qs, ok, err := parsePosition(ctx, ws.host, args[0]); err != nil {
		return err
	} else if ok {
		target, err = refactoring.TargetAt(qs)
		if err != nil {
			return err
		}
	} else {
		target, err = rename.FindTarget(ws.state.Graph(), args[0])
		if err != nil {
			return err
		}
	}

	res, err := refactoring.Refactor(ctx, target)
	if err != nil {
		return err
	}
	return printResponse(cmd, ws.config, res)
}

// parsePosition reads Module:line:column. ok is false when s is not in that
// form.
func parsePosition(ctx context.Context, h host.Host, s string) (declarations.QualifiedSelection, bool, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return declarations.QualifiedSelection{}, false, nil
	}
	line, err := strconv.Atoi(parts[1])
	if err != nil || line < 1 {
		return declarations.QualifiedSelection{}, false, fmt.Errorf("invalid line in %s", s)
	}
	column, err := strconv.Atoi(parts[2])
	if err != nil || column < 1 {
		return declarations.QualifiedSelection{}, false, fmt.Errorf("invalid column in %s", s)
	}
	module, err := host.Resolve(ctx, h, parts[0])
	if err != nil {
		return declarations.QualifiedSelection{}, false, err
	}
	return declarations.QualifiedSelection{
		Module: module,
		Selection: declarations.Selection{
			StartLine:   line,
			StartColumn: column,
			EndLine:     line,
			EndColumn:   column,
		},
	}, true, nil
}
