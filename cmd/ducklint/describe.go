package main

import (
	stderrors "errors"
	"fmt"
	"strings"

	"ducklint/internal/errors"
)

// describeError renders err for stderr, adding the suggested commands of a
// DuckError.
func describeError(err error) string {
	var de *errors.DuckError
	if !stderrors.As(err, &de) {
		return err.Error()
	}
	var b strings.Builder
	b.WriteString(err.Error())
	for _, fix := range de.SuggestedFixes {
		if fix.Command != "" {
			fmt.Fprintf(&b, "\n  try: %s", fix.Command)
			if fix.Description != "" {
				fmt.Fprintf(&b, " (%s)", fix.Description)
			}
		}
	}
	return b.String()
}
