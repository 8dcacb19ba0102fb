package vba

import (
	"strings"

	"ducklint/internal/tokens"
)

// statement is one logical statement: continuation lines joined, split at
// ':' separators.
type statement struct {
	toks []tokens.Token
	// comment is the trailing comment of the physical line, if any.
	comment   *tokens.Token
	firstLine int
	lastLine  int
	// lineStart is the first token of the statement's first physical line.
	lineStart int
	// end is the index of the last token before the line's newline.
	end int
}

func (s statement) word(i int) string {
	if i < 0 || i >= len(s.toks) {
		return ""
	}
	return strings.ToLower(s.toks[i].Text)
}

// is reports whether the statement starts with the given lower-case words.
func (s statement) is(words ...string) bool {
	for i, w := range words {
		if s.word(i) != w {
			return false
		}
	}
	return true
}

// statements groups a stream's tokens into logical statements. Comment-only
// lines produce a statement with no tokens.
func statements(stream *tokens.Stream) []statement {
	toks := stream.Tokens()
	var out []statement

	var cur statement
	open := false
	continued := false
	lineStart := 0

	begin := func(t tokens.Token) {
		if !open {
			cur = statement{firstLine: t.Line, lineStart: lineStart}
			open = true
		}
	}
	finish := func(lastLine int) {
		if open {
			cur.lastLine = lastLine
			out = append(out, cur)
		}
		open = false
	}

	for i, t := range toks {
		switch t.Kind {
		case tokens.Whitespace:
			continue
		case tokens.LineContinuation:
			continued = true
			continue
		case tokens.Comment:
			begin(t)
			c := t
			cur.comment = &c
			cur.end = t.Index
			continue
		case tokens.Newline:
			if continued {
				continued = false
				continue
			}
			finish(t.Line)
			lineStart = i + 1
			continue
		}
		continued = false
		if t.Kind == tokens.Punctuation && t.Text == ":" {
			finish(t.Line)
			continue
		}
		begin(t)
		cur.toks = append(cur.toks, t)
		cur.end = t.Index
	}
	if len(toks) > 0 {
		finish(toks[len(toks)-1].Line)
	}
	return out
}

// splitTopLevel splits toks at commas outside parentheses.
func splitTopLevel(toks []tokens.Token) [][]tokens.Token {
	var parts [][]tokens.Token
	depth, start := 0, 0
	for i, t := range toks {
		if t.Kind != tokens.Punctuation {
			continue
		}
		switch t.Text {
		case "(":
			depth++
		case ")":
			depth--
		case ",":
			if depth == 0 {
				parts = append(parts, toks[start:i])
				start = i + 1
			}
		}
	}
	if start < len(toks) {
		parts = append(parts, toks[start:])
	}
	return parts
}

// matchingParen returns the index in toks of the ')' closing the '(' at open.
func matchingParen(toks []tokens.Token, open int) int {
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Kind != tokens.Punctuation {
			continue
		}
		switch toks[i].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// typeAfterAs returns the type named after an "As [New]" clause in toks.
func typeAfterAs(toks []tokens.Token) (string, []tokens.Token) {
	for i, t := range toks {
		if !strings.EqualFold(t.Text, "as") || t.Kind != tokens.Keyword {
			continue
		}
		j := i + 1
		if j < len(toks) && strings.EqualFold(toks[j].Text, "new") {
			j++
		}
		var b strings.Builder
		var typeToks []tokens.Token
		for ; j < len(toks); j++ {
			if toks[j].Kind == tokens.Punctuation && toks[j].Text != "." {
				break
			}
			b.WriteString(toks[j].Text)
			typeToks = append(typeToks, toks[j])
		}
		return b.String(), typeToks
	}
	return "", nil
}
