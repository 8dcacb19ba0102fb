package vba

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"ducklint/internal/tokens"
)

// Lex splits source into tokens. Concatenating the token texts gives back
// source exactly.
func Lex(kind tokens.CodeKind, generation uint64, source string) *tokens.Stream {
	l := &lexer{src: source, line: 1, col: 1, lineStart: true}
	for l.pos < len(l.src) {
		l.next()
	}
	return tokens.NewStream(kind, generation, source, l.toks)
}

type lexer struct {
	src       string
	pos       int
	line      int
	col       int
	toks      []tokens.Token
	lineStart bool
}

func (l *lexer) emit(kind tokens.Kind, end int) {
	text := l.src[l.pos:end]
	l.toks = append(l.toks, tokens.Token{
		Index:  len(l.toks),
		Kind:   kind,
		Text:   text,
		Line:   l.line,
		Column: l.col,
	})
	l.pos = end
	if kind == tokens.Newline {
		l.line++
		l.col = 1
		l.lineStart = true
		return
	}
	l.col += len(text)
	if kind != tokens.Whitespace {
		l.lineStart = false
	}
}

func (l *lexer) next() {
	c := l.src[l.pos]
	switch {
	case c == '\r':
		end := l.pos + 1
		if end < len(l.src) && l.src[end] == '\n' {
			end++
		}
		l.emit(tokens.Newline, end)
	case c == '\n':
		l.emit(tokens.Newline, l.pos+1)
	case c == ' ' || c == '\t':
		end := l.pos
		for end < len(l.src) && (l.src[end] == ' ' || l.src[end] == '\t') {
			end++
		}
		l.emit(tokens.Whitespace, end)
	case c == '\'':
		l.emit(tokens.Comment, l.lineEnd())
	case c == '"':
		l.emit(tokens.String, l.stringEnd())
	case c == '_' && l.isContinuation():
		l.emit(tokens.LineContinuation, l.pos+1)
	case c == '[':
		end := strings.IndexAny(l.src[l.pos:], "]\r\n")
		if end < 0 || l.src[l.pos+end] != ']' {
			l.emit(tokens.Punctuation, l.pos+1)
			return
		}
		l.emit(tokens.Identifier, l.pos+end+1)
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1]) && !l.afterIdentifier()):
		l.emit(tokens.Number, l.numberEnd())
	case c == '&' && l.pos+2 < len(l.src) && strings.ContainsRune("HhOo", rune(l.src[l.pos+1])) && isHexDigit(l.src[l.pos+2]):
		end := l.pos + 2
		for end < len(l.src) && isHexDigit(l.src[end]) {
			end++
		}
		if end < len(l.src) && (l.src[end] == '&' || l.src[end] == '%' || l.src[end] == '^') {
			end++
		}
		l.emit(tokens.Number, end)
	case isIdentStart(l.src[l.pos:]):
		end := l.identifierEnd()
		word := l.src[l.pos:end]
		if strings.EqualFold(word, "rem") && l.lineStart && (end == len(l.src) || l.src[end] == ' ' || l.src[end] == '\t' || l.src[end] == '\r' || l.src[end] == '\n') {
			l.emit(tokens.Comment, l.lineEnd())
			return
		}
		if IsKeyword(word) {
			l.emit(tokens.Keyword, end)
			return
		}
		l.emit(tokens.Identifier, end)
	default:
		end := l.pos + 1
		if end < len(l.src) {
			switch l.src[l.pos : end+1] {
			case "<>", "<=", ">=", ":=":
				end++
			}
		}
		if c >= utf8.RuneSelf {
			_, size := utf8.DecodeRuneInString(l.src[l.pos:])
			end = l.pos + size
		}
		l.emit(tokens.Punctuation, end)
	}
}

func (l *lexer) lineEnd() int {
	end := strings.IndexAny(l.src[l.pos:], "\r\n")
	if end < 0 {
		return len(l.src)
	}
	return l.pos + end
}

func (l *lexer) stringEnd() int {
	i := l.pos + 1
	for i < len(l.src) {
		switch l.src[i] {
		case '"':
			if i+1 < len(l.src) && l.src[i+1] == '"' {
				i += 2
				continue
			}
			return i + 1
		case '\r', '\n':
			return i
		}
		i++
	}
	return i
}

// isContinuation reports whether the underscore at pos is a line
// continuation: preceded by whitespace and followed only by whitespace up to
// the end of the line.
func (l *lexer) isContinuation() bool {
	if l.pos > 0 {
		prev := l.src[l.pos-1]
		if prev != ' ' && prev != '\t' {
			return false
		}
	}
	for i := l.pos + 1; i < len(l.src); i++ {
		switch l.src[i] {
		case ' ', '\t':
			continue
		case '\r', '\n':
			return true
		default:
			return false
		}
	}
	return true
}

func (l *lexer) afterIdentifier() bool {
	if len(l.toks) == 0 {
		return false
	}
	last := l.toks[len(l.toks)-1]
	return last.Kind == tokens.Identifier || last.Kind == tokens.Keyword || last.Text == ")"
}

func (l *lexer) numberEnd() int {
	i := l.pos
	for i < len(l.src) && (isDigit(l.src[i]) || l.src[i] == '.') {
		i++
	}
	if i < len(l.src) && (l.src[i] == 'e' || l.src[i] == 'E') {
		j := i + 1
		if j < len(l.src) && (l.src[j] == '+' || l.src[j] == '-') {
			j++
		}
		if j < len(l.src) && isDigit(l.src[j]) {
			for j < len(l.src) && isDigit(l.src[j]) {
				j++
			}
			i = j
		}
	}
	if i < len(l.src) && strings.IndexByte("%&!#@^", l.src[i]) >= 0 && !l.identCharAt(i+1) {
		i++
	}
	return i
}

func (l *lexer) identifierEnd() int {
	i := l.pos
	for i < len(l.src) && l.identCharAt(i) {
		_, size := utf8.DecodeRuneInString(l.src[i:])
		i += size
	}
	if i < len(l.src) {
		if _, ok := typeSuffixes[l.src[i]]; ok && !l.identCharAt(i+1) {
			// "&H" after an identifier is concatenation, not a suffix
			if !(l.src[i] == '&' && i+1 < len(l.src) && (l.src[i+1] == 'H' || l.src[i+1] == 'h')) {
				i++
			}
		}
	}
	return i
}

func (l *lexer) identCharAt(i int) bool {
	if i >= len(l.src) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(l.src[i:])
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isIdentStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
