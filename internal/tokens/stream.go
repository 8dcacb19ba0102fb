// Package tokens holds frozen token streams and the edit buffer rewriters use
// to produce new module text from them.
package tokens

import (
	"fmt"
	"strings"
)

// CodeKind names which textual representation of a module a stream covers.
type CodeKind int

const (
	// CodePane is the code visible in the editor.
	CodePane CodeKind = iota + 1
	// Attributes is the exported text, including hidden Attribute directives.
	Attributes
)

func (k CodeKind) String() string {
	switch k {
	case CodePane:
		return "pane"
	case Attributes:
		return "attributes"
	default:
		return fmt.Sprintf("CodeKind(%d)", int(k))
	}
}

// ParseCodeKind maps "pane" and "attributes" to a CodeKind.
func ParseCodeKind(s string) (CodeKind, error) {
	switch strings.ToLower(s) {
	case "pane", "code", "codepane":
		return CodePane, nil
	case "attributes", "attribute", "attr":
		return Attributes, nil
	default:
		return 0, fmt.Errorf("unknown code kind %q", s)
	}
}

// Kind classifies a token.
type Kind int

const (
	Identifier Kind = iota + 1
	Keyword
	Whitespace
	Newline
	Comment
	String
	Number
	Punctuation
	LineContinuation
)

func (k Kind) String() string {
	switch k {
	case Identifier:
		return "identifier"
	case Keyword:
		return "keyword"
	case Whitespace:
		return "whitespace"
	case Newline:
		return "newline"
	case Comment:
		return "comment"
	case String:
		return "string"
	case Number:
		return "number"
	case Punctuation:
		return "punctuation"
	case LineContinuation:
		return "continuation"
	default:
		return "unknown"
	}
}

// IsTrivia reports whether tokens of this kind carry no syntax.
func (k Kind) IsTrivia() bool {
	return k == Whitespace || k == Comment || k == LineContinuation
}

// Token is one lexeme. Line and Column are 1-based.
type Token struct {
	Index  int
	Kind   Kind
	Text   string
	Line   int
	Column int
}

// EndColumn is the column of the token's last character.
func (t Token) EndColumn() int {
	return t.Column + len(t.Text) - 1
}

// Stream is an immutable token snapshot of one module in one code kind.
type Stream struct {
	kind       CodeKind
	generation uint64
	tokens     []Token
	source     string
}

// NewStream freezes toks. The concatenated token text must equal source.
func NewStream(kind CodeKind, generation uint64, source string, toks []Token) *Stream {
	frozen := make([]Token, len(toks))
	copy(frozen, toks)
	return &Stream{kind: kind, generation: generation, tokens: frozen, source: source}
}

func (s *Stream) Kind() CodeKind     { return s.kind }
func (s *Stream) Generation() uint64 { return s.generation }
func (s *Stream) Len() int           { return len(s.tokens) }
func (s *Stream) Source() string     { return s.source }

// Get returns the token at index i.
func (s *Stream) Get(i int) (Token, bool) {
	if i < 0 || i >= len(s.tokens) {
		return Token{}, false
	}
	return s.tokens[i], true
}

// Tokens returns a copy of the tokens.
func (s *Stream) Tokens() []Token {
	out := make([]Token, len(s.tokens))
	copy(out, s.tokens)
	return out
}

// Text returns the original text of tokens [from, to].
func (s *Stream) Text(from, to int) string {
	if from < 0 {
		from = 0
	}
	if to >= len(s.tokens) {
		to = len(s.tokens) - 1
	}
	var b strings.Builder
	for i := from; i <= to; i++ {
		b.WriteString(s.tokens[i].Text)
	}
	return b.String()
}

// LineStart returns the index of the first token on line.
func (s *Stream) LineStart(line int) (int, bool) {
	for _, t := range s.tokens {
		if t.Line == line {
			return t.Index, true
		}
		if t.Line > line {
			break
		}
	}
	return 0, false
}

// Indentation returns the leading whitespace of line.
func (s *Stream) Indentation(line int) string {
	start, ok := s.LineStart(line)
	if !ok {
		return ""
	}
	if t := s.tokens[start]; t.Kind == Whitespace {
		return t.Text
	}
	return ""
}

// NewlineStyle returns the first newline sequence of the stream, CRLF when
// there is none.
func (s *Stream) NewlineStyle() string {
	for _, t := range s.tokens {
		if t.Kind == Newline {
			return t.Text
		}
	}
	return "\r\n"
}
