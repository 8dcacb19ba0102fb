package project

import (
	"regexp"
	"strings"
)

var (
	vbNamePattern     = regexp.MustCompile(`(?im)^\s*Attribute\s+VB_Name\s*=\s*"([^"]*)"`)
	attributeLine     = regexp.MustCompile(`(?i)^\s*Attribute\s+`)
	memberAttribute   = regexp.MustCompile(`(?i)^\s*Attribute\s+([A-Za-z_][A-Za-z0-9_]*)\.[A-Za-z_][A-Za-z0-9_]*\s*=`)
	procedureHeadLine = regexp.MustCompile(`(?i)^\s*(?:(?:public|private|friend|global)\s+)?(?:static\s+)?(?:sub|function|property\s+(?:get|let|set))\s+([A-Za-z_][A-Za-z0-9_]*)`)
	versionLine       = regexp.MustCompile(`(?i)^\s*VERSION\s+`)
)

// ExportFile is an exported module split into the parts the host keeps apart:
// the designer header, module attributes, member attributes and the code the
// user sees in the code pane. Every line keeps its terminator.
type ExportFile struct {
	Header           []string
	ModuleAttributes []string
	// MemberAttributes is keyed by lower-case member name, in file order.
	MemberAttributes map[string][]string
	Code             []string
	// codeLines holds the 1-based file line of each Code line.
	codeLines        []int
	newline          string
}

// SplitExport splits exported file text.
func SplitExport(text string) *ExportFile {
	lines := SplitLines(text)
	ef := &ExportFile{
		MemberAttributes: make(map[string][]string),
		newline:          detectNewline(text),
	}

	i := 0
	if len(lines) > 0 && versionLine.MatchString(lines[0]) {
		for i < len(lines) && !attributeLine.MatchString(lines[i]) {
			i++
		}
		if i == len(lines) {
			// a header with no attributes at all: keep the whole text as code
			i = 0
		} else {
			ef.Header = append(ef.Header, lines[:i]...)
		}
	}

	for ; i < len(lines); i++ {
		line := lines[i]
		if !attributeLine.MatchString(line) {
			ef.Code = append(ef.Code, line)
			ef.codeLines = append(ef.codeLines, i+1)
			continue
		}
		if m := memberAttribute.FindStringSubmatch(line); m != nil {
			key := strings.ToLower(m[1])
			ef.MemberAttributes[key] = append(ef.MemberAttributes[key], line)
			continue
		}
		ef.ModuleAttributes = append(ef.ModuleAttributes, line)
	}
	return ef
}

// Pane returns the code-pane text: no header and no attribute lines.
func (ef *ExportFile) Pane() string {
	return strings.Join(ef.Code, "")
}

// Text reassembles the full exported file.
func (ef *ExportFile) Text() string {
	return ef.Merge(ef.Pane())
}

// Merge returns the exported file text with pane replacing the code. Member
// attributes are re-attached after the declaration line of the member they
// name; attributes of members no longer present are dropped.
func (ef *ExportFile) Merge(pane string) string {
	var b strings.Builder
	for _, l := range ef.Header {
		b.WriteString(l)
	}
	for _, l := range ef.ModuleAttributes {
		b.WriteString(withTerminator(l, ef.newline))
	}

	placed := make(map[string]bool)
	lines := SplitLines(pane)
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		m := procedureHeadLine.FindStringSubmatch(line)
		if m == nil {
			b.WriteString(line)
			continue
		}
		// the attributes go after the whole signature, continuations included
		for isContinued(line) && i+1 < len(lines) {
			b.WriteString(line)
			i++
			line = lines[i]
		}
		key := strings.ToLower(m[1])
		attrs := ef.MemberAttributes[key]
		if len(attrs) == 0 || placed[key] {
			b.WriteString(line)
			continue
		}
		placed[key] = true
		b.WriteString(withTerminator(line, ef.newline))
		for _, a := range attrs {
			b.WriteString(withTerminator(a, ef.newline))
		}
	}
	return b.String()
}

// FileLine maps a 1-based code pane line to its line in the exported file.
func (ef *ExportFile) FileLine(paneLine int) (int, bool) {
	if paneLine < 1 || paneLine > len(ef.codeLines) {
		return 0, false
	}
	return ef.codeLines[paneLine-1], true
}

// VBName returns the VB_Name attribute value of exported file text.
func VBName(text string) (string, bool) {
	m := vbNamePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// PaneCode returns the code-pane view of exported file text.
func PaneCode(text string) string {
	return SplitExport(text).Pane()
}

// MergePane returns exported file text with its code replaced by pane.
func MergePane(exported, pane string) string {
	return SplitExport(exported).Merge(pane)
}

// SplitLines splits text into lines that keep their terminators. A final line
// without a terminator is kept as is.
func SplitLines(text string) []string {
	var lines []string
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, text)
			break
		}
		lines = append(lines, text[:i+1])
		text = text[i+1:]
	}
	return lines
}

func isContinued(line string) bool {
	trimmed := strings.TrimRight(line, "\r\n \t")
	return strings.HasSuffix(trimmed, " _") || trimmed == "_"
}

func withTerminator(line, newline string) string {
	if strings.HasSuffix(line, "\n") {
		return line
	}
	return line + newline
}

func detectNewline(text string) string {
	i := strings.IndexByte(text, '\n')
	if i < 0 {
		return "\r\n"
	}
	if i > 0 && text[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}
