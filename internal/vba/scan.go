package vba

import (
	"strings"

	"ducklint/internal/declarations"
	"ducklint/internal/tokens"
)

type pendingDecl struct {
	spec   declarations.Spec
	parent int // index into moduleScan.decls, -1 for the module itself
	decl   *declarations.Declaration
}

// use is an identifier occurrence waiting for name resolution.
type use struct {
	tok       tokens.Token
	scope     int // enclosing procedure, -1 at module level
	qualifier *tokens.Token
	typeOnly  bool
}

// moduleScan is everything read from one module before cross-module
// resolution.
type moduleScan struct {
	module           declarations.QualifiedModuleName
	pane             *tokens.Stream
	attributes       *tokens.Stream
	decls            []*pendingDecl
	uses             []use
	implements       []tokens.Token
	annotations      []declarations.Annotation
	moduleAttributes []declarations.Attribute
	memberAttributes map[string][]declarations.Attribute
	body             declarations.Selection
	decl             *declarations.Declaration
	// reserved holds name tokens of declarations skipped because the name
	// is a reserved word.
	reserved []tokens.Token
}

func scanModule(module declarations.QualifiedModuleName, pane, attributes *tokens.Stream) *moduleScan {
	sc := &moduleScan{
		module:           module,
		pane:             pane,
		attributes:       attributes,
		memberAttributes: make(map[string][]declarations.Attribute),
	}
	sc.scanAttributes()

	stmts := statements(pane)
	sc.collectAnnotations(stmts)
	sc.scanDeclarations(stmts)

	sc.body = declarations.Selection{StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 1}
	if n := pane.Len(); n > 0 {
		last, _ := pane.Get(n - 1)
		sc.body.EndLine = last.Line
		sc.body.EndColumn = last.EndColumn()
	}
	return sc
}

func (sc *moduleScan) scanAttributes() {
	for _, st := range statements(sc.attributes) {
		if !st.is("attribute") || len(st.toks) < 4 {
			continue
		}
		attr := declarations.Attribute{
			Line:       st.firstLine,
			StartToken: st.toks[0].Index,
			EndToken:   st.toks[len(st.toks)-1].Index,
		}
		eq := 2
		if len(st.toks) >= 6 && st.toks[2].Text == "." {
			attr.Member = identName(st.toks[1])
			attr.Name = st.toks[3].Text
			eq = 4
		} else {
			attr.Name = st.toks[1].Text
		}
		if eq >= len(st.toks) || st.toks[eq].Text != "=" || eq+1 >= len(st.toks) {
			continue
		}
		values := st.toks[eq+1:]
		attr.ValueStart = values[0].Index
		attr.ValueEnd = values[len(values)-1].Index
		for _, part := range splitTopLevel(values) {
			var b strings.Builder
			for _, t := range part {
				b.WriteString(t.Text)
			}
			attr.Values = append(attr.Values, b.String())
		}
		if attr.Member == "" {
			sc.moduleAttributes = append(sc.moduleAttributes, attr)
		} else {
			key := strings.ToLower(attr.Member)
			sc.memberAttributes[key] = append(sc.memberAttributes[key], attr)
		}
	}
}

// collectAnnotations reads annotation comments. A block of comment-only
// lines applies to the next code line; a trailing annotation applies to its
// own line.
func (sc *moduleScan) collectAnnotations(stmts []statement) {
	next := 0
	for i := len(stmts) - 1; i >= 0; i-- {
		st := stmts[i]
		if len(st.toks) > 0 {
			next = st.firstLine
		}
		if st.comment == nil {
			continue
		}
		a, ok := ParseAnnotation(*st.comment)
		if !ok {
			continue
		}
		if len(st.toks) > 0 {
			a.AppliesToLine = st.firstLine
		} else {
			a.AppliesToLine = next
		}
		sc.annotations = append(sc.annotations, a)
	}
	// restore source order
	for i, j := 0, len(sc.annotations)-1; i < j; i, j = i+1, j-1 {
		sc.annotations[i], sc.annotations[j] = sc.annotations[j], sc.annotations[i]
	}
}

func (sc *moduleScan) annotationsFor(line int) []declarations.Annotation {
	var out []declarations.Annotation
	for _, a := range sc.annotations {
		if a.AppliesToLine == line {
			out = append(out, a)
		}
	}
	return out
}

func (sc *moduleScan) add(spec declarations.Spec, parent int) int {
	spec.UserDefined = true
	sc.decls = append(sc.decls, &pendingDecl{spec: spec, parent: parent})
	return len(sc.decls) - 1
}

func (sc *moduleScan) name(tok tokens.Token) declarations.QualifiedMemberName {
	return declarations.QualifiedMemberName{Module: sc.module, MemberName: identName(tok)}
}

func (sc *moduleScan) scanDeclarations(stmts []statement) {
	proc, enum, udt := -1, -1, -1
	var procStart, last statement

	for _, st := range stmts {
		last = st
		if len(st.toks) == 0 {
			continue
		}
		switch {
		case enum >= 0:
			if st.is("end", "enum") {
				sc.decls[enum].spec.Body = span(sc.decls[enum].spec.Body, st)
				enum = -1
				continue
			}
			if t := st.toks[0]; t.Kind == tokens.Identifier {
				sc.add(declarations.Spec{
					Name:          sc.name(t),
					Kind:          declarations.KindEnumerationMember,
					Accessibility: sc.decls[enum].spec.Accessibility,
					AsType:        "Long",
					Selection:     selectionOf(t),
					TokenIndex:    t.Index,
					Body:          span(selectionOf(t), st),
				}, enum)
				sc.collectUses(afterEquals(st.toks), -1)
			}
			continue
		case udt >= 0:
			if st.is("end", "type") {
				sc.decls[udt].spec.Body = span(sc.decls[udt].spec.Body, st)
				udt = -1
				continue
			}
			if t := st.toks[0]; t.Kind == tokens.Identifier {
				asType, typeToks := typeAfterAs(st.toks)
				sc.add(declarations.Spec{
					Name:          sc.name(t),
					Kind:          declarations.KindUserDefinedTypeMember,
					Accessibility: sc.decls[udt].spec.Accessibility,
					AsType:        asType,
					Selection:     selectionOf(t),
					TokenIndex:    t.Index,
					Body:          span(selectionOf(t), st),
				}, udt)
				sc.typeUses(typeToks, -1)
			}
			continue
		case proc >= 0:
			if st.is("end", "sub") || st.is("end", "function") || st.is("end", "property") {
				sc.decls[proc].spec.Body = span(lineSelection(procStart), st)
				proc = -1
				continue
			}
			sc.procedureStatement(st, proc)
			continue
		}

		i := 0
		acc := declarations.Accessibility(0)
		if a, ok := declarations.ParseAccessibility(st.word(0)); ok {
			acc = a
			i++
		}
		if st.word(i) == "static" {
			i++
		}
		switch st.word(i) {
		case "sub", "function", "property":
			if idx := sc.procedure(st, i, acc, false); idx >= 0 {
				proc, procStart = idx, st
			}
		case "declare":
			j := i + 1
			if st.word(j) == "ptrsafe" {
				j++
			}
			sc.procedure(st, j, acc, true)
		case "event":
			sc.event(st, i+1, acc)
		case "enum":
			enum = sc.typeDeclaration(st, i+1, acc, declarations.KindEnumeration)
		case "type":
			udt = sc.typeDeclaration(st, i+1, acc, declarations.KindUserDefinedType)
		case "const":
			if acc == 0 {
				acc = declarations.AccessibilityPrivate
			}
			sc.constants(st, i+1, acc, -1)
		case "dim":
			sc.variables(st, i+1, declarations.AccessibilityPrivate, -1)
		case "implements":
			if i+1 < len(st.toks) {
				t := st.toks[i+1]
				sc.implements = append(sc.implements, t)
				sc.typeUses(st.toks[i+1:], -1)
			}
		case "option", "attribute":
		default:
			if acc != 0 {
				sc.variables(st, i, acc, -1)
			}
		}
	}
	if proc >= 0 {
		// unterminated procedure: it runs to the end of the module
		sc.decls[proc].spec.Body = span(lineSelection(procStart), last)
	}
}

// named reports whether st.toks[i] is a usable declaration name. A reserved
// word in that position is remembered so the parser can report it.
func (sc *moduleScan) named(st statement, i int) bool {
	if i >= len(st.toks) {
		return false
	}
	switch st.toks[i].Kind {
	case tokens.Identifier:
		return true
	case tokens.Keyword:
		sc.reserved = append(sc.reserved, st.toks[i])
	}
	return false
}

// procedure declares a Sub, Function, Property or Declare at st.toks[i].
// It returns the declaration index, or -1 when the statement is malformed.
func (sc *moduleScan) procedure(st statement, i int, acc declarations.Accessibility, external bool) int {
	var kind declarations.Kind
	switch st.word(i) {
	case "sub":
		kind = declarations.KindProcedure
	case "function":
		kind = declarations.KindFunction
	case "property":
		i++
		switch st.word(i) {
		case "get":
			kind = declarations.KindPropertyGet
		case "let":
			kind = declarations.KindPropertyLet
		case "set":
			kind = declarations.KindPropertySet
		default:
			return -1
		}
	default:
		return -1
	}
	if !sc.named(st, i+1) {
		return -1
	}
	nameTok := st.toks[i+1]

	open := -1
	for j := i + 2; j < len(st.toks); j++ {
		if st.toks[j].Text == "(" {
			open = j
			break
		}
	}
	var params, rest []tokens.Token
	if open >= 0 {
		if closing := matchingParen(st.toks, open); closing > open {
			params = st.toks[open+1 : closing]
			rest = st.toks[closing+1:]
		}
	}

	asType, typeToks := typeAfterAs(rest)
	if asType == "" {
		if t, ok := SuffixType(nameTok.Text); ok {
			asType = t
		} else if kind == declarations.KindFunction || kind == declarations.KindPropertyGet {
			asType = "Variant"
		}
	}

	body := lineSelection(st)
	if !external {
		body = declarations.Selection{}
	}
	idx := sc.add(declarations.Spec{
		Name:          sc.name(nameTok),
		Kind:          kind,
		Accessibility: acc,
		AsType:        asType,
		Selection:     selectionOf(nameTok),
		TokenIndex:    nameTok.Index,
		Body:          body,
		Annotations:   sc.annotationsFor(st.firstLine),
	}, -1)
	sc.typeUses(typeToks, -1)
	sc.parameters(params, idx)
	return idx
}

func (sc *moduleScan) parameters(params []tokens.Token, parent int) {
	for _, part := range splitTopLevel(params) {
		var nameTok *tokens.Token
		for k := range part {
			if part[k].Kind == tokens.Identifier {
				nameTok = &part[k]
				break
			}
			if part[k].Kind != tokens.Keyword {
				break
			}
		}
		if nameTok == nil {
			continue
		}
		asType, typeToks := typeAfterAs(part)
		if asType == "" {
			asType = suffixOrVariant(nameTok.Text)
		}
		sc.add(declarations.Spec{
			Name:          sc.name(*nameTok),
			Kind:          declarations.KindParameter,
			Accessibility: declarations.AccessibilityImplicit,
			AsType:        asType,
			Selection:     selectionOf(*nameTok),
			TokenIndex:    nameTok.Index,
		}, parent)
		sc.typeUses(typeToks, parent)
		sc.collectUses(afterEquals(part), parent)
	}
}

func (sc *moduleScan) event(st statement, i int, acc declarations.Accessibility) {
	if !sc.named(st, i) {
		return
	}
	nameTok := st.toks[i]
	idx := sc.add(declarations.Spec{
		Name:          sc.name(nameTok),
		Kind:          declarations.KindEvent,
		Accessibility: acc,
		Selection:     selectionOf(nameTok),
		TokenIndex:    nameTok.Index,
		Body:          lineSelection(st),
		Annotations:   sc.annotationsFor(st.firstLine),
	}, -1)
	if i+1 < len(st.toks) && st.toks[i+1].Text == "(" {
		if closing := matchingParen(st.toks, i+1); closing > i+1 {
			sc.parameters(st.toks[i+2:closing], idx)
		}
	}
}

func (sc *moduleScan) typeDeclaration(st statement, i int, acc declarations.Accessibility, kind declarations.Kind) int {
	if !sc.named(st, i) {
		return -1
	}
	nameTok := st.toks[i]
	return sc.add(declarations.Spec{
		Name:          sc.name(nameTok),
		Kind:          kind,
		Accessibility: acc,
		AsType:        identName(nameTok),
		Selection:     selectionOf(nameTok),
		TokenIndex:    nameTok.Index,
		Body:          lineSelection(st),
		Annotations:   sc.annotationsFor(st.firstLine),
	}, -1)
}

func (sc *moduleScan) variables(st statement, i int, acc declarations.Accessibility, parent int) {
	if i >= len(st.toks) {
		return
	}
	for _, part := range splitTopLevel(st.toks[i:]) {
		if len(part) > 0 && strings.EqualFold(part[0].Text, "withevents") {
			part = part[1:]
		}
		if len(part) == 0 || part[0].Kind != tokens.Identifier {
			continue
		}
		nameTok := part[0]
		asType, typeToks := typeAfterAs(part)
		if asType == "" {
			asType = suffixOrVariant(nameTok.Text)
		}
		sc.add(declarations.Spec{
			Name:          sc.name(nameTok),
			Kind:          declarations.KindVariable,
			Accessibility: acc,
			AsType:        asType,
			Selection:     selectionOf(nameTok),
			TokenIndex:    nameTok.Index,
			Body:          lineSelection(st),
			Annotations:   sc.annotationsFor(st.firstLine),
		}, parent)
		sc.typeUses(typeToks, parent)
		if len(part) > 1 && part[1].Text == "(" {
			if closing := matchingParen(part, 1); closing > 1 {
				sc.collectUses(part[2:closing], parent)
			}
		}
	}
}

func (sc *moduleScan) constants(st statement, i int, acc declarations.Accessibility, parent int) {
	if i >= len(st.toks) {
		return
	}
	for _, part := range splitTopLevel(st.toks[i:]) {
		if len(part) == 0 || part[0].Kind != tokens.Identifier {
			continue
		}
		nameTok := part[0]
		asType, typeToks := typeAfterAs(part)
		if asType == "" {
			asType = suffixOrVariant(nameTok.Text)
		}
		sc.add(declarations.Spec{
			Name:          sc.name(nameTok),
			Kind:          declarations.KindConstant,
			Accessibility: acc,
			AsType:        asType,
			Selection:     selectionOf(nameTok),
			TokenIndex:    nameTok.Index,
			Body:          lineSelection(st),
			Annotations:   sc.annotationsFor(st.firstLine),
		}, parent)
		sc.typeUses(typeToks, parent)
		sc.collectUses(afterEquals(part), parent)
	}
}

// procedureStatement handles one statement inside a procedure body.
func (sc *moduleScan) procedureStatement(st statement, proc int) {
	switch {
	case st.is("dim"), st.is("static"):
		sc.variables(st, 1, declarations.AccessibilityImplicit, proc)
	case st.is("const"):
		sc.constants(st, 1, declarations.AccessibilityImplicit, proc)
	default:
		sc.collectUses(st.toks, proc)
	}
}

// collectUses records identifier occurrences. Member accesses on anything but
// a plain identifier are skipped since they cannot be resolved statically.
func (sc *moduleScan) collectUses(toks []tokens.Token, scope int) {
	for k, t := range toks {
		if t.Kind != tokens.Identifier {
			continue
		}
		if k > 0 && (toks[k-1].Text == "." || toks[k-1].Text == "!") {
			if toks[k-1].Text == "." && k > 1 && (toks[k-2].Kind == tokens.Identifier || strings.EqualFold(toks[k-2].Text, "me")) {
				q := toks[k-2]
				sc.uses = append(sc.uses, use{tok: t, scope: scope, qualifier: &q})
			}
			continue
		}
		typeOnly := k > 0 && (strings.EqualFold(toks[k-1].Text, "new") || strings.EqualFold(toks[k-1].Text, "as"))
		sc.uses = append(sc.uses, use{tok: t, scope: scope, typeOnly: typeOnly})
	}
}

func (sc *moduleScan) typeUses(typeToks []tokens.Token, scope int) {
	for k, t := range typeToks {
		if t.Kind != tokens.Identifier {
			continue
		}
		if k > 1 && typeToks[k-1].Text == "." {
			q := typeToks[k-2]
			sc.uses = append(sc.uses, use{tok: t, scope: scope, qualifier: &q, typeOnly: true})
			continue
		}
		sc.uses = append(sc.uses, use{tok: t, scope: scope, typeOnly: true})
	}
}

func afterEquals(toks []tokens.Token) []tokens.Token {
	for k, t := range toks {
		if t.Text == "=" {
			return toks[k+1:]
		}
	}
	return nil
}

func suffixOrVariant(identifier string) string {
	if t, ok := SuffixType(identifier); ok {
		return t
	}
	return "Variant"
}

// identName strips brackets from [escaped] identifiers.
func identName(t tokens.Token) string {
	if strings.HasPrefix(t.Text, "[") && strings.HasSuffix(t.Text, "]") {
		return t.Text[1 : len(t.Text)-1]
	}
	return t.Text
}

func selectionOf(t tokens.Token) declarations.Selection {
	return declarations.Selection{StartLine: t.Line, StartColumn: t.Column, EndLine: t.Line, EndColumn: t.EndColumn()}
}

func lineSelection(st statement) declarations.Selection {
	sel := declarations.Selection{StartLine: st.firstLine, StartColumn: 1, EndLine: st.lastLine, EndColumn: 1}
	if n := len(st.toks); n > 0 {
		sel.EndLine = st.toks[n-1].Line
		sel.EndColumn = st.toks[n-1].EndColumn()
	}
	return sel
}

// span extends from's start to the end of st.
func span(from declarations.Selection, st statement) declarations.Selection {
	end := lineSelection(st)
	if from.IsZero() {
		from = end
	}
	return declarations.Selection{StartLine: from.StartLine, StartColumn: from.StartColumn, EndLine: end.EndLine, EndColumn: end.EndColumn}
}
