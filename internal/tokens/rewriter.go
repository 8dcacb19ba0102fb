package tokens

import (
	"strings"

	"ducklint/internal/errors"
)

type opKind int

const (
	opInsert opKind = iota
	opReplace
	// opReset supersedes every earlier op.
	opReset
	// opAmend changes the text of the op named by target.
	opAmend
)

type op struct {
	id     Edit
	kind   opKind
	from   int
	to     int
	text   string
	target Edit
}

// Edit identifies one buffered edit. Identities are never reused, so an edit
// dropped by RollbackTo stays unknown.
type Edit uint64

// Rewriter buffers edits against a Stream without touching it. Edits address
// token indexes of the original stream, so earlier edits never shift later ones.
type Rewriter struct {
	stream *Stream
	ops    []op
	last   Edit
}

// NewRewriter returns an empty edit buffer over s.
func NewRewriter(s *Stream) *Rewriter {
	return &Rewriter{stream: s}
}

// Stream returns the stream the buffer edits.
func (r *Rewriter) Stream() *Stream { return r.stream }

// HasEdits reports whether any edit is buffered.
func (r *Rewriter) HasEdits() bool { return len(r.ops) > 0 }

// LastEdit returns the most recent buffered edit, or 0 when there is none.
func (r *Rewriter) LastEdit() Edit {
	if len(r.ops) == 0 {
		return 0
	}
	return r.ops[len(r.ops)-1].id
}

// HasEdit reports whether e is buffered and not superseded by ReplaceAll.
func (r *Rewriter) HasEdit(e Edit) bool {
	for _, o := range r.live() {
		if o.id == e && (o.kind == opInsert || o.kind == opReplace) {
			return true
		}
	}
	return false
}

// Amend changes the text of an earlier insert or replace. The amendment is
// an edit of its own: rolling back past it restores the previous text.
func (r *Rewriter) Amend(e Edit, text string) error {
	if !r.HasEdit(e) {
		return errors.Newf(errors.InvalidEdit, "edit %d is not buffered", e)
	}
	r.push(op{kind: opAmend, target: e, text: text})
	return nil
}

func (r *Rewriter) push(o op) {
	r.last++
	o.id = r.last
	r.ops = append(r.ops, o)
}

// live returns the ops after the last reset.
func (r *Rewriter) live() []op {
	for i := len(r.ops) - 1; i >= 0; i-- {
		if r.ops[i].kind == opReset {
			return r.ops[i+1:]
		}
	}
	return r.ops
}

// InsertBefore inserts text before token index. index may equal Len() to
// append at the end.
func (r *Rewriter) InsertBefore(index int, text string) error {
	if index < 0 || index > r.stream.Len() {
		return errors.Newf(errors.InvalidEdit, "insert position %d out of range [0,%d]", index, r.stream.Len())
	}
	for _, o := range r.live() {
		if o.kind == opReplace && index > o.from && index <= o.to {
			return errors.Newf(errors.InvalidEdit, "insert at %d falls inside replaced range %d..%d", index, o.from, o.to)
		}
	}
	r.push(op{kind: opInsert, from: index, to: index, text: text})
	return nil
}

// InsertAfter inserts text after token index.
func (r *Rewriter) InsertAfter(index int, text string) error {
	if index < 0 || index >= r.stream.Len() {
		return errors.Newf(errors.InvalidEdit, "insert-after position %d out of range", index)
	}
	return r.InsertBefore(index+1, text)
}

// Replace substitutes tokens [from, to] with text.
func (r *Rewriter) Replace(from, to int, text string) error {
	if from < 0 || to < from || to >= r.stream.Len() {
		return errors.Newf(errors.InvalidEdit, "replace range %d..%d out of range", from, to)
	}
	for _, o := range r.live() {
		switch o.kind {
		case opReplace:
			if from <= o.to && o.from <= to {
				return errors.Newf(errors.InvalidEdit, "replace %d..%d overlaps %d..%d", from, to, o.from, o.to)
			}
		case opInsert:
			if o.from > from && o.from <= to {
				return errors.Newf(errors.InvalidEdit, "replace %d..%d swallows insert at %d", from, to, o.from)
			}
		}
	}
	r.push(op{kind: opReplace, from: from, to: to, text: text})
	return nil
}

// ReplaceToken substitutes a single token.
func (r *Rewriter) ReplaceToken(index int, text string) error {
	return r.Replace(index, index, text)
}

// Remove deletes tokens [from, to].
func (r *Rewriter) Remove(from, to int) error {
	return r.Replace(from, to, "")
}

// ReplaceAll supersedes buffered edits and replaces the whole stream with
// text. Rolling back to a checkpoint taken before it brings the earlier edits
// back.
func (r *Rewriter) ReplaceAll(text string) error {
	r.push(op{kind: opReset})
	if r.stream.Len() == 0 {
		return r.InsertBefore(0, text)
	}
	return r.Replace(0, r.stream.Len()-1, text)
}

// Checkpoint marks the current buffer state.
func (r *Rewriter) Checkpoint() int { return len(r.ops) }

// RollbackTo drops edits made after checkpoint.
func (r *Rewriter) RollbackTo(checkpoint int) {
	if checkpoint >= 0 && checkpoint < len(r.ops) {
		r.ops = r.ops[:checkpoint]
	}
}

// Text renders the stream with all buffered edits applied.
func (r *Rewriter) Text() string {
	ops := r.live()
	if len(ops) == 0 {
		return r.stream.Source()
	}
	amended := make(map[Edit]string)
	for _, o := range ops {
		if o.kind == opAmend {
			amended[o.target] = o.text
		}
	}
	inserts := make(map[int][]string)
	replaces := make(map[int]op)
	for _, o := range ops {
		if text, ok := amended[o.id]; ok {
			o.text = text
		}
		switch o.kind {
		case opInsert:
			inserts[o.from] = append(inserts[o.from], o.text)
		case opReplace:
			replaces[o.from] = o
		}
	}

	var b strings.Builder
	n := r.stream.Len()
	for i := 0; i < n; {
		for _, s := range inserts[i] {
			b.WriteString(s)
		}
		if o, ok := replaces[i]; ok {
			b.WriteString(o.text)
			i = o.to + 1
			continue
		}
		b.WriteString(r.stream.tokens[i].Text)
		i++
	}
	for _, s := range inserts[n] {
		b.WriteString(s)
	}
	return b.String()
}
