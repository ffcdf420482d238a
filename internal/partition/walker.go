package partition

import "iter"

// Cursor is a position in a partition table. Implementations return a nil
// Cursor from Next once the table is exhausted.
type Cursor interface {
	Record() RawRecord
	Next() Cursor
}

// Table is a partition table provider. Find returns nil when no entry matches.
// TypeAny, SubTypeAny and an empty label act as wildcards.
type Table interface {
	Find(typ, subType uint8, label string) Cursor
}

// State is the position of a Walker in its one-shot traversal.
type State int

const (
	NotStarted State = iota
	Positioned
	Exhausted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Positioned:
		return "positioned"
	case Exhausted:
		return "exhausted"
	default:
		return "invalid"
	}
}

// Walker visits every entry of a Table in cursor order.
type Walker struct {
	table  Table
	cursor Cursor
	state  State
}

// NewWalker creates a walker over all entries of t.
func NewWalker(t Table) *Walker {
	return &Walker{table: t}
}

// State returns the current traversal state.
func (w *Walker) State() State {
	return w.state
}

// Next decodes the entry under the cursor and advances. ok is false once the
// table is exhausted.
func (w *Walker) Next() (rec Record, ok bool) {
	switch w.state {
	case NotStarted:
		w.cursor = w.table.Find(TypeAny, SubTypeAny, "")
	case Positioned:
		w.cursor = w.cursor.Next()
	case Exhausted:
		return Record{}, false
	}

	if w.cursor == nil {
		w.state = Exhausted
		return Record{}, false
	}

	w.state = Positioned
	return Decode(w.cursor.Record()), true
}

// Walk calls visit for each remaining entry and returns how many were visited.
func (w *Walker) Walk(visit func(Record)) int {
	n := 0
	for {
		rec, ok := w.Next()
		if !ok {
			return n
		}
		visit(rec)
		n++
	}
}

// All returns the decoded entries of t as a sequence.
func All(t Table) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		w := NewWalker(t)
		for {
			rec, ok := w.Next()
			if !ok || !yield(rec) {
				return
			}
		}
	}
}
