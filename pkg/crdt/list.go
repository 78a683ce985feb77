package crdt

import (
	"math/big"
	"sort"
)

// Position is a stable rational-number position within a List. Inserting
// between two neighbors always yields a position strictly between them
// without renumbering any existing element, since the rationals are dense.
type Position struct {
	rat *big.Rat
}

func newPosition(r *big.Rat) Position { return Position{rat: r} }

// Cmp orders two positions; it panics if either is the zero Position.
func (p Position) Cmp(other Position) int { return p.rat.Cmp(other.rat) }

// String renders the position as "num/den" (just "num" when the
// denominator is 1) for display and for the JSON encoding of list items.
func (p Position) String() string {
	if p.rat == nil {
		return "0/1"
	}
	return p.rat.RatString()
}

// ParsePosition parses a position previously produced by String.
func ParsePosition(s string) (Position, bool) {
	r := new(big.Rat)
	if _, ok := r.SetString(s); !ok {
		return Position{}, false
	}
	return Position{rat: r}, true
}

func midpoint(a, b *big.Rat) *big.Rat {
	sum := new(big.Rat).Add(a, b)
	return sum.Quo(sum, big.NewRat(2, 1))
}

type listItem struct {
	pos   Position
	value Value
}

// List is an ordered sequence of values keyed by rational Position. Equal
// positions from concurrent inserts merge their values recursively; the
// visible order is always by ascending position.
type List struct {
	items []listItem
}

func newList() *List { return &List{} }

func (l *List) clone() *List {
	out := &List{items: make([]listItem, len(l.items))}
	for i, it := range l.items {
		out.items[i] = listItem{pos: it.pos, value: it.value.Clone()}
	}
	return out
}

func (l *List) equal(other *List) bool {
	if other == nil {
		return len(l.items) == 0
	}
	if len(l.items) != len(other.items) {
		return false
	}
	for i, it := range l.items {
		o := other.items[i]
		if it.pos.Cmp(o.pos) != 0 || !Equal(it.value, o.value) {
			return false
		}
	}
	return true
}

// Len returns the number of items in the list.
func (l *List) Len() int { return len(l.items) }

// At returns the value at visible index i.
func (l *List) At(i int) Value { return l.items[i].value }

// PositionAt returns the position of the item at visible index i.
func (l *List) PositionAt(i int) Position { return l.items[i].pos }

// ToSlice returns the list's values in order.
func (l *List) ToSlice() []Value {
	out := make([]Value, len(l.items))
	for i, it := range l.items {
		out[i] = it.value
	}
	return out
}

func (l *List) insertSorted(pos Position, val Value) {
	i := sort.Search(len(l.items), func(i int) bool { return l.items[i].pos.Cmp(pos) >= 0 })
	if i < len(l.items) && l.items[i].pos.Cmp(pos) == 0 {
		l.items[i].value = Merge(l.items[i].value, val)
		return
	}
	l.items = append(l.items, listItem{})
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = listItem{pos: pos, value: val}
}

// Append adds val after every existing element and returns its position.
func (l *List) Append(val Value) Position {
	var pos Position
	if len(l.items) == 0 {
		pos = newPosition(big.NewRat(1, 1))
	} else {
		last := l.items[len(l.items)-1].pos.rat
		pos = newPosition(new(big.Rat).Add(last, big.NewRat(1, 1)))
	}
	l.insertSorted(pos, val)
	return pos
}

// InsertBetween inserts val strictly between before and after and returns
// its position. Pass a zero Position for before to insert at the head, or
// for after to insert at the tail.
func (l *List) InsertBetween(before, after Position, val Value) Position {
	var pos Position
	switch {
	case before.rat == nil && after.rat == nil:
		pos = newPosition(big.NewRat(1, 1))
	case before.rat == nil:
		pos = newPosition(new(big.Rat).Quo(after.rat, big.NewRat(2, 1)))
	case after.rat == nil:
		pos = newPosition(new(big.Rat).Add(before.rat, big.NewRat(1, 1)))
	default:
		pos = newPosition(midpoint(before.rat, after.rat))
	}
	l.insertSorted(pos, val)
	return pos
}

// MergeLists unions two lists by position: items present in only one side
// are carried as-is, items at equal positions merge recursively, and the
// result is ordered by position.
func MergeLists(a, b *List) *List {
	out := &List{}
	ai, bi := 0, 0
	for ai < len(a.items) || bi < len(b.items) {
		switch {
		case ai >= len(a.items):
			out.items = append(out.items, b.items[bi])
			bi++
		case bi >= len(b.items):
			out.items = append(out.items, a.items[ai])
			ai++
		default:
			cmp := a.items[ai].pos.Cmp(b.items[bi].pos)
			switch {
			case cmp < 0:
				out.items = append(out.items, a.items[ai])
				ai++
			case cmp > 0:
				out.items = append(out.items, b.items[bi])
				bi++
			default:
				out.items = append(out.items, listItem{
					pos:   a.items[ai].pos,
					value: Merge(a.items[ai].value, b.items[bi].value),
				})
				ai++
				bi++
			}
		}
	}
	return out
}
