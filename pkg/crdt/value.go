// Package crdt implements Eidetica's recursive CRDT value model: a value is
// text, a nested map, an ordered list, or a tombstone. Merge is recursive,
// deterministic, and idempotent; see merge.go for the merge law.
package crdt

import "sort"

// Kind discriminates the variant a Value holds.
type Kind int

const (
	KindText Kind = iota
	KindMap
	KindList
	KindDeleted
)

// Value is the tagged union every CRDT-backed subtree stores: Text, Map,
// List, or a Deleted tombstone. The zero Value is an empty Text leaf
// (KindText is the zero Kind); use Deleted to build a tombstone.
type Value struct {
	kind Kind
	text string
	m    map[string]Value
	list *List
}

// NewText constructs a Text leaf. Merge of two Text values is last-writer-
// wins at the leaf.
func NewText(s string) Value { return Value{kind: KindText, text: s} }

// NewMap constructs an empty Map value.
func NewMap() Value { return Value{kind: KindMap, m: make(map[string]Value)} }

// NewList constructs an empty List value.
func NewList() Value { return Value{kind: KindList, list: newList()} }

// Deleted constructs a tombstone value.
func Deleted() Value { return Value{kind: KindDeleted} }

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsText() bool    { return v.kind == KindText }
func (v Value) IsMap() bool     { return v.kind == KindMap }
func (v Value) IsList() bool    { return v.kind == KindList }
func (v Value) IsDeleted() bool { return v.kind == KindDeleted }

// AsText returns the text and true if v is a Text value.
func (v Value) AsText() (string, bool) {
	if v.kind != KindText {
		return "", false
	}
	return v.text, true
}

// AsList returns the underlying list and true if v is a List value.
func (v Value) AsList() (*List, bool) {
	if v.kind != KindList {
		return nil, false
	}
	return v.list, true
}

// Keys returns the sorted key set of a Map value, including tombstoned
// keys. Calling Keys on a non-Map value returns nil.
func (v Value) Keys() []string {
	if v.kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(v.m))
	for k := range v.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value at key, or (_, false) if the key is missing OR
// tombstoned. Use Raw to observe tombstones.
func (v Value) Get(key string) (Value, bool) {
	raw, ok := v.Raw(key)
	if !ok || raw.IsDeleted() {
		return Value{}, false
	}
	return raw, true
}

// Raw returns the value at key including tombstones; it only reports false
// when the key has never been set.
func (v Value) Raw(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	val, ok := v.m[key]
	return val, ok
}

// Set assigns key to val on a Map value. Calling Set on a non-Map value is
// a programming error and panics; callers must check IsMap first (or use
// NewMap to build a fresh map).
func (v *Value) Set(key string, val Value) {
	if v.kind != KindMap {
		panic("crdt: Set called on non-Map value")
	}
	v.m[key] = val
}

// Remove writes a tombstone at key. It returns true if this removed a live
// (non-tombstone, previously-set) value; removing an absent key or an
// already-tombstoned key is idempotent and returns false.
func (v *Value) Remove(key string) bool {
	if v.kind != KindMap {
		panic("crdt: Remove called on non-Map value")
	}
	existing, ok := v.m[key]
	wasLive := ok && !existing.IsDeleted()
	v.m[key] = Deleted()
	return wasLive
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		out := NewMap()
		for k, val := range v.m {
			out.m[k] = val.Clone()
		}
		return out
	case KindList:
		return Value{kind: KindList, list: v.list.clone()}
	default:
		return v
	}
}

// Equal reports deep structural equality.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindText:
		return a.text == b.text
	case KindDeleted:
		return true
	case KindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindList:
		return a.list.equal(b.list)
	default:
		return false
	}
}
