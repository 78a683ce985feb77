package subtree

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"

	"github.com/arcuru/eidetica/pkg/atomicop"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/tree"
)

// Table is the primary-keyed record store from spec §4.7, parameterized by
// a record type that round-trips through encoding/json.
type Table[R any] struct {
	dict *Dictionary
}

// NewTable returns a mutable handle over name, staged against op.
func NewTable[R any](op *atomicop.AtomicOp, name string) *Table[R] {
	return &Table[R]{dict: NewDictionary(op, name)}
}

// NewTableViewer returns a read-only handle folded at t's current tips.
func NewTableViewer[R any](t *tree.Tree, name string) *Table[R] {
	return &Table[R]{dict: NewDictionaryViewer(t, name)}
}

// TableEntry pairs a primary key with its decoded record, as returned by
// Search.
type TableEntry[R any] struct {
	Key    string
	Record R
}

// Insert generates a fresh UUID primary key, stores record under it, and
// returns the key.
func (t *Table[R]) Insert(record R) (string, error) {
	key := uuid.New().String()
	val, err := recordToValue(record)
	if err != nil {
		return "", err
	}
	if err := t.dict.SetValue(key, val); err != nil {
		return "", err
	}
	return key, nil
}

// Get decodes the record stored under key.
func (t *Table[R]) Get(key string) (R, error) {
	var zero R
	v, err := t.dict.Get(key)
	if err != nil {
		return zero, err
	}
	return recordFromValue[R](v)
}

// Set overwrites the record stored under key.
func (t *Table[R]) Set(key string, record R) error {
	val, err := recordToValue(record)
	if err != nil {
		return err
	}
	return t.dict.SetValue(key, val)
}

// Search scans every live record, in key order, and returns those passing
// predicate.
func (t *Table[R]) Search(predicate func(R) bool) ([]TableEntry[R], error) {
	all, err := t.dict.GetAll()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []TableEntry[R]
	for _, k := range keys {
		record, err := recordFromValue[R](all[k])
		if err != nil {
			continue
		}
		if predicate(record) {
			out = append(out, TableEntry[R]{Key: k, Record: record})
		}
	}
	return out, nil
}

func recordToValue[R any](record R) (crdt.Value, error) {
	b, err := json.Marshal(record)
	if err != nil {
		return crdt.Value{}, eideticaerr.Wrap(eideticaerr.SerializationFailed, err, "marshal table record")
	}
	v := crdt.NewMap()
	v.Set("json", crdt.NewText(string(b)))
	return v, nil
}

func recordFromValue[R any](v crdt.Value) (R, error) {
	var zero R
	if !v.IsMap() {
		return zero, eideticaerr.New(eideticaerr.TypeMismatch, "table record is not a map")
	}
	field, ok := v.Get("json")
	if !ok {
		return zero, eideticaerr.New(eideticaerr.DeserializationFailed, "table record missing json field")
	}
	s, ok := field.AsText()
	if !ok {
		return zero, eideticaerr.New(eideticaerr.DeserializationFailed, "table record json field is not text")
	}
	var record R
	if err := json.Unmarshal([]byte(s), &record); err != nil {
		return zero, eideticaerr.Wrap(eideticaerr.DeserializationFailed, err, "unmarshal table record")
	}
	return record, nil
}
