package subtree

import (
	"github.com/arcuru/eidetica/pkg/atomicop"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/tree"
)

// Dictionary is the required string-keyed map adapter from spec §4.7.
type Dictionary struct {
	src source
}

// NewDictionary returns a mutable handle over name, staged against op.
func NewDictionary(op *atomicop.AtomicOp, name string) *Dictionary {
	return &Dictionary{src: opSource{op: op, name: name}}
}

// NewDictionaryViewer returns a read-only handle folded at t's current tips.
func NewDictionaryViewer(t *tree.Tree, name string) *Dictionary {
	return &Dictionary{src: viewerSource{tree: t, name: name}}
}

func (d *Dictionary) root() (crdt.Value, error) {
	root, err := d.src.read()
	if err != nil {
		return crdt.Value{}, err
	}
	if !root.IsMap() {
		return crdt.Value{}, eideticaerr.New(eideticaerr.TypeMismatch, "dictionary root is not a map")
	}
	return root, nil
}

// Get returns the CRDT value at key.
func (d *Dictionary) Get(key string) (crdt.Value, error) {
	root, err := d.root()
	if err != nil {
		return crdt.Value{}, err
	}
	v, ok := root.Get(key)
	if !ok {
		return crdt.Value{}, eideticaerr.New(eideticaerr.NotFound, "key %q not found", key).WithKey(key)
	}
	return v, nil
}

// GetString returns the text value at key, or TypeMismatch if it isn't text.
func (d *Dictionary) GetString(key string) (string, error) {
	v, err := d.Get(key)
	if err != nil {
		return "", err
	}
	s, ok := v.AsText()
	if !ok {
		return "", eideticaerr.New(eideticaerr.TypeMismatch, "key %q is not text", key).WithKey(key)
	}
	return s, nil
}

// Set writes a text value at key.
func (d *Dictionary) Set(key, value string) error {
	return d.SetValue(key, crdt.NewText(value))
}

// SetValue writes an arbitrary CRDT value at key.
func (d *Dictionary) SetValue(key string, value crdt.Value) error {
	root, err := d.root()
	if err != nil {
		return err
	}
	root.Set(key, value)
	return d.src.write(root)
}

// Delete writes a tombstone at key, reporting whether a live value was
// removed.
func (d *Dictionary) Delete(key string) (bool, error) {
	root, err := d.root()
	if err != nil {
		return false, err
	}
	removed := root.Remove(key)
	if err := d.src.write(root); err != nil {
		return false, err
	}
	return removed, nil
}

// GetAll returns every live (non-tombstoned) key/value pair.
func (d *Dictionary) GetAll() (map[string]crdt.Value, error) {
	root, err := d.root()
	if err != nil {
		return nil, err
	}
	out := make(map[string]crdt.Value)
	for _, k := range root.Keys() {
		if v, ok := root.Get(k); ok {
			out[k] = v
		}
	}
	return out, nil
}

// GetList returns the list value at key.
func (d *Dictionary) GetList(key string) (*crdt.List, error) {
	v, err := d.Get(key)
	if err != nil {
		return nil, err
	}
	l, ok := v.AsList()
	if !ok {
		return nil, eideticaerr.New(eideticaerr.TypeMismatch, "key %q is not a list", key).WithKey(key)
	}
	return l, nil
}

// SetList writes a list value at key.
func (d *Dictionary) SetList(key string, list crdt.Value) error {
	if !list.IsList() {
		return eideticaerr.New(eideticaerr.InvalidOperation, "SetList requires a list value")
	}
	return d.SetValue(key, list)
}

// GetAtPath resolves a nested path of map keys from the dictionary root.
func (d *Dictionary) GetAtPath(path []string) (crdt.Value, bool, error) {
	root, err := d.root()
	if err != nil {
		return crdt.Value{}, false, err
	}
	return crdt.GetAtPath(root, path)
}

// SetAtPath writes val at a nested path, creating intermediate maps.
func (d *Dictionary) SetAtPath(path []string, val crdt.Value) error {
	root, err := d.root()
	if err != nil {
		return err
	}
	if err := crdt.SetAtPath(&root, path, val); err != nil {
		return err
	}
	return d.src.write(root)
}

// GetValueMut returns a path editor rooted at key for nested edits.
func (d *Dictionary) GetValueMut(key string) *PathEditor {
	return &PathEditor{src: d.src, path: []string{key}}
}

// GetRootMut returns a path editor rooted at the dictionary's own root.
func (d *Dictionary) GetRootMut() *PathEditor {
	return &PathEditor{src: d.src, path: nil}
}
