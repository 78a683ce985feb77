package subtree

import (
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
)

// PathEditor edits a nested location within a Dictionary's root map,
// returned by GetValueMut/GetRootMut. Every read re-reads the source so a
// chain of Child calls always sees the handle's latest staged state.
type PathEditor struct {
	src  source
	path []string
}

// Child returns an editor for the nested path one level deeper.
func (p *PathEditor) Child(key string) *PathEditor {
	child := append(append([]string(nil), p.path...), key)
	return &PathEditor{src: p.src, path: child}
}

// Get returns the value at this editor's path.
func (p *PathEditor) Get() (crdt.Value, bool, error) {
	root, err := p.src.read()
	if err != nil {
		return crdt.Value{}, false, err
	}
	return crdt.GetAtPath(root, p.path)
}

// Set writes val at this editor's path, creating intermediate maps as
// needed. Setting a non-map value at the dictionary root is rejected with
// InvalidOperation.
func (p *PathEditor) Set(val crdt.Value) error {
	root, err := p.src.read()
	if err != nil {
		return err
	}
	if err := crdt.SetAtPath(&root, p.path, val); err != nil {
		return err
	}
	return p.src.write(root)
}

// DeleteSelf writes a tombstone at this editor's own path. Deleting the
// dictionary root itself (an empty path) is rejected.
func (p *PathEditor) DeleteSelf() error {
	if len(p.path) == 0 {
		return eideticaerr.New(eideticaerr.InvalidOperation, "cannot delete the dictionary root itself")
	}
	root, err := p.src.read()
	if err != nil {
		return err
	}
	parentPath, key := p.path[:len(p.path)-1], p.path[len(p.path)-1]
	parent, ok, err := crdt.GetAtPath(root, parentPath)
	if err != nil {
		return err
	}
	if !ok || !parent.IsMap() {
		return nil
	}
	parent.Remove(key)
	return p.src.write(root)
}

// DeleteChild writes a tombstone at this editor's path plus key.
func (p *PathEditor) DeleteChild(key string) error {
	return p.Child(key).DeleteSelf()
}
