// Package subtree implements the typed view layer over crdt.Value: a
// Dictionary (string-keyed map view) and a generic Table[R] (UUID-primary-
// keyed record store), each usable in two modes — a mutable handle bound to
// an open AtomicOp, or a read-only viewer bound to a Tree's current tips.
package subtree

import (
	"github.com/arcuru/eidetica/pkg/atomicop"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/tree"
)

// source is the read/write primitive every adapter is built on: read
// returns the subtree's current value (staged, for a mutable handle; a
// fresh fold at current tips, for a viewer); write stages a replacement
// value, or fails with RequiresAtomicOperation for a viewer.
type source interface {
	read() (crdt.Value, error)
	write(crdt.Value) error
}

type opSource struct {
	op   *atomicop.AtomicOp
	name string
}

func (s opSource) read() (crdt.Value, error) { return s.op.SubtreeValue(s.name), nil }

func (s opSource) write(v crdt.Value) error {
	s.op.SetSubtreeValue(s.name, v)
	return nil
}

type viewerSource struct {
	tree *tree.Tree
	name string
}

func (s viewerSource) read() (crdt.Value, error) { return s.tree.GetSubtreeViewer(s.name) }

func (s viewerSource) write(crdt.Value) error {
	return eideticaerr.New(eideticaerr.RequiresAtomicOperation, "subtree %q is a read-only viewer; open a tree operation to mutate it", s.name)
}
