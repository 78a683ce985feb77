// Package tree implements the thin, stateful facade spec §4.6 describes: a
// Tree remembers its root id, its default signing key, and a reference to
// the storage, and mints operations and read-only viewers over it.
package tree

import (
	"github.com/arcuru/eidetica/pkg/atomicop"
	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/entry"
	"github.com/arcuru/eidetica/pkg/storage"
)

// Tree is a handle on one tree's root id plus a reference to the backing
// storage and keystore. It holds no staged state of its own; all mutation
// goes through the AtomicOps it mints.
type Tree struct {
	db         storage.Database
	keystore   *auth.Keystore
	rootID     string
	defaultKey string
}

// New wraps an already-persisted root id as a Tree handle.
func New(db storage.Database, keystore *auth.Keystore, rootID, defaultKey string) *Tree {
	return &Tree{db: db, keystore: keystore, rootID: rootID, defaultKey: defaultKey}
}

// GetRoot returns the tree's root entry id.
func (t *Tree) GetRoot() string { return t.rootID }

// DefaultAuthKey returns the key name new operations sign with unless
// overridden.
func (t *Tree) DefaultAuthKey() string { return t.defaultKey }

// SetDefaultAuthKey changes the key name new operations sign with.
func (t *Tree) SetDefaultAuthKey(name string) { t.defaultKey = name }

// ClearDefaultAuthKey removes the default signing key; NewOperation then
// requires NewAuthenticatedOperation to supply one explicitly.
func (t *Tree) ClearDefaultAuthKey() { t.defaultKey = "" }

// NewOperation captures the tree's current tips and signs with the
// tree's default key.
func (t *Tree) NewOperation() *atomicop.AtomicOp {
	return atomicop.New(t.db, t.keystore, t.rootID, t.db.GetTips(t.rootID), t.defaultKey)
}

// NewOperationWithTips captures a caller-supplied tip set — how concurrent
// branches are merged — and signs with the tree's default key.
func (t *Tree) NewOperationWithTips(tips []string) *atomicop.AtomicOp {
	return atomicop.New(t.db, t.keystore, t.rootID, tips, t.defaultKey)
}

// NewAuthenticatedOperation captures the current tips but overrides the
// signing key.
func (t *Tree) NewAuthenticatedOperation(keyName string) *atomicop.AtomicOp {
	return atomicop.New(t.db, t.keystore, t.rootID, t.db.GetTips(t.rootID), keyName)
}

// GetEntry fetches one stored entry by id.
func (t *Tree) GetEntry(id string) (*entry.Entry, error) {
	return t.db.Get(id)
}

// GetSubtreeViewer folds subtree's state at the tree's current tips and
// returns a read-only CRDT value. Typed adapters' viewer mode calls this on
// every read so they always observe the latest committed state.
func (t *Tree) GetSubtreeViewer(name string) (crdt.Value, error) {
	return t.foldSubtreeAtTips(name, t.db.GetTips(t.rootID))
}

func (t *Tree) foldSubtreeAtTips(name string, tips []string) (crdt.Value, error) {
	entries := t.db.GetSubtreeFromTips(t.rootID, name, tips)
	values := make([]crdt.Value, 0, len(entries))
	for _, e := range entries {
		data, _ := e.Data(name)
		v, err := crdt.Unmarshal(data)
		if err != nil {
			return crdt.Value{}, eideticaerr.Wrap(eideticaerr.DeserializationFailed, err, "decode subtree %s on entry %s", name, e.ID())
		}
		values = append(values, v)
	}
	return crdt.MergeAll(values...), nil
}

// GetName reads the tree's `name` setting, folded at current tips.
func (t *Tree) GetName() (string, error) {
	settings, err := t.GetSubtreeViewer(entry.SettingsSubtreeName)
	if err != nil {
		return "", err
	}
	nameVal, ok := settings.Get("name")
	if !ok {
		return "", eideticaerr.New(eideticaerr.NotFound, "tree %s has no name set", t.rootID)
	}
	name, ok := nameVal.AsText()
	if !ok {
		return "", eideticaerr.New(eideticaerr.TypeMismatch, "tree %s has a non-text name", t.rootID)
	}
	return name, nil
}
