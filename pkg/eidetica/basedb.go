// Package eidetica is the top-level entry point: a Database binds one
// storage backend and one keystore together, and mints/loads Trees over
// them. Most callers construct exactly one of these per process.
package eidetica

import (
	"sort"

	"github.com/arcuru/eidetica/pkg/atomicop"
	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/entry"
	"github.com/arcuru/eidetica/pkg/log"
	"github.com/arcuru/eidetica/pkg/storage"
	"github.com/arcuru/eidetica/pkg/tree"
)

// defaultAdminKey names the key NewTree uses when it is called with an
// empty keyName.
const defaultAdminKey = "_default"

// Database is the handle a process constructs once: a storage backend plus
// a keystore, and the ability to mint new trees or load existing ones.
type Database struct {
	backend  storage.Database
	keystore *auth.Keystore
}

// New binds backend and keystore into a Database. Pass a fresh
// auth.NewKeystore() for a new process, or a previously populated one to
// reuse its keys.
func New(backend storage.Database, keystore *auth.Keystore) *Database {
	return &Database{backend: backend, keystore: keystore}
}

// Backend returns the bound storage backend.
func (d *Database) Backend() storage.Database { return d.backend }

// Keystore returns the bound keystore.
func (d *Database) Keystore() *auth.Keystore { return d.keystore }

// NewTree creates a fresh tree: it seeds `_root` and `_settings` in a single
// signed genesis commit, using keyName as both the tree's default signing
// key and its first admin. If the keystore has no such key yet, one is
// generated. settings, if non-nil, is merged into the genesis `_settings`
// payload alongside the seeded admin key.
func (d *Database) NewTree(settings crdt.Value, keyName string) (*tree.Tree, error) {
	if keyName == "" {
		keyName = defaultAdminKey
	}
	pub, err := d.keystore.PublicKey(keyName)
	if err != nil {
		pub, err = d.keystore.GenerateKey(keyName)
		if err != nil {
			return nil, err
		}
	}

	genesisSettings := crdt.NewMap()
	if settings.IsMap() {
		genesisSettings = settings.Clone()
	}
	authMap := crdt.NewMap()
	if existing, ok := genesisSettings.Get("auth"); ok && existing.IsMap() {
		authMap = existing.Clone()
	}
	authMap.Set(keyName, auth.AuthKey{
		PublicKey:  pub,
		Permission: auth.Permission{Level: auth.PermissionAdmin, Priority: 0},
		Status:     auth.StatusActive,
	}.ToValue())
	genesisSettings.Set("auth", authMap)

	root := crdt.NewMap()
	root.Set("genesis", crdt.NewText(keyName))

	op := atomicop.New(d.backend, d.keystore, "", nil, keyName)
	op.SetSubtreeValue(entry.RootSubtreeName, root)
	op.SetSubtreeValue(entry.SettingsSubtreeName, genesisSettings)

	rootID, err := op.Commit()
	if err != nil {
		return nil, err
	}
	log.Infow("created tree", "root", rootID, "key", keyName)
	return tree.New(d.backend, d.keystore, rootID, keyName), nil
}

// LoadTree returns a handle over an already-persisted tree. defaultKey is
// the key new operations on the returned handle will sign with; pass "" and
// set one later with Tree.SetDefaultAuthKey if it isn't known yet.
func (d *Database) LoadTree(rootID, defaultKey string) (*tree.Tree, error) {
	root, err := d.backend.Get(rootID)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot() {
		return nil, eideticaerr.New(eideticaerr.InvalidOperation, "%s is not a root entry", rootID)
	}
	return tree.New(d.backend, d.keystore, rootID, defaultKey), nil
}

// AllTrees returns a handle for every root entry stored in the backend,
// sorted by root id. Returned trees carry no default signing key; callers
// needing one should call SetDefaultAuthKey.
func (d *Database) AllTrees() ([]*tree.Tree, error) {
	roots := append([]string(nil), d.backend.AllRoots()...)
	sort.Strings(roots)
	trees := make([]*tree.Tree, 0, len(roots))
	for _, id := range roots {
		trees = append(trees, tree.New(d.backend, d.keystore, id, ""))
	}
	return trees, nil
}
