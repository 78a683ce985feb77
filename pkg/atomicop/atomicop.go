// Package atomicop implements the staged-mutation, sign-and-validate commit
// pipeline: an AtomicOp accumulates per-subtree CRDT mutations against a
// snapshot of tips and, on Commit, materializes, signs, authenticates, and
// persists exactly one new Entry.
package atomicop

import (
	"sort"

	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/entry"
	"github.com/arcuru/eidetica/pkg/log"
	"github.com/arcuru/eidetica/pkg/storage"
)

// AtomicOp is the transient, mutable staging state for one commit. Reads
// through SubtreeValue always observe the operation's own staged
// writes, never another concurrent operation's.
type AtomicOp struct {
	db         storage.Database
	keystore   *auth.Keystore
	rootID     string
	parentTips []string
	authKey    string

	staged map[string]crdt.Value
	folded map[string]crdt.Value
}

// New captures parentTips as the operation's snapshot and keyName as the
// key that will sign its commit. Tree.NewOperation calls this with the
// tree's current tips and default key; Tree.NewOperationWithTips and
// Tree.NewAuthenticatedOperation call it with caller-supplied overrides.
func New(db storage.Database, keystore *auth.Keystore, rootID string, parentTips []string, keyName string) *AtomicOp {
	tips := append([]string(nil), parentTips...)
	sort.Strings(tips)
	return &AtomicOp{
		db:         db,
		keystore:   keystore,
		rootID:     rootID,
		parentTips: tips,
		authKey:    keyName,
		staged:     make(map[string]crdt.Value),
		folded:     make(map[string]crdt.Value),
	}
}

// ParentTips returns the tip set this operation was opened against.
func (op *AtomicOp) ParentTips() []string { return append([]string(nil), op.parentTips...) }

// AuthKeyName returns the key this operation will sign its commit with.
func (op *AtomicOp) AuthKeyName() string { return op.authKey }

// SubtreeValue returns the subtree's current staged CRDT value, folding it
// from storage on first access and caching both the fold and a working
// clone for subsequent mutations.
func (op *AtomicOp) SubtreeValue(name string) crdt.Value {
	if v, ok := op.staged[name]; ok {
		return v
	}
	entries := op.db.GetSubtreeFromTips(op.rootID, name, op.parentTips)
	values := make([]crdt.Value, 0, len(entries))
	for _, e := range entries {
		data, _ := e.Data(name)
		v, err := crdt.Unmarshal(data)
		if err != nil {
			log.Warnw("skipping undecodable subtree payload", "subtree", name, "entry", e.ID(), "error", err)
			continue
		}
		values = append(values, v)
	}
	folded := crdt.MergeAll(values...)
	op.folded[name] = folded
	staged := folded.Clone()
	op.staged[name] = staged
	return staged
}

// SetSubtreeValue replaces the subtree's staged CRDT value. Typed adapters
// in pkg/subtree call SubtreeValue/SetSubtreeValue as their underlying
// read/write primitive.
func (op *AtomicOp) SetSubtreeValue(name string, v crdt.Value) {
	op.staged[name] = v
}

// subtreeParentSet returns the ids, among entries, that no other entry in
// entries names as a subtree parent — i.e. the local tips of the reachable
// subgraph rooted at the operation's parentTips. This is exactly the
// subtree parent set spec §4.5 step 1 asks for: subtree tips restricted to
// ancestors of parentTips.
func subtreeParentSet(entries []*entry.Entry, subtree string) []string {
	isParent := make(map[string]bool, len(entries))
	for _, e := range entries {
		parents, _ := e.SubtreeParents(subtree)
		for _, p := range parents {
			isParent[p] = true
		}
	}
	var tips []string
	for _, e := range entries {
		if !isParent[e.ID()] {
			tips = append(tips, e.ID())
		}
	}
	sort.Strings(tips)
	return tips
}

func (op *AtomicOp) resolveSettings() (crdt.Value, error) {
	entries := op.db.GetSubtreeFromTips(op.rootID, entry.SettingsSubtreeName, op.parentTips)
	values := make([]crdt.Value, 0, len(entries))
	for _, e := range entries {
		data, _ := e.Data(entry.SettingsSubtreeName)
		v, err := crdt.Unmarshal(data)
		if err != nil {
			return crdt.Value{}, eideticaerr.Wrap(eideticaerr.DeserializationFailed, err, "decode _settings payload on entry %s", e.ID())
		}
		values = append(values, v)
	}
	return crdt.MergeAll(values...), nil
}

// Commit runs the full pipeline from spec §4.5: compute each staged
// subtree's parent set and payload, build and sign a new entry, validate it
// against `_settings` resolved at parentTips, and persist on success. A
// failed validation leaves storage completely unchanged and returns the
// validation error; the new entry id is never produced.
func (op *AtomicOp) Commit() (string, error) {
	builder := entry.NewBuilder(op.rootID)
	if op.rootID == "" {
		builder = entry.RootBuilder()
	}
	builder.SetParentsMut(op.parentTips)

	for name, value := range op.staged {
		payload, err := crdt.Marshal(value)
		if err != nil {
			return "", eideticaerr.Wrap(eideticaerr.SerializationFailed, err, "encode subtree %s", name)
		}
		reachable := op.db.GetSubtreeFromTips(op.rootID, name, op.parentTips)
		parents := subtreeParentSet(reachable, name)
		builder.SetSubtreeDataMut(name, payload)
		builder.SetSubtreeParentsMut(name, parents)
	}

	unsigned := builder.Build()

	if op.authKey == "" {
		return "", eideticaerr.NewAuth(eideticaerr.KeyNotFound, "no auth key configured for this operation")
	}
	sig, err := op.keystore.Sign(op.authKey, unsigned.SignedBytes())
	if err != nil {
		return "", err
	}
	signed := unsigned.WithSignature(op.authKey, sig)

	// A root entry has no prior `_settings` to validate against — it is the
	// commit that seeds them. Tree creation is therefore exempt from the
	// validator; every subsequent commit on the tree is not.
	if signed.Root() != "" {
		settings, err := op.resolveSettings()
		if err != nil {
			return "", err
		}
		if err := auth.ValidateCommit(signed, settings); err != nil {
			log.Warnw("commit rejected by validation", "root", op.rootID, "key", op.authKey, "error", err)
			return "", err
		}
	}

	if err := op.db.PutVerified(signed); err != nil {
		return "", err
	}
	log.Infow("committed entry", "root", op.rootID, "id", signed.ID(), "key", op.authKey)
	return signed.ID(), nil
}
