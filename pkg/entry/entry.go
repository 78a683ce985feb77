// Package entry implements Eidetica's immutable, content-addressed Entry:
// the node type of the per-tree DAG. An Entry's identity is the hash of its
// own canonical serialization, computed with the signature field cleared so
// that signing never changes an entry's id.
package entry

import "sort"

// RootSubtreeName marks the special subtree a root entry carries to
// materialize the tree's identity/settings seed.
const RootSubtreeName = "_root"

// SettingsSubtreeName holds a tree's configuration, including its auth
// policy.
const SettingsSubtreeName = "_settings"

// SubtreeNode is one subtree's contribution to an Entry: its CRDT payload
// and the ids of its parents within that subtree's own DAG.
type SubtreeNode struct {
	Data    string
	Parents []string
}

// Signature is the signature block an Entry carries once signed.
type Signature struct {
	KeyName   string
	Signature string
}

func (s Signature) isEmpty() bool {
	return s.KeyName == "" && s.Signature == ""
}

// Entry is an immutable record in a tree's DAG. Construct one with
// Builder/RootBuilder, never by literal.
type Entry struct {
	root     string
	parents  []string
	subtrees map[string]SubtreeNode
	sig      Signature
	id       string
}

// ID is the content hash of the entry's canonical pre-signature bytes.
func (e *Entry) ID() string { return e.id }

// Root is the id of the tree's root entry, or "" if this entry is itself a
// root.
func (e *Entry) Root() string { return e.root }

// Parents returns the sorted, de-duplicated main parent ids.
func (e *Entry) Parents() []string { return append([]string(nil), e.parents...) }

// Subtrees returns the sorted names of subtrees this entry carries.
func (e *Entry) Subtrees() []string {
	names := make([]string, 0, len(e.subtrees))
	for name := range e.subtrees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Data returns the subtree's payload, and whether the entry carries it.
func (e *Entry) Data(subtree string) (string, bool) {
	node, ok := e.subtrees[subtree]
	if !ok {
		return "", false
	}
	return node.Data, true
}

// SubtreeParents returns the subtree's parent ids, and whether the entry
// carries that subtree.
func (e *Entry) SubtreeParents(subtree string) ([]string, bool) {
	node, ok := e.subtrees[subtree]
	if !ok {
		return nil, false
	}
	return append([]string(nil), node.Parents...), true
}

// IsRoot reports whether this entry is a tree root (Root() == "").
func (e *Entry) IsRoot() bool { return e.root == "" }

// IsTopLevelRoot reports whether this entry is a root entry that also
// carries the _root subtree, i.e. materializes a tree's identity seed.
func (e *Entry) IsTopLevelRoot() bool {
	if !e.IsRoot() {
		return false
	}
	_, ok := e.subtrees[RootSubtreeName]
	return ok
}

// InTree reports whether this entry belongs to the tree rooted at rootID:
// either its Root field names rootID, or it IS that root entry.
func (e *Entry) InTree(rootID string) bool {
	if e.IsRoot() {
		return e.id == rootID
	}
	return e.root == rootID
}

// InSubtree reports whether this entry carries the named subtree.
func (e *Entry) InSubtree(name string) bool {
	_, ok := e.subtrees[name]
	return ok
}

// KeyName returns the name of the key that signed this entry, if any.
func (e *Entry) KeyName() string { return e.sig.KeyName }

// SignatureBytes returns the raw signature attached to this entry, if any.
func (e *Entry) SignatureBytes() string { return e.sig.Signature }

// IsSigned reports whether a signature block has been attached.
func (e *Entry) IsSigned() bool { return !e.sig.isEmpty() }

// SignedBytes returns the canonical pre-signature bytes this entry's id and
// signature are both computed over.
func (e *Entry) SignedBytes() []byte {
	return canonicalBytes(e.root, e.parents, e.subtrees)
}

// WithSignature returns a copy of the entry with the signature block
// attached. The id is unchanged: signing never affects content addressing.
func (e *Entry) WithSignature(keyName, signature string) *Entry {
	clone := *e
	clone.sig = Signature{KeyName: keyName, Signature: signature}
	return &clone
}
