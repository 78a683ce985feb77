package eidetica

import (
	"testing"

	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/storage"
	"github.com/arcuru/eidetica/pkg/subtree"
)

func TestNewTreeSeedsRootAndSettings(t *testing.T) {
	db := New(storage.NewMemoryBackend(nil), auth.NewKeystore())

	settings := crdt.NewMap()
	settings.Set("name", crdt.NewText("widgets"))

	tr, err := db.NewTree(settings, "owner")
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	name, err := tr.GetName()
	if err != nil || name != "widgets" {
		t.Fatalf("expected name 'widgets', got %q err=%v", name, err)
	}

	entries := db.Backend().GetTree(tr.GetRoot())
	if len(entries) != 1 {
		t.Fatalf("expected exactly one genesis entry, got %d", len(entries))
	}
	if !entries[0].IsTopLevelRoot() {
		t.Fatalf("genesis entry should carry the _root subtree")
	}
}

func TestNewTreeGeneratesKeyWhenAbsent(t *testing.T) {
	db := New(storage.NewMemoryBackend(nil), auth.NewKeystore())
	tr, err := db.NewTree(crdt.Value{}, "fresh-key")
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}
	if _, err := db.Keystore().PublicKey("fresh-key"); err != nil {
		t.Fatalf("expected fresh-key to be minted: %v", err)
	}
	if tr.DefaultAuthKey() != "fresh-key" {
		t.Fatalf("expected default key fresh-key, got %q", tr.DefaultAuthKey())
	}
}

func TestLoadTreeAndAllTreesRoundTrip(t *testing.T) {
	backend := storage.NewMemoryBackend(nil)
	ks := auth.NewKeystore()
	db := New(backend, ks)

	treeA, err := db.NewTree(crdt.Value{}, "keyA")
	if err != nil {
		t.Fatalf("NewTree A: %v", err)
	}
	treeB, err := db.NewTree(crdt.Value{}, "keyB")
	if err != nil {
		t.Fatalf("NewTree B: %v", err)
	}

	loaded, err := db.LoadTree(treeA.GetRoot(), "keyA")
	if err != nil {
		t.Fatalf("LoadTree: %v", err)
	}
	if loaded.GetRoot() != treeA.GetRoot() {
		t.Fatalf("loaded tree root mismatch")
	}

	all, err := db.AllTrees()
	if err != nil {
		t.Fatalf("AllTrees: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 trees, got %d", len(all))
	}
	seen := map[string]bool{}
	for _, tr := range all {
		seen[tr.GetRoot()] = true
	}
	if !seen[treeA.GetRoot()] || !seen[treeB.GetRoot()] {
		t.Fatalf("AllTrees missing a known root")
	}
}

func TestLoadTreeRejectsNonRootID(t *testing.T) {
	db := New(storage.NewMemoryBackend(nil), auth.NewKeystore())
	tr, err := db.NewTree(crdt.Value{}, "owner")
	if err != nil {
		t.Fatalf("NewTree: %v", err)
	}

	op := tr.NewOperation()
	dict := subtree.NewDictionary(op, "dict")
	if err := dict.Set("x", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	childID, err := op.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	if _, err := db.LoadTree(childID, ""); err == nil {
		t.Fatalf("expected LoadTree on a non-root entry to fail")
	}
}
