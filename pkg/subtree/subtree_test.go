package subtree

import (
	"testing"

	"github.com/arcuru/eidetica/pkg/atomicop"
	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/entry"
	"github.com/arcuru/eidetica/pkg/storage"
	"github.com/arcuru/eidetica/pkg/tree"
)

func newTestTree(t *testing.T) (*tree.Tree, *auth.Keystore) {
	t.Helper()
	ks := auth.NewKeystore()
	pub, _ := ks.GenerateKey("K")
	db := storage.NewMemoryBackend(nil)

	settings := crdt.NewMap()
	authMap := crdt.NewMap()
	authMap.Set("K", auth.AuthKey{
		PublicKey:  pub,
		Permission: auth.Permission{Level: auth.PermissionAdmin},
		Status:     auth.StatusActive,
	}.ToValue())
	settings.Set("auth", authMap)

	genesis := atomicop.New(db, ks, "", nil, "K")
	genesis.SetSubtreeValue(entry.SettingsSubtreeName, settings)
	rootID, err := genesis.Commit()
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	return tree.New(db, ks, rootID, "K"), ks
}

func TestDictionarySetAndDelete(t *testing.T) {
	tr, _ := newTestTree(t)

	op := tr.NewOperation()
	dict := NewDictionary(op, "dict")
	if err := dict.Set("x", "1"); err != nil {
		t.Fatalf("set x: %v", err)
	}
	if err := dict.Set("y", "2"); err != nil {
		t.Fatalf("set y: %v", err)
	}
	if _, err := op.Commit(); err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	op2 := tr.NewOperation()
	dict2 := NewDictionary(op2, "dict")
	if _, err := dict2.Delete("x"); err != nil {
		t.Fatalf("delete x: %v", err)
	}
	if _, err := op2.Commit(); err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	viewer := NewDictionaryViewer(tr, "dict")
	if _, err := viewer.GetString("x"); err == nil {
		t.Fatalf("expected x to be deleted")
	}
	y, err := viewer.GetString("y")
	if err != nil || y != "2" {
		t.Fatalf("expected y == 2, got %q err=%v", y, err)
	}
}

func TestDictionaryViewerRejectsWrites(t *testing.T) {
	tr, _ := newTestTree(t)
	viewer := NewDictionaryViewer(tr, "dict")
	if err := viewer.Set("x", "1"); err == nil {
		t.Fatalf("expected viewer write to fail")
	}
}

type widget struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

func TestTableInsertProducesUniqueUUIDKeys(t *testing.T) {
	tr, _ := newTestTree(t)
	op := tr.NewOperation()
	table := NewTable[widget](op, "widgets")

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		key, err := table.Insert(widget{Count: i, Name: "w"})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if seen[key] {
			t.Fatalf("duplicate key %s", key)
		}
		seen[key] = true
		if len(key) != 36 || countDashes(key) != 4 {
			t.Fatalf("key %q is not a UUID-shaped string", key)
		}
	}
	if _, err := op.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	viewer := NewTableViewer[widget](tr, "widgets")
	for key := range seen {
		if _, err := viewer.Get(key); err != nil {
			t.Fatalf("get %s after commit: %v", key, err)
		}
	}
}

func countDashes(s string) int {
	n := 0
	for _, r := range s {
		if r == '-' {
			n++
		}
	}
	return n
}

func TestTableSearch(t *testing.T) {
	tr, _ := newTestTree(t)
	op := tr.NewOperation()
	table := NewTable[widget](op, "widgets")
	_, _ = table.Insert(widget{Count: 1, Name: "a"})
	_, _ = table.Insert(widget{Count: 2, Name: "b"})
	_, _ = table.Insert(widget{Count: 3, Name: "c"})
	if _, err := op.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	viewer := NewTableViewer[widget](tr, "widgets")
	found, err := viewer.Search(func(w widget) bool { return w.Count >= 2 })
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
}
