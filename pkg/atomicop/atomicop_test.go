package atomicop

import (
	"testing"

	"github.com/arcuru/eidetica/pkg/auth"
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/entry"
	"github.com/arcuru/eidetica/pkg/storage"
)

func genesisSettings(pub string) crdt.Value {
	settings := crdt.NewMap()
	authMap := crdt.NewMap()
	authMap.Set("admin", auth.AuthKey{
		PublicKey:  pub,
		Permission: auth.Permission{Level: auth.PermissionAdmin},
		Status:     auth.StatusActive,
	}.ToValue())
	settings.Set("auth", authMap)
	settings.Set("name", crdt.NewText("test-tree"))
	return settings
}

func TestCommitSeedsRootWithoutValidation(t *testing.T) {
	ks := auth.NewKeystore()
	pub, _ := ks.GenerateKey("admin")
	db := storage.NewMemoryBackend(nil)

	genesis := New(db, ks, "", nil, "admin")
	genesis.SetSubtreeValue(entry.SettingsSubtreeName, genesisSettings(pub))
	genesis.SetSubtreeValue(entry.RootSubtreeName, crdt.NewText("genesis"))

	rootID, err := genesis.Commit()
	if err != nil {
		t.Fatalf("genesis commit: %v", err)
	}
	if len(db.GetTips(rootID)) != 1 || db.GetTips(rootID)[0] != rootID {
		t.Fatalf("expected fresh tree's only tip to be its root")
	}
}

func TestCommitStagesAndPersistsDictionary(t *testing.T) {
	ks := auth.NewKeystore()
	pub, _ := ks.GenerateKey("admin")
	db := storage.NewMemoryBackend(nil)

	genesis := New(db, ks, "", nil, "admin")
	genesis.SetSubtreeValue(entry.SettingsSubtreeName, genesisSettings(pub))
	rootID, err := genesis.Commit()
	if err != nil {
		t.Fatalf("genesis commit: %v", err)
	}

	op := New(db, ks, rootID, db.GetTips(rootID), "admin")
	val := op.SubtreeValue("data")
	val.Set("x", crdt.NewText("1"))
	op.SetSubtreeValue("data", val)

	if _, err := op.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	entries := db.GetSubtreeFromTips(rootID, "data", db.GetTips(rootID))
	folded := crdt.NewMap()
	for _, e := range entries {
		data, _ := e.Data("data")
		v, err := crdt.Unmarshal(data)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		folded = crdt.Merge(folded, v)
	}
	got, ok := folded.Get("x")
	if !ok {
		t.Fatalf("expected x to be present after commit")
	}
	if s, _ := got.AsText(); s != "1" {
		t.Fatalf("unexpected value %q", s)
	}
}

func TestCommitRejectsUnknownKey(t *testing.T) {
	ks := auth.NewKeystore()
	pub, _ := ks.GenerateKey("admin")
	db := storage.NewMemoryBackend(nil)

	genesis := New(db, ks, "", nil, "admin")
	genesis.SetSubtreeValue(entry.SettingsSubtreeName, genesisSettings(pub))
	rootID, err := genesis.Commit()
	if err != nil {
		t.Fatalf("genesis commit: %v", err)
	}

	ks.GenerateKey("intruder")
	op := New(db, ks, rootID, db.GetTips(rootID), "intruder")
	op.SetSubtreeValue("data", crdt.NewMap())

	before := len(db.GetTree(rootID))
	if _, err := op.Commit(); err == nil {
		t.Fatalf("expected commit by unknown key to fail")
	}
	after := len(db.GetTree(rootID))
	if before != after {
		t.Fatalf("expected storage to be unchanged after failed validation")
	}
}
