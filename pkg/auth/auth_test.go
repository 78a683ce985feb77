package auth

import (
	"testing"

	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/entry"
)

func settingsWithKey(name, pub string, perm Permission, status Status) crdt.Value {
	settings := crdt.NewMap()
	authMap := crdt.NewMap()
	authMap.Set(name, AuthKey{PublicKey: pub, Permission: perm, Status: status}.ToValue())
	settings.Set("auth", authMap)
	return settings
}

func signedEntry(t *testing.T, ks *Keystore, keyName string, subtree string) *entry.Entry {
	t.Helper()
	b := entry.NewBuilder("root-id").SetSubtreeData(subtree, "v")
	unsigned := b.Build()
	sig, err := ks.Sign(keyName, unsigned.SignedBytes())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return unsigned.WithSignature(keyName, sig)
}

func TestValidateAcceptsSufficientActiveKey(t *testing.T) {
	ks := NewKeystore()
	pub, _ := ks.GenerateKey("K1")
	settings := settingsWithKey("K1", pub, Permission{Level: PermissionWrite}, StatusActive)
	e := signedEntry(t, ks, "K1", "data")

	if err := ValidateCommit(e, settings); err != nil {
		t.Fatalf("expected valid commit, got %v", err)
	}
}

func TestValidateRejectsUnknownKey(t *testing.T) {
	ks := NewKeystore()
	pub, _ := ks.GenerateKey("K1")
	settings := settingsWithKey("K1", pub, Permission{Level: PermissionWrite}, StatusActive)
	// "unknown" exists locally so the entry can be signed, but it is absent
	// from _settings.auth.
	if _, err := ks.GenerateKey("unknown"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	e := signedEntry(t, ks, "unknown", "data")

	err := ValidateCommit(e, settings)
	if !eideticaerr.IsAuth(err, eideticaerr.KeyNotFound) {
		t.Fatalf("expected KeyNotFound, got %v", err)
	}
}

func TestValidateRejectsRevokedKeyWithPermissionDenied(t *testing.T) {
	ks := NewKeystore()
	pub, _ := ks.GenerateKey("K2")
	settings := settingsWithKey("K2", pub, Permission{Level: PermissionWrite}, StatusRevoked)
	e := signedEntry(t, ks, "K2", "data")

	err := ValidateCommit(e, settings)
	if !eideticaerr.IsAuth(err, eideticaerr.PermissionDenied) {
		t.Fatalf("expected PermissionDenied for revoked key, got %v", err)
	}
}

func TestValidateRejectsInsufficientPermissionForSettings(t *testing.T) {
	ks := NewKeystore()
	pub, _ := ks.GenerateKey("K1")
	settings := settingsWithKey("K1", pub, Permission{Level: PermissionWrite}, StatusActive)
	e := signedEntry(t, ks, "K1", entry.SettingsSubtreeName)

	err := ValidateCommit(e, settings)
	if !eideticaerr.IsAuth(err, eideticaerr.PermissionDenied) {
		t.Fatalf("expected PermissionDenied mutating _settings with write-only key, got %v", err)
	}
}

func TestValidateRejectsBadSignature(t *testing.T) {
	ks := NewKeystore()
	pub, _ := ks.GenerateKey("K1")
	settings := settingsWithKey("K1", pub, Permission{Level: PermissionAdmin}, StatusActive)

	tampered := entry.NewBuilder("root-id").SetSubtreeData("data", "tampered").Build()
	sig, _ := ks.Sign("K1", []byte("different bytes"))
	signed := tampered.WithSignature("K1", sig)

	if err := ValidateCommit(signed, settings); err == nil {
		t.Fatalf("expected signature verification failure")
	}
}

func TestValidateCorruptedAuthMapFails(t *testing.T) {
	settings := crdt.NewMap()
	settings.Set("auth", crdt.NewText("not a map"))
	e := entry.NewBuilder("root-id").SetSubtreeData("data", "v").Build().WithSignature("K1", "sig")

	if err := ValidateCommit(e, settings); err == nil {
		t.Fatalf("expected corruption error")
	}
}

