package auth

import (
	"github.com/arcuru/eidetica/pkg/crdt"
	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/entry"
)

// ValidateCommit is the pure validator from spec §4.4: given an entry and
// the `_settings` CRDT value folded up to the entry's parent tips (never
// including the entry itself), it decides whether the entry's signature
// and the signing key's policy permit the write.
//
// A non-map value at settings.auth is treated as corruption: every commit
// that requires authentication fails until an operation with tips
// predating the corruption overwrites auth with a map again.
func ValidateCommit(e *entry.Entry, settings crdt.Value) error {
	authRaw, hasAuth := settings.Get("auth")
	if hasAuth && !authRaw.IsMap() {
		return eideticaerr.New(eideticaerr.DataCorruption, "_settings.auth is not a map")
	}
	authMap := crdt.NewMap()
	if hasAuth {
		authMap = authRaw
	}

	keyName := e.KeyName()
	keyVal, ok := authMap.Get(keyName)
	if !ok {
		return eideticaerr.NewAuth(eideticaerr.KeyNotFound, "key %q is not present in _settings.auth", keyName).WithKey(keyName)
	}
	ak, err := AuthKeyFromValue(keyVal)
	if err != nil {
		return err
	}

	if ak.Status == StatusRevoked {
		return eideticaerr.NewAuth(eideticaerr.PermissionDenied, "key %q is revoked", keyName).WithKey(keyName)
	}

	if !e.IsSigned() {
		return eideticaerr.NewAuth(eideticaerr.SignatureInvalid, "entry %s carries no signature", e.ID())
	}
	if !VerifySignature(ak.PublicKey, e.SignatureBytes(), e.SignedBytes()) {
		return eideticaerr.NewAuth(eideticaerr.SignatureInvalid, "signature on entry %s does not verify against key %q", e.ID(), keyName).WithKey(keyName)
	}

	required := PermissionWrite
	if e.InSubtree(entry.SettingsSubtreeName) {
		required = PermissionAdmin
	}
	if ak.Permission.Level < required {
		return eideticaerr.NewAuth(eideticaerr.PermissionDenied, "key %q has permission %s, commit requires at least %s", keyName, ak.Permission.Level, required).WithKey(keyName)
	}

	return nil
}
