// Package auth implements Eidetica's key lifecycle and the pure validator
// that gates commits against a tree's own `_settings.auth` policy.
package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"sort"
	"sync"

	"github.com/arcuru/eidetica/pkg/eideticaerr"
)

// Keystore is a process-wide, concurrency-safe holder of private key
// material, keyed by a caller-chosen name. It never appears in the DAG;
// only the public half, wrapped in an AuthKey, is published into a tree's
// `_settings.auth`.
type Keystore struct {
	mu   sync.Mutex
	keys map[string]ed25519.PrivateKey
}

// NewKeystore returns an empty keystore.
func NewKeystore() *Keystore {
	return &Keystore{keys: make(map[string]ed25519.PrivateKey)}
}

// GenerateKey creates a fresh ed25519 keypair under name, overwriting any
// existing key of that name, and returns the public key in its published
// (base64) form.
func (k *Keystore) GenerateKey(name string) (string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", eideticaerr.Wrap(eideticaerr.Io, err, "generate key %s", name)
	}
	k.mu.Lock()
	k.keys[name] = priv
	k.mu.Unlock()
	return encodeKey(pub), nil
}

// Sign signs data with the named private key and returns the base64
// signature. It fails with an Authentication/KeyNotFound error if name is
// unknown to this keystore.
func (k *Keystore) Sign(name string, data []byte) (string, error) {
	k.mu.Lock()
	priv, ok := k.keys[name]
	k.mu.Unlock()
	if !ok {
		return "", eideticaerr.NewAuth(eideticaerr.KeyNotFound, "no private key for %q in local keystore", name).WithKey(name)
	}
	sig := ed25519.Sign(priv, data)
	return encodeKey(sig), nil
}

// PublicKey returns the published form of the named key's public half.
func (k *Keystore) PublicKey(name string) (string, error) {
	k.mu.Lock()
	priv, ok := k.keys[name]
	k.mu.Unlock()
	if !ok {
		return "", eideticaerr.NewAuth(eideticaerr.KeyNotFound, "no key named %q in local keystore", name).WithKey(name)
	}
	return encodeKey(priv.Public().(ed25519.PublicKey)), nil
}

// ListKeys returns every key name held locally, sorted.
func (k *Keystore) ListKeys() []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	names := make([]string, 0, len(k.keys))
	for name := range k.keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func encodeKey(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeKey(s string) ([]byte, error) { return base64.StdEncoding.DecodeString(s) }

// VerifySignature checks a signature against a published public key string,
// both in the base64 form GenerateKey/Sign produce.
func VerifySignature(publicKey, signature string, signedBytes []byte) bool {
	pub, err := decodeKey(publicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := decodeKey(signature)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), signedBytes, sig)
}
