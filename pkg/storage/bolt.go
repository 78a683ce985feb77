package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/entry"
	"github.com/arcuru/eidetica/pkg/log"
)

var (
	bucketEntries      = []byte("entries")
	bucketVerification = []byte("verification")
)

// BoltBackend is a Database implementation persisting every entry and its
// verification status into a single bbolt file, one bucket per entity — the
// same layout the teacher's BoltStore uses for cluster state. The DAG
// indexes (tips, heights, subtree edges) are not bbolt-native; they are
// rebuilt into an in-memory dagIndex on open and kept in sync on every Put,
// the way the in-memory backend keeps its own index, so query performance
// does not depend on bbolt's own cursor order.
type BoltBackend struct {
	mu       sync.RWMutex
	db       *bolt.DB
	idx      *dagIndex
	recorder Recorder
}

// NewBoltBackend opens (creating if needed) a bbolt file at path and
// rebuilds its in-memory DAG index from the persisted entries.
func NewBoltBackend(path string, recorder Recorder) (*BoltBackend, error) {
	if recorder == nil {
		recorder = NoopRecorder
	}
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, eideticaerr.Wrap(eideticaerr.Io, err, "open bolt storage %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketEntries, bucketVerification} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, eideticaerr.Wrap(eideticaerr.Io, err, "initialize bolt storage %s", path)
	}

	b := &BoltBackend{db: db, idx: newDagIndex(), recorder: recorder}
	if err := b.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *BoltBackend) rebuildIndex() error {
	idx := newDagIndex()
	err := b.db.View(func(tx *bolt.Tx) error {
		verif := tx.Bucket(bucketVerification)
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			e, err := decodeBoltEntry(v)
			if err != nil {
				return err
			}
			status := Verified
			if sv := verif.Get(k); sv != nil && len(sv) > 0 {
				status = VerificationStatus(sv[0])
			}
			idx.put(e, status)
			return nil
		})
	})
	if err != nil {
		return eideticaerr.Wrap(eideticaerr.DataCorruption, err, "rebuild bolt storage index")
	}
	b.idx = idx
	return nil
}

type boltEntry struct {
	Root     string                     `json:"root"`
	Parents  []string                   `json:"parents"`
	Subtrees map[string]fileSubtreeNode `json:"subtrees"`
	Sig      fileSignature              `json:"signature"`
}

func encodeBoltEntry(e *entry.Entry) ([]byte, error) {
	be := boltEntry{
		Root:     e.Root(),
		Parents:  e.Parents(),
		Subtrees: make(map[string]fileSubtreeNode, len(e.Subtrees())),
	}
	for _, name := range e.Subtrees() {
		data, _ := e.Data(name)
		parents, _ := e.SubtreeParents(name)
		be.Subtrees[name] = fileSubtreeNode{Data: data, Parents: parents}
	}
	if e.IsSigned() {
		be.Sig = fileSignature{KeyName: e.KeyName(), Signature: e.SignatureBytes()}
	}
	return json.Marshal(be)
}

func decodeBoltEntry(data []byte) (*entry.Entry, error) {
	var be boltEntry
	if err := json.Unmarshal(data, &be); err != nil {
		return nil, err
	}
	var builder *entry.Builder
	if be.Root == "" {
		builder = entry.RootBuilder()
	} else {
		builder = entry.NewBuilder(be.Root)
	}
	builder.SetParentsMut(be.Parents)
	for name, node := range be.Subtrees {
		builder.SetSubtreeDataMut(name, node.Data)
		builder.SetSubtreeParentsMut(name, node.Parents)
	}
	e := builder.Build()
	if be.Sig.KeyName != "" || be.Sig.Signature != "" {
		e = e.WithSignature(be.Sig.KeyName, be.Sig.Signature)
	}
	return e, nil
}

func (b *BoltBackend) Put(status VerificationStatus, e *entry.Entry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.idx.entries[e.ID()]; exists {
		return nil
	}

	data, err := encodeBoltEntry(e)
	if err != nil {
		return eideticaerr.Wrap(eideticaerr.SerializationFailed, err, "encode entry %s", e.ID())
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketEntries).Put([]byte(e.ID()), data); err != nil {
			return err
		}
		return tx.Bucket(bucketVerification).Put([]byte(e.ID()), []byte{byte(status)})
	})
	if err != nil {
		return eideticaerr.Wrap(eideticaerr.Io, err, "persist entry %s", e.ID())
	}

	b.idx.put(e, status)
	b.recorder.EntriesPut(1)
	return nil
}

func (b *BoltBackend) PutVerified(e *entry.Entry) error   { return b.Put(Verified, e) }
func (b *BoltBackend) PutUnverified(e *entry.Entry) error { return b.Put(Failed, e) }

func (b *BoltBackend) Get(id string) (*entry.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.idx.entries[id]
	if !ok {
		return nil, eideticaerr.New(eideticaerr.NotFound, "entry %s not found", id).WithKey(id)
	}
	return e, nil
}

func (b *BoltBackend) AllRoots() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.allRoots()
}

func (b *BoltBackend) GetTips(rootID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.tips(rootID)
}

func (b *BoltBackend) GetSubtreeTips(rootID, subtree string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.subtreeTips(rootID, subtree)
}

func (b *BoltBackend) GetTree(rootID string) []*entry.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.idx.treeEntries[rootID]
	return b.resolve(sortByHeight(ids, b.idx.mainHeights(rootID)))
}

func (b *BoltBackend) GetSubtree(rootID, subtree string) []*entry.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.idx.subtreeEntries[rootID][subtree]
	return b.resolve(sortByHeight(ids, b.idx.subtreeHeights(rootID, subtree)))
}

func (b *BoltBackend) GetTreeFromTips(rootID string, tips []string) []*entry.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.idx.treeFromTips(rootID, tips)
	return b.resolve(sortByHeight(ids, b.idx.mainHeights(rootID)))
}

func (b *BoltBackend) GetSubtreeFromTips(rootID, subtree string, tips []string) []*entry.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.idx.subtreeFromTips(rootID, subtree, tips)
	return b.resolve(sortByHeight(ids, b.idx.subtreeHeights(rootID, subtree)))
}

func (b *BoltBackend) CalculateHeights(rootID string) map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.mainHeights(rootID)
}

func (b *BoltBackend) CalculateSubtreeHeights(rootID, subtree string) map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.idx.subtreeHeights(rootID, subtree)
}

func (b *BoltBackend) SortEntriesByHeight(rootID string, entries []*entry.Entry) []*entry.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID()
	}
	return b.resolve(sortByHeight(ids, b.idx.mainHeights(rootID)))
}

func (b *BoltBackend) GetVerificationStatus(id string) (VerificationStatus, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	status, ok := b.idx.verification[id]
	if !ok {
		return 0, eideticaerr.New(eideticaerr.NotFound, "entry %s not found", id).WithKey(id)
	}
	return status, nil
}

func (b *BoltBackend) UpdateVerificationStatus(id string, status VerificationStatus) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.idx.entries[id]; !ok {
		return eideticaerr.New(eideticaerr.NotFound, "entry %s not found", id).WithKey(id)
	}
	err := b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketVerification).Put([]byte(id), []byte{byte(status)})
	})
	if err != nil {
		return eideticaerr.Wrap(eideticaerr.Io, err, "update verification status for %s", id)
	}
	b.idx.verification[id] = status
	return nil
}

func (b *BoltBackend) GetEntriesByVerificationStatus(status VerificationStatus) []*entry.Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []*entry.Entry
	for id, s := range b.idx.verification {
		if s == status {
			out = append(out, b.idx.entries[id])
		}
	}
	return out
}

func (b *BoltBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	log.Debugw("closing bolt storage")
	return b.db.Close()
}

func (b *BoltBackend) resolve(ids []string) []*entry.Entry {
	out := make([]*entry.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := b.idx.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}
