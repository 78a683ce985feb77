package storage

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/arcuru/eidetica/pkg/eideticaerr"
	"github.com/arcuru/eidetica/pkg/entry"
	"github.com/arcuru/eidetica/pkg/log"
)

// MemoryBackend is the required in-memory Database implementation. It also
// satisfies Saveable, persisting the whole store as a single versioned JSON
// document.
type MemoryBackend struct {
	mu       sync.RWMutex
	idx      *dagIndex
	recorder Recorder
}

// NewMemoryBackend returns an empty in-memory backend. A nil recorder is
// replaced with NoopRecorder.
func NewMemoryBackend(recorder Recorder) *MemoryBackend {
	if recorder == nil {
		recorder = NoopRecorder
	}
	return &MemoryBackend{idx: newDagIndex(), recorder: recorder}
}

func (m *MemoryBackend) Put(status VerificationStatus, e *entry.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.idx.put(e, status)
	m.recorder.EntriesPut(1)
	return nil
}

func (m *MemoryBackend) PutVerified(e *entry.Entry) error   { return m.Put(Verified, e) }
func (m *MemoryBackend) PutUnverified(e *entry.Entry) error { return m.Put(Failed, e) }

func (m *MemoryBackend) Get(id string) (*entry.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.idx.entries[id]
	if !ok {
		return nil, eideticaerr.New(eideticaerr.NotFound, "entry %s not found", id).WithKey(id)
	}
	return e, nil
}

func (m *MemoryBackend) AllRoots() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.allRoots()
}

func (m *MemoryBackend) GetTips(rootID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.tips(rootID)
}

func (m *MemoryBackend) GetSubtreeTips(rootID, subtree string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.subtreeTips(rootID, subtree)
}

func (m *MemoryBackend) GetTree(rootID string) []*entry.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.idx.treeEntries[rootID]
	sorted := sortByHeight(ids, m.idx.mainHeights(rootID))
	return m.resolve(sorted)
}

func (m *MemoryBackend) GetSubtree(rootID, subtree string) []*entry.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.idx.subtreeEntries[rootID][subtree]
	sorted := sortByHeight(ids, m.idx.subtreeHeights(rootID, subtree))
	return m.resolve(sorted)
}

func (m *MemoryBackend) GetTreeFromTips(rootID string, tips []string) []*entry.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.idx.treeFromTips(rootID, tips)
	sorted := sortByHeight(ids, m.idx.mainHeights(rootID))
	return m.resolve(sorted)
}

func (m *MemoryBackend) GetSubtreeFromTips(rootID, subtree string, tips []string) []*entry.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.idx.subtreeFromTips(rootID, subtree, tips)
	sorted := sortByHeight(ids, m.idx.subtreeHeights(rootID, subtree))
	return m.resolve(sorted)
}

func (m *MemoryBackend) CalculateHeights(rootID string) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.mainHeights(rootID)
}

func (m *MemoryBackend) CalculateSubtreeHeights(rootID, subtree string) map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idx.subtreeHeights(rootID, subtree)
}

func (m *MemoryBackend) SortEntriesByHeight(rootID string, entries []*entry.Entry) []*entry.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID()
	}
	sorted := sortByHeight(ids, m.idx.mainHeights(rootID))
	return m.resolve(sorted)
}

func (m *MemoryBackend) GetVerificationStatus(id string) (VerificationStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.idx.verification[id]
	if !ok {
		return 0, eideticaerr.New(eideticaerr.NotFound, "entry %s not found", id).WithKey(id)
	}
	return status, nil
}

func (m *MemoryBackend) UpdateVerificationStatus(id string, status VerificationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.idx.entries[id]; !ok {
		return eideticaerr.New(eideticaerr.NotFound, "entry %s not found", id).WithKey(id)
	}
	m.idx.verification[id] = status
	return nil
}

func (m *MemoryBackend) GetEntriesByVerificationStatus(status VerificationStatus) []*entry.Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*entry.Entry
	for id, s := range m.idx.verification {
		if s == status {
			out = append(out, m.idx.entries[id])
		}
	}
	return out
}

func (m *MemoryBackend) Close() error { return nil }

// resolve maps ids to entries under the caller's already-held lock.
func (m *MemoryBackend) resolve(ids []string) []*entry.Entry {
	out := make([]*entry.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := m.idx.entries[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// fileFormatVersion guards forward compatibility: readers reject a major
// version they don't understand but tolerate additive fields within one.
const fileFormatVersion = 1

type fileSignature struct {
	KeyName   string `json:"key_name,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type fileSubtreeNode struct {
	Data    string   `json:"data"`
	Parents []string `json:"parents"`
}

type fileEntry struct {
	Root     string                     `json:"root"`
	Parents  []string                   `json:"parents"`
	Subtrees map[string]fileSubtreeNode `json:"subtrees"`
	Sig      fileSignature              `json:"signature"`
	Status   VerificationStatus         `json:"status"`
}

type fileDocument struct {
	Version int         `json:"version"`
	Entries []fileEntry `json:"entries"`
}

// SaveToFile serializes the whole backend to a single versioned JSON
// document, satisfying the Saveable capability query.
func (m *MemoryBackend) SaveToFile(path string) error {
	m.mu.RLock()
	doc := fileDocument{Version: fileFormatVersion}
	for id, e := range m.idx.entries {
		fe := fileEntry{
			Root:     e.Root(),
			Parents:  e.Parents(),
			Subtrees: make(map[string]fileSubtreeNode, len(e.Subtrees())),
			Status:   m.idx.verification[id],
		}
		for _, name := range e.Subtrees() {
			data, _ := e.Data(name)
			parents, _ := e.SubtreeParents(name)
			fe.Subtrees[name] = fileSubtreeNode{Data: data, Parents: parents}
		}
		if e.IsSigned() {
			fe.Sig = fileSignature{KeyName: e.KeyName(), Signature: e.SignatureBytes()}
		}
		doc.Entries = append(doc.Entries, fe)
	}
	m.mu.RUnlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eideticaerr.Wrap(eideticaerr.SerializationFailed, err, "marshal storage document")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return eideticaerr.Wrap(eideticaerr.Io, err, "write storage file %s", path)
	}
	log.Debugw("saved storage to file", "path", path, "entries", len(doc.Entries))
	return nil
}

// LoadFromFile replaces the backend's contents with the document at path. A
// missing file is not an error: the backend is left empty.
func (m *MemoryBackend) LoadFromFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			m.mu.Lock()
			m.idx = newDagIndex()
			m.mu.Unlock()
			return nil
		}
		return eideticaerr.Wrap(eideticaerr.Io, err, "read storage file %s", path)
	}

	var doc fileDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return eideticaerr.Wrap(eideticaerr.DeserializationFailed, err, "unmarshal storage document")
	}
	if doc.Version > fileFormatVersion {
		return eideticaerr.New(eideticaerr.DataCorruption, "storage file version %d is newer than supported version %d", doc.Version, fileFormatVersion)
	}

	idx := newDagIndex()
	for _, fe := range doc.Entries {
		var b *entry.Builder
		if fe.Root == "" {
			b = entry.RootBuilder()
		} else {
			b = entry.NewBuilder(fe.Root)
		}
		b.SetParentsMut(fe.Parents)
		for name, node := range fe.Subtrees {
			b.SetSubtreeDataMut(name, node.Data)
			b.SetSubtreeParentsMut(name, node.Parents)
		}
		e := b.Build()
		if fe.Sig.KeyName != "" || fe.Sig.Signature != "" {
			e = e.WithSignature(fe.Sig.KeyName, fe.Sig.Signature)
		}
		idx.put(e, fe.Status)
	}

	m.mu.Lock()
	m.idx = idx
	m.mu.Unlock()
	log.Debugw("loaded storage from file", "path", path, "entries", len(doc.Entries))
	return nil
}
