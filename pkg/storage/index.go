package storage

import (
	"sort"

	"github.com/arcuru/eidetica/pkg/entry"
)

// dagIndex is the graph bookkeeping shared by every backend: it tracks which
// entries belong to which tree, the main-parent and subtree-parent child
// edges (the reverse of what an Entry stores), and per-entry verification
// status. MemoryBackend holds one directly; BoltBackend rebuilds one into
// memory from its persisted buckets and keeps it in sync on every Put.
type dagIndex struct {
	entries      map[string]*entry.Entry
	verification map[string]VerificationStatus

	// treeEntries[rootID] lists every entry id in that tree, in put order.
	treeEntries map[string][]string

	// mainChildren[parentID] is the set of ids whose main parents include
	// parentID.
	mainChildren map[string]map[string]bool

	// subtreeChildren[name][parentID] is the set of ids whose parents list
	// for subtree name includes parentID.
	subtreeChildren map[string]map[string]map[string]bool

	// subtreeEntries[rootID][name] lists, in put order, the ids within
	// rootID's tree that carry subtree name.
	subtreeEntries map[string]map[string][]string

	roots map[string]bool
}

func newDagIndex() *dagIndex {
	return &dagIndex{
		entries:         make(map[string]*entry.Entry),
		verification:    make(map[string]VerificationStatus),
		treeEntries:     make(map[string][]string),
		mainChildren:    make(map[string]map[string]bool),
		subtreeChildren: make(map[string]map[string]map[string]bool),
		subtreeEntries:  make(map[string]map[string][]string),
		roots:           make(map[string]bool),
	}
}

// put records e in the index. It is idempotent: re-putting an already-known
// id leaves the index unchanged (entries are immutable, so the content
// cannot differ).
func (idx *dagIndex) put(e *entry.Entry, status VerificationStatus) {
	id := e.ID()
	if _, exists := idx.entries[id]; exists {
		return
	}
	idx.entries[id] = e
	idx.verification[id] = status

	rootID := e.Root()
	if e.IsRoot() {
		rootID = id
		idx.roots[id] = true
	}
	idx.treeEntries[rootID] = append(idx.treeEntries[rootID], id)

	for _, p := range e.Parents() {
		if idx.mainChildren[p] == nil {
			idx.mainChildren[p] = make(map[string]bool)
		}
		idx.mainChildren[p][id] = true
	}

	for _, name := range e.Subtrees() {
		parents, _ := e.SubtreeParents(name)
		if idx.subtreeChildren[name] == nil {
			idx.subtreeChildren[name] = make(map[string]map[string]bool)
		}
		for _, p := range parents {
			if idx.subtreeChildren[name][p] == nil {
				idx.subtreeChildren[name][p] = make(map[string]bool)
			}
			idx.subtreeChildren[name][p][id] = true
		}
		if idx.subtreeEntries[rootID] == nil {
			idx.subtreeEntries[rootID] = make(map[string][]string)
		}
		idx.subtreeEntries[rootID][name] = append(idx.subtreeEntries[rootID][name], id)
	}
}

func (idx *dagIndex) allRoots() []string {
	out := make([]string, 0, len(idx.roots))
	for id := range idx.roots {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// tips returns the ids in rootID's tree with no main-DAG children. An
// unknown root returns nil; a tree containing only its root entry returns
// [rootID].
func (idx *dagIndex) tips(rootID string) []string {
	ids, ok := idx.treeEntries[rootID]
	if !ok {
		return nil
	}
	var out []string
	for _, id := range ids {
		if len(idx.mainChildren[id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// subtreeTips returns the ids within rootID's tree carrying subtree name
// that have no children within that subtree's own parent chain.
func (idx *dagIndex) subtreeTips(rootID, name string) []string {
	ids := idx.subtreeEntries[rootID][name]
	var out []string
	for _, id := range ids {
		if len(idx.subtreeChildren[name][id]) == 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// heights computes longest-path-from-source height over the subgraph named
// by ids, where parentsOf returns each id's parent edges (restricted to
// ids). Sources (no parents within ids) get height 0.
func heights(ids []string, parentsOf func(id string) []string) map[string]int {
	inSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		inSet[id] = true
	}

	height := make(map[string]int, len(ids))
	inDegree := make(map[string]int, len(ids))
	children := make(map[string][]string)
	queue := make([]string, 0, len(ids))

	for _, id := range ids {
		count := 0
		for _, p := range parentsOf(id) {
			if inSet[p] {
				count++
				children[p] = append(children[p], id)
			}
		}
		inDegree[id] = count
		if count == 0 {
			height[id] = 0
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if height[id]+1 > height[child] {
				height[child] = height[id] + 1
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}
	return height
}

func (idx *dagIndex) mainHeights(rootID string) map[string]int {
	ids := idx.treeEntries[rootID]
	return heights(ids, func(id string) []string {
		return idx.entries[id].Parents()
	})
}

func (idx *dagIndex) subtreeHeights(rootID, name string) map[string]int {
	ids := idx.subtreeEntries[rootID][name]
	return heights(ids, func(id string) []string {
		parents, _ := idx.entries[id].SubtreeParents(name)
		return parents
	})
}

// sortByHeight stably orders ids ascending by height, ties broken by id.
func sortByHeight(ids []string, height map[string]int) []string {
	out := append([]string(nil), ids...)
	sort.SliceStable(out, func(i, j int) bool {
		hi, hj := height[out[i]], height[out[j]]
		if hi != hj {
			return hi < hj
		}
		return out[i] < out[j]
	})
	return out
}

// reachableFromTips walks parentsOf backward from tips (filtered to known,
// in-scope ids) and returns every visited id, unordered. Unknown tips are
// silently skipped, never an error.
func reachableFromTips(tips []string, known map[string]bool, parentsOf func(id string) []string) []string {
	visited := make(map[string]bool)
	stack := make([]string, 0, len(tips))
	for _, t := range tips {
		if known[t] {
			stack = append(stack, t)
		}
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true
		for _, p := range parentsOf(id) {
			if known[p] && !visited[p] {
				stack = append(stack, p)
			}
		}
	}
	out := make([]string, 0, len(visited))
	for id := range visited {
		out = append(out, id)
	}
	return out
}

func (idx *dagIndex) treeFromTips(rootID string, tips []string) []string {
	ids, ok := idx.treeEntries[rootID]
	if !ok {
		return nil
	}
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return reachableFromTips(tips, known, func(id string) []string {
		return idx.entries[id].Parents()
	})
}

func (idx *dagIndex) subtreeFromTips(rootID, name string, tips []string) []string {
	ids := idx.subtreeEntries[rootID][name]
	if len(ids) == 0 {
		return nil
	}
	carries := make(map[string]bool, len(ids))
	for _, id := range ids {
		carries[id] = true
	}
	// Walk main parents so that subtree entries behind tips which do not
	// themselves carry the subtree are still found.
	var out []string
	for _, id := range idx.treeFromTips(rootID, tips) {
		if carries[id] {
			out = append(out, id)
		}
	}
	return out
}
