package entry

// Builder accumulates the content of an Entry before it is finalized by
// Build. Every mutator has a chainable move-and-return form (SetX) and a
// mutate-in-place form (SetXMut) that returns nothing, so a Builder can be
// held across several call sites as well as chained in one expression.
type Builder struct {
	root     string
	parents  []string
	subtrees map[string]SubtreeNode
}

// NewBuilder starts a builder for an entry belonging to the tree rooted at
// rootID.
func NewBuilder(rootID string) *Builder {
	return &Builder{root: rootID, subtrees: make(map[string]SubtreeNode)}
}

// RootBuilder starts a builder for a tree's root entry (Root == "").
func RootBuilder() *Builder {
	return NewBuilder("")
}

func (b *Builder) subtreeNode(name string) SubtreeNode {
	if node, ok := b.subtrees[name]; ok {
		return node
	}
	return SubtreeNode{}
}

// SetParents replaces the builder's main parents and returns the builder
// for chaining.
func (b *Builder) SetParents(parents []string) *Builder {
	b.SetParentsMut(parents)
	return b
}

// SetParentsMut replaces the builder's main parents in place.
func (b *Builder) SetParentsMut(parents []string) {
	b.parents = append([]string(nil), parents...)
}

// AppendParent adds one main parent and returns the builder for chaining.
func (b *Builder) AppendParent(id string) *Builder {
	b.AppendParentMut(id)
	return b
}

// AppendParentMut adds one main parent in place.
func (b *Builder) AppendParentMut(id string) {
	b.parents = append(b.parents, id)
}

// SetSubtreeData sets a subtree's payload and returns the builder for
// chaining.
func (b *Builder) SetSubtreeData(name, data string) *Builder {
	b.SetSubtreeDataMut(name, data)
	return b
}

// SetSubtreeDataMut sets a subtree's payload in place.
func (b *Builder) SetSubtreeDataMut(name, data string) {
	node := b.subtreeNode(name)
	node.Data = data
	b.subtrees[name] = node
}

// SetSubtreeParents sets a subtree's parent ids and returns the builder for
// chaining.
func (b *Builder) SetSubtreeParents(name string, parents []string) *Builder {
	b.SetSubtreeParentsMut(name, parents)
	return b
}

// SetSubtreeParentsMut sets a subtree's parent ids in place.
func (b *Builder) SetSubtreeParentsMut(name string, parents []string) {
	node := b.subtreeNode(name)
	node.Parents = append([]string(nil), parents...)
	b.subtrees[name] = node
}

// AppendSubtreeParent adds one parent id to a subtree and returns the
// builder for chaining.
func (b *Builder) AppendSubtreeParent(name, parent string) *Builder {
	b.AppendSubtreeParentMut(name, parent)
	return b
}

// AppendSubtreeParentMut adds one parent id to a subtree in place.
func (b *Builder) AppendSubtreeParentMut(name, parent string) {
	node := b.subtreeNode(name)
	node.Parents = append(node.Parents, parent)
	b.subtrees[name] = node
}

// RemoveEmptySubtrees drops any subtree the builder holds whose payload is
// the empty string, and returns the builder for chaining. Build calls this
// unconditionally, so it is only useful to call directly when inspecting
// a builder's state before finalizing it.
func (b *Builder) RemoveEmptySubtrees() *Builder {
	b.RemoveEmptySubtreesMut()
	return b
}

// RemoveEmptySubtreesMut drops empty-payload subtrees in place.
func (b *Builder) RemoveEmptySubtreesMut() {
	for name, node := range b.subtrees {
		if node.Data == "" {
			delete(b.subtrees, name)
		}
	}
}

// Build finalizes the builder into an immutable Entry: every id list is
// sorted and de-duplicated, subtrees with an empty payload are dropped, and
// the content-addressed id is computed over the result.
func (b *Builder) Build() *Entry {
	parents := sortDedup(b.parents)

	subtrees := make(map[string]SubtreeNode, len(b.subtrees))
	for name, node := range b.subtrees {
		if node.Data == "" {
			continue
		}
		subtrees[name] = SubtreeNode{
			Data:    node.Data,
			Parents: sortDedup(node.Parents),
		}
	}

	id := computeID(b.root, parents, subtrees)
	return &Entry{
		root:     b.root,
		parents:  parents,
		subtrees: subtrees,
		id:       id,
	}
}
