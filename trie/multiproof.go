package trie

import (
	"fmt"

	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/types"
)

// Oracle resolves a node by hash when a mutation needs to inspect a sibling
// that no proof supplied — the situation spec section 4.5/9 calls out for
// Delete's branch-collapse step. A Multiproof with no oracle attached can
// still Construct, Get, Update, and Insert; Delete needs one only when a
// collapse reaches into an unproven subtree.
type Oracle interface {
	Resolve(hash types.Hash) (*Node, error)
}

// Multiproof overlays any number of single-key proofs that share one root
// into a single mutable trie (spec section 4.5). Nodes are held in a
// content-addressed Store, so proof paths that share a subtree store it
// once regardless of how many keys' proofs mentioned it.
type Multiproof struct {
	root   types.Hash
	store  *Store
	oracle Oracle
}

// NewMultiproof creates an empty overlay rooted at root. Proofs are merged
// in with AddProof before any Get/Update/Insert/Delete call.
func NewMultiproof(root types.Hash) *Multiproof {
	return &Multiproof{root: root, store: NewStore()}
}

// WithOracle attaches the sibling-resolution collaborator Delete consults
// when a collapse needs a node no proof supplied.
func (m *Multiproof) WithOracle(o Oracle) *Multiproof {
	m.oracle = o
	return m
}

// Root returns the multiproof's current root hash.
func (m *Multiproof) Root() types.Hash { return m.root }

// Store exposes the underlying node arena.
func (m *Multiproof) Store() *Store { return m.store }

// AddProof merges one eth_getProof-style single-key proof into the overlay.
// Proof nodes are content-addressed: a node shared with a prior key's proof
// is recognized by hash and stored only once. The proof's first node must
// hash to the multiproof's root, and the full chain must resolve
// consistently for key; both are verified immediately so a bad proof is
// rejected at the point it is added rather than surfacing later.
func (m *Multiproof) AddProof(key types.Hash, proofNodes [][]byte) error {
	for i, raw := range proofNodes {
		node, err := DecodeNode(raw)
		if err != nil {
			return &PositionedError{Err: ErrMalformed, AccountIdx: -1, StorageIdx: -1, NodeDepth: i, Description: err.Error()}
		}
		hash := crypto.Keccak256Hash(raw)
		if i == 0 && hash != m.root {
			return &PositionedError{Err: ErrProofInconsistent, AccountIdx: -1, StorageIdx: -1, NodeDepth: 0, Description: "first proof node's hash does not match the multiproof root"}
		}
		if err := m.store.Insert(hash, node, raw); err != nil {
			return err
		}
	}
	if m.root == EmptyTrieRoot {
		return nil
	}
	nibbles := KeyNibbles(key)
	_, _, _, err := walk(m.store.Resolve, HashRef(m.root), nibbles)
	return err
}

// walkRoot is walk, specialized for the well-formed empty trie: an empty
// root hash has no corresponding stored node, so it is never resolved,
// only recognized directly.
func (m *Multiproof) walkRoot(nibbles []byte) (ProofResult, []step, []byte, error) {
	if m.root == EmptyTrieRoot {
		return Exclusion, nil, nibbles, nil
	}
	return walk(m.store.Resolve, HashRef(m.root), nibbles)
}

// Get classifies key against the overlay's current root, per spec section
// 4.4. An error indicates the overlay lacks a node the proven path needs.
func (m *Multiproof) Get(key types.Hash) (ProofResult, error) {
	result, _, _, err := m.walkRoot(KeyNibbles(key))
	return result, err
}

// ProofNodes re-derives the root-most-first list of raw node RLP along
// key's path, in the eth_getProof wire shape, from the nodes the overlay
// currently holds.
func (m *Multiproof) ProofNodes(key types.Hash) ([][]byte, error) {
	_, chain, _, err := m.walkRoot(KeyNibbles(key))
	if err != nil {
		return nil, err
	}
	nodes := make([][]byte, len(chain))
	for i, st := range chain {
		nodes[i] = st.Node.Encode()
	}
	return nodes, nil
}

// Update replaces the value at an already-included key and returns the new
// root, per spec section 4.5. Use Insert for a key currently excluded.
func (m *Multiproof) Update(key types.Hash, newValue []byte) (types.Hash, error) {
	nibbles := KeyNibbles(key)
	result, chain, _, err := m.walkRoot(nibbles)
	if err != nil {
		return m.root, err
	}
	if !result.Included {
		return m.root, fmt.Errorf("trie: key is not included in the overlay; use Insert")
	}
	mutated := chain[len(chain)-1].Node.withValue(newValue)
	newRoot, err := m.spliceUp(chain, mutated)
	if err != nil {
		return m.root, err
	}
	m.root = newRoot
	return newRoot, nil
}

// Insert adds a value at a key currently proven excluded and returns the
// new root, per spec section 4.5's four structural sub-cases: the empty
// trie, an empty branch slot, a branch's own unused value slot, and a
// diverging leaf or extension that must split into a branch.
func (m *Multiproof) Insert(key types.Hash, value []byte) (types.Hash, error) {
	nibbles := KeyNibbles(key)
	result, chain, remaining, err := m.walkRoot(nibbles)
	if err != nil {
		return m.root, err
	}
	if result.Included {
		return m.root, fmt.Errorf("trie: key is already included in the overlay; use Update")
	}

	if len(chain) == 0 {
		leaf := NewLeaf(nibbles, value)
		ref := m.store.InsertComputed(leaf, true)
		m.root = ref.Hash
		return m.root, nil
	}

	last := chain[len(chain)-1]
	var mutated *Node
	switch {
	case last.Slot == 16:
		mutated = last.Node.withValue(value)

	case last.Slot >= 0:
		leaf := NewLeaf(append([]byte{}, remaining...), value)
		leafRef := m.store.InsertComputed(leaf, false)
		mutated = last.Node.withChild(last.Slot, leafRef)

	default:
		mutated, err = m.splitNode(last.Node, remaining, value)
		if err != nil {
			return m.root, err
		}
	}

	newRoot, err := m.spliceUp(chain, mutated)
	if err != nil {
		return m.root, err
	}
	m.root = newRoot
	return newRoot, nil
}

// splitNode builds the replacement for a Leaf or Extension whose path
// diverges from remaining at some nibble: a branch with the old and new
// paths' continuations in two slots, wrapped in an extension if they share
// a nonempty common prefix beyond the point already consumed.
func (m *Multiproof) splitNode(node *Node, remaining []byte, value []byte) (*Node, error) {
	p := node.Path
	n := prefixLen(p, remaining)
	if n == len(p) {
		return nil, fmt.Errorf("trie: %w: splitNode called without a diverging nibble", ErrMalformed)
	}
	if n == len(remaining) {
		// remaining is a strict prefix of p: the new key would have to
		// end exactly where an existing path continues, which cannot
		// happen for same-length hashed keys.
		return nil, fmt.Errorf("trie: %w: new key is a strict prefix of an existing path", ErrMalformed)
	}

	oldSlot, newSlot := p[n], remaining[n]

	var oldRef Ref
	switch node.Kind {
	case KindLeaf:
		oldLeaf := NewLeaf(append([]byte{}, p[n+1:]...), node.Value)
		oldRef = m.store.InsertComputed(oldLeaf, false)
	case KindExtension:
		childSuffix := p[n+1:]
		if len(childSuffix) == 0 {
			oldRef = node.Children[0]
		} else {
			oldExt := NewExtension(append([]byte{}, childSuffix...), node.Children[0])
			oldRef = m.store.InsertComputed(oldExt, false)
		}
	default:
		return nil, fmt.Errorf("trie: %w: splitNode called on a branch", ErrMalformed)
	}

	newLeaf := NewLeaf(append([]byte{}, remaining[n+1:]...), value)
	newRef := m.store.InsertComputed(newLeaf, false)

	var children [16]Ref
	children[oldSlot] = oldRef
	children[newSlot] = newRef
	branch := NewBranch(children, nil)

	if n == 0 {
		return branch, nil
	}
	branchRef := m.store.InsertComputed(branch, false)
	return NewExtension(append([]byte{}, p[:n]...), branchRef), nil
}

// Delete removes an already-included key and returns the new root, per
// spec section 4.5/9. Removing a leaf can leave its parent branch with a
// single remaining child, which must collapse into a leaf or extension;
// that collapse needs the sibling's decoded form, which a proof built
// only from the deleted key's own path does not always supply. In that
// case Delete consults the attached Oracle; with none attached and the
// sibling unresolved, it reports ErrInsufficientProof rather than
// silently producing a noncanonical trie.
func (m *Multiproof) Delete(key types.Hash) (types.Hash, error) {
	nibbles := KeyNibbles(key)
	result, chain, _, err := m.walkRoot(nibbles)
	if err != nil {
		return m.root, err
	}
	if !result.Included {
		return m.root, fmt.Errorf("trie: key is not included in the overlay; nothing to delete")
	}
	if len(chain) == 1 {
		m.root = EmptyTrieRoot
		return m.root, nil
	}

	newRoot, err := m.deleteAt(chain, len(chain)-1)
	if err != nil {
		return m.root, err
	}
	m.root = newRoot
	return newRoot, nil
}

type slotRef struct {
	slot byte
	ref  Ref
}

func collectBranchChildren(children [16]Ref) []slotRef {
	var out []slotRef
	for i, c := range children {
		if !c.IsEmpty() {
			out = append(out, slotRef{slot: byte(i), ref: c})
		}
	}
	return out
}

// deleteAt removes the node at chain[idx] by updating its parent at
// chain[idx-1], recursing upward through any cascading collapse.
func (m *Multiproof) deleteAt(chain []step, idx int) (types.Hash, error) {
	parentStep := chain[idx-1]
	parent := parentStep.Node

	switch parent.Kind {
	case KindExtension:
		// The extension's only child is gone, so the extension itself
		// vanishes; the same removal now happens one level up.
		if idx-1 == 0 {
			return EmptyTrieRoot, nil
		}
		return m.deleteAt(chain, idx-1)

	case KindBranch:
		children := parent.Children
		children[parentStep.Slot] = EmptyRef
		remaining := collectBranchChildren(children)
		hasValue := parent.Value != nil

		switch {
		case len(remaining) == 0 && !hasValue:
			return types.Hash{}, fmt.Errorf("trie: %w: branch left with no children or value after delete", ErrMalformed)

		case len(remaining) == 0 && hasValue:
			leaf := NewLeaf(nil, parent.Value)
			return m.collapseReplace(chain, idx-1, leaf)

		case len(remaining) == 1 && !hasValue:
			replacement, err := m.collapseSingleChild(remaining[0].slot, remaining[0].ref)
			if err != nil {
				return types.Hash{}, err
			}
			return m.collapseReplace(chain, idx-1, replacement)

		default:
			mutated := parent.withChild(parentStep.Slot, EmptyRef)
			return m.spliceUp(chain[:idx], mutated)
		}

	default:
		return types.Hash{}, fmt.Errorf("trie: %w: a leaf cannot be a delete parent", ErrMalformed)
	}
}

// collapseSingleChild folds a branch's sole remaining child into a single
// node occupying the branch's old position: a branch child is wrapped in a
// one-nibble extension, while a leaf or extension child has its own path
// prepended with the slot nibble and is returned directly (no extension
// wrapping two adjacent short nodes).
func (m *Multiproof) collapseSingleChild(slot byte, ref Ref) (*Node, error) {
	child, ok := m.store.Resolve(ref)
	if !ok {
		// An inline ref always resolves above; only a hash ref that is
		// absent from the store reaches here.
		if m.oracle == nil {
			return nil, fmt.Errorf("trie: %w: sibling node unavailable for collapse and no oracle configured", ErrInsufficientProof)
		}
		resolved, err := m.oracle.Resolve(ref.Hash)
		if err != nil {
			return nil, fmt.Errorf("trie: %w: oracle could not resolve sibling %s: %v", ErrInsufficientProof, ref.Hash, err)
		}
		if err := m.store.Insert(ref.Hash, resolved, resolved.Encode()); err != nil {
			return nil, err
		}
		child = resolved
	}

	switch child.Kind {
	case KindBranch:
		return NewExtension([]byte{slot}, ref), nil
	case KindExtension:
		merged := append([]byte{slot}, child.Path...)
		return NewExtension(merged, child.Children[0]), nil
	case KindLeaf:
		merged := append([]byte{slot}, child.Path...)
		return NewLeaf(merged, child.Value), nil
	default:
		return nil, fmt.Errorf("trie: %w: unknown child kind during collapse", ErrMalformed)
	}
}

// collapseReplace installs replacement in place of chain[parentIdx].Node
// and splices the new hash up to the root. A leaf or extension can never
// sit directly beneath another extension in a well-formed trie (hex-prefix
// encoding requires adjacent short nodes to already be fused), so if
// chain[parentIdx-1] is itself an extension, replacement's path is fused
// into it and the extension's own position collapses in turn — the same
// move deleteAt makes one level down, just folded into the node the
// collapse already produced rather than requiring a second traversal.
func (m *Multiproof) collapseReplace(chain []step, parentIdx int, replacement *Node) (types.Hash, error) {
	if parentIdx == 0 {
		return m.spliceUp(chain[:1], replacement)
	}
	grandparent := chain[parentIdx-1].Node
	if grandparent.Kind == KindExtension {
		merged := append(append([]byte{}, grandparent.Path...), replacement.Path...)
		switch replacement.Kind {
		case KindExtension:
			fused := NewExtension(merged, replacement.Children[0])
			return m.collapseReplace(chain[:parentIdx], parentIdx-1, fused)
		case KindLeaf:
			fused := NewLeaf(merged, replacement.Value)
			return m.collapseReplace(chain[:parentIdx], parentIdx-1, fused)
		}
	}
	return m.spliceUp(chain[:parentIdx+1], replacement)
}

// spliceUp recomputes hashes from mutated (which replaces the node at
// chain[len(chain)-1]) up through every ancestor in chain, using each
// step's Slot to know which child of its node to rewrite, and returns the
// resulting root hash. Only the final, root-most recomputation is forced
// to a full hash rather than left eligible for inlining.
func (m *Multiproof) spliceUp(chain []step, mutated *Node) (types.Hash, error) {
	n := len(chain)
	ref := m.store.InsertComputed(mutated, n == 1)
	for i := n - 2; i >= 0; i-- {
		node := chain[i].Node
		slot := chain[i].Slot
		var next *Node
		switch {
		case slot == -1:
			next = node.withChild(0, ref)
		case slot == 16:
			return types.Hash{}, fmt.Errorf("trie: %w: cannot splice through a branch's own value slot", ErrMalformed)
		default:
			next = node.withChild(slot, ref)
		}
		ref = m.store.InsertComputed(next, i == 0)
	}
	return ref.Hash, nil
}
