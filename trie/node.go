package trie

import (
	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/rlp"
	"github.com/eth2030/blockproof/types"
)

// Kind tags the three trie node variants named in spec section 3. There is
// no subtyping: every operation on a Node switches on Kind.
type Kind byte

const (
	KindBranch Kind = iota
	KindExtension
	KindLeaf
)

// Ref is a reference to a child node: either empty, a 32-byte hash
// reference, or the complete RLP encoding of the child inlined in place
// (when that encoding is shorter than 32 bytes).
type Ref struct {
	Hash   types.Hash
	Inline []byte // non-nil iff this ref is an inlined sub-node
	hasHash bool
}

// EmptyRef is the zero value: no child present in this slot.
var EmptyRef = Ref{}

// HashRef builds a Ref that points at a child by its hash.
func HashRef(h types.Hash) Ref { return Ref{Hash: h, hasHash: true} }

// InlineRef builds a Ref that embeds a child's raw RLP encoding directly.
func InlineRef(rlpData []byte) Ref { return Ref{Inline: rlpData} }

// IsEmpty reports whether no child is present.
func (r Ref) IsEmpty() bool { return !r.hasHash && r.Inline == nil }

// IsHash reports whether this ref points at a child by hash.
func (r Ref) IsHash() bool { return r.hasHash }

// Node is a decoded trie node. Exactly the fields relevant to Kind are
// populated:
//
//   - Branch: Children[0..15] are child refs, Value is the optional
//     value at the branch's own key (child slot 16 in the Yellow Paper's
//     17-element layout).
//   - Extension: Path is the nibble prefix (no terminator), Children[0]
//     is the single child ref.
//   - Leaf: Path is the nibble suffix (no terminator; Kind carries the
//     leaf/extension distinction instead), Value is the leaf's value
//     bytes.
type Node struct {
	Kind     Kind
	Children [16]Ref
	Value    []byte
	Path     []byte
}

// NewBranch constructs a branch node.
func NewBranch(children [16]Ref, value []byte) *Node {
	return &Node{Kind: KindBranch, Children: children, Value: value}
}

// NewExtension constructs an extension node. path must not carry a
// terminator nibble.
func NewExtension(path []byte, child Ref) *Node {
	n := &Node{Kind: KindExtension, Path: path}
	n.Children[0] = child
	return n
}

// NewLeaf constructs a leaf node. path must not carry a terminator nibble;
// leaf-ness is recorded by Kind alone.
func NewLeaf(path []byte, value []byte) *Node {
	return &Node{Kind: KindLeaf, Path: path, Value: value}
}

// Encode produces the canonical RLP encoding of the node.
func (n *Node) Encode() []byte {
	switch n.Kind {
	case KindBranch:
		parts := make([][]byte, 17)
		for i := 0; i < 16; i++ {
			parts[i] = encodeRef(n.Children[i])
		}
		parts[16] = rlp.EncodeBytes(n.Value)
		return rlp.EncodeList(parts...)

	case KindExtension:
		keyEnc := rlp.EncodeBytes(hexToCompact(n.Path))
		childEnc := encodeRef(n.Children[0])
		return rlp.EncodeList(keyEnc, childEnc)

	case KindLeaf:
		withTerm := append(append([]byte{}, n.Path...), terminator)
		keyEnc := rlp.EncodeBytes(hexToCompact(withTerm))
		valEnc := rlp.EncodeBytes(n.Value)
		return rlp.EncodeList(keyEnc, valEnc)

	default:
		panic("trie: unknown node kind")
	}
}

// encodeRef renders a Ref as it belongs inside a parent's RLP payload: an
// empty string for no child, an RLP string for a hash reference, or the
// inline child's own RLP bytes spliced in verbatim (its encoding is already
// a complete RLP list, so it must not be re-wrapped as a string).
func encodeRef(r Ref) []byte {
	switch {
	case r.hasHash:
		return rlp.EncodeBytes(r.Hash[:])
	case r.Inline != nil:
		return r.Inline
	default:
		return rlp.EncodeBytes(nil)
	}
}

// HashResult is the outcome of hashing a node: either a 32-byte hash
// reference, or (if the encoding is under 32 bytes) the inline encoding
// itself, per spec section 4.3.
type HashResult struct {
	Ref     Ref
	RLP     []byte // always the node's raw RLP, regardless of inlining
	Hash    types.Hash
	Inlined bool
}

// Hash computes the node's RLP encoding and, per spec section 4.3, either
// its keccak-256 hash (encoding >= 32 bytes) or marks it for inlining
// (encoding < 32 bytes) unless force is set, which always hashes — used for
// the root node, which is never inlined even if small.
func (n *Node) Hash(force bool) HashResult {
	enc := n.Encode()
	if !force && len(enc) < 32 {
		return HashResult{Ref: InlineRef(enc), RLP: enc, Inlined: true}
	}
	h := crypto.Keccak256Hash(enc)
	return HashResult{Ref: HashRef(h), RLP: enc, Hash: h}
}

// EmptyTrieRoot is the fixed 32-byte constant keccak(RLP(empty list)), the
// root hash of a trie with no entries.
var EmptyTrieRoot = crypto.Keccak256Hash(rlp.EncodeList())

// withChild returns a copy of n (a Branch, or an Extension with slot 0) with slot's child
// replaced by ref. The original node is left untouched, since a node may
// still be reachable from the pre-mutation root held elsewhere (e.g. the
// caller's own history) until the splice completes.
func (n *Node) withChild(slot int, ref Ref) *Node {
	cp := *n
	cp.Children[slot] = ref
	return &cp
}

// withValue returns a copy of n (Branch or Leaf) with its Value replaced.
func (n *Node) withValue(value []byte) *Node {
	cp := *n
	cp.Value = value
	return &cp
}
