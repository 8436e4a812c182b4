package trie

import (
	"bytes"
	"fmt"

	"github.com/eth2030/blockproof/types"
)

// Store is a content-addressed mapping from a node's hash to its decoded
// contents (spec section 3/9): an arena that removes any ownership cycle,
// since every reference between nodes is a lookup hash or an inline
// sub-node, never a direct pointer. One Store backs exactly one root:
// the account trie has its own, and every per-account storage trie has
// its own keyed by that account's storage root.
type Store struct {
	nodes map[types.Hash]storedNode
}

type storedNode struct {
	node *Node
	rlp  []byte
}

// NewStore creates an empty node store.
func NewStore() *Store {
	return &Store{nodes: make(map[types.Hash]storedNode)}
}

// Get returns the decoded node for hash, or nil if absent.
func (s *Store) Get(hash types.Hash) *Node {
	sn, ok := s.nodes[hash]
	if !ok {
		return nil
	}
	return sn.node
}

// Has reports whether hash is present in the store.
func (s *Store) Has(hash types.Hash) bool {
	_, ok := s.nodes[hash]
	return ok
}

// Len returns the number of distinct nodes held.
func (s *Store) Len() int { return len(s.nodes) }

// Insert adds a decoded node under its hash along with the RLP bytes it was
// decoded from. A duplicate insertion under the same hash must carry
// byte-identical RLP (spec section 4.5 "Construct from proofs"); a mismatch
// is rejected as a structural inconsistency, since two different encodings
// cannot share a keccak-256 preimage without a hash collision.
func (s *Store) Insert(hash types.Hash, node *Node, rlpData []byte) error {
	if existing, ok := s.nodes[hash]; ok {
		if !bytes.Equal(existing.rlp, rlpData) {
			return fmt.Errorf("trie: %w: duplicate node hash %s with differing RLP", ErrProofInconsistent, hash)
		}
		return nil
	}
	s.nodes[hash] = storedNode{node: node, rlp: rlpData}
	return nil
}

// InsertComputed hashes node and inserts it under the resulting hash (or,
// if the encoding inlines, does nothing — inline nodes are never looked up
// by hash, only reached via the Ref embedded in their parent). It returns
// the node's Ref so the caller can splice it into a parent.
func (s *Store) InsertComputed(node *Node, force bool) Ref {
	res := node.Hash(force)
	if res.Inlined {
		return res.Ref
	}
	_ = s.Insert(res.Hash, node, res.RLP)
	return res.Ref
}

// Resolve follows a Ref to its Node, consulting the store for hash
// references and decoding inline references on the fly. It returns nil,
// false if a hash reference cannot be resolved.
func (s *Store) Resolve(ref Ref) (*Node, bool) {
	if ref.IsEmpty() {
		return nil, true
	}
	if ref.IsHash() {
		n := s.Get(ref.Hash)
		return n, n != nil
	}
	n, err := DecodeNode(ref.Inline)
	if err != nil {
		return nil, false
	}
	return n, true
}
