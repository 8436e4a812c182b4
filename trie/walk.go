package trie

import (
	"fmt"

	"github.com/eth2030/blockproof/types"
)

// ProofResult is the outcome of walking a key's path to its root, per spec
// section 4.4: either the key is proven included with a value, or proven
// excluded.
type ProofResult struct {
	Included bool
	Value    []byte
}

// Exclusion is the zero-value result for an absent key.
var Exclusion = ProofResult{}

// Inclusion builds the result for a key proven present with value v.
func Inclusion(v []byte) ProofResult { return ProofResult{Included: true, Value: v} }

// resolver looks up the node a Ref points to. ok is false when a hash
// reference cannot be resolved (missing proof node).
type resolver func(Ref) (*Node, bool)

// step records one node visited on a root-to-leaf walk, together with the
// branch slot (nibble 0-15) taken to reach the next step, or 16 where the
// walk ends at a branch's value position. Slot is -1 for
// Extension and Leaf nodes, which have at most one child. This chain is
// exactly what Update/Insert/Delete need to splice a new child reference
// back up to a new root.
type step struct {
	Node *Node
	Slot int
}

// walk descends from rootRef along keyNibbles, resolving each child
// through resolve. It returns the full step chain (root-most first), the
// terminal result, and the nibble suffix still unconsumed at the point
// traversal stopped (used by Insert to size the new leaf or split). A
// resolve failure reports a missing-node error at the depth it occurred.
func walk(resolve resolver, rootRef Ref, keyNibbles []byte) (ProofResult, []step, []byte, error) {
	node, ok := resolve(rootRef)
	if !ok {
		return ProofResult{}, nil, nil, missingNodeErr(0, "cannot resolve root reference")
	}
	if node == nil {
		return Exclusion, nil, keyNibbles, nil
	}

	var chain []step
	remaining := keyNibbles
	depth := 0

	for {
		switch node.Kind {
		case KindLeaf:
			chain = append(chain, step{Node: node, Slot: -1})
			if bytesEqual(node.Path, remaining) {
				return Inclusion(node.Value), chain, nil, nil
			}
			return Exclusion, chain, remaining, nil

		case KindExtension:
			chain = append(chain, step{Node: node, Slot: -1})
			n := prefixLen(node.Path, remaining)
			if n < len(node.Path) {
				// Extension prefix diverges from the unconsumed nibbles
				// (or the unconsumed nibbles ran out as a strict prefix
				// of the extension's path): exclusion, per spec section
				// 4.4. The pre-match remaining is returned so Insert can
				// compute the split point against node.Path.
				return Exclusion, chain, remaining, nil
			}
			remaining = remaining[n:]
			depth++
			child, ok := resolve(node.Children[0])
			if !ok {
				return ProofResult{}, chain, nil, missingNodeErr(depth, "extension child unresolved")
			}
			if child == nil {
				// A valid extension always has a non-empty child; this
				// indicates a malformed proof.
				return ProofResult{}, chain, nil, fmt.Errorf("trie: %w: extension with empty child at depth %d", ErrMalformed, depth)
			}
			node = child

		case KindBranch:
			if len(remaining) == 0 {
				chain = append(chain, step{Node: node, Slot: 16})
				if node.Value == nil {
					return Exclusion, chain, nil, nil
				}
				return Inclusion(node.Value), chain, nil, nil
			}
			slot := int(remaining[0])
			chain = append(chain, step{Node: node, Slot: slot})
			child := node.Children[slot]
			if child.IsEmpty() {
				return Exclusion, chain, remaining[1:], nil
			}
			remaining = remaining[1:]
			depth++
			resolved, ok := resolve(child)
			if !ok {
				return ProofResult{}, chain, nil, missingNodeErr(depth, "branch child unresolved")
			}
			if resolved == nil {
				return ProofResult{}, chain, nil, fmt.Errorf("trie: %w: branch with empty resolved child at depth %d", ErrMalformed, depth)
			}
			node = resolved

		default:
			return ProofResult{}, chain, nil, fmt.Errorf("trie: %w: unknown node kind", ErrMalformed)
		}
	}
}

func missingNodeErr(depth int, desc string) error {
	return &PositionedError{Err: ErrInsufficientProof, AccountIdx: -1, StorageIdx: -1, NodeDepth: depth, Description: desc}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// KeyNibbles expands a 32-byte hashed key into its 64-nibble path, the form
// every trie in this module's domain uses (account and storage tries are
// both keyed by keccak-256 hashes, spec section 3).
func KeyNibbles(key types.Hash) []byte {
	return keyToNibbles(key[:])
}
