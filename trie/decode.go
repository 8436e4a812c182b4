package trie

import (
	"fmt"

	"github.com/eth2030/blockproof/rlp"
	"github.com/eth2030/blockproof/types"
)

// DecodeNode parses the RLP encoding of a single trie node, classifying it
// as Branch (17 elements), Leaf, or Extension (2 elements, disambiguated by
// the terminator flag in the compact-encoded key).
func DecodeNode(data []byte) (*Node, error) {
	item, err := rlp.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("trie: %w: %v", ErrMalformed, err)
	}
	if !item.IsList {
		return nil, fmt.Errorf("trie: %w: node must be an RLP list", ErrMalformed)
	}
	switch len(item.List) {
	case 17:
		return decodeBranch(item.List)
	case 2:
		return decodeShort(item.List)
	default:
		return nil, fmt.Errorf("trie: %w: node list has %d elements, want 2 or 17", ErrMalformed, len(item.List))
	}
}

func decodeBranch(elems []rlp.Item) (*Node, error) {
	var children [16]Ref
	for i := 0; i < 16; i++ {
		ref, err := decodeRef(elems[i])
		if err != nil {
			return nil, err
		}
		children[i] = ref
	}
	value, err := elems[16].ExpectString()
	if err != nil {
		return nil, fmt.Errorf("trie: %w: branch value slot must be a string", ErrMalformed)
	}
	if len(value) == 0 {
		value = nil
	}
	return NewBranch(children, value), nil
}

func decodeShort(elems []rlp.Item) (*Node, error) {
	keyBytes, err := elems[0].ExpectString()
	if err != nil {
		return nil, fmt.Errorf("trie: %w: short node key must be a string", ErrMalformed)
	}
	path, err := compactToHex(keyBytes)
	if err != nil {
		return nil, err
	}
	if hasTerm(path) {
		value, err := elems[1].ExpectString()
		if err != nil {
			return nil, fmt.Errorf("trie: %w: leaf value must be a string", ErrMalformed)
		}
		return NewLeaf(path[:len(path)-1], value), nil
	}
	ref, err := decodeRef(elems[1])
	if err != nil {
		return nil, err
	}
	return NewExtension(path, ref), nil
}

// decodeRef interprets one child slot of a decoded node: an empty string is
// no child, a 32-byte string is a hash reference, and anything else must be
// a raw inlined sub-node's RLP list re-encoded verbatim.
func decodeRef(item rlp.Item) (Ref, error) {
	if !item.IsList {
		b := item.Bytes
		if len(b) == 0 {
			return EmptyRef, nil
		}
		if len(b) == 32 {
			return HashRef(types.BytesToHash(b)), nil
		}
		return Ref{}, fmt.Errorf("trie: %w: child string reference must be empty or 32 bytes, got %d", ErrMalformed, len(b))
	}
	// Inlined sub-node: re-encode it canonically so the ref's bytes are
	// exactly what Node.Encode would have produced for this child.
	sub, err := decodeItemAsNode(item)
	if err != nil {
		return Ref{}, err
	}
	return InlineRef(sub.Encode()), nil
}

// decodeItemAsNode decodes an already-parsed list Item (an inlined child)
// into a Node, without re-parsing its RLP bytes from scratch.
func decodeItemAsNode(item rlp.Item) (*Node, error) {
	switch len(item.List) {
	case 17:
		return decodeBranch(item.List)
	case 2:
		return decodeShort(item.List)
	default:
		return nil, fmt.Errorf("trie: %w: inline node list has %d elements, want 2 or 17", ErrMalformed, len(item.List))
	}
}
