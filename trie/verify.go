package trie

import (
	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/types"
)

// VerifyProof checks a single-key Merkle-Patricia proof against root,
// classifying the result as inclusion or exclusion per spec section 4.4.
// proofNodes are the raw RLP node encodings visited root-to-leaf, as
// returned by eth_getProof. The first proof node's hash must equal root.
func VerifyProof(root types.Hash, keyNibbles []byte, proofNodes [][]byte) (ProofResult, error) {
	store := NewStore()
	for i, raw := range proofNodes {
		node, err := DecodeNode(raw)
		if err != nil {
			return ProofResult{}, &PositionedError{Err: ErrMalformed, AccountIdx: -1, StorageIdx: -1, NodeDepth: i, Description: err.Error()}
		}
		hash := crypto.Keccak256Hash(raw)
		if i == 0 && hash != root {
			return ProofResult{}, &PositionedError{Err: ErrProofInconsistent, AccountIdx: -1, StorageIdx: -1, NodeDepth: 0, Description: "first proof node's hash does not match the claimed root"}
		}
		if err := store.Insert(hash, node, raw); err != nil {
			return ProofResult{}, err
		}
	}
	result, _, _, err := walk(store.Resolve, HashRef(root), keyNibbles)
	return result, err
}
