package oracle

import (
	"bytes"
	"testing"

	"github.com/eth2030/blockproof/trie"
	"github.com/eth2030/blockproof/types"
)

func hash(b byte) types.Hash {
	var out types.Hash
	out[0], out[31] = b, b
	return out
}

// packNibbles packs a full 64-nibble path into a 32-byte hash.
func packNibbles(nibbles []byte) types.Hash {
	var h types.Hash
	for i := 0; i < 32; i++ {
		h[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return h
}

// buildNibbles returns a 64-nibble path starting with prefix and padded
// with filler, used to control exactly where two keys' paths diverge.
func buildNibbles(prefix []byte, filler byte) []byte {
	out := make([]byte, 64)
	copy(out, prefix)
	for i := len(prefix); i < 64; i++ {
		out[i] = filler
	}
	return out
}

func TestTableAddExclusionProofAndResolve(t *testing.T) {
	source := trie.NewMultiproof(trie.EmptyTrieRoot)
	keyA := hash(0x01)
	keyB := hash(0xf0)
	if _, err := source.Insert(keyA, []byte("a")); err != nil {
		t.Fatalf("Insert a: %v", err)
	}
	if _, err := source.Insert(keyB, []byte("b")); err != nil {
		t.Fatalf("Insert b: %v", err)
	}
	root := source.Root()

	excluded := hash(0x02)
	proof, err := source.ProofNodes(excluded)
	if err != nil {
		t.Fatalf("ProofNodes: %v", err)
	}
	if len(proof) == 0 {
		t.Fatalf("expected a nonempty exclusion proof chain")
	}

	table := NewTable()
	keyNibbles := trie.KeyNibbles(excluded)
	if err := table.AddExclusionProof(root, keyNibbles, proof); err != nil {
		t.Fatalf("AddExclusionProof: %v", err)
	}
	if table.Len() == 0 {
		t.Fatalf("oracle table has no nodes after a nonempty exclusion proof")
	}
}

func TestTableAddExclusionProofRejectsInclusion(t *testing.T) {
	source := trie.NewMultiproof(trie.EmptyTrieRoot)
	key := hash(0x01)
	if _, err := source.Insert(key, []byte("a")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	proof, err := source.ProofNodes(key)
	if err != nil {
		t.Fatalf("ProofNodes: %v", err)
	}

	table := NewTable()
	if err := table.AddExclusionProof(source.Root(), trie.KeyNibbles(key), proof); err == nil {
		t.Fatalf("AddExclusionProof on an included key succeeded, want error")
	}
}

func TestTableResolveUnknownHashFails(t *testing.T) {
	table := NewTable()
	if _, err := table.Resolve(hash(0x99)); err == nil {
		t.Fatalf("Resolve on unknown hash succeeded, want error")
	}
}

// TestDeleteRequiringOracleCollapsesExtensionBranchLeaf exercises the
// "deletion requiring oracle" scenario: three keys share enough nibbles to
// build an extension-over-branch-over-extension-over-branch shape. A proof
// covering only the deleted key's own path never carries the sibling leaf
// that the collapse needs, so Delete fails without an oracle and succeeds
// once one is attached, producing the same root a trie built from the two
// surviving keys alone would have had from the start.
func TestDeleteRequiringOracleCollapsesExtensionBranchLeaf(t *testing.T) {
	keyA := packNibbles(buildNibbles([]byte{1, 2, 3}, 0xa))
	keyB := packNibbles(buildNibbles([]byte{1, 2, 7, 9, 0xa}, 0x5))
	keyC := packNibbles(buildNibbles([]byte{1, 2, 7, 9, 0xb}, 0x5))

	valA := bytes.Repeat([]byte{0xaa}, 40)
	valB := bytes.Repeat([]byte{0xbb}, 40)
	valC := bytes.Repeat([]byte{0xcc}, 40)

	full := trie.NewMultiproof(trie.EmptyTrieRoot)
	for _, kv := range []struct {
		key types.Hash
		val []byte
	}{{keyA, valA}, {keyB, valB}, {keyC, valC}} {
		if _, err := full.Insert(kv.key, kv.val); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	originalRoot := full.Root()

	proofC, err := full.ProofNodes(keyC)
	if err != nil {
		t.Fatalf("ProofNodes keyC: %v", err)
	}

	restricted := trie.NewMultiproof(originalRoot)
	if err := restricted.AddProof(keyC, proofC); err != nil {
		t.Fatalf("AddProof: %v", err)
	}
	if _, err := restricted.Delete(keyC); err == nil {
		t.Fatalf("Delete without an oracle succeeded, want ErrInsufficientProof")
	}

	// full still holds every node, so it can delete keyC directly and
	// derive the post-state exclusion proof the oracle needs.
	postRoot, err := full.Delete(keyC)
	if err != nil {
		t.Fatalf("full.Delete keyC: %v", err)
	}
	exclusionProof, err := full.ProofNodes(keyC)
	if err != nil {
		t.Fatalf("post-delete ProofNodes keyC: %v", err)
	}

	table := NewTable()
	if err := table.AddExclusionProof(postRoot, trie.KeyNibbles(keyC), exclusionProof); err != nil {
		t.Fatalf("AddExclusionProof: %v", err)
	}

	restrictedWithOracle := trie.NewMultiproof(originalRoot).WithOracle(table)
	if err := restrictedWithOracle.AddProof(keyC, proofC); err != nil {
		t.Fatalf("AddProof: %v", err)
	}
	gotRoot, err := restrictedWithOracle.Delete(keyC)
	if err != nil {
		t.Fatalf("Delete with oracle: %v", err)
	}
	if gotRoot != postRoot {
		t.Fatalf("root after oracle-assisted delete = %s, want %s", gotRoot, postRoot)
	}

	freshAB := trie.NewMultiproof(trie.EmptyTrieRoot)
	if _, err := freshAB.Insert(keyA, valA); err != nil {
		t.Fatalf("freshAB Insert A: %v", err)
	}
	wantRoot, err := freshAB.Insert(keyB, valB)
	if err != nil {
		t.Fatalf("freshAB Insert B: %v", err)
	}
	if gotRoot != wantRoot {
		t.Fatalf("root after deleting C = %s, want %s (trie built from A, B alone)", gotRoot, wantRoot)
	}
}
