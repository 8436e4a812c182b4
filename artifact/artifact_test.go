package artifact

import (
	"math/big"
	"testing"

	"github.com/eth2030/blockproof/access"
	"github.com/eth2030/blockproof/assembler"
	"github.com/eth2030/blockproof/types"
)

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func hash(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}

func sampleResult() *assembler.Result {
	return &assembler.Result{
		AccountProofs: []assembler.AccountProofEntry{
			{
				Address:     addr(0x01),
				Balance:     big.NewInt(1000).Bytes(),
				CodeHash:    types.EmptyCodeHash,
				Nonce:       7,
				StorageHash: hash(0xaa),
				NodeIndices: []uint16{0, 2},
				StorageProof: []assembler.StorageProofEntry{
					{Key: hash(0x01), Value: []byte{0x2a}, NodeIndices: []uint16{0, 1}},
				},
			},
			{
				Address:     addr(0x02),
				Balance:     nil,
				CodeHash:    types.EmptyCodeHash,
				Nonce:       0,
				StorageHash: types.EmptyRootHash,
				NodeIndices: []uint16{2},
			},
		},
		Contracts:    [][]byte{{0x60, 0x00, 0x60, 0x00}},
		AccountNodes: [][]byte{{0x01}, {0x02}, {0x03}},
		StorageNodes: [][]byte{{0xaa}, {0xbb}},
		BlockHashes: []access.BlockHashObservation{
			{Number: 100, Hash: hash(0x10)},
			{Number: 101, Hash: hash(0x11)},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleResult()

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(decoded.AccountProofs) != len(original.AccountProofs) {
		t.Fatalf("AccountProofs = %d entries, want %d", len(decoded.AccountProofs), len(original.AccountProofs))
	}
	for i, entry := range decoded.AccountProofs {
		want := original.AccountProofs[i]
		if entry.Address != want.Address {
			t.Fatalf("entry %d Address = %v, want %v", i, entry.Address, want.Address)
		}
		if entry.Nonce != want.Nonce {
			t.Fatalf("entry %d Nonce = %d, want %d", i, entry.Nonce, want.Nonce)
		}
		if entry.CodeHash != want.CodeHash || entry.StorageHash != want.StorageHash {
			t.Fatalf("entry %d hashes mismatch", i)
		}
		if len(entry.StorageProof) != len(want.StorageProof) {
			t.Fatalf("entry %d StorageProof = %d entries, want %d", i, len(entry.StorageProof), len(want.StorageProof))
		}
		for j, sp := range entry.StorageProof {
			if sp.Key != want.StorageProof[j].Key {
				t.Fatalf("entry %d storage proof %d key mismatch", i, j)
			}
			if string(sp.Value) != string(want.StorageProof[j].Value) {
				t.Fatalf("entry %d storage proof %d value = %x, want %x", i, j, sp.Value, want.StorageProof[j].Value)
			}
		}
	}

	if len(decoded.Contracts) != len(original.Contracts) {
		t.Fatalf("Contracts = %d, want %d", len(decoded.Contracts), len(original.Contracts))
	}
	if len(decoded.AccountNodes) != len(original.AccountNodes) {
		t.Fatalf("AccountNodes = %d, want %d", len(decoded.AccountNodes), len(original.AccountNodes))
	}
	if len(decoded.StorageNodes) != len(original.StorageNodes) {
		t.Fatalf("StorageNodes = %d, want %d", len(decoded.StorageNodes), len(original.StorageNodes))
	}
	if len(decoded.BlockHashes) != len(original.BlockHashes) {
		t.Fatalf("BlockHashes = %d, want %d", len(decoded.BlockHashes), len(original.BlockHashes))
	}
	for i, bh := range decoded.BlockHashes {
		if bh != original.BlockHashes[i] {
			t.Fatalf("BlockHashes[%d] = %+v, want %+v", i, bh, original.BlockHashes[i])
		}
	}
}

func TestEncodeEmptyResult(t *testing.T) {
	encoded, err := Encode(&assembler.Result{})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.AccountProofs) != 0 || len(decoded.Contracts) != 0 || len(decoded.AccountNodes) != 0 ||
		len(decoded.StorageNodes) != 0 || len(decoded.BlockHashes) != 0 {
		t.Fatalf("decoded non-empty result from empty input: %+v", decoded)
	}
}

func TestEncodeRejectsOversizeAccountNode(t *testing.T) {
	result := sampleResult()
	result.AccountNodes = append(result.AccountNodes, make([]byte, maxAccountNodeSize+1))
	if _, err := Encode(result); err == nil {
		t.Fatalf("Encode succeeded with an oversize account node, want error")
	}
}

func TestEncodeRejectsTooManyNodeIndices(t *testing.T) {
	result := sampleResult()
	result.AccountProofs[0].NodeIndices = make([]uint16, maxNodeIndices+1)
	if _, err := Encode(result); err == nil {
		t.Fatalf("Encode succeeded with too many node indices, want error")
	}
}
