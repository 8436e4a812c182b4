package assembler

import (
	"context"
	"math/big"
	"testing"

	"github.com/eth2030/blockproof/access"
	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/rpcsource"
	"github.com/eth2030/blockproof/trie"
	"github.com/eth2030/blockproof/types"
)

// fakeSource is an in-memory rpcsource.Source backed by real trie
// multiproofs, used to exercise the assembler's proof-fetch, verify, and
// node-dedup logic without a network round trip.
type fakeSource struct {
	stateRoot    types.Hash
	accountTrie  *trie.Multiproof
	storageTries map[types.Address]*trie.Multiproof
	codes        map[types.Hash][]byte

	txPrestates []access.TransactionPrestate
	blockHashes []access.BlockHashObservation
	deleted     *rpcsource.DeletedKeys
}

func (f *fakeSource) BlockByNumber(ctx context.Context, number uint64) (*rpcsource.BlockInfo, error) {
	return &rpcsource.BlockInfo{Number: number, StateRoot: f.stateRoot}, nil
}

func (f *fakeSource) Proof(ctx context.Context, address types.Address, storageKeys []types.Hash, blockNumber uint64) (*rpcsource.AccountProof, error) {
	accountKey := crypto.Keccak256Hash(address.Bytes())
	accountProofNodes, err := f.accountTrie.ProofNodes(accountKey)
	if err != nil {
		return nil, err
	}
	result, err := f.accountTrie.Get(accountKey)
	if err != nil {
		return nil, err
	}
	body := types.EmptyAccount()
	if result.Included {
		body, err = types.DecodeAccount(result.Value)
		if err != nil {
			return nil, err
		}
	}

	storageTrie := f.storageTries[address]
	var storageProofs []rpcsource.StorageProofEntry
	for _, key := range storageKeys {
		storageKey := crypto.Keccak256Hash(key.Bytes())
		var nodes [][]byte
		var value types.Hash
		if storageTrie != nil {
			nodes, err = storageTrie.ProofNodes(storageKey)
			if err != nil {
				return nil, err
			}
			sResult, err := storageTrie.Get(storageKey)
			if err != nil {
				return nil, err
			}
			if sResult.Included {
				value = types.BytesToHash(sResult.Value)
			}
		}
		storageProofs = append(storageProofs, rpcsource.StorageProofEntry{Key: key, Value: value, Proof: nodes})
	}

	storageHash := types.EmptyRootHash
	if storageTrie != nil {
		storageHash = storageTrie.Root()
	}

	return &rpcsource.AccountProof{
		Address:      address,
		Balance:      body.Balance.Bytes(),
		Nonce:        body.Nonce,
		CodeHash:     body.CodeHash,
		StorageHash:  storageHash,
		AccountProof: accountProofNodes,
		StorageProof: storageProofs,
	}, nil
}

func (f *fakeSource) PrestateTrace(ctx context.Context, blockNumber uint64) ([]access.TransactionPrestate, error) {
	return f.txPrestates, nil
}

func (f *fakeSource) BlockHashObservations(ctx context.Context, blockNumber uint64) ([]access.BlockHashObservation, error) {
	return f.blockHashes, nil
}

func (f *fakeSource) DeletedKeys(ctx context.Context, blockNumber uint64) (*rpcsource.DeletedKeys, error) {
	if f.deleted != nil {
		return f.deleted, nil
	}
	return &rpcsource.DeletedKeys{Storage: map[types.Address][]types.Hash{}}, nil
}

func addr(b byte) types.Address {
	var a types.Address
	a[19] = b
	return a
}

func slot(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}

// buildFakeSource constructs a two-account state: account A has one
// storage slot, account B has none and is never mentioned in storage.
func buildFakeSource(t *testing.T) (*fakeSource, types.Address, types.Address, types.Hash) {
	addrA, addrB := addr(0xaa), addr(0xbb)
	slotKey := slot(0x01)

	storageA := trie.NewMultiproof(trie.EmptyTrieRoot)
	if _, err := storageA.Insert(crypto.Keccak256Hash(slotKey.Bytes()), slot(0x2a).Bytes()); err != nil {
		t.Fatalf("storageA.Insert: %v", err)
	}

	accountA := types.Account{Nonce: 1, Balance: big.NewInt(500), StorageRoot: storageA.Root(), CodeHash: types.EmptyCodeHash}
	accountB := types.Account{Nonce: 0, Balance: big.NewInt(10), StorageRoot: types.EmptyRootHash, CodeHash: types.EmptyCodeHash}

	accountTrie := trie.NewMultiproof(trie.EmptyTrieRoot)
	if _, err := accountTrie.Insert(crypto.Keccak256Hash(addrA.Bytes()), accountA.Encode()); err != nil {
		t.Fatalf("accountTrie.Insert A: %v", err)
	}
	root, err := accountTrie.Insert(crypto.Keccak256Hash(addrB.Bytes()), accountB.Encode())
	if err != nil {
		t.Fatalf("accountTrie.Insert B: %v", err)
	}

	source := &fakeSource{
		stateRoot:   root,
		accountTrie: accountTrie,
		storageTries: map[types.Address]*trie.Multiproof{
			addrA: storageA,
		},
		codes: map[types.Hash][]byte{},
		txPrestates: []access.TransactionPrestate{
			{
				addrA: access.AccountPrestate{
					Exists:  true,
					Balance: big.NewInt(500),
					Nonce:   1,
					Storage: map[types.Hash]types.Hash{slotKey: slot(0x2a)},
				},
				addrB: access.AccountPrestate{Exists: true, Balance: big.NewInt(10)},
			},
		},
	}
	return source, addrA, addrB, root
}

func TestAssembleProducesVerifiableProofsForEveryDiscoveredAccount(t *testing.T) {
	source, addrA, addrB, _ := buildFakeSource(t)

	result, err := Assemble(context.Background(), source, 100)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(result.AccountProofs) != 2 {
		t.Fatalf("AccountProofs = %d entries, want 2", len(result.AccountProofs))
	}
	// Sorted by address: A (0x...aa) before B (0x...bb).
	if result.AccountProofs[0].Address != addrA || result.AccountProofs[1].Address != addrB {
		t.Fatalf("AccountProofs not sorted by address: %+v", result.AccountProofs)
	}
	entryA := result.AccountProofs[0]
	if entryA.Nonce != 1 {
		t.Fatalf("entryA.Nonce = %d, want 1", entryA.Nonce)
	}
	if len(entryA.StorageProof) != 1 {
		t.Fatalf("entryA.StorageProof = %d entries, want 1", len(entryA.StorageProof))
	}
	if len(entryA.NodeIndices) == 0 {
		t.Fatalf("entryA.NodeIndices is empty")
	}
	for _, idx := range entryA.NodeIndices {
		if int(idx) >= len(result.AccountNodes) {
			t.Fatalf("account node index %d out of range (%d nodes)", idx, len(result.AccountNodes))
		}
	}
	for _, idx := range entryA.StorageProof[0].NodeIndices {
		if int(idx) >= len(result.StorageNodes) {
			t.Fatalf("storage node index %d out of range (%d nodes)", idx, len(result.StorageNodes))
		}
	}

	entryB := result.AccountProofs[1]
	if len(entryB.StorageProof) != 0 {
		t.Fatalf("entryB.StorageProof = %d entries, want 0 (B has no discovered storage)", len(entryB.StorageProof))
	}
}

func TestAssembleDedupesSharedAccountNodesAcrossAccounts(t *testing.T) {
	source, _, _, _ := buildFakeSource(t)

	result, err := Assemble(context.Background(), source, 100)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	seen := make(map[string]bool)
	for _, raw := range result.AccountNodes {
		key := string(raw)
		if seen[key] {
			t.Fatalf("account node table contains a duplicate entry")
		}
		seen[key] = true
	}
}

func TestAssembleAccountNodesAreSortedByBytes(t *testing.T) {
	source, _, _, _ := buildFakeSource(t)

	result, err := Assemble(context.Background(), source, 100)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for i := 1; i < len(result.AccountNodes); i++ {
		if !types.BytesLess(result.AccountNodes[i-1], result.AccountNodes[i]) {
			t.Fatalf("AccountNodes not strictly sorted at index %d", i)
		}
	}
}

func TestAssembleRejectsBlockZero(t *testing.T) {
	source, _, _, _ := buildFakeSource(t)
	if _, err := Assemble(context.Background(), source, 0); err == nil {
		t.Fatalf("Assemble(block 0) succeeded, want error")
	}
}
