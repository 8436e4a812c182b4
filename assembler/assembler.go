// Package assembler implements the proof assembler (spec section 4.8):
// for every address and storage key access discovery found, it fetches
// and verifies a proof at the parent block's state root, merges every
// distinct node into one of two shared, content-addressed node tables,
// fetches contract bytecode and BLOCKHASH witnesses, and additionally
// fetches post-state exclusion proofs for every key the block deletes to
// populate the deletion oracle. The result is the fully-populated,
// sorted artifact (spec section 6), ready for the artifact package to
// encode.
package assembler

import (
	"context"
	"fmt"
	"sort"

	"github.com/eth2030/blockproof/access"
	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/rpcsource"
	"github.com/eth2030/blockproof/trie"
	"github.com/eth2030/blockproof/types"
)

// StorageProofEntry is one storage slot's single-key proof, rewritten as
// an ordered list of shared storage-node indices (spec section 6).
type StorageProofEntry struct {
	Key         types.Hash
	Value       []byte
	NodeIndices []uint16
}

// AccountProofEntry is one address's account proof plus every storage
// proof gathered for it, rewritten against the shared node tables.
type AccountProofEntry struct {
	Address      types.Address
	Balance      []byte
	CodeHash     types.Hash
	Nonce        uint64
	StorageHash  types.Hash
	NodeIndices  []uint16
	StorageProof []StorageProofEntry
}

// Result is the fully assembled artifact content, already sorted per
// spec section 6. The artifact package is responsible only for encoding
// it to bytes.
type Result struct {
	AccountProofs []AccountProofEntry
	Contracts     [][]byte
	AccountNodes  [][]byte
	StorageNodes  [][]byte
	BlockHashes   []access.BlockHashObservation
}

// Assemble builds the artifact content for blockNumber: the parent
// block's state root is the pre-state every account and storage proof is
// checked against; the block's own post-state root is used only for the
// deletion oracle's exclusion proofs.
func Assemble(ctx context.Context, source rpcsource.Source, blockNumber uint64) (*Result, error) {
	if blockNumber == 0 {
		return nil, fmt.Errorf("assembler: block 0 has no parent state to prove against")
	}

	parent, err := source.BlockByNumber(ctx, blockNumber-1)
	if err != nil {
		return nil, fmt.Errorf("assembler: parent block: %w", err)
	}
	current, err := source.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("assembler: current block: %w", err)
	}

	txPrestates, err := source.PrestateTrace(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("assembler: prestate trace: %w", err)
	}
	blockHashObs, err := source.BlockHashObservations(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("assembler: blockhash observations: %w", err)
	}
	accessSet, err := access.Discover(blockNumber, txPrestates, blockHashObs)
	if err != nil {
		return nil, fmt.Errorf("assembler: access discovery: %w", err)
	}
	deleted, err := source.DeletedKeys(ctx, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("assembler: deleted keys: %w", err)
	}

	accountNodes := newNodeTable()
	storageNodes := newNodeTable()

	var accountProofs []AccountProofEntry
	for _, acc := range accessSet.Sorted() {
		entry, err := assembleAccount(ctx, source, acc, blockNumber-1, parent.StateRoot, accountNodes, storageNodes)
		if err != nil {
			return nil, fmt.Errorf("assembler: account %s: %w", acc.Address, err)
		}
		accountProofs = append(accountProofs, *entry)
	}

	if err := addDeletionOracleNodes(ctx, source, deleted, blockNumber, current.StateRoot, accountNodes, storageNodes); err != nil {
		return nil, fmt.Errorf("assembler: deletion oracle: %w", err)
	}

	var contracts [][]byte
	codes := accessSet.Codes()
	for _, hash := range accessSet.CodeOrder() {
		contracts = append(contracts, codes[hash])
	}

	return sortResult(&Result{
		AccountProofs: accountProofs,
		Contracts:     contracts,
		AccountNodes:  accountNodes.order,
		StorageNodes:  storageNodes.order,
		BlockHashes:   accessSet.BlockHashes(),
	}, accountNodes, storageNodes), nil
}

// sortResult applies spec section 6's deterministic ordering: all five
// top-level lists sorted by their first field, with every node-index list
// remapped to the sorted node tables' new positions.
func sortResult(r *Result, accountNodes, storageNodes *nodeTable) *Result {
	sortedAccountNodes, accountRemap := accountNodes.sorted()
	sortedStorageNodes, storageRemap := storageNodes.sorted()

	for i := range r.AccountProofs {
		entry := &r.AccountProofs[i]
		entry.NodeIndices = remapIndices(entry.NodeIndices, accountRemap)
		for j := range entry.StorageProof {
			entry.StorageProof[j].NodeIndices = remapIndices(entry.StorageProof[j].NodeIndices, storageRemap)
		}
		sort.Slice(entry.StorageProof, func(a, b int) bool {
			return entry.StorageProof[a].Key.Less(entry.StorageProof[b].Key)
		})
	}
	sort.Slice(r.AccountProofs, func(i, j int) bool {
		return r.AccountProofs[i].Address.Less(r.AccountProofs[j].Address)
	})
	sort.Slice(r.Contracts, func(i, j int) bool {
		return types.BytesLess(r.Contracts[i], r.Contracts[j])
	})
	sort.Slice(r.BlockHashes, func(i, j int) bool {
		return r.BlockHashes[i].Number < r.BlockHashes[j].Number
	})

	r.AccountNodes = sortedAccountNodes
	r.StorageNodes = sortedStorageNodes
	return r
}

// assembleAccount fetches and verifies one address's account and storage
// proofs at the parent block and rewrites them against the shared node
// tables.
func assembleAccount(ctx context.Context, source rpcsource.Source, acc *access.AccountAccess, parentNumber uint64, parentStateRoot types.Hash, accountNodes, storageNodes *nodeTable) (*AccountProofEntry, error) {
	proof, err := source.Proof(ctx, acc.Address, acc.StorageOrder, parentNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch proof: %w", err)
	}

	accountKey := trie.KeyNibbles(crypto.Keccak256Hash(acc.Address.Bytes()))
	result, err := trie.VerifyProof(parentStateRoot, accountKey, proof.AccountProof)
	if err != nil {
		return nil, fmt.Errorf("verify account proof: %w", err)
	}

	body := types.EmptyAccount()
	if result.Included {
		decoded, err := types.DecodeAccount(result.Value)
		if err != nil {
			return nil, fmt.Errorf("decode account body: %w", err)
		}
		body = decoded
	}

	indices := make([]uint16, len(proof.AccountProof))
	for i, raw := range proof.AccountProof {
		indices[i] = accountNodes.add(raw)
	}

	entry := &AccountProofEntry{
		Address:     acc.Address,
		Balance:     trimBigEndian(body.Balance.Bytes()),
		CodeHash:    body.CodeHash,
		Nonce:       body.Nonce,
		StorageHash: body.StorageRoot,
		NodeIndices: indices,
	}

	for _, sp := range proof.StorageProof {
		storageKey := trie.KeyNibbles(crypto.Keccak256Hash(sp.Key.Bytes()))
		storageResult, err := trie.VerifyProof(proof.StorageHash, storageKey, sp.Proof)
		if err != nil {
			return nil, fmt.Errorf("verify storage proof for key %s: %w", sp.Key, err)
		}
		storageIndices := make([]uint16, len(sp.Proof))
		for i, raw := range sp.Proof {
			storageIndices[i] = storageNodes.add(raw)
		}
		value := sp.Value.Bytes()
		if !storageResult.Included {
			value = nil
		}
		entry.StorageProof = append(entry.StorageProof, StorageProofEntry{
			Key:         sp.Key,
			Value:       trimBigEndian(value),
			NodeIndices: storageIndices,
		})
	}

	return entry, nil
}

// addDeletionOracleNodes fetches, at the block's own post-state root, an
// exclusion proof for every account and storage key the block deletes,
// and merges their nodes into the shared tables so the consumer's
// deletion oracle can be populated directly from the decoded artifact.
func addDeletionOracleNodes(ctx context.Context, source rpcsource.Source, deleted *rpcsource.DeletedKeys, blockNumber uint64, postStateRoot types.Hash, accountNodes, storageNodes *nodeTable) error {
	if deleted == nil {
		return nil
	}

	for _, addr := range deleted.Accounts {
		proof, err := source.Proof(ctx, addr, nil, blockNumber)
		if err != nil {
			return fmt.Errorf("fetch post-state proof for deleted account %s: %w", addr, err)
		}
		accountKey := trie.KeyNibbles(crypto.Keccak256Hash(addr.Bytes()))
		result, err := trie.VerifyProof(postStateRoot, accountKey, proof.AccountProof)
		if err != nil {
			return fmt.Errorf("verify post-state exclusion for account %s: %w", addr, err)
		}
		if result.Included {
			return fmt.Errorf("account %s reported deleted but still included in post-state", addr)
		}
		for _, raw := range proof.AccountProof {
			accountNodes.add(raw)
		}
	}

	for addr, keys := range deleted.Storage {
		if len(keys) == 0 {
			continue
		}
		proof, err := source.Proof(ctx, addr, keys, blockNumber)
		if err != nil {
			return fmt.Errorf("fetch post-state proof for deleted storage under %s: %w", addr, err)
		}
		for _, sp := range proof.StorageProof {
			storageKey := trie.KeyNibbles(crypto.Keccak256Hash(sp.Key.Bytes()))
			result, err := trie.VerifyProof(proof.StorageHash, storageKey, sp.Proof)
			if err != nil {
				return fmt.Errorf("verify post-state exclusion for storage key %s under %s: %w", sp.Key, addr, err)
			}
			if result.Included {
				return fmt.Errorf("storage key %s under %s reported deleted but still included in post-state", sp.Key, addr)
			}
			for _, raw := range sp.Proof {
				storageNodes.add(raw)
			}
		}
	}

	return nil
}
