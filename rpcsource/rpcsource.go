// Package rpcsource defines the boundary this module crosses to reach an
// archive-capable Ethereum node: eth_getBlockByNumber, eth_getProof, and
// debug_traceBlockByNumber with the prestate tracer and, separately, the
// default struct-log tracer used only to observe BLOCKHASH results. Per
// this module's scope, the RPC client itself is an external collaborator
// (spec section 1) — the assembler depends only on the Source interface
// below, and Client is one concrete, minimal implementation of it rather
// than the definitive one.
//
// The wire shapes here mirror the teacher's own JSON-RPC server package
// (github.com/eth2028/eth2028/pkg/rpc): AccountProof/StorageProof match
// its eth_getProof response fields, and the hex encode/decode rules
// (0x-prefixed, no leading zeros, big-endian) match its encodeBigInt/
// encodeHash/encodeUint64 helpers, read in the opposite direction.
package rpcsource

import (
	"context"

	"github.com/eth2030/blockproof/access"
	"github.com/eth2030/blockproof/types"
)

// BlockInfo is the subset of eth_getBlockByNumber's response this module
// needs: identity, lineage, state root, and the transaction hashes in
// execution order.
type BlockInfo struct {
	Number       uint64
	Hash         types.Hash
	ParentHash   types.Hash
	StateRoot    types.Hash
	Transactions []types.Hash
}

// StorageProofEntry is one eth_getProof storage slot result.
type StorageProofEntry struct {
	Key   types.Hash
	Value types.Hash
	Proof [][]byte
}

// AccountProof is one eth_getProof response, decoded: the account fields
// as reported by the node, and the raw RLP proof nodes root-most first.
type AccountProof struct {
	Address      types.Address
	Balance      []byte // big-endian, no leading zeros; empty means zero
	Nonce        uint64
	CodeHash     types.Hash
	StorageHash  types.Hash
	AccountProof [][]byte
	StorageProof []StorageProofEntry
}

// Source is everything the access-discovery and assembler stages need
// from an archive node. Implementations may retry and parallelize
// fetches internally (spec section 5): the assembler treats every method
// here as a single logical call regardless of how many requests it takes.
type Source interface {
	// BlockByNumber fetches a block's header fields and transaction
	// hashes in execution order.
	BlockByNumber(ctx context.Context, number uint64) (*BlockInfo, error)

	// Proof fetches an EIP-1186 account and storage proof for address at
	// the state committed by blockNumber, covering exactly the given
	// storage keys.
	Proof(ctx context.Context, address types.Address, storageKeys []types.Hash, blockNumber uint64) (*AccountProof, error)

	// PrestateTrace runs the prestate tracer over every transaction in
	// blockNumber, in transaction order.
	PrestateTrace(ctx context.Context, blockNumber uint64) ([]access.TransactionPrestate, error)

	// BlockHashObservations runs a struct-log tracer over blockNumber and
	// returns every (number, hash) pair the BLOCKHASH opcode resolved,
	// deduplication left to the access package.
	BlockHashObservations(ctx context.Context, blockNumber uint64) ([]access.BlockHashObservation, error)

	// DeletedKeys reports every address destroyed and every storage slot
	// zeroed during blockNumber, derived from a prestate-vs-post-state
	// comparison at the tracer level (spec section 4.8). The assembler
	// uses this to know which keys need a post-state exclusion proof for
	// the deletion oracle.
	DeletedKeys(ctx context.Context, blockNumber uint64) (*DeletedKeys, error)
}

// DeletedKeys is the set of accounts and storage slots a block destroys.
type DeletedKeys struct {
	Accounts []types.Address
	Storage  map[types.Address][]types.Hash
}
