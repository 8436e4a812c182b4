// Package access implements access discovery (spec section 4.7): turning
// a block's prestate tracer output and its BLOCKHASH opcode observations
// into the deduplicated set of accounts, storage keys, bytecodes, and
// block-hash witnesses the proof assembler needs to fetch proofs for.
//
// This package's record-on-first-observation discipline is the same one
// the teacher's witness collector applies while an EVM runs live (it
// snapshots an account's pre-state the first time any of its fields are
// touched, and a storage slot's pre-state the first time that slot is
// touched); this package applies the identical rule after the fact, over
// an already-recorded per-transaction prestate trace instead of over live
// StateDB calls, since discovery here runs once per completed block
// rather than interleaved with execution.
package access

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/types"
)

// AccountPrestate is one transaction's reported pre-state for one address,
// in the shape a prestate tracer emits: only the fields and storage slots
// that transaction actually touched are present.
type AccountPrestate struct {
	Exists  bool
	Balance *big.Int
	Nonce   uint64
	Code    []byte
	Storage map[types.Hash]types.Hash
}

// TransactionPrestate maps every address one transaction touched to its
// reported pre-state.
type TransactionPrestate map[types.Address]AccountPrestate

// BlockHashObservation is one BLOCKHASH opcode's (number, hash) result.
type BlockHashObservation struct {
	Number uint64
	Hash   types.Hash
}

// AccountAccess is the deduplicated pre-state record for one address: its
// fields as first observed in the block, and every storage slot first
// observed under it, each holding the value reported at that slot's own
// first observation (which may come from a later transaction than the
// one that established the account's own fields).
type AccountAccess struct {
	Address      types.Address
	Exists       bool
	Balance      *big.Int
	Nonce        uint64
	CodeHash     types.Hash
	Storage      map[types.Hash]types.Hash
	StorageOrder []types.Hash
}

// Set is the access set for one block (spec section 3): accessed
// addresses, their first-observed fields and storage, bytecodes keyed by
// code hash, and BLOCKHASH witnesses.
type Set struct {
	accounts     map[types.Address]*AccountAccess
	accountOrder []types.Address

	codes     map[types.Hash][]byte
	codeOrder []types.Hash

	blockHashes    map[uint64]types.Hash
	blockHashOrder []uint64
}

func newSet() *Set {
	return &Set{
		accounts:    make(map[types.Address]*AccountAccess),
		codes:       make(map[types.Hash][]byte),
		blockHashes: make(map[uint64]types.Hash),
	}
}

// Accounts returns every accessed account in first-observation order.
func (s *Set) Accounts() []*AccountAccess {
	out := make([]*AccountAccess, len(s.accountOrder))
	for i, addr := range s.accountOrder {
		out[i] = s.accounts[addr]
	}
	return out
}

// Account returns the access record for addr, or nil if never touched.
func (s *Set) Account(addr types.Address) *AccountAccess {
	return s.accounts[addr]
}

// Codes returns every distinct bytecode observed, keyed by code hash.
// CodeOrder gives their first-observation order.
func (s *Set) Codes() map[types.Hash][]byte {
	out := make(map[types.Hash][]byte, len(s.codes))
	for h, code := range s.codes {
		out[h] = code
	}
	return out
}

// CodeOrder returns the code hashes in first-observation order.
func (s *Set) CodeOrder() []types.Hash {
	return append([]types.Hash{}, s.codeOrder...)
}

// BlockHashes returns every observed (number, hash) pair in
// first-observation order.
func (s *Set) BlockHashes() []BlockHashObservation {
	out := make([]BlockHashObservation, len(s.blockHashOrder))
	for i, n := range s.blockHashOrder {
		out[i] = BlockHashObservation{Number: n, Hash: s.blockHashes[n]}
	}
	return out
}

// Sorted returns every accessed account ordered by address, each with its
// storage keys ordered by key, matching the deterministic ordering the
// artifact's account-node and storage-node tables require (spec section
// 6). It leaves the Set's own first-observation bookkeeping untouched.
func (s *Set) Sorted() []*AccountAccess {
	out := s.Accounts()
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Less(out[j].Address) })
	for i, acc := range out {
		keys := append([]types.Hash{}, acc.StorageOrder...)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
		cp := *acc
		cp.StorageOrder = keys
		out[i] = &cp
	}
	return out
}

func (s *Set) touchAccount(addr types.Address) *AccountAccess {
	if acc, ok := s.accounts[addr]; ok {
		return acc
	}
	acc := &AccountAccess{Address: addr, Storage: make(map[types.Hash]types.Hash)}
	s.accounts[addr] = acc
	s.accountOrder = append(s.accountOrder, addr)
	return acc
}

// maxBlockHashWitnesses is the largest number of distinct BLOCKHASH
// results one block can produce: the opcode only ever resolves the 256
// most recent blocks (spec section 4.7/6).
const maxBlockHashWitnesses = 256

// Discover builds the access set for blockNumber from its ordered
// per-transaction prestates and its BLOCKHASH observations. An address's
// fields are taken from the first transaction that reports it; a storage
// slot's value is taken from the first transaction that reports that
// specific slot under its address, independently of when the address
// itself was first seen. Code is deduplicated by its keccak-256 hash.
func Discover(blockNumber uint64, txPrestates []TransactionPrestate, blockHashObservations []BlockHashObservation) (*Set, error) {
	s := newSet()

	for _, txPre := range txPrestates {
		for addr, pre := range txPre {
			acc := s.touchAccount(addr)
			if acc.Balance == nil && acc.Nonce == 0 && acc.CodeHash.IsZero() && !acc.Exists {
				acc.Exists = pre.Exists
				if pre.Balance != nil {
					acc.Balance = new(big.Int).Set(pre.Balance)
				} else {
					acc.Balance = new(big.Int)
				}
				acc.Nonce = pre.Nonce
				if len(pre.Code) > 0 {
					acc.CodeHash = crypto.Keccak256Hash(pre.Code)
				} else {
					acc.CodeHash = types.EmptyCodeHash
				}
			}

			if len(pre.Code) > 0 {
				codeHash := crypto.Keccak256Hash(pre.Code)
				if _, seen := s.codes[codeHash]; !seen {
					s.codes[codeHash] = pre.Code
					s.codeOrder = append(s.codeOrder, codeHash)
				}
			}

			for key, val := range pre.Storage {
				if _, seen := acc.Storage[key]; !seen {
					acc.Storage[key] = val
					acc.StorageOrder = append(acc.StorageOrder, key)
				}
			}
		}
	}

	for _, obs := range blockHashObservations {
		if obs.Number+1 > blockNumber || obs.Number+256 < blockNumber {
			return nil, fmt.Errorf("access: %w: blockhash observation %d out of [%d-256, %d) range for block %d",
				ErrMalformed, obs.Number, blockNumber, blockNumber, blockNumber)
		}
		if _, seen := s.blockHashes[obs.Number]; !seen {
			s.blockHashes[obs.Number] = obs.Hash
			s.blockHashOrder = append(s.blockHashOrder, obs.Number)
			if len(s.blockHashOrder) > maxBlockHashWitnesses {
				return nil, fmt.Errorf("access: %w: more than %d distinct blockhash observations", ErrSizeBound, maxBlockHashWitnesses)
			}
		}
	}

	return s, nil
}
