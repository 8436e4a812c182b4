package access

import (
	"math/big"
	"testing"

	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/types"
)

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

func TestDiscoverRecordsAccountOnlyOnFirstObservation(t *testing.T) {
	a := addr(0x01)
	txs := []TransactionPrestate{
		{a: AccountPrestate{Exists: true, Balance: big.NewInt(100), Nonce: 1}},
		{a: AccountPrestate{Exists: true, Balance: big.NewInt(999), Nonce: 42}},
	}
	set, err := Discover(10, txs, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	acc := set.Account(a)
	if acc == nil {
		t.Fatalf("account not recorded")
	}
	if acc.Balance.Cmp(big.NewInt(100)) != 0 || acc.Nonce != 1 {
		t.Fatalf("account fields = %+v, want the first transaction's values", acc)
	}
}

func TestDiscoverRecordsStorageSlotOnFirstObservationAcrossTransactions(t *testing.T) {
	a := addr(0x02)
	k1, k2 := slot(0x01), slot(0x02)
	v1a, v1b := slot(0xaa), slot(0xbb)

	txs := []TransactionPrestate{
		{a: AccountPrestate{Exists: true, Storage: map[types.Hash]types.Hash{k1: v1a}}},
		{a: AccountPrestate{Exists: true, Storage: map[types.Hash]types.Hash{k1: slot(0xff), k2: v1b}}},
	}
	set, err := Discover(10, txs, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	acc := set.Account(a)
	if acc.Storage[k1] != v1a {
		t.Fatalf("storage[k1] = %s, want first-observed value %s", acc.Storage[k1], v1a)
	}
	if acc.Storage[k2] != v1b {
		t.Fatalf("storage[k2] = %s, want %s", acc.Storage[k2], v1b)
	}
	if len(acc.StorageOrder) != 2 {
		t.Fatalf("StorageOrder = %v, want 2 entries", acc.StorageOrder)
	}
}

func TestDiscoverDeduplicatesCodeByHash(t *testing.T) {
	a1, a2 := addr(0x01), addr(0x02)
	code := []byte{0x60, 0x00, 0x60, 0x00}
	txs := []TransactionPrestate{
		{
			a1: AccountPrestate{Exists: true, Code: code},
			a2: AccountPrestate{Exists: true, Code: code},
		},
	}
	set, err := Discover(10, txs, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(set.Codes()) != 1 {
		t.Fatalf("Codes() = %d entries, want 1 (deduplicated)", len(set.Codes()))
	}
	wantHash := crypto.Keccak256Hash(code)
	if set.Account(a1).CodeHash != wantHash || set.Account(a2).CodeHash != wantHash {
		t.Fatalf("accounts should share the same code hash")
	}
}

func TestDiscoverEOAGetsEmptyCodeHash(t *testing.T) {
	a := addr(0x03)
	txs := []TransactionPrestate{{a: AccountPrestate{Exists: true, Balance: big.NewInt(1)}}}
	set, err := Discover(10, txs, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if set.Account(a).CodeHash != types.EmptyCodeHash {
		t.Fatalf("EOA code hash = %s, want EmptyCodeHash", set.Account(a).CodeHash)
	}
}

func TestDiscoverAcceptsBlockHashWithinWindow(t *testing.T) {
	obs := []BlockHashObservation{{Number: 99, Hash: hashFor(1)}, {Number: 0, Hash: hashFor(2)}}
	set, err := Discover(256, nil, obs)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(set.BlockHashes()) != 2 {
		t.Fatalf("BlockHashes() = %d, want 2", len(set.BlockHashes()))
	}
}

func TestDiscoverRejectsBlockHashOutsideWindow(t *testing.T) {
	obs := []BlockHashObservation{{Number: 50, Hash: hashFor(1)}}
	if _, err := Discover(50, nil, obs); err == nil {
		t.Fatalf("Discover accepted a BLOCKHASH observation of the current block, want error")
	}
	obs = []BlockHashObservation{{Number: 1000, Hash: hashFor(1)}}
	if _, err := Discover(50, nil, obs); err == nil {
		t.Fatalf("Discover accepted a BLOCKHASH observation beyond the current block, want error")
	}
}

func TestDiscoverRejectsMoreThan256DistinctBlockHashes(t *testing.T) {
	obs := make([]BlockHashObservation, 0, 257)
	for i := uint64(0); i < 257; i++ {
		obs = append(obs, BlockHashObservation{Number: i, Hash: hashFor(byte(i))})
	}
	if _, err := Discover(300, nil, obs); err == nil {
		t.Fatalf("Discover accepted 257 distinct blockhash observations, want error")
	}
}

func TestDiscoverDuplicateBlockHashObservationIsNotCountedTwice(t *testing.T) {
	obs := []BlockHashObservation{{Number: 5, Hash: hashFor(1)}, {Number: 5, Hash: hashFor(1)}}
	set, err := Discover(10, nil, obs)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(set.BlockHashes()) != 1 {
		t.Fatalf("BlockHashes() = %d, want 1 (deduplicated)", len(set.BlockHashes()))
	}
}

func TestSetSortedOrdersByAddressAndStorageKey(t *testing.T) {
	aHigh, aLow := addr(0xf0), addr(0x01)
	kHigh, kLow := slot(0xf0), slot(0x01)
	txs := []TransactionPrestate{
		{
			aHigh: AccountPrestate{Exists: true, Storage: map[types.Hash]types.Hash{kHigh: slot(1), kLow: slot(2)}},
			aLow:  AccountPrestate{Exists: true},
		},
	}
	set, err := Discover(10, txs, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	sorted := set.Sorted()
	if len(sorted) != 2 || sorted[0].Address != aLow || sorted[1].Address != aHigh {
		t.Fatalf("Sorted() addresses = %+v, want [aLow, aHigh]", sorted)
	}
	keys := sorted[1].StorageOrder
	if len(keys) != 2 || keys[0] != kLow || keys[1] != kHigh {
		t.Fatalf("Sorted() storage keys = %v, want [kLow, kHigh]", keys)
	}
}

func hashFor(b byte) types.Hash {
	var h types.Hash
	h[31] = b
	return h
}
