package types

import (
	"fmt"
	"math/big"

	"github.com/eth2030/blockproof/rlp"
)

// EmptyCodeHash is keccak256 of the empty byte string, the code hash of an
// externally-owned account.
var EmptyCodeHash = Hash{0xc5, 0xd2, 0x46, 0x01, 0x86, 0xf7, 0x23, 0x3c, 0x92, 0x7e, 0x7d, 0xb2, 0xdc, 0xc7, 0x03, 0xc0, 0xe5, 0x00, 0xb6, 0x53, 0xca, 0x82, 0x27, 0x3b, 0x7b, 0xfa, 0xd8, 0x04, 0x5d, 0x85, 0xa4, 0x70}

// EmptyRootHash is keccak256 of the RLP encoding of an empty list, the
// storage root of an account with no storage.
var EmptyRootHash = Hash{0x56, 0xe8, 0x1f, 0x17, 0x1b, 0xcc, 0x55, 0xa6, 0xff, 0x83, 0x45, 0xe6, 0x92, 0xc0, 0xf8, 0x6e, 0x5b, 0x48, 0xe0, 0x1b, 0x99, 0x6c, 0xad, 0xc0, 0x01, 0x62, 0x2f, 0xb5, 0xe3, 0x63, 0xb4, 0x21}

// Account is the ordered tuple stored as the value of an account-trie leaf:
// (nonce, balance, storage_root, code_hash).
type Account struct {
	Nonce       uint64
	Balance     *big.Int
	StorageRoot Hash
	CodeHash    Hash
}

// EmptyAccount returns the account body of an account that has never been
// touched: zero nonce and balance, the empty storage root, and the empty
// code hash.
func EmptyAccount() Account {
	return Account{
		Balance:     new(big.Int),
		StorageRoot: EmptyRootHash,
		CodeHash:    EmptyCodeHash,
	}
}

// IsEmpty reports whether the account matches the definition of an empty
// account in spec section 3: zero nonce, zero balance, empty storage root,
// empty code hash.
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 &&
		(a.Balance == nil || a.Balance.Sign() == 0) &&
		a.StorageRoot == EmptyRootHash &&
		a.CodeHash == EmptyCodeHash
}

// Encode returns the canonical RLP list encoding of the account body:
// [nonce, balance, storage_root, code_hash]. This is the exact byte
// sequence stored as an account-trie leaf's value.
func (a Account) Encode() []byte {
	return rlp.EncodeList(
		rlp.EncodeUint64(a.Nonce),
		rlp.EncodeBigInt(a.Balance),
		rlp.EncodeBytes(a.StorageRoot.Bytes()),
		rlp.EncodeBytes(a.CodeHash.Bytes()),
	)
}

// DecodeAccount parses the RLP list encoding produced by Encode.
func DecodeAccount(data []byte) (Account, error) {
	item, err := rlp.Decode(data)
	if err != nil {
		return Account{}, fmt.Errorf("types: account: %w", err)
	}
	fields, err := item.ExpectList()
	if err != nil {
		return Account{}, fmt.Errorf("types: account: %w", err)
	}
	if len(fields) != 4 {
		return Account{}, fmt.Errorf("types: account: expected 4 fields, got %d", len(fields))
	}
	nonceBytes, err := fields[0].ExpectString()
	if err != nil {
		return Account{}, fmt.Errorf("types: account: nonce: %w", err)
	}
	if len(nonceBytes) > 8 {
		return Account{}, fmt.Errorf("types: account: nonce: %d bytes exceeds uint64", len(nonceBytes))
	}
	var nonce uint64
	for _, b := range nonceBytes {
		nonce = nonce<<8 | uint64(b)
	}
	balanceBytes, err := fields[1].ExpectString()
	if err != nil {
		return Account{}, fmt.Errorf("types: account: balance: %w", err)
	}
	balance := new(big.Int).SetBytes(balanceBytes)
	storageRoot, err := fields[2].ExpectString()
	if err != nil {
		return Account{}, fmt.Errorf("types: account: storage root: %w", err)
	}
	codeHash, err := fields[3].ExpectString()
	if err != nil {
		return Account{}, fmt.Errorf("types: account: code hash: %w", err)
	}
	return Account{
		Nonce:       nonce,
		Balance:     balance,
		StorageRoot: BytesToHash(storageRoot),
		CodeHash:    BytesToHash(codeHash),
	}, nil
}

// Copy returns a deep copy of the account, safe to mutate independently.
func (a Account) Copy() Account {
	bal := new(big.Int)
	if a.Balance != nil {
		bal.Set(a.Balance)
	}
	return Account{
		Nonce:       a.Nonce,
		Balance:     bal,
		StorageRoot: a.StorageRoot,
		CodeHash:    a.CodeHash,
	}
}
