// Package crypto provides the single hash primitive the rest of this module
// needs: keccak-256, as used for trie node identity, code hashes, and state
// roots.
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/eth2030/blockproof/types"
)

// Keccak256 returns the keccak-256 digest of the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash returns the keccak-256 digest of the concatenation of data
// as a types.Hash.
func Keccak256Hash(data ...[]byte) types.Hash {
	return types.BytesToHash(Keccak256(data...))
}
