// Package overlay implements the content-addressing scheme for the
// peer-to-peer distribution of block prestate proof artifacts: a
// content id derived from the block hash, and the wrap-around ring
// distance metric nodes use to decide interest in a given id.
//
// Wire transport and the overlay protocol itself are external
// collaborators; what lives here is the pure, stateless math any
// participant needs to agree on before exchanging a single byte.
package overlay

import (
	"github.com/holiman/uint256"

	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/types"
)

// selectorBlockHash is the single selector byte currently defined for
// content keys: the artifact is keyed by its block hash.
const selectorBlockHash byte = 0x00

// halfKeyspace is 2^255, the maximum possible ring distance on a
// 256-bit keyspace.
var halfKeyspace = &uint256.Int{0, 0, 0, 1 << 63}

// ContentKey builds the content key for a block's prestate proof
// artifact: selector byte 0x00 followed by the 32-byte block hash.
func ContentKey(blockHash types.Hash) []byte {
	key := make([]byte, 0, 1+types.HashLength)
	key = append(key, selectorBlockHash)
	key = append(key, blockHash.Bytes()...)
	return key
}

// ContentID returns keccak256(ContentKey(blockHash)), the point this
// content occupies in the overlay's 256-bit keyspace.
func ContentID(blockHash types.Hash) types.Hash {
	return crypto.Keccak256Hash(ContentKey(blockHash))
}

// Distance computes the wrap-around ring distance between two content
// ids: min(|a-b|, 2^256-|a-b|). Both a and b are treated as unsigned
// 256-bit integers.
func Distance(a, b types.Hash) *uint256.Int {
	x := new(uint256.Int).SetBytes(a.Bytes())
	y := new(uint256.Int).SetBytes(b.Bytes())

	diff := new(uint256.Int)
	if x.Cmp(y) >= 0 {
		diff.Sub(x, y)
	} else {
		diff.Sub(y, x)
	}

	// 2^256 - diff, computed by subtracting diff from zero: the fixed-
	// width Int wraps exactly the way the modular arithmetic requires.
	complement := new(uint256.Int).Sub(new(uint256.Int), diff)

	if complement.Cmp(diff) < 0 {
		return complement
	}
	return diff
}

// InRange reports whether b falls within radius of a on the ring,
// the test a node runs to decide whether it should hold a given piece
// of content.
func InRange(a, b types.Hash, radius *uint256.Int) bool {
	return Distance(a, b).Cmp(radius) <= 0
}

// MaxDistance returns 2^255, the ring's theoretical maximum distance:
// every computed Distance must be less than or equal to this value.
func MaxDistance() *uint256.Int {
	return new(uint256.Int).Set(halfKeyspace)
}
