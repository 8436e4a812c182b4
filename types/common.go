// Package types defines the primitive Ethereum data structures shared by
// every other package in this module: hashes, addresses, and the header
// fields a consumer needs to check a re-executed block against.
package types

import "fmt"

const (
	// HashLength is the size in bytes of a keccak-256 digest.
	HashLength = 32
	// AddressLength is the size in bytes of an Ethereum account address.
	AddressLength = 20
)

// Hash is the 32-byte output of keccak-256. It identifies trie nodes,
// contract bytecodes, storage roots, state roots, and block hashes.
type Hash [HashLength]byte

// Address is a 20-byte Ethereum account address.
type Address [AddressLength]byte

// BytesToHash left-pads (or truncates from the left) b into a Hash.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// BytesToAddress left-pads (or truncates from the left) b into an Address.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) IsZero() bool  { return h == Hash{} }
func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// Less orders two hashes as big-endian byte sequences, used throughout the
// artifact's deterministic sort (spec section 6).
func (h Hash) Less(other Hash) bool {
	for i := 0; i < HashLength; i++ {
		if h[i] != other[i] {
			return h[i] < other[i]
		}
	}
	return false
}

func (a Address) Bytes() []byte { return a[:] }
func (a Address) IsZero() bool  { return a == Address{} }
func (a Address) String() string {
	return fmt.Sprintf("0x%x", a[:])
}

// Less orders two addresses as big-endian byte sequences.
func (a Address) Less(other Address) bool {
	for i := 0; i < AddressLength; i++ {
		if a[i] != other[i] {
			return a[i] < other[i]
		}
	}
	return false
}

// BytesLess compares two byte slices lexicographically as big-endian
// sequences, the sort key used for the account-node and storage-node
// tables (spec section 6): shorter is smaller when one is a prefix of
// the other.
func BytesLess(a, b []byte) bool {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
