// Package trie implements the Merkle-Patricia trie primitives this module
// needs: nibble-path conversion, the tagged node model, a content-addressed
// node store, single-key proof verification, and the multiproof engine that
// overlays many proofs sharing a root.
package trie

// Hex-prefix (HP) compact encoding, per the Ethereum Yellow Paper appendix C.
//
// A nibble path is a sequence of 4-bit values in [0, 15], optionally
// followed by a terminator nibble (16) marking it as a leaf path rather
// than an extension path. The compact form packs this into bytes, with a
// flag nibble at the front recording parity (odd/even nibble count) and
// the leaf/extension distinction.

const terminator = byte(16)

// keyToNibbles expands a byte key into its high-to-low nibble sequence,
// without a terminator.
func keyToNibbles(key []byte) []byte {
	nibbles := make([]byte, len(key)*2)
	for i, b := range key {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

// hasTerm reports whether the nibble path ends in the terminator.
func hasTerm(path []byte) bool {
	return len(path) > 0 && path[len(path)-1] == terminator
}

// hexToCompact HP-encodes a nibble path (with or without a trailing
// terminator) into its compact byte form.
func hexToCompact(path []byte) []byte {
	var flag byte
	if hasTerm(path) {
		flag = 1
		path = path[:len(path)-1]
	}
	buf := make([]byte, len(path)/2+1)
	buf[0] = flag << 5
	if len(path)&1 == 1 {
		buf[0] |= 1 << 4
		buf[0] |= path[0]
		path = path[1:]
	}
	for i := 0; i < len(path); i += 2 {
		buf[1+i/2] = path[i]<<4 | path[i+1]
	}
	return buf
}

// compactToHex decodes a compact byte form into a nibble path. The path
// carries a trailing terminator iff the encoding's leaf flag is set.
// Returns an error if the encoding uses a reserved flag combination or the
// odd/even flag disagrees with the payload length.
func compactToHex(compact []byte) ([]byte, error) {
	if len(compact) == 0 {
		return nil, errCompactEmpty
	}
	flags := compact[0] >> 4
	if flags > 3 {
		return nil, errCompactReservedFlag
	}
	isLeaf := flags&2 != 0
	isOdd := flags&1 != 0

	nibbles := make([]byte, 0, 2*len(compact))
	if isOdd {
		nibbles = append(nibbles, compact[0]&0x0f)
	} else if compact[0]&0x0f != 0 {
		return nil, errCompactPaddingNonZero
	}
	for _, b := range compact[1:] {
		nibbles = append(nibbles, b>>4, b&0x0f)
	}
	if isLeaf {
		nibbles = append(nibbles, terminator)
	}
	return nibbles, nil
}

// prefixLen returns the length of the common prefix of a and b.
func prefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for ; i < n; i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}

// nibblesToKey packs an even-length nibble sequence (without terminator)
// back into bytes.
func nibblesToKey(nibbles []byte) []byte {
	key := make([]byte, len(nibbles)/2)
	for i := 0; i < len(key); i++ {
		key[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return key
}
