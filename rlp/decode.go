package rlp

import "math/big"

// Decode parses the single RLP item at the start of data and requires that
// no bytes follow it, returning ErrTrailingGarbage otherwise. This is the
// entry point used for decoding a complete trie node or account body.
func Decode(data []byte) (Item, error) {
	it, n, err := decodeItem(data)
	if err != nil {
		return Item{}, err
	}
	if n != len(data) {
		return Item{}, ErrTrailingGarbage
	}
	return it, nil
}

// DecodePrefix parses the single RLP item at the start of data and returns
// it along with the number of bytes consumed, tolerating trailing bytes.
// Used when an RLP item is embedded inside a larger byte sequence, such as
// one of the seventeen children of a branch node.
func DecodePrefix(data []byte) (Item, int, error) {
	return decodeItem(data)
}

// DecodeUint64 decodes a minimal big-endian RLP string into a uint64,
// rejecting non-canonical leading zeros and overflow.
func DecodeUint64(data []byte) (uint64, error) {
	it, err := Decode(data)
	if err != nil {
		return 0, err
	}
	b, err := it.ExpectString()
	if err != nil {
		return 0, err
	}
	if len(b) > 8 {
		return 0, ErrValueTooLarge
	}
	if len(b) > 0 && b[0] == 0 {
		return 0, ErrNonCanonicalSize
	}
	var u uint64
	for _, c := range b {
		u = u<<8 | uint64(c)
	}
	return u, nil
}

// DecodeBigInt decodes a minimal big-endian RLP string into a *big.Int.
func DecodeBigInt(data []byte) (*big.Int, error) {
	it, err := Decode(data)
	if err != nil {
		return nil, err
	}
	b, err := it.ExpectString()
	if err != nil {
		return nil, err
	}
	if len(b) > 0 && b[0] == 0 {
		return nil, ErrNonCanonicalSize
	}
	return new(big.Int).SetBytes(b), nil
}

func decodeItem(data []byte) (Item, int, error) {
	if len(data) == 0 {
		return Item{}, 0, ErrTruncated
	}
	prefix := data[0]
	switch {
	case prefix <= 0x7f:
		return Item{Bytes: data[0:1]}, 1, nil

	case prefix <= 0xb7:
		size := int(prefix - 0x80)
		if 1+size > len(data) {
			return Item{}, 0, ErrTruncated
		}
		payload := data[1 : 1+size]
		if size == 1 && payload[0] < 0x80 {
			return Item{}, 0, ErrNonCanonicalSize
		}
		return Item{Bytes: payload}, 1 + size, nil

	case prefix <= 0xbf:
		lenOfLen := int(prefix - 0xb7)
		size, consumed, err := decodeLength(data[1:], lenOfLen)
		if err != nil {
			return Item{}, 0, err
		}
		if size <= 55 {
			return Item{}, 0, ErrNonCanonicalSize
		}
		start := 1 + consumed
		if start+size > len(data) {
			return Item{}, 0, ErrTruncated
		}
		return Item{Bytes: data[start : start+size]}, start + size, nil

	case prefix <= 0xf7:
		size := int(prefix - 0xc0)
		if 1+size > len(data) {
			return Item{}, 0, ErrTruncated
		}
		return decodeListPayload(data[1 : 1+size], 1+size)

	default:
		lenOfLen := int(prefix - 0xf7)
		size, consumed, err := decodeLength(data[1:], lenOfLen)
		if err != nil {
			return Item{}, 0, err
		}
		if size <= 55 {
			return Item{}, 0, ErrNonCanonicalSize
		}
		start := 1 + consumed
		if start+size > len(data) {
			return Item{}, 0, ErrTruncated
		}
		return decodeListPayload(data[start:start+size], start+size)
	}
}

// decodeListPayload decodes a fully-bounded list payload into its child
// items. totalConsumed is the number of bytes of the outer buffer the
// whole list (header + payload) occupies, passed straight through.
func decodeListPayload(payload []byte, totalConsumed int) (Item, int, error) {
	var children []Item
	pos := 0
	for pos < len(payload) {
		child, n, err := decodeItem(payload[pos:])
		if err != nil {
			return Item{}, 0, err
		}
		children = append(children, child)
		pos += n
	}
	return Item{IsList: true, List: children}, totalConsumed, nil
}

// decodeLength reads a big-endian length-of-length field, rejecting a
// leading zero byte (non-canonical) and returning the decoded size plus
// the number of bytes consumed.
func decodeLength(data []byte, lenOfLen int) (size int, consumed int, err error) {
	if lenOfLen == 0 || lenOfLen > 8 {
		return 0, 0, ErrNonCanonicalSize
	}
	if lenOfLen > len(data) {
		return 0, 0, ErrTruncated
	}
	if data[0] == 0 {
		return 0, 0, ErrLeadingZero
	}
	var n uint64
	for i := 0; i < lenOfLen; i++ {
		n = n<<8 | uint64(data[i])
	}
	return int(n), lenOfLen, nil
}
