package rlp

import "math/big"

// EncodeBytes returns the canonical RLP string encoding of data: the byte
// itself if data is a single byte below 0x80, a short-form string header
// for payloads under 56 bytes, and a long-form length-of-length header
// otherwise.
func EncodeBytes(data []byte) []byte {
	if len(data) == 1 && data[0] < 0x80 {
		return []byte{data[0]}
	}
	return encodeStringHeader(0x80, data)
}

func encodeStringHeader(base byte, data []byte) []byte {
	n := len(data)
	if n <= 55 {
		buf := make([]byte, 1+n)
		buf[0] = base + byte(n)
		copy(buf[1:], data)
		return buf
	}
	lenBytes := bigEndianMinimal(uint64(n))
	buf := make([]byte, 1+len(lenBytes)+n)
	buf[0] = base + 55 + byte(len(lenBytes))
	copy(buf[1:], lenBytes)
	copy(buf[1+len(lenBytes):], data)
	return buf
}

// EncodeList wraps the concatenation of already-encoded items in a list
// header. Use EncodeListOf to encode raw byte strings as list elements.
func EncodeList(encodedItems ...[]byte) []byte {
	var payload []byte
	for _, it := range encodedItems {
		payload = append(payload, it...)
	}
	return wrapList(payload)
}

// EncodeListOf encodes each element as an RLP string and wraps the result
// in a list header. This is the common case for trie node children that
// are themselves plain byte strings (hashes, values, compact keys).
func EncodeListOf(elements ...[]byte) []byte {
	encoded := make([][]byte, len(elements))
	for i, e := range elements {
		encoded[i] = EncodeBytes(e)
	}
	return EncodeList(encoded...)
}

func wrapList(payload []byte) []byte {
	n := len(payload)
	if n <= 55 {
		buf := make([]byte, 1+n)
		buf[0] = 0xc0 + byte(n)
		copy(buf[1:], payload)
		return buf
	}
	lenBytes := bigEndianMinimal(uint64(n))
	buf := make([]byte, 1+len(lenBytes)+n)
	buf[0] = 0xf7 + byte(len(lenBytes))
	copy(buf[1:], lenBytes)
	copy(buf[1+len(lenBytes):], payload)
	return buf
}

// EncodeUint64 encodes u as a minimal big-endian RLP string, per Ethereum's
// convention for nonces and other small integers: zero encodes as the
// empty string.
func EncodeUint64(u uint64) []byte {
	if u == 0 {
		return EncodeBytes(nil)
	}
	return EncodeBytes(bigEndianMinimal(u))
}

// EncodeBigInt encodes i (assumed non-negative, as all quantities in this
// module are) as a minimal big-endian RLP string.
func EncodeBigInt(i *big.Int) []byte {
	if i == nil || i.Sign() == 0 {
		return EncodeBytes(nil)
	}
	return EncodeBytes(i.Bytes())
}

// EncodeItem encodes an Item tree built by Decode, round-tripping it back
// to canonical bytes.
func EncodeItem(it Item) []byte {
	if !it.IsList {
		return EncodeBytes(it.Bytes)
	}
	parts := make([][]byte, len(it.List))
	for i, child := range it.List {
		parts[i] = EncodeItem(child)
	}
	return EncodeList(parts...)
}

func bigEndianMinimal(u uint64) []byte {
	switch {
	case u < 1<<8:
		return []byte{byte(u)}
	case u < 1<<16:
		return []byte{byte(u >> 8), byte(u)}
	case u < 1<<24:
		return []byte{byte(u >> 16), byte(u >> 8), byte(u)}
	case u < 1<<32:
		return []byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
	case u < 1<<40:
		return []byte{byte(u >> 32), byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
	case u < 1<<48:
		return []byte{byte(u >> 40), byte(u >> 32), byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
	case u < 1<<56:
		return []byte{byte(u >> 48), byte(u >> 40), byte(u >> 32), byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
	default:
		return []byte{byte(u >> 56), byte(u >> 48), byte(u >> 40), byte(u >> 32), byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
	}
}
