package rlp

import "errors"

// Decode failure kinds named in spec section 4.1 and section 7.
var (
	// ErrTruncated is returned when the input ends before a declared
	// length prefix's payload is fully present.
	ErrTruncated = errors.New("rlp: truncated input")

	// ErrNonCanonicalSize is returned when a length header uses more
	// bytes than necessary, or encodes a single byte below 0x80 as a
	// one-byte string instead of itself.
	ErrNonCanonicalSize = errors.New("rlp: non-canonical size")

	// ErrLeadingZero is returned when a multi-byte length prefix has a
	// leading zero byte.
	ErrLeadingZero = errors.New("rlp: leading zero in length header")

	// ErrTrailingGarbage is returned when Decode, which consumes the
	// entire input, finds bytes remaining after the first item.
	ErrTrailingGarbage = errors.New("rlp: trailing garbage after item")

	// ErrExpectedString is returned when a list is found where a string
	// (leaf bytes) was required.
	ErrExpectedString = errors.New("rlp: expected string, got list")

	// ErrExpectedList is returned when a string is found where a list
	// was required.
	ErrExpectedList = errors.New("rlp: expected list, got string")

	// ErrValueTooLarge is returned by DecodeUint64 when the string payload
	// is longer than the 8 bytes a uint64 can hold.
	ErrValueTooLarge = errors.New("rlp: value too large or unrepresentable")
)
