// Package ssz implements the fixed/variable container and offset scheme of
// Simple Serialize, adapted from the consensus-layer codec: instead of SSZ's
// usual little-endian integers, every integer field here is big-endian (the
// wire format this codec serves specifies big-endian throughout). Only the
// primitives the artifact container needs are kept: fixed-size integers,
// raw byte blobs, and the variable-container offset scheme for containers
// and homogeneous lists of variable-size items. Merkleization and hash-tree
// roots are not part of this wire format and are not implemented here.
package ssz

import "errors"

var (
	ErrSize           = errors.New("ssz: invalid size")
	ErrOffset         = errors.New("ssz: invalid offset")
	ErrListTooLong    = errors.New("ssz: list exceeds maximum length")
	ErrBufferTooSmall = errors.New("ssz: buffer too small")
	ErrElementTooLong = errors.New("ssz: element exceeds maximum length")
)

// BytesPerLengthOffset is the width, in bytes, of each offset in the
// variable-container and variable-list encodings.
const BytesPerLengthOffset = 4
