package ssz

import "encoding/binary"

// MarshalUint16 encodes v as 2 bytes big-endian.
func MarshalUint16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

// MarshalUint64 encodes v as 8 bytes big-endian.
func MarshalUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// MarshalVariableContainer encodes a container with a mix of fixed- and
// variable-size fields. fixedParts holds every field's encoding in order,
// with a nil entry for each field listed in variableIndices; variableParts
// holds the variable fields' encodings, in the same relative order as they
// appear in variableIndices.
func MarshalVariableContainer(fixedParts [][]byte, variableParts [][]byte, variableIndices []int) []byte {
	fixedSize := 0
	for i, fp := range fixedParts {
		if isVariableIndex(i, variableIndices) {
			fixedSize += BytesPerLengthOffset
		} else {
			fixedSize += len(fp)
		}
	}

	offsets := make([]uint32, len(variableParts))
	currentOffset := uint32(fixedSize)
	for i, vp := range variableParts {
		offsets[i] = currentOffset
		currentOffset += uint32(len(vp))
	}

	out := make([]byte, 0, int(currentOffset))
	varIdx := 0
	for i, fp := range fixedParts {
		if isVariableIndex(i, variableIndices) {
			var ob [4]byte
			binary.BigEndian.PutUint32(ob[:], offsets[varIdx])
			out = append(out, ob[:]...)
			varIdx++
		} else {
			out = append(out, fp...)
		}
	}
	for _, vp := range variableParts {
		out = append(out, vp...)
	}
	return out
}

func isVariableIndex(idx int, variableIndices []int) bool {
	for _, vi := range variableIndices {
		if vi == idx {
			return true
		}
	}
	return false
}

// MarshalVariableList encodes a homogeneous list of already-encoded
// variable-size items as an offset table followed by the concatenated
// items, exactly like a variable container all of whose fields are
// variable. An empty list encodes as zero bytes.
func MarshalVariableList(items [][]byte) []byte {
	if len(items) == 0 {
		return nil
	}
	fixedSize := len(items) * BytesPerLengthOffset
	total := fixedSize
	for _, item := range items {
		total += len(item)
	}
	out := make([]byte, 0, total)
	offset := uint32(fixedSize)
	offsetTable := make([]byte, fixedSize)
	for i, item := range items {
		binary.BigEndian.PutUint32(offsetTable[i*4:i*4+4], offset)
		offset += uint32(len(item))
	}
	out = append(out, offsetTable...)
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}
