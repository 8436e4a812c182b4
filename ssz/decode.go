package ssz

import "encoding/binary"

// UnmarshalUint16 decodes a uint16 from 2 bytes big-endian.
func UnmarshalUint16(data []byte) (uint16, error) {
	if len(data) != 2 {
		return 0, ErrSize
	}
	return binary.BigEndian.Uint16(data), nil
}

// UnmarshalUint64 decodes a uint64 from 8 bytes big-endian.
func UnmarshalUint64(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, ErrSize
	}
	return binary.BigEndian.Uint64(data), nil
}

// UnmarshalVariableContainer decodes a container with numFields fields.
// fixedSizes gives each field's fixed byte width, or 0 for a variable field
// whose bytes are instead reached through an offset. Returns each field's
// raw bytes in order.
func UnmarshalVariableContainer(data []byte, numFields int, fixedSizes []int) ([][]byte, error) {
	if len(fixedSizes) != numFields {
		return nil, ErrSize
	}

	fields := make([][]byte, numFields)
	offsets := make([]uint32, 0, numFields)
	offsetFieldIndices := make([]int, 0, numFields)

	pos := 0
	for i := 0; i < numFields; i++ {
		if fixedSizes[i] > 0 {
			end := pos + fixedSizes[i]
			if end > len(data) {
				return nil, ErrBufferTooSmall
			}
			fields[i] = data[pos:end]
			pos = end
			continue
		}
		if pos+BytesPerLengthOffset > len(data) {
			return nil, ErrBufferTooSmall
		}
		offset := binary.BigEndian.Uint32(data[pos : pos+BytesPerLengthOffset])
		offsets = append(offsets, offset)
		offsetFieldIndices = append(offsetFieldIndices, i)
		pos += BytesPerLengthOffset
	}

	for i, idx := range offsetFieldIndices {
		start := int(offsets[i])
		end := len(data)
		if i+1 < len(offsets) {
			end = int(offsets[i+1])
		}
		if start > end || end > len(data) || start > len(data) {
			return nil, ErrOffset
		}
		fields[idx] = data[start:end]
	}
	return fields, nil
}

// UnmarshalVariableList is the inverse of MarshalVariableList: it splits a
// homogeneous list of variable-size items back into their raw byte ranges.
// Zero-length input decodes as an empty list, per the spec's "first offset
// equals the fixed-part size, so item count = first offset / 4" convention.
func UnmarshalVariableList(data []byte) ([][]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if len(data) < BytesPerLengthOffset {
		return nil, ErrBufferTooSmall
	}
	first := binary.BigEndian.Uint32(data[0:4])
	if first == 0 || first%BytesPerLengthOffset != 0 {
		return nil, ErrOffset
	}
	n := int(first / BytesPerLengthOffset)
	if n*BytesPerLengthOffset > len(data) {
		return nil, ErrOffset
	}
	offsets := make([]uint32, n)
	for i := 0; i < n; i++ {
		offsets[i] = binary.BigEndian.Uint32(data[i*4 : i*4+4])
	}
	items := make([][]byte, n)
	for i := 0; i < n; i++ {
		start := offsets[i]
		end := uint32(len(data))
		if i+1 < n {
			end = offsets[i+1]
		}
		if start > end || end > uint32(len(data)) {
			return nil, ErrOffset
		}
		items[i] = data[start:end]
	}
	return items, nil
}
