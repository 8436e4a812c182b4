package ssz

import (
	"bytes"
	"testing"
)

func TestUint16RoundTrip(t *testing.T) {
	encoded := MarshalUint16(0xabcd)
	if !bytes.Equal(encoded, []byte{0xab, 0xcd}) {
		t.Fatalf("MarshalUint16 = %x, want ab cd", encoded)
	}
	decoded, err := UnmarshalUint16(encoded)
	if err != nil {
		t.Fatalf("UnmarshalUint16: %v", err)
	}
	if decoded != 0xabcd {
		t.Fatalf("decoded = %x, want abcd", decoded)
	}
}

func TestUint64RoundTrip(t *testing.T) {
	encoded := MarshalUint64(0x0102030405060708)
	decoded, err := UnmarshalUint64(encoded)
	if err != nil {
		t.Fatalf("UnmarshalUint64: %v", err)
	}
	if decoded != 0x0102030405060708 {
		t.Fatalf("decoded = %x, want 0102030405060708", decoded)
	}
}

func TestVariableContainerRoundTrip(t *testing.T) {
	fixed := []byte{0x11, 0x22, 0x33}
	variableA := []byte("hello")
	variableB := []byte("world!!")

	encoded := MarshalVariableContainer(
		[][]byte{fixed, nil, nil},
		[][]byte{variableA, variableB},
		[]int{1, 2},
	)

	fields, err := UnmarshalVariableContainer(encoded, 3, []int{3, 0, 0})
	if err != nil {
		t.Fatalf("UnmarshalVariableContainer: %v", err)
	}
	if !bytes.Equal(fields[0], fixed) {
		t.Fatalf("field 0 = %x, want %x", fields[0], fixed)
	}
	if !bytes.Equal(fields[1], variableA) {
		t.Fatalf("field 1 = %q, want %q", fields[1], variableA)
	}
	if !bytes.Equal(fields[2], variableB) {
		t.Fatalf("field 2 = %q, want %q", fields[2], variableB)
	}
}

func TestVariableListRoundTrip(t *testing.T) {
	items := [][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}
	encoded := MarshalVariableList(items)

	decoded, err := UnmarshalVariableList(encoded)
	if err != nil {
		t.Fatalf("UnmarshalVariableList: %v", err)
	}
	if len(decoded) != len(items) {
		t.Fatalf("decoded %d items, want %d", len(decoded), len(items))
	}
	for i := range items {
		if !bytes.Equal(decoded[i], items[i]) {
			t.Fatalf("item %d = %q, want %q", i, decoded[i], items[i])
		}
	}
}

func TestVariableListEmpty(t *testing.T) {
	encoded := MarshalVariableList(nil)
	if len(encoded) != 0 {
		t.Fatalf("empty list encoded to %d bytes, want 0", len(encoded))
	}
	decoded, err := UnmarshalVariableList(encoded)
	if err != nil {
		t.Fatalf("UnmarshalVariableList: %v", err)
	}
	if len(decoded) != 0 {
		t.Fatalf("decoded %d items, want 0", len(decoded))
	}
}

func TestVariableListRejectsTruncatedOffsetTable(t *testing.T) {
	if _, err := UnmarshalVariableList([]byte{0x00, 0x00, 0x00, 0x10}); err == nil {
		t.Fatalf("expected error for offset table past buffer end")
	}
}
