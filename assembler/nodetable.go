package assembler

import (
	"sort"

	"github.com/eth2030/blockproof/types"
)

// nodeTable deduplicates raw trie-node RLP by content, assigning each
// distinct node a stable index in insertion order (spec section 4.8:
// "allocate a stable index and record the node's raw RLP exactly once").
// Nodes reached only through a deletion-oracle exclusion proof are added
// here too, alongside ordinary proof nodes, under the same dedup rule:
// the shared table does not distinguish their origin.
type nodeTable struct {
	order   [][]byte
	indexOf map[string]uint16
}

func newNodeTable() *nodeTable {
	return &nodeTable{indexOf: make(map[string]uint16)}
}

// add returns raw's stable index, assigning one on first occurrence.
func (t *nodeTable) add(raw []byte) uint16 {
	key := string(raw)
	if idx, ok := t.indexOf[key]; ok {
		return idx
	}
	idx := uint16(len(t.order))
	t.order = append(t.order, raw)
	t.indexOf[key] = idx
	return idx
}

// sorted returns the table's nodes ordered by raw bytes (spec section 6's
// sort key for the account-node and storage-node lists) along with a
// remap from each node's original index to its sorted position.
func (t *nodeTable) sorted() (nodes [][]byte, remap []uint16) {
	n := len(t.order)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(i, j int) bool {
		return types.BytesLess(t.order[perm[i]], t.order[perm[j]])
	})
	nodes = make([][]byte, n)
	remap = make([]uint16, n)
	for newIdx, oldIdx := range perm {
		nodes[newIdx] = t.order[oldIdx]
		remap[oldIdx] = uint16(newIdx)
	}
	return nodes, remap
}

func remapIndices(indices []uint16, remap []uint16) []uint16 {
	out := make([]uint16, len(indices))
	for i, idx := range indices {
		out[i] = remap[idx]
	}
	return out
}

// trimBigEndian strips leading zero bytes, the minimal big-endian encoding
// used throughout the artifact for balances, nonces, and storage values.
func trimBigEndian(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}
