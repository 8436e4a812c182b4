package types

// Header carries the subset of a block header the state provider needs to
// check its work: the block number that identifies it, its parent hash,
// and the state root that a finalized multiproof root must equal. The
// consumer is assumed to hold these from a trusted canonical-header source
// (spec section 1).
type Header struct {
	Number     uint64
	ParentHash Hash
	StateRoot  Hash
}
