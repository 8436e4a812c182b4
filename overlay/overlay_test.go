package overlay

import (
	"testing"

	"github.com/holiman/uint256"

	"github.com/eth2030/blockproof/types"
)

func h(b byte) types.Hash {
	var out types.Hash
	out[31] = b
	return out
}

func TestContentIDIsKeccakOfSelectorAndBlockHash(t *testing.T) {
	blockHash := h(0x42)
	key := ContentKey(blockHash)
	if len(key) != 33 {
		t.Fatalf("ContentKey length = %d, want 33", len(key))
	}
	if key[0] != 0x00 {
		t.Fatalf("ContentKey selector = 0x%02x, want 0x00", key[0])
	}
	id := ContentID(blockHash)
	if id.IsZero() {
		t.Fatalf("ContentID returned zero hash")
	}
}

func TestDistanceSelfIsZero(t *testing.T) {
	a := h(0x01)
	if d := Distance(a, a); !d.IsZero() {
		t.Fatalf("Distance(a, a) = %v, want 0", d)
	}
}

func TestDistanceIsSymmetric(t *testing.T) {
	a, b := h(0x01), h(0xff)
	if Distance(a, b).Cmp(Distance(b, a)) != 0 {
		t.Fatalf("Distance(a, b) != Distance(b, a)")
	}
}

func TestDistanceNeverExceedsHalfKeyspace(t *testing.T) {
	// Diametrically opposed ids hit the bound exactly.
	var a, b types.Hash
	b[0] = 0x80
	d := Distance(a, b)
	if d.Cmp(MaxDistance()) > 0 {
		t.Fatalf("Distance exceeded 2^255: %v", d)
	}
}

func TestInRangeHonorsRadius(t *testing.T) {
	a, b := h(0x01), h(0x02)
	d := Distance(a, b)
	if !InRange(a, b, d) {
		t.Fatalf("InRange should hold when radius equals the exact distance")
	}
	tooSmall := new(uint256.Int).Sub(d, uint256.NewInt(1))
	if InRange(a, b, tooSmall) {
		t.Fatalf("InRange should fail when radius is smaller than the distance")
	}
}
