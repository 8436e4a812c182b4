package trie

import "fmt"

// errCompact* classify malformed hex-prefix encodings (spec section 4.2).
var (
	errCompactEmpty          = fmt.Errorf("trie: %w: empty compact encoding", ErrMalformed)
	errCompactReservedFlag   = fmt.Errorf("trie: %w: reserved flag nibble", ErrMalformed)
	errCompactPaddingNonZero = fmt.Errorf("trie: %w: non-zero padding nibble", ErrMalformed)
)

// ErrMalformed marks the "malformed input" error kind from spec section 7:
// RLP decode failure, compact-encoding parity violation, or an unexpected
// node variant at a given position.
var ErrMalformed = &taxonomyError{kind: "malformed input"}

// ErrProofInconsistent marks the "proof inconsistent with root" kind: a
// computed node hash diverges from the parent's reference.
var ErrProofInconsistent = &taxonomyError{kind: "proof inconsistent with root"}

// ErrInsufficientProof marks the "missing node for mutation" kind: an
// update, insert, or delete traversed into a reference that is neither in
// the store nor supplied by the deletion oracle.
var ErrInsufficientProof = &taxonomyError{kind: "missing node for mutation"}

// taxonomyError is a stable sentinel for one of the error kinds in spec
// section 7; use fmt.Errorf("...: %w: detail", ErrX) to attach position
// context (proof index, node depth, key) while keeping errors.Is(err, ErrX)
// working.
type taxonomyError struct {
	kind string
}

func (e *taxonomyError) Error() string { return e.kind }

// PositionedError decorates one of the taxonomy errors with the indices a
// caller needs to bisect which proof entry is at fault (spec section 7).
type PositionedError struct {
	Err         error
	AccountIdx  int // index into the account proof list, -1 if not applicable
	StorageIdx  int // index into a storage proof list, -1 if not applicable
	NodeDepth   int // depth along the traversed path where the error occurred
	Description string
}

func (e *PositionedError) Error() string {
	return fmt.Sprintf("%s at account=%d storage=%d depth=%d: %s",
		e.Err, e.AccountIdx, e.StorageIdx, e.NodeDepth, e.Description)
}

func (e *PositionedError) Unwrap() error { return e.Err }
