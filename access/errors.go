package access

import "errors"

// ErrMalformed signals a BLOCKHASH observation outside the window the
// opcode can actually resolve.
var ErrMalformed = errors.New("malformed access observation")

// ErrSizeBound signals a collection exceeding the bound spec section 4.7
// places on it (currently: at most 256 distinct BLOCKHASH numbers).
var ErrSizeBound = errors.New("access set exceeds size bound")
