// Package artifact implements the serialized "required block state"
// container (spec section 6): the SSZ-style byte layout produced by the
// assembler, wrapped in Snappy frame compression for transport. Encode
// and Decode are exact inverses: the same assembler.Result round-trips
// byte-for-byte, and a decoded container is immediately usable to seed a
// consumer's multiproofs without any further lookups.
package artifact

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"

	"github.com/eth2030/blockproof/access"
	"github.com/eth2030/blockproof/assembler"
	"github.com/eth2030/blockproof/ssz"
	"github.com/eth2030/blockproof/types"
)

// Size bounds from the external interface's variable-length list table and
// per-element max table.
const (
	maxAccountProofs   = 8192
	maxContracts       = 2048
	maxContractBytes   = 32768
	maxAccountNodes    = 32768
	maxAccountNodeSize = 32768
	maxStorageNodes    = 32768
	maxStorageNodeSize = 32768
	maxBlockHashes     = 256

	maxBalanceBytes      = 32
	maxNonceBytes        = 8
	maxStorageValueBytes = 8
	maxNodeIndices       = 64
	maxStorageProofs     = 8192

	addressSize = 20
	hashSize    = 32

	blockHashWitnessSize = 8 + hashSize
)

// ErrSizeBound reports a violation of one of the container's fixed size
// limits, on either encode or decode.
var ErrSizeBound = fmt.Errorf("artifact: exceeds size bound")

// Encode serializes result into the SSZ-style container and compresses it
// with Snappy frame compression.
func Encode(result *assembler.Result) ([]byte, error) {
	raw, err := encodeContainer(result)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("artifact: snappy compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("artifact: snappy compress: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) (*assembler.Result, error) {
	raw, err := io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("artifact: snappy decompress: %w", err)
	}
	return decodeContainer(raw)
}

func encodeContainer(r *assembler.Result) ([]byte, error) {
	if len(r.AccountProofs) > maxAccountProofs {
		return nil, fmt.Errorf("%w: %d account proofs exceeds %d", ErrSizeBound, len(r.AccountProofs), maxAccountProofs)
	}
	if len(r.Contracts) > maxContracts {
		return nil, fmt.Errorf("%w: %d contracts exceeds %d", ErrSizeBound, len(r.Contracts), maxContracts)
	}
	if len(r.AccountNodes) > maxAccountNodes {
		return nil, fmt.Errorf("%w: %d account nodes exceeds %d", ErrSizeBound, len(r.AccountNodes), maxAccountNodes)
	}
	if len(r.StorageNodes) > maxStorageNodes {
		return nil, fmt.Errorf("%w: %d storage nodes exceeds %d", ErrSizeBound, len(r.StorageNodes), maxStorageNodes)
	}
	if len(r.BlockHashes) > maxBlockHashes {
		return nil, fmt.Errorf("%w: %d block hashes exceeds %d", ErrSizeBound, len(r.BlockHashes), maxBlockHashes)
	}

	accountProofItems := make([][]byte, len(r.AccountProofs))
	for i, entry := range r.AccountProofs {
		encoded, err := encodeAccountProofEntry(entry)
		if err != nil {
			return nil, fmt.Errorf("artifact: account proof %d: %w", i, err)
		}
		accountProofItems[i] = encoded
	}

	contractItems := make([][]byte, len(r.Contracts))
	for i, c := range r.Contracts {
		if len(c) > maxContractBytes {
			return nil, fmt.Errorf("%w: contract %d is %d bytes, exceeds %d", ErrSizeBound, i, len(c), maxContractBytes)
		}
		contractItems[i] = c
	}

	accountNodeItems := make([][]byte, len(r.AccountNodes))
	for i, n := range r.AccountNodes {
		if len(n) > maxAccountNodeSize {
			return nil, fmt.Errorf("%w: account node %d is %d bytes, exceeds %d", ErrSizeBound, i, len(n), maxAccountNodeSize)
		}
		accountNodeItems[i] = n
	}

	storageNodeItems := make([][]byte, len(r.StorageNodes))
	for i, n := range r.StorageNodes {
		if len(n) > maxStorageNodeSize {
			return nil, fmt.Errorf("%w: storage node %d is %d bytes, exceeds %d", ErrSizeBound, i, len(n), maxStorageNodeSize)
		}
		storageNodeItems[i] = n
	}

	blockHashesBlob := make([]byte, 0, len(r.BlockHashes)*blockHashWitnessSize)
	for _, bh := range r.BlockHashes {
		blockHashesBlob = append(blockHashesBlob, ssz.MarshalUint64(bh.Number)...)
		blockHashesBlob = append(blockHashesBlob, bh.Hash.Bytes()...)
	}

	fixedParts := [][]byte{nil, nil, nil, nil, nil}
	variableParts := [][]byte{
		ssz.MarshalVariableList(accountProofItems),
		ssz.MarshalVariableList(contractItems),
		ssz.MarshalVariableList(accountNodeItems),
		ssz.MarshalVariableList(storageNodeItems),
		blockHashesBlob,
	}
	return ssz.MarshalVariableContainer(fixedParts, variableParts, []int{0, 1, 2, 3, 4}), nil
}

func encodeAccountProofEntry(e assembler.AccountProofEntry) ([]byte, error) {
	if len(e.Balance) > maxBalanceBytes {
		return nil, fmt.Errorf("%w: balance is %d bytes, exceeds %d", ErrSizeBound, len(e.Balance), maxBalanceBytes)
	}
	if len(e.NodeIndices) > maxNodeIndices {
		return nil, fmt.Errorf("%w: %d account-node indices exceeds %d", ErrSizeBound, len(e.NodeIndices), maxNodeIndices)
	}
	if len(e.StorageProof) > maxStorageProofs {
		return nil, fmt.Errorf("%w: %d storage proofs exceeds %d", ErrSizeBound, len(e.StorageProof), maxStorageProofs)
	}

	nonceBytes := trimBigEndianUint64(e.Nonce)
	if len(nonceBytes) > maxNonceBytes {
		return nil, fmt.Errorf("%w: nonce is %d bytes, exceeds %d", ErrSizeBound, len(nonceBytes), maxNonceBytes)
	}

	storageProofItems := make([][]byte, len(e.StorageProof))
	for i, sp := range e.StorageProof {
		encoded, err := encodeStorageProofEntry(sp)
		if err != nil {
			return nil, fmt.Errorf("storage proof %d: %w", i, err)
		}
		storageProofItems[i] = encoded
	}

	fixedParts := [][]byte{
		e.Address.Bytes(),
		nil,
		e.CodeHash.Bytes(),
		nil,
		e.StorageHash.Bytes(),
		nil,
		nil,
	}
	variableParts := [][]byte{
		e.Balance,
		nonceBytes,
		encodeUint16List(e.NodeIndices),
		ssz.MarshalVariableList(storageProofItems),
	}
	return ssz.MarshalVariableContainer(fixedParts, variableParts, []int{1, 3, 5, 6}), nil
}

func encodeStorageProofEntry(e assembler.StorageProofEntry) ([]byte, error) {
	if len(e.Value) > maxStorageValueBytes {
		return nil, fmt.Errorf("%w: storage value is %d bytes, exceeds %d", ErrSizeBound, len(e.Value), maxStorageValueBytes)
	}
	if len(e.NodeIndices) > maxNodeIndices {
		return nil, fmt.Errorf("%w: %d storage-node indices exceeds %d", ErrSizeBound, len(e.NodeIndices), maxNodeIndices)
	}
	fixedParts := [][]byte{e.Key.Bytes(), nil, nil}
	variableParts := [][]byte{e.Value, encodeUint16List(e.NodeIndices)}
	return ssz.MarshalVariableContainer(fixedParts, variableParts, []int{1, 2}), nil
}

func encodeUint16List(indices []uint16) []byte {
	out := make([]byte, 0, len(indices)*2)
	for _, idx := range indices {
		out = append(out, ssz.MarshalUint16(idx)...)
	}
	return out
}

func decodeUint16List(blob []byte) ([]uint16, error) {
	if len(blob)%2 != 0 {
		return nil, fmt.Errorf("artifact: node index list is %d bytes, not a multiple of 2", len(blob))
	}
	n := len(blob) / 2
	if n > maxNodeIndices {
		return nil, fmt.Errorf("%w: %d node indices exceeds %d", ErrSizeBound, n, maxNodeIndices)
	}
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		v, err := ssz.UnmarshalUint16(blob[i*2 : i*2+2])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func trimBigEndianUint64(v uint64) []byte {
	b := ssz.MarshalUint64(v)
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}

func decodeContainer(data []byte) (*assembler.Result, error) {
	fields, err := ssz.UnmarshalVariableContainer(data, 5, []int{0, 0, 0, 0, 0})
	if err != nil {
		return nil, fmt.Errorf("artifact: top-level container: %w", err)
	}

	accountProofItems, err := ssz.UnmarshalVariableList(fields[0])
	if err != nil {
		return nil, fmt.Errorf("artifact: account proofs: %w", err)
	}
	if len(accountProofItems) > maxAccountProofs {
		return nil, fmt.Errorf("%w: %d account proofs exceeds %d", ErrSizeBound, len(accountProofItems), maxAccountProofs)
	}
	accountProofs := make([]assembler.AccountProofEntry, len(accountProofItems))
	for i, item := range accountProofItems {
		entry, err := decodeAccountProofEntry(item)
		if err != nil {
			return nil, fmt.Errorf("artifact: account proof %d: %w", i, err)
		}
		accountProofs[i] = entry
	}

	contracts, err := ssz.UnmarshalVariableList(fields[1])
	if err != nil {
		return nil, fmt.Errorf("artifact: contracts: %w", err)
	}
	if len(contracts) > maxContracts {
		return nil, fmt.Errorf("%w: %d contracts exceeds %d", ErrSizeBound, len(contracts), maxContracts)
	}
	for i, c := range contracts {
		if len(c) > maxContractBytes {
			return nil, fmt.Errorf("%w: contract %d is %d bytes, exceeds %d", ErrSizeBound, i, len(c), maxContractBytes)
		}
	}

	accountNodes, err := ssz.UnmarshalVariableList(fields[2])
	if err != nil {
		return nil, fmt.Errorf("artifact: account nodes: %w", err)
	}
	if len(accountNodes) > maxAccountNodes {
		return nil, fmt.Errorf("%w: %d account nodes exceeds %d", ErrSizeBound, len(accountNodes), maxAccountNodes)
	}
	for i, n := range accountNodes {
		if len(n) > maxAccountNodeSize {
			return nil, fmt.Errorf("%w: account node %d is %d bytes, exceeds %d", ErrSizeBound, i, len(n), maxAccountNodeSize)
		}
	}

	storageNodes, err := ssz.UnmarshalVariableList(fields[3])
	if err != nil {
		return nil, fmt.Errorf("artifact: storage nodes: %w", err)
	}
	if len(storageNodes) > maxStorageNodes {
		return nil, fmt.Errorf("%w: %d storage nodes exceeds %d", ErrSizeBound, len(storageNodes), maxStorageNodes)
	}
	for i, n := range storageNodes {
		if len(n) > maxStorageNodeSize {
			return nil, fmt.Errorf("%w: storage node %d is %d bytes, exceeds %d", ErrSizeBound, i, len(n), maxStorageNodeSize)
		}
	}

	blockHashes, err := decodeBlockHashes(fields[4])
	if err != nil {
		return nil, fmt.Errorf("artifact: block hashes: %w", err)
	}

	return &assembler.Result{
		AccountProofs: accountProofs,
		Contracts:     contracts,
		AccountNodes:  accountNodes,
		StorageNodes:  storageNodes,
		BlockHashes:   blockHashes,
	}, nil
}

func decodeAccountProofEntry(data []byte) (assembler.AccountProofEntry, error) {
	fields, err := ssz.UnmarshalVariableContainer(data, 7, []int{addressSize, 0, hashSize, 0, hashSize, 0, 0})
	if err != nil {
		return assembler.AccountProofEntry{}, err
	}
	if len(fields[1]) > maxBalanceBytes {
		return assembler.AccountProofEntry{}, fmt.Errorf("%w: balance is %d bytes, exceeds %d", ErrSizeBound, len(fields[1]), maxBalanceBytes)
	}
	if len(fields[3]) > maxNonceBytes {
		return assembler.AccountProofEntry{}, fmt.Errorf("%w: nonce is %d bytes, exceeds %d", ErrSizeBound, len(fields[3]), maxNonceBytes)
	}
	var nonce uint64
	for _, b := range fields[3] {
		nonce = nonce<<8 | uint64(b)
	}
	nodeIndices, err := decodeUint16List(fields[5])
	if err != nil {
		return assembler.AccountProofEntry{}, err
	}
	storageProofItems, err := ssz.UnmarshalVariableList(fields[6])
	if err != nil {
		return assembler.AccountProofEntry{}, fmt.Errorf("storage proof list: %w", err)
	}
	if len(storageProofItems) > maxStorageProofs {
		return assembler.AccountProofEntry{}, fmt.Errorf("%w: %d storage proofs exceeds %d", ErrSizeBound, len(storageProofItems), maxStorageProofs)
	}
	storageProof := make([]assembler.StorageProofEntry, len(storageProofItems))
	for i, item := range storageProofItems {
		sp, err := decodeStorageProofEntry(item)
		if err != nil {
			return assembler.AccountProofEntry{}, fmt.Errorf("storage proof %d: %w", i, err)
		}
		storageProof[i] = sp
	}

	return assembler.AccountProofEntry{
		Address:      types.BytesToAddress(fields[0]),
		Balance:      append([]byte(nil), fields[1]...),
		CodeHash:     types.BytesToHash(fields[2]),
		Nonce:        nonce,
		StorageHash:  types.BytesToHash(fields[4]),
		NodeIndices:  nodeIndices,
		StorageProof: storageProof,
	}, nil
}

func decodeStorageProofEntry(data []byte) (assembler.StorageProofEntry, error) {
	fields, err := ssz.UnmarshalVariableContainer(data, 3, []int{hashSize, 0, 0})
	if err != nil {
		return assembler.StorageProofEntry{}, err
	}
	if len(fields[1]) > maxStorageValueBytes {
		return assembler.StorageProofEntry{}, fmt.Errorf("%w: storage value is %d bytes, exceeds %d", ErrSizeBound, len(fields[1]), maxStorageValueBytes)
	}
	nodeIndices, err := decodeUint16List(fields[2])
	if err != nil {
		return assembler.StorageProofEntry{}, err
	}
	return assembler.StorageProofEntry{
		Key:         types.BytesToHash(fields[0]),
		Value:       append([]byte(nil), fields[1]...),
		NodeIndices: nodeIndices,
	}, nil
}

func decodeBlockHashes(blob []byte) ([]access.BlockHashObservation, error) {
	if len(blob)%blockHashWitnessSize != 0 {
		return nil, fmt.Errorf("block hash blob is %d bytes, not a multiple of %d", len(blob), blockHashWitnessSize)
	}
	n := len(blob) / blockHashWitnessSize
	if n > maxBlockHashes {
		return nil, fmt.Errorf("%w: %d block hashes exceeds %d", ErrSizeBound, n, maxBlockHashes)
	}
	out := make([]access.BlockHashObservation, n)
	for i := 0; i < n; i++ {
		chunk := blob[i*blockHashWitnessSize : (i+1)*blockHashWitnessSize]
		number, err := ssz.UnmarshalUint64(chunk[:8])
		if err != nil {
			return nil, err
		}
		out[i] = access.BlockHashObservation{
			Number: number,
			Hash:   types.BytesToHash(chunk[8:]),
		}
	}
	return out, nil
}
