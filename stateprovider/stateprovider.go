// Package stateprovider implements the state-provider façade an EVM
// driver is run against (spec section 4.9): it answers account, code,
// storage, and BLOCKHASH reads from a pair of multiproofs loaded from an
// assembled artifact, records writes in a cache, and on finalize flushes
// every mutated account's storage and body into the multiproofs and
// returns the resulting account-trie root.
package stateprovider

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/eth2030/blockproof/assembler"
	"github.com/eth2030/blockproof/crypto"
	"github.com/eth2030/blockproof/oracle"
	"github.com/eth2030/blockproof/trie"
	"github.com/eth2030/blockproof/types"
)

// AccountFields is the set of account-body fields an EVM driver writes
// through SetAccount; code and storage are tracked separately.
type AccountFields struct {
	Balance  *big.Int
	Nonce    uint64
	CodeHash types.Hash
}

// Provider is one block's state-provider façade, loaded once from an
// assembled artifact and driven by a single EVM execution.
type Provider struct {
	accounts      *trie.Multiproof
	accountOracle *oracle.Table
	storageOracle *oracle.Table
	storageNodes  [][]byte

	entryByAddress map[types.Address]*assembler.AccountProofEntry
	storages       map[types.Address]*trie.Multiproof

	codes       map[types.Hash][]byte
	blockHashes map[uint64]types.Hash

	pendingAccounts map[types.Address]AccountFields
	pendingStorage  map[types.Address]map[types.Hash]types.Hash
	deletedAccounts map[types.Address]bool
	dirty           map[types.Address]bool
}

// New builds a provider from an assembled artifact, rooted at the target
// block's pre-state root (the trusted value the consumer already holds,
// typically the parent block's header). The two shared node tables are
// decoded once into oracle tables so every collapse sibling a Delete
// might need is already available without distinguishing whether it came
// from a genuine proof path or a deletion-oracle-only fetch.
func New(result *assembler.Result, preStateRoot types.Hash) (*Provider, error) {
	accountOracle := oracle.NewTable()
	for i, raw := range result.AccountNodes {
		node, err := trie.DecodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("stateprovider: account node %d: %w", i, err)
		}
		accountOracle.Put(crypto.Keccak256Hash(raw), node)
	}
	storageOracle := oracle.NewTable()
	for i, raw := range result.StorageNodes {
		node, err := trie.DecodeNode(raw)
		if err != nil {
			return nil, fmt.Errorf("stateprovider: storage node %d: %w", i, err)
		}
		storageOracle.Put(crypto.Keccak256Hash(raw), node)
	}

	accounts := trie.NewMultiproof(preStateRoot).WithOracle(accountOracle)
	entryByAddress := make(map[types.Address]*assembler.AccountProofEntry, len(result.AccountProofs))
	for i := range result.AccountProofs {
		entry := &result.AccountProofs[i]
		rawNodes, err := resolveNodeIndices(entry.NodeIndices, result.AccountNodes)
		if err != nil {
			return nil, fmt.Errorf("stateprovider: account %s: %w", entry.Address, err)
		}
		if err := accounts.AddProof(crypto.Keccak256Hash(entry.Address.Bytes()), rawNodes); err != nil {
			return nil, fmt.Errorf("stateprovider: account %s: add proof: %w", entry.Address, err)
		}
		entryByAddress[entry.Address] = entry
	}

	codes := make(map[types.Hash][]byte, len(result.Contracts))
	for _, code := range result.Contracts {
		codes[crypto.Keccak256Hash(code)] = code
	}

	blockHashes := make(map[uint64]types.Hash, len(result.BlockHashes))
	for _, bh := range result.BlockHashes {
		blockHashes[bh.Number] = bh.Hash
	}

	return &Provider{
		accounts:        accounts,
		accountOracle:   accountOracle,
		storageOracle:   storageOracle,
		storageNodes:    result.StorageNodes,
		entryByAddress:  entryByAddress,
		storages:        make(map[types.Address]*trie.Multiproof),
		codes:           codes,
		blockHashes:     blockHashes,
		pendingAccounts: make(map[types.Address]AccountFields),
		pendingStorage:  make(map[types.Address]map[types.Hash]types.Hash),
		deletedAccounts: make(map[types.Address]bool),
		dirty:           make(map[types.Address]bool),
	}, nil
}

func resolveNodeIndices(indices []uint16, table [][]byte) ([][]byte, error) {
	out := make([][]byte, len(indices))
	for i, idx := range indices {
		if int(idx) >= len(table) {
			return nil, fmt.Errorf("node index %d out of range (%d nodes)", idx, len(table))
		}
		out[i] = table[idx]
	}
	return out, nil
}

// storageTrieFor lazily builds the per-account storage multiproof from
// that account's proof entry, rooted at the storage root observed when
// the account proof was fetched. An address with no account entry gets an
// empty-trie overlay; an entry with no storage proofs gets an overlay
// rooted at its storage hash with no nodes added.
func (p *Provider) storageTrieFor(address types.Address) (*trie.Multiproof, error) {
	if m, ok := p.storages[address]; ok {
		return m, nil
	}
	entry := p.entryByAddress[address]
	root := trie.EmptyTrieRoot
	if entry != nil {
		root = entry.StorageHash
	}
	m := trie.NewMultiproof(root).WithOracle(p.storageOracle)
	if entry != nil {
		for _, sp := range entry.StorageProof {
			rawNodes, err := resolveNodeIndices(sp.NodeIndices, p.storageNodes)
			if err != nil {
				return nil, fmt.Errorf("storage key %s: %w", sp.Key, err)
			}
			if err := m.AddProof(crypto.Keccak256Hash(sp.Key.Bytes()), rawNodes); err != nil {
				return nil, fmt.Errorf("storage key %s: add proof: %w", sp.Key, err)
			}
		}
	}
	p.storages[address] = m
	return m, nil
}

// GetAccount reads the account's current fields: any pending SetAccount
// write, else the account multiproof at keccak(address). A provable
// exclusion, or a deleted account, returns the empty account.
func (p *Provider) GetAccount(address types.Address) (AccountFields, error) {
	if p.deletedAccounts[address] {
		return AccountFields{Balance: new(big.Int), CodeHash: types.EmptyCodeHash}, nil
	}
	if fields, ok := p.pendingAccounts[address]; ok {
		return fields, nil
	}
	result, err := p.accounts.Get(crypto.Keccak256Hash(address.Bytes()))
	if err != nil {
		return AccountFields{}, fmt.Errorf("stateprovider: get_account %s: %w", address, err)
	}
	if !result.Included {
		return AccountFields{Balance: new(big.Int), CodeHash: types.EmptyCodeHash}, nil
	}
	body, err := types.DecodeAccount(result.Value)
	if err != nil {
		return AccountFields{}, fmt.Errorf("stateprovider: get_account %s: decode: %w", address, err)
	}
	return AccountFields{Balance: body.Balance, Nonce: body.Nonce, CodeHash: body.CodeHash}, nil
}

// GetCode returns the bytecode for codeHash, or the empty byte slice for
// the code hash of an account with no code.
func (p *Provider) GetCode(codeHash types.Hash) ([]byte, error) {
	if codeHash == types.EmptyCodeHash {
		return nil, nil
	}
	code, ok := p.codes[codeHash]
	if !ok {
		return nil, fmt.Errorf("stateprovider: get_code: no bytecode for hash %s", codeHash)
	}
	return code, nil
}

// GetStorage reads one storage slot: any pending SetStorage write, else
// the per-account storage multiproof at keccak(key). A provable exclusion
// returns 32 zero bytes.
func (p *Provider) GetStorage(address types.Address, key types.Hash) (types.Hash, error) {
	if slots, ok := p.pendingStorage[address]; ok {
		if v, ok := slots[key]; ok {
			return v, nil
		}
	}
	storageTrie, err := p.storageTrieFor(address)
	if err != nil {
		return types.Hash{}, fmt.Errorf("stateprovider: get_storage %s/%s: %w", address, key, err)
	}
	result, err := storageTrie.Get(crypto.Keccak256Hash(key.Bytes()))
	if err != nil {
		return types.Hash{}, fmt.Errorf("stateprovider: get_storage %s/%s: %w", address, key, err)
	}
	if !result.Included {
		return types.Hash{}, nil
	}
	return types.BytesToHash(result.Value), nil
}

// SetAccount caches fields for address, to be flushed on Finalize.
func (p *Provider) SetAccount(address types.Address, fields AccountFields) {
	delete(p.deletedAccounts, address)
	p.pendingAccounts[address] = fields
	p.dirty[address] = true
}

// DeleteAccount marks address for removal from the account multiproof on
// Finalize (SELFDESTRUCT, spec section 4.6).
func (p *Provider) DeleteAccount(address types.Address) {
	delete(p.pendingAccounts, address)
	delete(p.pendingStorage, address)
	p.deletedAccounts[address] = true
	p.dirty[address] = true
}

// SetStorage caches a slot write for address, to be flushed on Finalize.
// A zero value deletes the slot.
func (p *Provider) SetStorage(address types.Address, key, value types.Hash) {
	slots, ok := p.pendingStorage[address]
	if !ok {
		slots = make(map[types.Hash]types.Hash)
		p.pendingStorage[address] = slots
	}
	slots[key] = value
	p.dirty[address] = true
}

// BlockHash looks up the block-hash witness table; fails if number was
// not recorded during access discovery.
func (p *Provider) BlockHash(number uint64) (types.Hash, error) {
	hash, ok := p.blockHashes[number]
	if !ok {
		return types.Hash{}, fmt.Errorf("stateprovider: block_hash: no witness for block %d", number)
	}
	return hash, nil
}

// Finalize flushes every cached write into the multiproofs: for each
// dirty account, its storage writes are applied to its storage
// multiproof first (so the account body carries the new storage root),
// then the account body itself is applied to the account multiproof. It
// returns the resulting account-trie root, which the caller compares
// against the target block's post-state root.
func (p *Provider) Finalize() (types.Hash, error) {
	addresses := make([]types.Address, 0, len(p.dirty))
	for addr := range p.dirty {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i].Less(addresses[j]) })

	for _, address := range addresses {
		if p.deletedAccounts[address] {
			if err := p.deleteAccount(address); err != nil {
				return types.Hash{}, err
			}
			continue
		}
		if err := p.flushAccount(address); err != nil {
			return types.Hash{}, err
		}
	}
	return p.accounts.Root(), nil
}

func (p *Provider) deleteAccount(address types.Address) error {
	accountKey := crypto.Keccak256Hash(address.Bytes())
	result, err := p.accounts.Get(accountKey)
	if err != nil {
		return fmt.Errorf("stateprovider: finalize: delete %s: %w", address, err)
	}
	if !result.Included {
		return nil
	}
	if _, err := p.accounts.Delete(accountKey); err != nil {
		return fmt.Errorf("stateprovider: finalize: delete %s: %w", address, err)
	}
	return nil
}

func (p *Provider) flushAccount(address types.Address) error {
	storageTrie, err := p.storageTrieFor(address)
	if err != nil {
		return fmt.Errorf("stateprovider: finalize: %s: %w", address, err)
	}

	keys := make([]types.Hash, 0, len(p.pendingStorage[address]))
	for key := range p.pendingStorage[address] {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, key := range keys {
		value := p.pendingStorage[address][key]
		storageKey := crypto.Keccak256Hash(key.Bytes())
		result, err := storageTrie.Get(storageKey)
		if err != nil {
			return fmt.Errorf("stateprovider: finalize: %s storage %s: %w", address, key, err)
		}
		switch {
		case value.IsZero():
			if result.Included {
				if _, err := storageTrie.Delete(storageKey); err != nil {
					return fmt.Errorf("stateprovider: finalize: %s storage %s delete: %w", address, key, err)
				}
			}
		case result.Included:
			if _, err := storageTrie.Update(storageKey, trimBigEndian(value.Bytes())); err != nil {
				return fmt.Errorf("stateprovider: finalize: %s storage %s update: %w", address, key, err)
			}
		default:
			if _, err := storageTrie.Insert(storageKey, trimBigEndian(value.Bytes())); err != nil {
				return fmt.Errorf("stateprovider: finalize: %s storage %s insert: %w", address, key, err)
			}
		}
	}

	fields, err := p.GetAccount(address)
	if err != nil {
		return fmt.Errorf("stateprovider: finalize: %s: %w", address, err)
	}
	if override, ok := p.pendingAccounts[address]; ok {
		fields = override
	}
	body := types.Account{
		Nonce:       fields.Nonce,
		Balance:     fields.Balance,
		StorageRoot: storageTrie.Root(),
		CodeHash:    fields.CodeHash,
	}
	if body.Balance == nil {
		body.Balance = new(big.Int)
	}
	if body.CodeHash.IsZero() {
		body.CodeHash = types.EmptyCodeHash
	}

	accountKey := crypto.Keccak256Hash(address.Bytes())
	result, err := p.accounts.Get(accountKey)
	if err != nil {
		return fmt.Errorf("stateprovider: finalize: %s: %w", address, err)
	}
	encoded := body.Encode()
	if result.Included {
		if _, err := p.accounts.Update(accountKey, encoded); err != nil {
			return fmt.Errorf("stateprovider: finalize: %s account update: %w", address, err)
		}
	} else {
		if _, err := p.accounts.Insert(accountKey, encoded); err != nil {
			return fmt.Errorf("stateprovider: finalize: %s account insert: %w", address, err)
		}
	}
	return nil
}

func trimBigEndian(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}
