package rpcsource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/eth2030/blockproof/access"
	"github.com/eth2030/blockproof/rlp"
	"github.com/eth2030/blockproof/types"
)

// Client is a minimal JSON-RPC 2.0 Source over HTTP. It issues one
// request per call; batching and connection pooling are left to the
// *http.Client the caller supplies.
type Client struct {
	endpoint   string
	httpClient *http.Client
	nextID     int
}

// NewClient returns a Client that speaks JSON-RPC 2.0 to endpoint using
// httpClient. A nil httpClient uses http.DefaultClient.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	c.nextID++
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID})
	if err != nil {
		return fmt.Errorf("rpcsource: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rpcsource: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rpcsource: %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("rpcsource: %s: read response: %w", method, err)
	}

	var envelope rpcResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("rpcsource: %s: decode envelope: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpcsource: %s: rpc error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("rpcsource: %s: decode result: %w", method, err)
	}
	return nil
}

func blockTag(number uint64) string {
	return "0x" + strconv.FormatUint(number, 16)
}

type rpcBlock struct {
	Number       string   `json:"number"`
	Hash         string   `json:"hash"`
	ParentHash   string   `json:"parentHash"`
	StateRoot    string   `json:"stateRoot"`
	Transactions []string `json:"transactions"`
}

// BlockByNumber implements Source.
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*BlockInfo, error) {
	var raw rpcBlock
	if err := c.call(ctx, "eth_getBlockByNumber", []interface{}{blockTag(number), false}, &raw); err != nil {
		return nil, err
	}
	txHashes := make([]types.Hash, len(raw.Transactions))
	for i, h := range raw.Transactions {
		hash, err := hexToHash(h)
		if err != nil {
			return nil, fmt.Errorf("rpcsource: transaction %d: %w", i, err)
		}
		txHashes[i] = hash
	}
	stateRoot, err := hexToHash(raw.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: stateRoot: %w", err)
	}
	blockHash, err := hexToHash(raw.Hash)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: hash: %w", err)
	}
	parentHash, err := hexToHash(raw.ParentHash)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: parentHash: %w", err)
	}
	return &BlockInfo{
		Number:       number,
		Hash:         blockHash,
		ParentHash:   parentHash,
		StateRoot:    stateRoot,
		Transactions: txHashes,
	}, nil
}

type rpcStorageProof struct {
	Key   string   `json:"key"`
	Value string   `json:"value"`
	Proof []string `json:"proof"`
}

type rpcAccountProof struct {
	Address      string            `json:"address"`
	AccountProof []string          `json:"accountProof"`
	Balance      string            `json:"balance"`
	CodeHash     string            `json:"codeHash"`
	Nonce        string            `json:"nonce"`
	StorageHash  string            `json:"storageHash"`
	StorageProof []rpcStorageProof `json:"storageProof"`
}

// Proof implements Source.
func (c *Client) Proof(ctx context.Context, address types.Address, storageKeys []types.Hash, blockNumber uint64) (*AccountProof, error) {
	keyHexes := make([]interface{}, len(storageKeys))
	for i, k := range storageKeys {
		keyHexes[i] = "0x" + hexEncode(k.Bytes())
	}
	var raw rpcAccountProof
	params := []interface{}{"0x" + hexEncode(address.Bytes()), keyHexes, blockTag(blockNumber)}
	if err := c.call(ctx, "eth_getProof", params, &raw); err != nil {
		return nil, err
	}

	codeHash, err := hexToHash(raw.CodeHash)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: codeHash: %w", err)
	}
	storageHash, err := hexToHash(raw.StorageHash)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: storageHash: %w", err)
	}
	nonce, err := hexToUint64(raw.Nonce)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: nonce: %w", err)
	}
	balanceInt, err := hexToBigInt(raw.Balance)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: balance: %w", err)
	}
	balance := balanceInt.Bytes()
	accountNodes, err := hexStringsToBytes(raw.AccountProof)
	if err != nil {
		return nil, fmt.Errorf("rpcsource: accountProof: %w", err)
	}

	storageProof := make([]StorageProofEntry, len(raw.StorageProof))
	for i, sp := range raw.StorageProof {
		key, err := hexToHash(sp.Key)
		if err != nil {
			return nil, fmt.Errorf("rpcsource: storageProof[%d].key: %w", i, err)
		}
		value, err := hexToHash(sp.Value)
		if err != nil {
			return nil, fmt.Errorf("rpcsource: storageProof[%d].value: %w", i, err)
		}
		nodes, err := hexStringsToBytes(sp.Proof)
		if err != nil {
			return nil, fmt.Errorf("rpcsource: storageProof[%d].proof: %w", i, err)
		}
		storageProof[i] = StorageProofEntry{Key: key, Value: value, Proof: nodes}
	}

	return &AccountProof{
		Address:      address,
		Balance:      balance,
		Nonce:        nonce,
		CodeHash:     codeHash,
		StorageHash:  storageHash,
		AccountProof: accountNodes,
		StorageProof: storageProof,
	}, nil
}

type rpcPrestateAccount struct {
	Balance string            `json:"balance"`
	Nonce   uint64            `json:"nonce"`
	Code    string            `json:"code"`
	Storage map[string]string `json:"storage"`
}

type rpcPrestateResult struct {
	Result map[string]rpcPrestateAccount `json:"result"`
}

// PrestateTrace implements Source.
func (c *Client) PrestateTrace(ctx context.Context, blockNumber uint64) ([]access.TransactionPrestate, error) {
	var raw []rpcPrestateResult
	tracerConfig := map[string]interface{}{"tracer": "prestateTracer"}
	if err := c.call(ctx, "debug_traceBlockByNumber", []interface{}{blockTag(blockNumber), tracerConfig}, &raw); err != nil {
		return nil, err
	}

	txs := make([]access.TransactionPrestate, len(raw))
	for i, tx := range raw {
		pre := make(access.TransactionPrestate, len(tx.Result))
		for addrHex, acct := range tx.Result {
			addr, err := hexToAddress(addrHex)
			if err != nil {
				return nil, fmt.Errorf("rpcsource: tx %d address: %w", i, err)
			}
			entry := access.AccountPrestate{Exists: true}
			if acct.Balance != "" {
				balance, err := hexToBigInt(acct.Balance)
				if err != nil {
					return nil, fmt.Errorf("rpcsource: tx %d balance: %w", i, err)
				}
				entry.Balance = balance
			}
			entry.Nonce = acct.Nonce
			if acct.Code != "" && acct.Code != "0x" {
				code, err := hexToBytes(acct.Code)
				if err != nil {
					return nil, fmt.Errorf("rpcsource: tx %d code: %w", i, err)
				}
				entry.Code = code
			}
			if len(acct.Storage) > 0 {
				entry.Storage = make(map[types.Hash]types.Hash, len(acct.Storage))
				for keyHex, valHex := range acct.Storage {
					key, err := hexToHash(keyHex)
					if err != nil {
						return nil, fmt.Errorf("rpcsource: tx %d storage key: %w", i, err)
					}
					val, err := hexToHash(valHex)
					if err != nil {
						return nil, fmt.Errorf("rpcsource: tx %d storage value: %w", i, err)
					}
					entry.Storage[key] = val
				}
			}
			pre[addr] = entry
		}
		txs[i] = pre
	}
	return txs, nil
}

type rpcStructLog struct {
	Op    string   `json:"op"`
	Stack []string `json:"stack"`
}

type rpcStructLogResult struct {
	Result struct {
		StructLogs []rpcStructLog `json:"structLogs"`
	} `json:"result"`
}

// BlockHashObservations implements Source. It runs the default struct-log
// tracer with memory disabled and scans for BLOCKHASH: the opcode's
// operand is the top of the pre-execution stack, and its result is the
// top of the following step's stack.
func (c *Client) BlockHashObservations(ctx context.Context, blockNumber uint64) ([]access.BlockHashObservation, error) {
	var raw []rpcStructLogResult
	tracerConfig := map[string]interface{}{"disableMemory": true, "disableStorage": true}
	if err := c.call(ctx, "debug_traceBlockByNumber", []interface{}{blockTag(blockNumber), tracerConfig}, &raw); err != nil {
		return nil, err
	}

	var out []access.BlockHashObservation
	for _, tx := range raw {
		logs := tx.Result.StructLogs
		for i, l := range logs {
			if !strings.EqualFold(l.Op, "BLOCKHASH") {
				continue
			}
			if len(l.Stack) == 0 || i+1 >= len(logs) || len(logs[i+1].Stack) == 0 {
				continue
			}
			numberHex := l.Stack[len(l.Stack)-1]
			hashHex := logs[i+1].Stack[len(logs[i+1].Stack)-1]
			number, err := hexToUint64(numberHex)
			if err != nil {
				return nil, fmt.Errorf("rpcsource: blockhash operand: %w", err)
			}
			hash, err := hexToHash(hashHex)
			if err != nil {
				return nil, fmt.Errorf("rpcsource: blockhash result: %w", err)
			}
			out = append(out, access.BlockHashObservation{Number: number, Hash: hash})
		}
	}
	return out, nil
}

type rpcDiffAccount struct {
	Balance string            `json:"balance"`
	Nonce   *uint64           `json:"nonce"`
	Code    string            `json:"code"`
	Storage map[string]string `json:"storage"`
}

type rpcDiffResult struct {
	Result struct {
		Pre  map[string]rpcDiffAccount `json:"pre"`
		Post map[string]rpcDiffAccount `json:"post"`
	} `json:"result"`
}

// DeletedKeys implements Source using the prestate tracer's diff mode: an
// address present in pre but absent from post was destroyed; a storage
// key present in pre but reported zero (or absent) in post was zeroed.
func (c *Client) DeletedKeys(ctx context.Context, blockNumber uint64) (*DeletedKeys, error) {
	var raw []rpcDiffResult
	tracerConfig := map[string]interface{}{
		"tracer":       "prestateTracer",
		"tracerConfig": map[string]interface{}{"diffMode": true},
	}
	if err := c.call(ctx, "debug_traceBlockByNumber", []interface{}{blockTag(blockNumber), tracerConfig}, &raw); err != nil {
		return nil, err
	}

	out := &DeletedKeys{Storage: make(map[types.Address][]types.Hash)}
	for _, tx := range raw {
		for addrHex, preAcct := range tx.Result.Pre {
			addr, err := hexToAddress(addrHex)
			if err != nil {
				return nil, fmt.Errorf("rpcsource: deleted-key address: %w", err)
			}
			postAcct, stillExists := tx.Result.Post[addrHex]
			if !stillExists {
				out.Accounts = append(out.Accounts, addr)
			}
			for keyHex := range preAcct.Storage {
				key, err := hexToHash(keyHex)
				if err != nil {
					return nil, fmt.Errorf("rpcsource: deleted-key storage key: %w", err)
				}
				postVal, ok := postAcct.Storage[keyHex]
				if stillExists && ok && !isZeroHex(postVal) {
					continue
				}
				out.Storage[addr] = append(out.Storage[addr], key)
			}
		}
	}
	return out, nil
}

func isZeroHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	for i := 0; i < len(s); i++ {
		if s[i] != '0' {
			return false
		}
	}
	return true
}

// hexStringsToBytes decodes a list of 0x-prefixed RLP node hex strings,
// validating each is well-formed RLP before it ever reaches the trie
// package.
func hexStringsToBytes(nodes []string) ([][]byte, error) {
	out := make([][]byte, len(nodes))
	for i, n := range nodes {
		raw, err := hexToBytes(n)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		if _, err := rlp.Decode(raw); err != nil {
			return nil, fmt.Errorf("node %d: not valid RLP: %w", i, err)
		}
		out[i] = raw
	}
	return out, nil
}

func hexEncode(b []byte) string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hextable[v>>4]
		out[i*2+1] = hextable[v&0x0f]
	}
	return string(out)
}

func hexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return decodeHexManual(s)
}

func decodeHexManual(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length hex string")
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexDigit(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

func hexToHash(s string) (types.Hash, error) {
	b, err := hexToBytes(s)
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(b), nil
}

func hexToAddress(s string) (types.Address, error) {
	b, err := hexToBytes(s)
	if err != nil {
		return types.Address{}, err
	}
	return types.BytesToAddress(b), nil
}

func hexToUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

func hexToBigInt(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex integer %q", s)
	}
	return n, nil
}
