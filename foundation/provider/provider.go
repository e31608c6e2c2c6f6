// Package provider implements the wallet provider surface used to reach an
// Ethereum network: account access, gas pricing, contract calls and
// transaction submission, all expressed as JSON-RPC requests.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Set of RPC methods a wallet provider responds to.
const (
	MethodAccounts           = "eth_accounts"
	MethodRequestAccounts    = "eth_requestAccounts"
	MethodGasPrice           = "eth_gasPrice"
	MethodCall               = "eth_call"
	MethodSendTransaction    = "eth_sendTransaction"
	MethodTransactionReceipt = "eth_getTransactionReceipt"
)

// Provider represents the behavior of a wallet provider. Request performs
// the RPC method with the specified params and stores the JSON result in
// the value pointed to by result. A nil result discards the response.
type Provider interface {
	Request(ctx context.Context, result any, method string, params ...any) error
	Close()
}

// =============================================================================

// Error codes defined by EIP-1193 and JSON-RPC.
const (
	CodeUserRejected   = 4001
	CodeUnauthorized   = 4100
	CodeMethodNotFound = -32601
)

// Error is a provider error carrying a RPC error code.
type Error struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// ErrorCode implements the go-ethereum rpc.Error interface.
func (e *Error) ErrorCode() int {
	return e.Code
}

// codedError matches any error exposing a RPC error code.
type codedError interface {
	error
	ErrorCode() int
}

// ErrorCode returns the RPC error code carried by err, if any.
func ErrorCode(err error) (int, bool) {
	var ce codedError
	if !errors.As(err, &ce) {
		return 0, false
	}
	return ce.ErrorCode(), true
}

// =============================================================================

// TxArgs represents the arguments of an eth_call or eth_sendTransaction.
type TxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

// Receipt is the subset of a transaction receipt the wallet relies on.
type Receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	BlockNumber *hexutil.Big   `json:"blockNumber"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	Status      hexutil.Uint64 `json:"status"`
}

// Successful reports whether the transaction executed without reverting.
func (r Receipt) Successful() bool {
	return r.Status == 1
}

// =============================================================================

// Accounts returns the accounts the provider has already authorized.
func Accounts(ctx context.Context, p Provider) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.Request(ctx, &accounts, MethodAccounts); err != nil {
		return nil, fmt.Errorf("%s: %w", MethodAccounts, err)
	}
	return accounts, nil
}

// RequestAccounts asks the provider to authorize access to its accounts.
func RequestAccounts(ctx context.Context, p Provider) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.Request(ctx, &accounts, MethodRequestAccounts); err != nil {
		return nil, fmt.Errorf("%s: %w", MethodRequestAccounts, err)
	}
	return accounts, nil
}

// GasPrice returns the current network gas price in wei.
func GasPrice(ctx context.Context, p Provider) (*big.Int, error) {
	var price hexutil.Big
	if err := p.Request(ctx, &price, MethodGasPrice); err != nil {
		return nil, fmt.Errorf("%s: %w", MethodGasPrice, err)
	}
	return price.ToInt(), nil
}

// Call executes a read-only message call against the latest block.
func Call(ctx context.Context, p Provider, args TxArgs) ([]byte, error) {
	var data hexutil.Bytes
	if err := p.Request(ctx, &data, MethodCall, args, "latest"); err != nil {
		return nil, fmt.Errorf("%s: %w", MethodCall, err)
	}
	return data, nil
}

// SendTransaction submits a transaction for the provider to sign and
// broadcast, returning the transaction hash.
func SendTransaction(ctx context.Context, p Provider, args TxArgs) (common.Hash, error) {
	var hash common.Hash
	if err := p.Request(ctx, &hash, MethodSendTransaction, args); err != nil {
		return common.Hash{}, fmt.Errorf("%s: %w", MethodSendTransaction, err)
	}
	return hash, nil
}

// TransactionReceipt returns the receipt for the transaction or nil when
// the transaction has not been mined yet.
func TransactionReceipt(ctx context.Context, p Provider, hash common.Hash) (*Receipt, error) {
	var receipt *Receipt
	if err := p.Request(ctx, &receipt, MethodTransactionReceipt, hash); err != nil {
		return nil, fmt.Errorf("%s: %w", MethodTransactionReceipt, err)
	}
	return receipt, nil
}

// =============================================================================

// assign stores v into result the way a RPC response would be decoded.
func assign(result any, v any) error {
	if result == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, result)
}
