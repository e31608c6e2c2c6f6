package provider

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Local is a provider that holds a private key and signs transactions
// itself. Reads are forwarded to the RPC endpoint. The account is hidden
// from eth_accounts until eth_requestAccounts authorizes it.
type Local struct {
	client  *rpc.Client
	eth     *ethclient.Client
	key     *ecdsa.PrivateKey
	address common.Address

	mu         sync.Mutex
	authorized bool
}

// NewLocal constructs a provider signing with the specified key.
func NewLocal(client *rpc.Client, key *ecdsa.PrivateKey) *Local {
	return &Local{
		client:  client,
		eth:     ethclient.NewClient(client),
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the account of the private key.
func (l *Local) Address() common.Address {
	return l.address
}

// Request implements the Provider interface.
func (l *Local) Request(ctx context.Context, result any, method string, params ...any) error {
	switch method {
	case MethodAccounts:
		l.mu.Lock()
		authorized := l.authorized
		l.mu.Unlock()

		accounts := []common.Address{}
		if authorized {
			accounts = append(accounts, l.address)
		}
		return assign(result, accounts)

	case MethodRequestAccounts:
		l.mu.Lock()
		l.authorized = true
		l.mu.Unlock()

		return assign(result, []common.Address{l.address})

	case MethodSendTransaction:
		hash, err := l.sendTransaction(ctx, params)
		if err != nil {
			return err
		}
		return assign(result, hash)
	}

	return l.client.CallContext(ctx, result, method, params...)
}

// Close releases the connection to the endpoint.
func (l *Local) Close() {
	l.client.Close()
}

// sendTransaction fills in the missing transaction fields, signs the
// transaction with the private key and broadcasts it raw.
func (l *Local) sendTransaction(ctx context.Context, params []any) (common.Hash, error) {
	l.mu.Lock()
	authorized := l.authorized
	l.mu.Unlock()

	if !authorized {
		return common.Hash{}, &Error{Code: CodeUnauthorized, Message: "account not authorized"}
	}

	if len(params) == 0 {
		return common.Hash{}, errors.New("missing transaction arguments")
	}

	var args TxArgs
	if err := assign(&args, params[0]); err != nil {
		return common.Hash{}, fmt.Errorf("decoding transaction arguments: %w", err)
	}

	if args.From != (common.Address{}) && args.From != l.address {
		return common.Hash{}, &Error{Code: CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", args.From)}
	}

	nonce, err := l.eth.PendingNonceAt(ctx, l.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("retrieving nonce: %w", err)
	}

	gasPrice := args.GasPrice.ToInt()
	if args.GasPrice == nil {
		if gasPrice, err = l.eth.SuggestGasPrice(ctx); err != nil {
			return common.Hash{}, fmt.Errorf("retrieving gas price: %w", err)
		}
	}

	value := args.Value.ToInt()
	if args.Value == nil {
		value = new(big.Int)
	}

	var gas uint64
	switch {
	case args.Gas != nil:
		gas = uint64(*args.Gas)
	default:
		msg := ethereum.CallMsg{
			From:     l.address,
			To:       args.To,
			GasPrice: gasPrice,
			Value:    value,
			Data:     args.Data,
		}
		if gas, err = l.eth.EstimateGas(ctx, msg); err != nil {
			return common.Hash{}, fmt.Errorf("estimating gas: %w", err)
		}
	}

	chainID, err := l.eth.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("retrieving chain id: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       args.To,
		Value:    value,
		Data:     args.Data,
	})

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), l.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("signing transaction: %w", err)
	}

	if err := l.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, err
	}

	return signedTx.Hash(), nil
}
