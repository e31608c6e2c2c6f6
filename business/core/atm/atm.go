// Package atm binds the Assessment ATM contract, packing and unpacking the
// balance, deposit and withdraw calls sent through a wallet provider.
package atm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/metacrafters/atm/foundation/provider"
)

// Set of contract methods the ATM requires.
const (
	MethodGetBalance = "getBalance"
	MethodDeposit    = "deposit"
	MethodWithdraw   = "withdraw"
)

// DefaultPollInterval is the receipt polling interval used when none is
// configured.
const DefaultPollInterval = time.Second

// Contract is a handle on a deployed Assessment contract. Writes are
// signed by the provider on behalf of the from account.
type Contract struct {
	provider     provider.Provider
	from         common.Address
	address      common.Address
	abi          abi.ABI
	pollInterval time.Duration
}

// Config represents the values needed to bind the contract.
type Config struct {
	Provider     provider.Provider
	From         common.Address
	Address      common.Address
	ABI          abi.ABI
	PollInterval time.Duration
}

// New constructs a contract handle. It fails when the provider or account
// is missing, the address is zero, or the ABI lacks a required method.
func New(cfg Config) (*Contract, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}

	if cfg.From == (common.Address{}) {
		return nil, errors.New("signing account is required")
	}

	if cfg.Address == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}

	for _, name := range []string{MethodGetBalance, MethodDeposit, MethodWithdraw} {
		if _, exists := cfg.ABI.Methods[name]; !exists {
			return nil, fmt.Errorf("abi is missing method %q", name)
		}
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	c := Contract{
		provider:     cfg.Provider,
		from:         cfg.From,
		address:      cfg.Address,
		abi:          cfg.ABI,
		pollInterval: cfg.PollInterval,
	}

	return &c, nil
}

// Address returns the address of the contract.
func (c *Contract) Address() common.Address {
	return c.address
}

// From returns the account signing writes.
func (c *Contract) From() common.Address {
	return c.from
}

// Balance calls getBalance against the latest block.
func (c *Contract) Balance(ctx context.Context) (*big.Int, error) {
	data, err := c.abi.Pack(MethodGetBalance)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", MethodGetBalance, err)
	}

	args := provider.TxArgs{
		From: c.from,
		To:   &c.address,
		Data: data,
	}

	out, err := provider.Call(ctx, c.provider, args)
	if err != nil {
		return nil, err
	}

	values, err := c.abi.Unpack(MethodGetBalance, out)
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", MethodGetBalance, err)
	}

	if len(values) != 1 {
		return nil, fmt.Errorf("unpacking %s: got %d values", MethodGetBalance, len(values))
	}

	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpacking %s: unexpected type %T", MethodGetBalance, values[0])
	}

	return balance, nil
}

// Deposit submits a deposit of the amount at the specified gas price.
func (c *Contract) Deposit(ctx context.Context, amount *big.Int, gasPrice *big.Int) (common.Hash, error) {
	return c.transact(ctx, MethodDeposit, amount, gasPrice)
}

// Withdraw submits a withdrawal of the amount at the specified gas price.
func (c *Contract) Withdraw(ctx context.Context, amount *big.Int, gasPrice *big.Int) (common.Hash, error) {
	return c.transact(ctx, MethodWithdraw, amount, gasPrice)
}

// Wait blocks until the transaction is mined and returns its receipt.
func (c *Contract) Wait(ctx context.Context, hash common.Hash) (provider.Receipt, error) {
	return provider.WaitMined(ctx, c.provider, hash, c.pollInterval)
}

// transact packs the method call and hands it to the provider for signing.
func (c *Contract) transact(ctx context.Context, method string, amount *big.Int, gasPrice *big.Int) (common.Hash, error) {
	data, err := c.abi.Pack(method, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("packing %s: %w", method, err)
	}

	args := provider.TxArgs{
		From: c.from,
		To:   &c.address,
		Data: data,
	}

	if gasPrice != nil {
		args.GasPrice = (*hexutil.Big)(gasPrice)
	}

	return provider.SendTransaction(ctx, c.provider, args)
}
