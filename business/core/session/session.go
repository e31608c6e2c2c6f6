// Package session implements the wallet session for the ATM contract. A
// session detects a wallet provider, obtains account access, binds the
// contract with the provider as signer and performs balance reads,
// deposits and withdrawals while keeping an append-only transaction log.
package session

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/metacrafters/atm/business/core/atm"
	"github.com/metacrafters/atm/foundation/provider"
	"github.com/metacrafters/atm/foundation/units"
	"go.uber.org/zap"
)

// EventHandler defines a function that is called for every record
// appended to the transaction log.
type EventHandler func(rec Record)

// Config represents the configuration required to start a session.
type Config struct {
	Log             *zap.SugaredLogger
	ContractAddress common.Address
	ContractABI     abi.ABI
	PollInterval    time.Duration
	EvHandler       EventHandler
	Now             func() time.Time
}

// Session manages the connection between a wallet and the ATM contract.
// No lock is held while waiting on the provider.
type Session struct {
	log          *zap.SugaredLogger
	address      common.Address
	abi          abi.ABI
	pollInterval time.Duration
	evHandler    EventHandler
	now          func() time.Time

	mu       sync.Mutex
	state    State
	provider provider.Provider
	account  common.Address
	contract *atm.Contract
	balance  *big.Int
	gasPrice *big.Int
	records  []Record
	writing  bool
}

// New constructs an empty session.
func New(cfg Config) *Session {

	// Build a safe event handler function for use.
	ev := func(rec Record) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(rec)
		}
	}

	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		log:          log,
		address:      cfg.ContractAddress,
		abi:          cfg.ContractABI,
		pollInterval: cfg.PollInterval,
		evHandler:    ev,
		now:          now,
	}
}

// =============================================================================

// Detect takes the provider found in the host environment. A nil provider
// leaves the session uninitialized and returns ErrNoProvider. Accounts the
// provider already authorized are picked up; the contract is then bound and
// the balance read.
func (s *Session) Detect(ctx context.Context, p provider.Provider) error {
	const op = "detect"

	if p == nil {
		s.log.Infow(op, "status", "no wallet provider found, install one to use the ATM")
		return newError(op, ErrNoProvider, nil)
	}

	s.mu.Lock()
	{
		s.provider = p
		s.account = common.Address{}
		s.contract = nil
		s.state = WalletDetected
	}
	s.mu.Unlock()

	s.log.Infow(op, "status", "wallet provider detected")

	accounts, err := provider.Accounts(ctx, p)
	if err != nil {
		s.log.Errorw(op, "status", "listing accounts", "ERROR", err)
		return newError(op, ErrCall, err)
	}

	if !s.setAccount(op, accounts) {
		return nil
	}

	return s.bindAndRead(ctx)
}

// RequestAccounts asks the provider for account access. The first account
// granted becomes the session account.
func (s *Session) RequestAccounts(ctx context.Context) error {
	const op = "request accounts"

	s.mu.Lock()
	p := s.provider
	s.mu.Unlock()

	if p == nil {
		s.log.Infow(op, "status", "no wallet provider found, install one to use the ATM")
		return newError(op, ErrNoProvider, nil)
	}

	accounts, err := provider.RequestAccounts(ctx, p)
	if err != nil {
		s.log.Errorw(op, "status", "connecting account", "ERROR", err)

		if code, ok := provider.ErrorCode(err); ok && (code == provider.CodeUserRejected || code == provider.CodeUnauthorized) {
			return newError(op, ErrUnauthorized, err)
		}
		return newError(op, ErrCall, err)
	}

	if !s.setAccount(op, accounts) {
		return newError(op, ErrUnauthorized, nil)
	}

	return nil
}

// Bind constructs the contract handle. It requires both a provider and an
// authorized account.
func (s *Session) Bind() error {
	const op = "bind"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider == nil || s.account == (common.Address{}) {
		s.log.Errorw(op, "status", "wallet is not connected")
		return newError(op, ErrNotConnected, nil)
	}

	contract, err := atm.New(atm.Config{
		Provider:     s.provider,
		From:         s.account,
		Address:      s.address,
		ABI:          s.abi,
		PollInterval: s.pollInterval,
	})
	if err != nil {
		s.log.Errorw(op, "status", "getting ATM contract", "ERROR", err)
		return newError(op, ErrBind, err)
	}

	s.contract = contract
	s.state = ContractBound

	s.log.Infow(op, "status", "contract bound", "contract", s.address, "account", s.account)

	return nil
}

// Connect requests account access, binds the contract and reads the
// starting balance.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.RequestAccounts(ctx); err != nil {
		return err
	}

	return s.bindAndRead(ctx)
}

// Balance reads the contract balance. On failure the previous balance is
// kept and returned along with the error.
func (s *Session) Balance(ctx context.Context) (*big.Int, error) {
	const op = "balance"

	s.mu.Lock()
	contract := s.contract
	s.mu.Unlock()

	if contract == nil {
		return nil, newError(op, ErrNotConnected, nil)
	}

	balance, err := contract.Balance(ctx)
	if err != nil {
		s.log.Errorw(op, "status", "getting balance", "ERROR", err)

		s.mu.Lock()
		defer s.mu.Unlock()

		return copyInt(s.balance), newError(op, ErrCall, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The contract may have been rebound while the call was in flight.
	if s.contract == contract {
		s.balance = balance
		s.state = Ready
	}

	return copyInt(balance), nil
}

// Deposit adds the amount to the contract balance.
func (s *Session) Deposit(ctx context.Context, amount *big.Int) (Record, error) {
	return s.transact(ctx, KindDeposit, amount)
}

// Withdraw removes the amount from the contract balance.
func (s *Session) Withdraw(ctx context.Context, amount *big.Int) (Record, error) {
	return s.transact(ctx, KindWithdraw, amount)
}

// Records returns a copy of the transaction log in call order.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.copyRecords()
}

// Snapshot returns a copy of the current session values.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		State:   s.state,
		Balance: copyInt(s.balance),
		Records: s.copyRecords(),
	}

	if s.account != (common.Address{}) {
		v.Account = s.account.Hex()
	}

	if s.contract != nil {
		v.Contract = s.contract.Address().Hex()
	}

	if s.gasPrice != nil {
		v.GasPriceGwei = units.Format(s.gasPrice, units.Gwei)
	}

	return v
}

// State returns the current state of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// =============================================================================

// transact performs a write and appends the record once it is confirmed.
// Writes are serialized; a write while another is in flight fails with
// ErrBusy.
func (s *Session) transact(ctx context.Context, kind Kind, amount *big.Int) (Record, error) {
	op := strings.ToLower(string(kind))

	if amount == nil || amount.Sign() <= 0 {
		s.log.Errorw(op, "status", fmt.Sprintf("invalid %s amount", op), "amount", amount)
		return Record{}, newError(op, ErrInvalidAmount, nil)
	}
	amount = copyInt(amount)

	s.mu.Lock()
	contract := s.contract
	p := s.provider
	switch {
	case contract == nil:
		s.mu.Unlock()
		s.log.Errorw(op, "status", "contract is not bound")
		return Record{}, newError(op, ErrNotConnected, nil)

	case s.writing:
		s.mu.Unlock()
		s.log.Errorw(op, "status", "a transaction is already in flight", "amount", amount)
		return Record{}, newError(op, ErrBusy, nil)
	}
	s.writing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.writing = false
		s.mu.Unlock()
	}()

	gasPrice, err := provider.GasPrice(ctx, p)
	if err != nil {
		s.log.Errorw(op, "status", "getting gas price", "ERROR", err)
		return Record{}, newError(op, ErrCall, err)
	}

	s.mu.Lock()
	s.gasPrice = gasPrice
	s.mu.Unlock()

	var hash common.Hash
	switch kind {
	case KindDeposit:
		hash, err = contract.Deposit(ctx, amount, gasPrice)
	default:
		hash, err = contract.Withdraw(ctx, amount, gasPrice)
	}
	if err != nil {
		s.log.Errorw(op, "status", "submitting transaction", "amount", amount, "ERROR", err)
		return Record{}, newError(op, ErrCall, err)
	}

	s.log.Infow(op, "status", "transaction submitted", "tx", hash, "gas_price_gwei", units.Format(gasPrice, units.Gwei))

	if _, err := contract.Wait(ctx, hash); err != nil {
		s.log.Errorw(op, "status", "waiting for confirmation", "tx", hash, "ERROR", err)
		return Record{}, newError(op, ErrCall, err)
	}

	// The write is confirmed, a failed refresh only leaves the balance stale.
	s.Balance(ctx)

	rec := Record{
		Kind:      kind,
		Amount:    amount,
		Timestamp: s.now().Format(TimeFormat),
		TxHash:    hash,
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	s.log.Infow(op, "status", "transaction confirmed", "tx", hash, "amount", amount)
	s.evHandler(rec.copy())

	return rec.copy(), nil
}

// setAccount takes the first account from the list. It reports false when
// the list is empty.
func (s *Session) setAccount(op string, accounts []common.Address) bool {
	if len(accounts) == 0 {
		s.log.Infow(op, "status", "no account found")
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = accounts[0]
	if s.state < Authenticated {
		s.state = Authenticated
	}

	s.log.Infow(op, "status", "account connected", "account", s.account)

	return true
}

// bindAndRead binds the contract and performs the first balance read.
func (s *Session) bindAndRead(ctx context.Context) error {
	if err := s.Bind(); err != nil {
		return err
	}

	if _, err := s.Balance(ctx); err != nil {
		return err
	}

	return nil
}

// copyRecords returns a deep copy of the log. The caller must hold the lock.
func (s *Session) copyRecords() []Record {
	records := make([]Record, len(s.records))
	for i, rec := range s.records {
		records[i] = rec.copy()
	}
	return records
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
