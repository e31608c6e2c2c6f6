package session

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// State represents where the session is in connecting to the contract.
type State int

// Set of states a session moves through.
const (
	Uninitialized State = iota
	WalletDetected
	Authenticated
	ContractBound
	Ready
)

var stateNames = [...]string{
	Uninitialized:  "Uninitialized",
	WalletDetected: "WalletDetected",
	Authenticated:  "Authenticated",
	ContractBound:  "ContractBound",
	Ready:          "Ready",
}

// String implements the fmt.Stringer interface.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements the encoding.TextMarshaler interface.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// =============================================================================

// Kind identifies the operation a record was produced by.
type Kind string

// Set of record kinds.
const (
	KindDeposit  Kind = "Deposit"
	KindWithdraw Kind = "Withdraw"
)

// TimeFormat is the layout of record timestamps.
const TimeFormat = time.DateTime

// Record represents a confirmed deposit or withdrawal.
type Record struct {
	Kind      Kind        `json:"kind"`
	Amount    *big.Int    `json:"amount"`
	Timestamp string      `json:"timestamp"`
	TxHash    common.Hash `json:"tx_hash"`
}

func (r Record) copy() Record {
	r.Amount = new(big.Int).Set(r.Amount)
	return r
}

// String renders the record the way the transaction log displays it.
func (r Record) String() string {
	return fmt.Sprintf("%s - %s ETH - %s", r.Kind, r.Amount, r.Timestamp)
}

// View is a point in time copy of the session.
type View struct {
	State        State    `json:"state"`
	Account      string   `json:"account,omitempty"`
	Contract     string   `json:"contract,omitempty"`
	Balance      *big.Int `json:"balance,omitempty"`
	GasPriceGwei string   `json:"gas_price_gwei,omitempty"`
	Records      []Record `json:"records"`
}
