// Package atmtest provides an in-process node hosting a simulated Assessment
// contract for testing wallet sessions without a chain.
package atmtest

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/metacrafters/atm/business/core/atm"
	"github.com/metacrafters/atm/foundation/provider"
)

// OwnerKeyHex is the private key of the first account of a development
// node. It owns the simulated contract by default.
const OwnerKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// codeReverted is the RPC error code nodes use for reverted executions.
const codeReverted = 3

// OwnerKey returns the private key for OwnerKeyHex.
func OwnerKey() *ecdsa.PrivateKey {
	key, err := crypto.HexToECDSA(OwnerKeyHex)
	if err != nil {
		panic(err)
	}
	return key
}

// Config represents the behavior of the simulated node.
type Config struct {
	Owner             common.Address // Defaults to the address of OwnerKeyHex.
	Address           common.Address // Defaults to atm.DefaultAddress.
	Balance           int64          // Starting contract balance.
	GasPrice          *big.Int       // Defaults to 1.5 gwei.
	ChainID           int64          // Defaults to 31337.
	EmptyAccounts     bool           // eth_accounts and eth_requestAccounts return nothing.
	NoRequestAccounts bool           // eth_requestAccounts is not implemented.
	MineReverts       bool           // Reverted writes are mined with status 0 instead of failing.
	PendingPolls      int            // Receipt queries answered with null before the receipt.
}

type pendingReceipt struct {
	receipt provider.Receipt
	polls   int
}

// Node simulates the JSON-RPC surface of a development node with the
// Assessment contract deployed.
type Node struct {
	cfg    Config
	abi    abi.ABI
	server *rpc.Server

	mu       sync.Mutex
	balance  *big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*pendingReceipt
	counts   map[string]int
	block    int64
	callErr  error
	seq      uint64
}

// New constructs and starts a simulated node.
func New(cfg Config) (*Node, error) {
	if cfg.Owner == (common.Address{}) {
		cfg.Owner = crypto.PubkeyToAddress(OwnerKey().PublicKey)
	}
	if cfg.Address == (common.Address{}) {
		cfg.Address = common.HexToAddress(atm.DefaultAddress)
	}
	if cfg.GasPrice == nil {
		cfg.GasPrice = big.NewInt(1_500_000_000)
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = 31337
	}

	n := Node{
		cfg:      cfg,
		abi:      atm.AssessmentABI(),
		server:   rpc.NewServer(),
		balance:  big.NewInt(cfg.Balance),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*pendingReceipt),
		counts:   make(map[string]int),
	}

	if err := n.server.RegisterName("eth", &ethAPI{node: &n}); err != nil {
		return nil, fmt.Errorf("registering eth api: %w", err)
	}

	return &n, nil
}

// Client returns a new in-process RPC client connected to the node.
func (n *Node) Client() *rpc.Client {
	return rpc.DialInProc(n.server)
}

// Provider returns a node managed provider connected to the node.
func (n *Node) Provider() *provider.Node {
	return provider.NewNode(n.Client())
}

// Handler returns the node as an HTTP JSON-RPC handler for clients that
// dial a url.
func (n *Node) Handler() http.Handler {
	return n.server
}

// Close stops the node.
func (n *Node) Close() {
	n.server.Stop()
}

// Owner returns the account owning the contract.
func (n *Node) Owner() common.Address {
	return n.cfg.Owner
}

// Balance returns the current contract balance.
func (n *Node) Balance() *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return new(big.Int).Set(n.balance)
}

// Count returns the number of times the RPC or contract method was invoked.
// Contract methods are counted by their ABI name.
func (n *Node) Count(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.counts[method]
}

// FailCalls makes every eth_call fail with the error until cleared with nil.
func (n *Node) FailCalls(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.callErr = err
}

// =============================================================================

func (n *Node) count(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.counts[method]++
}

// execute applies the calldata to the contract state. The caller must
// hold the lock.
func (n *Node) execute(from common.Address, data []byte, write bool) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("missing method selector")
	}

	method, err := n.abi.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("unknown method: %w", err)
	}

	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("unpacking %s: %w", method.Name, err)
	}

	n.counts[method.Name]++

	switch method.Name {
	case atm.MethodGetBalance:
		return method.Outputs.Pack(n.balance)

	case "owner":
		return method.Outputs.Pack(n.cfg.Owner)

	case atm.MethodDeposit, atm.MethodWithdraw:
		if !write {
			return nil, nil
		}

		if from != n.cfg.Owner {
			return nil, &provider.Error{Code: codeReverted, Message: "execution reverted: You are not the owner of this account"}
		}

		amount := args[0].(*big.Int)

		if method.Name == atm.MethodDeposit {
			n.balance = new(big.Int).Add(n.balance, amount)
			return nil, nil
		}

		if n.balance.Cmp(amount) < 0 {
			return nil, &provider.Error{Code: codeReverted, Message: fmt.Sprintf("execution reverted: InsufficientBalance(%s, %s)", n.balance, amount)}
		}
		n.balance = new(big.Int).Sub(n.balance, amount)
		return nil, nil
	}

	return nil, fmt.Errorf("method %s not supported", method.Name)
}

// submit executes a write and records its receipt. A zero hash is replaced
// by one derived from the write.
func (n *Node) submit(from common.Address, data []byte, hash common.Hash) (common.Hash, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	status := uint64(1)
	if _, err := n.execute(from, data, true); err != nil {
		if !n.cfg.MineReverts {
			return common.Hash{}, err
		}
		status = 0
	}

	n.seq++
	n.block++
	if hash == (common.Hash{}) {
		hash = crypto.Keccak256Hash(from.Bytes(), data, new(big.Int).SetUint64(n.seq).Bytes())
	}

	n.receipts[hash] = &pendingReceipt{
		receipt: provider.Receipt{
			TxHash:      hash,
			BlockNumber: (*hexutil.Big)(big.NewInt(n.block)),
			GasUsed:     hexutil.Uint64(30_000),
			Status:      hexutil.Uint64(status),
		},
		polls: n.cfg.PendingPolls,
	}

	return hash, nil
}

// =============================================================================

// ethAPI is the receiver registered for the eth namespace.
type ethAPI struct {
	node *Node
}

func (api *ethAPI) Accounts() []common.Address {
	api.node.count(provider.MethodAccounts)

	if api.node.cfg.EmptyAccounts {
		return []common.Address{}
	}
	return []common.Address{api.node.cfg.Owner}
}

func (api *ethAPI) RequestAccounts() ([]common.Address, error) {
	api.node.count(provider.MethodRequestAccounts)

	if api.node.cfg.NoRequestAccounts {
		return nil, &provider.Error{Code: provider.CodeMethodNotFound, Message: "the method eth_requestAccounts does not exist/is not available"}
	}

	if api.node.cfg.EmptyAccounts {
		return []common.Address{}, nil
	}
	return []common.Address{api.node.cfg.Owner}, nil
}

func (api *ethAPI) GasPrice() *hexutil.Big {
	api.node.count(provider.MethodGasPrice)

	return (*hexutil.Big)(api.node.cfg.GasPrice)
}

func (api *ethAPI) ChainId() *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(api.node.cfg.ChainID))
}

func (api *ethAPI) Call(args provider.TxArgs, _ *rpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	api.node.count(provider.MethodCall)

	n := api.node
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.callErr != nil {
		return nil, n.callErr
	}

	if args.To == nil || *args.To != n.cfg.Address {
		return hexutil.Bytes{}, nil
	}

	return n.execute(args.From, args.Data, false)
}

func (api *ethAPI) EstimateGas(_ map[string]any, _ *rpc.BlockNumberOrHash) hexutil.Uint64 {
	return hexutil.Uint64(50_000)
}

func (api *ethAPI) GetTransactionCount(addr common.Address, _ *rpc.BlockNumberOrHash) hexutil.Uint64 {
	n := api.node
	n.mu.Lock()
	defer n.mu.Unlock()

	return hexutil.Uint64(n.nonces[addr])
}

func (api *ethAPI) SendTransaction(args provider.TxArgs) (common.Hash, error) {
	api.node.count(provider.MethodSendTransaction)

	if args.From != api.node.cfg.Owner {
		return common.Hash{}, &provider.Error{Code: provider.CodeUnauthorized, Message: fmt.Sprintf("unknown account %s", args.From)}
	}

	if args.To == nil || *args.To != api.node.cfg.Address {
		return common.Hash{}, errors.New("no contract at destination")
	}

	return api.node.submit(args.From, args.Data, common.Hash{})
}

func (api *ethAPI) SendRawTransaction(input hexutil.Bytes) (common.Hash, error) {
	api.node.count("eth_sendRawTransaction")

	var tx types.Transaction
	if err := tx.UnmarshalBinary(input); err != nil {
		return common.Hash{}, fmt.Errorf("decoding transaction: %w", err)
	}

	signer := types.LatestSignerForChainID(big.NewInt(api.node.cfg.ChainID))
	from, err := types.Sender(signer, &tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("recovering sender: %w", err)
	}

	n := api.node
	n.mu.Lock()
	if tx.Nonce() != n.nonces[from] {
		n.mu.Unlock()
		return common.Hash{}, fmt.Errorf("invalid nonce, got %d, exp %d", tx.Nonce(), n.nonces[from])
	}
	n.nonces[from]++
	n.mu.Unlock()

	if tx.To() == nil || *tx.To() != n.cfg.Address {
		return common.Hash{}, errors.New("no contract at destination")
	}

	return n.submit(from, tx.Data(), tx.Hash())
}

func (api *ethAPI) GetTransactionReceipt(hash common.Hash) (*provider.Receipt, error) {
	api.node.count(provider.MethodTransactionReceipt)

	n := api.node
	n.mu.Lock()
	defer n.mu.Unlock()

	pr, exists := n.receipts[hash]
	if !exists {
		return nil, nil
	}

	if pr.polls > 0 {
		pr.polls--
		return nil, nil
	}

	return &pr.receipt, nil
}
