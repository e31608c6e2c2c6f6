package cmd

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/metacrafters/atm/business/core/atm"
	"github.com/metacrafters/atm/business/core/session"
	"github.com/metacrafters/atm/foundation/logger"
	"github.com/metacrafters/atm/foundation/provider"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// wallet holds what a command needs to talk to the contract.
type wallet struct {
	log     *zap.SugaredLogger
	session *session.Session
	ctx     context.Context
	close   func()
}

// openWallet builds a session for the command and connects it. The
// configured key signs locally when it exists, otherwise the node's own
// accounts are used.
func openWallet(cmd *cobra.Command) (*wallet, error) {
	log, err := logger.New("ATM", "stderr")
	if err != nil {
		return nil, fmt.Errorf("constructing logger: %w", err)
	}

	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}

	contractABI, err := atm.LoadArtifact(artifactPath)
	if err != nil {
		return nil, err
	}

	key, err := loadKey()
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cancel := func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	p, err := provider.Open(ctx, url, key)
	if err != nil {
		cancel()
		return nil, err
	}

	w := wallet{
		log: log,
		session: session.New(session.Config{
			Log:             log,
			ContractAddress: common.HexToAddress(contractAddress),
			ContractABI:     contractABI,
			PollInterval:    atm.DefaultPollInterval,
		}),
		ctx: ctx,
		close: func() {
			p.Close()
			cancel()
			log.Sync()
		},
	}

	if err := w.session.Detect(ctx, p); err != nil {
		w.close()
		return nil, err
	}

	if w.session.State() != session.Ready {
		if err := w.session.Connect(ctx); err != nil {
			w.close()
			return nil, err
		}
	}

	return &w, nil
}

// loadKey returns the configured signing key or nil when the default key
// file does not exist.
func loadKey() (*ecdsa.PrivateKey, error) {
	if keystorePath != "" {
		return provider.LoadKey("", keystorePath, passphrase)
	}

	path := getPrivateKeyPath()
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	return provider.LoadKey(path, "", "")
}
