// Package nameservice reads a folder of private key files and creates a
// name lookup for the accounts they control.
package nameservice

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const keyExtension = ".ecdsa"

// NameService maintains a map of accounts for name lookup.
type NameService struct {
	accounts map[common.Address]string
}

// New constructs a name service with the accounts of the .ecdsa files
// found under root. The file name without extension is the account name.
func New(root string) (*NameService, error) {
	ns := NameService{
		accounts: make(map[common.Address]string),
	}

	fn := func(fileName string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walkdir failure: %w", err)
		}

		if d.IsDir() || filepath.Ext(fileName) != keyExtension {
			return nil
		}

		privateKey, err := crypto.LoadECDSA(fileName)
		if err != nil {
			return fmt.Errorf("loading %s: %w", fileName, err)
		}

		account := crypto.PubkeyToAddress(privateKey.PublicKey)
		ns.accounts[account] = strings.TrimSuffix(filepath.Base(fileName), keyExtension)

		return nil
	}

	if err := filepath.WalkDir(root, fn); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &ns, nil
}

// Lookup returns the name for the specified account or the account hex
// when it has no name.
func (ns *NameService) Lookup(account common.Address) string {
	name, exists := ns.accounts[account]
	if !exists {
		return account.Hex()
	}
	return name
}

// Copy returns a copy of the map of names and accounts.
func (ns *NameService) Copy() map[common.Address]string {
	cpy := make(map[common.Address]string, len(ns.accounts))
	for account, name := range ns.accounts {
		cpy[account] = name
	}
	return cpy
}

// Names returns the account names in sorted order.
func (ns *NameService) Names() []string {
	names := make([]string, 0, len(ns.accounts))
	for _, name := range ns.accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
