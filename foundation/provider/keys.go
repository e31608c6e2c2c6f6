package provider

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
)

// LoadECDSA reads a hex encoded private key from the file.
func LoadECDSA(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.LoadECDSA(path)
	if err != nil {
		return nil, fmt.Errorf("loading key %s: %w", path, err)
	}
	return key, nil
}

// GenerateECDSA creates a new private key and saves it hex encoded to
// the file.
func GenerateECDSA(path string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	if err := crypto.SaveECDSA(path, key); err != nil {
		return nil, fmt.Errorf("saving key %s: %w", path, err)
	}

	return key, nil
}

// LoadKeystore decrypts a keystore JSON file with the passphrase.
func LoadKeystore(path string, passphrase string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keystore %s: %w", path, err)
	}

	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypting keystore %s: %w", path, err)
	}

	return key.PrivateKey, nil
}
