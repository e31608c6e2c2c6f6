package provider

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Open connects to the JSON-RPC endpoint at the specified url. With a key
// the provider signs locally, without one the endpoint's own accounts are
// used.
func Open(ctx context.Context, url string, key *ecdsa.PrivateKey) (Provider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}

	if key == nil {
		return NewNode(client), nil
	}

	return NewLocal(client, key), nil
}

// LoadKey loads the signing key from a keystore file when one is given,
// otherwise from a hex encoded key file. No paths means no key.
func LoadKey(keyPath string, keystorePath string, passphrase string) (*ecdsa.PrivateKey, error) {
	switch {
	case keystorePath != "":
		return LoadKeystore(keystorePath, passphrase)
	case keyPath != "":
		return LoadECDSA(keyPath)
	}

	return nil, nil
}
