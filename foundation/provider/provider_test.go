package provider_test

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/metacrafters/atm/business/core/atm"
	"github.com/metacrafters/atm/business/core/atm/atmtest"
	"github.com/metacrafters/atm/foundation/provider"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func newNode(t *testing.T, cfg atmtest.Config) *atmtest.Node {
	t.Helper()

	node, err := atmtest.New(cfg)
	if err != nil {
		t.Fatalf("Should be able to start a node: %s", err)
	}
	t.Cleanup(node.Close)

	return node
}

func TestNodeRequestAccounts(t *testing.T) {
	t.Log("Given the need to request accounts from a node.")
	{
		ctx := context.Background()

		for testID, missing := range []bool{false, true} {
			t.Logf("\tTest %d:\tWhen eth_requestAccounts missing is %v.", testID, missing)
			{
				node := newNode(t, atmtest.Config{NoRequestAccounts: missing})
				p := node.Provider()
				defer p.Close()

				accounts, err := provider.RequestAccounts(ctx, p)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to request accounts: %s", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould be able to request accounts.", success, testID)

				if len(accounts) != 1 || accounts[0] != node.Owner() {
					t.Fatalf("\t%s\tTest %d:\tShould get back the owner account, got %v.", failed, testID, accounts)
				}
				t.Logf("\t%s\tTest %d:\tShould get back the owner account.", success, testID)

				if missing && node.Count(provider.MethodAccounts) != 1 {
					t.Fatalf("\t%s\tTest %d:\tShould fall back to eth_accounts.", failed, testID)
				}
			}
		}
	}
}

func TestGasPrice(t *testing.T) {
	node := newNode(t, atmtest.Config{GasPrice: big.NewInt(2_000_000_000)})
	p := node.Provider()
	defer p.Close()

	price, err := provider.GasPrice(context.Background(), p)
	if err != nil {
		t.Fatalf("Should be able to get the gas price: %s", err)
	}

	if price.Cmp(big.NewInt(2_000_000_000)) != 0 {
		t.Logf("got: %s", price)
		t.Logf("exp: %d", 2_000_000_000)
		t.Fatalf("Should get back the right gas price.")
	}
}

func TestLocalSigning(t *testing.T) {
	t.Log("Given the need to sign transactions with a local key.")
	{
		ctx := context.Background()

		node := newNode(t, atmtest.Config{Balance: 10})
		p := provider.NewLocal(node.Client(), atmtest.OwnerKey())
		defer p.Close()

		accounts, err := provider.Accounts(ctx, p)
		if err != nil {
			t.Fatalf("\t%s\tShould be able to ask for accounts: %s", failed, err)
		}
		if len(accounts) != 0 {
			t.Fatalf("\t%s\tShould hide the account before authorization, got %v.", failed, accounts)
		}
		t.Logf("\t%s\tShould hide the account before authorization.", success)

		data, err := atm.AssessmentABI().Pack(atm.MethodDeposit, big.NewInt(5))
		if err != nil {
			t.Fatalf("\t%s\tShould be able to pack a deposit: %s", failed, err)
		}

		to := common.HexToAddress(atm.DefaultAddress)
		args := provider.TxArgs{From: p.Address(), To: &to, Data: data}

		_, err = provider.SendTransaction(ctx, p, args)
		if code, ok := provider.ErrorCode(err); !ok || code != provider.CodeUnauthorized {
			t.Fatalf("\t%s\tShould refuse to sign before authorization, got %v.", failed, err)
		}
		t.Logf("\t%s\tShould refuse to sign before authorization.", success)

		if _, err := provider.RequestAccounts(ctx, p); err != nil {
			t.Fatalf("\t%s\tShould be able to authorize the account: %s", failed, err)
		}

		accounts, err = provider.Accounts(ctx, p)
		if err != nil || len(accounts) != 1 || accounts[0] != node.Owner() {
			t.Fatalf("\t%s\tShould expose the account after authorization, got %v %v.", failed, accounts, err)
		}
		t.Logf("\t%s\tShould expose the account after authorization.", success)

		for i := 0; i < 2; i++ {
			hash, err := provider.SendTransaction(ctx, p, args)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to send signed transaction %d: %s", failed, i, err)
			}

			receipt, err := provider.WaitMined(ctx, p, hash, time.Millisecond)
			if err != nil {
				t.Fatalf("\t%s\tShould be able to wait for transaction %d: %s", failed, i, err)
			}

			if receipt.TxHash != hash {
				t.Fatalf("\t%s\tShould get the receipt for the transaction.", failed)
			}
		}
		t.Logf("\t%s\tShould be able to send signed transactions with increasing nonces.", success)

		if node.Balance().Cmp(big.NewInt(20)) != 0 {
			t.Fatalf("\t%s\tShould apply both deposits, got %s.", failed, node.Balance())
		}
		t.Logf("\t%s\tShould apply both deposits.", success)

		if node.Count("eth_sendRawTransaction") != 2 || node.Count(provider.MethodSendTransaction) != 0 {
			t.Fatalf("\t%s\tShould broadcast raw transactions only.", failed)
		}
		t.Logf("\t%s\tShould broadcast raw transactions only.", success)
	}
}

func TestWaitMined(t *testing.T) {
	ctx := context.Background()

	node := newNode(t, atmtest.Config{MineReverts: true, PendingPolls: 2})
	p := node.Provider()
	defer p.Close()

	data, err := atm.AssessmentABI().Pack(atm.MethodWithdraw, big.NewInt(1))
	if err != nil {
		t.Fatalf("Should be able to pack a withdraw: %s", err)
	}

	to := common.HexToAddress(atm.DefaultAddress)
	hash, err := provider.SendTransaction(ctx, p, provider.TxArgs{From: node.Owner(), To: &to, Data: data})
	if err != nil {
		t.Fatalf("Should be able to send the transaction: %s", err)
	}

	receipt, err := provider.WaitMined(ctx, p, hash, time.Millisecond)
	if !errors.Is(err, provider.ErrReverted) {
		t.Fatalf("Should report the transaction reverted, got %v", err)
	}

	if receipt.Successful() {
		t.Fatalf("Should get back the failed receipt.")
	}

	if got := node.Count(provider.MethodTransactionReceipt); got != 3 {
		t.Fatalf("Should poll until the receipt exists, got %d polls", got)
	}
}

func TestWaitMinedContext(t *testing.T) {
	node := newNode(t, atmtest.Config{})
	p := node.Provider()
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := provider.WaitMined(ctx, p, common.HexToHash("0x01"), 5*time.Millisecond)
	if err == nil {
		t.Fatalf("Should stop waiting when the context ends.")
	}
}

func TestKeys(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "private.ecdsa")
	key, err := provider.GenerateECDSA(path)
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}

	loaded, err := provider.LoadECDSA(path)
	if err != nil {
		t.Fatalf("Should be able to load the key: %s", err)
	}

	if crypto.PubkeyToAddress(loaded.PublicKey) != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("Should load back the same key.")
	}

	ksKey := keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}

	data, err := keystore.EncryptKey(&ksKey, "secret", keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		t.Fatalf("Should be able to encrypt the key: %s", err)
	}

	ksPath := filepath.Join(dir, "keystore.json")
	if err := os.WriteFile(ksPath, data, 0600); err != nil {
		t.Fatalf("Should be able to write the keystore: %s", err)
	}

	decrypted, err := provider.LoadKeystore(ksPath, "secret")
	if err != nil {
		t.Fatalf("Should be able to decrypt the keystore: %s", err)
	}

	if crypto.PubkeyToAddress(decrypted.PublicKey) != ksKey.Address {
		t.Fatalf("Should decrypt back the same key.")
	}

	if _, err := provider.LoadKeystore(ksPath, "wrong"); err == nil {
		t.Fatalf("Should not decrypt with the wrong passphrase.")
	}
}

func TestOpen(t *testing.T) {
	t.Log("Given the need to open a provider from configuration.")
	{
		ctx := context.Background()
		dir := t.TempDir()

		t.Logf("\tTest 0:\tWhen no key paths are provided.")
		{
			key, err := provider.LoadKey("", "", "")
			if err != nil || key != nil {
				t.Fatalf("\t%s\tTest 0:\tShould get back no key, got %v %v.", failed, key, err)
			}
			t.Logf("\t%s\tTest 0:\tShould get back no key.", success)
		}

		t.Logf("\tTest 1:\tWhen a key file is provided.")
		{
			path := filepath.Join(dir, "private.ecdsa")
			if err := crypto.SaveECDSA(path, atmtest.OwnerKey()); err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to save the key: %s", failed, err)
			}

			key, err := provider.LoadKey(path, "", "")
			if err != nil {
				t.Fatalf("\t%s\tTest 1:\tShould be able to load the key: %s", failed, err)
			}

			if crypto.PubkeyToAddress(key.PublicKey) != crypto.PubkeyToAddress(atmtest.OwnerKey().PublicKey) {
				t.Fatalf("\t%s\tTest 1:\tShould load the owner key.", failed)
			}
			t.Logf("\t%s\tTest 1:\tShould load the owner key.", success)
		}

		t.Logf("\tTest 2:\tWhen the endpoint is not reachable.")
		{
			if _, err := provider.Open(ctx, "ftp://localhost:1", nil); err == nil {
				t.Fatalf("\t%s\tTest 2:\tShould fail for an unsupported url.", failed)
			}
			t.Logf("\t%s\tTest 2:\tShould fail for an unsupported url.", success)
		}
	}
}
