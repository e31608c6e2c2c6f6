package cmd

import (
	"bytes"
	"context"
	"math/big"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/metacrafters/atm/business/core/atm/atmtest"
)

func newNode(t *testing.T, balance int64) (*atmtest.Node, string) {
	t.Helper()

	node, err := atmtest.New(atmtest.Config{Balance: balance})
	if err != nil {
		t.Fatalf("Should be able to start a node: %s", err)
	}
	t.Cleanup(node.Close)

	server := httptest.NewServer(node.Handler())
	t.Cleanup(server.Close)

	return node, server.URL
}

func ownerKeyDir(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := crypto.SaveECDSA(filepath.Join(dir, "private.ecdsa"), atmtest.OwnerKey()); err != nil {
		t.Fatalf("Should be able to save the owner key: %s", err)
	}

	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// =============================================================================

func TestGenerateAccount(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "generate", "--account-path", dir, "--account", "alice", "--keystore", "")
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}
	address := strings.TrimSpace(out)

	out, err = execute(t, "account", "--account-path", dir, "--account", "alice", "--keystore", "", "--qr")
	if err != nil {
		t.Fatalf("Should be able to print the account: %s", err)
	}

	lines := strings.Split(out, "\n")
	if lines[0] != address {
		t.Fatalf("Should print the generated account %s, got %s", address, lines[0])
	}

	if len(lines) < 10 {
		t.Fatalf("Should print a QR code under the account, got %d lines", len(lines))
	}
}

func TestDepositWithdraw(t *testing.T) {
	node, url := newNode(t, 10)
	dir := ownerKeyDir(t)

	out, err := execute(t, "deposit", "1", "5", "--url", url, "--account-path", dir, "--account", "private", "--keystore", "")
	if err != nil {
		t.Fatalf("Should be able to deposit: %s", err)
	}

	if !strings.Contains(out, "Deposit - 1 ETH") || !strings.Contains(out, "Deposit - 5 ETH") || !strings.Contains(out, "Balance: 16") {
		t.Fatalf("Should print both deposits and the balance, got:\n%s", out)
	}

	if node.Balance().Cmp(big.NewInt(16)) != 0 {
		t.Fatalf("Should have a contract balance of 16, got %v", node.Balance())
	}

	if _, err := execute(t, "withdraw", "100", "--url", url, "--account-path", dir, "--account", "private", "--keystore", ""); err == nil {
		t.Fatalf("Should fail to withdraw more than the balance")
	}

	if node.Balance().Cmp(big.NewInt(16)) != 0 {
		t.Fatalf("Should keep the contract balance of 16, got %v", node.Balance())
	}
}

func TestHistory(t *testing.T) {
	node, url := newNode(t, 3)
	dir := ownerKeyDir(t)

	out, err := execute(t, "history", "deposit:1", "withdraw:1", "--url", url, "--account-path", dir, "--account", "private", "--keystore", "")
	if err != nil {
		t.Fatalf("Should be able to run the sequence: %s", err)
	}

	deposit := strings.Index(out, "Deposit - 1 ETH")
	withdraw := strings.Index(out, "Withdraw - 1 ETH")
	if deposit < 0 || withdraw < deposit {
		t.Fatalf("Should print the deposit before the withdrawal, got:\n%s", out)
	}

	if !strings.Contains(out, "Balance: 3") {
		t.Fatalf("Should print the restored balance, got:\n%s", out)
	}

	if node.Balance().Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("Should restore the contract balance, got %v", node.Balance())
	}
}

func TestNodeAccounts(t *testing.T) {
	_, url := newNode(t, 7)

	out, err := execute(t, "balance", "--url", url, "--account-path", t.TempDir(), "--account", "private", "--keystore", "")
	if err != nil {
		t.Fatalf("Should be able to read the balance with node accounts: %s", err)
	}

	if !strings.HasSuffix(strings.TrimSpace(out), "7") {
		t.Fatalf("Should print the balance of 7, got:\n%s", out)
	}
}

func TestBadAmounts(t *testing.T) {
	node, url := newNode(t, 7)

	for _, amount := range []string{"0", "-1", "1.5", "one"} {
		if _, err := execute(t, "deposit", amount, "--url", url, "--account-path", t.TempDir(), "--keystore", ""); err == nil {
			t.Fatalf("Should reject the amount %q", amount)
		}
	}

	if node.Count("deposit") != 0 {
		t.Fatalf("Should not reach the contract")
	}
}

func TestAccounts(t *testing.T) {
	dir := t.TempDir()

	var addresses []string
	for _, name := range []string{"bob", "alice"} {
		out, err := execute(t, "generate", "--account-path", dir, "--account", name, "--keystore", "")
		if err != nil {
			t.Fatalf("Should be able to generate %s: %s", name, err)
		}
		addresses = append(addresses, strings.TrimSpace(out))
	}

	out, err := execute(t, "accounts", "--account-path", dir)
	if err != nil {
		t.Fatalf("Should be able to list the accounts: %s", err)
	}

	exp := "alice: " + addresses[1] + "\nbob: " + addresses[0] + "\n"
	if out != exp {
		t.Fatalf("Should list the accounts sorted by name, got:\n%s", out)
	}
}
