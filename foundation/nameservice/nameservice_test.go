package nameservice_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/metacrafters/atm/foundation/nameservice"
)

func TestLookup(t *testing.T) {
	dir := t.TempDir()

	alice, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}
	if err := crypto.SaveECDSA(filepath.Join(dir, "alice.ecdsa"), alice); err != nil {
		t.Fatalf("Should be able to save the key: %s", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0600); err != nil {
		t.Fatalf("Should be able to write a file: %s", err)
	}

	ns, err := nameservice.New(dir)
	if err != nil {
		t.Fatalf("Should be able to build the name service: %s", err)
	}

	account := crypto.PubkeyToAddress(alice.PublicKey)
	if name := ns.Lookup(account); name != "alice" {
		t.Fatalf("Should find alice, got %s", name)
	}

	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("Should be able to generate a key: %s", err)
	}
	unknown := crypto.PubkeyToAddress(other.PublicKey)
	if name := ns.Lookup(unknown); name != unknown.Hex() {
		t.Fatalf("Should fall back to the account hex, got %s", name)
	}

	names := ns.Names()
	if len(names) != 1 || names[0] != "alice" {
		t.Fatalf("Should list one name, got %v", names)
	}

	cpy := ns.Copy()
	delete(cpy, account)
	if ns.Lookup(account) != "alice" {
		t.Fatalf("Should not change the service through its copy")
	}
}

func TestMissingFolder(t *testing.T) {
	if _, err := nameservice.New(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("Should fail for a missing folder")
	}
}
