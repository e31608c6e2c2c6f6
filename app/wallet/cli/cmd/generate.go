package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/metacrafters/atm/foundation/provider"
	"github.com/spf13/cobra"
)

var encrypt bool

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Args:  cobra.NoArgs,
	RunE:  generateRun,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().BoolVar(&encrypt, "encrypt", false, "Write an encrypted keystore file protected by --passphrase instead of a key file.")
}

func generateRun(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(accountPath, 0700); err != nil {
		return err
	}

	if encrypt {
		if passphrase == "" {
			return errors.New("a passphrase is required to encrypt the key")
		}

		ks := keystore.NewKeyStore(accountPath, keystore.StandardScryptN, keystore.StandardScryptP)
		acc, err := ks.NewAccount(passphrase)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), acc.Address.Hex())
		fmt.Fprintln(cmd.OutOrStdout(), acc.URL.Path)
		return nil
	}

	privateKey, err := provider.GenerateECDSA(getPrivateKeyPath())
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), crypto.PubkeyToAddress(privateKey.PublicKey).Hex())
	return nil
}
