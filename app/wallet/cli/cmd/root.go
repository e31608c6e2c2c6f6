// Package cmd contains the ATM wallet app.
package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/metacrafters/atm/business/core/atm"
	"github.com/spf13/cobra"
)

var (
	url             string
	accountName     string
	accountPath     string
	keystorePath    string
	passphrase      string
	contractAddress string
	artifactPath    string
	timeout         time.Duration
)

const (
	keyExtension = ".ecdsa"
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:8545", "Url of the node.")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&accountPath, "account-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&keystorePath, "keystore", "k", "", "Path to an encrypted keystore file, used instead of the private key.")
	rootCmd.PersistentFlags().StringVar(&passphrase, "passphrase", "", "Passphrase of the keystore file.")
	rootCmd.PersistentFlags().StringVarP(&contractAddress, "contract", "c", atm.DefaultAddress, "Address of the ATM contract.")
	rootCmd.PersistentFlags().StringVar(&artifactPath, "artifact", "", "Path to a contract artifact, the embedded one when empty.")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 0, "Bound for the whole command, none when zero.")
}

var rootCmd = &cobra.Command{
	Use:          "atm",
	Short:        "Wallet for the Assessment ATM contract",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func getPrivateKeyPath() string {
	name := accountName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}

	return filepath.Join(accountPath, name)
}
