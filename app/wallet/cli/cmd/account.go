package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

var (
	showQR bool
	qrPath string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Print account for the specific wallet",
	Args:  cobra.NoArgs,
	RunE:  accountRun,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.Flags().BoolVar(&showQR, "qr", false, "Print the account as a QR code.")
	accountCmd.Flags().StringVar(&qrPath, "qr-png", "", "Write the account QR code as a PNG file.")
}

func accountRun(cmd *cobra.Command, args []string) error {
	privateKey, err := loadKey()
	if err != nil {
		return err
	}
	if privateKey == nil {
		return errors.New("no private key found, run generate first")
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()
	fmt.Fprintln(cmd.OutOrStdout(), address)

	if !showQR && qrPath == "" {
		return nil
	}

	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to create QR code: %w", err)
	}

	if showQR {
		fmt.Fprint(cmd.OutOrStdout(), qr.ToSmallString(false))
	}

	if qrPath != "" {
		png, err := qr.PNG(256)
		if err != nil {
			return fmt.Errorf("failed to generate PNG: %w", err)
		}

		if err := os.WriteFile(qrPath, png, 0600); err != nil {
			return err
		}
	}

	return nil
}
