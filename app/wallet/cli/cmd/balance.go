package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the ATM balance.",
	Args:  cobra.NoArgs,
	RunE:  balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) error {
	w, err := openWallet(cmd)
	if err != nil {
		return err
	}
	defer w.close()

	v := w.session.Snapshot()
	fmt.Fprintln(cmd.OutOrStdout(), "For Account:", v.Account)
	fmt.Fprintln(cmd.OutOrStdout(), v.Balance)

	return nil
}
