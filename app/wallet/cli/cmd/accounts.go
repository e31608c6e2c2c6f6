package cmd

import (
	"fmt"

	"github.com/metacrafters/atm/foundation/nameservice"
	"github.com/spf13/cobra"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the named accounts in the account path",
	Args:  cobra.NoArgs,
	RunE:  accountsRun,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}

func accountsRun(cmd *cobra.Command, args []string) error {
	ns, err := nameservice.New(accountPath)
	if err != nil {
		return err
	}

	accounts := make(map[string]string)
	for account, name := range ns.Copy() {
		accounts[name] = account.Hex()
	}

	for _, name := range ns.Names() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, accounts[name])
	}

	return nil
}
