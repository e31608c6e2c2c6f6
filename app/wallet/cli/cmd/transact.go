package cmd

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/metacrafters/atm/business/core/session"
	"github.com/metacrafters/atm/foundation/units"
	"github.com/spf13/cobra"
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>...",
	Short: "Deposit the amounts into the ATM.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transactRun(cmd, session.KindDeposit, args)
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw <amount>...",
	Short: "Withdraw the amounts from the ATM.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transactRun(cmd, session.KindWithdraw, args)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <kind:amount>...",
	Short: "Run a sequence like deposit:1 withdraw:1 and print the transaction log.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  historyRun,
}

func init() {
	rootCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(historyCmd)
}

// step is one write of a sequence.
type step struct {
	kind   session.Kind
	amount *big.Int
}

func transactRun(cmd *cobra.Command, kind session.Kind, args []string) error {
	steps := make([]step, len(args))
	for i, arg := range args {
		amount, err := parseAmount(arg)
		if err != nil {
			return err
		}
		steps[i] = step{kind: kind, amount: amount}
	}

	w, err := openWallet(cmd)
	if err != nil {
		return err
	}
	defer w.close()

	for _, s := range steps {
		rec, err := w.transact(s)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rec)
	}

	v := w.session.Snapshot()
	fmt.Fprintln(cmd.OutOrStdout(), "Balance:", v.Balance)

	return nil
}

func historyRun(cmd *cobra.Command, args []string) error {
	steps := make([]step, len(args))
	for i, arg := range args {
		name, value, found := strings.Cut(arg, ":")
		if !found {
			return fmt.Errorf("step %q is not kind:amount", arg)
		}

		var kind session.Kind
		switch strings.ToLower(name) {
		case "deposit":
			kind = session.KindDeposit
		case "withdraw":
			kind = session.KindWithdraw
		default:
			return fmt.Errorf("unknown kind %q", name)
		}

		amount, err := parseAmount(value)
		if err != nil {
			return err
		}
		steps[i] = step{kind: kind, amount: amount}
	}

	w, err := openWallet(cmd)
	if err != nil {
		return err
	}
	defer w.close()

	// A failed step is logged by the session and the sequence moves on.
	for _, s := range steps {
		w.transact(s)
	}

	v := w.session.Snapshot()
	fmt.Fprintln(cmd.OutOrStdout(), "Balance:", v.Balance)
	if v.GasPriceGwei != "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Gas price:", v.GasPriceGwei, "gwei")
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Transaction History:")
	for _, rec := range v.Records {
		fmt.Fprintln(cmd.OutOrStdout(), rec)
	}

	return nil
}

// transact performs one step against the session.
func (w *wallet) transact(s step) (session.Record, error) {
	if s.kind == session.KindWithdraw {
		return w.session.Withdraw(w.ctx, s.amount)
	}
	return w.session.Deposit(w.ctx, s.amount)
}

// parseAmount accepts whole positive amounts.
func parseAmount(value string) (*big.Int, error) {
	amount, err := units.Parse(value, units.Wei)
	if err != nil {
		return nil, err
	}

	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount %q must be greater than zero", value)
	}

	return amount, nil
}
