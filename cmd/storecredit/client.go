package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iurnickita/storecredit/internal/creditclient"
)

func init() {
	rootCmd.AddCommand(balanceCmd, statementCmd, checkCmd, payCmd)

	for _, cmd := range []*cobra.Command{balanceCmd, statementCmd, checkCmd, payCmd} {
		cmd.Flags().String("url", "", "API base URL")
		cmd.Flags().String("token", "", "Seller API token")
	}
	statementCmd.Flags().IntP("limit", "n", 10, "Number of entries")
	payCmd.Flags().StringP("description", "d", "", "Payment description")
}

func newClient(cmd *cobra.Command) (creditclient.CreditClient, error) {
	v.BindPFlag("client.base_url", cmd.Flags().Lookup("url"))
	v.BindPFlag("client.token", cmd.Flags().Lookup("token"))

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Client.Token == "" {
		return nil, fmt.Errorf("no API token: pass --token or set STORECREDIT_CLIENT_TOKEN")
	}
	return creditclient.NewCreditClient(cfg.Client), nil
}

func parseCustomer(arg string) (int64, error) {
	customer, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || customer <= 0 {
		return 0, fmt.Errorf("invalid customer id %q", arg)
	}
	return customer, nil
}

var balanceCmd = &cobra.Command{
	Use:   "balance CUSTOMER_ID",
	Short: "Show a customer's current balance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		customer, err := parseCustomer(args[0])
		if err != nil {
			return err
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		answer, err := client.Balance(cmd.Context(), customer)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "customer %d balance: %s\n", answer.CustomerID, answer.Balance.StringFixed(2))
		return nil
	},
}

var statementCmd = &cobra.Command{
	Use:   "statement CUSTOMER_ID",
	Short: "Show the latest ledger entries of a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		customer, err := parseCustomer(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		entries, err := client.Statement(cmd.Context(), customer, limit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tBALANCE\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.CreatedAt.Format("2006-01-02 15:04"),
				e.Type,
				e.Amount.StringFixed(2),
				e.BalanceAfter.StringFixed(2),
				e.Description)
		}
		return w.Flush()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check CUSTOMER_ID AMOUNT",
	Short: "Check whether a purchase fits the customer's credit limit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		customer, err := parseCustomer(args[0])
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		decision, err := client.Check(cmd.Context(), customer, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", decision.Status, decision.Message)
		return nil
	},
}

var payCmd = &cobra.Command{
	Use:   "pay CUSTOMER_ID AMOUNT",
	Short: "Record a payment from a customer",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		customer, err := parseCustomer(args[0])
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[1])
		if err != nil || !amount.IsPositive() {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		description, _ := cmd.Flags().GetString("description")
		client, err := newClient(cmd)
		if err != nil {
			return err
		}
		entry, err := client.Pay(cmd.Context(), customer, amount, description)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "payment recorded: %s -> %s\n",
			entry.BalanceBefore.StringFixed(2), entry.BalanceAfter.StringFixed(2))
		return nil
	},
}
