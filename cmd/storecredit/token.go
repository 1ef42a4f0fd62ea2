package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iurnickita/storecredit/internal/auth"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Int64("seller", 0, "Seller id the token is issued for")
	tokenCmd.MarkFlagRequired("seller")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for a seller",
	RunE: func(cmd *cobra.Command, args []string) error {
		seller, _ := cmd.Flags().GetInt64("seller")
		if seller <= 0 {
			return errors.New("--seller must be positive")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := auth.NewAuth(cfg.Auth)
		if err != nil {
			return err
		}
		token, err := a.IssueToken(seller)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
