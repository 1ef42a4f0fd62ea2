package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iurnickita/storecredit/internal/store"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// схема применяется при открытии хранилища
		st, err := store.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", cfg.Store.Driver)
		return nil
	},
}
