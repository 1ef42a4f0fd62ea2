package main

import (
	"github.com/spf13/cobra"

	"github.com/iurnickita/storecredit/internal/config"
)

var (
	configPath string
	v          = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "storecredit",
	Short: "Store credit ledger for sellers and their regular customers",
	Long: `storecredit keeps per-seller credit limits and a running balance
ledger for customers who buy on credit. It serves an HTTP API and ships
client commands for the same API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config/config.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	v.BindPFlag("logger.log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func loadConfig() (config.Config, error) {
	return config.GetConfig(v, configPath)
}
