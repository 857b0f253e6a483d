package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type rootConfig struct {
	ConfigPath string
	Verbose    bool
}

func main() {
	rc := &rootConfig{}

	root := &cobra.Command{
		Use:   "splitbot",
		Short: "Tiered split-entry trading bot",
		Long: `splitbot automates scaled multi-tier entry and exit over a small fixed
instrument universe, reconciling its tier ledger against brokerage holdings
every cycle.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&rc.ConfigPath, "config", "c", "./splitbot.yaml", "path to config file")
	root.PersistentFlags().BoolVarP(&rc.Verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newRunCmd(rc),
		newLedgerCmd(rc),
		newPlanCmd(rc),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(rc *rootConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	if rc.Verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}
