package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medisur/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "medisur",
	Short: "Conversational pre-triage and facility handoff for patients",
	Long: `Medisur talks to patients over a websocket channel, asks the clarifying
questions needed to triage them, routes each case to a medical specialty
and the nearest care facility, and notifies that facility exactly once.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
