package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medisur/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize medisur configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure medisur and writes the result to the config file (default .medisur.yml).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard(cfgFile)
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
