package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/medisur/internal/conversation"
	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/handoff"
	mcpserver "github.com/ziadkadry99/medisur/internal/mcp"
	"github.com/ziadkadry99/medisur/internal/transcript"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for clinical staff assistants",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing read-only tools over conversations, transcripts, handoffs and facilities.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "medisur MCP server started on stdio (database=%s)\n", database.Path())

		srv := mcpserver.NewServer(
			conversation.NewStore(database),
			transcript.NewStore(database),
			handoff.NewStore(database),
			facilities.NewStore(database),
		)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
