// Package mcp exposes read-only conversation tools to MCP clients, so
// clinical staff can inspect triage results from their assistant.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/medisur/internal/conversation"
	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/handoff"
	"github.com/ziadkadry99/medisur/internal/transcript"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server over the medisur stores.
type Server struct {
	conversations *conversation.Store
	transcripts   *transcript.Store
	handoffs      *handoff.Store
	facilities    *facilities.Store
	mcp           *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(conversations *conversation.Store, transcripts *transcript.Store, handoffs *handoff.Store, facilityStore *facilities.Store) *Server {
	s := &Server{
		conversations: conversations,
		transcripts:   transcripts,
		handoffs:      handoffs,
		facilities:    facilityStore,
	}

	s.mcp = server.NewMCPServer(
		"medisur",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(listConversationsTool, s.handleListConversations)
	s.mcp.AddTool(getConversationTool, s.handleGetConversation)
	s.mcp.AddTool(getTranscriptTool, s.handleGetTranscript)
	s.mcp.AddTool(listHandoffsTool, s.handleListHandoffs)
	s.mcp.AddTool(listFacilitiesTool, s.handleListFacilities)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
