package mcp

import "github.com/mark3labs/mcp-go/mcp"

// listConversationsTool defines the list_conversations MCP tool.
var listConversationsTool = mcp.NewTool("list_conversations",
	mcp.WithDescription("List triage conversations, newest first, optionally filtered by status."),
	mcp.WithString("status",
		mcp.Description("Only return conversations in this status"),
		mcp.Enum("NEEDS_INFO", "READY", "SCHEDULED", "FINISHED"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of conversations to return (default 20)"),
	),
)

// getConversationTool defines the get_conversation MCP tool.
var getConversationTool = mcp.NewTool("get_conversation",
	mcp.WithDescription("Get a conversation's status and triage outcome: priority, specialty, contagion flag, facility and clinical notes."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Conversation id"),
	),
)

// getTranscriptTool defines the get_transcript MCP tool.
var getTranscriptTool = mcp.NewTool("get_transcript",
	mcp.WithDescription("Get the full patient/assistant transcript of a conversation in order."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Conversation id"),
	),
)

// listHandoffsTool defines the list_handoffs MCP tool.
var listHandoffsTool = mcp.NewTool("list_handoffs",
	mcp.WithDescription("List facility handoffs. Use status=failed to find conversations that need manual follow-up."),
	mcp.WithString("status",
		mcp.Description("Only return handoffs in this status"),
		mcp.Enum("pending", "delivered", "failed"),
	),
)

// listFacilitiesTool defines the list_facilities MCP tool.
var listFacilitiesTool = mcp.NewTool("list_facilities",
	mcp.WithDescription("List registered care facilities and whether they are accepting handoffs."),
)
