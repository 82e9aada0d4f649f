package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/medisur/internal/conversation"
	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/handoff"
)

func (s *Server) handleListConversations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := request.GetInt("limit", 20)
	if limit <= 0 {
		limit = 20
	}
	filter := conversation.ListFilter{
		Status: conversation.Status(request.GetString("status", "")),
		Limit:  limit,
	}

	convs, err := s.conversations.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing conversations failed: %v", err)), nil
	}
	if len(convs) == 0 {
		return mcp.NewToolResultText("No conversations found."), nil
	}

	var sb strings.Builder
	sb.WriteString("| ID | Patient | Status | Priority | Specialty | Updated |\n")
	sb.WriteString("|----|---------|--------|----------|-----------|---------|\n")
	for _, c := range convs {
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			c.ID, c.PatientID, c.Status, dash(c.Priority), dash(c.Specialty), c.UpdatedAt.Format("2006-01-02 15:04")))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetConversation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	c, err := s.conversations.Get(ctx, id)
	if errors.Is(err, conversation.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("No conversation with id %q.", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading conversation failed: %v", err)), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Conversation %s\n\n", c.ID))
	sb.WriteString(fmt.Sprintf("- **Patient**: %s\n", c.PatientID))
	sb.WriteString(fmt.Sprintf("- **Status**: %s\n", c.Status))
	sb.WriteString(fmt.Sprintf("- **Location**: %s\n", dash(c.PatientLocation)))
	sb.WriteString(fmt.Sprintf("- **Priority**: %s\n", dash(c.Priority)))
	sb.WriteString(fmt.Sprintf("- **Specialty**: %s\n", dash(c.Specialty)))
	sb.WriteString(fmt.Sprintf("- **Contagious**: %t\n", c.Contagious))
	sb.WriteString(fmt.Sprintf("- **Facility**: %s\n", dash(c.FacilityID)))
	if s.transcripts != nil {
		if n, err := s.transcripts.AssistantRounds(ctx, c.ID); err == nil {
			sb.WriteString(fmt.Sprintf("- **Question rounds**: %d\n", n))
		}
	}
	if c.ScheduledAt != nil {
		sb.WriteString(fmt.Sprintf("- **Scheduled at**: %s\n", c.ScheduledAt.Format("2006-01-02 15:04")))
	}
	if c.Reason != "" {
		sb.WriteString("\n## Reason\n\n" + c.Reason + "\n")
	}
	if len(c.ClinicalNotes) > 0 && string(c.ClinicalNotes) != "{}" {
		sb.WriteString("\n## Clinical notes\n\n```json\n" + string(c.ClinicalNotes) + "\n```\n")
	}

	if s.handoffs != nil {
		if h, err := s.handoffs.GetByConversation(ctx, c.ID); err == nil && h != nil {
			sb.WriteString(fmt.Sprintf("\n## Handoff\n\n- **Status**: %s\n", h.Status))
			if h.Error != "" {
				sb.WriteString(fmt.Sprintf("- **Error**: %s\n", h.Error))
			}
		}
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	if _, err := s.conversations.Get(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("No conversation with id %q.", id)), nil
	}
	history, err := s.transcripts.List(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading transcript failed: %v", err)), nil
	}
	if len(history) == 0 {
		return mcp.NewToolResultText("The patient has not said anything yet."), nil
	}

	var sb strings.Builder
	for _, c := range history {
		sb.WriteString(fmt.Sprintf("%d. **%s** (%s): %s\n", c.Sequence, c.Role, c.Modality, c.Content))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleListHandoffs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := handoff.ListFilter{Status: handoff.Status(request.GetString("status", ""))}
	handoffs, err := s.handoffs.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing handoffs failed: %v", err)), nil
	}
	if len(handoffs) == 0 {
		return mcp.NewToolResultText("No handoffs found."), nil
	}

	var sb strings.Builder
	for _, h := range handoffs {
		sb.WriteString(fmt.Sprintf("- %s → facility %s [%s] urgency=%s", h.ConversationID, dash(h.FacilityID), h.Status, h.Urgency))
		if h.Error != "" {
			sb.WriteString(" error: " + h.Error)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleListFacilities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := s.facilities.List(ctx, facilities.ListFilter{})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("listing facilities failed: %v", err)), nil
	}
	if len(all) == 0 {
		return mcp.NewToolResultText("No facilities registered. Run `medisur facilities import` to load them."), nil
	}

	var sb strings.Builder
	for _, f := range all {
		sb.WriteString(fmt.Sprintf("- **%s** (%s) %s", f.Name, f.Status, dash(f.Address)))
		if p, ok := f.Coordinates(); ok {
			sb.WriteString(fmt.Sprintf(" [%.4f, %.4f]", p.Lat, p.Lon))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
