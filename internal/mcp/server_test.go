package mcp

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/medisur/internal/conversation"
	"github.com/ziadkadry99/medisur/internal/db"
	"github.com/ziadkadry99/medisur/internal/facilities"
	"github.com/ziadkadry99/medisur/internal/handoff"
	"github.com/ziadkadry99/medisur/internal/transcript"
)

type fixture struct {
	srv           *Server
	conversations *conversation.Store
	transcripts   *transcript.Store
	handoffs      *handoff.Store
	facilities    *facilities.Store
}

func setup(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		conversations: conversation.NewStore(database),
		transcripts:   transcript.NewStore(database),
		handoffs:      handoff.NewStore(database),
		facilities:    facilities.NewStore(database),
	}
	f.srv = NewServer(f.conversations, f.transcripts, f.handoffs, f.facilities)
	return f
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", result.Content[0])
	}
	return text.Text, result.IsError
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool     mcp.Tool
		wantName string
	}{
		{listConversationsTool, "list_conversations"},
		{getConversationTool, "get_conversation"},
		{getTranscriptTool, "get_transcript"},
		{listHandoffsTool, "list_handoffs"},
		{listFacilitiesTool, "list_facilities"},
	}

	for _, tt := range tests {
		t.Run(tt.wantName, func(t *testing.T) {
			if tt.tool.Name != tt.wantName {
				t.Errorf("tool name = %q, want %q", tt.tool.Name, tt.wantName)
			}
			if tt.tool.Description == "" {
				t.Error("tool description should not be empty")
			}
		})
	}
}

func TestHandleGetConversation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.conversations.Create(ctx, "patient-7", "Quito")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.transcripts.AppendQuestion(ctx, c.ID, "¿Desde cuándo?", 1); err != nil {
		t.Fatalf("AppendQuestion: %v", err)
	}
	err = f.conversations.Resolve(ctx, c.ID, conversation.Resolution{
		Priority:  "emergency",
		Specialty: "Cardiología",
		Reason:    "dolor de pecho",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	text, isErr := call(t, f.srv.handleGetConversation, map[string]any{"id": c.ID})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	for _, want := range []string{"READY", "emergency", "Cardiología", "dolor de pecho", "**Question rounds**: 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	t.Run("unknown id", func(t *testing.T) {
		_, isErr := call(t, f.srv.handleGetConversation, map[string]any{"id": "nope"})
		if !isErr {
			t.Error("expected error for unknown conversation")
		}
	})

	t.Run("missing id", func(t *testing.T) {
		_, isErr := call(t, f.srv.handleGetConversation, map[string]any{})
		if !isErr {
			t.Error("expected error for missing id")
		}
	})
}

func TestHandleGetTranscript(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.conversations.Create(ctx, "patient-7", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	text, _ := call(t, f.srv.handleGetTranscript, map[string]any{"id": c.ID})
	if !strings.Contains(text, "not said anything") {
		t.Errorf("expected empty transcript message, got %q", text)
	}

	if _, err := f.transcripts.Append(ctx, c.ID, "tengo tos", transcript.RolePatient, transcript.ModalityText); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := f.transcripts.AppendQuestion(ctx, c.ID, "¿Desde cuándo?", 1); err != nil {
		t.Fatalf("AppendQuestion: %v", err)
	}

	text, isErr := call(t, f.srv.handleGetTranscript, map[string]any{"id": c.ID})
	if isErr {
		t.Fatalf("unexpected tool error: %s", text)
	}
	first, second := strings.Index(text, "tengo tos"), strings.Index(text, "¿Desde cuándo?")
	if first < 0 || second < 0 || first > second {
		t.Errorf("transcript out of order:\n%s", text)
	}
}

func TestHandleListConversationsAndFacilities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	text, _ := call(t, f.srv.handleListConversations, map[string]any{})
	if text != "No conversations found." {
		t.Errorf("unexpected empty output %q", text)
	}
	text, _ = call(t, f.srv.handleListFacilities, map[string]any{})
	if !strings.Contains(text, "medisur facilities import") {
		t.Errorf("unexpected empty facilities output %q", text)
	}

	if _, err := f.conversations.Create(ctx, "patient-1", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	lat, lon := -0.18, -78.47
	if err := f.facilities.Create(ctx, &facilities.Facility{Name: "Hospital Metropolitano", Latitude: &lat, Longitude: &lon}); err != nil {
		t.Fatalf("Create facility: %v", err)
	}

	text, _ = call(t, f.srv.handleListConversations, map[string]any{"status": "NEEDS_INFO"})
	if !strings.Contains(text, "patient-1") {
		t.Errorf("expected patient-1 in list:\n%s", text)
	}
	text, _ = call(t, f.srv.handleListConversations, map[string]any{"status": "READY"})
	if text != "No conversations found." {
		t.Errorf("expected no READY conversations, got:\n%s", text)
	}
	text, _ = call(t, f.srv.handleListFacilities, map[string]any{})
	if !strings.Contains(text, "Hospital Metropolitano") || !strings.Contains(text, "-0.1800") {
		t.Errorf("unexpected facilities output:\n%s", text)
	}
}

func TestHandleListHandoffs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	c, err := f.conversations.Create(ctx, "patient-1", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	h, err := f.handoffs.Claim(ctx, handoff.Request{ConversationID: c.ID, Urgency: "high"})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if err := f.handoffs.MarkFailed(ctx, h.ID, "facility not found"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	text, _ := call(t, f.srv.handleListHandoffs, map[string]any{"status": "failed"})
	if !strings.Contains(text, c.ID) || !strings.Contains(text, "facility not found") {
		t.Errorf("unexpected output:\n%s", text)
	}
	text, _ = call(t, f.srv.handleListHandoffs, map[string]any{"status": "delivered"})
	if text != "No handoffs found." {
		t.Errorf("expected no delivered handoffs, got %q", text)
	}
}
