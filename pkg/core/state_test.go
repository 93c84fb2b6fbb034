package core

import (
	"context"
	"strings"
	"testing"
)

func TestAgentStateObservationLifecycle(t *testing.T) {
	state := NewAgentState("s-1")
	state.AddMessage(RoleUser, "what's the weather?")

	state.AddObservation(Success("weather", map[string]any{"temperature": 21}))
	if state.Steps != 1 {
		t.Fatalf("expected 1 step, got %d", state.Steps)
	}
	last := state.History[len(state.History)-1]
	if last.Role != RoleUser {
		t.Fatalf("expected observation to use the user role, got %s", last.Role)
	}
	if !strings.HasPrefix(last.Content, ObservationPrefix+" Result from weather (SUCCESS):\n") {
		t.Fatalf("unexpected observation entry %q", last.Content)
	}
	if !strings.Contains(last.Content, `"temperature":21`) {
		t.Fatalf("expected JSON content in entry, got %q", last.Content)
	}

	state.AddObservation(Failure("mcp:query-docs", "Error: boom"))
	if state.Steps != 2 {
		t.Fatalf("expected 2 steps, got %d", state.Steps)
	}
	if !strings.Contains(state.History[len(state.History)-1].Content, "(ERROR)") {
		t.Fatalf("expected ERROR label")
	}

	state.Advance("no observation")
	if state.Steps != 3 {
		t.Fatalf("expected 3 steps, got %d", state.Steps)
	}
	if len(state.Observations) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(state.Observations))
	}
	if len(state.History) != 4 {
		t.Fatalf("expected 4 history entries, got %d", len(state.History))
	}
}

func TestAgentStateSnapshotIsIndependent(t *testing.T) {
	state := NewAgentState("s-1")
	state.AddMessage(RoleUser, "hi")
	snap := state.Snapshot()
	snap.History[0].Content = "changed"
	snap.History = append(snap.History, Message{Role: RoleAssistant, Content: "x"})

	if state.History[0].Content != "hi" || len(state.History) != 1 {
		t.Fatalf("snapshot must not share history with the state")
	}
}

func TestActionTerminal(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   bool
	}{
		{"respond", Action{Kind: ActionRespond}, true},
		{"stop flag", Action{Kind: ActionSkill, Stop: true}, true},
		{"skill", Action{Kind: ActionSkill}, false},
		{"tool", Action{Kind: ActionTool}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.Terminal(); got != tt.want {
				t.Fatalf("Terminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestActionResponse(t *testing.T) {
	if _, ok := (Action{}).Response(); ok {
		t.Fatalf("expected no response on empty args")
	}
	got, ok := Action{Args: map[string]any{"response": "done"}}.Response()
	if !ok || got != "done" {
		t.Fatalf("unexpected response %q", got)
	}
	got, _ = Action{Args: map[string]any{"response": map[string]any{"a": 1}}}.Response()
	if got != `{"a":1}` {
		t.Fatalf("expected JSON rendering, got %q", got)
	}
}

func TestActionKindValid(t *testing.T) {
	if !ActionTool.Valid() || ActionKind("shell").Valid() {
		t.Fatalf("unexpected kind validity")
	}
}

func TestEnsureSessionID(t *testing.T) {
	ctx, id := EnsureSessionID(context.Background())
	if !strings.HasPrefix(id, "session-") {
		t.Fatalf("unexpected session id %q", id)
	}
	_, again := EnsureSessionID(ctx)
	if again != id {
		t.Fatalf("expected existing session id to be kept")
	}
}
