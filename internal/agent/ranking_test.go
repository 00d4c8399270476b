package agent

import "testing"

func TestParseRankingObjectEntries(t *testing.T) {
	keyToID := map[string]string{"T-1": "a", "T-2": "b"}
	payload := map[string]any{"order": []any{
		map[string]any{"task_key": "T-2"},
		map[string]any{"task_key": "T-1"},
	}}

	ranks := ParseRanking(payload, keyToID)
	if ranks == nil {
		t.Fatal("ParseRanking returned nil")
	}
	if ranks["b"] != 0 || ranks["a"] != 1 {
		t.Errorf("ranks = %v, want b=0 a=1", ranks)
	}
}

func TestParseRankingBareStringArray(t *testing.T) {
	keyToID := map[string]string{"T-1": "a", "T-2": "b"}
	ranks := ParseRanking([]any{"T-1", "T-2"}, keyToID)
	if ranks["a"] != 0 || ranks["b"] != 1 {
		t.Errorf("ranks = %v, want a=0 b=1", ranks)
	}
}

func TestParseRankingSkipsUnknownKeys(t *testing.T) {
	keyToID := map[string]string{"T-1": "a"}
	ranks := ParseRanking([]any{"GHOST", "T-1"}, keyToID)
	if len(ranks) != 1 || ranks["a"] != 0 {
		t.Errorf("ranks = %v, want only a=0", ranks)
	}
}

func TestParseRankingNilWhenEmpty(t *testing.T) {
	keyToID := map[string]string{"T-1": "a"}
	if ranks := ParseRanking([]any{"GHOST"}, keyToID); ranks != nil {
		t.Errorf("ranks = %v, want nil when no keys are recognized", ranks)
	}
	if ranks := ParseRanking("garbage", keyToID); ranks != nil {
		t.Errorf("ranks = %v, want nil for unusable payloads", ranks)
	}
}

func TestResolveAgentForCommand(t *testing.T) {
	router := &ConfigRouter{
		Defaults: map[string]string{"tasks-order": "planner"},
		Agents: map[string]Agent{
			"planner": {ID: "agent-1", Slug: "planner"},
			"alt":     {ID: "agent-2", Slug: "alt"},
		},
	}

	a, err := router.ResolveAgentForCommand("ws", "tasks-order", "")
	if err != nil {
		t.Fatalf("resolve default: %v", err)
	}
	if a.Slug != "planner" {
		t.Errorf("slug = %q, want planner", a.Slug)
	}

	a, err = router.ResolveAgentForCommand("ws", "tasks-order", "alt")
	if err != nil {
		t.Fatalf("resolve override: %v", err)
	}
	if a.Slug != "alt" {
		t.Errorf("slug = %q, want alt", a.Slug)
	}

	if _, err := router.ResolveAgentForCommand("ws", "unknown-command", ""); err == nil {
		t.Error("expected an error for a command with no default agent")
	}
}
