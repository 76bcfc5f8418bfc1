package task

import (
	"strings"
	"testing"
)

func TestNewID_Format(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 16 {
			t.Fatalf("NewID() length = %d, want 16", len(id))
		}
		for _, r := range id {
			if !strings.ContainsRune("0123456789abcdef", r) {
				t.Fatalf("NewID() = %q contains non-hex %q", id, r)
			}
		}
		if seen[id] {
			t.Fatalf("NewID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestWorkDirFor(t *testing.T) {
	got := WorkDirFor("/ws", "test-org/test-repo", "abcdef0123456789")
	want := "/ws/test-org-test-repo-abcdef0123456789"
	if got != want {
		t.Fatalf("WorkDirFor() = %q, want %q", got, want)
	}
}

func TestDedupKey(t *testing.T) {
	got := DedupKey("o/r", 42, ActionReview)
	if got != "o/r#42-review" {
		t.Fatalf("DedupKey() = %q", got)
	}
}

func TestOwnerRepo(t *testing.T) {
	tests := []struct {
		in        string
		owner     string
		repo      string
		ok        bool
	}{
		{in: "o/r", owner: "o", repo: "r", ok: true},
		{in: "test-org/test-repo", owner: "test-org", repo: "test-repo", ok: true},
		{in: "nodash", ok: false},
		{in: "/r", ok: false},
		{in: "o/", ok: false},
		{in: "", ok: false},
	}

	for _, tt := range tests {
		owner, repo, ok := OwnerRepo(tt.in)
		if ok != tt.ok || owner != tt.owner || repo != tt.repo {
			t.Fatalf("OwnerRepo(%q) = %q, %q, %v", tt.in, owner, repo, ok)
		}
	}
}

func TestBuildPrompt_Interpolation(t *testing.T) {
	for _, action := range []Action{ActionReview, ActionAccept, ActionPRReview} {
		prompt := BuildPrompt(action, "test-org/test-repo", 42)
		if !strings.Contains(prompt, "#42") {
			t.Fatalf("BuildPrompt(%s) missing number: %q", action, prompt)
		}
		if !strings.Contains(prompt, "test-org/test-repo") {
			t.Fatalf("BuildPrompt(%s) missing repo: %q", action, prompt)
		}
	}
}
