package notify

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"homunculus/internal/task"
)

// fakeGh captures one invocation and snapshots the body file before the
// notifier removes it.
type fakeGh struct {
	calls  int
	args   []string
	env    []string
	body   string
	runErr error
}

func (f *fakeGh) Run(_ context.Context, env []string, args ...string) error {
	f.calls++
	f.args = args
	f.env = env
	for i, a := range args {
		if a == "--body-file" && i+1 < len(args) {
			data, err := os.ReadFile(args[i+1])
			if err != nil {
				return err
			}
			f.body = string(data)
		}
	}
	return f.runErr
}

func issueTask() task.CommandTask {
	return task.CommandTask{
		ID:           "abcdef0123456789",
		Action:       task.ActionReview,
		RepoFullName: "test-org/test-repo",
		Number:       42,
		IsIssue:      true,
	}
}

func TestPostStart_CommentsOnIssue(t *testing.T) {
	gh := &fakeGh{}
	n := &Notifier{gh: gh}

	n.PostStart(context.Background(), issueTask(), "ghs_token")

	if gh.calls != 1 {
		t.Fatalf("gh calls = %d, want 1", gh.calls)
	}
	if gh.args[0] != "issue" || gh.args[1] != "comment" || gh.args[2] != "42" {
		t.Fatalf("gh args = %v", gh.args)
	}
	wantRepo := false
	for i, a := range gh.args {
		if a == "-R" && i+1 < len(gh.args) && gh.args[i+1] == "test-org/test-repo" {
			wantRepo = true
		}
	}
	if !wantRepo {
		t.Fatalf("gh args missing repo flag: %v", gh.args)
	}
	if !strings.Contains(gh.body, "Started **review**") || !strings.Contains(gh.body, "abcdef0123456789") {
		t.Fatalf("start comment body = %q", gh.body)
	}
}

func TestPostStart_UsesPrSubcommandForPullRequests(t *testing.T) {
	gh := &fakeGh{}
	n := &Notifier{gh: gh}

	tsk := issueTask()
	tsk.IsIssue = false
	tsk.Action = task.ActionPRReview
	n.PostStart(context.Background(), tsk, "")

	if gh.args[0] != "pr" {
		t.Fatalf("gh subcommand = %q, want pr", gh.args[0])
	}
}

func TestPostStart_TokenGoesThroughEnv(t *testing.T) {
	gh := &fakeGh{}
	n := &Notifier{gh: gh}

	n.PostStart(context.Background(), issueTask(), "ghs_token")
	if len(gh.env) != 1 || gh.env[0] != "GH_TOKEN=ghs_token" {
		t.Fatalf("env = %v", gh.env)
	}

	gh = &fakeGh{}
	n.gh = gh
	n.PostStart(context.Background(), issueTask(), "")
	if len(gh.env) != 0 {
		t.Fatalf("env without token = %v, want ambient credentials", gh.env)
	}
}

func TestPostComplete_IncludesResumeHint(t *testing.T) {
	gh := &fakeGh{}
	n := &Notifier{gh: gh}

	n.PostComplete(context.Background(), issueTask(), "", "sess-9")

	if !strings.Contains(gh.body, "claude --resume sess-9") {
		t.Fatalf("complete body missing resume hint: %q", gh.body)
	}
}

func TestPostComplete_WithoutSessionID(t *testing.T) {
	gh := &fakeGh{}
	n := &Notifier{gh: gh}

	n.PostComplete(context.Background(), issueTask(), "", "")

	if strings.Contains(gh.body, "--resume") {
		t.Fatalf("complete body has resume hint without a session: %q", gh.body)
	}
	if !strings.Contains(gh.body, "Session id was not available") {
		t.Fatalf("complete body = %q", gh.body)
	}
}

func TestPost_DeliveryFailureIsSwallowed(t *testing.T) {
	gh := &fakeGh{runErr: errors.New("gh: HTTP 502")}
	n := &Notifier{gh: gh}

	// Must not panic or propagate; the task keeps running regardless.
	n.PostStart(context.Background(), issueTask(), "")
	n.PostComplete(context.Background(), issueTask(), "", "sess")

	if gh.calls != 2 {
		t.Fatalf("gh calls = %d, want 2", gh.calls)
	}
}

func TestDeliver_RemovesBodyFile(t *testing.T) {
	gh := &fakeGh{}
	n := &Notifier{gh: gh}

	if err := n.deliver(context.Background(), issueTask(), "", "hello"); err != nil {
		t.Fatalf("deliver() error = %v", err)
	}

	var path string
	for i, a := range gh.args {
		if a == "--body-file" {
			path = gh.args[i+1]
		}
	}
	if path == "" {
		t.Fatalf("no --body-file in args %v", gh.args)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("body file %s still exists (stat err = %v)", path, err)
	}
}
