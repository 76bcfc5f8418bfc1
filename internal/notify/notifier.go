// Package notify posts task status comments on the originating issue or
// pull request through the gh CLI.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/errs"
	"homunculus/internal/task"
)

// ghRunner runs the forge CLI. Swapped for a stub in tests.
type ghRunner interface {
	Run(ctx context.Context, env []string, args ...string) error
}

type execGhRunner struct{}

func (execGhRunner) Run(ctx context.Context, env []string, args ...string) error {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Env = append(os.Environ(), env...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return errs.Wrapf(err, "gh %s: %s", args[0], msg)
		}
		return errs.Wrapf(err, "gh %s", args[0])
	}
	return nil
}

type Notifier struct {
	gh ghRunner
}

func NewNotifier() *Notifier {
	return &Notifier{gh: execGhRunner{}}
}

// PostStart announces that a task was dispatched. Failures are logged only;
// the task is already running.
func (n *Notifier) PostStart(ctx context.Context, t task.CommandTask, token string) {
	message := fmt.Sprintf("🧪 Started **%s** task `%s` for %s#%d.",
		t.Action, t.ID, t.RepoFullName, t.Number)
	n.post(ctx, t, token, message)
}

// PostComplete reports the task outcome, with a resume hint when the agent's
// session id was captured.
func (n *Notifier) PostComplete(ctx context.Context, t task.CommandTask, token string, sessionID string) {
	var message string
	if sessionID != "" {
		message = fmt.Sprintf(
			"✅ Task `%s` (**%s**) completed.\n\nResume this session with:\n```\nclaude --resume %s\n```",
			t.ID, t.Action, sessionID)
	} else {
		message = fmt.Sprintf(
			"✅ Task `%s` (**%s**) completed. Session id was not available.",
			t.ID, t.Action)
	}
	n.post(ctx, t, token, message)
}

func (n *Notifier) post(ctx context.Context, t task.CommandTask, token string, message string) {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "notify"),
		slog.String("task_id", t.ID),
	)

	if err := n.deliver(ctx, t, token, message); err != nil {
		logging.Warn(logCtx, "post status comment failed", slog.Any("err", errs.Loggable(err)))
		return
	}
	logging.Info(logCtx, "status comment posted")
}

func (n *Notifier) deliver(ctx context.Context, t task.CommandTask, token string, message string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	// The body goes through a temp file so the message never meets a shell.
	file, err := os.CreateTemp("", "homunculus-comment-*.md")
	if err != nil {
		return errs.Wrap(err, "create comment body file")
	}
	defer func() { _ = os.Remove(file.Name()) }()

	if _, err := file.WriteString(message); err != nil {
		_ = file.Close()
		return errs.Wrap(err, "write comment body file")
	}
	if err := file.Close(); err != nil {
		return errs.Wrap(err, "close comment body file")
	}

	target := "issue"
	if !t.IsIssue {
		target = "pr"
	}
	args := []string{
		target, "comment", strconv.Itoa(t.Number),
		"-R", t.RepoFullName,
		"--body-file", file.Name(),
	}

	var env []string
	if token != "" {
		env = append(env, "GH_TOKEN="+token)
	}
	return n.gh.Run(ctx, env, args...)
}
