package webhook

import (
	"context"
	"log/slog"
	"strings"

	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/task"
)

// trigger maps a body pattern to a task action. Triggers are evaluated in
// declaration order; the first match wins, so specific commands must come
// before the generic PR-review catch-all.
type trigger struct {
	action task.Action
	match  func(ev Event, body string) bool
}

var triggers = []trigger{
	{
		action: task.ActionReview,
		match: func(ev Event, body string) bool {
			return issueScoped(ev.Type) && strings.Contains(body, "///review")
		},
	},
	{
		action: task.ActionAccept,
		match: func(ev Event, body string) bool {
			return issueScoped(ev.Type) && strings.Contains(body, "///accept")
		},
	},
	{
		action: task.ActionPRReview,
		match: func(ev Event, body string) bool {
			return ev.Type == EventPullRequestReview && strings.Contains(body, "///")
		},
	},
}

func issueScoped(eventType string) bool {
	return eventType == EventIssues || eventType == EventIssueComment
}

// Classifier turns a recognized command into a CommandTask.
type Classifier struct {
	workspaceRoot string
}

func NewClassifier(workspaceRoot string) *Classifier {
	return &Classifier{workspaceRoot: workspaceRoot}
}

// Classify returns nil when no trigger matches. A matching trigger with a
// malformed payload (missing issue or pull_request object, missing repo) is
// logged and also yields nil; malformed input never errors past this point.
func (c *Classifier) Classify(ctx context.Context, ev Event) *task.CommandTask {
	body := ev.Payload.CommandText()

	for _, tr := range triggers {
		if !tr.match(ev, body) {
			continue
		}
		return c.buildTask(ctx, ev, tr.action)
	}
	return nil
}

func (c *Classifier) buildTask(ctx context.Context, ev Event, action task.Action) *task.CommandTask {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "webhook.classifier"),
		slog.String("event", ev.Type),
		slog.String("action", string(action)),
	)

	repo := ev.Payload.RepoFullName()
	if repo == "" {
		logging.Warn(logCtx, "trigger matched but payload has no repository")
		return nil
	}

	var number int
	isIssue := action != task.ActionPRReview
	if isIssue {
		if ev.Payload.Issue == nil || ev.Payload.Issue.Number == nil {
			logging.Warn(logCtx, "trigger matched but payload has no issue number")
			return nil
		}
		number = ev.Payload.Issue.GetNumber()
	} else {
		if ev.Payload.PullRequest == nil || ev.Payload.PullRequest.Number == nil {
			logging.Warn(logCtx, "trigger matched but payload has no pull request number")
			return nil
		}
		number = ev.Payload.PullRequest.GetNumber()
	}

	id := task.NewID()
	return &task.CommandTask{
		ID:           id,
		Action:       action,
		RepoFullName: repo,
		Number:       number,
		IsIssue:      isIssue,
		WorkDir:      task.WorkDirFor(c.workspaceRoot, repo, id),
		Prompt:       task.BuildPrompt(action, repo, number),
	}
}
