// Package dispatch wires the webhook pipeline: authorization, command
// classification, dedup, credential lookup, task execution, and status
// notification.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/dedup"
	"homunculus/internal/errs"
	"homunculus/internal/executor"
	"homunculus/internal/ports"
	"homunculus/internal/task"
	"homunculus/internal/webhook"
)

// TokenSource mints installation tokens. A nil source means the server runs
// without app credentials and the agent relies on ambient auth.
type TokenSource interface {
	GetInstallationToken(ctx context.Context, owner string, repo string) (string, error)
}

// TaskHandle exposes a task's asynchronous completion.
type TaskHandle interface {
	Done() <-chan struct{}
	Result() executor.Result
}

type AgentExecutor interface {
	Execute(ctx context.Context, t task.CommandTask, token string) (TaskHandle, error)
}

type Notifier interface {
	PostStart(ctx context.Context, t task.CommandTask, token string)
	PostComplete(ctx context.Context, t task.CommandTask, token string, sessionID string)
}

// Decision is what the webhook caller sees. The eventual task outcome is
// reported out-of-band as comments.
type Decision struct {
	Status  int
	Message string
	Task    *task.CommandTask
}

type Service struct {
	filter     *webhook.Filter
	classifier *webhook.Classifier
	guard      *dedup.Guard
	tokens     TokenSource
	executor   AgentExecutor
	notifier   Notifier
	history    ports.TaskHistory
}

func NewService(
	filter *webhook.Filter,
	classifier *webhook.Classifier,
	guard *dedup.Guard,
	tokens TokenSource,
	agentExecutor AgentExecutor,
	notifier Notifier,
	history ports.TaskHistory,
) *Service {
	return &Service{
		filter:     filter,
		classifier: classifier,
		guard:      guard,
		tokens:     tokens,
		executor:   agentExecutor,
		notifier:   notifier,
		history:    history,
	}
}

// HandleEvent runs the pipeline for one verified webhook event. It returns
// as soon as the task is dispatched; the spawned agent and its completion
// notification continue after the HTTP response.
func (s *Service) HandleEvent(ctx context.Context, ev webhook.Event) Decision {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "dispatch"),
		slog.String("event", ev.Type),
		slog.String("delivery", ev.Delivery),
	)

	if rejection := s.filter.Authorize(ev); rejection != nil {
		if rejection.Status != http.StatusOK {
			logging.Warn(logCtx, "event rejected", slog.String("reason", rejection.Reason))
		}
		return Decision{Status: rejection.Status, Message: rejection.Reason}
	}

	t := s.classifier.Classify(logCtx, ev)
	if t == nil {
		return Decision{Status: http.StatusOK, Message: "no command"}
	}

	logCtx = logging.WithAttrs(logCtx,
		slog.String("task_id", t.ID),
		slog.String("task_action", string(t.Action)),
		slog.String("repo", t.RepoFullName),
		slog.Int("number", t.Number),
	)

	key := task.DedupKey(t.RepoFullName, t.Number, t.Action)
	if s.guard.ShouldSuppress(key) {
		logging.Info(logCtx, "duplicate command suppressed", slog.String("dedup_key", key))
		return Decision{Status: http.StatusOK, Message: "duplicate command ignored"}
	}
	s.guard.Record(key)

	token := s.installationToken(logCtx, t)

	s.recordDispatch(logCtx, t)

	handle, err := s.executor.Execute(logCtx, *t, token)
	if err != nil {
		logging.Error(logCtx, "task dispatch failed", slog.Any("err", errs.Loggable(err)))
		return Decision{Status: http.StatusInternalServerError, Message: "failed to start task"}
	}

	s.notifier.PostStart(logCtx, *t, token)

	// Completion runs after the HTTP response; detach from request
	// cancellation but keep the log attrs.
	go s.awaitCompletion(context.WithoutCancel(logCtx), *t, handle, token)

	return Decision{
		Status:  http.StatusAccepted,
		Message: fmt.Sprintf("Command triggered: %s", t.Action),
		Task:    t,
	}
}

// installationToken resolves a credential, falling back to ambient auth on
// any broker failure. Authentication is a soft dependency: gh and git may
// carry their own credentials.
func (s *Service) installationToken(ctx context.Context, t *task.CommandTask) string {
	if s.tokens == nil {
		return ""
	}

	owner, repo, ok := task.OwnerRepo(t.RepoFullName)
	if !ok {
		logging.Warn(ctx, "unparseable repository name, proceeding without token")
		return ""
	}

	token, err := s.tokens.GetInstallationToken(ctx, owner, repo)
	if err != nil {
		logging.Warn(ctx, "installation token unavailable, proceeding with ambient credentials",
			slog.Any("err", errs.Loggable(err)),
		)
		return ""
	}
	return token
}

func (s *Service) awaitCompletion(ctx context.Context, t task.CommandTask, handle TaskHandle, token string) {
	<-handle.Done()
	result := handle.Result()

	s.notifier.PostComplete(ctx, t, token, result.SessionID)
	s.recordCompletion(ctx, t.ID, result)
}

func (s *Service) recordDispatch(ctx context.Context, t *task.CommandTask) {
	if s.history == nil {
		return
	}
	err := s.history.RecordDispatch(ctx, ports.TaskRecord{
		TaskID:       t.ID,
		Repo:         t.RepoFullName,
		Number:       t.Number,
		Action:       string(t.Action),
		DispatchedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		logging.Warn(ctx, "record task dispatch failed", slog.Any("err", errs.Loggable(err)))
	}
}

func (s *Service) recordCompletion(ctx context.Context, taskID string, result executor.Result) {
	if s.history == nil {
		return
	}
	err := s.history.RecordCompletion(ctx, taskID, result.ExitCode, result.SessionID,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		logging.Warn(ctx, "record task completion failed", slog.Any("err", errs.Loggable(err)))
	}
}
