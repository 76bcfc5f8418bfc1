// Package executor clones the target repository and runs the agent process
// for one command task.
package executor

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"homunculus/internal/agent"
	"homunculus/internal/bootstrap/logging"
	"homunculus/internal/errs"
	"homunculus/internal/task"
)

// Result is what survives a finished task: the exit code and, when the
// agent's JSON output could be parsed, its session id.
type Result struct {
	ExitCode  int
	SessionID string
}

// Handle tracks one in-flight task. Done is closed after the agent exits
// and the output buffers have been parsed; Result is valid from then on.
type Handle struct {
	Task task.CommandTask
	// Cloned is false when the clone failed and the task proceeded in an
	// empty directory.
	Cloned bool

	done   chan struct{}
	result Result
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Result must only be called after Done is closed.
func (h *Handle) Result() Result { return h.result }

// gitRunner runs git commands during workdir preparation. Swapped for a
// stub in tests.
type gitRunner interface {
	Run(ctx context.Context, dir string, args ...string) error
}

type execGitRunner struct{}

func (execGitRunner) Run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return errs.Wrapf(err, "git %s: %s", args[0], firstLine(msg))
		}
		return errs.Wrapf(err, "git %s", args[0])
	}
	return nil
}

type Executor struct {
	profile        agent.Profile
	gitAuthorName  string
	gitAuthorEmail string
	cloneBaseURL   string
	git            gitRunner
}

func New(profile agent.Profile, gitAuthorName string, gitAuthorEmail string) *Executor {
	return &Executor{
		profile:        profile,
		gitAuthorName:  gitAuthorName,
		gitAuthorEmail: gitAuthorEmail,
		cloneBaseURL:   "https://github.com",
		git:            execGitRunner{},
	}
}

// Execute prepares the workdir and starts the agent. It returns once the
// process is running; the exit is observed asynchronously through the
// handle. Only a spawn failure is fatal for the task.
func (e *Executor) Execute(ctx context.Context, t task.CommandTask, token string) (*Handle, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "executor"),
		slog.String("task_id", t.ID),
		slog.String("repo", t.RepoFullName),
		slog.String("action", string(t.Action)),
	)

	cloned := e.prepareWorkdir(logCtx, t, token)

	// The agent must outlive the webhook request, so its context is
	// detached from ctx. The profile timeout is the only kill policy.
	runCtx := context.Background()
	cancel := context.CancelFunc(func() {})
	if e.profile.TimeoutSeconds > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, time.Duration(e.profile.TimeoutSeconds)*time.Second)
	}

	cmd := exec.CommandContext(runCtx, e.profile.Program, e.profile.CommandArgs(t.Prompt)...)
	cmd.Dir = t.WorkDir
	cmd.Env = e.agentEnv(token)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, errs.Wrapf(err, "spawn agent %q", e.profile.Program)
	}

	logging.Info(logCtx, "agent spawned",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("workdir", t.WorkDir),
	)

	h := &Handle{
		Task:   t,
		Cloned: cloned,
		done:   make(chan struct{}),
	}

	go func() {
		defer cancel()
		waitErr := cmd.Wait()

		exitCode := 0
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		if waitErr != nil && exitCode == 0 {
			exitCode = -1
		}

		sessionID := extractSessionID(stdout.Bytes())
		h.result = Result{ExitCode: exitCode, SessionID: sessionID}

		logging.Info(logCtx, "agent exited",
			slog.Int("exit_code", exitCode),
			slog.Bool("session_captured", sessionID != ""),
			slog.Int("stdout_bytes", stdout.Len()),
			slog.Int("stderr_bytes", stderr.Len()),
		)
		if waitErr != nil {
			logging.Warn(logCtx, "agent run failed",
				slog.Any("err", errs.Loggable(waitErr)),
				slog.String("stderr", firstLine(stderr.String())),
			)
		}

		close(h.done)
	}()

	return h, nil
}

// prepareWorkdir clones the repository, falling back to an empty directory
// so the task can still run degraded. Returns whether the clone succeeded.
func (e *Executor) prepareWorkdir(ctx context.Context, t task.CommandTask, token string) bool {
	if err := os.MkdirAll(filepath.Dir(t.WorkDir), 0o755); err != nil {
		logging.Warn(ctx, "create workspace root failed", slog.Any("err", errs.Loggable(err)))
	}

	if err := e.git.Run(ctx, "", "clone", e.cloneURL(t.RepoFullName, token), t.WorkDir); err != nil {
		logging.Warn(ctx, "clone failed, continuing with empty workdir", slog.Any("err", errs.Loggable(err)))
		if mkErr := os.MkdirAll(t.WorkDir, 0o755); mkErr != nil {
			logging.Warn(ctx, "create empty workdir failed", slog.Any("err", errs.Loggable(mkErr)))
		}
		return false
	}

	if token != "" {
		if err := e.configureCredentialHelper(ctx, t.WorkDir); err != nil {
			logging.Warn(ctx, "configure credential helper failed", slog.Any("err", errs.Loggable(err)))
		}
	}
	return true
}

func (e *Executor) cloneURL(repoFullName string, token string) string {
	base := strings.TrimPrefix(e.cloneBaseURL, "https://")
	if token == "" {
		return "https://" + base + "/" + repoFullName + ".git"
	}
	return "https://x-access-token:" + token + "@" + base + "/" + repoFullName + ".git"
}

// configureCredentialHelper lets later pushes authenticate through the
// GITHUB_TOKEN in the agent's environment instead of a token baked into
// the remote URL.
func (e *Executor) configureCredentialHelper(ctx context.Context, workDir string) error {
	helper := `!f() { echo "username=x-access-token"; echo "password=${GITHUB_TOKEN}"; }; f`
	return e.git.Run(ctx, workDir, "config", "credential.helper", helper)
}

func (e *Executor) agentEnv(token string) []string {
	env := os.Environ()
	if e.gitAuthorName != "" {
		env = append(env,
			"GIT_AUTHOR_NAME="+e.gitAuthorName,
			"GIT_COMMITTER_NAME="+e.gitAuthorName,
		)
	}
	if e.gitAuthorEmail != "" {
		env = append(env,
			"GIT_AUTHOR_EMAIL="+e.gitAuthorEmail,
			"GIT_COMMITTER_EMAIL="+e.gitAuthorEmail,
		)
	}
	if token != "" {
		env = append(env, "GH_TOKEN="+token, "GITHUB_TOKEN="+token)
	}
	return env
}

func firstLine(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	line, _, _ := strings.Cut(trimmed, "\n")
	return strings.TrimSpace(line)
}
