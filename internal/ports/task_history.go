package ports

import (
	"context"
	"errors"
)

var ErrTaskNotFound = errors.New("task record not found")

// TaskRecord is one dispatched command in the audit log. Completion fields
// are nil until the agent exits.
type TaskRecord struct {
	TaskID       string
	Repo         string
	Number       int
	Action       string
	DispatchedAt string
	CompletedAt  *string
	ExitCode     *int
	SessionID    *string
}

// TaskHistory is the dispatch audit log. It is advisory only: writes are
// best-effort and never gate dispatch.
type TaskHistory interface {
	RecordDispatch(ctx context.Context, record TaskRecord) error
	RecordCompletion(ctx context.Context, taskID string, exitCode int, sessionID string, completedAt string) error
	ListRecent(ctx context.Context, limit int) ([]TaskRecord, error)
}
