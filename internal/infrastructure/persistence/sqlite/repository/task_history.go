package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"homunculus/internal/errs"
	"homunculus/internal/infrastructure/persistence/sqlite/model"
	"homunculus/internal/ports"
)

type TaskHistoryRepository struct {
	db *gorm.DB
}

var _ ports.TaskHistory = (*TaskHistoryRepository)(nil)

func NewTaskHistoryRepository(db *gorm.DB) *TaskHistoryRepository {
	return &TaskHistoryRepository{db: db}
}

func (r *TaskHistoryRepository) RecordDispatch(ctx context.Context, record ports.TaskRecord) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if strings.TrimSpace(record.TaskID) == "" {
		return errors.New("task id is required")
	}

	row := model.TaskRecord{
		TaskID:       record.TaskID,
		Repo:         record.Repo,
		Number:       record.Number,
		Action:       record.Action,
		DispatchedAt: record.DispatchedAt,
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert task record")
	}
	return nil
}

func (r *TaskHistoryRepository) RecordCompletion(ctx context.Context, taskID string, exitCode int, sessionID string, completedAt string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	updates := map[string]any{
		"completed_at": completedAt,
		"exit_code":    exitCode,
	}
	if sessionID != "" {
		updates["session_id"] = sessionID
	}

	result := r.db.WithContext(ctx).
		Model(&model.TaskRecord{}).
		Where("task_id = ?", taskID).
		Updates(updates)
	if result.Error != nil {
		return errs.Wrap(result.Error, "update task record")
	}
	if result.RowsAffected == 0 {
		return ports.ErrTaskNotFound
	}
	return nil
}

func (r *TaskHistoryRepository) ListRecent(ctx context.Context, limit int) ([]ports.TaskRecord, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []model.TaskRecord
	if err := r.db.WithContext(ctx).
		Order("dispatched_at desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query task records")
	}

	items := make([]ports.TaskRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.TaskRecord{
			TaskID:       row.TaskID,
			Repo:         row.Repo,
			Number:       row.Number,
			Action:       row.Action,
			DispatchedAt: row.DispatchedAt,
			CompletedAt:  row.CompletedAt,
			ExitCode:     row.ExitCode,
			SessionID:    row.SessionID,
		})
	}
	return items, nil
}
