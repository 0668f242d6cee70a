package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	domainRepo "github.com/wekeepgrowing/research-agent/internal/domain/repository"
	"github.com/wekeepgrowing/research-agent/internal/infrastructure/db/model"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type taskRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewTaskRepository returns the gorm-backed persistence gateway.
func NewTaskRepository(db *gorm.DB, logger *zap.Logger) domainRepo.TaskRepository {
	return &taskRepository{db: db, logger: logger}
}

// Put upserts the task snapshot. Updates are guarded by a compare-and-set on
// the stored updated_at: the snapshot's current UpdatedAt must match the row
// or the write fails with CONFLICT. On success the task's UpdatedAt is
// advanced so the caller can keep committing against the new value.
func (r *taskRepository) Put(ctx context.Context, task *entity.Task) error {
	prev := task.UpdatedAt
	next := time.Now().UTC()
	if !next.After(prev) {
		next = prev.Add(time.Microsecond)
	}
	task.UpdatedAt = next

	row, err := model.FromEntity(task)
	if err != nil {
		task.UpdatedAt = prev
		return apperrors.NewAppError(apperrors.ErrInternal, "failed to encode task", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.TaskModel{}).
			Where("task_id = ? AND updated_at = ?", task.ID, prev).
			Select("*").
			Updates(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&model.TaskModel{}).Where("task_id = ?", task.ID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.NewAppError(apperrors.ErrConflict,
				fmt.Sprintf("task %s was modified by another writer", task.ID), nil)
		}
		return tx.Create(row).Error
	})
	if err != nil {
		task.UpdatedAt = prev
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) {
			return err
		}
		r.logger.Error("failed to put task",
			zap.String("task_id", task.ID),
			zap.Error(err))
		return apperrors.NewAppError(apperrors.ErrInternal, "failed to put task", err)
	}
	return nil
}

func (r *taskRepository) Get(ctx context.Context, id string) (*entity.Task, error) {
	var row model.TaskModel
	err := r.db.WithContext(ctx).First(&row, "task_id = ?", id).Error
	if err != nil {
		if apperrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewAppError(apperrors.ErrNotFound,
				fmt.Sprintf("task %s not found", id), nil)
		}
		r.logger.Error("failed to get task",
			zap.String("task_id", id),
			zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrInternal, "failed to get task", err)
	}
	return row.ToEntity()
}

func (r *taskRepository) List(ctx context.Context, statuses []entity.TaskStatus, limit int) ([]*entity.Task, error) {
	query := r.db.WithContext(ctx).Model(&model.TaskModel{}).Order("created_at DESC")
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		query = query.Where("status IN ?", values)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []model.TaskModel
	if err := query.Find(&rows).Error; err != nil {
		r.logger.Error("failed to list tasks", zap.Error(err))
		return nil, apperrors.NewAppError(apperrors.ErrInternal, "failed to list tasks", err)
	}

	tasks := make([]*entity.Task, 0, len(rows))
	for i := range rows {
		task, err := rows[i].ToEntity()
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *taskRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&model.TaskModel{}, "task_id = ?", id)
	if res.Error != nil {
		r.logger.Error("failed to delete task",
			zap.String("task_id", id),
			zap.Error(res.Error))
		return apperrors.NewAppError(apperrors.ErrInternal, "failed to delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NewAppError(apperrors.ErrNotFound,
			fmt.Sprintf("task %s not found", id), nil)
	}
	return nil
}
