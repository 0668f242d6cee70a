package usecase

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/domain/repository"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

// Lifecycle owns task status changes. Every move is validated against the
// status graph, written durably, and only then published, so the event
// stream never runs ahead of the store.
type Lifecycle struct {
	store     repository.TaskRepository
	publisher *Publisher
	logger    *zap.Logger
}

// NewLifecycle creates the task lifecycle manager.
func NewLifecycle(store repository.TaskRepository, publisher *Publisher, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Transition moves the task to next and publishes the matching event.
// Illegal moves are rejected without touching the store.
func (l *Lifecycle) Transition(ctx context.Context, task *entity.Task, next entity.TaskStatus) error {
	if !task.Status.CanTransitionTo(next) {
		return apperrors.NewAppError(apperrors.ErrInvalidTransition,
			fmt.Sprintf("task %s cannot move from %s to %s", task.ID, task.Status, next), nil)
	}

	prev := task.Status
	task.Status = next
	if err := l.store.Put(ctx, task); err != nil {
		task.Status = prev
		return err
	}

	ev := entity.TaskEvent{TaskID: task.ID, Status: next}
	switch next {
	case entity.StatusCompleted:
		ev.Kind = entity.EventCompleted
		ev.Snapshot = task.Clone()
	case entity.StatusFailedFinal:
		ev.Kind = entity.EventFailed
		ev.Error = task.Error
	default:
		ev.Kind = entity.EventStatus
		if next == entity.StatusFailedRetriable {
			ev.Error = task.Error
		}
	}
	l.publisher.Publish(ev)

	l.logger.Info("task status changed",
		zap.String("task_id", task.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))
	return nil
}

// Commit persists stage payload updates without a status change and
// publishes the given progress events in order.
func (l *Lifecycle) Commit(ctx context.Context, task *entity.Task, events ...entity.TaskEvent) error {
	if err := l.store.Put(ctx, task); err != nil {
		return err
	}
	for _, ev := range events {
		ev.TaskID = task.ID
		if ev.Status == "" {
			ev.Status = task.Status
		}
		l.publisher.Publish(ev)
	}
	return nil
}

// Fail records the failure cause on the task and parks it in
// failed_retriable, or failed_final when final is set.
func (l *Lifecycle) Fail(ctx context.Context, task *entity.Task, kind, message string, final bool) error {
	task.Error = &entity.TaskError{Kind: kind, Message: message}
	next := entity.StatusFailedRetriable
	if final {
		next = entity.StatusFailedFinal
	}
	return l.Transition(ctx, task, next)
}
