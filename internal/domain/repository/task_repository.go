package repository

import (
	"context"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

// TaskRepository is the persistence gateway over the embedded relational
// store. Implementations must be safe under concurrent calls for different
// task ids; writes for one task id are serialized by the caller holding the
// single in-progress handle.
type TaskRepository interface {
	// Put inserts or replaces the task snapshot. The stored updated_at is
	// compared against the snapshot's previous value so a lost-update from
	// a second writer fails with a CONFLICT error.
	Put(ctx context.Context, task *entity.Task) error

	// Get returns the task or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*entity.Task, error)

	// List returns tasks, newest first, optionally filtered by status.
	List(ctx context.Context, statuses []entity.TaskStatus, limit int) ([]*entity.Task, error)

	// Delete removes the task. Deleting an unknown id is a NOT_FOUND error.
	Delete(ctx context.Context, id string) error
}
