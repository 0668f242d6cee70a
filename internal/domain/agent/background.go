package agent

import (
	"context"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

// OperationStatus is the remote state of a long-running research operation.
type OperationStatus string

const (
	OperationQueued    OperationStatus = "queued"
	OperationRunning   OperationStatus = "running"
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
)

// Terminal reports whether the operation stopped making progress.
func (s OperationStatus) Terminal() bool {
	return s == OperationCompleted || s == OperationFailed
}

// OperationSnapshot is one poll response. Notes carries every fragment the
// operation has produced so far; pollers union it into task state, so
// re-delivering old fragments is harmless.
type OperationSnapshot struct {
	ID     string
	Status OperationStatus
	Notes  []string
	Result *entity.ResearchResult
	Error  string
}

// BackgroundOperator starts and polls a long-running external research
// operation. A Researcher that also implements BackgroundOperator is polled
// by the background executor for deep passes instead of being invoked
// synchronously.
type BackgroundOperator interface {
	Start(ctx context.Context, input ResearchInput) (operationID string, err error)
	Poll(ctx context.Context, operationID string) (*OperationSnapshot, error)
}
