package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/domain/repository"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

// Used by ensureStatus to skip transitions a recovered task already made.
var statusRank = map[entity.TaskStatus]int{
	entity.StatusQueued:     0,
	entity.StatusRunning:    1,
	entity.StatusWriting:    2,
	entity.StatusValidating: 3,
}

// Executor drives persisted tasks through the pipeline in the background.
// Exactly one goroutine mutates a given task; the store's compare-and-set
// write is the backstop should that ever be violated.
type Executor struct {
	orch      *Orchestrator
	store     repository.TaskRepository
	lifecycle *Lifecycle
	cfg       PipelineConfig
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// NewExecutor creates the background executor.
func NewExecutor(orch *Orchestrator, store repository.TaskRepository, lifecycle *Lifecycle, cfg PipelineConfig, logger *zap.Logger) *Executor {
	return &Executor{
		orch:      orch,
		store:     store,
		lifecycle: lifecycle,
		cfg:       cfg,
		logger:    logger,
		running:   make(map[string]struct{}),
	}
}

// Dispatch schedules a task for background execution. A task this process is
// already executing is not dispatched twice.
func (e *Executor) Dispatch(task *entity.Task) {
	e.mu.Lock()
	if _, ok := e.running[task.ID]; ok {
		e.mu.Unlock()
		return
	}
	e.running[task.ID] = struct{}{}
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.running, task.ID)
			e.mu.Unlock()
		}()
		e.run(task)
	}()
}

// Recover re-dispatches every non-terminal task found in the store. Called
// once at startup, before the HTTP server accepts traffic. Passes that
// already committed results are not repeated.
func (e *Executor) Recover(ctx context.Context) error {
	tasks, err := e.store.List(ctx, []entity.TaskStatus{
		entity.StatusQueued,
		entity.StatusRunning,
		entity.StatusWriting,
		entity.StatusValidating,
		entity.StatusFailedRetriable,
	}, 0)
	if err != nil {
		return err
	}

	for _, task := range tasks {
		e.logger.Info("recovering interrupted task",
			zap.String("task_id", task.ID),
			zap.String("status", string(task.Status)),
			zap.Int("completed_passes", task.CompletedPasses()))
		e.Dispatch(task)
	}
	return nil
}

// Shutdown waits for in-flight tasks to finish or ctx to expire. Tasks are
// never cancelled; anything interrupted is picked up by Recover on restart.
func (e *Executor) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) run(task *entity.Task) {
	ctx := context.Background()
	log := e.logger.With(zap.String("task_id", task.ID))

	plan, err := PlanForDepth(task.Controls.Depth)
	if err != nil {
		e.failFinal(ctx, task, apperrors.ErrConfiguration, err.Error(), log)
		return
	}

	if err := e.execute(ctx, task, plan, log); err != nil {
		apperrors.LogError(log, err, "task failed")
		e.failFinal(ctx, task, apperrors.CodeOf(err), err.Error(), log)
		return
	}
	log.Info("task completed", zap.Int("passes", task.CompletedPasses()))
}

// execute resumes the pipeline from wherever the task's committed payloads
// left off, so a recovered task never repeats finished work.
func (e *Executor) execute(ctx context.Context, task *entity.Task, plan DepthPlan, log *zap.Logger) error {
	req := entity.ResearchRequest{Query: task.Query, Controls: task.Controls}

	if task.Router == nil {
		decision, err := e.orch.classify(ctx, req)
		if err != nil {
			return err
		}
		task.Router = decision
		if err := e.lifecycle.Commit(ctx, task); err != nil {
			return err
		}
	}

	query := task.Query
	if task.Router.NeedsClarification {
		if task.Clarification == nil {
			_, clarification := e.orch.refineQuery(ctx, task.Query, task.Router)
			if clarification != nil {
				task.Clarification = clarification
				if err := e.lifecycle.Commit(ctx, task); err != nil {
					return err
				}
			}
		}
		if task.Clarification != nil && task.Clarification.RefinedQuery != "" {
			query = task.Clarification.RefinedQuery
		}
	}

	if err := e.ensureStatus(ctx, task, entity.StatusRunning); err != nil {
		return err
	}

	for pass := task.CompletedPasses(); pass < plan.Passes; pass++ {
		result, err := e.runPass(ctx, task, plan, query, pass, log)
		if err != nil {
			return err
		}
		notesBefore := len(task.Notes)
		task.AppendResearch(*result)
		if err := e.lifecycle.Commit(ctx, task, passEvents(result, task.Notes[notesBefore:])...); err != nil {
			return err
		}
	}

	if err := e.ensureStatus(ctx, task, entity.StatusWriting); err != nil {
		return err
	}
	if task.Draft == nil {
		draft, err := e.orch.writeDraft(ctx, agent.WriterInput{
			Query:    query,
			Controls: task.Controls,
			Decision: *task.Router,
			Research: task.Research,
			TaskID:   task.ID,
		})
		if err != nil {
			return err
		}
		task.Draft = draft
		if err := e.lifecycle.Commit(ctx, task); err != nil {
			return err
		}
	}

	if err := e.ensureStatus(ctx, task, entity.StatusValidating); err != nil {
		return err
	}
	if task.Quality == nil {
		quality, err := e.orch.checkDraft(ctx, task.Draft)
		if err != nil {
			return err
		}
		task.Quality = quality
		if err := e.lifecycle.Commit(ctx, task); err != nil {
			return err
		}
	}

	task.Report = assembleReport(req, task.Research, task.Draft, task.Quality, task.ID)
	return e.lifecycle.Transition(ctx, task, entity.StatusCompleted)
}

// ensureStatus advances the task to want unless it already reached or passed
// it, which happens when a recovered task re-enters the pipeline mid-stage.
func (e *Executor) ensureStatus(ctx context.Context, task *entity.Task, want entity.TaskStatus) error {
	if rank, ok := statusRank[task.Status]; ok && rank >= statusRank[want] {
		return nil
	}
	return e.lifecycle.Transition(ctx, task, want)
}

func (e *Executor) runPass(ctx context.Context, task *entity.Task, plan DepthPlan, query string, pass int, log *zap.Logger) (*entity.ResearchResult, error) {
	profile := task.Router.Profile
	strategy := SelectStrategy(profile, task.Controls.Depth)

	if plan.Background && strategy.DeepResearch && e.orch.agents.DeepOperator != nil {
		return e.runBackgroundPass(ctx, task, query, pass, strategy, log)
	}
	return e.orch.researchPass(ctx, query, task.Controls.Depth, profile, pass)
}

// runBackgroundPass runs one pass as a polled remote operation. A budget
// overrun or retriable failure parks the task in failed_retriable and the
// pass is retried once; the second failure escalates to the caller.
func (e *Executor) runBackgroundPass(ctx context.Context, task *entity.Task, query string, pass int, strategy Strategy, log *zap.Logger) (*entity.ResearchResult, error) {
	input := agent.ResearchInput{
		Query:       query,
		PassIndex:   pass,
		Depth:       task.Controls.Depth,
		Profile:     task.Router.Profile,
		MaxSearches: strategy.MaxSearches,
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		result, err := e.pollOperation(ctx, task, input, log)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !apperrors.IsRetriable(err) || attempt == 2 {
			break
		}

		log.Warn("deep research attempt failed, retrying pass",
			zap.Int("pass", pass),
			zap.Error(err))
		if ferr := e.lifecycle.Fail(ctx, task, apperrors.CodeOf(err), err.Error(), false); ferr != nil {
			return nil, ferr
		}
		if terr := e.lifecycle.Transition(ctx, task, entity.StatusRunning); terr != nil {
			return nil, terr
		}
		task.Error = nil
	}
	return nil, lastErr
}

// pollOperation starts the remote operation and polls it until it finishes
// or the wall-clock budget runs out. Newly reported note fragments are
// merged into the task and committed as they arrive; an unchanged poll
// commits nothing.
func (e *Executor) pollOperation(ctx context.Context, task *entity.Task, input agent.ResearchInput, log *zap.Logger) (*entity.ResearchResult, error) {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.BackgroundBudget)
	defer cancel()

	opID, err := e.orch.agents.DeepOperator.Start(opCtx, input)
	if err != nil {
		return nil, err
	}
	log.Info("deep research operation started",
		zap.String("operation_id", opID),
		zap.Int("pass", input.PassIndex))

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-opCtx.Done():
			// The operation is abandoned, not cancelled remotely.
			return nil, apperrors.NewRetriable(apperrors.ErrBackgroundTimeout,
				fmt.Sprintf("deep research operation %s exceeded budget %s", opID, e.cfg.BackgroundBudget), opCtx.Err())
		case <-ticker.C:
		}

		snapshot, err := e.orch.agents.DeepOperator.Poll(opCtx, opID)
		if err != nil {
			// Transient; the budget bounds how long this can loop.
			log.Warn("operation poll failed",
				zap.String("operation_id", opID),
				zap.Error(err))
			continue
		}

		if added := task.MergeNotes(snapshot.Notes); added > 0 {
			fresh := append([]string(nil), task.Notes[len(task.Notes)-added:]...)
			ev := entity.TaskEvent{Kind: entity.EventNotes, Notes: fresh}
			if err := e.lifecycle.Commit(ctx, task, ev); err != nil {
				return nil, err
			}
		}

		if !snapshot.Status.Terminal() {
			continue
		}
		if snapshot.Status == agent.OperationFailed {
			return nil, apperrors.NewRetriable(apperrors.ErrResearch,
				fmt.Sprintf("deep research operation %s failed: %s", opID, snapshot.Error), nil)
		}

		result := snapshot.Result
		if result == nil {
			result = &entity.ResearchResult{Notes: snapshot.Notes}
		}
		result.PassIndex = input.PassIndex
		result.Profile = input.Profile
		return result, nil
	}
}

func (e *Executor) failFinal(ctx context.Context, task *entity.Task, kind, message string, log *zap.Logger) {
	if task.Terminal() {
		return
	}
	if err := e.lifecycle.Fail(ctx, task, kind, message, true); err != nil {
		log.Error("failed to finalize task failure", zap.Error(err))
	}
}

// freshNotes carries only notes the pass actually added; notes already
// streamed while polling are not re-emitted.
func passEvents(result *entity.ResearchResult, freshNotes []string) []entity.TaskEvent {
	var events []entity.TaskEvent
	if len(freshNotes) > 0 {
		events = append(events, entity.TaskEvent{Kind: entity.EventNotes, Notes: append([]string(nil), freshNotes...)})
	}
	if len(result.Findings) > 0 {
		events = append(events, entity.TaskEvent{Kind: entity.EventFindings, Findings: result.Findings})
	}
	if len(result.Evidence) > 0 {
		events = append(events, entity.TaskEvent{Kind: entity.EventEvidence, Evidence: result.Evidence})
	}
	return events
}
