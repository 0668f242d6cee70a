package usecase

import (
	"context"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/domain/repository"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

// Agents bundles the pipeline stage adapters. DeepOperator is optional; when
// present it handles deep research passes as polled background operations.
type Agents struct {
	Router       agent.Router
	Clarifier    agent.Clarifier
	Researcher   agent.Researcher
	Writer       agent.Writer
	FactChecker  agent.FactChecker
	DeepOperator agent.BackgroundOperator
}

// PipelineConfig carries the orchestration tuning knobs.
type PipelineConfig struct {
	// MaxAttempts is the per-stage attempt cap for retriable failures.
	MaxAttempts int
	// RetryBackoff is the initial delay between attempts; it doubles each retry.
	RetryBackoff time.Duration
	// SyncTimeout bounds a synchronous submit end to end.
	SyncTimeout time.Duration
	// BackgroundBudget is the wall-clock cap on one background operation.
	BackgroundBudget time.Duration
	// PollInterval is how often a background operation is polled.
	PollInterval time.Duration
	// CacheTTL is how long research pass results stay reusable.
	CacheTTL time.Duration
}

// SubmitResult is the immediate outcome of a submit. Synchronous runs carry
// the assembled report; asynchronous runs carry the queued task's identity.
type SubmitResult struct {
	Report *entity.Report    `json:"report,omitempty"`
	TaskID string            `json:"task_id,omitempty"`
	Status entity.TaskStatus `json:"status"`
}

// Orchestrator decides how a request runs and sequences the pipeline stages.
// The executor drives the same stage helpers for persisted tasks.
type Orchestrator struct {
	agents    Agents
	store     repository.TaskRepository
	cache     repository.CacheRepository
	lifecycle *Lifecycle
	publisher *Publisher
	executor  *Executor
	cfg       PipelineConfig
	logger    *zap.Logger
}

// NewOrchestrator creates the pipeline orchestrator. AttachExecutor must be
// called before the first asynchronous submit.
func NewOrchestrator(
	agents Agents,
	store repository.TaskRepository,
	cache repository.CacheRepository,
	lifecycle *Lifecycle,
	publisher *Publisher,
	cfg PipelineConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		agents:    agents,
		store:     store,
		cache:     cache,
		lifecycle: lifecycle,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// AttachExecutor wires the background executor. Split from the constructor
// because the executor itself needs the orchestrator's stage helpers.
func (o *Orchestrator) AttachExecutor(e *Executor) {
	o.executor = e
}

// Submit routes a research request onto the synchronous or asynchronous
// path. Depths that require persistence, and any request with async_mode
// set, become a durable queued task and return immediately; everything else
// runs inline, bounded by SyncTimeout, and never touches the store.
func (o *Orchestrator) Submit(ctx context.Context, req entity.ResearchRequest) (*SubmitResult, error) {
	req.Normalize()

	plan, err := PlanForDepth(req.Controls.Depth)
	if err != nil {
		return nil, err
	}

	if plan.Persistent || req.Controls.AsyncMode {
		task := entity.NewTask(req)
		if err := o.store.Put(ctx, task); err != nil {
			return nil, err
		}
		o.logger.Info("task queued",
			zap.String("task_id", task.ID),
			zap.String("depth", string(req.Controls.Depth)))
		o.executor.Dispatch(task)
		return &SubmitResult{TaskID: task.ID, Status: entity.StatusQueued}, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.SyncTimeout)
	defer cancel()

	report, err := o.runSync(runCtx, req, plan)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, apperrors.NewAppError(apperrors.ErrTimeout, "synchronous research timed out", err)
		}
		return nil, err
	}
	return &SubmitResult{Report: report, Status: entity.StatusCompleted}, nil
}

// runSync executes the full pipeline inline and assembles the report.
func (o *Orchestrator) runSync(ctx context.Context, req entity.ResearchRequest, plan DepthPlan) (*entity.Report, error) {
	decision, err := o.classify(ctx, req)
	if err != nil {
		return nil, err
	}

	query, _ := o.refineQuery(ctx, req.Query, decision)

	var research []entity.ResearchResult
	for pass := 0; pass < plan.Passes; pass++ {
		result, err := o.researchPass(ctx, query, req.Controls.Depth, decision.Profile, pass)
		if err != nil {
			return nil, err
		}
		research = append(research, *result)
	}

	draft, err := o.writeDraft(ctx, agent.WriterInput{
		Query:    query,
		Controls: req.Controls,
		Decision: *decision,
		Research: research,
	})
	if err != nil {
		return nil, err
	}

	quality, err := o.checkDraft(ctx, draft)
	if err != nil {
		return nil, err
	}

	return assembleReport(req, research, draft, quality, ""), nil
}

// GetTask returns the durable task record.
func (o *Orchestrator) GetTask(ctx context.Context, id string) (*entity.Task, error) {
	return o.store.Get(ctx, id)
}

// ListTasks returns stored tasks, newest first, optionally filtered by status.
func (o *Orchestrator) ListTasks(ctx context.Context, statuses []entity.TaskStatus, limit int) ([]*entity.Task, error) {
	return o.store.List(ctx, statuses, limit)
}

// DeleteTask removes a task record and drops its event stream.
func (o *Orchestrator) DeleteTask(ctx context.Context, id string) error {
	if err := o.store.Delete(ctx, id); err != nil {
		return err
	}
	o.publisher.Forget(id)
	return nil
}

// Subscribe attaches to a task's progress stream.
func (o *Orchestrator) Subscribe(ctx context.Context, id string) (<-chan entity.TaskEvent, error) {
	return o.publisher.Subscribe(ctx, id, func(ctx context.Context) (*entity.Task, error) {
		return o.store.Get(ctx, id)
	})
}

// invoke runs one stage call under the retry policy: retriable failures are
// repeated up to MaxAttempts with doubling backoff, everything else
// escalates at once. The final error always carries the stage's code.
func (o *Orchestrator) invoke(ctx context.Context, stage, code string, fn func(context.Context) error) error {
	backoff := o.cfg.RetryBackoff
	var lastErr error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !apperrors.IsRetriable(lastErr) || attempt == o.cfg.MaxAttempts {
			break
		}
		o.logger.Warn("stage attempt failed",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return apperrors.NewAppError(code, stage+" aborted", ctx.Err())
		}
		backoff *= 2
	}
	if apperrors.CodeOf(lastErr) == apperrors.ErrInternal {
		return apperrors.NewAppError(code, stage+" failed", lastErr)
	}
	return lastErr
}

func (o *Orchestrator) classify(ctx context.Context, req entity.ResearchRequest) (*entity.RouterDecision, error) {
	var decision *entity.RouterDecision
	err := o.invoke(ctx, "router", apperrors.ErrRouting, func(ctx context.Context) error {
		d, err := o.agents.Router.Classify(ctx, agent.RouterInput{Query: req.Query, Controls: req.Controls})
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Explicit request controls win over whatever the router inferred.
	decision.Depth = req.Controls.Depth
	if req.Controls.Purpose != entity.PurposeCustom {
		decision.Purpose = req.Controls.Purpose
	}
	return decision, nil
}

// refineQuery consults the clarifier when the router asked for it. Clarifier
// failures never fail the pipeline; the original query is kept.
func (o *Orchestrator) refineQuery(ctx context.Context, query string, decision *entity.RouterDecision) (string, *entity.Clarification) {
	if !decision.NeedsClarification {
		return query, nil
	}

	clarification, err := o.agents.Clarifier.Clarify(ctx, agent.ClarifierInput{Query: query, Decision: *decision})
	if err != nil {
		o.logger.Warn("clarifier failed, keeping original query", zap.Error(err))
		return query, nil
	}
	if clarification == nil || clarification.RefinedQuery == "" {
		return query, clarification
	}
	return clarification.RefinedQuery, clarification
}

// researchPass runs one pass, consulting the cache first. Live results are
// cached under the pass fingerprint for CacheTTL.
func (o *Orchestrator) researchPass(ctx context.Context, query string, depth entity.Depth, profile string, pass int) (*entity.ResearchResult, error) {
	key := Fingerprint(query, depth, pass)
	if cached, ok := o.cache.Get(ctx, key); ok {
		hit := *cached
		hit.PassIndex = pass
		hit.FromCache = true
		o.logger.Debug("research pass served from cache", zap.Int("pass", pass))
		return &hit, nil
	}

	strategy := SelectStrategy(profile, depth)
	input := agent.ResearchInput{
		Query:       query,
		PassIndex:   pass,
		Depth:       depth,
		Profile:     profile,
		MaxSearches: strategy.MaxSearches,
	}

	var result *entity.ResearchResult
	err := o.invoke(ctx, "researcher", apperrors.ErrResearch, func(ctx context.Context) error {
		r, err := o.agents.Researcher.Research(ctx, input)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.PassIndex = pass
	result.Profile = profile
	o.cache.Set(ctx, key, result, o.cfg.CacheTTL)
	return result, nil
}

func (o *Orchestrator) writeDraft(ctx context.Context, input agent.WriterInput) (*entity.Draft, error) {
	var draft *entity.Draft
	err := o.invoke(ctx, "writer", apperrors.ErrWriter, func(ctx context.Context) error {
		d, err := o.agents.Writer.Write(ctx, input)
		if err != nil {
			return err
		}
		draft = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

func (o *Orchestrator) checkDraft(ctx context.Context, draft *entity.Draft) (*entity.QualityReport, error) {
	var quality *entity.QualityReport
	err := o.invoke(ctx, "fact_checker", apperrors.ErrFactCheck, func(ctx context.Context) error {
		q, err := o.agents.FactChecker.Check(ctx, *draft)
		if err != nil {
			return err
		}
		quality = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return quality, nil
}
