package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/usecase"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

// memStore is an in-memory TaskRepository used by the usecase tests.
type memStore struct {
	mu    sync.Mutex
	tasks map[string]*entity.Task
	puts  int
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*entity.Task)}
}

func (s *memStore) Put(_ context.Context, task *entity.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	task.UpdatedAt = time.Now().UTC()
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf("task %s not found", id), nil)
	}
	return task.Clone(), nil
}

func (s *memStore) List(_ context.Context, statuses []entity.TaskStatus, limit int) ([]*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := func(status entity.TaskStatus) bool {
		if len(statuses) == 0 {
			return true
		}
		for _, st := range statuses {
			if st == status {
				return true
			}
		}
		return false
	}

	var out []*entity.Task
	for _, task := range s.tasks {
		if wanted(task.Status) {
			out = append(out, task.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return apperrors.NewAppError(apperrors.ErrNotFound, fmt.Sprintf("task %s not found", id), nil)
	}
	delete(s.tasks, id)
	return nil
}

func (s *memStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

// memCache is a TTL-less CacheRepository fake.
type memCache struct {
	mu      sync.Mutex
	entries map[string]*entity.ResearchResult
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]*entity.ResearchResult)}
}

func (c *memCache) Get(_ context.Context, key string) (*entity.ResearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	copied := *value
	return &copied, true
}

func (c *memCache) Set(_ context.Context, key string, value *entity.ResearchResult, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *value
	c.entries[key] = &copied
}

type fakeRouter struct {
	decision entity.RouterDecision
	err      error

	mu    sync.Mutex
	calls int
}

func (r *fakeRouter) Name() string { return "router" }
func (r *fakeRouter) Available(context.Context) bool { return true }
func (r *fakeRouter) Classify(_ context.Context, _ agent.RouterInput) (*entity.RouterDecision, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	decision := r.decision
	return &decision, nil
}

type fakeClarifier struct {
	clarification *entity.Clarification
	err           error

	mu    sync.Mutex
	calls int
}

func (c *fakeClarifier) Name() string { return "clarifier" }
func (c *fakeClarifier) Available(context.Context) bool { return true }
func (c *fakeClarifier) Clarify(_ context.Context, input agent.ClarifierInput) (*entity.Clarification, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if c.clarification != nil {
		clarification := *c.clarification
		return &clarification, nil
	}
	return &entity.Clarification{RefinedQuery: input.Query}, nil
}

type fakeResearcher struct {
	failures int // fail the first N calls with a retriable error
	err      error

	mu    sync.Mutex
	calls int
}

func (r *fakeResearcher) Name() string { return "researcher" }
func (r *fakeResearcher) Available(context.Context) bool { return true }
func (r *fakeResearcher) Research(_ context.Context, input agent.ResearchInput) (*entity.ResearchResult, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	if call <= r.failures {
		return nil, apperrors.NewRetriable(apperrors.ErrResearch, "transient research failure", nil)
	}
	return &entity.ResearchResult{
		PassIndex: input.PassIndex,
		Findings: []entity.Finding{{
			ID:        fmt.Sprintf("F%d-1", input.PassIndex),
			Title:     fmt.Sprintf("finding for pass %d", input.PassIndex),
			Type:      "official",
			Relevance: "high",
			SourceURL: fmt.Sprintf("https://example.com/%d", input.PassIndex),
			Snippet:   "snippet",
		}},
		Evidence: []entity.Evidence{{
			ID:         fmt.Sprintf("E%d-1", input.PassIndex),
			Claim:      fmt.Sprintf("claim %d", input.PassIndex),
			SourceID:   fmt.Sprintf("F%d-1", input.PassIndex),
			Confidence: "high",
		}},
		Notes:      []string{fmt.Sprintf("note from pass %d", input.PassIndex)},
		Confidence: "high",
	}, nil
}

func (r *fakeResearcher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type fakeWriter struct {
	err error

	mu    sync.Mutex
	calls int
}

func (w *fakeWriter) Name() string { return "writer" }
func (w *fakeWriter) Available(context.Context) bool { return true }
func (w *fakeWriter) Write(_ context.Context, input agent.WriterInput) (*entity.Draft, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	return &entity.Draft{
		Envelope: entity.Envelope{
			Title:            "Report: " + input.Query,
			ExecutiveSummary: "summary",
			Deliverable:      "deliverable",
			Metadata: entity.EnvelopeMetadata{
				Purpose:   input.Decision.Purpose,
				Depth:     input.Decision.Depth,
				CreatedAt: time.Now().UTC(),
			},
		},
	}, nil
}

func (w *fakeWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type fakeChecker struct {
	err error
}

func (c *fakeChecker) Name() string { return "fact_checker" }
func (c *fakeChecker) Available(context.Context) bool { return true }
func (c *fakeChecker) Check(_ context.Context, _ entity.Draft) (*entity.QualityReport, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &entity.QualityReport{
		CitationCoverageScore:     1,
		TemplateCompletenessScore: 1,
	}, nil
}

// fakeOperator is a BackgroundOperator that reports one more note per poll
// and completes after pollsToFinish polls. When neverFinish is set the
// operation runs until the caller's budget expires.
type fakeOperator struct {
	pollsToFinish int
	neverFinish   bool

	mu     sync.Mutex
	starts int
	polls  map[string]int
}

func newFakeOperator(pollsToFinish int) *fakeOperator {
	return &fakeOperator{pollsToFinish: pollsToFinish, polls: make(map[string]int)}
}

func (o *fakeOperator) Start(_ context.Context, input agent.ResearchInput) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.starts++
	id := fmt.Sprintf("op-%d-pass-%d", o.starts, input.PassIndex)
	o.polls[id] = 0
	return id, nil
}

func (o *fakeOperator) Poll(_ context.Context, operationID string) (*agent.OperationSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.polls[operationID]++
	count := o.polls[operationID]

	var notes []string
	for i := 1; i <= count && (o.neverFinish || i <= o.pollsToFinish); i++ {
		notes = append(notes, fmt.Sprintf("%s note %d", operationID, i))
	}

	snapshot := &agent.OperationSnapshot{
		ID:     operationID,
		Status: agent.OperationRunning,
		Notes:  notes,
	}
	if !o.neverFinish && count >= o.pollsToFinish {
		snapshot.Status = agent.OperationCompleted
		snapshot.Result = &entity.ResearchResult{
			Notes:      notes,
			Confidence: "high",
			Findings: []entity.Finding{{
				ID: "D-1", Title: "deep finding", Type: "official", Relevance: "high",
			}},
		}
	}
	return snapshot, nil
}

func (o *fakeOperator) startCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.starts
}

func testPipelineConfig() usecase.PipelineConfig {
	return usecase.PipelineConfig{
		MaxAttempts:      3,
		RetryBackoff:     time.Millisecond,
		SyncTimeout:      5 * time.Second,
		BackgroundBudget: time.Second,
		PollInterval:     2 * time.Millisecond,
		CacheTTL:         time.Minute,
	}
}

type pipeline struct {
	store        *memStore
	cache        *memCache
	publisher    *usecase.Publisher
	orchestrator *usecase.Orchestrator
	executor     *usecase.Executor
}

func newPipeline(stages usecase.Agents, cfg usecase.PipelineConfig) *pipeline {
	logger := zap.NewNop()
	store := newMemStore()
	cache := newMemCache()
	publisher := usecase.NewPublisher(logger)
	lifecycle := usecase.NewLifecycle(store, publisher, logger)
	orchestrator := usecase.NewOrchestrator(stages, store, cache, lifecycle, publisher, cfg, logger)
	executor := usecase.NewExecutor(orchestrator, store, lifecycle, cfg, logger)
	orchestrator.AttachExecutor(executor)
	return &pipeline{
		store:        store,
		cache:        cache,
		publisher:    publisher,
		orchestrator: orchestrator,
		executor:     executor,
	}
}

func happyAgents() (usecase.Agents, *fakeResearcher, *fakeWriter) {
	researcher := &fakeResearcher{}
	writer := &fakeWriter{}
	stages := usecase.Agents{
		Router: &fakeRouter{decision: entity.RouterDecision{
			Purpose: entity.PurposeCustom,
			Depth:   entity.DepthQuick,
			Profile: usecase.ProfileSimpleQuery,
		}},
		Clarifier:   &fakeClarifier{},
		Researcher:  researcher,
		Writer:      writer,
		FactChecker: &fakeChecker{},
	}
	return stages, researcher, writer
}
