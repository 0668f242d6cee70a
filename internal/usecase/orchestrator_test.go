package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/usecase"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
)

func TestSubmitSyncQuick(t *testing.T) {
	stages, researcher, _ := happyAgents()
	p := newPipeline(stages, testPipelineConfig())

	result, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{
		Query: "what is a business requirements document",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Report)
	assert.Empty(t, result.TaskID)
	assert.Equal(t, entity.StatusCompleted, result.Status)
	assert.Equal(t, 1, researcher.callCount(), "quick depth runs exactly one pass")

	assert.NotEmpty(t, result.Report.RenderedMarkdown)
	assert.Equal(t, entity.OutputMarkdown, result.Report.OutputFormat)
	require.NotEmpty(t, result.Report.Bibliography)
	assert.Equal(t, "S1", result.Report.Bibliography[0].ID)
	require.NotNil(t, result.Report.Quality)

	assert.Zero(t, p.store.putCount(), "synchronous runs must never touch the store")
}

func TestSubmitStandardRunsInline(t *testing.T) {
	stages, researcher, _ := happyAgents()
	p := newPipeline(stages, testPipelineConfig())

	result, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{
		Query:    "EV battery market sizing",
		Controls: entity.ResearchControls{Depth: entity.DepthStandard},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Report, "standard depth answers inline")
	assert.Empty(t, result.TaskID)
	assert.Equal(t, entity.StatusCompleted, result.Status)
	assert.Equal(t, 2, researcher.callCount(), "standard depth runs two passes")
	assert.Zero(t, p.store.putCount(), "standard depth must never touch the store")
}

func TestSubmitAsyncReturnsQueuedTask(t *testing.T) {
	stages, researcher, _ := happyAgents()
	p := newPipeline(stages, testPipelineConfig())

	result, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{
		Query:    "EV battery market sizing",
		Controls: entity.ResearchControls{Depth: entity.DepthStandard, AsyncMode: true},
	})
	require.NoError(t, err)

	assert.Nil(t, result.Report)
	require.NotEmpty(t, result.TaskID)
	assert.Equal(t, entity.StatusQueued, result.Status)

	require.Eventually(t, func() bool {
		task, err := p.store.Get(context.Background(), result.TaskID)
		return err == nil && task.Status == entity.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	task, err := p.store.Get(context.Background(), result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, 2, task.CompletedPasses(), "standard depth runs two passes")
	assert.Equal(t, 2, researcher.callCount())
	require.NotNil(t, task.Report)
	assert.Equal(t, task.ID, task.Report.Envelope.Metadata.TaskID)
}

func TestSubmitAsyncModeForcesQueueing(t *testing.T) {
	stages, _, _ := happyAgents()
	p := newPipeline(stages, testPipelineConfig())

	result, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{
		Query:    "short question",
		Controls: entity.ResearchControls{Depth: entity.DepthQuick, AsyncMode: true},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.TaskID)
	assert.Equal(t, entity.StatusQueued, result.Status)
}

func TestSubmitUnknownDepthRejected(t *testing.T) {
	stages, _, _ := happyAgents()
	p := newPipeline(stages, testPipelineConfig())

	_, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{
		Query:    "q",
		Controls: entity.ResearchControls{Depth: "warp"},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrConfiguration, apperrors.CodeOf(err))
}

func TestRetriableStageFailureIsRetried(t *testing.T) {
	stages, researcher, _ := happyAgents()
	researcher.failures = 2
	p := newPipeline(stages, testPipelineConfig())

	result, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{Query: "flaky backend"})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Equal(t, 3, researcher.callCount(), "two failures then success within the attempt cap")
}

func TestRetriesExhaustedEscalates(t *testing.T) {
	stages, researcher, _ := happyAgents()
	researcher.failures = 10
	p := newPipeline(stages, testPipelineConfig())

	_, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{Query: "always failing"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrResearch, apperrors.CodeOf(err))
	assert.Equal(t, 3, researcher.callCount(), "attempts stop at the cap")
}

func TestNonRetriableFailureEscalatesImmediately(t *testing.T) {
	stages, _, writer := happyAgents()
	writer.err = apperrors.NewAppError(apperrors.ErrWriter, "malformed template", nil)
	p := newPipeline(stages, testPipelineConfig())

	_, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{Query: "q"})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrWriter, apperrors.CodeOf(err))
	assert.Equal(t, 1, writer.callCount(), "non-retriable failures are not retried")
}

func TestClarifierFailureIsNonFatal(t *testing.T) {
	stages, _, _ := happyAgents()
	stages.Router = &fakeRouter{decision: entity.RouterDecision{
		Purpose:            entity.PurposeCustom,
		Depth:              entity.DepthQuick,
		Profile:            usecase.ProfileSimpleQuery,
		NeedsClarification: true,
	}}
	clarifier := &fakeClarifier{err: apperrors.NewRetriable(apperrors.ErrClarification, "clarifier down", nil)}
	stages.Clarifier = clarifier
	p := newPipeline(stages, testPipelineConfig())

	result, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{Query: "ambiguous thing"})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Equal(t, 1, clarifier.calls)
}

func TestResearchPassServedFromCache(t *testing.T) {
	stages, researcher, _ := happyAgents()
	p := newPipeline(stages, testPipelineConfig())

	query := "what is a lakehouse"
	key := usecase.Fingerprint(query, entity.DepthQuick, 0)
	p.cache.Set(context.Background(), key, &entity.ResearchResult{
		Findings: []entity.Finding{{ID: "F0-1", Title: "cached", Type: "official", Relevance: "high", SourceURL: "https://example.com/cached"}},
		Notes:    []string{"cached note"},
	}, time.Minute)

	result, err := p.orchestrator.Submit(context.Background(), entity.ResearchRequest{Query: query})
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.Zero(t, researcher.callCount(), "cache hit must skip the live researcher")
	assert.Contains(t, result.Report.Notes, "cached note")
}

func TestTaskAccessors(t *testing.T) {
	stages, _, _ := happyAgents()
	p := newPipeline(stages, testPipelineConfig())
	ctx := context.Background()

	_, err := p.orchestrator.GetTask(ctx, "missing")
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))

	result, err := p.orchestrator.Submit(ctx, entity.ResearchRequest{
		Query:    "persisted task",
		Controls: entity.ResearchControls{Depth: entity.DepthStandard, AsyncMode: true},
	})
	require.NoError(t, err)

	task, err := p.orchestrator.GetTask(ctx, result.TaskID)
	require.NoError(t, err)
	assert.Equal(t, result.TaskID, task.ID)

	tasks, err := p.orchestrator.ListTasks(ctx, nil, 10)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.Eventually(t, func() bool {
		task, err := p.store.Get(ctx, result.TaskID)
		return err == nil && task.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, p.orchestrator.DeleteTask(ctx, result.TaskID))
	_, err = p.orchestrator.GetTask(ctx, result.TaskID)
	assert.Equal(t, apperrors.ErrNotFound, apperrors.CodeOf(err))
}
