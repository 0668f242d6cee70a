package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

func sampleResearch() []entity.ResearchResult {
	return []entity.ResearchResult{{
		PassIndex: 0,
		Findings: []entity.Finding{
			{ID: "F0-1", Title: "Filing", Type: "filing", Relevance: "high", SourceURL: "https://example.com/filing", SourceName: "Regulator", Snippet: "Revenue grew."},
			{ID: "F0-2", Title: "Blog post", Type: "community", Relevance: "low", SourceURL: "https://example.com/blog", Snippet: "Opinions vary."},
			{ID: "F0-3", Title: "Unlinked", Type: "unknown", Relevance: "low"},
		},
	}}
}

func TestTemplateDraft(t *testing.T) {
	input := agent.WriterInput{
		Query: "Example Corp fundamentals",
		Controls: entity.ResearchControls{
			Audience: entity.AudienceExec,
		},
		Decision: entity.RouterDecision{
			Purpose: entity.PurposeCompanyResearch,
			Depth:   entity.DepthStandard,
		},
		Research: sampleResearch(),
		TaskID:   "task-1",
	}

	draft := templateDraft(input)

	assert.Contains(t, draft.Envelope.Title, "Example Corp fundamentals")
	assert.Contains(t, draft.Envelope.ExecutiveSummary, "Revenue grew.")
	assert.Contains(t, draft.Envelope.Deliverable, "## Company Overview")
	assert.Equal(t, "task-1", draft.Envelope.Metadata.TaskID)
	assert.Equal(t, entity.DepthStandard, draft.Envelope.Metadata.Depth)

	// Only findings with URLs become citations, deduplicated.
	require.Len(t, draft.Envelope.Citations, 2)
	assert.Equal(t, "Regulator", draft.Envelope.Citations[0].Source)
}

func TestTemplateDraftWithoutFindings(t *testing.T) {
	draft := templateDraft(agent.WriterInput{
		Query:    "empty",
		Decision: entity.RouterDecision{Purpose: entity.PurposeCustom},
	})
	assert.NotEmpty(t, draft.Envelope.ExecutiveSummary)
	assert.Empty(t, draft.Envelope.Citations)
}

func TestDeliverableSkeletonPerPurpose(t *testing.T) {
	assert.Contains(t, deliverableSkeleton(entity.PurposeBRD, "q"), "Functional Requirements")
	assert.Contains(t, deliverableSkeleton(entity.PurposeReqElaboration, "q"), "Acceptance Criteria")
	assert.Contains(t, deliverableSkeleton(entity.PurposeMarketQuery, "q"), "Landscape")
	assert.Contains(t, deliverableSkeleton(entity.PurposeCustom, "q"), "Answer")
}

func TestStructuralQuality(t *testing.T) {
	t.Run("complete draft", func(t *testing.T) {
		quality := structuralQuality(entity.Draft{Envelope: entity.Envelope{
			Title:              "t",
			ExecutiveSummary:   "s",
			Deliverable:        "d",
			AssumptionsAndGaps: "a",
			Citations: []entity.Citation{
				{Source: "linked", URL: "https://example.com"},
				{Source: "unlinked"},
			},
		}})
		assert.InDelta(t, 0.5, quality.CitationCoverageScore, 0.001)
		assert.InDelta(t, 1.0, quality.TemplateCompletenessScore, 0.001)
		assert.Empty(t, quality.MissingSections)
	})

	t.Run("missing sections are named", func(t *testing.T) {
		quality := structuralQuality(entity.Draft{Envelope: entity.Envelope{Title: "t"}})
		assert.InDelta(t, 0.25, quality.TemplateCompletenessScore, 0.001)
		assert.Contains(t, quality.MissingSections, "deliverable")
		assert.Contains(t, quality.MissingSections, "executive_summary")
	})
}

func TestBuildSearchQueries(t *testing.T) {
	t.Run("first pass leads with the raw query", func(t *testing.T) {
		queries := buildSearchQueries(agent.ResearchInput{Query: "ev market", PassIndex: 0, MaxSearches: 2})
		require.Len(t, queries, 2)
		assert.Equal(t, "ev market", queries[0])
	})

	t.Run("later passes shift toward refinement", func(t *testing.T) {
		queries := buildSearchQueries(agent.ResearchInput{Query: "ev market", PassIndex: 2, MaxSearches: 4})
		assert.Equal(t, "ev market recent developments", queries[0])
	})

	t.Run("pass index beyond angles still yields a query", func(t *testing.T) {
		queries := buildSearchQueries(agent.ResearchInput{Query: "ev market", PassIndex: 9, MaxSearches: 3})
		require.NotEmpty(t, queries)
	})
}

func TestRankFindings(t *testing.T) {
	ranked := rankFindings([]entity.Finding{
		{ID: "a", Type: "community"},
		{ID: "b", Type: "regulator"},
		{ID: "c", Type: "news"},
		{ID: "d", Type: "made-up"},
	})
	assert.Equal(t, "b", ranked[0].ID)
	assert.Equal(t, "d", ranked[len(ranked)-1].ID)
}
