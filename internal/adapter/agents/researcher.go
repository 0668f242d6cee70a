package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const researchSystemPrompt = "You are the research specialist. Investigate the query favoring authoritative sources, always citing sources for key claims and annotating uncertainty. Depth controls effort: quick means minimal searching, standard balanced, deep exhaustive with cross-verification. Return structured findings only."

// Source preference order used to rank findings, strongest first.
var sourcePreference = []string{
	"primary", "regulator", "filing", "official", "analyst", "news", "community", "unknown",
}

// Researcher gathers findings for one pass through a local model, degrading
// to a deterministic placeholder result when no model is reachable.
type Researcher struct {
	llm    *OllamaClient
	model  string
	logger *zap.Logger
}

// NewResearcher creates the research stage adapter.
func NewResearcher(llm *OllamaClient, model string, logger *zap.Logger) *Researcher {
	return &Researcher{llm: llm, model: model, logger: logger}
}

func (r *Researcher) Name() string { return "researcher" }

func (r *Researcher) Available(ctx context.Context) bool {
	return r.llm != nil && r.llm.Available(ctx)
}

func (r *Researcher) Research(ctx context.Context, input agent.ResearchInput) (*entity.ResearchResult, error) {
	queries := buildSearchQueries(input)

	if !r.Available(ctx) {
		r.logger.Warn("model unreachable, returning placeholder research",
			zap.Int("pass", input.PassIndex))
		return placeholderResult(input, queries), nil
	}

	prompt := fmt.Sprintf(
		"Research the following query (pass %d of a %s-depth investigation, profile %s).\n\nQuery: %s\n\nIssue up to %d conceptual searches along these angles:\n- %s\n\nReturn JSON with fields: findings (array of {title, type, relevance, source_url, source_name, snippet, key_points}), evidence (array of {claim, excerpt, source_url, confidence}), notes (array of strings), confidence (low|medium|high). Source type is one of %s; relevance is low|medium|high.",
		input.PassIndex+1, input.Depth, input.Profile, input.Query,
		input.MaxSearches, strings.Join(queries, "\n- "), strings.Join(sourcePreference, "|"))

	raw, err := r.llm.Complete(ctx, r.model, researchSystemPrompt, prompt, true)
	if err != nil {
		return nil, apperrors.NewRetriable(apperrors.ErrResearch, "researcher invocation failed", err)
	}

	var parsed struct {
		Findings []entity.Finding `json:"findings"`
		Evidence []struct {
			Claim      string `json:"claim"`
			Excerpt    string `json:"excerpt"`
			SourceURL  string `json:"source_url"`
			Confidence string `json:"confidence"`
		} `json:"evidence"`
		Notes      []string `json:"notes"`
		Confidence string   `json:"confidence"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		return nil, apperrors.NewRetriable(apperrors.ErrResearch, "researcher returned malformed findings", err)
	}

	result := &entity.ResearchResult{
		PassIndex:     input.PassIndex,
		Profile:       input.Profile,
		Model:         r.model,
		SearchQueries: queries,
		Findings:      rankFindings(parsed.Findings),
		Notes:         parsed.Notes,
		Confidence:    parsed.Confidence,
	}
	for i := range result.Findings {
		result.Findings[i].ID = findingID(input.PassIndex, i)
	}
	for i, ev := range parsed.Evidence {
		sourceID := ""
		for _, f := range result.Findings {
			if f.SourceURL != "" && f.SourceURL == ev.SourceURL {
				sourceID = f.ID
				break
			}
		}
		result.Evidence = append(result.Evidence, entity.Evidence{
			ID:         fmt.Sprintf("E%d-%d", input.PassIndex, i+1),
			Claim:      ev.Claim,
			Excerpt:    ev.Excerpt,
			SourceID:   sourceID,
			SourceURL:  ev.SourceURL,
			Confidence: ev.Confidence,
		})
	}
	return result, nil
}

// buildSearchQueries derives per-pass search angles: the first pass covers
// the query itself, later passes refine toward recency and analysis.
func buildSearchQueries(input agent.ResearchInput) []string {
	angles := []string{
		input.Query,
		input.Query + " key facts",
		input.Query + " recent developments",
		input.Query + " analysis",
	}
	offset := input.PassIndex
	if offset >= len(angles) {
		offset = len(angles) - 1
	}
	max := input.MaxSearches
	if max <= 0 {
		max = 2
	}
	queries := angles[offset:]
	if len(queries) > max {
		queries = queries[:max]
	}
	return queries
}

// rankFindings orders findings by source preference, strongest first.
func rankFindings(findings []entity.Finding) []entity.Finding {
	rank := make(map[string]int, len(sourcePreference))
	for i, label := range sourcePreference {
		rank[label] = i
	}
	rankOf := func(f entity.Finding) int {
		if r, ok := rank[f.Type]; ok {
			return r
		}
		return len(sourcePreference)
	}

	ranked := append([]entity.Finding(nil), findings...)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0 && rankOf(ranked[j]) < rankOf(ranked[j-1]); j-- {
			ranked[j], ranked[j-1] = ranked[j-1], ranked[j]
		}
	}
	return ranked
}

func placeholderResult(input agent.ResearchInput, queries []string) *entity.ResearchResult {
	result := &entity.ResearchResult{
		PassIndex:     input.PassIndex,
		Profile:       input.Profile,
		SearchQueries: queries,
		Confidence:    "low",
		Notes: []string{
			fmt.Sprintf("pass %d executed without a reachable model; findings are placeholders", input.PassIndex+1),
		},
	}
	for i, q := range queries {
		result.Findings = append(result.Findings, entity.Finding{
			ID:        findingID(input.PassIndex, i),
			Title:     q,
			Type:      "unknown",
			Relevance: "low",
			Snippet:   "No live research performed for this angle.",
		})
	}
	return result
}

func findingID(pass, index int) string {
	return fmt.Sprintf("F%d-%d", pass, index+1)
}
