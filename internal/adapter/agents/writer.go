package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const writerSystemPrompt = "You are the report writer. Compose the deliverable from the supplied findings only; never invent facts or sources. Match the tone to the audience and keep the executive summary under 200 words. Flag gaps and assumptions explicitly."

// Writer composes the report envelope from accumulated research, degrading
// to a purpose-specific template when no model is reachable.
type Writer struct {
	llm    *OllamaClient
	model  string
	logger *zap.Logger
}

// NewWriter creates the drafting stage adapter.
func NewWriter(llm *OllamaClient, model string, logger *zap.Logger) *Writer {
	return &Writer{llm: llm, model: model, logger: logger}
}

func (w *Writer) Name() string { return "writer" }

func (w *Writer) Available(ctx context.Context) bool {
	return w.llm != nil && w.llm.Available(ctx)
}

func (w *Writer) Write(ctx context.Context, input agent.WriterInput) (*entity.Draft, error) {
	if !w.Available(ctx) {
		w.logger.Warn("model unreachable, drafting from template")
		return templateDraft(input), nil
	}

	prompt := fmt.Sprintf(
		"Compose a %s report for a %s audience.\n\nQuery: %s\n\nFindings:\n%s\n\nReturn JSON with fields: title, executive_summary, deliverable, assumptions_and_gaps, open_questions (array), next_steps (array). The deliverable must follow the %s structure.",
		input.Decision.Purpose, input.Controls.Audience, input.Query,
		findingsDigest(input.Research), input.Decision.Purpose)

	raw, err := w.llm.Complete(ctx, w.model, writerSystemPrompt, prompt, true)
	if err != nil {
		return nil, apperrors.NewRetriable(apperrors.ErrWriter, "writer invocation failed", err)
	}

	var parsed struct {
		Title              string   `json:"title"`
		ExecutiveSummary   string   `json:"executive_summary"`
		Deliverable        string   `json:"deliverable"`
		AssumptionsAndGaps string   `json:"assumptions_and_gaps"`
		OpenQuestions      []string `json:"open_questions"`
		NextSteps          []string `json:"next_steps"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		return nil, apperrors.NewRetriable(apperrors.ErrWriter, "writer returned malformed draft", err)
	}
	if parsed.Title == "" || parsed.Deliverable == "" {
		return nil, apperrors.NewRetriable(apperrors.ErrWriter, "writer returned incomplete draft", nil)
	}

	draft := &entity.Draft{
		Envelope: entity.Envelope{
			Title:              parsed.Title,
			Metadata:           envelopeMetadata(input),
			ExecutiveSummary:   parsed.ExecutiveSummary,
			Deliverable:        parsed.Deliverable,
			Citations:          citationsFromResearch(input.Research),
			AssumptionsAndGaps: parsed.AssumptionsAndGaps,
			OpenQuestions:      parsed.OpenQuestions,
			NextSteps:          parsed.NextSteps,
		},
	}
	return draft, nil
}

// templateDraft assembles a draft from the research alone: summary from the
// strongest snippets, deliverable skeleton by purpose.
func templateDraft(input agent.WriterInput) *entity.Draft {
	var snippets []string
	for _, r := range input.Research {
		for _, f := range r.Findings {
			if f.Snippet != "" {
				snippets = append(snippets, f.Snippet)
			}
			if len(snippets) >= 3 {
				break
			}
		}
	}

	summary := strings.Join(snippets, " ")
	if summary == "" {
		summary = "No research findings were available for this query."
	}

	return &entity.Draft{
		Envelope: entity.Envelope{
			Title:              fmt.Sprintf("Research Report: %s", input.Query),
			Metadata:           envelopeMetadata(input),
			ExecutiveSummary:   summary,
			Deliverable:        deliverableSkeleton(input.Decision.Purpose, input.Query),
			Citations:          citationsFromResearch(input.Research),
			AssumptionsAndGaps: "Drafted without a generative model; findings are summarized verbatim and gaps were not analyzed.",
		},
	}
}

func deliverableSkeleton(purpose entity.Purpose, query string) string {
	switch purpose {
	case entity.PurposeBRD:
		return fmt.Sprintf("## Background\n%s\n\n## Functional Requirements\n(to be elaborated)\n\n## Non-Functional Requirements\n(to be elaborated)", query)
	case entity.PurposeCompanyResearch:
		return fmt.Sprintf("## Company Overview\n%s\n\n## Business Model\n(to be elaborated)\n\n## Risks\n(to be elaborated)", query)
	case entity.PurposeReqElaboration:
		return fmt.Sprintf("## Requirement\n%s\n\n## User Stories\n(to be elaborated)\n\n## Acceptance Criteria\n(to be elaborated)", query)
	case entity.PurposeMarketQuery:
		return fmt.Sprintf("## Market Question\n%s\n\n## Landscape\n(to be elaborated)\n\n## Outlook\n(to be elaborated)", query)
	default:
		return fmt.Sprintf("## Question\n%s\n\n## Answer\n(to be elaborated)", query)
	}
}

func envelopeMetadata(input agent.WriterInput) entity.EnvelopeMetadata {
	return entity.EnvelopeMetadata{
		Purpose:   input.Decision.Purpose,
		Depth:     input.Decision.Depth,
		Audience:  input.Controls.Audience,
		Region:    input.Controls.Region,
		Timeframe: input.Controls.Timeframe,
		TaskID:    input.TaskID,
		CreatedAt: time.Now().UTC(),
	}
}

func citationsFromResearch(research []entity.ResearchResult) []entity.Citation {
	seen := make(map[string]bool)
	var citations []entity.Citation
	for _, r := range research {
		for _, f := range r.Findings {
			if f.SourceURL == "" || seen[f.SourceURL] {
				continue
			}
			seen[f.SourceURL] = true
			source := f.SourceName
			if source == "" {
				source = f.Title
			}
			citations = append(citations, entity.Citation{
				Source: source,
				URL:    f.SourceURL,
				Note:   f.Snippet,
			})
		}
	}
	return citations
}

func findingsDigest(research []entity.ResearchResult) string {
	var b strings.Builder
	for _, r := range research {
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "- [%s] %s", f.Relevance, f.Title)
			if f.Snippet != "" {
				fmt.Fprintf(&b, ": %s", f.Snippet)
			}
			if f.SourceURL != "" {
				fmt.Fprintf(&b, " (%s)", f.SourceURL)
			}
			b.WriteString("\n")
		}
		for _, n := range r.Notes {
			fmt.Fprintf(&b, "- note: %s\n", n)
		}
	}
	if b.Len() == 0 {
		return "- (no findings)"
	}
	return b.String()
}
