package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const factCheckerSystemPrompt = "You audit research reports. Check the draft for internal contradictions, numeric claims without citations, and empty template sections. Judge only what is in the draft; do not research."

// FactChecker scores a draft's quality. Coverage and completeness are always
// computed structurally; the model, when reachable, additionally judges
// contradictions and uncited numeric claims.
type FactChecker struct {
	llm    *OllamaClient
	model  string
	logger *zap.Logger
}

// NewFactChecker creates the validation stage adapter.
func NewFactChecker(llm *OllamaClient, model string, logger *zap.Logger) *FactChecker {
	return &FactChecker{llm: llm, model: model, logger: logger}
}

func (f *FactChecker) Name() string { return "fact_checker" }

func (f *FactChecker) Available(ctx context.Context) bool {
	return f.llm != nil && f.llm.Available(ctx)
}

func (f *FactChecker) Check(ctx context.Context, draft entity.Draft) (*entity.QualityReport, error) {
	report := structuralQuality(draft)

	if !f.Available(ctx) {
		f.logger.Warn("model unreachable, structural quality checks only")
		return report, nil
	}

	prompt := fmt.Sprintf(
		"Audit this draft.\n\nTitle: %s\n\nExecutive summary:\n%s\n\nDeliverable:\n%s\n\nCitations: %d\n\nReturn JSON with fields: contradictions (boolean), uncited_numbers (boolean), missing_sections (array of strings).",
		draft.Envelope.Title, draft.Envelope.ExecutiveSummary, draft.Envelope.Deliverable,
		len(draft.Envelope.Citations))

	raw, err := f.llm.Complete(ctx, f.model, factCheckerSystemPrompt, prompt, true)
	if err != nil {
		return nil, apperrors.NewRetriable(apperrors.ErrFactCheck, "fact checker invocation failed", err)
	}

	var parsed struct {
		Contradictions  bool     `json:"contradictions"`
		UncitedNumbers  bool     `json:"uncited_numbers"`
		MissingSections []string `json:"missing_sections"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		f.logger.Warn("fact checker response unparseable, structural checks only", zap.Error(err))
		return report, nil
	}

	report.Contradictions = parsed.Contradictions
	report.UncitedNumbers = parsed.UncitedNumbers
	report.MissingSections = mergeSections(report.MissingSections, parsed.MissingSections)
	return report, nil
}

// structuralQuality computes the scores derivable from the draft's shape:
// citation coverage over linked sources and template section completeness.
func structuralQuality(draft entity.Draft) *entity.QualityReport {
	env := draft.Envelope

	linked := 0
	for _, c := range env.Citations {
		if c.URL != "" {
			linked++
		}
	}
	coverage := 0.0
	if len(env.Citations) > 0 {
		coverage = float64(linked) / float64(len(env.Citations))
	}

	sections := map[string]string{
		"title":                env.Title,
		"executive_summary":    env.ExecutiveSummary,
		"deliverable":          env.Deliverable,
		"assumptions_and_gaps": env.AssumptionsAndGaps,
	}
	var missing []string
	filled := 0
	for name, content := range sections {
		if strings.TrimSpace(content) == "" {
			missing = append(missing, name)
			continue
		}
		filled++
	}

	return &entity.QualityReport{
		CitationCoverageScore:     coverage,
		TemplateCompletenessScore: float64(filled) / float64(len(sections)),
		MissingSections:           missing,
	}
}

func mergeSections(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	merged := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		merged = append(merged, s)
	}
	return merged
}
