package usecase

import (
	"fmt"
	"strings"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

// assembleReport builds the final report from the pipeline outputs: a
// bibliography numbered from the distinct finding sources, a claim-to-source
// map from the evidence, and the rendering selected by the output format.
func assembleReport(req entity.ResearchRequest, research []entity.ResearchResult, draft *entity.Draft, quality *entity.QualityReport, taskID string) *entity.Report {
	var findings []entity.Finding
	var evidence []entity.Evidence
	var notes []string
	seenNotes := make(map[string]bool)
	for _, r := range research {
		findings = append(findings, r.Findings...)
		evidence = append(evidence, r.Evidence...)
		for _, n := range r.Notes {
			if n == "" || seenNotes[n] {
				continue
			}
			seenNotes[n] = true
			notes = append(notes, n)
		}
	}

	bibliography := buildBibliography(findings)

	sourceMap := make(map[string]string, len(evidence))
	for _, ev := range evidence {
		if ev.Claim != "" && ev.SourceID != "" {
			sourceMap[ev.Claim] = ev.SourceID
		}
	}

	report := &entity.Report{
		Envelope:     draft.Envelope,
		Quality:      quality,
		Bibliography: bibliography,
		SourceMap:    sourceMap,
		Findings:     findings,
		Evidence:     evidence,
		Notes:        notes,
		OutputFormat: req.Controls.OutputFormat,
	}
	report.Envelope.Metadata.TaskID = taskID

	if req.Controls.OutputFormat == entity.OutputMarkdown {
		report.RenderedMarkdown = draft.RenderedMarkdown
		if report.RenderedMarkdown == "" {
			report.RenderedMarkdown = renderMarkdown(draft.Envelope, bibliography)
		}
	}
	return report
}

// buildBibliography numbers the distinct sources across all findings,
// keyed by URL and falling back to title for unlinked sources.
func buildBibliography(findings []entity.Finding) []entity.BibliographyEntry {
	seen := make(map[string]bool)
	var entries []entity.BibliographyEntry
	for _, f := range findings {
		key := f.SourceURL
		if key == "" {
			key = f.Title
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		title := f.SourceName
		if title == "" {
			title = f.Title
		}
		entries = append(entries, entity.BibliographyEntry{
			ID:         fmt.Sprintf("S%d", len(entries)+1),
			Title:      title,
			URL:        f.SourceURL,
			Annotation: f.Snippet,
		})
	}
	return entries
}

func renderMarkdown(env entity.Envelope, bibliography []entity.BibliographyEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", env.Title)
	if env.ExecutiveSummary != "" {
		fmt.Fprintf(&b, "## Executive Summary\n\n%s\n\n", env.ExecutiveSummary)
	}
	if env.Deliverable != "" {
		fmt.Fprintf(&b, "## Deliverable\n\n%s\n\n", env.Deliverable)
	}
	if env.AssumptionsAndGaps != "" {
		fmt.Fprintf(&b, "## Assumptions and Gaps\n\n%s\n\n", env.AssumptionsAndGaps)
	}
	if len(env.OpenQuestions) > 0 {
		b.WriteString("## Open Questions\n\n")
		for _, q := range env.OpenQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}
	if len(env.NextSteps) > 0 {
		b.WriteString("## Next Steps\n\n")
		for _, s := range env.NextSteps {
			fmt.Fprintf(&b, "- %s\n", s)
		}
		b.WriteString("\n")
	}
	if len(bibliography) > 0 {
		b.WriteString("## Sources\n\n")
		for _, entry := range bibliography {
			if entry.URL != "" {
				fmt.Fprintf(&b, "%s. [%s](%s)\n", strings.TrimPrefix(entry.ID, "S"), entry.Title, entry.URL)
			} else {
				fmt.Fprintf(&b, "%s. %s\n", strings.TrimPrefix(entry.ID, "S"), entry.Title)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}
