package entity

import "time"

// Citation is a single cited source.
type Citation struct {
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
	Note   string `json:"note,omitempty"`
}

// Finding is a normalized research result item.
type Finding struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Type       string   `json:"type"`
	Relevance  string   `json:"relevance"`
	SourceURL  string   `json:"source_url,omitempty"`
	SourceName string   `json:"source_name,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	KeyPoints  []string `json:"key_points,omitempty"`
}

// Evidence ties a claim to the finding that supports it.
type Evidence struct {
	ID         string `json:"id"`
	Claim      string `json:"claim"`
	Excerpt    string `json:"excerpt,omitempty"`
	SourceID   string `json:"source_id"`
	SourceURL  string `json:"source_url,omitempty"`
	Confidence string `json:"confidence"`
}

// QualityReport is the fact-checker's verdict on a draft.
type QualityReport struct {
	CitationCoverageScore     float64  `json:"citation_coverage_score"`
	TemplateCompletenessScore float64  `json:"template_completeness_score"`
	MissingSections           []string `json:"missing_sections,omitempty"`
	UncitedNumbers            bool     `json:"uncited_numbers"`
	Contradictions            bool     `json:"contradictions"`
	BrokenURLs                []string `json:"broken_urls,omitempty"`
}

// EnvelopeMetadata describes the request the report answers.
type EnvelopeMetadata struct {
	Purpose   Purpose   `json:"purpose"`
	Depth     Depth     `json:"depth"`
	Audience  Audience  `json:"audience"`
	Region    string    `json:"region,omitempty"`
	Timeframe string    `json:"timeframe,omitempty"`
	TaskID    string    `json:"task_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Envelope is the stable outer report structure wrapping the
// purpose-specific deliverable body.
type Envelope struct {
	Title              string           `json:"title"`
	Metadata           EnvelopeMetadata `json:"metadata"`
	ExecutiveSummary   string           `json:"executive_summary"`
	Deliverable        string           `json:"deliverable"`
	Citations          []Citation       `json:"citations"`
	AssumptionsAndGaps string           `json:"assumptions_and_gaps"`
	OpenQuestions      []string         `json:"open_questions,omitempty"`
	NextSteps          []string         `json:"next_steps,omitempty"`
}

// Draft is the writer stage output before fact-checking.
type Draft struct {
	Envelope         Envelope `json:"envelope"`
	RenderedMarkdown string   `json:"rendered_markdown,omitempty"`
}

// BibliographyEntry is one numbered source in the report bibliography.
type BibliographyEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	Annotation string `json:"annotation,omitempty"`
}

// Report is the fully assembled pipeline result.
type Report struct {
	Envelope         Envelope            `json:"envelope"`
	Quality          *QualityReport      `json:"quality,omitempty"`
	Bibliography     []BibliographyEntry `json:"bibliography,omitempty"`
	SourceMap        map[string]string   `json:"source_map,omitempty"`
	Findings         []Finding           `json:"findings,omitempty"`
	Evidence         []Evidence          `json:"evidence,omitempty"`
	Notes            []string            `json:"notes,omitempty"`
	RenderedMarkdown string              `json:"rendered_markdown,omitempty"`
	OutputFormat     OutputFormat        `json:"output_format"`
}
