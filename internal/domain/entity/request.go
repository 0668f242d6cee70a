package entity

// Purpose is the intended use of the requested report.
type Purpose string

const (
	PurposeBRD             Purpose = "brd"
	PurposeCompanyResearch Purpose = "company_research"
	PurposeReqElaboration  Purpose = "req_elaboration"
	PurposeMarketQuery     Purpose = "market_query"
	PurposeCustom          Purpose = "custom"
)

// Depth is the requested research intensity. It drives the pass count and
// the sync/async decision.
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

// Audience is the target readership of the report.
type Audience string

const (
	AudienceExec        Audience = "exec"
	AudienceProduct     Audience = "product"
	AudienceEngineering Audience = "engineering"
	AudienceMixed       Audience = "mixed"
)

// OutputFormat selects the rendering of the assembled report.
type OutputFormat string

const (
	OutputMarkdown OutputFormat = "markdown"
	OutputJSON     OutputFormat = "json"
)

// ResearchControls tune the research strategy for one request.
type ResearchControls struct {
	Purpose      Purpose      `json:"purpose"`
	Depth        Depth        `json:"depth"`
	Audience     Audience     `json:"audience"`
	Region       string       `json:"region,omitempty"`
	Timeframe    string       `json:"timeframe,omitempty"`
	OutputFormat OutputFormat `json:"output_format"`
	AsyncMode    bool         `json:"async_mode"`
}

// ResearchRequest is a user research request after API-layer binding.
type ResearchRequest struct {
	Query    string           `json:"query"`
	Controls ResearchControls `json:"controls"`
}

// Normalize fills zero-valued controls with their defaults.
func (r *ResearchRequest) Normalize() {
	if r.Controls.Purpose == "" {
		r.Controls.Purpose = PurposeCustom
	}
	if r.Controls.Depth == "" {
		r.Controls.Depth = DepthQuick
	}
	if r.Controls.Audience == "" {
		r.Controls.Audience = AudienceMixed
	}
	if r.Controls.OutputFormat == "" {
		r.Controls.OutputFormat = OutputMarkdown
	}
}
