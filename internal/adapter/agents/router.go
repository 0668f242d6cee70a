package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	"github.com/wekeepgrowing/research-agent/internal/usecase"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const routerSystemPrompt = "You are the routing orchestrator. Classify the user's intent into supported report purposes (brd, company_research, req_elaboration, market_query, custom) and assign depth (quick, standard, deep). Respect user-specified purpose and depth when present. Keep responses terse and do not perform research yourself. Deep depth should be chosen only when the user explicitly asks for exhaustive research or citations."

// Router classifies request intent with a local model, degrading to keyword
// heuristics when the model server is unreachable or returns garbage.
type Router struct {
	llm    *OllamaClient
	model  string
	logger *zap.Logger
}

// NewRouter creates the routing stage adapter.
func NewRouter(llm *OllamaClient, model string, logger *zap.Logger) *Router {
	return &Router{llm: llm, model: model, logger: logger}
}

func (r *Router) Name() string { return "router" }

func (r *Router) Available(ctx context.Context) bool {
	return r.llm != nil && r.llm.Available(ctx)
}

func (r *Router) Classify(ctx context.Context, input agent.RouterInput) (*entity.RouterDecision, error) {
	if !r.Available(ctx) {
		r.logger.Warn("model unreachable, routing heuristically")
		return HeuristicClassify(input), nil
	}

	prompt := fmt.Sprintf(
		"Classify the following user query.\n\nQuery: %s\n", input.Query)
	if input.Controls.Purpose != "" && input.Controls.Purpose != entity.PurposeCustom {
		prompt += fmt.Sprintf("User-specified purpose hint: %s\n", input.Controls.Purpose)
	}
	if input.Controls.Depth != "" {
		prompt += fmt.Sprintf("User-specified depth hint: %s\n", input.Controls.Depth)
	}
	prompt += "\nReturn JSON with fields: purpose (brd|company_research|req_elaboration|market_query|custom), depth (quick|standard|deep), needs_clarification (boolean)."

	raw, err := r.llm.Complete(ctx, r.model, routerSystemPrompt, prompt, true)
	if err != nil {
		return nil, apperrors.NewRetriable(apperrors.ErrRouting, "router invocation failed", err)
	}

	var parsed struct {
		Purpose            string `json:"purpose"`
		Depth              string `json:"depth"`
		NeedsClarification bool   `json:"needs_clarification"`
	}
	if err := decodeJSON(raw, &parsed); err != nil {
		r.logger.Warn("router response unparseable, routing heuristically", zap.Error(err))
		return HeuristicClassify(input), nil
	}

	decision := HeuristicClassify(input)
	if p := entity.Purpose(parsed.Purpose); validPurpose(p) {
		decision.Purpose = p
	}
	if d := entity.Depth(parsed.Depth); validDepth(d) && input.Controls.Depth == "" {
		decision.Depth = d
	}
	decision.NeedsClarification = parsed.NeedsClarification
	decision.Profile = profileForPurpose(decision.Purpose, input.Query)
	decision.NeedDeepResearch = decision.Depth == entity.DepthDeep
	return decision, nil
}

// HeuristicClassify routes by keyword matching. Deterministic and total; it
// is the fallback when no model is reachable and the baseline the model's
// answer is merged onto.
func HeuristicClassify(input agent.RouterInput) *entity.RouterDecision {
	normalized := strings.ToLower(input.Query)
	matches := func(keywords ...string) bool {
		for _, k := range keywords {
			if strings.Contains(normalized, k) {
				return true
			}
		}
		return false
	}

	purpose := entity.PurposeCustom
	switch {
	case matches("brd", "business requirements", "functional spec", "requirements doc"):
		purpose = entity.PurposeBRD
	case matches("company", "business model", "valuation", "fundamentals"):
		purpose = entity.PurposeCompanyResearch
	case matches("requirement", "user story", "acceptance criteria", "epic"):
		purpose = entity.PurposeReqElaboration
	case matches("market", "trend", "industry", "sizing"):
		purpose = entity.PurposeMarketQuery
	}

	profile := profileForPurpose(purpose, input.Query)

	depth := input.Controls.Depth
	if depth == "" {
		switch {
		case matches("deep", "comprehensive", "detailed", "full report"):
			depth = entity.DepthDeep
		case matches("quick", "brief", "summary", "overview") || profile == usecase.ProfileSimpleQuery:
			depth = entity.DepthQuick
		default:
			depth = entity.DepthStandard
		}
	}

	return &entity.RouterDecision{
		Purpose:          purpose,
		Depth:            depth,
		Profile:          profile,
		NeedDeepResearch: depth == entity.DepthDeep || matches("deep research", "background research"),
	}
}

func profileForPurpose(purpose entity.Purpose, query string) string {
	switch purpose {
	case entity.PurposeBRD:
		return usecase.ProfileBRDModeling
	case entity.PurposeCompanyResearch:
		return usecase.ProfileCompanyResearch
	case entity.PurposeReqElaboration:
		return usecase.ProfileReqElaboration
	case entity.PurposeMarketQuery:
		return usecase.ProfileMarketQuery
	}
	if len(strings.Fields(query)) > 8 {
		return usecase.ProfileMarketQuery
	}
	return usecase.ProfileSimpleQuery
}

func validPurpose(p entity.Purpose) bool {
	switch p {
	case entity.PurposeBRD, entity.PurposeCompanyResearch, entity.PurposeReqElaboration,
		entity.PurposeMarketQuery, entity.PurposeCustom:
		return true
	}
	return false
}

func validDepth(d entity.Depth) bool {
	switch d {
	case entity.DepthQuick, entity.DepthStandard, entity.DepthDeep:
		return true
	}
	return false
}
