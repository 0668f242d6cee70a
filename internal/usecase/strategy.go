package usecase

import "github.com/wekeepgrowing/research-agent/internal/domain/entity"

// Strategy tunes one research pass for a profile and depth.
type Strategy struct {
	Effort       string
	MaxSearches  int
	RecencyBias  bool
	DeepResearch bool
}

type strategyKey struct {
	profile string
	depth   entity.Depth
}

// Search profiles assigned by the router.
const (
	ProfileBRDModeling     = "BRD_MODELING"
	ProfileCompanyResearch = "COMPANY_RESEARCH"
	ProfileReqElaboration  = "REQUIREMENT_ELABORATION"
	ProfileMarketQuery     = "MARKET_OR_TREND_QUERY"
	ProfileSimpleQuery     = "DEFINITION_OR_SIMPLE_QUERY"
)

var strategyMatrix = map[strategyKey]Strategy{
	{ProfileSimpleQuery, entity.DepthQuick}:    {Effort: "low", MaxSearches: 2, RecencyBias: true},
	{ProfileSimpleQuery, entity.DepthStandard}: {Effort: "medium", MaxSearches: 3, RecencyBias: true},

	{ProfileCompanyResearch, entity.DepthQuick}:    {Effort: "low", MaxSearches: 2, RecencyBias: true},
	{ProfileCompanyResearch, entity.DepthStandard}: {Effort: "high", MaxSearches: 4, RecencyBias: true},
	{ProfileCompanyResearch, entity.DepthDeep}:     {Effort: "high", MaxSearches: 8, RecencyBias: true, DeepResearch: true},

	{ProfileBRDModeling, entity.DepthQuick}:    {Effort: "medium", MaxSearches: 2},
	{ProfileBRDModeling, entity.DepthStandard}: {Effort: "high", MaxSearches: 4},
	{ProfileBRDModeling, entity.DepthDeep}:     {Effort: "high", MaxSearches: 8, DeepResearch: true},

	{ProfileReqElaboration, entity.DepthQuick}:    {Effort: "medium", MaxSearches: 2},
	{ProfileReqElaboration, entity.DepthStandard}: {Effort: "high", MaxSearches: 3},
	{ProfileReqElaboration, entity.DepthDeep}:     {Effort: "high", MaxSearches: 8, DeepResearch: true},

	{ProfileMarketQuery, entity.DepthQuick}:    {Effort: "medium", MaxSearches: 2, RecencyBias: true},
	{ProfileMarketQuery, entity.DepthStandard}: {Effort: "high", MaxSearches: 4, RecencyBias: true},
	{ProfileMarketQuery, entity.DepthDeep}:     {Effort: "high", MaxSearches: 8, RecencyBias: true, DeepResearch: true},
}

// SelectStrategy returns the strategy for a profile and depth, falling back
// to the profile's standard-depth entry when the exact combination is not
// in the matrix.
func SelectStrategy(profile string, depth entity.Depth) Strategy {
	if profile == "" {
		profile = ProfileSimpleQuery
	}
	if s, ok := strategyMatrix[strategyKey{profile, depth}]; ok {
		return s
	}
	if s, ok := strategyMatrix[strategyKey{profile, entity.DepthStandard}]; ok {
		return s
	}
	return strategyMatrix[strategyKey{ProfileSimpleQuery, entity.DepthStandard}]
}
