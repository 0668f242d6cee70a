package usecase

import (
	"fmt"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
)

// DepthPlan is the pipeline plan derived from a requested depth. It is
// recomputed from the request each run and never stored.
type DepthPlan struct {
	// Passes is the number of research passes to execute.
	Passes int
	// Persistent marks depths that must run as a durable background task.
	// Only deep persists by depth alone; quick and standard answer inline
	// unless the request forces async mode.
	Persistent bool
	// ProfileHint is the search-profile hint passed to the researcher.
	ProfileHint string
	// Background marks depths whose research passes may run as a
	// long-running polled operation.
	Background bool
}

// PlanForDepth maps a depth to its pipeline plan. Unknown depth values are a
// configuration error, never a silent default.
func PlanForDepth(depth entity.Depth) (DepthPlan, error) {
	switch depth {
	case entity.DepthQuick:
		return DepthPlan{
			Passes:      1,
			Persistent:  false,
			ProfileHint: "minimal_search",
		}, nil
	case entity.DepthStandard:
		return DepthPlan{
			Passes:      2,
			Persistent:  false,
			ProfileHint: "iterative_search",
		}, nil
	case entity.DepthDeep:
		return DepthPlan{
			Passes:      3,
			Persistent:  true,
			ProfileHint: "multi_pass_search_with_synthesis",
			Background:  true,
		}, nil
	default:
		return DepthPlan{}, apperrors.NewAppError(apperrors.ErrConfiguration,
			fmt.Sprintf("unrecognized depth %q", depth), nil)
	}
}
