// Package agent defines the contracts for the pipeline stage adapters.
// Each stage wraps one external collaborator behind a uniform invoke
// interface; a fallback variant is selected when Available reports the
// live service unreachable.
package agent

import (
	"context"

	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
)

// Adapter is the capability shared by every stage adapter.
type Adapter interface {
	// Name identifies the stage for logging and error classification.
	Name() string
	// Available reports whether the live collaborator can be called
	// without incurring a full invocation.
	Available(ctx context.Context) bool
}

// RouterInput is the routing stage input.
type RouterInput struct {
	Query    string
	Controls entity.ResearchControls
}

// Router classifies a request's intent.
type Router interface {
	Adapter
	Classify(ctx context.Context, input RouterInput) (*entity.RouterDecision, error)
}

// ClarifierInput is the clarification stage input.
type ClarifierInput struct {
	Query    string
	Decision entity.RouterDecision
}

// Clarifier refines an ambiguous query. Failures are always non-fatal to
// the pipeline; callers fall back to the original query.
type Clarifier interface {
	Adapter
	Clarify(ctx context.Context, input ClarifierInput) (*entity.Clarification, error)
}

// ResearchInput is the input for one research pass.
type ResearchInput struct {
	Query       string
	PassIndex   int
	Depth       entity.Depth
	Profile     string
	Model       string
	MaxSearches int
}

// Researcher gathers evidence for one pass.
type Researcher interface {
	Adapter
	Research(ctx context.Context, input ResearchInput) (*entity.ResearchResult, error)
}

// WriterInput carries everything the drafting stage needs.
type WriterInput struct {
	Query    string
	Controls entity.ResearchControls
	Decision entity.RouterDecision
	Research []entity.ResearchResult
	TaskID   string
}

// Writer composes the report envelope from accumulated evidence.
type Writer interface {
	Adapter
	Write(ctx context.Context, input WriterInput) (*entity.Draft, error)
}

// FactChecker validates a draft and scores its quality.
type FactChecker interface {
	Adapter
	Check(ctx context.Context, draft entity.Draft) (*entity.QualityReport, error)
}
