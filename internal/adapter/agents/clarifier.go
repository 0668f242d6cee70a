package agents

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const clarifierSystemPrompt = "You refine ambiguous research queries. Given a query and its routing classification, produce a sharper self-contained query plus at most three targeted questions the user could answer to improve the research. Never perform research yourself."

// Clarifier sharpens ambiguous queries. Every failure mode degrades to the
// original query; the pipeline never stops on clarification.
type Clarifier struct {
	llm    *OllamaClient
	model  string
	logger *zap.Logger
}

// NewClarifier creates the clarification stage adapter.
func NewClarifier(llm *OllamaClient, model string, logger *zap.Logger) *Clarifier {
	return &Clarifier{llm: llm, model: model, logger: logger}
}

func (c *Clarifier) Name() string { return "clarifier" }

func (c *Clarifier) Available(ctx context.Context) bool {
	return c.llm != nil && c.llm.Available(ctx)
}

func (c *Clarifier) Clarify(ctx context.Context, input agent.ClarifierInput) (*entity.Clarification, error) {
	if !c.Available(ctx) {
		c.logger.Warn("model unreachable, skipping clarification")
		return &entity.Clarification{RefinedQuery: input.Query}, nil
	}

	prompt := fmt.Sprintf(
		"The user query needs clarification.\n\nQuery: %s\n\nRouting:\n- purpose: %s\n- depth: %s\n\nReturn JSON with fields: refined_query (string), questions (array of strings, at most 3).",
		input.Query, input.Decision.Purpose, input.Decision.Depth)

	raw, err := c.llm.Complete(ctx, c.model, clarifierSystemPrompt, prompt, true)
	if err != nil {
		return nil, apperrors.NewRetriable(apperrors.ErrClarification, "clarifier invocation failed", err)
	}

	var parsed entity.Clarification
	if err := decodeJSON(raw, &parsed); err != nil {
		c.logger.Warn("clarifier response unparseable, keeping original query", zap.Error(err))
		return &entity.Clarification{RefinedQuery: input.Query}, nil
	}
	if parsed.RefinedQuery == "" {
		parsed.RefinedQuery = input.Query
	}
	if len(parsed.Questions) > 3 {
		parsed.Questions = parsed.Questions[:3]
	}
	return &parsed, nil
}
