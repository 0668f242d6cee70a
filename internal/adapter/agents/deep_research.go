package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wekeepgrowing/research-agent/internal/domain/agent"
	"github.com/wekeepgrowing/research-agent/internal/domain/entity"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const (
	deepResearchTimeout = 30 * time.Second
	maxExtractedNotes   = 10
)

// DeepResearchOperator drives a remote deep-research service through its
// background responses API: Start creates a response in background mode and
// Poll retrieves it, extracting intermediate notes along the way.
type DeepResearchOperator struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewDeepResearchOperator creates the background research operator.
func NewDeepResearchOperator(baseURL, apiKey, model string, logger *zap.Logger) *DeepResearchOperator {
	return &DeepResearchOperator{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: deepResearchTimeout},
		logger:  logger,
	}
}

func (o *DeepResearchOperator) Start(ctx context.Context, input agent.ResearchInput) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":      o.model,
		"input":      input.Query,
		"background": true,
		"tools":      []map[string]string{{"type": "web_search"}},
	})
	if err != nil {
		return "", apperrors.NewAppError(apperrors.ErrResearch, "failed to encode operation request", err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := o.do(ctx, http.MethodPost, o.baseURL+"/v1/responses", body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", apperrors.NewRetriable(apperrors.ErrResearch, "operation create returned no id", nil)
	}
	return created.ID, nil
}

func (o *DeepResearchOperator) Poll(ctx context.Context, operationID string) (*agent.OperationSnapshot, error) {
	var resp struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		OutputText string `json:"output_text"`
		Error      *struct {
			Message string `json:"message"`
		} `json:"error"`
		Citations []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"citations"`
	}
	if err := o.do(ctx, http.MethodGet, o.baseURL+"/v1/responses/"+operationID, nil, &resp); err != nil {
		return nil, err
	}

	snapshot := &agent.OperationSnapshot{
		ID:     operationID,
		Status: mapOperationStatus(resp.Status),
		Notes:  extractNotes(resp.OutputText),
	}
	if resp.Error != nil {
		snapshot.Error = resp.Error.Message
	}

	if snapshot.Status == agent.OperationCompleted {
		result := &entity.ResearchResult{
			Model:      o.model,
			Notes:      snapshot.Notes,
			Confidence: "high",
		}
		for i, c := range resp.Citations {
			result.Findings = append(result.Findings, entity.Finding{
				ID:        fmt.Sprintf("D-%d", i+1),
				Title:     c.Title,
				Type:      "official",
				Relevance: "high",
				SourceURL: c.URL,
				Snippet:   c.Snippet,
			})
		}
		snapshot.Result = result
	}
	return snapshot, nil
}

func (o *DeepResearchOperator) do(ctx context.Context, method, url string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrResearch, "failed to build operation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return apperrors.NewRetriable(apperrors.ErrResearch, "deep research request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return apperrors.NewRetriable(apperrors.ErrResearch,
			fmt.Sprintf("deep research service returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 400 {
		return apperrors.NewAppError(apperrors.ErrResearch,
			fmt.Sprintf("deep research service rejected request with %d", resp.StatusCode), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.NewRetriable(apperrors.ErrResearch, "deep research response unparseable", err)
	}
	return nil
}

func mapOperationStatus(status string) agent.OperationStatus {
	switch status {
	case "queued", "pending":
		return agent.OperationQueued
	case "completed", "succeeded":
		return agent.OperationCompleted
	case "failed", "error", "cancelled":
		return agent.OperationFailed
	default:
		return agent.OperationRunning
	}
}

// extractNotes pulls intermediate note lines out of the operation's running
// output text, capped so one poll cannot flood the task.
func extractNotes(outputText string) []string {
	var notes []string
	for _, line := range strings.Split(outputText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "Note:") ||
			strings.HasPrefix(line, "Thinking:") ||
			strings.HasPrefix(line, "Researching:") ||
			len(line) > 50 {
			notes = append(notes, line)
		}
		if len(notes) == maxExtractedNotes {
			break
		}
	}
	return notes
}

// StubOperator is an in-process BackgroundOperator that completes after a
// fixed number of polls, accumulating notes as it goes. Used when no deep
// research service is configured, and by tests.
type StubOperator struct {
	pollsToFinish int

	mu  sync.Mutex
	ops map[string]*stubOperation
}

type stubOperation struct {
	input agent.ResearchInput
	polls int
}

// NewStubOperator creates a stub operator finishing after pollsToFinish polls.
func NewStubOperator(pollsToFinish int) *StubOperator {
	if pollsToFinish < 1 {
		pollsToFinish = 1
	}
	return &StubOperator{
		pollsToFinish: pollsToFinish,
		ops:           make(map[string]*stubOperation),
	}
}

func (s *StubOperator) Start(_ context.Context, input agent.ResearchInput) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	s.ops[id] = &stubOperation{input: input}
	s.mu.Unlock()
	return id, nil
}

func (s *StubOperator) Poll(_ context.Context, operationID string) (*agent.OperationSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	op, ok := s.ops[operationID]
	if !ok {
		return nil, apperrors.NewAppError(apperrors.ErrNotFound,
			fmt.Sprintf("operation %s not found", operationID), nil)
	}
	op.polls++

	var notes []string
	for i := 1; i <= op.polls && i <= s.pollsToFinish; i++ {
		notes = append(notes, fmt.Sprintf("Researching: %s (step %d)", op.input.Query, i))
	}

	snapshot := &agent.OperationSnapshot{
		ID:     operationID,
		Status: agent.OperationRunning,
		Notes:  notes,
	}
	if op.polls >= s.pollsToFinish {
		snapshot.Status = agent.OperationCompleted
		snapshot.Result = &entity.ResearchResult{
			PassIndex: op.input.PassIndex,
			Profile:   op.input.Profile,
			Notes:     notes,
			Findings: []entity.Finding{{
				ID:        "D-1",
				Title:     op.input.Query,
				Type:      "unknown",
				Relevance: "medium",
				Snippet:   "Synthesized without a remote deep research service.",
			}},
			Confidence: "low",
		}
	}
	return snapshot, nil
}
