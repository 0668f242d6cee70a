// Package agents implements the pipeline stage adapters. Each stage talks
// to a local model through the Ollama API and degrades to a deterministic
// fallback when the model server is unreachable.
package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	apperrors "github.com/wekeepgrowing/research-agent/pkg/errors"
	"go.uber.org/zap"
)

const heartbeatTimeout = 2 * time.Second

// OllamaClient is the shared model client used by the LLM-backed stages.
type OllamaClient struct {
	client *api.Client
	logger *zap.Logger
}

// NewOllamaClient builds a client for the given host, falling back to the
// OLLAMA_HOST environment variable when host is empty.
func NewOllamaClient(host string, logger *zap.Logger) (*OllamaClient, error) {
	if host == "" {
		client, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrConfiguration, "failed to build llm client from environment", err)
		}
		return &OllamaClient{client: client, logger: logger}, nil
	}

	base, err := url.Parse(host)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrConfiguration, "invalid llm host", err)
	}
	return &OllamaClient{client: api.NewClient(base, http.DefaultClient), logger: logger}, nil
}

// Available reports whether the model server answers a heartbeat.
func (c *OllamaClient) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
	defer cancel()
	if err := c.client.Heartbeat(ctx); err != nil {
		c.logger.Debug("llm heartbeat failed", zap.Error(err))
		return false
	}
	return true
}

// Complete sends one chat exchange and returns the full response text.
// Responses are collected unstreamed.
func (c *OllamaClient) Complete(ctx context.Context, model, system, prompt string, wantJSON bool) (string, error) {
	stream := false
	req := &api.ChatRequest{
		Model: model,
		Messages: []api.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Stream: &stream,
	}
	if wantJSON {
		req.Format = json.RawMessage(`"json"`)
	}

	var sb strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// decodeJSON parses a model response that may wrap its JSON in code fences
// or leading prose.
func decodeJSON(raw string, v any) error {
	s := strings.TrimSpace(raw)
	if start := strings.Index(s, "{"); start > 0 {
		s = s[start:]
	}
	if end := strings.LastIndex(s, "}"); end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}
	return json.Unmarshal([]byte(s), v)
}
