package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/llm"
	"github.com/doclens/doclens/pkg/models"
)

const apiVersion = "2023-06-01"

// Provider implements models.Provider against the Anthropic messages API.
type Provider struct {
	cfg    config.AnthropicConfig
	client *http.Client
}

func NewProvider(cfg config.AnthropicConfig) *Provider {
	return &Provider{cfg: cfg, client: &http.Client{}}
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Analyze(ctx context.Context, text string) (models.DocumentAnalysis, error) {
	body := map[string]any{
		"model":      p.cfg.Model,
		"max_tokens": 2048,
		"system":     llm.SystemPrompt,
		"messages": []map[string]any{
			{"role": "user", "content": llm.BuildUserPrompt(text)},
		},
	}

	b, err := json.Marshal(body)
	if err != nil {
		return models.DocumentAnalysis{}, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return models.DocumentAnalysis{}, err
	}
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return models.DocumentAnalysis{}, fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.DocumentAnalysis{}, fmt.Errorf("%w: read body: %v", llm.ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return models.DocumentAnalysis{}, fmt.Errorf("%w: anthropic status 429", llm.ErrRateLimited)
	case resp.StatusCode >= 500:
		return models.DocumentAnalysis{}, fmt.Errorf("%w: anthropic status %d", llm.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return models.DocumentAnalysis{}, fmt.Errorf("anthropic status %d: %s", resp.StatusCode, payload)
	}

	var msg struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return models.DocumentAnalysis{}, fmt.Errorf("%w: decode anthropic response: %v", llm.ErrInvalidResponse, err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content = block.Text
			break
		}
	}
	if content == "" {
		return models.DocumentAnalysis{}, fmt.Errorf("%w: no text block in anthropic response", llm.ErrInvalidResponse)
	}

	result, err := llm.ParseAnalysis(content)
	if err != nil {
		return models.DocumentAnalysis{}, err
	}
	result.Model = p.cfg.Model
	return result, nil
}

var _ models.Provider = (*Provider)(nil)
