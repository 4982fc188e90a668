package ai

import (
	"github.com/doclens/doclens/internal/config"
	"github.com/doclens/doclens/internal/llm/anthropic"
	"github.com/doclens/doclens/internal/llm/openai"
	"github.com/doclens/doclens/pkg/models"
)

// BuildChain constructs the ordered provider list from config: OpenAI first,
// Anthropic as the fallback, each included only when configured. An empty
// chain is valid — the orchestrator then always produces the fallback
// result. Called once at server startup.
func BuildChain(cfg config.AIConfig) []models.Provider {
	var providers []models.Provider
	if cfg.OpenAI.APIKey != "" {
		providers = append(providers, openai.NewProvider(cfg.OpenAI))
	}
	if cfg.Anthropic.APIKey != "" {
		providers = append(providers, anthropic.NewProvider(cfg.Anthropic))
	}
	return providers
}
