package llm

import (
	"fmt"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/llm/anthropic"
	"github.com/stroke-graphrag/graphrag/internal/llm/openai"
)

// Build selects a Provider by name, grounded on the teacher's
// internal/llm/providers.Build switch.
func Build(cfg config.LLM) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return openai.New(cfg.APIKey, "", cfg.Model), nil
	case "anthropic":
		return anthropic.New(cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
