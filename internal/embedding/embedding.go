// Package embedding is C6's embedding provider, grounded on the
// teacher's internal/embedding.EmbedText (batch request, per-call
// timeout, reachability check) but built on the openai-go SDK — already
// wired for internal/llm — rather than the teacher's raw net/http call,
// since the SDK already exercises the transport concern this corpus
// pulls in for chat completions.
package embedding

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/llm"
)

// Provider embeds a batch of strings, one vector per input, in order.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type openaiProvider struct {
	sdk     sdk.Client
	model   string
	timeout time.Duration
}

// Build returns the configured embedding Provider. Only "openai" is
// supported today; unlike internal/llm.Build this has no branch for
// "anthropic" because Anthropic does not offer an embeddings endpoint —
// embedding-capable providers in this corpus are OpenAI-shaped only.
func Build(cfg config.Embedding) (Provider, error) {
	switch cfg.Provider {
	case "", "openai":
		return &openaiProvider{
			sdk:     sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
			model:   cfg.Model,
			timeout: 30 * time.Second,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func (p *openaiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedding: no inputs")
	}
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	params := sdk.EmbeddingNewParams{
		Model: sdk.EmbeddingModel(p.model),
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	}

	var out [][]float32
	err := llm.Retry(cctx, 5, func() error {
		resp, err := p.sdk.Embeddings.New(cctx, params)
		if err != nil {
			return err
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding: got %d vectors, want %d", len(resp.Data), len(texts))
		}
		out = make([][]float32, len(resp.Data))
		for i, d := range resp.Data {
			vec := make([]float32, len(d.Embedding))
			for j, f := range d.Embedding {
				vec[j] = float32(f)
			}
			out[i] = vec
		}
		return nil
	})
	return out, err
}

// CheckReachability sends a minimal request to confirm the endpoint
// responds, mirroring the teacher's embedding.CheckReachability.
func CheckReachability(ctx context.Context, p Provider) error {
	_, err := p.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}
