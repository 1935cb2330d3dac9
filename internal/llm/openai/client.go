// Package openai adapts the OpenAI chat-completions API to llm.Provider,
// grounded on the teacher's internal/llm/openai.Client — the same SDK
// client construction (option.WithAPIKey/WithBaseURL) and
// the same Chat.Completions.New call, stripped of tool calling, image
// generation, and the self-hosted llama.cpp workarounds the teacher
// carries that no SPEC_FULL component needs.
package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"

	"github.com/stroke-graphrag/graphrag/internal/llm"
)

type Client struct {
	sdk   sdk.Client
	model string
}

// New builds an OpenAI-backed llm.Provider. baseURL may be empty to use
// the default OpenAI endpoint (self-hosted OpenAI-compatible servers, per
// the teacher's pattern, just need baseURL set).
func New(apiKey, baseURL, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{sdk: sdk.NewClient(opts...), model: model}
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:       sdk.ChatModel(c.model),
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(int64(req.MaxTokens))
	}
	var msgs []sdk.ChatCompletionMessageParamUnion
	if req.System != "" {
		msgs = append(msgs, sdk.SystemMessage(req.System))
	}
	msgs = append(msgs, sdk.UserMessage(req.Prompt))
	params.Messages = msgs

	var out string
	err := llm.Retry(ctx, 5, func() error {
		comp, err := c.sdk.Chat.Completions.New(ctx, params)
		if err != nil {
			return err
		}
		if len(comp.Choices) == 0 {
			return fmt.Errorf("openai: empty choices")
		}
		out = comp.Choices[0].Message.Content
		return nil
	})
	return out, err
}

var _ llm.Provider = (*Client)(nil)
