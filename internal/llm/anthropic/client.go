// Package anthropic adapts the Anthropic Messages API to llm.Provider,
// grounded on the teacher's internal/llm/anthropic.Client (SDK
// construction via option.WithAPIKey, MessageNewParams shape), stripped
// of extended thinking, prompt caching, and tool calling — none of
// SPEC_FULL's single-shot text completions need them.
package anthropic

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stroke-graphrag/graphrag/internal/llm"
)

const defaultMaxTokens int64 = 4096

type Client struct {
	sdk   anthropic.Client
	model string
}

func New(apiKey, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if model == "" {
		model = string(anthropic.ModelClaude3_7SonnetLatest)
	}
	return &Client{sdk: anthropic.NewClient(opts...), model: model}
}

func (c *Client) Complete(ctx context.Context, req llm.Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var out string
	err := llm.Retry(ctx, 5, func() error {
		resp, err := c.sdk.Messages.New(ctx, params)
		if err != nil {
			return err
		}
		if len(resp.Content) == 0 {
			return fmt.Errorf("anthropic: empty content")
		}
		for _, block := range resp.Content {
			if block.Type == "text" {
				out += block.Text
			}
		}
		return nil
	})
	return out, err
}

var _ llm.Provider = (*Client)(nil)
