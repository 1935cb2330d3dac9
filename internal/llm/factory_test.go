package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/config"
)

func TestBuild_DefaultsToOpenAI(t *testing.T) {
	p, err := Build(config.LLM{APIKey: "sk-test", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestBuild_Anthropic(t *testing.T) {
	p, err := Build(config.LLM{Provider: "anthropic", APIKey: "sk-ant-test"})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestBuild_UnknownProviderIsError(t *testing.T) {
	_, err := Build(config.LLM{Provider: "made-up"})
	require.Error(t, err)
}
