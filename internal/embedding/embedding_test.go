package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/config"
)

func TestBuild_DefaultsToOpenAI(t *testing.T) {
	p, err := Build(config.Embedding{APIKey: "sk-test", Model: "text-embedding-3-small"})
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestBuild_UnknownProviderIsError(t *testing.T) {
	_, err := Build(config.Embedding{Provider: "made-up"})
	require.Error(t, err)
}

func TestEmbed_RejectsEmptyInput(t *testing.T) {
	p, err := Build(config.Embedding{APIKey: "sk-test"})
	require.NoError(t, err)
	_, err = p.(*openaiProvider).Embed(context.Background(), nil)
	require.Error(t, err)
}
