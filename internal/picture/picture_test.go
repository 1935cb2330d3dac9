package picture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/graphstore"
)

type fakeLookup struct {
	images map[string]string
	calls  []string
}

func (f *fakeLookup) Find(_ context.Context, entityName string) (string, error) {
	f.calls = append(f.calls, entityName)
	return f.images[entityName], nil
}

func TestRun_AttachesImageURLWhenFound(t *testing.T) {
	ctx := context.Background()
	g := graphstore.NewMemoryGraph()
	_, err := g.UpsertEntity(ctx, "阿司匹林", []string{graphstore.EntitySentinelLabel, "药物"}, "")
	require.NoError(t, err)

	lookup := &fakeLookup{images: map[string]string{"阿司匹林": "https://example.org/aspirin.jpg"}}
	n, err := Run(ctx, lookup, g, []string{"阿司匹林"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	e, ok, err := g.GetEntity(ctx, "阿司匹林")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://example.org/aspirin.jpg", e.ImageURL)
}

func TestRun_SkipsEntitiesThatAlreadyHaveAnImage(t *testing.T) {
	ctx := context.Background()
	g := graphstore.NewMemoryGraph()
	_, err := g.UpsertEntity(ctx, "阿司匹林", []string{graphstore.EntitySentinelLabel, "药物"}, "")
	require.NoError(t, err)
	require.NoError(t, g.SetEntityImageURL(ctx, "阿司匹林", "https://example.org/already.jpg"))

	lookup := &fakeLookup{images: map[string]string{"阿司匹林": "https://example.org/new.jpg"}}
	n, err := Run(ctx, lookup, g, []string{"阿司匹林"})
	require.NoError(t, err)
	require.Zero(t, n)
	require.Empty(t, lookup.calls, "entities with an existing image must never be looked up")
}

func TestRun_NoHitLeavesImageURLEmpty(t *testing.T) {
	ctx := context.Background()
	g := graphstore.NewMemoryGraph()
	_, err := g.UpsertEntity(ctx, "罕见病X", []string{graphstore.EntitySentinelLabel, "疾病"}, "")
	require.NoError(t, err)

	n, err := Run(ctx, NoOp{}, g, []string{"罕见病X"})
	require.NoError(t, err)
	require.Zero(t, n)

	e, ok, err := g.GetEntity(ctx, "罕见病X")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, e.ImageURL)
}

func TestRun_UnknownEntityIDIsSkipped(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	n, err := Run(context.Background(), NoOp{}, g, []string{"不存在的实体"})
	require.NoError(t, err)
	require.Zero(t, n)
}
