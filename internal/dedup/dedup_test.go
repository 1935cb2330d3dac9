package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
)

func TestEditDistance(t *testing.T) {
	require.Equal(t, 0, editDistance("脑卒中", "脑卒中"))
	require.Equal(t, 1, editDistance("脑卒中", "脑卒中病"))
	require.Equal(t, 3, editDistance("abc", "xyz"))
}

func TestRefineByEditDistance_GroupsCloseNames(t *testing.T) {
	groups := refineByEditDistance([]string{"阿司匹林", "阿斯匹林", "他汀类药物"}, 2)
	require.Len(t, groups, 1)
	require.ElementsMatch(t, []string{"阿司匹林", "阿斯匹林"}, groups[0])
}

func TestRefineByEditDistance_SkipsNumericLike(t *testing.T) {
	groups := refineByEditDistance([]string{"2023", "2024"}, 3)
	require.Empty(t, groups, "bare numeric candidates must never be grouped")
}

func TestIsNumericLike(t *testing.T) {
	require.True(t, isNumericLike("2023"))
	require.True(t, isNumericLike("A1B2"))
	require.False(t, isNumericLike("脑卒中"))
}

func TestShareConcreteLabel(t *testing.T) {
	byID := map[string]graphstore.Entity{
		"A": {ID: "A", Labels: []string{graphstore.EntitySentinelLabel, "药物"}},
		"B": {ID: "B", Labels: []string{graphstore.EntitySentinelLabel, graphstore.UnknownType}},
		"C": {ID: "C", Labels: []string{graphstore.EntitySentinelLabel, "药物"}},
	}
	require.True(t, shareConcreteLabel([]string{"A", "C"}, byID))
	require.False(t, shareConcreteLabel([]string{"A", "B"}, byID))
	require.False(t, shareConcreteLabel([]string{"B"}, byID))
}

type stubArbitrationProvider struct {
	response string
}

func (s stubArbitrationProvider) Complete(context.Context, llm.Request) (string, error) {
	return s.response, nil
}

func TestArbitrate_FiltersUnknownIDs(t *testing.T) {
	byID := map[string]graphstore.Entity{
		"阿司匹林":  {ID: "阿司匹林"},
		"阿斯匹林":  {ID: "阿斯匹林"},
	}
	provider := stubArbitrationProvider{response: `{"groups":[["阿司匹林","阿斯匹林","幽灵实体"]]}`}

	groups, err := arbitrate(context.Background(), provider, []string{"阿司匹林", "阿斯匹林"}, byID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.ElementsMatch(t, []string{"阿司匹林", "阿斯匹林"}, groups[0])
}

func TestArbitrate_NoJSONIsError(t *testing.T) {
	provider := stubArbitrationProvider{response: "抱歉，我无法判断。"}
	_, err := arbitrate(context.Background(), provider, []string{"A", "B"}, nil)
	require.Error(t, err)
}

// TestRun_EndToEndMergesNearDuplicates exercises the full pipeline: two
// near-identical entity embeddings should cluster via kNN+WCC, survive
// edit-distance refinement, and be merged by arbitration.
func TestRun_EndToEndMergesNearDuplicates(t *testing.T) {
	ctx := context.Background()
	g := graphstore.NewMemoryGraph()

	_, err := g.UpsertEntity(ctx, "阿司匹林", []string{graphstore.EntitySentinelLabel, "药物"}, "抗血小板药")
	require.NoError(t, err)
	_, err = g.UpsertEntity(ctx, "阿斯匹林", []string{graphstore.EntitySentinelLabel, "药物"}, "抗血小板药，同义写法")
	require.NoError(t, err)

	require.NoError(t, g.SetEmbedding(ctx, "阿司匹林", []float32{1, 0, 0}))
	require.NoError(t, g.SetEmbedding(ctx, "阿斯匹林", []float32{0.999, 0.01, 0}))

	provider := stubArbitrationProvider{response: `{"groups":[["阿司匹林","阿斯匹林"]]}`}
	cfg := config.Dedup{SimilarityCutoff: 0.9, WordEditDistance: 2}

	merged, err := Run(ctx, provider, g, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, merged)

	_, ok, err := g.GetEntity(ctx, "阿斯匹林")
	require.NoError(t, err)
	require.False(t, ok, "victim entity must be absorbed into survivor")

	survivor, ok, err := g.GetEntity(ctx, "阿司匹林")
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, survivor.Description, "抗血小板药")
}

func TestRun_FewerThanTwoEntitiesIsNoOp(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	merged, err := Run(context.Background(), stubArbitrationProvider{}, g, config.Dedup{})
	require.NoError(t, err)
	require.Zero(t, merged)
}
