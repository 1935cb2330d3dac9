package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
)

type fakeEmbedder struct {
	vec []float32
}

func (f fakeEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return [][]float32{f.vec}, nil
}

type fakeProvider struct {
	response string
}

func (f fakeProvider) Complete(context.Context, llm.Request) (string, error) {
	return f.response, nil
}

// buildGraph reproduces spec.md §8 scenario S5's setup: a seed entity with
// one chunk mention, one community, one inside relationship (between two
// seed entities) and one outside relationship (seed -> non-seed), with
// weights chosen so ordering is unambiguous.
func buildGraph(t *testing.T) graphstore.GraphDB {
	ctx := context.Background()
	g := graphstore.NewMemoryGraph()

	for _, id := range []string{"脑卒中", "阿司匹林", "他汀类药物", "高血压"} {
		_, err := g.UpsertEntity(ctx, id, []string{graphstore.EntitySentinelLabel, "疾病"}, id+"的描述")
		require.NoError(t, err)
	}
	require.NoError(t, g.SetEmbedding(ctx, "脑卒中", []float32{1, 0, 0}))
	require.NoError(t, g.SetEmbedding(ctx, "阿司匹林", []float32{0.9, 0.1, 0}))
	require.NoError(t, g.SetEmbedding(ctx, "他汀类药物", []float32{0, 1, 0}))
	require.NoError(t, g.SetEmbedding(ctx, "高血压", []float32{0, 0, 1}))

	require.NoError(t, g.AddMention(ctx, "c1", "脑卒中"))
	require.NoError(t, g.AddMention(ctx, "c1", "阿司匹林"))
	require.NoError(t, g.UpsertCommunityMembership(ctx, "脑卒中", "0-1", 0))
	require.NoError(t, g.SetCommunitySummary(ctx, "0-1", "脑卒中相关社区摘要"))

	require.NoError(t, g.UpsertRelationship(ctx, graphstore.Relationship{Source: "脑卒中", Target: "阿司匹林", Type: "用于治疗", Weight: 5}))
	require.NoError(t, g.UpsertRelationship(ctx, graphstore.Relationship{Source: "脑卒中", Target: "高血压", Type: "相关因素", Weight: 9}))

	return g
}

func TestAssemble_ReturnsOrderedReport(t *testing.T) {
	g := buildGraph(t)
	cfg := config.Retrieve{TopEntities: 2, TopChunks: 5, TopCommunities: 5, TopOutsideRels: 5, TopInsideRels: 5}

	report, err := Assemble(context.Background(), fakeEmbedder{vec: []float32{1, 0, 0}}, g, cfg, "脑卒中怎么治疗")
	require.NoError(t, err)

	require.NotEmpty(t, report.Entities)
	require.Equal(t, "脑卒中", report.Entities[0].ID, "closest entity to the query vector should rank first")
	require.NotEmpty(t, report.Chunks)
	require.NotEmpty(t, report.Reports)

	require.NotEmpty(t, report.Relationships.Inside, "脑卒中-阿司匹林 is a seed-to-seed edge")
	require.NotEmpty(t, report.Relationships.Outside, "脑卒中-高血压 has a non-seed endpoint")
}

func TestAnswer_NoEvidenceReturnsUnknown(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	cfg := config.Retrieve{}

	answer, err := Answer(context.Background(), fakeProvider{response: "不应被调用"}, fakeEmbedder{vec: []float32{1, 0, 0}}, g, cfg, "任意问题")
	require.NoError(t, err)
	require.Equal(t, "不知道", answer)
}

func TestAnswer_EmptyLLMResponseFallsBackToUnknown(t *testing.T) {
	g := buildGraph(t)
	cfg := config.Retrieve{TopEntities: 2}

	answer, err := Answer(context.Background(), fakeProvider{response: "   "}, fakeEmbedder{vec: []float32{1, 0, 0}}, g, cfg, "脑卒中怎么治疗")
	require.NoError(t, err)
	require.Equal(t, "不知道", answer)
}

func TestAnswer_ReturnsLLMText(t *testing.T) {
	g := buildGraph(t)
	cfg := config.Retrieve{TopEntities: 2}

	answer, err := Answer(context.Background(), fakeProvider{response: "阿司匹林可用于预防脑卒中复发。"}, fakeEmbedder{vec: []float32{1, 0, 0}}, g, cfg, "脑卒中怎么治疗")
	require.NoError(t, err)
	require.Equal(t, "阿司匹林可用于预防脑卒中复发。", answer)
}
