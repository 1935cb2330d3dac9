package summarize

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
)

func sampleMembers() []graphstore.Entity {
	return []graphstore.Entity{
		{ID: "脑卒中", Labels: []string{graphstore.EntitySentinelLabel, "疾病"}, Description: "急性脑血管病"},
		{ID: "阿司匹林", Labels: []string{graphstore.EntitySentinelLabel, "药物"}, Description: "抗血小板药"},
		{ID: "他汀类药物", Labels: []string{graphstore.EntitySentinelLabel, "药物"}, Description: "降脂药"},
	}
}

func sampleRels() []graphstore.Relationship {
	return []graphstore.Relationship{
		{Source: "阿司匹林", Target: "脑卒中", Type: "用于治疗", Description: "预防复发", Weight: 9},
		{Source: "他汀类药物", Target: "脑卒中", Type: "用于治疗", Description: "降脂防复发", Weight: 7},
	}
}

func TestAssemble_IncludesAllMembersWithinBudget(t *testing.T) {
	text := assemble(sampleMembers(), sampleRels(), 10000)
	require.Contains(t, text, "脑卒中")
	require.Contains(t, text, "阿司匹林")
	require.Contains(t, text, "他汀类药物")
}

func TestAssemble_StopsBeforeOverflow(t *testing.T) {
	full := assemble(sampleMembers(), sampleRels(), 10000)
	tiny := assemble(sampleMembers(), sampleRels(), 10)
	require.Less(t, len(tiny), len(full))
	require.LessOrEqual(t, len([]rune(tiny)), 10) // whole lines only, and never past the budget
}

func TestAssemble_EmptyGraphIsEmptyString(t *testing.T) {
	require.Equal(t, "", assemble(nil, nil, 1000))
}

type stubSummaryProvider struct {
	response string
}

func (s stubSummaryProvider) Complete(context.Context, llm.Request) (string, error) {
	return s.response, nil
}

func seedCommunity(t *testing.T, g graphstore.GraphDB, members []graphstore.Entity, rels []graphstore.Relationship) {
	ctx := context.Background()
	for _, e := range members {
		_, err := g.UpsertEntity(ctx, e.ID, e.Labels, e.Description)
		require.NoError(t, err)
	}
	for _, r := range rels {
		require.NoError(t, g.UpsertRelationship(ctx, r))
	}
	for _, e := range members {
		require.NoError(t, g.UpsertCommunityMembership(ctx, e.ID, "0-1", 0))
	}
}

func TestRun_SummarizesCommunitiesAtOrAboveMinMembers(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	seedCommunity(t, g, sampleMembers(), sampleRels())

	provider := stubSummaryProvider{response: "脑卒中相关的药物治疗社区。"}
	n, err := Run(context.Background(), provider, g, config.Summarize{MinMembers: 2, TokenBudget: 1000})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	communities, err := g.CommunitiesAtLevel(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, communities, 1)
	require.Equal(t, "脑卒中相关的药物治疗社区。", communities[0].Summary)
}

func TestRun_SkipsCommunitiesBelowMinMembers(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	seedCommunity(t, g, sampleMembers(), sampleRels())

	provider := stubSummaryProvider{response: "不应被调用到的摘要"}
	n, err := Run(context.Background(), provider, g, config.Summarize{MinMembers: 10})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRun_EmptySummaryIsNotPersisted(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	seedCommunity(t, g, sampleMembers(), sampleRels())

	provider := stubSummaryProvider{response: "   "}
	n, err := Run(context.Background(), provider, g, config.Summarize{MinMembers: 2})
	require.NoError(t, err)
	require.Zero(t, n)

	communities, err := g.CommunitiesAtLevel(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, communities, 1)
	require.True(t, strings.TrimSpace(communities[0].Summary) == "")
}

func TestRun_NoCommunitiesIsNoOp(t *testing.T) {
	n, err := Run(context.Background(), stubSummaryProvider{}, graphstore.NewMemoryGraph(), config.Summarize{})
	require.NoError(t, err)
	require.Zero(t, n)
}
