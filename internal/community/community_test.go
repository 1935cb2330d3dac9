package community

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/graphstore"
)

var communityIDPattern = regexp.MustCompile(`^0-\d+$`)

// TestRun_ProducesValidCommunityIDs checks spec.md §8 invariant 6: every
// community id matches "^<level>-\d+$".
func TestRun_ProducesValidCommunityIDs(t *testing.T) {
	ctx := context.Background()
	g := graphstore.NewMemoryGraph()
	for _, id := range []string{"脑卒中", "缺血性脑卒中", "阿司匹林", "他汀类药物"} {
		_, err := g.UpsertEntity(ctx, id, []string{graphstore.EntitySentinelLabel, "疾病"}, "")
		require.NoError(t, err)
	}
	require.NoError(t, g.UpsertRelationship(ctx, graphstore.Relationship{Source: "脑卒中", Target: "缺血性脑卒中", Type: "属于", Weight: 1}))
	require.NoError(t, g.UpsertRelationship(ctx, graphstore.Relationship{Source: "阿司匹林", Target: "缺血性脑卒中", Type: "用于治疗", Weight: 1}))
	require.NoError(t, g.AddMention(ctx, "c1", "脑卒中"))
	require.NoError(t, g.AddMention(ctx, "c2", "阿司匹林"))

	n, err := Run(ctx, g)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	communities, err := g.CommunitiesAtLevel(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, communities)
	for _, c := range communities {
		require.Regexp(t, communityIDPattern, c.ID)
	}
}

func TestRun_NoEntitiesIsNoOp(t *testing.T) {
	n, err := Run(context.Background(), graphstore.NewMemoryGraph())
	require.NoError(t, err)
	require.Zero(t, n)
}
