package graphstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/chunker"
)

var _ GraphDB = (*MemoryGraph)(nil)

// TestWriteDocument_ChunkInvariants checks spec.md §8 invariants 1-3:
// linear NEXT_CHUNK chain starting from the unique first chunk, stable
// SHA1 ids, and contiguous content_offset.
func TestWriteDocument_ChunkInvariants(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()

	chunks := []chunker.Chunk{{Index: 0, Text: "脑卒中是一种脑血管疾病。"}, {Index: 1, Text: "常见症状包括偏瘫和失语。"}}
	rows, err := WriteDocument(ctx, g, Document{FileName: "a.txt"}, chunks)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, ChunkID("脑卒中是一种脑血管疾病。"), rows[0].ID)
	require.Equal(t, 1, rows[0].Position)
	require.Equal(t, 2, rows[1].Position)
	require.Equal(t, 0, rows[0].ContentOffset)
	require.Equal(t, rows[0].ContentOffset+len(rows[0].Text), rows[1].ContentOffset)

	seq := g.chunkSeq["a.txt"]
	require.Equal(t, rows[0].ID, seq[0], "first chunk in chain must be the FIRST_CHUNK-pointed one")
	require.Len(t, seq, 2)
}

func TestChunkID_StableAcrossCalls(t *testing.T) {
	require.Equal(t, ChunkID("脑卒中是一种脑血管疾病。"), ChunkID("脑卒中是一种脑血管疾病。"))
}

func TestUpsertEntity_MarksDirtyOnDescriptionChange(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()
	_, err := g.UpsertEntity(ctx, "阿司匹林", []string{EntitySentinelLabel, "药物"}, "X")
	require.NoError(t, err)
	dirty, _ := g.DirtyEntityIDs(ctx)
	require.Contains(t, dirty, "阿司匹林")

	require.NoError(t, g.SetEmbedding(ctx, "阿司匹林", []float32{1, 2}))
	dirty, _ = g.DirtyEntityIDs(ctx)
	require.NotContains(t, dirty, "阿司匹林")

	_, err = g.UpsertEntity(ctx, "阿司匹林", []string{EntitySentinelLabel, "药物"}, "Y")
	require.NoError(t, err)
	dirty, _ = g.DirtyEntityIDs(ctx)
	require.Contains(t, dirty, "阿司匹林", "description changed, must be re-embedded")
}

func TestUpsertRelationship_CreatesPlaceholderEndpoints(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()
	require.NoError(t, g.UpsertRelationship(ctx, Relationship{Source: "阿司匹林", Target: "缺血性脑卒中", Type: "用于治疗", Description: "预防复发。", Weight: 9}))

	e, ok, err := g.GetEntity(ctx, "缺血性脑卒中")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, e.HasLabel(UnknownType))
}

func TestCommunityRank_CountsDistinctMentioningChunks(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()
	_, _ = g.UpsertEntity(ctx, "e1", []string{EntitySentinelLabel}, "")
	_, _ = g.UpsertEntity(ctx, "e2", []string{EntitySentinelLabel}, "")
	require.NoError(t, g.AddMention(ctx, "c1", "e1"))
	require.NoError(t, g.AddMention(ctx, "c2", "e1"))
	require.NoError(t, g.AddMention(ctx, "c2", "e2"))

	chunks, err := g.ChunksMentioningAny(ctx, []string{"e1", "e2"})
	require.NoError(t, err)
	require.Len(t, chunks, 2, "c2 mentions both entities but must count once")
}

func TestMergeEntities_RedirectsMentionsAndRelationships(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGraph()
	_, _ = g.UpsertEntity(ctx, "survivor", []string{EntitySentinelLabel, "疾病"}, "desc1")
	_, _ = g.UpsertEntity(ctx, "victim", []string{EntitySentinelLabel, "疾病"}, "desc2")
	require.NoError(t, g.AddMention(ctx, "c1", "victim"))
	require.NoError(t, g.UpsertRelationship(ctx, Relationship{Source: "victim", Target: "other", Type: "导致", Weight: 1}))

	require.NoError(t, g.MergeEntities(ctx, "survivor", []string{"victim"}))

	_, ok, _ := g.GetEntity(ctx, "victim")
	require.False(t, ok, "victim must be gone after merge")

	chunks, _ := g.ChunksMentioningAny(ctx, []string{"survivor"})
	require.Contains(t, chunks, "c1")

	rels, _ := g.RelationshipsAmong(ctx, []string{"survivor", "other"})
	require.Len(t, rels, 1)
	require.Equal(t, "survivor", rels[0].Source)
}
