package merge

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/graphstore"
)

// TestMergeEntity_S4 is spec.md §8 scenario S4.
func TestMergeEntity_S4(t *testing.T) {
	a := graphstore.Entity{ID: "A", Labels: []string{graphstore.EntitySentinelLabel, "药物"}, Description: "X"}
	b := graphstore.Entity{ID: "A", Labels: []string{graphstore.EntitySentinelLabel, graphstore.UnknownType}, Description: "Y"}

	merged := MergeEntity(a, b)
	require.Equal(t, "X；Y", merged.Description)
	require.ElementsMatch(t, []string{graphstore.EntitySentinelLabel, "药物"}, merged.Labels)
	require.NotContains(t, merged.Labels, graphstore.UnknownType)
}

func TestCoalesceDescription_EmptySides(t *testing.T) {
	require.Equal(t, "a", CoalesceDescription("a", ""))
	require.Equal(t, "b", CoalesceDescription("", "b"))
	require.Equal(t, "", CoalesceDescription("", ""))
	require.Equal(t, "a；b", CoalesceDescription("a", "b"))
}

func TestMergeRelationship_MaxWeightAndCoalesce(t *testing.T) {
	a := graphstore.Relationship{Source: "s", Target: "t", Type: "导致", Description: "d1", Weight: 3}
	b := graphstore.Relationship{Source: "s", Target: "t", Type: "导致", Description: "d2", Weight: 9}
	merged := MergeRelationship(a, b)
	require.Equal(t, 9.0, merged.Weight)
	require.Contains(t, merged.Description, "d1")
	require.Contains(t, merged.Description, "d2")
}

// TestMergeEntity_Commutative checks spec.md §8's round-trip law:
// merge(A,B) then merge(result,C) == merge(merge(B,C),A) up to
// separator-canonicalisation (normalise by sorting).
func TestMergeEntity_Commutative(t *testing.T) {
	a := graphstore.Entity{ID: "x", Labels: []string{graphstore.EntitySentinelLabel, "疾病"}, Description: "desc-a"}
	b := graphstore.Entity{ID: "x", Labels: []string{graphstore.EntitySentinelLabel}, Description: "desc-b"}
	c := graphstore.Entity{ID: "x", Labels: []string{graphstore.EntitySentinelLabel, "症状"}, Description: "desc-c"}

	left := MergeEntity(MergeEntity(a, b), c)
	right := MergeEntity(MergeEntity(b, c), a)

	require.Equal(t, NormalizeDescription(left.Description), NormalizeDescription(right.Description))
	require.ElementsMatch(t, left.Labels, right.Labels)
}

func TestMergeLabels_DropsUnknownWhenConcretePresent(t *testing.T) {
	got := MergeLabels([]string{graphstore.EntitySentinelLabel, graphstore.UnknownType}, []string{"药物"})
	require.NotContains(t, got, graphstore.UnknownType)
	require.Contains(t, got, "药物")
}

func TestMergeLabels_KeepsUnknownWhenNoConcreteLabel(t *testing.T) {
	got := MergeLabels([]string{graphstore.EntitySentinelLabel, graphstore.UnknownType}, []string{graphstore.EntitySentinelLabel})
	require.Contains(t, got, graphstore.UnknownType)
}
