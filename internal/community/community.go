// Package community is the Community Builder (C8): unify every
// relationship type into an undirected `_ALL_` pseudo-edge, run
// Speaker-Listener LPA over that projection, and materialize
// `IN_COMMUNITY` memberships plus each community's rank. Grounded on
// spec.md §4.7, built on internal/graphalgo.SLLPA.
package community

import (
	"context"
	"fmt"
	"sort"

	"github.com/stroke-graphrag/graphrag/internal/graphalgo"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
)

// level0 is the only community level this package writes; its ids take the
// shape invariant 6 requires: "^<level>-\d+$".
const level0 = 0

// Run builds the community projection, assigns memberships, and computes
// community_rank for every resulting community.
func Run(ctx context.Context, g graphstore.GraphDB) (int, error) {
	ids, err := g.AllEntityIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load entity ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	rels, err := g.AllRelationshipsUnified(ctx)
	if err != nil {
		return 0, fmt.Errorf("load relationships: %w", err)
	}

	// Count-aggregate every relationship type into one undirected _ALL_
	// pseudo-edge per unordered pair (spec.md §4.7).
	type pairKey struct{ a, b string }
	counts := map[pairKey]float64{}
	for _, r := range rels {
		a, b := r.Source, r.Target
		if a > b {
			a, b = b, a
		}
		counts[pairKey{a, b}]++
	}
	edges := make([]graphalgo.WeightedEdge, 0, len(counts))
	for k, w := range counts {
		edges = append(edges, graphalgo.WeightedEdge{Src: k.a, Dst: k.b, Weight: w})
	}

	memberships := graphalgo.SLLPA(ids, edges, 10000)

	// SLLPA labels are arbitrary entity ids (the node that originated the
	// label); invariant 6 requires community ids of the shape "<level>-\d+",
	// so labels are remapped to a stable numeric index assigned in sorted
	// label order (deterministic across runs, per spec.md §5's "merges are
	// associative and commutative... worker interleaving does not change
	// the final graph").
	labelSet := map[string]struct{}{}
	for _, labels := range memberships {
		for _, l := range labels {
			labelSet[l] = struct{}{}
		}
	}
	sortedLabels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		sortedLabels = append(sortedLabels, l)
	}
	sort.Strings(sortedLabels)
	labelIndex := make(map[string]int, len(sortedLabels))
	for i, l := range sortedLabels {
		labelIndex[l] = i
	}

	communityMembers := map[string][]string{}
	for entityID, labels := range memberships {
		for _, label := range labels {
			communityID := fmt.Sprintf("%d-%d", level0, labelIndex[label])
			if err := g.UpsertCommunityMembership(ctx, entityID, communityID, level0); err != nil {
				return 0, fmt.Errorf("upsert membership %s/%s: %w", entityID, communityID, err)
			}
			communityMembers[communityID] = append(communityMembers[communityID], entityID)
		}
	}

	for communityID, members := range communityMembers {
		chunks, err := g.ChunksMentioningAny(ctx, members)
		if err != nil {
			return 0, fmt.Errorf("community rank for %s: %w", communityID, err)
		}
		if err := g.SetCommunityRank(ctx, communityID, len(chunks)); err != nil {
			return 0, fmt.Errorf("set rank for %s: %w", communityID, err)
		}
	}
	return len(communityMembers), nil
}
