// Package merge implements the Graph Merger's (C5) upsert policies:
// description coalescing, entity label policy, and relationship weight
// merging. These are pure functions so the associativity/commutativity
// invariants spec.md §8 demands (merge(A,B) then merge(result,C) ==
// merge(merge(B,C),A) up to separator canonicalisation) can be unit
// tested directly, independent of any storage backend.
package merge

import (
	"sort"
	"strings"

	"github.com/stroke-graphrag/graphrag/internal/graphstore"
)

const descriptionSeparator = "；"

// CoalesceDescription implements spec.md's description-coalescing law:
// coalesce(a,b) = a if b=∅, b if a=∅, else a+"；"+b. Never overwrites a
// non-empty description with an empty one.
func CoalesceDescription(old, new string) string {
	old, new = strings.TrimSpace(old), strings.TrimSpace(new)
	switch {
	case old == "":
		return new
	case new == "":
		return old
	default:
		return old + descriptionSeparator + new
	}
}

// NormalizeDescription canonicalises a coalesced description by sorting its
// "；"-separated segments, so order-independent merges compare equal (the
// "normalise by sorting" rule in spec.md §8's round-trip law).
func NormalizeDescription(desc string) string {
	if desc == "" {
		return ""
	}
	parts := strings.Split(desc, descriptionSeparator)
	sort.Strings(parts)
	return strings.Join(parts, descriptionSeparator)
}

// MergeLabels implements spec.md's label policy: every merged entity keeps
// the __Entity__ sentinel; if either side carries 未知 and the other side
// carries a concrete label, 未知 is dropped; concrete labels are unioned.
func MergeLabels(oldLabels, newLabels []string) []string {
	set := map[string]struct{}{}
	for _, l := range oldLabels {
		set[l] = struct{}{}
	}
	for _, l := range newLabels {
		set[l] = struct{}{}
	}
	set[graphstore.EntitySentinelLabel] = struct{}{}

	hasConcrete := false
	for l := range set {
		if l != graphstore.EntitySentinelLabel && l != graphstore.UnknownType {
			hasConcrete = true
			break
		}
	}
	if hasConcrete {
		delete(set, graphstore.UnknownType)
	}

	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// MergeEntity merges new into old and returns the merged result. The
// caller is responsible for persisting it keyed by ID (upserts are
// idempotent keyed by id, per spec.md §4.4).
func MergeEntity(old, new graphstore.Entity) graphstore.Entity {
	out := old
	out.ID = old.ID
	out.Labels = MergeLabels(old.Labels, new.Labels)
	out.Description = CoalesceDescription(old.Description, new.Description)
	return out
}

// MergeRelationship merges new into old: weight = max(old, new),
// description is coalesced (spec.md §4.4 / invariant 5 in §8).
func MergeRelationship(old, new graphstore.Relationship) graphstore.Relationship {
	out := old
	out.Weight = max(old.Weight, new.Weight)
	out.Description = CoalesceDescription(old.Description, new.Description)
	return out
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
