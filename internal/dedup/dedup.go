// Package dedup is the Deduplicator (C7): a three-stage filter pipeline
// (kNN → weakly-connected-components → edit-distance refinement → LLM
// arbitration → merge) that consolidates near-duplicate entities.
// Grounded on spec.md §4.6, using internal/graphalgo for the two graph
// algorithms and internal/llm for the arbitration call; the refinement
// stage's edit-distance check is grounded on the teacher's
// internal/rag/ingest dedup heuristics (case-insensitive rune-distance
// comparison), generalized to Chinese surface-name candidates.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphalgo"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
	"github.com/stroke-graphrag/graphrag/internal/logging"
)

// Run executes the full pipeline against g and returns the number of
// entities merged away.
func Run(ctx context.Context, provider llm.Provider, g graphstore.GraphDB, cfg config.Dedup) (int, error) {
	log := logging.FromContext(ctx)

	entities, err := g.AllEntitiesWithEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("load entities: %w", err)
	}
	if len(entities) < 2 {
		return 0, nil
	}

	// Stage 1: kNN + WCC.
	nodes := make([]graphalgo.Node, len(entities))
	byID := make(map[string]graphstore.Entity, len(entities))
	for i, e := range entities {
		nodes[i] = graphalgo.Node{ID: e.ID, Vector: e.Embedding}
		byID[e.ID] = e
	}
	cutoff := cfg.SimilarityCutoff
	if cutoff <= 0 {
		cutoff = 0.94
	}
	pairs := graphalgo.KNN(nodes, cutoff)

	ids := make([]string, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
	}
	var edges []graphalgo.WeightedEdge
	for _, p := range pairs {
		edges = append(edges, graphalgo.WeightedEdge{Src: p.A, Dst: p.B, Weight: p.Score})
	}
	wcc := graphalgo.WCC(ids, edges)

	for id, comp := range wcc {
		if err := g.SetWCC(ctx, id, comp); err != nil {
			return 0, fmt.Errorf("set wcc for %s: %w", id, err)
		}
	}

	// Group entity ids by component.
	components := map[int][]string{}
	for id, comp := range wcc {
		components[comp] = append(components[comp], id)
	}

	// Stage 2: candidate refinement within each component of size >= 2.
	maxDist := cfg.WordEditDistance
	if maxDist <= 0 {
		maxDist = 3
	}
	var candidates [][]string
	for _, members := range components {
		if len(members) < 2 {
			continue
		}
		if !shareConcreteLabel(members, byID) {
			continue
		}
		groups := refineByEditDistance(members, maxDist)
		candidates = append(candidates, groups...)
	}

	// Stage 3: LLM arbitration, then merge.
	merged := 0
	for _, cand := range candidates {
		if len(cand) < 2 {
			continue
		}
		subgroups, err := arbitrate(ctx, provider, cand, byID)
		if err != nil {
			log.Warn().Err(err).Strs("candidates", cand).Msg("dedup arbitration failed, skipping candidate set")
			continue
		}
		for _, group := range subgroups {
			if len(group) < 2 {
				continue
			}
			survivor := group[0]
			victims := group[1:]
			if err := g.MergeEntities(ctx, survivor, victims); err != nil {
				return merged, fmt.Errorf("merge %v into %s: %w", victims, survivor, err)
			}
			merged += len(victims)
		}
	}
	return merged, nil
}

func shareConcreteLabel(members []string, byID map[string]graphstore.Entity) bool {
	var common map[string]struct{}
	for i, id := range members {
		labels := map[string]struct{}{}
		for _, l := range byID[id].ConcreteLabels() {
			labels[l] = struct{}{}
		}
		if i == 0 {
			common = labels
			continue
		}
		for l := range common {
			if _, ok := labels[l]; !ok {
				delete(common, l)
			}
		}
	}
	return len(common) > 0
}

// refineByEditDistance keeps pairs whose case-insensitive rune edit
// distance is below maxDist, then union-merges overlapping pairs into
// disjoint groups (spec.md §4.6 stage 2).
func refineByEditDistance(members []string, maxDist int) [][]string {
	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, m := range members {
		parent[m] = m
	}

	for i := 0; i < len(members); i++ {
		if isNumericLike(members[i]) {
			continue
		}
		for j := i + 1; j < len(members); j++ {
			if isNumericLike(members[j]) {
				continue
			}
			if editDistance(strings.ToLower(members[i]), strings.ToLower(members[j])) < maxDist {
				union(members[i], members[j])
			}
		}
	}

	groups := map[string][]string{}
	for _, m := range members {
		root := find(m)
		groups[root] = append(groups[root], m)
	}
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		if len(g) >= 2 {
			out = append(out, g)
		}
	}
	return out
}

// editDistance is a standard Levenshtein distance over runes (so
// multi-byte Chinese characters count as single edits).
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

type arbitrationResponse struct {
	Groups [][]string `json:"groups"`
}

// arbitrate asks the LLM which subgroups of cand genuinely co-refer,
// honoring the spec.md §4.6 rules (numbers/dates/model-numbers never
// merge; pure-concept and pure-object entities don't cross-merge). The
// LLM is run in deterministic mode (temperature≈0) since this is a
// classifier call, per spec.md §6.
func arbitrate(ctx context.Context, provider llm.Provider, cand []string, byID map[string]graphstore.Entity) ([][]string, error) {
	var b strings.Builder
	b.WriteString("以下候选实体可能指代同一现实世界对象，请判断哪些子集真正同指，输出 JSON：{\"groups\":[[\"A\",\"B\"],...]}。\n")
	b.WriteString("规则：数字、日期、型号等精确值不同指；纯概念实体与纯实物实体不跨类合并。\n")
	for _, id := range cand {
		e := byID[id]
		fmt.Fprintf(&b, "- %s（类型：%s，描述：%s）\n", id, strings.Join(e.ConcreteLabels(), "/"), e.Description)
	}

	resp, err := provider.Complete(ctx, llm.Request{
		System:      "你是医学实体消歧助手，只输出 JSON，不要任何额外文字。",
		Prompt:      b.String(),
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}

	jsonStart := strings.Index(resp, "{")
	jsonEnd := strings.LastIndex(resp, "}")
	if jsonStart < 0 || jsonEnd < jsonStart {
		return nil, fmt.Errorf("arbitration: no JSON object in response")
	}
	var parsed arbitrationResponse
	if err := json.Unmarshal([]byte(resp[jsonStart:jsonEnd+1]), &parsed); err != nil {
		return nil, fmt.Errorf("arbitration: parse response: %w", err)
	}

	valid := map[string]struct{}{}
	for _, id := range cand {
		valid[id] = struct{}{}
	}
	var groups [][]string
	for _, g := range parsed.Groups {
		var filtered []string
		for _, id := range g {
			if _, ok := valid[id]; ok {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) >= 2 {
			groups = append(groups, filtered)
		}
	}
	return groups, nil
}

// isNumericLike reports whether s looks like a bare number/date/model
// code — used by callers that want to pre-filter candidates before
// spending an LLM call (spec.md §4.6's "numbers/dates/model-numbers
// never merge" rule, enforced defensively in addition to the prompt).
func isNumericLike(s string) bool {
	if s == "" {
		return false
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return digits*2 >= len([]rune(s))
}
