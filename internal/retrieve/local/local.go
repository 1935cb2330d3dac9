// Package local is the Local Retriever (C10): vector search to an entity
// seed set, one-hop expansion into four ordered collections, and a
// single LLM call over the assembled report. Grounded on spec.md §4.9
// and on the teacher's internal/rag/retrieve.api for the
// embed-then-expand-then-answer request shape.
package local

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/embedding"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
)

// Report is the "analysis report" block spec.md §4.9 names with stable
// field names (Chunks / Reports / Relationships / Entities).
type Report struct {
	Chunks        []graphstore.Chunk
	Reports       []graphstore.Community
	Relationships RelationshipSet
	Entities      []graphstore.Entity
}

type RelationshipSet struct {
	Outside []graphstore.Relationship
	Inside  []graphstore.Relationship
}

const noEvidenceAnswer = "不知道"

// Answer runs the full C10 algorithm and returns the LLM's free-text
// answer (spec.md §7: "Retriever with no hits" returns 不知道).
func Answer(ctx context.Context, provider llm.Provider, embedder embedding.Provider, g graphstore.GraphDB, cfg config.Retrieve, query string) (string, error) {
	report, err := Assemble(ctx, embedder, g, cfg, query)
	if err != nil {
		return "", err
	}
	if len(report.Entities) == 0 {
		return noEvidenceAnswer, nil
	}

	prompt := renderReport(report, query)
	answer, err := provider.Complete(ctx, llm.Request{
		System: "你是医学知识图谱问答助手。请仅依据提供的资料作答；若资料不足以回答，请直接回答“不知道”。",
		Prompt: prompt,
		// deterministic mode: this is a grounded-QA pass over retrieved
		// evidence, not a creative generation task (spec.md §6).
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return noEvidenceAnswer, nil
	}
	return answer, nil
}

// Assemble runs steps 1-3 of spec.md §4.9 without the final LLM call, so
// tests and the global retriever's siblings can inspect the intermediate
// report directly.
func Assemble(ctx context.Context, embedder embedding.Provider, g graphstore.GraphDB, cfg config.Retrieve, query string) (Report, error) {
	vecs, err := embedder.Embed(ctx, []string{query})
	if err != nil {
		return Report{}, fmt.Errorf("embed query: %w", err)
	}

	topEntities := cfg.TopEntities
	if topEntities <= 0 {
		topEntities = 10
	}
	scored, err := g.VectorSearchEntities(ctx, vecs[0], topEntities)
	if err != nil {
		return Report{}, fmt.Errorf("vector search: %w", err)
	}
	if len(scored) == 0 {
		return Report{}, nil
	}

	entities := make([]graphstore.Entity, len(scored))
	ids := make([]string, len(scored))
	for i, s := range scored {
		entities[i] = s.Entity
		ids[i] = s.Entity.ID
	}

	topChunks := orDefault(cfg.TopChunks, 3)
	topCommunities := orDefault(cfg.TopCommunities, 3)
	topOutside := orDefault(cfg.TopOutsideRels, 10)
	topInside := orDefault(cfg.TopInsideRels, 10)

	chunks, err := g.ChunksMentioningRanked(ctx, ids, topChunks)
	if err != nil {
		return Report{}, fmt.Errorf("ranked chunks: %w", err)
	}
	communities, err := g.CommunitiesForEntities(ctx, ids, topCommunities)
	if err != nil {
		return Report{}, fmt.Errorf("communities: %w", err)
	}
	outside, err := g.OutsideRelationships(ctx, ids, topOutside)
	if err != nil {
		return Report{}, fmt.Errorf("outside relationships: %w", err)
	}
	inside, err := g.InsideRelationships(ctx, ids, topInside)
	if err != nil {
		return Report{}, fmt.Errorf("inside relationships: %w", err)
	}

	sort.SliceStable(outside, func(i, j int) bool { return outside[i].Weight > outside[j].Weight })
	sort.SliceStable(inside, func(i, j int) bool { return inside[i].Weight > inside[j].Weight })

	return Report{
		Chunks:        chunks,
		Reports:       communities,
		Relationships: RelationshipSet{Outside: outside, Inside: inside},
		Entities:      entities,
	}, nil
}

func orDefault(v, d int) int {
	if v <= 0 {
		return d
	}
	return v
}

func renderReport(r Report, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "问题：%s\n\n", query)

	b.WriteString("[Entities]\n")
	for _, e := range r.Entities {
		fmt.Fprintf(&b, "- %s（%s）：%s\n", e.ID, strings.Join(e.ConcreteLabels(), "/"), e.Description)
	}

	b.WriteString("\n[Chunks]\n")
	for _, c := range r.Chunks {
		fmt.Fprintf(&b, "- %s\n", c.Text)
	}

	b.WriteString("\n[Reports]\n")
	for _, c := range r.Reports {
		fmt.Fprintf(&b, "- [%s] %s\n", c.ID, c.Summary)
	}

	b.WriteString("\n[Relationships]\n")
	for _, rel := range r.Relationships.Inside {
		fmt.Fprintf(&b, "- %s --%s--> %s：%s\n", rel.Source, rel.Type, rel.Target, rel.Description)
	}
	for _, rel := range r.Relationships.Outside {
		fmt.Fprintf(&b, "- %s --%s--> %s：%s\n", rel.Source, rel.Type, rel.Target, rel.Description)
	}

	return b.String()
}
