// Package summarize is the Summariser (C9): for every community with
// enough members, assemble a token-budgeted description of its induced
// subgraph and ask the LLM for a free-text summary, concurrently.
// Grounded on spec.md §4.8; the bounded worker pool follows the same
// golang.org/x/sync/semaphore shape as internal/extractor.
package summarize

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
	"github.com/stroke-graphrag/graphrag/internal/logging"
)

// charsPerToken approximates spec.md §4.8's "120,000 tokens ≈ 200,000
// Chinese characters": 0.6 tokens per character, i.e. ~1.667 Chinese
// characters per token; we budget directly in characters (runes) to avoid
// needing a tokenizer for Chinese text.
const charsPerToken = 1.0 / 0.6

// Run summarizes every level-0 community with at least cfg.MinMembers
// members (default 4), writing Community.Summary.
func Run(ctx context.Context, provider llm.Provider, g graphstore.GraphDB, cfg config.Summarize) (int, error) {
	communities, err := g.CommunitiesAtLevel(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("load communities: %w", err)
	}

	minMembers := cfg.MinMembers
	if minMembers <= 0 {
		minMembers = 4
	}
	budget := cfg.TokenBudget
	if budget <= 0 {
		budget = 120000
	}
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 12
	}
	budgetChars := int(float64(budget) * charsPerToken)

	log := logging.FromContext(ctx)
	sem := semaphore.NewWeighted(int64(maxConc))
	done := make(chan struct{}, len(communities))
	errCh := make(chan error, len(communities))
	var summarized int64

	for _, c := range communities {
		members, err := g.CommunityMembers(ctx, c.ID)
		if err != nil {
			return int(summarized), fmt.Errorf("load members of %s: %w", c.ID, err)
		}
		if len(members) < minMembers {
			done <- struct{}{}
			continue
		}

		c, members := c, members
		if err := sem.Acquire(ctx, 1); err != nil {
			return int(summarized), err
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()

			rels, err := g.RelationshipsAmong(ctx, entityIDs(members))
			if err != nil {
				errCh <- fmt.Errorf("relationships among %s: %w", c.ID, err)
				return
			}
			text := assemble(members, rels, budgetChars)
			summary, err := provider.Complete(ctx, llm.Request{
				System:      "你是医学知识图谱社区摘要助手，请用简洁的中文总结以下实体和关系构成的子图，突出其医学意义。",
				Prompt:      text,
				Temperature: 1.0,
			})
			if err != nil {
				log.Warn().Err(err).Str("community_id", c.ID).Msg("summarization failed, leaving summary empty")
				return
			}
			if strings.TrimSpace(summary) == "" {
				return // empty summaries are excluded downstream (spec.md §7); don't count them
			}
			if err := g.SetCommunitySummary(ctx, c.ID, summary); err != nil {
				errCh <- fmt.Errorf("set summary for %s: %w", c.ID, err)
				return
			}
			atomic.AddInt64(&summarized, 1)
		}()
	}

	for range communities {
		<-done
	}
	close(errCh)
	var errs []string
	for e := range errCh {
		errs = append(errs, e.Error())
	}
	if len(errs) > 0 {
		return int(summarized), fmt.Errorf("summarization errors: %s", strings.Join(errs, "; "))
	}
	return int(summarized), nil
}

func entityIDs(entities []graphstore.Entity) []string {
	out := make([]string, len(entities))
	for i, e := range entities {
		out[i] = e.ID
	}
	return out
}

// assemble implements spec.md §4.8 step 3's token-budgeted subgraph
// serialization: relationships by descending deg(source)+deg(target)
// priority first (emitting their endpoints if not yet emitted), then any
// still-unemitted entities, stopping before the budget would overflow.
func assemble(members []graphstore.Entity, rels []graphstore.Relationship, budgetChars int) string {
	degree := map[string]int{}
	for _, r := range rels {
		degree[r.Source]++
		degree[r.Target]++
	}

	type prioritized struct {
		rel      graphstore.Relationship
		priority int
	}
	prels := make([]prioritized, len(rels))
	for i, r := range rels {
		prels[i] = prioritized{rel: r, priority: degree[r.Source] + degree[r.Target]}
	}
	sort.SliceStable(prels, func(i, j int) bool { return prels[i].priority > prels[j].priority })

	byID := make(map[string]graphstore.Entity, len(members))
	for _, e := range members {
		byID[e.ID] = e
	}

	var b strings.Builder
	used := 0 // runes written to b
	emitted := map[string]struct{}{}

	emitEntityLine := func(e graphstore.Entity) string {
		return fmt.Sprintf("实体：%s（%s）：%s\n", e.ID, strings.Join(e.ConcreteLabels(), "/"), e.Description)
	}
	emitRelLine := func(r graphstore.Relationship) string {
		return fmt.Sprintf("关系：%s --%s--> %s：%s（权重%.1f）\n", r.Source, r.Type, r.Target, r.Description, r.Weight)
	}

	for _, p := range prels {
		r := p.rel
		var pending []string
		if _, ok := emitted[r.Source]; !ok {
			if e, ok2 := byID[r.Source]; ok2 {
				pending = append(pending, emitEntityLine(e))
			}
		}
		if _, ok := emitted[r.Target]; !ok {
			if e, ok2 := byID[r.Target]; ok2 {
				pending = append(pending, emitEntityLine(e))
			}
		}
		line := emitRelLine(r)
		addLen := utf8.RuneCountInString(line)
		for _, p := range pending {
			addLen += utf8.RuneCountInString(p)
		}
		if used+addLen > budgetChars {
			break // stop before overflow; never truncate mid-line (spec.md §7)
		}
		for _, p := range pending {
			b.WriteString(p)
		}
		b.WriteString(line)
		used += addLen
		emitted[r.Source] = struct{}{}
		emitted[r.Target] = struct{}{}
	}

	sortedMembers := append([]graphstore.Entity(nil), members...)
	sort.Slice(sortedMembers, func(i, j int) bool { return sortedMembers[i].ID < sortedMembers[j].ID })
	for _, e := range sortedMembers {
		if _, ok := emitted[e.ID]; ok {
			continue
		}
		line := emitEntityLine(e)
		n := utf8.RuneCountInString(line)
		if used+n > budgetChars {
			break
		}
		b.WriteString(line)
		used += n
		emitted[e.ID] = struct{}{}
	}

	return b.String()
}
