// Package global is the Global Retriever — Map/Reduce (C11): score every
// non-empty community summary at a level against the query in parallel,
// drop low scorers, then reduce the survivors into one cited answer.
// Grounded on spec.md §4.10; the map stage's bounded worker pool mirrors
// internal/extractor and internal/summarize.
package global

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
)

const noEvidenceAnswer = "不知道"
const defaultScoreThreshold = 60

// Point is one scored claim extracted from a community summary during
// the map stage.
type Point struct {
	CommunityID string `json:"-"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
}

type mapResponse struct {
	Relevance int `json:"relevance"`
	Points    []struct {
		Text  string `json:"text"`
		Score int    `json:"score"`
	} `json:"points"`
}

// Answer runs the map/reduce algorithm over every level-`level` community
// with a non-empty summary.
func Answer(ctx context.Context, provider llm.Provider, g graphstore.GraphDB, cfg config.Retrieve, level int, query string) (string, error) {
	communities, err := g.CommunitiesAtLevel(ctx, level)
	if err != nil {
		return "", fmt.Errorf("load communities: %w", err)
	}

	var withSummary []graphstore.Community
	for _, c := range communities {
		if strings.TrimSpace(c.Summary) != "" {
			withSummary = append(withSummary, c)
		}
	}
	if len(withSummary) == 0 {
		return noEvidenceAnswer, nil
	}

	threshold := cfg.ScoreThreshold
	if threshold <= 0 {
		threshold = defaultScoreThreshold
	}
	maxConc := cfg.MapConcurrency
	if maxConc <= 0 {
		maxConc = 12
	}

	points, err := mapStage(ctx, provider, withSummary, query, threshold, maxConc)
	if err != nil {
		return "", err
	}
	if len(points) == 0 {
		return noEvidenceAnswer, nil
	}
	return reduceStage(ctx, provider, points, query)
}

func mapStage(ctx context.Context, provider llm.Provider, communities []graphstore.Community, query string, threshold, maxConc int) ([]Point, error) {
	sem := semaphore.NewWeighted(int64(maxConc))
	type result struct {
		points []Point
		err    error
	}
	results := make(chan result, len(communities))

	for _, c := range communities {
		c := c
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func() {
			defer sem.Release(1)
			pts, err := scoreCommunity(ctx, provider, c, query)
			results <- result{points: pts, err: err}
		}()
	}

	var all []Point
	for range communities {
		r := <-results
		if r.err != nil {
			continue // map-stage failures are non-fatal; that community just contributes nothing
		}
		for _, p := range r.points {
			if p.Score >= threshold {
				all = append(all, p)
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	return all, nil
}

func scoreCommunity(ctx context.Context, provider llm.Provider, c graphstore.Community, query string) ([]Point, error) {
	prompt := fmt.Sprintf(
		"问题：%s\n\n社区摘要（id=%s）：\n%s\n\n请判断该摘要与问题的相关性（0-100分），并给出支持回答问题的要点列表。"+
			`仅输出 JSON：{"relevance": <int>, "points": [{"text": "...", "score": <int>}, ...]}`,
		query, c.ID, c.Summary)

	resp, err := provider.Complete(ctx, llm.Request{
		System:      "你是医学知识图谱全局检索的评分助手，只输出 JSON。",
		Prompt:      prompt,
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}

	start, end := strings.Index(resp, "{"), strings.LastIndex(resp, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("global map: no JSON in response for community %s", c.ID)
	}
	var parsed mapResponse
	if err := json.Unmarshal([]byte(resp[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("global map: parse response for %s: %w", c.ID, err)
	}

	out := make([]Point, 0, len(parsed.Points))
	for _, p := range parsed.Points {
		out = append(out, Point{CommunityID: c.ID, Text: p.Text, Score: p.Score})
	}
	return out, nil
}

func reduceStage(ctx context.Context, provider llm.Provider, points []Point, query string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "问题：%s\n\n以下是按相关性排序的要点，请综合它们生成最终答案，并在引用处标注其来源社区 id：\n", query)
	for _, p := range points {
		fmt.Fprintf(&b, "- [社区 %s | 分数 %d] %s\n", p.CommunityID, p.Score, p.Text)
	}

	answer, err := provider.Complete(ctx, llm.Request{
		System:      "你是医学知识图谱问答助手，综合给定要点生成答案，保留要点的社区 id 引用。",
		Prompt:      b.String(),
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
