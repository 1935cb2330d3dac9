// Package extractor is the Extractor (C4): turn one chunk of raw text
// into entity/relationship records via a closed-vocabulary LLM prompt,
// tolerating unparseable lines and non-fatal per-chunk failures. Grounded
// on the teacher's internal/rag/ingest.IndexGraph for the
// "extract-then-write, tolerate-and-log" shape, generalized to spec.md
// §4.3's tuple-delimited record protocol (the teacher's own ingest
// pipeline targets a different wire format; only its concurrency and
// error-tolerance texture carries over).
package extractor

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
	"github.com/stroke-graphrag/graphrag/internal/logging"
)

// EntityTypes and RelationshipTypes are the closed vocabularies named in
// GLOSSARY ("~48 biomedical categories", "~45 biomedical verbs"). They are
// package variables and are not read from config; the lists here cover
// the scenarios spec.md's tests exercise
// plus a representative spread of the stroke/cardiovascular domain.
var EntityTypes = []string{
	"疾病", "症状", "药物", "检查", "治疗方法", "手术", "解剖结构", "危险因素",
	"并发症", "人群", "医疗机构", "医生", "指南", "量表", "基因", "细胞", "其他",
}

var RelationshipTypes = []string{
	"导致", "用于治疗", "增加风险", "缓解", "诊断为", "预防", "引起并发症",
	"适用于", "禁用于", "相互作用", "检测出", "属于", "其他",
}

// Record is a tagged sum type for one parsed extractor output line
// (DESIGN NOTES: "Dynamic typing → tagged variants").
type Record struct {
	Entity       *EntityRecord
	Relationship *RelationshipRecord
}

type EntityRecord struct {
	Name        string
	Type        string
	Description string
}

type RelationshipRecord struct {
	Source      string
	Target      string
	Type        string
	Description string
	Weight      float64
}

// Result is one chunk's tolerant extraction: PostParse has already
// synthesized placeholder entities for unresolved relationship endpoints.
type Result struct {
	Entities      []EntityRecord
	Relationships []RelationshipRecord
}

// BuildSystemPrompt renders the closed-vocabulary prompt contract.
func BuildSystemPrompt(cfg config.Extraction) string {
	var b strings.Builder
	b.WriteString("你是一个医学知识图谱抽取助手。从给定文本中抽取实体和关系，输出格式如下：\n")
	fmt.Fprintf(&b, `("entity"%s<NAME>%s<TYPE>%s<DESCRIPTION>)`+"\n", cfg.TupleDelimiter, cfg.TupleDelimiter, cfg.TupleDelimiter)
	fmt.Fprintf(&b, `("relationship"%s<SOURCE>%s<TARGET>%s<TYPE>%s<DESCRIPTION>%s<WEIGHT>)`+"\n", cfg.TupleDelimiter, cfg.TupleDelimiter, cfg.TupleDelimiter, cfg.TupleDelimiter, cfg.TupleDelimiter)
	b.WriteString("实体类型限定为：" + strings.Join(EntityTypes, "、") + "\n")
	b.WriteString("关系类型限定为：" + strings.Join(RelationshipTypes, "、") + "\n")
	b.WriteString("无法归类的用“其他”表示。每条记录用" + escapeDelimiterName(cfg.RecordDelimiter) + "分隔，全部输出完毕后以" + escapeDelimiterName(cfg.CompletionDelimiter) + "结束。")
	return b.String()
}

func escapeDelimiterName(d string) string {
	switch d {
	case "\n":
		return "换行符"
	case "\n\n":
		return "空行"
	default:
		return strconv.Quote(d)
	}
}

// Extract runs one chunk through the LLM and parses its output. It never
// returns an error for parse problems — only for the LLM call itself
// failing outright — since spec.md §4.3 says a chunk yielding no usable
// records is simply an empty Result, not a failure.
func Extract(ctx context.Context, provider llm.Provider, cfg config.Extraction, chunkText string) (Result, error) {
	resp, err := provider.Complete(ctx, llm.Request{
		System:      BuildSystemPrompt(cfg),
		Prompt:      chunkText,
		Temperature: 1.0, // creative mode per spec.md §6
	})
	if err != nil {
		return Result{}, err
	}
	records := Parse(resp, cfg)
	return PostParse(records), nil
}

// Parse splits resp on RecordDelimiter (stopping at CompletionDelimiter)
// and splits each record on the tuple delimiter (ignoring delimiters
// inside quotes), keeping it if its tag and field count match the
// entity/relationship shapes.
// Unparseable lines are silently dropped (S3).
func Parse(resp string, cfg config.Extraction) []Record {
	if cfg.CompletionDelimiter != "" {
		if idx := strings.Index(resp, cfg.CompletionDelimiter); idx >= 0 {
			resp = resp[:idx]
		}
	}

	var lines []string
	if cfg.RecordDelimiter == "\n" || cfg.RecordDelimiter == "" {
		sc := bufio.NewScanner(strings.NewReader(resp))
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
	} else {
		lines = strings.Split(resp, cfg.RecordDelimiter)
	}

	out := make([]Record, 0, len(lines))
	for _, line := range lines {
		if rec, ok := parseLine(line, cfg.TupleDelimiter); ok {
			out = append(out, rec)
		}
	}
	return out
}

func parseLine(line, delim string) (Record, bool) {
	line = strings.TrimSpace(line)
	line = strings.Trim(line, "()")
	line = strings.TrimSpace(line)

	fields := splitQuoted(line, delim)
	if len(fields) == 0 {
		return Record{}, false
	}
	tag := unquote(strings.TrimSpace(fields[0]))

	switch tag {
	case "entity":
		if len(fields) != 4 {
			return Record{}, false
		}
		return Record{Entity: &EntityRecord{
			Name:        unquote(fields[1]),
			Type:        strings.ReplaceAll(unquote(fields[2]), "`", ""),
			Description: unquote(fields[3]),
		}}, true
	case "relationship":
		if len(fields) != 6 {
			return Record{}, false
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(unquote(fields[5])), 64)
		if err != nil {
			return Record{}, false
		}
		return Record{Relationship: &RelationshipRecord{
			Source:      unquote(fields[1]),
			Target:      unquote(fields[2]),
			Type:        strings.ReplaceAll(unquote(fields[3]), "`", ""),
			Description: unquote(fields[4]),
			Weight:      w,
		}}, true
	default:
		return Record{}, false
	}
}

// splitQuoted splits on delim outside double-quotes, so a delimiter that
// appears inside a quoted field (e.g. a description containing " : ")
// doesn't fragment the record.
func splitQuoted(s, delim string) []string {
	var out []string
	var cur strings.Builder
	inQuotes := false
	runes := []rune(s)
	delimRunes := []rune(delim)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '"' {
			inQuotes = !inQuotes
			cur.WriteRune(runes[i])
			continue
		}
		if !inQuotes && matchesAt(runes, i, delimRunes) {
			out = append(out, cur.String())
			cur.Reset()
			i += len(delimRunes) - 1
			continue
		}
		cur.WriteRune(runes[i])
	}
	out = append(out, cur.String())
	return out
}

func matchesAt(runes []rune, i int, delim []rune) bool {
	if len(delim) == 0 || i+len(delim) > len(runes) {
		return false
	}
	for j, d := range delim {
		if runes[i+j] != d {
			return false
		}
	}
	return true
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// PostParse synthesizes placeholder entities for relationship endpoints
// with no matching entity record (spec.md §4.3).
func PostParse(records []Record) Result {
	var res Result
	known := map[string]struct{}{}
	for _, r := range records {
		if r.Entity != nil {
			res.Entities = append(res.Entities, *r.Entity)
			known[r.Entity.Name] = struct{}{}
		}
	}
	for _, r := range records {
		if r.Relationship == nil {
			continue
		}
		res.Relationships = append(res.Relationships, *r.Relationship)
		for _, name := range []string{r.Relationship.Source, r.Relationship.Target} {
			if _, ok := known[name]; !ok {
				res.Entities = append(res.Entities, EntityRecord{Name: name, Type: graphstore.UnknownType})
				known[name] = struct{}{}
			}
		}
	}
	return res
}

// Write persists one chunk's Result into g, recording MENTIONS edges
// from the chunk to every entity it touched.
func Write(ctx context.Context, g graphstore.GraphDB, chunkID string, res Result) error {
	for _, e := range res.Entities {
		labels := []string{graphstore.EntitySentinelLabel}
		if e.Type != "" {
			labels = append(labels, e.Type)
		} else {
			labels = append(labels, graphstore.UnknownType)
		}
		if _, err := g.UpsertEntity(ctx, e.Name, labels, e.Description); err != nil {
			return fmt.Errorf("upsert entity %s: %w", e.Name, err)
		}
		if err := g.AddMention(ctx, chunkID, e.Name); err != nil {
			return fmt.Errorf("mention %s: %w", e.Name, err)
		}
	}
	for _, r := range res.Relationships {
		if err := g.UpsertRelationship(ctx, graphstore.Relationship{
			Source: r.Source, Target: r.Target, Type: r.Type, Description: r.Description, Weight: r.Weight,
		}); err != nil {
			return fmt.Errorf("upsert relationship %s-%s: %w", r.Source, r.Target, err)
		}
		for _, id := range []string{r.Source, r.Target} {
			if err := g.AddMention(ctx, chunkID, id); err != nil {
				return fmt.Errorf("mention %s: %w", id, err)
			}
		}
	}
	return nil
}

// Run extracts and writes every chunk concurrently, bounded by
// cfg.MaxConcurrency (default 12). A chunk whose LLM call fails outright
// is logged and skipped — non-fatal per spec.md §4.3 / §7. Errors from
// GraphDB writes are collected and returned jointly after all chunks
// finish, per §7's "worker errors do not abort the driver."
func Run(ctx context.Context, provider llm.Provider, g graphstore.GraphDB, cfg config.Extraction, chunks []graphstore.Chunk) error {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 12
	}
	sem := semaphore.NewWeighted(int64(maxConc))
	log := logging.FromContext(ctx)

	type failure struct {
		chunkID string
		err     error
	}
	failures := make(chan failure, len(chunks))
	done := make(chan struct{}, len(chunks))

	for _, c := range chunks {
		c := c
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()

			res, err := Extract(ctx, provider, cfg, c.Text)
			if err != nil {
				log.Warn().Err(err).Str("chunk_id", c.ID).Msg("extraction failed, skipping chunk")
				return
			}
			if len(res.Entities) == 0 && len(res.Relationships) == 0 {
				return // empty extraction: no graph write, no error (spec.md §8 boundary behaviour)
			}
			if err := Write(ctx, g, c.ID, res); err != nil {
				failures <- failure{chunkID: c.ID, err: err}
			}
		}()
	}
	for range chunks {
		<-done
	}
	close(failures)

	var errs []string
	for f := range failures {
		log.Error().Err(f.err).Str("chunk_id", f.chunkID).Msg("failed to write extraction result")
		errs = append(errs, fmt.Sprintf("%s: %v", f.chunkID, f.err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("extraction writes failed for %d chunk(s): %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
