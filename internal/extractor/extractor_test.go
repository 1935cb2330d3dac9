package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
)

type stubProvider struct {
	response string
	err      error
}

func (s stubProvider) Complete(context.Context, llm.Request) (string, error) {
	return s.response, s.err
}

var testCfg = config.Extraction{RecordDelimiter: "\n", CompletionDelimiter: "\n\n", TupleDelimiter: " : "}

// TestExtract_S3 reproduces spec.md §8 scenario S3 exactly.
func TestExtract_S3(t *testing.T) {
	resp := `("entity" : "阿司匹林" : "药物" : "抗血小板药。")
garbage line
("relationship" : "阿司匹林" : "缺血性脑卒中" : "用于治疗" : "预防复发。" : 9)`

	res := PostParse(Parse(resp, testCfg))

	require.Len(t, res.Entities, 2)
	require.Equal(t, "阿司匹林", res.Entities[0].Name)
	require.Equal(t, "药物", res.Entities[0].Type)
	require.Equal(t, "缺血性脑卒中", res.Entities[1].Name)
	require.Equal(t, graphstore.UnknownType, res.Entities[1].Type)

	require.Len(t, res.Relationships, 1)
	require.Equal(t, 9.0, res.Relationships[0].Weight)
	require.Equal(t, "预防复发。", res.Relationships[0].Description)
}

func TestParse_DropsUnparseableLines(t *testing.T) {
	recs := Parse("not a record\n(\"entity\" : \"X\" : \"疾病\" : \"d\")\n", testCfg)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Entity)
}

func TestParse_StopsAtCompletionDelimiter(t *testing.T) {
	resp := "(\"entity\" : \"X\" : \"疾病\" : \"d\")\n\n(\"entity\" : \"Y\" : \"疾病\" : \"d2\")"
	recs := Parse(resp, testCfg)
	require.Len(t, recs, 1)
	require.Equal(t, "X", recs[0].Entity.Name)
}

func TestParseLine_StripsBackticksFromType(t *testing.T) {
	recs := Parse("(\"entity\" : \"X\" : \"`疾病`\" : \"d\")", testCfg)
	require.Len(t, recs, 1)
	require.Equal(t, "疾病", recs[0].Entity.Type)
}

func TestRun_EmptyExtractionWritesNothing(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	chunks := []graphstore.Chunk{{ID: "c1", Text: "some text"}}
	provider := stubProvider{response: "garbage only, no records"}
	require.NoError(t, Run(context.Background(), provider, g, testCfg, chunks))

	ids, err := g.AllEntityIDs(context.Background())
	require.NoError(t, err)
	require.Empty(t, ids, "chunk yielding 0 entities must not write to the graph")
}

func TestRun_WritesEntitiesAndMentions(t *testing.T) {
	g := graphstore.NewMemoryGraph()
	chunks := []graphstore.Chunk{{ID: "c1", Text: "chunk text"}}
	provider := stubProvider{response: `("entity" : "阿司匹林" : "药物" : "抗血小板药。")`}
	require.NoError(t, Run(context.Background(), provider, g, testCfg, chunks))

	e, ok, err := g.GetEntity(context.Background(), "阿司匹林")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, e.HasLabel("药物"))
}
