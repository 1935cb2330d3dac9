package chunker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func tokenTexts(c Chunk) []string {
	out := make([]string, len(c.Tokens))
	for i, t := range c.Tokens {
		out[i] = t.Text
	}
	return out
}

// TestSplit_S1 is spec.md §8 scenario S1.
func TestSplit_S1(t *testing.T) {
	text := "A。BB。CCC。DDDD。EEEEE。"
	chunks, err := Split(text, Options{ChunkSize: 4, Overlap: 2})
	require.NoError(t, err)

	want := [][]string{
		{"A", "。", "BB", "。"},
		{"BB", "。", "CCC", "。"},
		{"CCC", "。", "DDDD", "。"},
		{"DDDD", "。", "EEEEE", "。"},
	}
	require.Len(t, chunks, len(want))
	for i, c := range chunks {
		require.Equal(t, want[i], tokenTexts(c), "chunk %d", i)
		require.True(t, c.Tokens[0].Terminator == false)
		require.True(t, c.Tokens[len(c.Tokens)-1].Terminator, "chunk %d must end on a terminator", i)
	}
}

func TestSplit_RejectsOverlapNotLessThanChunkSize(t *testing.T) {
	_, err := Split("x", Options{ChunkSize: 4, Overlap: 4})
	require.Error(t, err)
}

func TestSplit_NoTerminators_FallsBackToBufferBoundaries(t *testing.T) {
	text := "一段没有句子终止符的纯文本用于测试边界情形处理逻辑是否稳健可靠"
	chunks, err := Split(text, Options{ChunkSize: 6, Overlap: 2})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		for _, tok := range c.Tokens {
			require.False(t, tok.Terminator)
		}
	}
}

func TestSplit_MultipleParagraphsProduceChunks(t *testing.T) {
	text := "短段。\n\n另一个较短的段落没有终止符继续继续继续继续继续继续"
	chunks, err := Split(text, Options{ChunkSize: 4, Overlap: 1})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
}

func TestSplit_FinalLeftoverSuppressedWhenStrictSuffix(t *testing.T) {
	// Mirrors S1: the trailing two tokens of the last emitted chunk are a
	// strict suffix of that chunk and must not be re-emitted.
	text := "A。BB。CCC。DDDD。EEEEE。"
	chunks, err := Split(text, Options{ChunkSize: 4, Overlap: 2})
	require.NoError(t, err)
	last := chunks[len(chunks)-1]
	require.Equal(t, []string{"DDDD", "。", "EEEEE", "。"}, tokenTexts(last))
}
