// Package chunker splits text into overlapping, sentence-aligned token
// chunks (C2). It is the Go-native, domain-specific descendant of the
// teacher's internal/rag/chunker.SimpleChunker: same Splitter interface
// shape, but the splitting algorithm is the paragraph-buffer,
// sentence-boundary-seeking one spec.md §4.1 requires instead of the
// teacher's byte-offset heuristics.
package chunker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stroke-graphrag/graphrag/internal/tokenizer"
)

// Chunk is one emitted, sentence-aligned fragment.
type Chunk struct {
	Index  int
	Tokens []tokenizer.Token
	Text   string
}

// Options configures a single Split call.
type Options struct {
	ChunkSize   int
	Overlap     int
	Terminators []string
}

var paragraphSplit = regexp.MustCompile(`\n+`)

// Splitter is implemented by anything that can chunk text; the production
// implementation is Default.
type Splitter interface {
	Split(text string, opt Options) ([]Chunk, error)
}

// Default is the sentence-aligned paragraph-buffer chunker.
type Default struct{}

// Split implements Splitter.
func (Default) Split(text string, opt Options) ([]Chunk, error) {
	return Split(text, opt)
}

// Split implements spec.md §4.1's algorithm.
func Split(text string, opt Options) ([]Chunk, error) {
	if opt.Overlap >= opt.ChunkSize {
		return nil, fmt.Errorf("chunker: overlap (%d) must be < chunk_size (%d)", opt.Overlap, opt.ChunkSize)
	}
	if opt.ChunkSize <= 0 || opt.Overlap < 0 {
		return nil, fmt.Errorf("chunker: chunk_size and overlap must be positive")
	}
	terms := opt.Terminators
	if terms == nil {
		terms = tokenizer.DefaultTerminators
	}

	paragraphs := splitParagraphs(text)
	tokenized := make([][]tokenizer.Token, len(paragraphs))
	for i, p := range paragraphs {
		tokenized[i] = tokenizer.Tokenize(p, terms)
	}

	var buffer []tokenizer.Token
	pIdx := 0
	refill := func() bool {
		if pIdx >= len(tokenized) {
			return false
		}
		buffer = append(buffer, tokenized[pIdx]...)
		pIdx++
		return true
	}

	var chunks []Chunk
	for {
		for len(buffer) < opt.ChunkSize {
			if !refill() {
				break
			}
		}
		if len(buffer) < opt.ChunkSize {
			break
		}
		end := forwardBoundary(buffer, opt.ChunkSize)
		chunks = append(chunks, newChunk(len(chunks), buffer[:end]))
		start := backwardBoundary(buffer, end, opt.Overlap)
		buffer = buffer[start:]
	}

	if len(buffer) > 0 {
		if len(chunks) == 0 || !isStrictSuffix(buffer, chunks[len(chunks)-1].Tokens) {
			chunks = append(chunks, newChunk(len(chunks), buffer))
		}
	}
	return chunks, nil
}

func newChunk(idx int, toks []tokenizer.Token) Chunk {
	cp := make([]tokenizer.Token, len(toks))
	copy(cp, toks)
	return Chunk{Index: idx, Tokens: cp, Text: tokenizer.Join(cp)}
}

// splitParagraphs splits on any run of newlines and drops empty paragraphs.
func splitParagraphs(text string) []string {
	raw := paragraphSplit.Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// forwardBoundary finds the smallest slice length >= chunkSize whose final
// token is a sentence terminator, or len(buffer) if none exists.
func forwardBoundary(buffer []tokenizer.Token, chunkSize int) int {
	for end := chunkSize; end <= len(buffer); end++ {
		if buffer[end-1].Terminator {
			return end
		}
	}
	return len(buffer)
}

// backwardBoundary computes the start index of the next chunk by scanning
// backward from end-overlap for a terminator and starting just after it.
func backwardBoundary(buffer []tokenizer.Token, end, overlap int) int {
	anchor := end - overlap
	if start, ok := scanBackwardForTerminator(buffer, anchor); ok {
		return start
	}
	if start, ok := scanBackwardForTerminator(buffer, end-1); ok {
		return start
	}
	return anchor
}

func scanBackwardForTerminator(buffer []tokenizer.Token, from int) (int, bool) {
	if from >= len(buffer) {
		from = len(buffer) - 1
	}
	for i := from; i >= 0; i-- {
		if buffer[i].Terminator {
			return i + 1, true
		}
	}
	return 0, false
}

// isStrictSuffix reports whether buffer's token text sequence is exactly
// the trailing run of prev's token text sequence (spec.md §4.1 step 7 /
// §9's "leftover buffer at end" note).
func isStrictSuffix(buffer, prev []tokenizer.Token) bool {
	if len(buffer) == 0 || len(buffer) > len(prev) {
		return false
	}
	offset := len(prev) - len(buffer)
	for i, t := range buffer {
		if prev[offset+i].Text != t.Text {
			return false
		}
	}
	return true
}
