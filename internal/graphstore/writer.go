package graphstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"

	"github.com/stroke-graphrag/graphrag/internal/chunker"
)

// ChunkID is spec.md §3's identity rule: id = SHA1(content), hex-encoded.
func ChunkID(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// WriteDocument is the Graph Writer (C3): it upserts the Document node,
// then in one call builds every Chunk node plus the PART_OF/FIRST_CHUNK/
// NEXT_CHUNK backbone for the file (spec.md §4.2). Failures here are
// fatal for the file — "partial linear chains are not useful" — so the
// caller should treat a non-nil error as "skip this file, log, move on"
// rather than retrying chunk-by-chunk.
func WriteDocument(ctx context.Context, g GraphDB, doc Document, chunks []chunker.Chunk) ([]Chunk, error) {
	if err := g.UpsertDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("upsert document %s: %w", doc.FileName, err)
	}
	rows := make([]Chunk, len(chunks))
	offset := 0
	for i, c := range chunks {
		rows[i] = Chunk{
			ID:            ChunkID(c.Text),
			Text:          c.Text,
			Position:      i + 1,
			Length:        len([]rune(c.Text)),
			FileName:      doc.FileName,
			ContentOffset: offset,
			Tokens:        len(c.Tokens),
		}
		offset += len(c.Text)
	}
	if err := g.WriteChunks(ctx, doc.FileName, rows); err != nil {
		return nil, fmt.Errorf("write chunks for %s: %w", doc.FileName, err)
	}
	return rows, nil
}
