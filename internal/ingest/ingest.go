// Package ingest is the `graphctl create` driver: walk a corpus
// directory of UTF-8 .txt files, chunk and write each one (C2/C3), then
// run extraction (C4/C5) over every chunk. Grounded on the teacher's
// internal/rag/ingest.IndexGraph for the "one file at a time, tolerate
// and log per-file failures" driver shape (spec.md §7's propagation
// policy: "Worker errors do not abort the driver").
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stroke-graphrag/graphrag/internal/chunker"
	"github.com/stroke-graphrag/graphrag/internal/config"
	"github.com/stroke-graphrag/graphrag/internal/embedding"
	"github.com/stroke-graphrag/graphrag/internal/extractor"
	"github.com/stroke-graphrag/graphrag/internal/graphstore"
	"github.com/stroke-graphrag/graphrag/internal/llm"
	"github.com/stroke-graphrag/graphrag/internal/logging"
)

// Corpus ingests every .txt file directly under dir. Files are processed
// sequentially here — "between files, no ordering is promised; files may
// be processed in parallel" (spec.md §5) is a permission, not a
// requirement, and a sequential driver keeps the failure-per-file log
// trivial to read; extraction concurrency (the expensive part) still
// happens at chunk granularity inside extractor.Run.
func Corpus(ctx context.Context, g graphstore.GraphDB, provider llm.Provider, dir string, cfg config.Config) error {
	log := logging.FromContext(ctx)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := File(ctx, g, provider, path, cfg); err != nil {
			log.Error().Err(err).Str("file", path).Msg("failed to ingest file, skipping")
			continue
		}
	}
	return nil
}

// File ingests one document: chunk, write the chunk chain, then extract
// entities/relationships from every chunk.
func File(ctx context.Context, g graphstore.GraphDB, provider llm.Provider, path string, cfg config.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	chunks, err := chunker.Split(string(raw), chunker.Options{
		ChunkSize:   cfg.Chunker.ChunkSize,
		Overlap:     cfg.Chunker.Overlap,
		Terminators: cfg.Chunker.Terminators,
	})
	if err != nil {
		return fmt.Errorf("chunk %s: %w", path, err)
	}

	doc := graphstore.Document{FileName: filepath.Base(path), Type: "text/plain", URI: path}
	rows, err := graphstore.WriteDocument(ctx, g, doc, chunks)
	if err != nil {
		return fmt.Errorf("write document %s: %w", path, err)
	}

	return extractor.Run(ctx, provider, g, cfg.Extraction, rows)
}

// Embed runs C6: recompute embeddings for every entity whose description
// changed since it was last embedded.
func Embed(ctx context.Context, g graphstore.GraphDB, embedder embedding.Provider) (int, error) {
	ids, err := g.DirtyEntityIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("dirty entity ids: %w", err)
	}
	count := 0
	for _, id := range ids {
		e, ok, err := g.GetEntity(ctx, id)
		if err != nil {
			return count, fmt.Errorf("get entity %s: %w", id, err)
		}
		if !ok {
			continue
		}
		vecs, err := embedder.Embed(ctx, []string{e.ID + "\n" + e.Description})
		if err != nil {
			return count, fmt.Errorf("embed %s: %w", id, err)
		}
		if err := g.SetEmbedding(ctx, id, vecs[0]); err != nil {
			return count, fmt.Errorf("set embedding for %s: %w", id, err)
		}
		count++
	}
	return count, nil
}
