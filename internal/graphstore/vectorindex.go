package graphstore

import "context"

// ScoredID is one hit from a VectorIndex search.
type ScoredID struct {
	ID    string
	Score float64
}

// VectorIndex is the pluggable "vector index named `vector`" spec.md §6
// requires ("HNSW or equivalent"). PostgresGraph delegates
// VectorSearchEntities to one when configured; without one it falls back
// to a brute-force scan of the embeddings it stores itself.
type VectorIndex interface {
	Upsert(ctx context.Context, id string, vec []float32) error
	Search(ctx context.Context, vec []float32, k int) ([]ScoredID, error)
}
