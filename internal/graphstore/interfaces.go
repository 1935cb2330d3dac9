package graphstore

import "context"

// MentionCount pairs a chunk with how many times it mentions the queried
// entity set (used to rank chunks in local retrieval).
type MentionCount struct {
	ChunkID string
	Count   int
}

// ScoredEntity pairs an entity with a vector-similarity score.
type ScoredEntity struct {
	Entity Entity
	Score  float64
}

// GraphDB is the portable contract every pipeline stage depends on.
// Concrete backends: MemoryGraph (tests), PostgresGraph
// (production). Grounded on the teacher's databases.GraphDB
// (UpsertNode/UpsertEdge/Neighbors/GetNode), generalized to the typed
// domain operations spec.md's components require; realized as typed
// methods rather than the Design Notes' generic run_write/run_read
// query-string shape because this corpus has no Cypher-speaking engine
// to target — typed Go methods over the same swappable interface are the
// idiomatic equivalent.
type GraphDB interface {
	// C3: Graph Writer.
	UpsertDocument(ctx context.Context, doc Document) error
	WriteChunks(ctx context.Context, fileName string, chunks []Chunk) error

	// C4/C5: Extractor output + Graph Merger.
	UpsertEntity(ctx context.Context, id string, labels []string, description string) (Entity, error)
	UpsertRelationship(ctx context.Context, rel Relationship) error
	AddMention(ctx context.Context, chunkID, entityID string) error
	GetEntity(ctx context.Context, id string) (Entity, bool, error)

	// C6: Embedder.
	DirtyEntityIDs(ctx context.Context) ([]string, error)
	SetEmbedding(ctx context.Context, entityID string, vec []float32) error

	// C7: Deduplicator.
	AllEntitiesWithEmbedding(ctx context.Context) ([]Entity, error)
	SetWCC(ctx context.Context, entityID string, wcc int) error
	MergeEntities(ctx context.Context, survivorID string, victimIDs []string) error
	CollapseDuplicateRelationships(ctx context.Context) error

	// C8: Community Builder.
	AllEntityIDs(ctx context.Context) ([]string, error)
	AllRelationshipsUnified(ctx context.Context) ([]Relationship, error)
	UpsertCommunityMembership(ctx context.Context, entityID, communityID string, level int) error
	ChunksMentioningAny(ctx context.Context, entityIDs []string) ([]string, error)
	SetCommunityRank(ctx context.Context, communityID string, rank int) error

	// C9: Summariser.
	CommunitiesAtLevel(ctx context.Context, level int) ([]Community, error)
	CommunityMembers(ctx context.Context, communityID string) ([]Entity, error)
	RelationshipsAmong(ctx context.Context, entityIDs []string) ([]Relationship, error)
	SetCommunitySummary(ctx context.Context, communityID, summary string) error

	// C10: Local Retriever.
	VectorSearchEntities(ctx context.Context, vec []float32, k int) ([]ScoredEntity, error)
	ChunksMentioningRanked(ctx context.Context, entityIDs []string, topK int) ([]Chunk, error)
	CommunitiesForEntities(ctx context.Context, entityIDs []string, topK int) ([]Community, error)
	OutsideRelationships(ctx context.Context, entityIDs []string, topK int) ([]Relationship, error)
	InsideRelationships(ctx context.Context, entityIDs []string, topK int) ([]Relationship, error)

	// C12 / maintenance.
	SetEntityImageURL(ctx context.Context, entityID, url string) error
	Reset(ctx context.Context) error
}
