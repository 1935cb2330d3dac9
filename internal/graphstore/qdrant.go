package graphstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// qdrantIndex implements VectorIndex over the "vector" collection, grounded
// on the teacher's internal/persistence/databases.qdrantVector. Qdrant
// point ids must be UUIDs or integers, so entity ids (arbitrary Chinese
// surface names) are mapped through a deterministic SHA1-based UUID and
// the original id is carried in the payload, exactly as the teacher does.
type qdrantIndex struct {
	client     *qdrant.Client
	collection string
}

const payloadIDField = "_entity_id"

// NewQdrantIndex connects to Qdrant and ensures the "vector" collection
// exists with the given dimensionality and cosine distance (spec.md §6:
// "a vector index over a node property embedding").
func NewQdrantIndex(ctx context.Context, host string, port int, apiKey string, dims int) (VectorIndex, error) {
	cfg := &qdrant.Config{Host: host, Port: port}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	idx := &qdrantIndex{client: client, collection: "vector"}
	exists, err := client.CollectionExists(ctx, idx.collection)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("check collection: %w", err)
	}
	if !exists {
		if err := client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: idx.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dims),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			client.Close()
			return nil, fmt.Errorf("create collection: %w", err)
		}
	}
	return idx, nil
}

func entityPointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *qdrantIndex) Upsert(ctx context.Context, id string, vec []float32) error {
	payload := qdrant.NewValueMap(map[string]any{payloadIDField: id})
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(entityPointID(id)),
			Vectors: qdrant.NewVectorsDense(append([]float32(nil), vec...)),
			Payload: payload,
		}},
	})
	return err
}

func (q *qdrantIndex) Search(ctx context.Context, vec []float32, k int) ([]ScoredID, error) {
	if k <= 0 {
		k = 10
	}
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(append([]float32(nil), vec...)),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}
	out := make([]ScoredID, 0, len(hits))
	for _, h := range hits {
		id := h.Id.GetUuid()
		if h.Payload != nil {
			if v, ok := h.Payload[payloadIDField]; ok {
				id = v.GetStringValue()
			}
		}
		out = append(out, ScoredID{ID: id, Score: float64(h.Score)})
	}
	return out, nil
}
