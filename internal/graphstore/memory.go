package graphstore

import (
	"context"
	"sort"
	"sync"

	"github.com/stroke-graphrag/graphrag/internal/graphalgo"
	"github.com/stroke-graphrag/graphrag/internal/merge"
)

// MemoryGraph is an in-process GraphDB, grounded on the teacher's
// memoryGraph (internal/persistence/databases/memory_graph.go): a single
// RWMutex protecting plain Go maps. It backs unit tests and is a usable
// standalone backend for small corpora.
type MemoryGraph struct {
	mu sync.RWMutex

	documents map[string]Document
	chunks    map[string]Chunk
	chunkSeq  map[string][]string // fileName -> chunk ids in position order

	entities      map[string]Entity
	relationships map[string]Relationship // key: source|type|target
	dirty         map[string]struct{}

	mentionsByEntity map[string]map[string]struct{} // entityID -> set of chunkIDs
	mentionsByChunk  map[string]map[string]struct{} // chunkID -> set of entityIDs

	communities map[string]Community
}

// NewMemoryGraph constructs an empty MemoryGraph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		documents:        map[string]Document{},
		chunks:           map[string]Chunk{},
		chunkSeq:         map[string][]string{},
		entities:         map[string]Entity{},
		relationships:    map[string]Relationship{},
		dirty:            map[string]struct{}{},
		mentionsByEntity: map[string]map[string]struct{}{},
		mentionsByChunk:  map[string]map[string]struct{}{},
		communities:      map[string]Community{},
	}
}

func relKey(source, typ, target string) string { return source + "|" + typ + "|" + target }

// UpsertDocument upserts the Document node keyed by FileName.
func (m *MemoryGraph) UpsertDocument(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.FileName] = doc
	return nil
}

// WriteChunks writes every chunk of one file as a single unit: PART_OF is
// implied by FileName, FIRST_CHUNK by position 1, and the NEXT_CHUNK
// backbone by chunkSeq order — all derived deterministically from the
// caller's slice order (spec.md §4.2/§5). ContentOffset is recomputed here
// from cumulative text length, guaranteeing invariant 3 in spec.md §8
// regardless of what the caller supplied.
func (m *MemoryGraph) WriteChunks(_ context.Context, fileName string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, len(chunks))
	offset := 0
	for i, c := range chunks {
		c.FileName = fileName
		c.Position = i + 1
		c.ContentOffset = offset
		c.Length = len([]rune(c.Text))
		offset += len(c.Text)
		m.chunks[c.ID] = c
		ids[i] = c.ID
	}
	m.chunkSeq[fileName] = ids
	return nil
}

// UpsertEntity applies the Graph Merger's label and description policy
// (internal/merge) and marks the entity dirty for re-embedding when its
// description changed (spec.md §4.5's invariant).
func (m *MemoryGraph) UpsertEntity(_ context.Context, id string, labels []string, description string) (Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.entities[id]
	if !ok {
		e := Entity{ID: id, Labels: merge.MergeLabels(nil, labels), Description: description}
		m.entities[id] = e
		m.dirty[id] = struct{}{}
		return cloneEntity(e), nil
	}
	merged := merge.MergeEntity(existing, Entity{ID: id, Labels: labels, Description: description})
	if merged.Description != existing.Description {
		m.dirty[id] = struct{}{}
	}
	m.entities[id] = merged
	return cloneEntity(merged), nil
}

// UpsertRelationship enforces "every relationship endpoint exists" (spec.md
// §4.3's post-parse rule) defensively, then applies the weight-max /
// description-coalesce merge policy keyed by (source,type,target).
func (m *MemoryGraph) UpsertRelationship(_ context.Context, rel Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ensurePlaceholder(rel.Source)
	m.ensurePlaceholder(rel.Target)

	key := relKey(rel.Source, rel.Type, rel.Target)
	if existing, ok := m.relationships[key]; ok {
		m.relationships[key] = merge.MergeRelationship(existing, rel)
	} else {
		m.relationships[key] = rel
	}
	return nil
}

func (m *MemoryGraph) ensurePlaceholder(id string) {
	if _, ok := m.entities[id]; !ok {
		m.entities[id] = Entity{ID: id, Labels: []string{EntitySentinelLabel, UnknownType}}
		m.dirty[id] = struct{}{}
	}
}

// AddMention records a Chunk->Entity MENTIONS edge, idempotently.
func (m *MemoryGraph) AddMention(_ context.Context, chunkID, entityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mentionsByEntity[entityID] == nil {
		m.mentionsByEntity[entityID] = map[string]struct{}{}
	}
	if m.mentionsByChunk[chunkID] == nil {
		m.mentionsByChunk[chunkID] = map[string]struct{}{}
	}
	m.mentionsByEntity[entityID][chunkID] = struct{}{}
	m.mentionsByChunk[chunkID][entityID] = struct{}{}
	return nil
}

// GetEntity returns a copy of the entity, if present.
func (m *MemoryGraph) GetEntity(_ context.Context, id string) (Entity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entities[id]
	if !ok {
		return Entity{}, false, nil
	}
	return cloneEntity(e), true, nil
}

// DirtyEntityIDs returns ids pending re-embedding, sorted for determinism.
func (m *MemoryGraph) DirtyEntityIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.dirty))
	for id := range m.dirty {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// SetEmbedding stores the embedding and clears the dirty flag.
func (m *MemoryGraph) SetEmbedding(_ context.Context, entityID string, vec []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entityID]
	if !ok {
		return nil
	}
	e.Embedding = append([]float32(nil), vec...)
	m.entities[entityID] = e
	delete(m.dirty, entityID)
	return nil
}

// AllEntitiesWithEmbedding returns every entity carrying a non-empty
// embedding, for the C7 kNN projection.
func (m *MemoryGraph) AllEntitiesWithEmbedding(_ context.Context) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entity
	for _, e := range m.entities {
		if len(e.Embedding) > 0 {
			out = append(out, cloneEntity(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// SetWCC stores the weakly-connected-component id computed by C7.
func (m *MemoryGraph) SetWCC(_ context.Context, entityID string, wcc int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entityID]
	if !ok {
		return nil
	}
	e.WCC = wcc
	m.entities[entityID] = e
	return nil
}

// MergeEntities consolidates victims into survivor: union labels,
// coalesce descriptions, move MENTIONS and relationship edges, then
// collapses any relationship triples the redirection duplicated
// (spec.md §4.6's merge operation). The survivor is marked dirty so the
// embedder recomputes its vector.
func (m *MemoryGraph) MergeEntities(_ context.Context, survivorID string, victimIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	survivor, ok := m.entities[survivorID]
	if !ok {
		return nil
	}
	for _, vid := range victimIDs {
		if vid == survivorID {
			continue
		}
		victim, ok := m.entities[vid]
		if !ok {
			continue
		}
		survivor = merge.MergeEntity(survivor, victim)

		for chunkID := range m.mentionsByEntity[vid] {
			m.mentionsByEntity[survivorID] = ensureSet(m.mentionsByEntity[survivorID])
			m.mentionsByEntity[survivorID][chunkID] = struct{}{}
			if m.mentionsByChunk[chunkID] != nil {
				delete(m.mentionsByChunk[chunkID], vid)
				m.mentionsByChunk[chunkID][survivorID] = struct{}{}
			}
		}
		delete(m.mentionsByEntity, vid)

		for key, rel := range m.relationships {
			changed := false
			if rel.Source == vid {
				rel.Source = survivorID
				changed = true
			}
			if rel.Target == vid {
				rel.Target = survivorID
				changed = true
			}
			if changed {
				delete(m.relationships, key)
				newKey := relKey(rel.Source, rel.Type, rel.Target)
				if existing, ok := m.relationships[newKey]; ok {
					m.relationships[newKey] = merge.MergeRelationship(existing, rel)
				} else {
					m.relationships[newKey] = rel
				}
			}
		}
		delete(m.entities, vid)
	}
	m.entities[survivorID] = survivor
	m.dirty[survivorID] = struct{}{}
	return nil
}

func ensureSet(s map[string]struct{}) map[string]struct{} {
	if s == nil {
		return map[string]struct{}{}
	}
	return s
}

// CollapseDuplicateRelationships rebuilds the relationship index grouping
// by (source,type,target), merging any that collide. Memory's map is
// already keyed this way so this is a defensive no-op here; it matters
// for backends (e.g. Postgres) where a bulk node merge can leave more
// than one row per triple (spec.md §4.6).
func (m *MemoryGraph) CollapseDuplicateRelationships(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := map[string]Relationship{}
	for _, rel := range m.relationships {
		key := relKey(rel.Source, rel.Type, rel.Target)
		if existing, ok := merged[key]; ok {
			merged[key] = merge.MergeRelationship(existing, rel)
		} else {
			merged[key] = rel
		}
	}
	m.relationships = merged
	return nil
}

// AllEntityIDs returns every entity id, for the C8 community projection.
func (m *MemoryGraph) AllEntityIDs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.entities))
	for id := range m.entities {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// AllRelationshipsUnified returns every relationship; the caller (C8)
// collapses type and direction into the _ALL_ pseudo-edge with
// count-aggregated weight, per spec.md §4.7.
func (m *MemoryGraph) AllRelationshipsUnified(_ context.Context) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Relationship, 0, len(m.relationships))
	for _, r := range m.relationships {
		out = append(out, r)
	}
	return out, nil
}

// UpsertCommunityMembership creates/merges a Community node and records
// entityID's membership, idempotently.
func (m *MemoryGraph) UpsertCommunityMembership(_ context.Context, entityID, communityID string, level int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.communities[communityID]
	if !ok {
		c = Community{ID: communityID, Level: level}
	}
	found := false
	for _, mem := range c.Members {
		if mem == entityID {
			found = true
			break
		}
	}
	if !found {
		c.Members = append(c.Members, entityID)
		sort.Strings(c.Members)
	}
	m.communities[communityID] = c

	e, ok := m.entities[entityID]
	if ok {
		hasCID := false
		for _, cid := range e.CommunityIDs {
			if cid == communityID {
				hasCID = true
				break
			}
		}
		if !hasCID {
			e.CommunityIDs = append(e.CommunityIDs, communityID)
			sort.Strings(e.CommunityIDs)
			m.entities[entityID] = e
		}
	}
	return nil
}

// ChunksMentioningAny returns the set of distinct chunk ids mentioning any
// of entityIDs — the basis of community_rank (spec.md invariant 7).
func (m *MemoryGraph) ChunksMentioningAny(_ context.Context, entityIDs []string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := map[string]struct{}{}
	for _, id := range entityIDs {
		for chunkID := range m.mentionsByEntity[id] {
			set[chunkID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// SetCommunityRank stores the community's rank.
func (m *MemoryGraph) SetCommunityRank(_ context.Context, communityID string, rank int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.communities[communityID]
	if !ok {
		return nil
	}
	c.CommunityRank = rank
	m.communities[communityID] = c
	return nil
}

// CommunitiesAtLevel returns every community at the given level.
func (m *MemoryGraph) CommunitiesAtLevel(_ context.Context, level int) ([]Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Community
	for _, c := range m.communities {
		if c.Level == level {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CommunityMembers returns the member entities of a community.
func (m *MemoryGraph) CommunityMembers(_ context.Context, communityID string) ([]Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.communities[communityID]
	if !ok {
		return nil, nil
	}
	out := make([]Entity, 0, len(c.Members))
	for _, id := range c.Members {
		if e, ok := m.entities[id]; ok {
			out = append(out, cloneEntity(e))
		}
	}
	return out, nil
}

// RelationshipsAmong returns every relationship whose source and target
// are both within entityIDs.
func (m *MemoryGraph) RelationshipsAmong(_ context.Context, entityIDs []string) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := toSet(entityIDs)
	var out []Relationship
	for _, r := range m.relationships {
		if _, ok := set[r.Source]; !ok {
			continue
		}
		if _, ok := set[r.Target]; !ok {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// SetCommunitySummary stores the LLM-generated summary (C9).
func (m *MemoryGraph) SetCommunitySummary(_ context.Context, communityID, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.communities[communityID]
	if !ok {
		return nil
	}
	c.Summary = summary
	m.communities[communityID] = c
	return nil
}

// VectorSearchEntities returns the k nearest entities to vec by cosine
// similarity over every embedded entity (spec.md §4.9 step 2).
func (m *MemoryGraph) VectorSearchEntities(_ context.Context, vec []float32, k int) ([]ScoredEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ScoredEntity, 0, len(m.entities))
	for _, e := range m.entities {
		if len(e.Embedding) == 0 {
			continue
		}
		out = append(out, ScoredEntity{Entity: cloneEntity(e), Score: graphalgo.Cosine(vec, e.Embedding)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// ChunksMentioningRanked returns up to topK chunks ordered by how many of
// entityIDs they mention, descending (spec.md §4.9 "Chunks").
func (m *MemoryGraph) ChunksMentioningRanked(_ context.Context, entityIDs []string, topK int) ([]Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := map[string]int{}
	for _, id := range entityIDs {
		for chunkID := range m.mentionsByEntity[id] {
			counts[chunkID]++
		}
	}
	type cc struct {
		id    string
		count int
	}
	list := make([]cc, 0, len(counts))
	for id, c := range counts {
		list = append(list, cc{id, c})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].id < list[j].id
	})
	if topK > 0 && len(list) > topK {
		list = list[:topK]
	}
	out := make([]Chunk, 0, len(list))
	for _, c := range list {
		out = append(out, m.chunks[c.id])
	}
	return out, nil
}

// CommunitiesForEntities returns up to topK communities containing any of
// entityIDs, ordered by (community_rank, weight) DESC (spec.md §4.9
// "Community reports").
func (m *MemoryGraph) CommunitiesForEntities(_ context.Context, entityIDs []string, topK int) ([]Community, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := map[string]struct{}{}
	for _, id := range entityIDs {
		if e, ok := m.entities[id]; ok {
			for _, cid := range e.CommunityIDs {
				set[cid] = struct{}{}
			}
		}
	}
	out := make([]Community, 0, len(set))
	for cid := range set {
		out = append(out, m.communities[cid])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CommunityRank != out[j].CommunityRank {
			return out[i].CommunityRank > out[j].CommunityRank
		}
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// OutsideRelationships returns up to topK edges with exactly one endpoint
// in entityIDs, ordered by weight DESC.
func (m *MemoryGraph) OutsideRelationships(_ context.Context, entityIDs []string, topK int) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := toSet(entityIDs)
	var out []Relationship
	for _, r := range m.relationships {
		_, sIn := set[r.Source]
		_, tIn := set[r.Target]
		if sIn != tIn {
			out = append(out, r)
		}
	}
	sortRelsByWeightDesc(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// InsideRelationships returns up to topK edges with both endpoints in
// entityIDs, ordered by weight DESC.
func (m *MemoryGraph) InsideRelationships(_ context.Context, entityIDs []string, topK int) ([]Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := toSet(entityIDs)
	var out []Relationship
	for _, r := range m.relationships {
		_, sIn := set[r.Source]
		_, tIn := set[r.Target]
		if sIn && tIn {
			out = append(out, r)
		}
	}
	sortRelsByWeightDesc(out)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// SetEntityImageURL attaches an external image URL (C12, supplemented
// from original_source/picture.py).
func (m *MemoryGraph) SetEntityImageURL(_ context.Context, entityID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entities[entityID]
	if !ok {
		return nil
	}
	e.ImageURL = url
	m.entities[entityID] = e
	return nil
}

// Reset performs the full-graph wipe (spec.md §3: Document "destroyed
// only by a full-graph wipe").
func (m *MemoryGraph) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = map[string]Document{}
	m.chunks = map[string]Chunk{}
	m.chunkSeq = map[string][]string{}
	m.entities = map[string]Entity{}
	m.relationships = map[string]Relationship{}
	m.dirty = map[string]struct{}{}
	m.mentionsByEntity = map[string]map[string]struct{}{}
	m.mentionsByChunk = map[string]map[string]struct{}{}
	m.communities = map[string]Community{}
	return nil
}

func cloneEntity(e Entity) Entity {
	cp := e
	cp.Labels = append([]string(nil), e.Labels...)
	cp.Embedding = append([]float32(nil), e.Embedding...)
	cp.CommunityIDs = append([]string(nil), e.CommunityIDs...)
	return cp
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func sortRelsByWeightDesc(rels []Relationship) {
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Weight != rels[j].Weight {
			return rels[i].Weight > rels[j].Weight
		}
		if rels[i].Source != rels[j].Source {
			return rels[i].Source < rels[j].Source
		}
		return rels[i].Target < rels[j].Target
	})
}
