package graphstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stroke-graphrag/graphrag/internal/graphalgo"
)

// PostgresGraph is the production GraphDB, grounded on the teacher's
// internal/persistence/databases.pgGraph (postgres_graph.go): a small
// fixed schema behind pgxpool, with uniqueness enforced by primary keys
// (spec.md §6's "server-side uniqueness constraints on
// (__Entity__.id) and (__Community__.id)"). Algorithms with no SQL
// equivalent (kNN/WCC/SLLPA) are run client-side over a loaded
// projection, per spec.md's Design Notes, and their results written back
// with ordinary upserts.
type PostgresGraph struct {
	pool   *pgxpool.Pool
	vector VectorIndex // optional; nil falls back to a brute-force cosine scan in Go
}

// NewPostgresGraph opens the schema (idempotent) and returns a GraphDB.
// vector may be nil, in which case VectorSearchEntities scans the
// entities table's embedding column directly.
func NewPostgresGraph(ctx context.Context, pool *pgxpool.Pool, vector VectorIndex) (*PostgresGraph, error) {
	g := &PostgresGraph{pool: pool, vector: vector}
	if err := g.migrate(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *PostgresGraph) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			file_name TEXT PRIMARY KEY,
			type TEXT NOT NULL DEFAULT '',
			uri TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			position INT NOT NULL,
			length INT NOT NULL,
			file_name TEXT NOT NULL REFERENCES documents(file_name) ON DELETE CASCADE,
			content_offset INT NOT NULL,
			tokens INT NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS chunks_file_position ON chunks(file_name, position)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			labels TEXT[] NOT NULL DEFAULT '{}',
			description TEXT NOT NULL DEFAULT '',
			embedding FLOAT4[],
			wcc INT,
			community_ids TEXT[] NOT NULL DEFAULT '{}',
			image_url TEXT NOT NULL DEFAULT '',
			dirty BOOLEAN NOT NULL DEFAULT TRUE
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			source TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			target TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			PRIMARY KEY (source, type, target)
		)`,
		`CREATE TABLE IF NOT EXISTS mentions (
			chunk_id TEXT NOT NULL REFERENCES chunks(id) ON DELETE CASCADE,
			entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			PRIMARY KEY (chunk_id, entity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS communities (
			id TEXT PRIMARY KEY,
			level INT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			community_rank INT NOT NULL DEFAULT 0,
			weight DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS community_members (
			community_id TEXT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
			entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
			PRIMARY KEY (community_id, entity_id)
		)`,
	}
	for _, s := range stmts {
		if _, err := g.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (g *PostgresGraph) UpsertDocument(ctx context.Context, doc Document) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO documents(file_name, type, uri) VALUES ($1,$2,$3)
		ON CONFLICT (file_name) DO UPDATE SET type=EXCLUDED.type, uri=EXCLUDED.uri`,
		doc.FileName, doc.Type, doc.URI)
	return err
}

// WriteChunks writes every chunk row in a single transaction — "Failures
// here are fatal (abort file)" (spec.md §4.2) is realized by the
// transaction rolling back wholesale on any error.
func (g *PostgresGraph) WriteChunks(ctx context.Context, fileName string, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	offset := 0
	for i, c := range chunks {
		pos := i + 1
		length := len([]rune(c.Text))
		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks(id, text, position, length, file_name, content_offset, tokens)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (id) DO UPDATE SET text=EXCLUDED.text, position=EXCLUDED.position,
				length=EXCLUDED.length, content_offset=EXCLUDED.content_offset, tokens=EXCLUDED.tokens`,
			c.ID, c.Text, pos, length, fileName, offset, c.Tokens); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", pos, fileName, err)
		}
		offset += len(c.Text)
	}
	return tx.Commit(ctx)
}

func (g *PostgresGraph) GetEntity(ctx context.Context, id string) (Entity, bool, error) {
	row := g.pool.QueryRow(ctx, `
		SELECT id, labels, description, embedding, COALESCE(wcc,0), community_ids, image_url
		FROM entities WHERE id=$1`, id)
	var e Entity
	if err := row.Scan(&e.ID, &e.Labels, &e.Description, &e.Embedding, &e.WCC, &e.CommunityIDs, &e.ImageURL); err != nil {
		if err == pgx.ErrNoRows {
			return Entity{}, false, nil
		}
		return Entity{}, false, err
	}
	return e, true, nil
}

// UpsertEntity reads-merges-writes within a transaction so the
// description-coalesce / label-union policy (internal/merge) is applied
// atomically under concurrent writers (spec.md §5: "Concurrent writers
// are safe because upserts are deterministic").
func (g *PostgresGraph) UpsertEntity(ctx context.Context, id string, labels []string, description string) (Entity, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return Entity{}, err
	}
	defer tx.Rollback(ctx)

	existing, ok, err := g.getEntityTx(ctx, tx, id)
	if err != nil {
		return Entity{}, err
	}
	merged := mergedEntityFrom(existing, ok, id, labels, description)
	dirty := !ok || merged.Description != existing.Description

	if _, err := tx.Exec(ctx, `
		INSERT INTO entities(id, labels, description, dirty) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET labels=EXCLUDED.labels, description=EXCLUDED.description,
			dirty = entities.dirty OR EXCLUDED.dirty`,
		merged.ID, merged.Labels, merged.Description, dirty); err != nil {
		return Entity{}, fmt.Errorf("upsert entity %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Entity{}, err
	}
	return merged, nil
}

func (g *PostgresGraph) getEntityTx(ctx context.Context, tx pgx.Tx, id string) (Entity, bool, error) {
	row := tx.QueryRow(ctx, `SELECT id, labels, description FROM entities WHERE id=$1`, id)
	var e Entity
	if err := row.Scan(&e.ID, &e.Labels, &e.Description); err != nil {
		if err == pgx.ErrNoRows {
			return Entity{}, false, nil
		}
		return Entity{}, false, err
	}
	return e, true, nil
}

func (g *PostgresGraph) UpsertRelationship(ctx context.Context, rel Relationship) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, id := range []string{rel.Source, rel.Target} {
		if _, err := tx.Exec(ctx, `
			INSERT INTO entities(id, labels, description, dirty) VALUES ($1, $2, '', TRUE)
			ON CONFLICT (id) DO NOTHING`, id, []string{EntitySentinelLabel, UnknownType}); err != nil {
			return fmt.Errorf("ensure placeholder %s: %w", id, err)
		}
	}

	row := tx.QueryRow(ctx, `SELECT description, weight FROM relationships WHERE source=$1 AND type=$2 AND target=$3`,
		rel.Source, rel.Type, rel.Target)
	var oldDesc string
	var oldWeight float64
	err = row.Scan(&oldDesc, &oldWeight)
	desc, weight := rel.Description, rel.Weight
	if err == nil {
		desc = coalesce(oldDesc, rel.Description)
		weight = maxF(oldWeight, rel.Weight)
	} else if err != pgx.ErrNoRows {
		return err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO relationships(source, type, target, description, weight) VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (source, type, target) DO UPDATE SET description=EXCLUDED.description, weight=EXCLUDED.weight`,
		rel.Source, rel.Type, rel.Target, desc, weight); err != nil {
		return fmt.Errorf("upsert relationship: %w", err)
	}
	return tx.Commit(ctx)
}

func (g *PostgresGraph) AddMention(ctx context.Context, chunkID, entityID string) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO mentions(chunk_id, entity_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, chunkID, entityID)
	return err
}

func (g *PostgresGraph) DirtyEntityIDs(ctx context.Context) ([]string, error) {
	rows, err := g.pool.Query(ctx, `SELECT id FROM entities WHERE dirty ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) SetEmbedding(ctx context.Context, entityID string, vec []float32) error {
	if _, err := g.pool.Exec(ctx, `UPDATE entities SET embedding=$1, dirty=FALSE WHERE id=$2`, vec, entityID); err != nil {
		return err
	}
	if g.vector != nil {
		return g.vector.Upsert(ctx, entityID, vec)
	}
	return nil
}

func (g *PostgresGraph) AllEntitiesWithEmbedding(ctx context.Context) ([]Entity, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, labels, description, embedding, COALESCE(wcc,0), community_ids, image_url
		FROM entities WHERE embedding IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Labels, &e.Description, &e.Embedding, &e.WCC, &e.CommunityIDs, &e.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) SetWCC(ctx context.Context, entityID string, wcc int) error {
	_, err := g.pool.Exec(ctx, `UPDATE entities SET wcc=$1 WHERE id=$2`, wcc, entityID)
	return err
}

// MergeEntities moves mentions and relationships from victims to survivor
// and deletes the victim rows, then collapses any relationship triples the
// move duplicated (spec.md §4.6).
func (g *PostgresGraph) MergeEntities(ctx context.Context, survivorID string, victimIDs []string) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	survivor, ok, err := g.getEntityTx(ctx, tx, survivorID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("merge entities: survivor %s not found", survivorID)
	}

	for _, vid := range victimIDs {
		if vid == survivorID {
			continue
		}
		victim, ok, err := g.getEntityTx(ctx, tx, vid)
		if err != nil || !ok {
			continue
		}
		merged := mergedEntityFrom(survivor, true, survivorID, victim.Labels, victim.Description)
		survivor = merged

		if _, err := tx.Exec(ctx, `
			INSERT INTO mentions(chunk_id, entity_id)
			SELECT chunk_id, $1 FROM mentions WHERE entity_id=$2
			ON CONFLICT DO NOTHING`, survivorID, vid); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE relationships SET source=$1 WHERE source=$2`, survivorID, vid); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE relationships SET target=$1 WHERE target=$2`, survivorID, vid); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM entities WHERE id=$1`, vid); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE entities SET labels=$1, description=$2, dirty=TRUE WHERE id=$3`,
		survivor.Labels, survivor.Description, survivorID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return g.CollapseDuplicateRelationships(ctx)
}

// CollapseDuplicateRelationships groups by (source,type,target), merging
// any rows that collided after a bulk MergeEntities move (spec.md §4.6).
func (g *PostgresGraph) CollapseDuplicateRelationships(ctx context.Context) error {
	rows, err := g.pool.Query(ctx, `SELECT source, type, target, description, weight FROM relationships`)
	if err != nil {
		return err
	}
	type key struct{ s, t, d string }
	grouped := map[key]Relationship{}
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Source, &r.Type, &r.Target, &r.Description, &r.Weight); err != nil {
			rows.Close()
			return err
		}
		k := key{r.Source, r.Type, r.Target}
		if existing, ok := grouped[k]; ok {
			grouped[k] = Relationship{Source: r.Source, Type: r.Type, Target: r.Target,
				Description: coalesce(existing.Description, r.Description), Weight: maxF(existing.Weight, r.Weight)}
		} else {
			grouped[k] = r
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `DELETE FROM relationships`); err != nil {
		return err
	}
	for _, r := range grouped {
		if _, err := tx.Exec(ctx, `INSERT INTO relationships(source,type,target,description,weight) VALUES ($1,$2,$3,$4,$5)`,
			r.Source, r.Type, r.Target, r.Description, r.Weight); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (g *PostgresGraph) AllEntityIDs(ctx context.Context) ([]string, error) {
	rows, err := g.pool.Query(ctx, `SELECT id FROM entities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) AllRelationshipsUnified(ctx context.Context) ([]Relationship, error) {
	rows, err := g.pool.Query(ctx, `SELECT source, target, type, description, weight FROM relationships`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Source, &r.Target, &r.Type, &r.Description, &r.Weight); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) UpsertCommunityMembership(ctx context.Context, entityID, communityID string, level int) error {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `
		INSERT INTO communities(id, level) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING`, communityID, level); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO community_members(community_id, entity_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		communityID, entityID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE entities SET community_ids = ARRAY(SELECT DISTINCT unnest(community_ids || $1::text[]))
		WHERE id=$2`, []string{communityID}, entityID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (g *PostgresGraph) ChunksMentioningAny(ctx context.Context, entityIDs []string) ([]string, error) {
	rows, err := g.pool.Query(ctx, `SELECT DISTINCT chunk_id FROM mentions WHERE entity_id = ANY($1) ORDER BY chunk_id`, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) SetCommunityRank(ctx context.Context, communityID string, rank int) error {
	_, err := g.pool.Exec(ctx, `UPDATE communities SET community_rank=$1 WHERE id=$2`, rank, communityID)
	return err
}

func (g *PostgresGraph) CommunitiesAtLevel(ctx context.Context, level int) ([]Community, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT id, level, summary, community_rank, weight FROM communities WHERE level=$1 ORDER BY id`, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Community
	for rows.Next() {
		var c Community
		if err := rows.Scan(&c.ID, &c.Level, &c.Summary, &c.CommunityRank, &c.Weight); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) CommunityMembers(ctx context.Context, communityID string) ([]Entity, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT e.id, e.labels, e.description, e.embedding, COALESCE(e.wcc,0), e.community_ids, e.image_url
		FROM entities e JOIN community_members cm ON cm.entity_id = e.id
		WHERE cm.community_id = $1 ORDER BY e.id`, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Labels, &e.Description, &e.Embedding, &e.WCC, &e.CommunityIDs, &e.ImageURL); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) RelationshipsAmong(ctx context.Context, entityIDs []string) ([]Relationship, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT source, target, type, description, weight FROM relationships
		WHERE source = ANY($1) AND target = ANY($1)`, entityIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Source, &r.Target, &r.Type, &r.Description, &r.Weight); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) SetCommunitySummary(ctx context.Context, communityID, summary string) error {
	_, err := g.pool.Exec(ctx, `UPDATE communities SET summary=$1 WHERE id=$2`, summary, communityID)
	return err
}

func (g *PostgresGraph) VectorSearchEntities(ctx context.Context, vec []float32, k int) ([]ScoredEntity, error) {
	if g.vector != nil {
		hits, err := g.vector.Search(ctx, vec, k)
		if err != nil {
			return nil, err
		}
		out := make([]ScoredEntity, 0, len(hits))
		for _, h := range hits {
			e, ok, err := g.GetEntity(ctx, h.ID)
			if err != nil || !ok {
				continue
			}
			out = append(out, ScoredEntity{Entity: e, Score: h.Score})
		}
		return out, nil
	}

	all, err := g.AllEntitiesWithEmbedding(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredEntity, 0, len(all))
	for _, e := range all {
		out = append(out, ScoredEntity{Entity: e, Score: graphalgo.Cosine(vec, e.Embedding)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (g *PostgresGraph) ChunksMentioningRanked(ctx context.Context, entityIDs []string, topK int) ([]Chunk, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT c.id, c.text, c.position, c.length, c.file_name, c.content_offset, c.tokens, COUNT(*) AS n
		FROM mentions m JOIN chunks c ON c.id = m.chunk_id
		WHERE m.entity_id = ANY($1)
		GROUP BY c.id, c.text, c.position, c.length, c.file_name, c.content_offset, c.tokens
		ORDER BY n DESC, c.id ASC
		LIMIT $2`, entityIDs, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Chunk
	for rows.Next() {
		var c Chunk
		var n int
		if err := rows.Scan(&c.ID, &c.Text, &c.Position, &c.Length, &c.FileName, &c.ContentOffset, &c.Tokens, &n); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) CommunitiesForEntities(ctx context.Context, entityIDs []string, topK int) ([]Community, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT DISTINCT co.id, co.level, co.summary, co.community_rank, co.weight
		FROM community_members cm JOIN communities co ON co.id = cm.community_id
		WHERE cm.entity_id = ANY($1)
		ORDER BY co.community_rank DESC, co.weight DESC, co.id ASC
		LIMIT $2`, entityIDs, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Community
	for rows.Next() {
		var c Community
		if err := rows.Scan(&c.ID, &c.Level, &c.Summary, &c.CommunityRank, &c.Weight); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) OutsideRelationships(ctx context.Context, entityIDs []string, topK int) ([]Relationship, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT source, target, type, description, weight FROM relationships
		WHERE (source = ANY($1)) != (target = ANY($1))
		ORDER BY weight DESC LIMIT $2`, entityIDs, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func (g *PostgresGraph) InsideRelationships(ctx context.Context, entityIDs []string, topK int) ([]Relationship, error) {
	rows, err := g.pool.Query(ctx, `
		SELECT source, target, type, description, weight FROM relationships
		WHERE source = ANY($1) AND target = ANY($1)
		ORDER BY weight DESC LIMIT $2`, entityIDs, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRelationships(rows)
}

func scanRelationships(rows pgx.Rows) ([]Relationship, error) {
	var out []Relationship
	for rows.Next() {
		var r Relationship
		if err := rows.Scan(&r.Source, &r.Target, &r.Type, &r.Description, &r.Weight); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (g *PostgresGraph) SetEntityImageURL(ctx context.Context, entityID, url string) error {
	_, err := g.pool.Exec(ctx, `UPDATE entities SET image_url=$1 WHERE id=$2`, url, entityID)
	return err
}

// Reset performs the full-graph wipe, mirroring original_source/create.py's
// `MATCH (n) DETACH DELETE n` (spec.md §7 / SPEC_FULL §7).
func (g *PostgresGraph) Reset(ctx context.Context) error {
	_, err := g.pool.Exec(ctx, `
		TRUNCATE documents, chunks, entities, relationships, mentions, communities, community_members CASCADE`)
	return err
}

func coalesce(old, new string) string {
	switch {
	case old == "":
		return new
	case new == "":
		return old
	default:
		return old + "；" + new
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func mergedEntityFrom(existing Entity, ok bool, id string, labels []string, description string) Entity {
	if !ok {
		return Entity{ID: id, Labels: unionLabels(nil, labels), Description: description}
	}
	return Entity{
		ID:          id,
		Labels:      unionLabels(existing.Labels, labels),
		Description: coalesce(existing.Description, description),
	}
}

func unionLabels(a, b []string) []string {
	set := map[string]struct{}{EntitySentinelLabel: {}}
	for _, l := range a {
		set[l] = struct{}{}
	}
	for _, l := range b {
		set[l] = struct{}{}
	}
	hasConcrete := false
	for l := range set {
		if l != EntitySentinelLabel && l != UnknownType {
			hasConcrete = true
		}
	}
	if hasConcrete {
		delete(set, UnknownType)
	}
	out := make([]string, 0, len(set))
	for l := range set {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

var _ GraphDB = (*PostgresGraph)(nil)
