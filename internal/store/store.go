package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/Aman-CERP/docsearch/internal/chunk"
	dserrors "github.com/Aman-CERP/docsearch/internal/errors"
)

// Default RRF fusion constants.
const (
	DefaultRRFConstant   = 60
	DefaultSemanticWeight = 1.0
	DefaultKeywordWeight  = 1.2
	DefaultSectionBoost   = 2.0

	poolMin = 100
	poolMax = 200
)

// FusionParams holds the weighted-RRF knobs a Collection fuses search
// results with. Callers that don't care use DefaultFusionParams(); the
// CLI and MCP server thread their own values through from config.
type FusionParams struct {
	RRFConstant    int
	SemanticWeight float64
	KeywordWeight  float64
	SectionBoost   float64
}

// DefaultFusionParams returns the out-of-the-box fusion weights.
func DefaultFusionParams() FusionParams {
	return FusionParams{
		RRFConstant:    DefaultRRFConstant,
		SemanticWeight: DefaultSemanticWeight,
		KeywordWeight:  DefaultKeywordWeight,
		SectionBoost:   DefaultSectionBoost,
	}
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "how": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "can": {}, "do": {}, "does": {}, "should": {}, "would": {},
}

// Store is a single SQLite file holding every collection, tagged by a
// `collection` column — one database file per installation, not one
// file per collection. A gofrs/flock advisory lock guards exclusive
// access across process instances while the store is open.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open creates (if necessary) and migrates the store's schema, then
// acquires an exclusive advisory lock on the database file.
func Open(path string) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(context.Background(), 50*time.Millisecond)
	if err != nil || !locked {
		return nil, dserrors.Config(fmt.Sprintf("database %q is locked by another process", path), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, dserrors.Storage("opening database", err)
	}
	// modernc.org/sqlite does not reliably honor DSN query-string pragmas,
	// so pragmas are set explicitly after open.
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, dserrors.Storage("configuring database", err)
		}
	}
	db.SetMaxOpenConns(1) // single writer; serializes all store writes

	s := &Store{db: db, lock: lock, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			rowid INTEGER PRIMARY KEY,
			id TEXT UNIQUE NOT NULL,
			collection TEXT NOT NULL,
			content TEXT NOT NULL,
			source_url TEXT NOT NULL,
			section TEXT,
			metadata_json TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_source_url ON documents(collection, source_url)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			content, section,
			content='documents', content_rowid='rowid',
			tokenize='unicode61'
		)`,
		`CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
			INSERT INTO documents_fts(rowid, content, section) VALUES (new.rowid, new.content, new.section);
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, content, section) VALUES ('delete', old.rowid, old.content, old.section);
		END`,
		`CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
			INSERT INTO documents_fts(documents_fts, rowid, content, section) VALUES ('delete', old.rowid, old.content, old.section);
			INSERT INTO documents_fts(rowid, content, section) VALUES (new.rowid, new.content, new.section);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return dserrors.Storage("migrating schema", err)
		}
	}
	return nil
}

// Close releases the database handle and the advisory lock.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Close()
	_ = s.lock.Unlock()
	return err
}

// ListCollections enumerates distinct collection names across the
// whole store.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, dserrors.Storage("listing collections", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, dserrors.Storage("scanning collection name", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CollectionCount returns the number of distinct document IDs in the
// named collection.
func (s *Store) CollectionCount(ctx context.Context, name string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE collection = ?`, name).Scan(&count)
	if err != nil {
		return 0, dserrors.Storage("counting collection", err)
	}
	return count, nil
}

// Collection returns a handle scoped to one named namespace, created
// implicitly on first insert. dimensions is the declared embedding
// length D for this collection; mismatches fail loudly. Fusion weights
// default to DefaultFusionParams(); override with WithFusionParams.
func (s *Store) Collection(name string, dimensions int) *Collection {
	return &Collection{store: s, name: name, dimensions: dimensions, fusion: DefaultFusionParams()}
}

// Collection is a handle to one namespace within a Store.
type Collection struct {
	store      *Store
	name       string
	dimensions int
	fusion     FusionParams
}

// WithFusionParams overrides this collection's RRF fusion weights and
// returns the same collection for chaining.
func (c *Collection) WithFusionParams(p FusionParams) *Collection {
	c.fusion = p
	return c
}

// Name returns the collection's namespace.
func (c *Collection) Name() string { return c.name }

// UpsertChunk pairs a chunk with its embedding for Upsert.
type UpsertChunk struct {
	ID        string
	Content   string
	SourceURL string
	Section   string
	Metadata  Metadata
	Embedding []float32
}

// Upsert inserts or replaces rows by ID within one transaction, keeping
// documents, the FTS5 index (via triggers), and the embedding column in
// sync. Duplicate IDs within the batch are deduplicated, last write
// wins.
func (c *Collection) Upsert(ctx context.Context, items []UpsertChunk) error {
	deduped := make(map[string]UpsertChunk, len(items))
	var order []string
	for _, it := range items {
		if _, seen := deduped[it.ID]; !seen {
			order = append(order, it.ID)
		}
		deduped[it.ID] = it
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return dserrors.Storage("beginning upsert transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, collection, content, source_url, section, metadata_json, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			source_url = excluded.source_url,
			section = excluded.section,
			metadata_json = excluded.metadata_json,
			embedding = excluded.embedding
	`)
	if err != nil {
		return dserrors.Storage("preparing upsert", err)
	}
	defer stmt.Close()

	for _, id := range order {
		it := deduped[id]
		if len(it.Embedding) != c.dimensions {
			return &ErrDimensionMismatch{Expected: c.dimensions, Got: len(it.Embedding)}
		}
		metaJSON, err := json.Marshal(it.Metadata)
		if err != nil {
			return dserrors.Data("marshaling metadata", err)
		}
		if _, err := stmt.ExecContext(ctx, it.ID, c.name, it.Content, it.SourceURL, it.Section,
			string(metaJSON), encodeEmbedding(it.Embedding)); err != nil {
			return dserrors.Storage("upserting document", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dserrors.Storage("committing upsert", err)
	}
	return nil
}

// FromChunks pairs chunker output with its embeddings into UpsertChunk
// items, collapsing each chunk's hierarchy list to the " > "-joined
// string form the store persists. It fails with ErrLengthMismatch if
// the slices disagree in length.
func FromChunks(chunks []chunk.Chunk, embeddings [][]float32) ([]UpsertChunk, error) {
	if len(chunks) != len(embeddings) {
		return nil, &ErrLengthMismatch{Chunks: len(chunks), Embeddings: len(embeddings)}
	}
	items := make([]UpsertChunk, len(chunks))
	for i, ch := range chunks {
		items[i] = UpsertChunk{
			ID:        ch.ID(),
			Content:   ch.Content,
			SourceURL: ch.Metadata.SourceURL,
			Section:   ch.Metadata.Section,
			Metadata: Metadata{
				PageTitle: ch.Metadata.PageTitle,
				Hierarchy: ch.Metadata.HierarchyString(),
				HasCode:   ch.Metadata.HasCode,
			},
			Embedding: embeddings[i],
		}
	}
	return items, nil
}

// Clear deletes all rows in this collection (and, via triggers, their FTS5
// entries).
func (c *Collection) Clear(ctx context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if _, err := c.store.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, c.name); err != nil {
		return dserrors.Storage("clearing collection", err)
	}
	return nil
}

// DeleteBySource removes all chunks for a source URL in this collection.
func (c *Collection) DeleteBySource(ctx context.Context, sourceURL string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	_, err := c.store.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND source_url = ?`, c.name, sourceURL)
	if err != nil {
		return dserrors.Storage("deleting by source", err)
	}
	return nil
}

// GetBySource returns all documents for a source URL, for browsing/debug.
func (c *Collection) GetBySource(ctx context.Context, sourceURL string) ([]Document, error) {
	return c.queryDocuments(ctx, `SELECT id, collection, content, source_url, section, metadata_json, embedding
		FROM documents WHERE collection = ? AND source_url = ?`, c.name, sourceURL)
}

// GetAllDocuments returns every document in this collection.
func (c *Collection) GetAllDocuments(ctx context.Context) ([]Document, error) {
	return c.queryDocuments(ctx, `SELECT id, collection, content, source_url, section, metadata_json, embedding
		FROM documents WHERE collection = ?`, c.name)
}

// Count is equivalent to Store.CollectionCount(ctx, c.Name()).
func (c *Collection) Count(ctx context.Context) (int, error) {
	return c.store.CollectionCount(ctx, c.name)
}

func (c *Collection) queryDocuments(ctx context.Context, query string, args ...any) ([]Document, error) {
	rows, err := c.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dserrors.Storage("querying documents", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var metaJSON string
		var embeddingBlob []byte
		if err := rows.Scan(&d.ID, &d.Collection, &d.Content, &d.SourceURL, &d.Section, &metaJSON, &embeddingBlob); err != nil {
			return nil, dserrors.Storage("scanning document", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &d.Metadata); err != nil {
			return nil, dserrors.Data("unmarshaling metadata", err)
		}
		d.Embedding = decodeEmbedding(embeddingBlob)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Search performs the full single-query hybrid search procedure: exact
// k-NN semantic ranking, BM25 lexical ranking, section-match detection,
// and weighted RRF fusion. It returns the first topK fused results,
// sorted by score descending. An empty queryText (or semanticOnly=true)
// skips lexical ranking entirely.
//
// The candidate pool size used internally for gathering per-modality
// results is P = clamp(topK*10, 100, 200). Callers that need the raw,
// untruncated candidate pool — to rerank or to sum scores across query
// variants — should call SearchPool directly with an explicit pool size
// instead.
func (c *Collection) Search(ctx context.Context, queryEmbedding []float32, queryText string, topK int, semanticOnly bool) ([]SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	pool := clamp(topK*10, poolMin, poolMax)
	results, err := c.SearchPool(ctx, queryEmbedding, queryText, pool, semanticOnly)
	if err != nil {
		return nil, err
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SearchPool runs the search procedure with an explicit candidate pool
// size instead of deriving one from top_k, and returns the full fused
// pool (already sorted by score descending) rather than truncating to
// top_k. This is the primitive the multi-query fusion in internal/search
// uses per variant with pool size max(top_k*3, 20), and that reranking
// uses with pool size max(top_k*10, 50) capped at 50.
func (c *Collection) SearchPool(ctx context.Context, queryEmbedding []float32, queryText string, poolSize int, semanticOnly bool) ([]SearchResult, error) {
	if poolSize <= 0 {
		return nil, nil
	}

	semantic, err := c.semanticSearch(ctx, queryEmbedding, poolSize)
	if err != nil {
		return nil, err
	}

	if semanticOnly || strings.TrimSpace(queryText) == "" {
		results := make([]SearchResult, 0, len(semantic))
		for i, hit := range semantic {
			rank := i + 1
			results = append(results, SearchResult{
				Document:     hit.doc,
				Score:        c.fusion.SemanticWeight / float64(c.fusion.RRFConstant+rank),
				SemanticRank: &rank,
			})
		}
		return results, nil
	}

	ftsQuery, queryTerms := buildFTSQuery(queryText)
	var lexical []rankedDoc
	if ftsQuery != "" {
		lexical, err = c.lexicalSearch(ctx, ftsQuery, poolSize)
		if err != nil {
			return nil, err
		}
	}

	return fuseSingleQuery(semantic, lexical, queryTerms, poolSize, c.fusion), nil
}

type rankedDoc struct {
	doc Document
}

func (c *Collection) semanticSearch(ctx context.Context, queryEmbedding []float32, limit int) ([]rankedDoc, error) {
	docs, err := c.GetAllDocuments(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		doc      Document
		distance float64
		rowid    int
	}
	scoredDocs := make([]scored, 0, len(docs))
	for i, d := range docs {
		scoredDocs = append(scoredDocs, scored{doc: d, distance: l2Distance(queryEmbedding, d.Embedding), rowid: i})
	}
	sort.Slice(scoredDocs, func(i, j int) bool {
		if scoredDocs[i].distance != scoredDocs[j].distance {
			return scoredDocs[i].distance < scoredDocs[j].distance
		}
		return scoredDocs[i].rowid < scoredDocs[j].rowid
	})

	if len(scoredDocs) > limit {
		scoredDocs = scoredDocs[:limit]
	}
	out := make([]rankedDoc, len(scoredDocs))
	for i, s := range scoredDocs {
		out[i] = rankedDoc{doc: s.doc}
	}
	return out, nil
}

func (c *Collection) lexicalSearch(ctx context.Context, ftsQuery string, limit int) ([]rankedDoc, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT d.id, d.collection, d.content, d.source_url, d.section, d.metadata_json, d.embedding
		FROM documents_fts f
		JOIN documents d ON d.rowid = f.rowid
		WHERE documents_fts MATCH ? AND d.collection = ?
		ORDER BY bm25(documents_fts)
		LIMIT ?
	`, ftsQuery, c.name, limit)
	if err != nil {
		// Malformed FTS5 syntax is treated as "no lexical hits", not a
		// propagated error — the query parser should prevent most of
		// these, but degrade rather than fail the whole search.
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			return nil, nil
		}
		return nil, dserrors.Storage("lexical search", err)
	}
	defer rows.Close()

	var out []rankedDoc
	for rows.Next() {
		var d Document
		var metaJSON string
		var embeddingBlob []byte
		if err := rows.Scan(&d.ID, &d.Collection, &d.Content, &d.SourceURL, &d.Section, &metaJSON, &embeddingBlob); err != nil {
			return nil, dserrors.Storage("scanning lexical hit", err)
		}
		_ = json.Unmarshal([]byte(metaJSON), &d.Metadata)
		d.Embedding = decodeEmbedding(embeddingBlob)
		out = append(out, rankedDoc{doc: d})
	}
	return out, rows.Err()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
