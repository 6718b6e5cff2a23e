package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"legal-assistant-platform/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// ErrDimensionMismatch reports a vector whose length differs from the store's
// configured dimensionality. This is a configuration error: vectors are never
// truncated or padded.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// VectorStore is the persistence boundary for chunks and their embeddings.
// The ingestion pipeline is the only writer; the retrieval service only reads.
type VectorStore interface {
	UpsertChunks(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, queryEmbedding []float32, threshold float64, limit int) ([]models.SimilarityResult, error)
	ExistsByTitle(ctx context.Context, title string) (bool, error)
	ExistsByFileHash(ctx context.Context, hash string) (bool, error)
	Deduplicate(ctx context.Context) (int64, error)
	WithDocumentLock(ctx context.Context, title string, fn func(ctx context.Context) error) error
	Dimension() int
}

const chunksTable = "legal_document_chunks"

// PGVectorStore stores chunks in Postgres with a pgvector embedding column
// and an HNSW index for approximate nearest-neighbor search.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	dimension int
}

func NewPGVectorStore(pool *pgxpool.Pool, dimension int) (*PGVectorStore, error) {
	if pool == nil {
		return nil, errors.New("postgres pool is required")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", dimension)
	}
	return &PGVectorStore{pool: pool, dimension: dimension}, nil
}

func (s *PGVectorStore) Dimension() int {
	return s.dimension
}

// EnsureSchema creates the pgvector extension, the chunk table, the HNSW
// index, and the match_legal_documents function. Safe to run repeatedly.
func (s *PGVectorStore) EnsureSchema(ctx context.Context, hnswM, efConstruction int) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}

	createTable := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
	)`, chunksTable, s.dimension)
	if _, err := conn.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("create chunks table: %w", err)
	}

	// HNSW over cosine distance. m and ef_construction trade build time and
	// memory against recall.
	createIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)",
		chunksTable, chunksTable, hnswM, efConstruction,
	)
	if _, err := conn.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("create hnsw index: %w", err)
	}

	titleIndex := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_title_idx ON %s ((metadata ->> 'title'))",
		chunksTable, chunksTable,
	)
	if _, err := conn.Exec(ctx, titleIndex); err != nil {
		return fmt.Errorf("create title index: %w", err)
	}

	matchFn := fmt.Sprintf(`CREATE OR REPLACE FUNCTION match_legal_documents(
		query_embedding vector(%d),
		match_threshold float DEFAULT 0.3,
		match_count int DEFAULT 5
	)
	RETURNS TABLE (id text, content text, metadata jsonb, similarity float)
	LANGUAGE sql STABLE
	AS $$
		SELECT id, content, metadata, 1 - (embedding <=> query_embedding) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> query_embedding) > match_threshold
		ORDER BY embedding <=> query_embedding
		LIMIT match_count;
	$$`, s.dimension, chunksTable)
	if _, err := conn.Exec(ctx, matchFn); err != nil {
		return fmt.Errorf("create match function: %w", err)
	}

	metaTable := `CREATE TABLE IF NOT EXISTS vector_store_meta (
		id INT PRIMARY KEY DEFAULT 1,
		embedding_model TEXT NOT NULL,
		dimension INT NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
		CONSTRAINT vector_store_meta_single_row CHECK (id = 1)
	)`
	if _, err := conn.Exec(ctx, metaTable); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	return nil
}

// RegisterModel records the embedding model identity for this store. Changing
// the model requires a full rebuild, so an existing row is only overwritten
// together with DeleteAllChunks (see cmd/migrate).
func (s *PGVectorStore) RegisterModel(ctx context.Context, model string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO vector_store_meta (id, embedding_model, dimension, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET embedding_model = $1, dimension = $2, updated_at = NOW()`,
		model, s.dimension)
	if err != nil {
		return fmt.Errorf("register embedding model: %w", err)
	}
	return nil
}

// EnsureModel records the embedding model on first migration and leaves an
// existing registration untouched, so a configuration change can never
// silently repoint the store at a different model.
func (s *PGVectorStore) EnsureModel(ctx context.Context, model string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO vector_store_meta (id, embedding_model, dimension, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO NOTHING`,
		model, s.dimension)
	if err != nil {
		return fmt.Errorf("ensure embedding model: %w", err)
	}
	return nil
}

// ValidateModel fails fast when the configured embedding model does not match
// what the store was built with. A silent mismatch would produce meaningless
// similarity scores, not an error.
func (s *PGVectorStore) ValidateModel(ctx context.Context, model string, dimension int) error {
	var storedModel string
	var storedDim int
	err := s.pool.QueryRow(ctx, "SELECT embedding_model, dimension FROM vector_store_meta WHERE id = 1").
		Scan(&storedModel, &storedDim)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("vector store has no registered embedding model - run migrations first")
	}
	if err != nil {
		return fmt.Errorf("read vector store meta: %w", err)
	}
	if storedModel != model {
		return fmt.Errorf("embedding model mismatch: store was built with %q, configured model is %q - a full rebuild is required",
			storedModel, model)
	}
	if storedDim != dimension {
		return fmt.Errorf("%w: store dimension %d, configured dimension %d", ErrDimensionMismatch, storedDim, dimension)
	}
	return nil
}

// UpsertChunks appends chunk rows in a single transaction. Chunks are
// immutable, so an existing id is left untouched.
func (s *PGVectorStore) UpsertChunks(ctx context.Context, chunks []models.Chunk) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if len(chunks[i].Embedding) != s.dimension {
			return fmt.Errorf("%w: chunk %q has %d dimensions, store is configured for %d",
				ErrDimensionMismatch, chunks[i].ID, len(chunks[i].Embedding), s.dimension)
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
			}
		} else {
			err = tx.Commit(ctx)
		}
	}()

	stmt := fmt.Sprintf(`INSERT INTO %s (id, content, embedding, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`, chunksTable)
	for i := range chunks {
		ch := chunks[i]
		metadata, mErr := json.Marshal(ch.Metadata.ToMap())
		if mErr != nil {
			return fmt.Errorf("marshal metadata for chunk %q: %w", ch.ID, mErr)
		}
		createdAt := ch.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		if _, execErr := tx.Exec(ctx, stmt, ch.ID, ch.Content, pgvector.NewVector(ch.Embedding), metadata, createdAt); execErr != nil {
			return fmt.Errorf("insert chunk %q: %w", ch.ID, execErr)
		}
	}
	return nil
}

// Search returns chunks ranked by cosine similarity to the query embedding,
// restricted to rows whose similarity exceeds threshold, capped at limit.
// Defaulting of threshold and limit is the caller's job; the store takes
// both at face value.
func (s *PGVectorStore) Search(ctx context.Context, queryEmbedding []float32, threshold float64, limit int) ([]models.SimilarityResult, error) {
	if len(queryEmbedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, store is configured for %d",
			ErrDimensionMismatch, len(queryEmbedding), s.dimension)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("search limit must be positive, got %d", limit)
	}

	query := fmt.Sprintf(`SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM %s
		WHERE 1 - (embedding <=> $1) > $2
		ORDER BY embedding <=> $1
		LIMIT $3`, chunksTable)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	results := make([]models.SimilarityResult, 0, limit)
	for rows.Next() {
		var (
			id          string
			content     string
			metadataRaw []byte
			similarity  float64
		)
		if err := rows.Scan(&id, &content, &metadataRaw, &similarity); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		metadata := make(map[string]any)
		if len(metadataRaw) > 0 {
			if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
				return nil, fmt.Errorf("decode metadata for %q: %w", id, err)
			}
		}
		results = append(results, models.SimilarityResult{
			ID:         id,
			Content:    content,
			Metadata:   metadata,
			Similarity: similarity,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search rows: %w", err)
	}
	return results, nil
}

// ExistsByTitle reports whether any chunks are stored for the given document
// title. Titles are compared byte-exactly, with no canonicalization.
func (s *PGVectorStore) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE metadata ->> 'title' = $1)", chunksTable),
		title).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("title lookup: %w", err)
	}
	return exists, nil
}

// ExistsByFileHash reports whether chunks from a file with the same content
// hash are already stored, regardless of title.
func (s *PGVectorStore) ExistsByFileHash(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE metadata ->> 'file_hash' = $1)", chunksTable),
		hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("file hash lookup: %w", err)
	}
	return exists, nil
}

// Deduplicate removes stale chunk groups. Chunks are grouped by title and by
// the processed_at stamp shared by all chunks of one ingestion run; for each
// title only the newest run survives. processed_at is RFC3339, so string
// comparison orders chronologically.
func (s *PGVectorStore) Deduplicate(ctx context.Context) (int64, error) {
	stmt := fmt.Sprintf(`WITH latest AS (
		SELECT metadata ->> 'title' AS title, MAX(metadata ->> 'processed_at') AS newest
		FROM %s
		GROUP BY metadata ->> 'title'
	)
	DELETE FROM %s c
	USING latest l
	WHERE c.metadata ->> 'title' = l.title
	  AND c.metadata ->> 'processed_at' < l.newest`, chunksTable, chunksTable)

	tag, err := s.pool.Exec(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("deduplicate: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllChunks empties the store. Used when the embedding model changes
// and every vector must be regenerated.
func (s *PGVectorStore) DeleteAllChunks(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf("TRUNCATE %s", chunksTable)); err != nil {
		return fmt.Errorf("delete all chunks: %w", err)
	}
	return nil
}

// WithDocumentLock runs fn while holding a per-title advisory lock, making
// the check-then-insert sequence of ingestion safe against concurrent runs
// for the same document identity.
func (s *PGVectorStore) WithDocumentLock(ctx context.Context, title string, fn func(ctx context.Context) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for lock: %w", err)
	}
	defer conn.Release()

	key := lockKeyForTitle(title)
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", key); err != nil {
		return fmt.Errorf("acquire document lock: %w", err)
	}
	defer func() {
		// Best effort: the lock also dies with the session.
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", key)
	}()

	return fn(ctx)
}

// lockKeyForTitle maps a document title to a stable advisory lock key.
func lockKeyForTitle(title string) int64 {
	h := fnv.New64a()
	h.Write([]byte(title))
	return int64(h.Sum64())
}
