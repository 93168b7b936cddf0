package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"
)

// PGVectorDatabase stores collections in PostgreSQL using the pgvector extension.
type PGVectorDatabase struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS ingestor_collections (
	name TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ingestor_records (
	collection TEXT NOT NULL REFERENCES ingestor_collections(name) ON DELETE CASCADE,
	id TEXT NOT NULL,
	embedding vector NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);
`

// NewPGVectorDatabase connects to dsn, installs the vector extension and schema if needed,
// and registers the pgvector codecs on every pooled connection.
func NewPGVectorDatabase(ctx context.Context, dsn string, opts ...Option) (*PGVectorDatabase, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	o := newOptions(opts)

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	_, err = conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	_ = conn.Close(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enable vector extension: %w", err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &PGVectorDatabase{pool: pool, logger: o.logger}, nil
}

// Heartbeat implements Database.
func (d *PGVectorDatabase) Heartbeat(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// GetOrCreateCollection implements Database.
func (d *PGVectorDatabase) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if _, err := d.pool.Exec(ctx,
		`INSERT INTO ingestor_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return &PGVectorCollection{pool: d.pool, name: name}, nil
}

// Close closes the pool.
func (d *PGVectorDatabase) Close() error {
	d.pool.Close()
	return nil
}

// PGVectorCollection is one collection inside a PGVectorDatabase.
type PGVectorCollection struct {
	pool *pgxpool.Pool
	name string
}

// Name implements Collection.
func (c *PGVectorCollection) Name() string { return c.name }

// Upsert implements Collection.
func (c *PGVectorCollection) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO ingestor_records (collection, id, embedding, metadata, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (collection, id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`,
		c.name, id, pgvector.NewVector(embedding), copyMetadata(metadata),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %q: %w", id, err)
	}
	return nil
}

// Get implements Collection.
func (c *PGVectorCollection) Get(ctx context.Context, id string) (*Record, error) {
	var vec pgvector.Vector
	var metadata map[string]any
	err := c.pool.QueryRow(ctx,
		`SELECT embedding, metadata FROM ingestor_records WHERE collection = $1 AND id = $2`,
		c.name, id,
	).Scan(&vec, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Embedding: vec.Slice(), Metadata: copyMetadata(metadata)}, nil
}

// Count implements Collection.
func (c *PGVectorCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM ingestor_records WHERE collection = $1`, c.name).Scan(&n)
	return n, err
}

// Query implements Collection using the cosine distance operator.
func (c *PGVectorCollection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := c.pool.Query(ctx,
		`SELECT id, embedding, metadata, embedding <=> $2 AS distance
		 FROM ingestor_records
		 WHERE collection = $1 AND vector_dims(embedding) = $4
		 ORDER BY distance
		 LIMIT $3`,
		c.name, pgvector.NewVector(embedding), k, len(embedding),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var vec pgvector.Vector
		if err := rows.Scan(&m.ID, &vec, &m.Metadata, &m.Distance); err != nil {
			return nil, err
		}
		m.Embedding = vec.Slice()
		if m.Metadata == nil {
			m.Metadata = map[string]any{}
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
