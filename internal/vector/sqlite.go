package vector

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteDatabase persists collections in a single SQLite file. Queries scan the whole collection.
type SQLiteDatabase struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// NewSQLiteDatabase opens or creates the database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteDatabase(dbPath string, opts ...Option) (*SQLiteDatabase, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	o := newOptions(opts)
	return &SQLiteDatabase{db: db, path: dbPath, logger: o.logger}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		dimensions INTEGER NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id),
		FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (d *SQLiteDatabase) Path() string { return d.path }

// Heartbeat implements Database.
func (d *SQLiteDatabase) Heartbeat(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

// GetOrCreateCollection implements Database.
func (d *SQLiteDatabase) GetOrCreateCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if _, err := d.db.ExecContext(ctx, `INSERT OR IGNORE INTO collections (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("failed to create collection %q: %w", name, err)
	}
	return &SQLiteCollection{db: d.db, name: name}, nil
}

// Close closes the database.
func (d *SQLiteDatabase) Close() error {
	return d.db.Close()
}

// SQLiteCollection is one collection inside a SQLiteDatabase.
type SQLiteCollection struct {
	db   *sql.DB
	name string
}

// Name implements Collection.
func (c *SQLiteCollection) Name() string { return c.name }

// Upsert implements Collection.
func (c *SQLiteCollection) Upsert(ctx context.Context, id string, embedding []float32, metadata map[string]any) error {
	if id == "" {
		return fmt.Errorf("record id is required")
	}
	metadataJSON, err := json.Marshal(copyMetadata(metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO records (collection, id, dimensions, embedding, metadata, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id) DO UPDATE SET
			dimensions = excluded.dimensions,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		c.name, id, len(embedding), float32SliceToBytes(embedding), string(metadataJSON), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert %q: %w", id, err)
	}
	return nil
}

// Get implements Collection.
func (c *SQLiteCollection) Get(ctx context.Context, id string) (*Record, error) {
	var blob []byte
	var metadataJSON string
	err := c.db.QueryRowContext(ctx,
		`SELECT embedding, metadata FROM records WHERE collection = ? AND id = ?`, c.name, id,
	).Scan(&blob, &metadataJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return decodeRecord(id, blob, metadataJSON)
}

// Count implements Collection.
func (c *SQLiteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE collection = ?`, c.name).Scan(&n)
	return n, err
}

// Query implements Collection.
func (c *SQLiteCollection) Query(ctx context.Context, embedding []float32, k int) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, embedding, metadata FROM records WHERE collection = ? AND dimensions = ? ORDER BY id`,
		c.name, len(embedding),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var id, metadataJSON string
		var blob []byte
		if err := rows.Scan(&id, &blob, &metadataJSON); err != nil {
			return nil, err
		}
		r, err := decodeRecord(id, blob, metadataJSON)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nearest(records, embedding, k), nil
}

func decodeRecord(id string, blob []byte, metadataJSON string) (*Record, error) {
	r := &Record{ID: id, Embedding: bytesToFloat32Slice(blob), Metadata: map[string]any{}}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &r.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return r, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
