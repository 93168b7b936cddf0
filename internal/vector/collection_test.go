package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseCollection checks the behaviour every backend must share.
func exerciseCollection(t *testing.T, db Database) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, db.Heartbeat(ctx))
	coll, err := db.GetOrCreateCollection(ctx, "reports")
	require.NoError(t, err)
	assert.Equal(t, "reports", coll.Name())

	again, err := db.GetOrCreateCollection(ctx, "reports")
	require.NoError(t, err)

	n, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = coll.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, coll.Upsert(ctx, "d", []float32{1, 0, 0}, map[string]any{"file_name": "d", "content": "first"}))
	require.NoError(t, coll.Upsert(ctx, "d", []float32{0, 1, 0}, map[string]any{"file_name": "d", "content": "second"}))
	require.NoError(t, coll.Upsert(ctx, "e", []float32{0.9, 0.1, 0}, map[string]any{"file_name": "e", "content": ""}))

	n, err = again.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, err := again.Get(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, "d", rec.ID)
	assert.Equal(t, []float32{0, 1, 0}, rec.Embedding)
	assert.Equal(t, "second", rec.Metadata["content"])
	assert.Equal(t, "d", rec.Metadata["file_name"])

	matches, err := coll.Query(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "e", matches[0].ID)

	matches, err = coll.Query(ctx, []float32{0, 1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "d", matches[0].ID)
	assert.InDelta(t, 0, matches[0].Distance, 1e-6)
	assert.Equal(t, "second", matches[0].Metadata["content"])
}

func TestMemoryDatabase(t *testing.T) {
	exerciseCollection(t, NewMemoryDatabase())
}

func TestSQLiteDatabase(t *testing.T) {
	db, err := NewSQLiteDatabase(t.TempDir() + "/sub/vectors.db")
	require.NoError(t, err)
	defer db.Close()
	exerciseCollection(t, db)
}

func TestSQLiteDatabase_PersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/vectors.db"
	ctx := context.Background()

	db, err := NewSQLiteDatabase(path)
	require.NoError(t, err)
	coll, err := db.GetOrCreateCollection(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, coll.Upsert(ctx, "r1", []float32{0.1, 0.2, 0.3}, map[string]any{"file_name": "r1"}))
	require.NoError(t, db.Close())

	db, err = NewSQLiteDatabase(path)
	require.NoError(t, err)
	defer db.Close()
	coll, err = db.GetOrCreateCollection(ctx, "c")
	require.NoError(t, err)
	rec, err := coll.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, rec.Embedding)
}

func TestMemoryCollection_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	coll, err := NewMemoryDatabase().GetOrCreateCollection(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, coll.Upsert(ctx, "a", []float32{1, 2}, nil))
	assert.ErrorIs(t, coll.Upsert(ctx, "b", []float32{1, 2, 3}, nil), ErrDimensionMismatch)
	_, err = coll.Query(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestMemoryCollection_CopiesInput(t *testing.T) {
	ctx := context.Background()
	coll, err := NewMemoryDatabase().GetOrCreateCollection(ctx, "c")
	require.NoError(t, err)
	vec := []float32{1, 2}
	meta := map[string]any{"k": "v"}
	require.NoError(t, coll.Upsert(ctx, "a", vec, meta))
	vec[0] = 9
	meta["k"] = "changed"

	rec, err := coll.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, rec.Embedding)
	assert.Equal(t, "v", rec.Metadata["k"])
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryDatabase{}, db)

	db, err = Open(ctx, Config{Backend: "sqlite", Path: t.TempDir() + "/v.db"})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteDatabase{}, db)
	require.NoError(t, db.Close())

	db, err = Open(ctx, Config{URL: "http://localhost:8000"})
	require.NoError(t, err)
	assert.IsType(t, &ChromaDatabase{}, db)

	_, err = Open(ctx, Config{Backend: "chroma"})
	assert.Error(t, err)
	_, err = Open(ctx, Config{Backend: "faiss"})
	assert.Error(t, err)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 1.0, CosineDistance([]float32{1}, []float32{1, 0}))
}

func TestNearest_Empty(t *testing.T) {
	assert.Nil(t, nearest(nil, []float32{1}, 3))
	assert.Nil(t, nearest([]Record{{ID: "a", Embedding: []float32{1}}}, []float32{1}, 0))
}
