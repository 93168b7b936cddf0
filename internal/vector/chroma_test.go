package vector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hyperjump/ingestor/internal/auth"
	"github.com/hyperjump/ingestor/internal/vector/chromatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestChromaDatabase(t *testing.T) {
	srv := chromatest.NewServer("")
	defer srv.Close()

	db, err := NewChromaDatabase(srv.URL)
	require.NoError(t, err)
	exerciseCollection(t, db)

	recs := srv.Records("reports")
	require.Len(t, recs, 2)
	assert.Equal(t, "d", recs[0].ID)
}

func TestChromaDatabase_HeartbeatDown(t *testing.T) {
	srv := chromatest.NewServer("")
	defer srv.Close()
	srv.SetDown(true)

	db, err := NewChromaDatabase(srv.URL)
	require.NoError(t, err)
	err = db.Heartbeat(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "unavailable", httpErr.Message)
}

func TestChromaDatabase_Unauthorized(t *testing.T) {
	srv := chromatest.NewServer("secret")
	defer srv.Close()

	db, err := NewChromaDatabase(srv.URL)
	require.NoError(t, err)
	err = db.Heartbeat(context.Background())
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestChromaDatabase_RenewsRejectedToken(t *testing.T) {
	srv := chromatest.NewServer("tok-1")
	defer srv.Close()

	tokens := []string{"tok-1", "tok-2"}
	calls := 0
	src := tokenFunc(func() (*oauth2.Token, error) {
		tok := tokens[calls%len(tokens)]
		calls++
		return &oauth2.Token{AccessToken: tok, Expiry: time.Now().Add(time.Hour)}, nil
	})
	provider := auth.NewProvider(src)
	db, err := NewChromaDatabase(srv.URL, WithHTTPClient(auth.NewHTTPClient(provider, nil)))
	require.NoError(t, err)

	ctx := context.Background()
	coll, err := db.GetOrCreateCollection(ctx, "c")
	require.NoError(t, err)

	srv.SetToken("tok-2")
	require.NoError(t, coll.Upsert(ctx, "a", []float32{1}, nil))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, srv.Upserts())
}

type tokenFunc func() (*oauth2.Token, error)

func (f tokenFunc) Token() (*oauth2.Token, error) { return f() }

func TestChromaCollection_UpsertFailure(t *testing.T) {
	srv := chromatest.NewServer("")
	defer srv.Close()

	db, err := NewChromaDatabase(srv.URL)
	require.NoError(t, err)
	coll, err := db.GetOrCreateCollection(context.Background(), "c")
	require.NoError(t, err)

	srv.SetFailUpserts(true)
	err = coll.Upsert(context.Background(), "a", []float32{1}, nil)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Empty(t, srv.Records("c"))
}

func TestChromaDatabase_APIPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{"nanosecond heartbeat": 1}`))
	}))
	defer srv.Close()

	db, err := NewChromaDatabase(srv.URL+"/", WithAPIPath("/api/v2/"))
	require.NoError(t, err)
	require.NoError(t, db.Heartbeat(context.Background()))
	assert.Equal(t, "/api/v2/heartbeat", gotPath)
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "bad", errorMessage([]byte(`{"error":"bad"}`)))
	assert.Equal(t, "nested", errorMessage([]byte(`{"error":{"message":"nested"}}`)))
	assert.Equal(t, "why", errorMessage([]byte(`{"detail":"why"}`)))
	assert.Equal(t, "plain text", errorMessage([]byte("plain text\n")))
}
