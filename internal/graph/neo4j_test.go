//go:build integration

package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/danielbwilkinson/jargon-rag/internal/domain"
	"github.com/danielbwilkinson/jargon-rag/internal/testutil"
)

const testDims = 4

func newTestStore(ctx context.Context, t *testing.T) *Store {
	nc := testutil.NewNeo4jContainer(ctx, t)
	t.Cleanup(func() { _ = nc.Terminate(ctx) })

	store, err := Open(ctx, Config{
		URI:      nc.URI(),
		User:     nc.User,
		Password: nc.Password,
		Index:    "note_embeddings",
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	require.NoError(t, store.EnsureIndex(ctx, testDims))
	return store
}

func seedNote(ctx context.Context, t *testing.T, store *Store, title, text string, embedding []float32) {
	n := domain.NewNote(title, domain.NoteTypeContent, text, text, []string{"tag"})
	n.Embedding = embedding
	require.NoError(t, store.CreateNote(ctx, n))
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(ctx, t)

	seedNote(ctx, t, store, "Nmap", "# Nmap\nport scanning with -sV", testutil.UnitVector(testDims, 0))
	seedNote(ctx, t, store, "Kerberoasting", "# Kerberoasting\nRequest TGS for SPN accounts", testutil.UnitVector(testDims, 1))
	seedNote(ctx, t, store, "Rubeus", "# Rubeus\nkerberoast with Rubeus.exe", testutil.Blend(testDims, 1, 2, 0.5))

	query := testutil.UnitVector(testDims, 1)

	t.Run("vector top k", func(t *testing.T) {
		titles, err := store.VectorTopK(ctx, query, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"Kerberoasting", "Rubeus"}, titles)
	})

	t.Run("score candidates drops unknown titles", func(t *testing.T) {
		scored, err := store.ScoreCandidates(ctx, []string{"Nmap", "Ghost", "Rubeus", "Kerberoasting"}, query)
		require.NoError(t, err)
		require.Len(t, scored, 3)
		assert.Equal(t, []string{"Kerberoasting", "Rubeus", "Nmap"},
			[]string{scored[0].Title, scored[1].Title, scored[2].Title})
	})

	t.Run("text containing", func(t *testing.T) {
		titles, err := store.TextContaining(ctx, []string{"SPN", "-sV"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Kerberoasting", "Nmap"}, titles)
	})

	t.Run("links", func(t *testing.T) {
		created, err := store.CreateLink(ctx, "Kerberoasting", "Rubeus")
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.CreateLink(ctx, "Kerberoasting", "Missing")
		require.NoError(t, err)
		assert.False(t, created)

		out, err := store.OutLinks(ctx, []string{"Kerberoasting"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Rubeus"}, out)
	})

	t.Run("fetch", func(t *testing.T) {
		nt, err := store.Fetch(ctx, "Rubeus")
		require.NoError(t, err)
		assert.Equal(t, "# Rubeus\nkerberoast with Rubeus.exe", nt.Text)

		_, err = store.Fetch(ctx, "Ghost")
		assert.ErrorIs(t, err, domain.ErrNoteNotFound)
	})

	t.Run("duplicate title", func(t *testing.T) {
		n := domain.NewNote("Nmap", domain.NoteTypePrimary, "x", "x", nil)
		n.Embedding = testutil.UnitVector(testDims, 3)
		assert.ErrorIs(t, store.CreateNote(ctx, n), domain.ErrNoteAlreadyExists)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		assert.ErrorIs(t, store.EnsureIndex(ctx, testDims+1), domain.ErrDimensionMismatch)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, store.Reset(ctx))

		_, err := store.Fetch(ctx, "Nmap")
		assert.ErrorIs(t, err, domain.ErrNoteNotFound)

		assert.NoError(t, store.EnsureIndex(ctx, 8))
	})
}
