package repo_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localrag/localrag/internal/index"
	"github.com/localrag/localrag/internal/repo"
)

func docEntries(documentID string, count int) []*index.Entry {
	entries := make([]*index.Entry, 0, count)
	for i := 0; i < count; i++ {
		entries = append(entries, &index.Entry{
			ChunkID:    fmt.Sprintf("%s:%d", documentID, i),
			DocumentID: documentID,
			Seq:        i,
			Text:       fmt.Sprintf("chunk %d", i),
			Start:      i * 10,
			End:        i*10 + 10,
			Vector:     []float32{float32(i), 1, 2},
		})
	}
	return entries
}

func TestIndexRepoSaveAndLoadRoundtrip(t *testing.T) {
	db := openTestDB(t)
	entries := repo.NewIndexRepo(db)
	ctx := context.Background()

	require.NoError(t, entries.SaveDocumentEntries(ctx, "doc-a", docEntries("doc-a", 2)))
	require.NoError(t, entries.SaveDocumentEntries(ctx, "doc-b", docEntries("doc-b", 1)))

	loaded, err := entries.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	// Insertion order is preserved across the roundtrip.
	require.Equal(t, "doc-a:0", loaded[0].ChunkID)
	require.Equal(t, "doc-a:1", loaded[1].ChunkID)
	require.Equal(t, "doc-b:0", loaded[2].ChunkID)
	require.Equal(t, []float32{0, 1, 2}, loaded[0].Vector)
	require.Equal(t, 10, loaded[1].Start)
	require.Equal(t, 20, loaded[1].End)
}

func TestIndexRepoSaveReplacesDocument(t *testing.T) {
	db := openTestDB(t)
	entries := repo.NewIndexRepo(db)
	ctx := context.Background()

	require.NoError(t, entries.SaveDocumentEntries(ctx, "doc-a", docEntries("doc-a", 3)))
	require.NoError(t, entries.SaveDocumentEntries(ctx, "doc-a", docEntries("doc-a", 1)))

	loaded, err := entries.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "doc-a:0", loaded[0].ChunkID)
}

func TestIndexRepoDeleteByDocument(t *testing.T) {
	db := openTestDB(t)
	entries := repo.NewIndexRepo(db)
	ctx := context.Background()

	require.NoError(t, entries.SaveDocumentEntries(ctx, "doc-a", docEntries("doc-a", 2)))
	require.NoError(t, entries.SaveDocumentEntries(ctx, "doc-b", docEntries("doc-b", 2)))

	require.NoError(t, entries.DeleteByDocument(ctx, "doc-a"))
	loaded, err := entries.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for _, e := range loaded {
		require.Equal(t, "doc-b", e.DocumentID)
	}

	// Deleting an absent document is not an error.
	require.NoError(t, entries.DeleteByDocument(ctx, "missing"))
}

func TestIndexRepoDeleteAll(t *testing.T) {
	db := openTestDB(t)
	entries := repo.NewIndexRepo(db)
	ctx := context.Background()

	require.NoError(t, entries.SaveDocumentEntries(ctx, "doc-a", docEntries("doc-a", 2)))
	require.NoError(t, entries.DeleteAll(ctx))

	loaded, err := entries.LoadAll(ctx)
	require.NoError(t, err)
	require.Empty(t, loaded)
}
