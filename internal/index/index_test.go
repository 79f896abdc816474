package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/localrag/localrag/internal/pkg/errors"
)

func makeEntries(documentID string, vectors ...[]float32) []*Entry {
	entries := make([]*Entry, 0, len(vectors))
	for i, v := range vectors {
		entries = append(entries, &Entry{
			ChunkID:    fmt.Sprintf("%s:%d", documentID, i),
			DocumentID: documentID,
			Seq:        i,
			Text:       fmt.Sprintf("chunk %d of %s", i, documentID),
			Vector:     v,
		})
	}
	return entries
}

func TestSearchEmptyIndex(t *testing.T) {
	idx := New(MetricCosine, 0, 0)
	matches, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestInsertAndSearchTopK(t *testing.T) {
	idx := New(MetricCosine, 3, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a",
		[]float32{1, 0, 0},
		[]float32{0, 1, 0},
	)))
	require.NoError(t, idx.InsertDocument("doc-b", makeEntries("doc-b",
		[]float32{0.9, 0.1, 0},
	)))
	require.Equal(t, 3, idx.Size())

	matches, err := idx.Search([]float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "doc-a:0", matches[0].Entry.ChunkID)
	require.Equal(t, "doc-b:0", matches[1].Entry.ChunkID)
	require.Greater(t, matches[0].Score, matches[1].Score)

	// k larger than the index just returns everything.
	matches, err = idx.Search([]float32{1, 0, 0}, 100)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	matches, err = idx.Search([]float32{1, 0, 0}, 0)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	idx := New(MetricCosine, 2, 0)
	// Identical vectors score identically against any query.
	require.NoError(t, idx.InsertDocument("first", makeEntries("first", []float32{1, 1})))
	require.NoError(t, idx.InsertDocument("second", makeEntries("second", []float32{1, 1})))
	require.NoError(t, idx.InsertDocument("third", makeEntries("third", []float32{1, 1})))

	matches, err := idx.Search([]float32{1, 1}, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	require.Equal(t, "first:0", matches[0].Entry.ChunkID)
	require.Equal(t, "second:0", matches[1].Entry.ChunkID)
	require.Equal(t, "third:0", matches[2].Entry.ChunkID)
}

func TestInsertDimensionMismatch(t *testing.T) {
	idx := New(MetricCosine, 3, 0)
	err := idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0}))
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	require.Equal(t, 0, idx.Size())

	// A mismatch inside the batch leaves the index untouched.
	err = idx.InsertDocument("doc-b", makeEntries("doc-b",
		[]float32{1, 0, 0},
		[]float32{1, 0},
	))
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	require.Equal(t, 0, idx.Size())
	require.False(t, idx.Contains("doc-b"))
}

func TestFirstInsertFixesDimension(t *testing.T) {
	idx := New(MetricCosine, 0, 0)
	require.Equal(t, 0, idx.Dimension())
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0, 0, 0})))
	require.Equal(t, 4, idx.Dimension())

	err := idx.InsertDocument("doc-b", makeEntries("doc-b", []float32{1, 0}))
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestSearchQueryDimensionMismatch(t *testing.T) {
	idx := New(MetricCosine, 3, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0, 0})))

	_, err := idx.Search([]float32{1, 0}, 5)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestInsertDuplicateDocument(t *testing.T) {
	idx := New(MetricCosine, 2, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0})))
	err := idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{0, 1}))
	require.ErrorIs(t, err, appErr.ErrConflict)
	require.Equal(t, 1, idx.Size())
}

func TestRemoveDocument(t *testing.T) {
	idx := New(MetricCosine, 2, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a",
		[]float32{1, 0},
		[]float32{0, 1},
	)))
	require.NoError(t, idx.InsertDocument("doc-b", makeEntries("doc-b", []float32{1, 1})))

	require.Equal(t, 2, idx.RemoveDocument("doc-a"))
	require.Equal(t, 1, idx.Size())
	require.False(t, idx.Contains("doc-a"))
	require.True(t, idx.Contains("doc-b"))

	// Removing again or removing an unknown document is a no-op.
	require.Equal(t, 0, idx.RemoveDocument("doc-a"))
	require.Equal(t, 0, idx.RemoveDocument("missing"))

	matches, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "doc-b:0", matches[0].Entry.ChunkID)
}

func TestReinsertAfterRemove(t *testing.T) {
	idx := New(MetricCosine, 2, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0})))
	require.Equal(t, 1, idx.RemoveDocument("doc-a"))
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{0, 1})))
	require.Equal(t, 1, idx.Size())

	matches, err := idx.Search([]float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
}

func TestCompactionAtThreshold(t *testing.T) {
	idx := New(MetricCosine, 2, 4)
	for i := 0; i < 5; i++ {
		doc := fmt.Sprintf("doc-%d", i)
		require.NoError(t, idx.InsertDocument(doc, makeEntries(doc, []float32{1, 0})))
	}

	idx.RemoveDocument("doc-0")
	idx.RemoveDocument("doc-1")
	idx.RemoveDocument("doc-2")
	require.Equal(t, 3, idx.PendingRemovals())

	// The fourth removal crosses the threshold and triggers compaction.
	idx.RemoveDocument("doc-3")
	require.Equal(t, 0, idx.PendingRemovals())
	require.Equal(t, 1, idx.Size())

	matches, err := idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "doc-4", matches[0].Entry.DocumentID)
}

func TestExplicitCompact(t *testing.T) {
	idx := New(MetricCosine, 2, 1000)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0})))
	idx.RemoveDocument("doc-a")
	require.Equal(t, 1, idx.PendingRemovals())
	idx.Compact()
	require.Equal(t, 0, idx.PendingRemovals())
	require.Equal(t, 0, idx.Size())
}

func TestSnapshotAndLoadRoundtrip(t *testing.T) {
	idx := New(MetricCosine, 2, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0})))
	require.NoError(t, idx.InsertDocument("doc-b", makeEntries("doc-b", []float32{0, 1})))
	idx.RemoveDocument("doc-a")

	snap := idx.Snapshot()
	require.Len(t, snap, 1)
	require.Equal(t, "doc-b:0", snap[0].ChunkID)

	restored := New(MetricCosine, 0, 0)
	require.NoError(t, restored.Load(snap))
	require.Equal(t, 1, restored.Size())
	require.Equal(t, 2, restored.Dimension())
	require.True(t, restored.Contains("doc-b"))
}

func TestReset(t *testing.T) {
	idx := New(MetricCosine, 2, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a", []float32{1, 0})))
	idx.Reset()
	require.Equal(t, 0, idx.Size())

	matches, err := idx.Search([]float32{1, 0}, 5)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestInnerProductMetric(t *testing.T) {
	idx := New(MetricInnerProduct, 2, 0)
	require.NoError(t, idx.InsertDocument("doc-a", makeEntries("doc-a",
		[]float32{2, 0},
		[]float32{1, 0},
	)))

	matches, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Inner product rewards magnitude, cosine would tie these.
	require.Equal(t, "doc-a:0", matches[0].Entry.ChunkID)
	require.InDelta(t, 2.0, float64(matches[0].Score), 1e-6)
	require.InDelta(t, 1.0, float64(matches[1].Score), 1e-6)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			require.InDelta(t, tt.want, float64(got), 1e-6)
		})
	}
}
