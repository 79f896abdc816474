package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	appErr "github.com/localrag/localrag/internal/pkg/errors"
)

type Metric string

const (
	MetricCosine       Metric = "cosine"
	MetricInnerProduct Metric = "inner_product"
)

// Entry is one indexed chunk. Entries keep insertion order so equal
// scores always rank the earlier-inserted chunk first.
type Entry struct {
	ChunkID    string    `json:"chunk_id"`
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Vector     []float32 `json:"vector"`
}

type Match struct {
	Entry *Entry
	Score float32
}

// Index is an in-memory nearest-neighbor index. Document writes are
// atomic under a coarse write lock; removals tombstone entries and the
// slice is compacted once enough garbage accumulates. Readers only ever
// observe a document's chunks all-present or all-absent.
type Index struct {
	mu               sync.RWMutex
	metric           Metric
	dim              int
	entries          []*Entry
	removed          map[string]struct{}
	live             int
	removals         int
	rebuildThreshold int
}

// New creates an index. dim may be 0, in which case the first inserted
// vector fixes the dimension for the lifetime of the index.
func New(metric Metric, dim int, rebuildThreshold int) *Index {
	if metric == "" {
		metric = MetricCosine
	}
	if rebuildThreshold <= 0 {
		rebuildThreshold = 64
	}
	return &Index{
		metric:           metric,
		dim:              dim,
		removed:          make(map[string]struct{}),
		rebuildThreshold: rebuildThreshold,
	}
}

// InsertDocument adds every chunk of a document or none of them.
func (idx *Index) InsertDocument(documentID string, entries []*Entry) error {
	if documentID == "" || len(entries) == 0 {
		return fmt.Errorf("%w: document id and entries are required", appErr.ErrInvalid)
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.containsLocked(documentID) {
		return fmt.Errorf("%w: document %s already indexed", appErr.ErrConflict, documentID)
	}
	dim := idx.dim
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: chunk %s has no vector", appErr.ErrInvalid, e.ChunkID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: chunk %s has dimension %d, index dimension is %d",
				appErr.ErrDimensionMismatch, e.ChunkID, len(e.Vector), dim)
		}
	}
	idx.dim = dim
	// A tombstoned document still has stale entries in the slice; drop
	// them before re-adding so they cannot resurface.
	if _, gone := idx.removed[documentID]; gone {
		idx.compactLocked()
	}
	idx.entries = append(idx.entries, entries...)
	idx.live += len(entries)
	return nil
}

// RemoveDocument tombstones every entry of the document atomically and
// reports how many chunks it held.
func (idx *Index) RemoveDocument(documentID string) int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, gone := idx.removed[documentID]; gone {
		return 0
	}
	count := 0
	for _, e := range idx.entries {
		if e.DocumentID == documentID {
			count++
		}
	}
	if count == 0 {
		return 0
	}
	idx.removed[documentID] = struct{}{}
	idx.live -= count
	idx.removals += count
	if idx.removals >= idx.rebuildThreshold {
		idx.compactLocked()
	}
	return count
}

// Search returns the top-k entries by similarity, never an error on an
// empty index. A query vector of the wrong dimension is a caller bug and
// is reported as such.
func (idx *Index) Search(vector []float32, k int) ([]Match, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if k <= 0 || idx.live == 0 {
		return nil, nil
	}
	if idx.dim != 0 && len(vector) != idx.dim {
		return nil, fmt.Errorf("%w: query vector has dimension %d, index dimension is %d",
			appErr.ErrDimensionMismatch, len(vector), idx.dim)
	}
	matches := make([]Match, 0, idx.live)
	for _, e := range idx.entries {
		if _, gone := idx.removed[e.DocumentID]; gone {
			continue
		}
		matches = append(matches, Match{Entry: e, Score: idx.score(vector, e.Vector)})
	}
	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.live
}

func (idx *Index) Contains(documentID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.containsLocked(documentID)
}

// Snapshot copies the live entries in insertion order, for persistence.
func (idx *Index) Snapshot() []*Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]*Entry, 0, idx.live)
	for _, e := range idx.entries {
		if _, gone := idx.removed[e.DocumentID]; gone {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Load replaces the index contents with persisted entries (warm restart).
func (idx *Index) Load(entries []*Entry) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	dim := idx.dim
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("%w: persisted chunk %s has no vector", appErr.ErrInvalid, e.ChunkID)
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			return fmt.Errorf("%w: persisted chunk %s has dimension %d, index dimension is %d",
				appErr.ErrDimensionMismatch, e.ChunkID, len(e.Vector), dim)
		}
	}
	idx.dim = dim
	idx.entries = append([]*Entry(nil), entries...)
	idx.removed = make(map[string]struct{})
	idx.live = len(entries)
	idx.removals = 0
	return nil
}

func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries = nil
	idx.removed = make(map[string]struct{})
	idx.live = 0
	idx.removals = 0
}

// Compact drops tombstoned entries immediately, regardless of threshold.
func (idx *Index) Compact() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.compactLocked()
}

// PendingRemovals reports tombstoned entries not yet compacted away.
func (idx *Index) PendingRemovals() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.removals
}

func (idx *Index) containsLocked(documentID string) bool {
	if _, gone := idx.removed[documentID]; gone {
		return false
	}
	for _, e := range idx.entries {
		if e.DocumentID == documentID {
			return true
		}
	}
	return false
}

func (idx *Index) compactLocked() {
	if idx.removals == 0 {
		return
	}
	kept := make([]*Entry, 0, idx.live)
	for _, e := range idx.entries {
		if _, gone := idx.removed[e.DocumentID]; gone {
			continue
		}
		kept = append(kept, e)
	}
	idx.entries = kept
	idx.removed = make(map[string]struct{})
	idx.removals = 0
}

func (idx *Index) score(a, b []float32) float32 {
	switch idx.metric {
	case MetricInnerProduct:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return float32(dot)
	default:
		return cosineSimilarity(a, b)
	}
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
