package service

import (
	"context"
	"crypto/sha256"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrag/localrag/internal/blobstore"
	"github.com/localrag/localrag/internal/chunker"
	"github.com/localrag/localrag/internal/config"
	"github.com/localrag/localrag/internal/index"
	"github.com/localrag/localrag/internal/querycache"
	"github.com/localrag/localrag/internal/repo"
)

// stubEmbedder derives a deterministic vector from the text so the same
// chunk always embeds identically. It can be primed to fail a number of
// batch calls first.
type stubEmbedder struct {
	mu            sync.Mutex
	batchCalls    int
	failRemaining int
	failErr       error
}

func (s *stubEmbedder) vector(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	return []float32{float32(sum[0]) + 1, float32(sum[1]) + 1, float32(sum[2]) + 1}
}

func (s *stubEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRemaining != 0 {
		if s.failRemaining > 0 {
			s.failRemaining--
		}
		return nil, s.failErr
	}
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls++
	if s.failRemaining != 0 {
		if s.failRemaining > 0 {
			s.failRemaining--
		}
		return nil, s.failErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s *stubEmbedder) ModelName() string {
	return "stub-model"
}

type testEnv struct {
	ingest   *IngestService
	queries  *QueryService
	idx      *index.Index
	cache    *querycache.Cache
	docs     *repo.DocumentRepo
	entries  *repo.IndexRepo
	blobs    blobstore.Store
	health   *ModelHealth
	embedder *stubEmbedder
}

func newTestEnv(t *testing.T, cfg IngestConfig) *testEnv {
	t.Helper()
	db, err := repo.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, repo.ApplyMigrations(db))
	t.Cleanup(func() {
		_ = db.Close()
	})

	blobs, err := blobstore.New(config.BlobStoreConfig{
		Type: "local",
		Data: map[string]interface{}{"dir": t.TempDir()},
	})
	require.NoError(t, err)

	splitter, err := chunker.New(80, 10)
	require.NoError(t, err)

	env := &testEnv{
		idx:      index.New(index.MetricCosine, 3, 0),
		cache:    querycache.New(64, time.Minute),
		docs:     repo.NewDocumentRepo(db),
		entries:  repo.NewIndexRepo(db),
		blobs:    blobs,
		health:   NewModelHealth(),
		embedder: &stubEmbedder{},
	}
	env.ingest = NewIngestService(env.docs, env.entries, env.blobs, splitter, env.embedder, env.idx, env.cache, env.health, cfg)
	env.queries = NewQueryService(env.docs, env.idx, env.cache, env.embedder, env.health, 10)
	return env
}
