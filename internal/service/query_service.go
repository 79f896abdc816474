package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/localrag/localrag/internal/ai"
	"github.com/localrag/localrag/internal/index"
	"github.com/localrag/localrag/internal/model"
	appErr "github.com/localrag/localrag/internal/pkg/errors"
	"github.com/localrag/localrag/internal/querycache"
	"github.com/localrag/localrag/internal/repo"
)

const defaultTopK = 5

// QueryService runs the retrieval path:
// normalize -> cache -> embed -> search -> cache.
type QueryService struct {
	docs     *repo.DocumentRepo
	idx      *index.Index
	cache    *querycache.Cache
	embedder ai.IEmbedder
	health   *ModelHealth
	maxTopK  int
}

func NewQueryService(docs *repo.DocumentRepo, idx *index.Index, cache *querycache.Cache, embedder ai.IEmbedder, health *ModelHealth, maxTopK int) *QueryService {
	if maxTopK <= 0 {
		maxTopK = 20
	}
	return &QueryService{
		docs:     docs,
		idx:      idx,
		cache:    cache,
		embedder: embedder,
		health:   health,
		maxTopK:  maxTopK,
	}
}

func (s *QueryService) Query(ctx context.Context, query string, topK int) (*model.QueryResult, error) {
	start := time.Now()
	normalized := querycache.Normalize(query)
	if normalized == "" {
		return nil, fmt.Errorf("%w: query text is required", appErr.ErrInvalid)
	}
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > s.maxTopK {
		topK = s.maxTopK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("query", normalized), zap.Int("top_k", topK))

	if cached, ok := s.cache.Get(normalized, topK); ok {
		logger.Debug("query cache hit")
		return &model.QueryResult{
			Query:          query,
			Sources:        cached,
			ProcessingMs:   time.Since(start).Milliseconds(),
			FromCache:      true,
			TotalCandidate: s.idx.Size(),
		}, nil
	}

	vec, err := s.embedder.Embed(ctx, normalized, ai.TaskTypeQuery)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) || errors.Is(err, ai.ErrTimeout) {
			s.health.MarkDown()
		}
		logger.Error("embed query failed", zap.Error(err))
		// A broken model is an explicit error, never a silent empty result.
		return nil, err
	}
	s.health.MarkUp()

	gen := s.cache.Generation()
	matches, err := s.idx.Search(vec, topK)
	if err != nil {
		return nil, err
	}
	sources := s.buildSources(ctx, matches)
	s.cache.Put(normalized, topK, gen, sources)
	logger.Debug("query completed", zap.Int("results", len(sources)))
	return &model.QueryResult{
		Query:          query,
		Sources:        sources,
		ProcessingMs:   time.Since(start).Milliseconds(),
		TotalCandidate: s.idx.Size(),
	}, nil
}

func (s *QueryService) buildSources(ctx context.Context, matches []index.Match) []model.Source {
	filenames := make(map[string]string)
	sources := make([]model.Source, 0, len(matches))
	for _, m := range matches {
		name, ok := filenames[m.Entry.DocumentID]
		if !ok {
			if doc, err := s.docs.GetByID(ctx, m.Entry.DocumentID); err == nil {
				name = doc.Filename
			}
			filenames[m.Entry.DocumentID] = name
		}
		sources = append(sources, model.Source{
			ChunkID:    m.Entry.ChunkID,
			DocumentID: m.Entry.DocumentID,
			Filename:   name,
			Seq:        m.Entry.Seq,
			Text:       m.Entry.Text,
			Score:      m.Score,
			Start:      m.Entry.Start,
			End:        m.Entry.End,
		})
	}
	return sources
}

type IndexStatus struct {
	Documents      int    `json:"documents"`
	IndexedChunks  int    `json:"indexed_chunks"`
	Dimension      int    `json:"dimension"`
	Model          string `json:"model"`
	ModelAvailable bool   `json:"model_available"`
	ModelChecked   bool   `json:"model_checked"`
	CachedQueries  int    `json:"cached_queries"`
	TotalBytes     int64  `json:"total_bytes"`
	FailedDocs     int    `json:"failed_docs"`
}

// Status backs the detailed health endpoint.
func (s *QueryService) Status(ctx context.Context) (*IndexStatus, error) {
	stats, err := s.docs.Stats(ctx)
	if err != nil {
		return nil, err
	}
	up, checked := s.health.State()
	return &IndexStatus{
		Documents:      stats.Total,
		IndexedChunks:  s.idx.Size(),
		Dimension:      s.idx.Dimension(),
		Model:          s.embedder.ModelName(),
		ModelAvailable: up,
		ModelChecked:   checked,
		CachedQueries:  s.cache.Len(),
		TotalBytes:     stats.TotalBytes,
		FailedDocs:     stats.Failed,
	}, nil
}
