package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/localrag/localrag/internal/ai"
	"github.com/localrag/localrag/internal/blobstore"
	"github.com/localrag/localrag/internal/chunker"
	"github.com/localrag/localrag/internal/extract"
	"github.com/localrag/localrag/internal/index"
	"github.com/localrag/localrag/internal/model"
	appErr "github.com/localrag/localrag/internal/pkg/errors"
	"github.com/localrag/localrag/internal/querycache"
	"github.com/localrag/localrag/internal/repo"
)

type IngestConfig struct {
	MaxUploadBytes int64
	MaxRetries     int
	PersistIndex   bool
}

// IngestService drives a document through
// extracting -> chunking -> embedding -> indexed, or parks it in failed
// with a reason. A document's chunks reach the index all at once or not
// at all.
type IngestService struct {
	docs     *repo.DocumentRepo
	entries  *repo.IndexRepo
	blobs    blobstore.Store
	splitter *chunker.Chunker
	embedder ai.IEmbedder
	idx      *index.Index
	cache    *querycache.Cache
	health   *ModelHealth
	cfg      IngestConfig
}

func NewIngestService(
	docs *repo.DocumentRepo,
	entries *repo.IndexRepo,
	blobs blobstore.Store,
	splitter *chunker.Chunker,
	embedder ai.IEmbedder,
	idx *index.Index,
	cache *querycache.Cache,
	health *ModelHealth,
	cfg IngestConfig,
) *IngestService {
	return &IngestService{
		docs:     docs,
		entries:  entries,
		blobs:    blobs,
		splitter: splitter,
		embedder: embedder,
		idx:      idx,
		cache:    cache,
		health:   health,
		cfg:      cfg,
	}
}

// Ingest processes one upload. Re-uploading bytes that were already
// indexed returns the existing record without touching the pipeline.
func (s *IngestService) Ingest(ctx context.Context, filename string, raw []byte) (*model.Document, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty upload", appErr.ErrInvalid)
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(raw)) > s.cfg.MaxUploadBytes {
		return nil, fmt.Errorf("%w: upload is %d bytes, limit is %d", appErr.ErrPayloadTooLarge, len(raw), s.cfg.MaxUploadBytes)
	}
	hash := sha256.Sum256(raw)
	docID := hex.EncodeToString(hash[:])
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID), zap.String("filename", filename))

	if existing, err := s.docs.GetByID(ctx, docID); err == nil {
		if existing.Status != model.DocumentStatusFailed {
			logger.Info("duplicate upload, returning existing document", zap.String("status", existing.Status))
			return existing, nil
		}
		// A failed document may be retried by re-uploading it.
		logger.Info("re-ingesting previously failed document", zap.String("fail_reason", existing.FailReason))
		if err := s.removeEverywhere(ctx, docID); err != nil {
			return nil, err
		}
	} else if !appErr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	doc := &model.Document{
		ID:       docID,
		Filename: filename,
		Size:     int64(len(raw)),
		Status:   model.DocumentStatusPending,
		Ctime:    now,
		Mtime:    now,
	}
	if err := s.blobs.Save(ctx, blobstore.RawKey(docID), raw); err != nil {
		return nil, fmt.Errorf("persist raw blob: %w", err)
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		// Two identical uploads can race past the dedup read; the loser
		// hits the primary key and takes the winner's record instead of
		// surfacing a constraint error.
		if existing, getErr := s.docs.GetByID(ctx, docID); getErr == nil && existing.Status != model.DocumentStatusFailed {
			logger.Info("concurrent duplicate upload, returning existing document", zap.String("status", existing.Status))
			return existing, nil
		}
		return nil, err
	}

	if err := s.process(ctx, doc, raw); err != nil {
		logger.Error("ingestion failed", zap.String("status", doc.Status), zap.Error(err))
		s.markFailed(ctx, doc, err)
		return doc, fmt.Errorf("%w: %w", appErr.ErrIngestionFailed, err)
	}
	logger.Info("document indexed", zap.Int("chunks", doc.ChunkCount))
	return doc, nil
}

func (s *IngestService) process(ctx context.Context, doc *model.Document, raw []byte) error {
	if err := s.transition(ctx, doc, model.DocumentStatusExtracting); err != nil {
		return err
	}
	text, err := extract.Text(doc.Filename, raw)
	if err != nil {
		return err
	}
	if err := s.blobs.Save(ctx, blobstore.TextKey(doc.ID), []byte(text)); err != nil {
		return fmt.Errorf("persist extracted text: %w", err)
	}

	if err := s.transition(ctx, doc, model.DocumentStatusChunking); err != nil {
		return err
	}
	chunks := s.splitter.Chunk(doc.ID, text)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: document has no indexable text", appErr.ErrInvalid)
	}

	if err := s.transition(ctx, doc, model.DocumentStatusEmbedding); err != nil {
		return err
	}
	texts := make([]string, 0, len(chunks))
	for _, ch := range chunks {
		texts = append(texts, ch.Text)
	}
	vectors, err := s.embedWithRetry(ctx, texts)
	if err != nil {
		return err
	}
	entries := make([]*index.Entry, 0, len(chunks))
	for i, ch := range chunks {
		ch.Embedding = vectors[i]
		entries = append(entries, &index.Entry{
			ChunkID:    ch.ChunkID(),
			DocumentID: ch.DocumentID,
			Seq:        ch.Seq,
			Text:       ch.Text,
			Start:      ch.Start,
			End:        ch.End,
			Vector:     ch.Embedding,
		})
	}

	if err := s.idx.InsertDocument(doc.ID, entries); err != nil {
		return err
	}
	if s.cfg.PersistIndex {
		if err := s.entries.SaveDocumentEntries(ctx, doc.ID, entries); err != nil {
			// Keep memory and disk consistent: roll the insert back.
			s.idx.RemoveDocument(doc.ID)
			return fmt.Errorf("persist index entries: %w", err)
		}
	}
	doc.ChunkCount = len(entries)
	doc.Status = model.DocumentStatusIndexed
	doc.Mtime = time.Now().UnixMilli()
	if err := s.docs.UpdateStatus(ctx, doc.ID, doc.Status, "", doc.ChunkCount, doc.Mtime); err != nil {
		return err
	}
	// Flush before acknowledging so no later query can see results
	// computed against the previous index state.
	s.cache.Flush()
	return nil
}

// embedWithRetry batches the chunk texts and retries transient provider
// failures with exponential backoff. Validation errors are permanent and
// surface immediately.
func (s *IngestService) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			logutil.GetLogger(ctx).Warn("retrying embedding batch",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts, ai.TaskTypeDocument)
		if err == nil {
			s.health.MarkUp()
			return vectors, nil
		}
		if !errors.Is(err, ai.ErrUnavailable) && !errors.Is(err, ai.ErrTimeout) {
			return nil, err
		}
		s.health.MarkDown()
		lastErr = err
	}
	return nil, lastErr
}

// Delete removes the document, its index entries, persisted rows and
// blobs. Queries issued after Delete returns never see its chunks.
func (s *IngestService) Delete(ctx context.Context, docID string) error {
	if _, err := s.docs.GetByID(ctx, docID); err != nil {
		return err
	}
	return s.removeEverywhere(ctx, docID)
}

func (s *IngestService) removeEverywhere(ctx context.Context, docID string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("doc_id", docID))
	removed := s.idx.RemoveDocument(docID)
	if err := s.entries.DeleteByDocument(ctx, docID); err != nil {
		return err
	}
	if err := s.docs.Delete(ctx, docID); err != nil && !appErr.IsNotFound(err) {
		return err
	}
	for _, key := range []string{blobstore.RawKey(docID), blobstore.TextKey(docID)} {
		if err := s.blobs.Delete(ctx, key); err != nil {
			logger.Warn("delete blob failed", zap.String("key", key), zap.Error(err))
		}
	}
	s.cache.Flush()
	logger.Info("document removed", zap.Int("chunks", removed))
	return nil
}

// Reset drops every document and all derived state (original behavior of
// the reset endpoint: a clean, empty session).
func (s *IngestService) Reset(ctx context.Context) (int, error) {
	docs, err := s.docs.List(ctx, "", 0, 0)
	if err != nil {
		return 0, err
	}
	for _, doc := range docs {
		for _, key := range []string{blobstore.RawKey(doc.ID), blobstore.TextKey(doc.ID)} {
			if err := s.blobs.Delete(ctx, key); err != nil {
				logutil.GetLogger(ctx).Warn("delete blob failed", zap.String("key", key), zap.Error(err))
			}
		}
	}
	deleted, err := s.docs.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.entries.DeleteAll(ctx); err != nil {
		return 0, err
	}
	s.idx.Reset()
	s.cache.Flush()
	logutil.GetLogger(ctx).Info("reset completed", zap.Int64("documents", deleted))
	return int(deleted), nil
}

// WarmStart reloads persisted index entries after a restart.
func (s *IngestService) WarmStart(ctx context.Context) error {
	if !s.cfg.PersistIndex {
		return nil
	}
	entries, err := s.entries.LoadAll(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	if err := s.idx.Load(entries); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("index warm-loaded",
		zap.Int("entries", len(entries)),
		zap.Int("dimension", s.idx.Dimension()),
	)
	return nil
}

func (s *IngestService) Get(ctx context.Context, docID string) (*model.Document, error) {
	return s.docs.GetByID(ctx, docID)
}

// Rename updates the display filename. The content hash stays the
// document's identity, so nothing is reprocessed, but cached query
// results carry the filename and have to be dropped.
func (s *IngestService) Rename(ctx context.Context, docID, filename string) (*model.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", appErr.ErrInvalid)
	}
	if err := s.docs.UpdateFilename(ctx, docID, filename, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	s.cache.Flush()
	return s.docs.GetByID(ctx, docID)
}

func (s *IngestService) List(ctx context.Context, search string, limit, offset uint) ([]model.Document, error) {
	return s.docs.List(ctx, search, limit, offset)
}

func (s *IngestService) Stats(ctx context.Context) (*repo.DocumentStats, error) {
	return s.docs.Stats(ctx)
}

// OpenRaw streams the stored original upload, for the download endpoint.
func (s *IngestService) OpenRaw(ctx context.Context, docID string) (io.ReadCloser, *model.Document, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.blobs.Open(ctx, blobstore.RawKey(docID))
	if err != nil {
		return nil, nil, err
	}
	return reader, doc, nil
}

func (s *IngestService) transition(ctx context.Context, doc *model.Document, status string) error {
	doc.Status = status
	doc.Mtime = time.Now().UnixMilli()
	logutil.GetLogger(ctx).Debug("document status",
		zap.String("doc_id", doc.ID),
		zap.String("status", status),
	)
	return s.docs.UpdateStatus(ctx, doc.ID, status, "", doc.ChunkCount, doc.Mtime)
}

func (s *IngestService) markFailed(ctx context.Context, doc *model.Document, cause error) {
	doc.Status = model.DocumentStatusFailed
	doc.FailReason = cause.Error()
	doc.Mtime = time.Now().UnixMilli()
	if err := s.docs.UpdateStatus(ctx, doc.ID, doc.Status, doc.FailReason, doc.ChunkCount, doc.Mtime); err != nil {
		logutil.GetLogger(ctx).Error("mark document failed", zap.String("doc_id", doc.ID), zap.Error(err))
	}
}
