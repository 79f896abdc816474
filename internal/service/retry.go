package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/localrag/localrag/internal/blobstore"
	"github.com/localrag/localrag/internal/model"
	appErr "github.com/localrag/localrag/internal/pkg/errors"
)

// Retry reprocesses a single failed document from its stored original
// bytes. Retrying is an operator action: nothing reprocesses failed
// documents on its own, and a document that is pending, mid-pipeline or
// already indexed cannot be retried.
func (s *IngestService) Retry(ctx context.Context, docID string) (*model.Document, error) {
	doc, err := s.docs.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if doc.Status != model.DocumentStatusFailed {
		return nil, fmt.Errorf("%w: document %s is %s, only failed documents can be retried", appErr.ErrConflict, docID, doc.Status)
	}
	reader, err := s.blobs.Open(ctx, blobstore.RawKey(docID))
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Info("retrying failed document",
		zap.String("doc_id", docID),
		zap.String("fail_reason", doc.FailReason),
	)
	return s.Ingest(ctx, doc.Filename, raw)
}
