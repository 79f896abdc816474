package service

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/localrag/localrag/internal/index"
)

// IndexMaintainJob compacts tombstoned entries out of the index on a
// schedule, so long-running instances with churn do not hold garbage
// until the removal threshold happens to trip.
type IndexMaintainJob struct {
	idx *index.Index
}

func NewIndexMaintainJob(idx *index.Index) *IndexMaintainJob {
	return &IndexMaintainJob{idx: idx}
}

func (j *IndexMaintainJob) Name() string {
	return "index-maintain"
}

func (j *IndexMaintainJob) Run(ctx context.Context) error {
	pending := j.idx.PendingRemovals()
	if pending == 0 {
		return nil
	}
	j.idx.Compact()
	logutil.GetLogger(ctx).Info("index compacted",
		zap.Int("reclaimed", pending),
		zap.Int("live", j.idx.Size()),
	)
	return nil
}
