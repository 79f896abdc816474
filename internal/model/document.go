package model

const (
	DocumentStatusPending    = "pending"
	DocumentStatusExtracting = "extracting"
	DocumentStatusChunking   = "chunking"
	DocumentStatusEmbedding  = "embedding"
	DocumentStatusIndexed    = "indexed"
	DocumentStatusFailed     = "failed"
)

// Document ID is the hex sha256 of the raw upload, so re-uploading the
// same bytes always resolves to the same record.
type Document struct {
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Size       int64  `json:"size"`
	Status     string `json:"status"`
	FailReason string `json:"fail_reason,omitempty"`
	ChunkCount int    `json:"chunk_count"`
	Ctime      int64  `json:"ctime"`
	Mtime      int64  `json:"mtime"`
}
