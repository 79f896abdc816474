package model

// Source is one ranked retrieval hit.
type Source struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename,omitempty"`
	Seq        int     `json:"seq"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
}

type QueryResult struct {
	Query          string   `json:"query"`
	Sources        []Source `json:"sources"`
	ProcessingMs   int64    `json:"processing_ms"`
	FromCache      bool     `json:"from_cache"`
	TotalCandidate int      `json:"total_candidates"`
}
