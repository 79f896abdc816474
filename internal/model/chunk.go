package model

import "strconv"

// Chunk is the unit of embedding and retrieval. Start/End are rune
// offsets into the extracted document text.
type Chunk struct {
	DocumentID string    `json:"document_id"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

func (c *Chunk) ChunkID() string {
	return c.DocumentID + ":" + strconv.Itoa(c.Seq)
}
