package chunker

import (
	"fmt"
	"strings"

	"github.com/localrag/localrag/internal/model"
	appErr "github.com/localrag/localrag/internal/pkg/errors"
)

// Chunker splits extracted text into overlapping rune windows.
// Splitting is a pure function of (text, size, overlap): identical input
// always yields identical chunk boundaries.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive", appErr.ErrInvalid)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: chunk overlap must be in [0, size)", appErr.ErrInvalid)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Chunk(documentID, text string) []*model.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []*model.Chunk
	start := 0
	seq := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.adjustBoundary(runes, start, end)
		}
		chunks = append(chunks, &model.Chunk{
			DocumentID: documentID,
			Seq:        seq,
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})
		if end == len(runes) {
			break
		}
		start = end - c.overlap
		seq++
	}
	return chunks
}

// adjustBoundary walks back from the hard cut looking for a paragraph or
// sentence break within the tolerance window. The window never shrinks a
// chunk below overlap+1 runes, so the next start always advances.
func (c *Chunker) adjustBoundary(runes []rune, start, end int) int {
	tolerance := c.size / 4
	floor := end - tolerance
	if min := start + c.overlap + 1; floor < min {
		floor = min
	}
	// Paragraph breaks take priority over sentence ends.
	for i := end - 1; i >= floor; i-- {
		if runes[i] == '\n' && i > 0 && runes[i-1] == '\n' {
			return i + 1
		}
	}
	for i := end - 1; i >= floor; i-- {
		if isSentenceEnd(runes[i]) {
			return i + 1
		}
	}
	for i := end - 1; i >= floor; i-- {
		if runes[i] == '\n' || runes[i] == ' ' || runes[i] == '\t' {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	}
	return false
}
