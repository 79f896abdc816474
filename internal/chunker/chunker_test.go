package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/localrag/localrag/internal/pkg/errors"
)

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative size", size: -10, overlap: 0},
		{name: "negative overlap", size: 100, overlap: -1},
		{name: "overlap equals size", size: 100, overlap: 100},
		{name: "overlap exceeds size", size: 100, overlap: 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			require.ErrorIs(t, err, appErr.ErrInvalid)
		})
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	require.Nil(t, c.Chunk("doc", ""))
	require.Nil(t, c.Chunk("doc", "   \n\t  "))
}

func TestChunkShortInputSingleChunk(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	chunks := c.Chunk("doc", "hello world")
	require.Len(t, chunks, 1)
	require.Equal(t, "hello world", chunks[0].Text)
	require.Equal(t, 0, chunks[0].Seq)
	require.Equal(t, 0, chunks[0].Start)
	require.Equal(t, 11, chunks[0].End)
}

func TestChunkDeterministic(t *testing.T) {
	c, err := New(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 20)
	first := c.Chunk("doc", text)
	second := c.Chunk("doc", text)
	require.Equal(t, first, second)
}

func TestChunkOverlapAndCoverage(t *testing.T) {
	c, err := New(40, 8)
	require.NoError(t, err)

	text := strings.Repeat("abcdefghij", 30)
	runes := []rune(text)
	chunks := c.Chunk("doc", text)
	require.NotEmpty(t, chunks)

	require.Equal(t, 0, chunks[0].Start)
	require.Equal(t, len(runes), chunks[len(chunks)-1].End)
	for i, ch := range chunks {
		require.Equal(t, i, ch.Seq)
		require.Equal(t, string(runes[ch.Start:ch.End]), ch.Text)
		if i > 0 {
			prev := chunks[i-1]
			require.Equal(t, prev.End-8, ch.Start)
			require.Greater(t, ch.End, prev.End, "every chunk must advance past the previous one")
		}
	}
}

func TestChunkPrefersParagraphBreak(t *testing.T) {
	c, err := New(40, 5)
	require.NoError(t, err)

	// The hard cut at 40 lands inside the second paragraph; the blank
	// line sits inside the tolerance window, so the boundary walks back
	// to just after it.
	first := strings.Repeat("a", 31)
	text := first + "\n\n" + strings.Repeat("b", 60)
	chunks := c.Chunk("doc", text)
	require.GreaterOrEqual(t, len(chunks), 2)
	require.Equal(t, first+"\n\n", chunks[0].Text)
}

func TestChunkPrefersSentenceEnd(t *testing.T) {
	c, err := New(40, 5)
	require.NoError(t, err)

	// The period sits inside the tolerance window of the hard cut at 40.
	first := strings.Repeat("a", 32) + "."
	text := first + " " + strings.Repeat("b", 60)
	chunks := c.Chunk("doc", text)
	require.GreaterOrEqual(t, len(chunks), 2)
	require.Equal(t, first, chunks[0].Text)
}

func TestChunkHardCutWithoutBoundary(t *testing.T) {
	c, err := New(30, 5)
	require.NoError(t, err)

	text := strings.Repeat("x", 100)
	chunks := c.Chunk("doc", text)
	require.NotEmpty(t, chunks)
	require.Len(t, []rune(chunks[0].Text), 30)
}

func TestChunkMultiByteRunes(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("日本語テキスト処理確認", 5)
	runes := []rune(text)
	chunks := c.Chunk("doc", text)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		require.LessOrEqual(t, len([]rune(ch.Text)), 10)
		require.Equal(t, string(runes[ch.Start:ch.End]), ch.Text)
	}
	require.Equal(t, len(runes), chunks[len(chunks)-1].End)
}
