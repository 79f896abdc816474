package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/localrag/localrag/internal/ai"
)

type countingEmbedder struct {
	calls      int
	batchCalls int
	seen       [][]string
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	return vectorFor(text), nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.batchCalls++
	c.seen = append(c.seen, append([]string(nil), texts...))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vectorFor(t)
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string {
	return "test-model"
}

func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func TestWrapReturnsUnderlyingWhenDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 0, time.Minute))
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 16, 0))
	require.Nil(t, WrapLruCacheToEmbedder(nil, 16, time.Minute))
}

func TestEmbedCachesByText(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	v1, err := cached.Embed(context.Background(), "hello", ai.TaskTypeDocument)
	require.NoError(t, err)
	v2, err := cached.Embed(context.Background(), "hello", ai.TaskTypeDocument)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Equal(t, 1, inner.calls)

	// Different task type is a separate entry.
	_, err = cached.Embed(context.Background(), "hello", ai.TaskTypeQuery)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestEmbedReturnsCopy(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	v1, err := cached.Embed(context.Background(), "hello", ai.TaskTypeDocument)
	require.NoError(t, err)
	v1[0] = -999

	v2, err := cached.Embed(context.Background(), "hello", ai.TaskTypeDocument)
	require.NoError(t, err)
	require.NotEqual(t, float32(-999), v2[0])
}

func TestEmbedBatchOnlyFetchesMisses(t *testing.T) {
	inner := &countingEmbedder{}
	cached := WrapLruCacheToEmbedder(inner, 16, time.Minute)

	_, err := cached.Embed(context.Background(), "b", ai.TaskTypeDocument)
	require.NoError(t, err)

	out, err := cached.EmbedBatch(context.Background(), []string{"a", "b", "c"}, ai.TaskTypeDocument)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.Equal(t, vectorFor("a"), out[0])
	require.Equal(t, vectorFor("b"), out[1])
	require.Equal(t, vectorFor("c"), out[2])

	// Only the two misses went to the provider, in original order.
	require.Equal(t, 1, inner.batchCalls)
	require.Equal(t, []string{"a", "c"}, inner.seen[0])

	// A fully cached batch never calls the provider.
	_, err = cached.EmbedBatch(context.Background(), []string{"a", "b", "c"}, ai.TaskTypeDocument)
	require.NoError(t, err)
	require.Equal(t, 1, inner.batchCalls)
}

func TestModelNameDelegates(t *testing.T) {
	cached := WrapLruCacheToEmbedder(&countingEmbedder{}, 16, time.Minute)
	require.Equal(t, "test-model", cached.ModelName())
}
