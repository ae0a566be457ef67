package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls  int
	inputs [][]string
	err    error
}

func (c *countingEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.inputs = append(c.inputs, texts)
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestCachedEmbedder_EmbedQuery(t *testing.T) {
	next := &countingEmbedder{}
	cached := NewCachedEmbedder(next, "m", 16, time.Minute)

	for i := 0; i < 3; i++ {
		vec, err := cached.EmbedQuery(context.Background(), "acl rehab")
		require.NoError(t, err)
		assert.Equal(t, []float32{9}, vec)
	}
	assert.Equal(t, 1, next.calls, "wrapped embedder calls")
	assert.Equal(t, 1, cached.Len())
}

func TestCachedEmbedder_EmbedTexts_OnlyMisses(t *testing.T) {
	next := &countingEmbedder{}
	cached := NewCachedEmbedder(next, "m", 16, time.Minute)
	ctx := context.Background()

	_, err := cached.EmbedTexts(ctx, []string{"a", "bb"})
	require.NoError(t, err)
	got, err := cached.EmbedTexts(ctx, []string{"bb", "ccc", "a"})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a", "bb"}, {"ccc"}}, next.inputs)
	assert.Equal(t, [][]float32{{2}, {3}, {1}}, got)
}

func TestCachedEmbedder_ModelIsPartOfKey(t *testing.T) {
	next := &countingEmbedder{}
	a := NewCachedEmbedder(next, "model-a", 16, time.Minute)
	b := NewCachedEmbedder(next, "model-b", 16, time.Minute)
	assert.NotEqual(t, a.key("x"), b.key("x"))
}

func TestCachedEmbedder_ErrorNotCached(t *testing.T) {
	next := &countingEmbedder{err: errors.New("boom")}
	cached := NewCachedEmbedder(next, "m", 16, time.Minute)

	_, err := cached.EmbedQuery(context.Background(), "q")
	require.Error(t, err)
	next.err = nil
	_, err = cached.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedEmbedder_Disabled(t *testing.T) {
	next := &countingEmbedder{}
	cached := NewCachedEmbedder(next, "m", 0, time.Minute)

	for i := 0; i < 2; i++ {
		_, err := cached.EmbedQuery(context.Background(), "q")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.calls)
}
