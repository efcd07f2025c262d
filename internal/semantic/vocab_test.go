package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	text := "Implement the streaming parser for https://example.com/spec with a ```code block here``` and retry logic"
	kw := Keywords(text)

	assert.Contains(t, kw, "implement")
	assert.Contains(t, kw, "streaming")
	assert.Contains(t, kw, "parser")
	assert.Contains(t, kw, "retry")
	assert.Contains(t, kw, "logic")

	assert.NotContains(t, kw, "the", "stopword")
	assert.NotContains(t, kw, "with", "stopword")
	assert.NotContains(t, kw, "and", "short and stopword")
	assert.NotContains(t, kw, "code", "inside code block")
	assert.NotContains(t, kw, "block", "inside code block")
	assert.NotContains(t, kw, "example", "inside URL")
}

func TestKeywordsEmpty(t *testing.T) {
	assert.Empty(t, Keywords(""))
	assert.Empty(t, Keywords("a an the to of"))
	assert.Empty(t, Keywords("123 456 !!!"))
}

func TestJaccard(t *testing.T) {
	set := func(words ...string) map[string]struct{} {
		out := map[string]struct{}{}
		for _, w := range words {
			out[w] = struct{}{}
		}
		return out
	}

	assert.Equal(t, 1.0, Jaccard(nil, nil))
	assert.Equal(t, 0.0, Jaccard(set("alpha"), set("beta")))
	assert.Equal(t, 1.0, Jaccard(set("alpha", "beta"), set("alpha", "beta")))
	assert.Equal(t, 0.5, Jaccard(set("alpha", "beta", "gamma"), set("alpha", "beta", "delta")))
}

func TestClassifyNovelty(t *testing.T) {
	tests := []struct {
		score float64
		want  NoveltyBand
	}{
		{1.0, BandPioneer},
		{0.8, BandPioneer},
		{0.79, BandExplorer},
		{0.6, BandExplorer},
		{0.4, BandIterator},
		{0.2, BandVariant},
		{0.19, BandEcho},
		{0.0, BandEcho},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ClassifyNovelty(tc.score), "score %v", tc.score)
	}
}
