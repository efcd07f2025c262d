// Package semantic computes the five pre-registered metrics over the sealed
// snapshot prefix. It runs only after the unlock transition.
//
// Each metric has a deterministic keyword layer; embedding and language-model
// scoring are optional collaborators layered on top. A collaborator failure
// on one item never aborts the metric.
package semantic

import (
	"regexp"
	"sort"
	"strings"
)

var (
	codeBlockRe = regexp.MustCompile("(?s)```.*?```")
	urlRe       = regexp.MustCompile(`https?://\S+`)
	nonLetterRe = regexp.MustCompile(`[^a-zA-Z\s]`)
)

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "being": {}, "have": {}, "has": {}, "had": {}, "do": {},
	"does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "can": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "it": {}, "its": {}, "you": {},
	"your": {}, "we": {}, "our": {}, "they": {}, "their": {},
}

// Keywords extracts the concept vocabulary of a text: code blocks and URLs
// stripped, letters only, lowercased, stopwords and short words dropped.
func Keywords(text string) map[string]struct{} {
	text = codeBlockRe.ReplaceAllString(text, " ")
	text = urlRe.ReplaceAllString(text, " ")
	text = nonLetterRe.ReplaceAllString(text, " ")

	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// Jaccard returns the intersection-over-union of two sets, and 1 for two
// empty sets.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func union(dst, src map[string]struct{}) {
	for w := range src {
		dst[w] = struct{}{}
	}
}

func sortedWords(set map[string]struct{}) []string {
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// NoveltyBand labels a novelty score.
type NoveltyBand string

const (
	BandPioneer  NoveltyBand = "PIONEER"
	BandExplorer NoveltyBand = "EXPLORER"
	BandIterator NoveltyBand = "ITERATOR"
	BandVariant  NoveltyBand = "VARIANT"
	BandEcho     NoveltyBand = "ECHO"
)

// ClassifyNovelty assigns a score to its band: PIONEER at 0.8 and above,
// then EXPLORER at 0.6, ITERATOR at 0.4, VARIANT at 0.2, ECHO below.
func ClassifyNovelty(score float64) NoveltyBand {
	switch {
	case score >= 0.8:
		return BandPioneer
	case score >= 0.6:
		return BandExplorer
	case score >= 0.4:
		return BandIterator
	case score >= 0.2:
		return BandVariant
	default:
		return BandEcho
	}
}
