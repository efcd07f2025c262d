package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/roach88/darkroom/internal/model"
)

const maxExamples = 5

// paramFloat reads a decimal-string parameter, falling back when the key is
// absent or unparseable.
func paramFloat(params map[string]string, key string, fallback float64) float64 {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func paramInt(params map[string]string, key string, fallback int) int {
	raw, ok := params[key]
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// computeMetric dispatches one frozen definition to its metric.
func computeMetric(ctx context.Context, c *Corpus, def model.ProtocolDefinition, embedder Embedder, scorer Scorer, log *slog.Logger) (map[string]any, error) {
	switch def.Kind {
	case model.MetricSemanticNovelty:
		return semanticNovelty(ctx, c, def.Parameters, embedder, log), nil
	case model.MetricConceptualSynthesis:
		return conceptualSynthesis(c, def.Parameters), nil
	case model.MetricTemporalDynamics:
		return temporalDynamics(c), nil
	case model.MetricCollaborativeEmergence:
		return collaborativeEmergence(c), nil
	case model.MetricSurprise:
		return surprise(ctx, c, def.Parameters, scorer, log), nil
	default:
		return nil, fmt.Errorf("compute %q: unknown metric kind %q", def.Name, def.Kind)
	}
}

// semanticNovelty scores each task by the share of its concepts unseen in
// earlier-created tasks, banded PIONEER through ECHO. When an embedder is
// available each task also gets its distance from the corpus centroid; an
// embedding failure degrades to the keyword layer alone.
func semanticNovelty(ctx context.Context, c *Corpus, params map[string]string, embedder Embedder, log *slog.Logger) map[string]any {
	type row struct {
		id      string
		novelty float64
		band    NoveltyBand
		vocab   int
	}

	seen := map[string]struct{}{}
	rows := make([]row, 0, len(c.Tasks))
	total := 0.0
	bands := map[NoveltyBand]int{}

	for _, doc := range c.Tasks {
		novelty := 0.0
		if len(doc.Vocab) > 0 {
			fresh := 0
			for w := range doc.Vocab {
				if _, ok := seen[w]; !ok {
					fresh++
				}
			}
			novelty = float64(fresh) / float64(len(doc.Vocab))
		}
		union(seen, doc.Vocab)

		band := ClassifyNovelty(novelty)
		bands[band]++
		total += novelty
		rows = append(rows, row{id: doc.Task.ID, novelty: novelty, band: band, vocab: len(doc.Vocab)})
	}

	tasks := make([]any, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, map[string]any{
			"task_id":       r.id,
			"novelty":       r.novelty,
			"band":          string(r.band),
			"keyword_count": r.vocab,
		})
	}

	payload := map[string]any{
		"task_count": len(c.Tasks),
		"tasks":      tasks,
		"bands": map[string]any{
			"pioneer":  bands[BandPioneer],
			"explorer": bands[BandExplorer],
			"iterator": bands[BandIterator],
			"variant":  bands[BandVariant],
			"echo":     bands[BandEcho],
		},
	}
	if len(c.Tasks) > 0 {
		payload["average_novelty"] = total / float64(len(c.Tasks))
	}

	if embedder != nil && len(c.Tasks) > 0 {
		if distances, err := centroidDistances(ctx, c, embedder); err != nil {
			log.Warn("embedding novelty unavailable, keyword layer only", "error", err)
		} else {
			payload["centroid_distances"] = distances
		}
	}
	return payload
}

func centroidDistances(ctx context.Context, c *Corpus, embedder Embedder) ([]any, error) {
	texts := make([]string, 0, len(c.Tasks))
	for _, doc := range c.Tasks {
		texts = append(texts, doc.Text())
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}

	center := centroid(vectors)
	out := make([]any, 0, len(vectors))
	for i, v := range vectors {
		out = append(out, map[string]any{
			"task_id":  c.Tasks[i].Task.ID,
			"distance": cosineDistance(v, center),
		})
	}
	return out, nil
}

// conceptualSynthesis finds concepts carried by otherwise-unrelated tasks
// (different agents, no shared tag) and reports the cross-pollination pairs.
func conceptualSynthesis(c *Corpus, params map[string]string) map[string]any {
	minTasks := paramInt(params, "min_tasks", 2)

	carriers := map[string][]int{}
	for i, doc := range c.Tasks {
		for w := range doc.Vocab {
			carriers[w] = append(carriers[w], i)
		}
	}

	terms := make([]string, 0, len(carriers))
	for w, idx := range carriers {
		if len(idx) >= minTasks {
			terms = append(terms, w)
		}
	}
	sort.Strings(terms)

	pairs := []any{}
	seenPair := map[string]struct{}{}
	for _, w := range terms {
		idx := carriers[w]
		for i := 0; i < len(idx); i++ {
			for j := i + 1; j < len(idx); j++ {
				a, b := c.Tasks[idx[i]], c.Tasks[idx[j]]
				if !unrelated(a.Task, b.Task) {
					continue
				}
				key := w + "\x00" + a.Task.ID + "\x00" + b.Task.ID
				if _, dup := seenPair[key]; dup {
					continue
				}
				seenPair[key] = struct{}{}
				pairs = append(pairs, map[string]any{
					"term":   w,
					"task_a": a.Task.ID,
					"task_b": b.Task.ID,
				})
			}
		}
	}

	return map[string]any{
		"shared_term_count": len(terms),
		"pair_count":        len(pairs),
		"pairs":             pairs,
	}
}

// unrelated holds when two tasks share neither agent nor any tag.
func unrelated(a, b model.Task) bool {
	if a.Agent != "" && a.Agent == b.Agent {
		return false
	}
	tags := map[string]struct{}{}
	for _, t := range a.Tags {
		tags[t] = struct{}{}
	}
	for _, t := range b.Tags {
		if _, ok := tags[t]; ok {
			return false
		}
	}
	return true
}

// temporalDynamics tracks vocabulary drift across the ordered snapshot
// sequence as one minus the Jaccard similarity of consecutive vocabularies.
func temporalDynamics(c *Corpus) map[string]any {
	windows := []any{}
	totalDrift := 0.0

	for i := 1; i < len(c.Snapshots); i++ {
		prev, cur := c.Snapshots[i-1], c.Snapshots[i]
		sim := Jaccard(prev.Vocab, cur.Vocab)
		drift := 1 - sim
		totalDrift += drift
		windows = append(windows, map[string]any{
			"from_seq": prev.Seq,
			"to_seq":   cur.Seq,
			"jaccard":  sim,
			"drift":    drift,
		})
	}

	payload := map[string]any{
		"snapshot_count": len(c.Snapshots),
		"windows":        windows,
	}
	if len(windows) > 0 {
		payload["average_drift"] = totalDrift / float64(len(windows))
	}
	return payload
}

// collaborativeEmergence reports, per multi-author thread, the concepts that
// no single author carries alone: keywords used in comments by at least two
// distinct authors on the same task.
func collaborativeEmergence(c *Corpus) map[string]any {
	threads := []any{}
	multiAuthor := 0
	totalEmergent := 0

	for _, doc := range c.Tasks {
		authorsByWord := map[string]map[string]struct{}{}
		authors := map[string]struct{}{}
		for _, cm := range doc.Comments {
			authors[cm.Author] = struct{}{}
			for w := range Keywords(cm.Body) {
				if authorsByWord[w] == nil {
					authorsByWord[w] = map[string]struct{}{}
				}
				authorsByWord[w][cm.Author] = struct{}{}
			}
		}
		if len(authors) < 2 {
			continue
		}
		multiAuthor++

		emergent := map[string]struct{}{}
		for w, who := range authorsByWord {
			if len(who) >= 2 {
				emergent[w] = struct{}{}
			}
		}
		if len(emergent) == 0 {
			continue
		}
		totalEmergent += len(emergent)

		examples := sortedWords(emergent)
		if len(examples) > maxExamples {
			examples = examples[:maxExamples]
		}
		threads = append(threads, map[string]any{
			"task_id":  doc.Task.ID,
			"size":     len(emergent),
			"examples": examples,
		})
	}

	return map[string]any{
		"multi_author_threads": multiAuthor,
		"emergent_total":       totalEmergent,
		"threads":              threads,
	}
}

// surprise flags comments whose content is unexpected against the corpus
// baseline. With a scorer the score is the language-model rating; without
// one it is normalized keyword self-information against corpus frequency.
// Per-comment scorer failures are soft: the item falls back to the keyword
// score and is counted.
func surprise(ctx context.Context, c *Corpus, params map[string]string, scorer Scorer, log *slog.Logger) map[string]any {
	threshold := paramFloat(params, "outlier_min", 0.7)

	freq := map[string]int{}
	totalComments := 0
	for _, doc := range c.Tasks {
		for _, cm := range doc.Comments {
			totalComments++
			for w := range Keywords(cm.Body) {
				freq[w]++
			}
		}
	}

	outliers := []any{}
	scoringFailures := 0
	for _, doc := range c.Tasks {
		for _, cm := range doc.Comments {
			score := selfInformation(cm.Body, freq, totalComments)
			if scorer != nil {
				if s, err := scorer.SurpriseScore(ctx, cm.Body); err != nil {
					scoringFailures++
					log.Warn("surprise scoring failed, using baseline score",
						"comment_id", cm.ID, "error", err)
				} else {
					score = s
				}
			}
			if score >= threshold {
				outliers = append(outliers, map[string]any{
					"comment_id": cm.ID,
					"task_id":    cm.TaskID,
					"score":      score,
				})
			}
		}
	}

	return map[string]any{
		"comment_count":    totalComments,
		"outlier_min":      threshold,
		"outliers":         outliers,
		"scoring_failures": scoringFailures,
	}
}

// selfInformation is the mean per-keyword surprisal of a text against the
// corpus document frequency, squashed into [0, 1).
func selfInformation(text string, freq map[string]int, docs int) float64 {
	words := Keywords(text)
	if len(words) == 0 || docs == 0 {
		return 0
	}
	total := 0.0
	for w := range words {
		p := float64(freq[w]+1) / float64(docs+1)
		total += -math.Log2(p)
	}
	mean := total / float64(len(words))
	return mean / (mean + 1)
}
