package semantic

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/darkroom/internal/model"
)

// fakeEmbedder returns a fixed-dimension vector derived from text length.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, txt := range texts {
		out[i] = []float32{float32(len(txt)), 1}
	}
	return out, nil
}

// fakeScorer scores by comment body and fails on demand.
type fakeScorer struct {
	scores map[string]float64
	failOn string
}

func (f *fakeScorer) SurpriseScore(_ context.Context, text string) (float64, error) {
	if text == f.failOn {
		return 0, errors.New("scoring backend down")
	}
	return f.scores[text], nil
}

func noveltyCorpus() *Corpus {
	return BuildCorpus([]model.Snapshot{{
		Seq: 1,
		Payload: model.SnapshotPayload{
			Tasks: []model.Task{
				task("t-1", "distributed cache eviction", "alice", t0, "infra"),
				task("t-2", "quantum melody synthesizer", "bob", t0.Add(time.Hour), "audio"),
				task("t-3", "distributed cache eviction", "carol", t0.Add(2*time.Hour), "infra"),
			},
		},
	}})
}

func TestSemanticNovelty(t *testing.T) {
	payload := semanticNovelty(context.Background(), noveltyCorpus(), nil, nil, slog.Default())

	assert.Equal(t, 3, payload["task_count"])
	assert.InDelta(t, 2.0/3.0, payload["average_novelty"], 1e-9)

	bands := payload["bands"].(map[string]any)
	assert.Equal(t, 2, bands["pioneer"], "first task and the all-new task")
	assert.Equal(t, 1, bands["echo"], "full repeat of an earlier task")

	tasks := payload["tasks"].([]any)
	require.Len(t, tasks, 3)
	last := tasks[2].(map[string]any)
	assert.Equal(t, "t-3", last["task_id"])
	assert.Equal(t, 0.0, last["novelty"])
	assert.Equal(t, string(BandEcho), last["band"])
}

func TestSemanticNoveltyWithEmbedder(t *testing.T) {
	payload := semanticNovelty(context.Background(), noveltyCorpus(), nil, &fakeEmbedder{}, slog.Default())

	distances := payload["centroid_distances"].([]any)
	require.Len(t, distances, 3)
	first := distances[0].(map[string]any)
	assert.Equal(t, "t-1", first["task_id"])
}

func TestSemanticNoveltyEmbedderFailureIsSoft(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("quota exhausted")}
	payload := semanticNovelty(context.Background(), noveltyCorpus(), nil, embedder, slog.Default())

	assert.NotContains(t, payload, "centroid_distances")
	assert.Equal(t, 3, payload["task_count"], "keyword layer still computed")
}

func TestConceptualSynthesis(t *testing.T) {
	c := BuildCorpus([]model.Snapshot{{
		Seq: 1,
		Payload: model.SnapshotPayload{
			Tasks: []model.Task{
				task("t-1", "cache eviction for sessions", "alice", t0, "infra"),
				task("t-2", "cache warmup melodies", "bob", t0.Add(time.Hour), "audio"),
				task("t-3", "cache metrics dashboard", "alice", t0.Add(2*time.Hour), "infra"),
			},
		},
	}})

	payload := conceptualSynthesis(c, nil)

	pairs := payload["pairs"].([]any)
	found := map[[2]string]bool{}
	for _, p := range pairs {
		m := p.(map[string]any)
		if m["term"] == "cache" {
			found[[2]string{m["task_a"].(string), m["task_b"].(string)}] = true
		}
	}
	assert.True(t, found[[2]string{"t-1", "t-2"}], "different agent, no shared tag")
	assert.True(t, found[[2]string{"t-2", "t-3"}])
	assert.False(t, found[[2]string{"t-1", "t-3"}], "same agent and tag, related")
}

func TestTemporalDynamics(t *testing.T) {
	c := BuildCorpus([]model.Snapshot{
		{Seq: 1, Payload: model.SnapshotPayload{Tasks: []model.Task{
			task("t-1", "alpha bravo charlie delta", "alice", t0),
		}}},
		{Seq: 2, Payload: model.SnapshotPayload{Tasks: []model.Task{
			task("t-1", "alpha bravo echoes foxtrot", "alice", t0),
		}}},
	})

	payload := temporalDynamics(c)

	assert.Equal(t, 2, payload["snapshot_count"])
	windows := payload["windows"].([]any)
	require.Len(t, windows, 1)
	w := windows[0].(map[string]any)
	assert.Equal(t, int64(1), w["from_seq"])
	assert.Equal(t, int64(2), w["to_seq"])
	// {alpha bravo charlie delta} vs {alpha bravo echoes foxtrot}: 2 of 6.
	assert.InDelta(t, 1.0/3.0, w["jaccard"], 1e-9)
	assert.InDelta(t, 2.0/3.0, payload["average_drift"], 1e-9)
}

func TestCollaborativeEmergence(t *testing.T) {
	c := BuildCorpus([]model.Snapshot{{
		Seq: 1,
		Payload: model.SnapshotPayload{
			Tasks: []model.Task{
				task("t-1", "planning", "alice", t0),
				task("t-2", "solo thread", "bob", t0.Add(time.Hour)),
			},
			Comments: []model.Comment{
				comment("c-1", "t-1", "alice", "backpressure handling idea", t0),
				comment("c-2", "t-1", "bob", "backpressure with windowed acks", t0.Add(time.Minute)),
				comment("c-3", "t-1", "alice", "private sidenote", t0.Add(2*time.Minute)),
				comment("c-4", "t-2", "bob", "backpressure alone here", t0.Add(time.Hour)),
			},
		},
	}})

	payload := collaborativeEmergence(c)

	assert.Equal(t, 1, payload["multi_author_threads"])
	threads := payload["threads"].([]any)
	require.Len(t, threads, 1)
	thread := threads[0].(map[string]any)
	assert.Equal(t, "t-1", thread["task_id"])
	assert.Equal(t, []string{"backpressure"}, thread["examples"],
		"only the concept both authors used")
	assert.Equal(t, 1, thread["size"])
}

func TestSurpriseWithScorer(t *testing.T) {
	c := BuildCorpus([]model.Snapshot{{
		Seq: 1,
		Payload: model.SnapshotPayload{
			Tasks: []model.Task{task("t-1", "planning", "alice", t0)},
			Comments: []model.Comment{
				comment("c-1", "t-1", "alice", "routine status update", t0),
				comment("c-2", "t-1", "bob", "astonishing discovery inside", t0.Add(time.Minute)),
				comment("c-3", "t-1", "carol", "backend will reject this", t0.Add(2*time.Minute)),
			},
		},
	}})

	scorer := &fakeScorer{
		scores: map[string]float64{
			"routine status update":        0.1,
			"astonishing discovery inside": 0.95,
		},
		failOn: "backend will reject this",
	}
	payload := surprise(context.Background(), c, map[string]string{"outlier_min": "0.9"}, scorer, slog.Default())

	assert.Equal(t, 3, payload["comment_count"])
	assert.Equal(t, 1, payload["scoring_failures"], "one comment fell back to the baseline score")

	outliers := payload["outliers"].([]any)
	require.Len(t, outliers, 1)
	o := outliers[0].(map[string]any)
	assert.Equal(t, "c-2", o["comment_id"])
	assert.Equal(t, 0.95, o["score"])
}

func TestSurpriseBaseline(t *testing.T) {
	c := BuildCorpus([]model.Snapshot{{
		Seq: 1,
		Payload: model.SnapshotPayload{
			Tasks: []model.Task{task("t-1", "planning", "alice", t0)},
			Comments: []model.Comment{
				comment("c-1", "t-1", "alice", "deploy pipeline update", t0),
				comment("c-2", "t-1", "bob", "deploy pipeline update", t0.Add(time.Minute)),
			},
		},
	}})

	payload := surprise(context.Background(), c, nil, nil, slog.Default())

	assert.Equal(t, 2, payload["comment_count"])
	assert.Equal(t, 0, payload["scoring_failures"])
	assert.Equal(t, 0.7, payload["outlier_min"], "default threshold")
}

func TestComputeMetricUnknownKind(t *testing.T) {
	_, err := computeMetric(context.Background(), &Corpus{}, model.ProtocolDefinition{
		Name: "bad",
		Kind: model.MetricKind("telepathy"),
	}, nil, nil, slog.Default())
	require.Error(t, err)
}
