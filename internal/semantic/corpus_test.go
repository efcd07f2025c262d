package semantic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/darkroom/internal/model"
)

var t0 = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

func task(id, title, agent string, created time.Time, tags ...string) model.Task {
	return model.Task{ID: id, Title: title, Agent: agent, Tags: tags, CreatedAt: created}
}

func comment(id, taskID, author, body string, created time.Time) model.Comment {
	return model.Comment{ID: id, TaskID: taskID, Author: author, Body: body, CreatedAt: created}
}

func TestBuildCorpus(t *testing.T) {
	snaps := []model.Snapshot{
		{
			Seq: 1,
			Payload: model.SnapshotPayload{
				Tasks: []model.Task{
					task("t-b", "cache eviction design", "alice", t0.Add(time.Hour)),
					task("t-a", "streaming parser", "bob", t0),
				},
				Comments: []model.Comment{
					comment("c-1", "t-a", "bob", "parser tokenizer draft", t0.Add(time.Minute)),
				},
			},
		},
		{
			Seq: 2,
			Payload: model.SnapshotPayload{
				Tasks: []model.Task{
					// Same task captured again with a newer status.
					{ID: "t-a", Title: "streaming parser", Agent: "bob", Status: "done", CreatedAt: t0},
				},
				Comments: []model.Comment{
					comment("c-1", "t-a", "bob", "parser tokenizer draft", t0.Add(time.Minute)),
					comment("c-2", "t-a", "carol", "tokenizer benchmarks", t0.Add(2*time.Minute)),
				},
			},
		},
	}

	c := BuildCorpus(snaps)

	require.Len(t, c.Tasks, 2)
	assert.Equal(t, "t-a", c.Tasks[0].Task.ID, "ordered by creation time")
	assert.Equal(t, "t-b", c.Tasks[1].Task.ID)
	assert.Equal(t, "done", c.Tasks[0].Task.Status, "newest capture wins")

	require.Len(t, c.Tasks[0].Comments, 2, "comments deduplicated by id")
	assert.Equal(t, "c-1", c.Tasks[0].Comments[0].ID)
	assert.Equal(t, "c-2", c.Tasks[0].Comments[1].ID)

	assert.Contains(t, c.Tasks[0].Vocab, "parser")
	assert.Contains(t, c.Tasks[0].Vocab, "benchmarks")
	assert.Contains(t, c.Tasks[1].Vocab, "eviction")

	require.Len(t, c.Snapshots, 2)
	assert.Equal(t, int64(1), c.Snapshots[0].Seq)
	assert.Contains(t, c.Snapshots[1].Vocab, "benchmarks")
}

func TestTaskDocText(t *testing.T) {
	doc := TaskDoc{
		Task: task("t-a", "streaming parser", "bob", t0),
		Comments: []model.Comment{
			comment("c-1", "t-a", "bob", "first", t0),
			comment("c-2", "t-a", "carol", "second", t0.Add(time.Minute)),
		},
	}
	assert.Equal(t, "streaming parser\nfirst\nsecond", doc.Text())
}
