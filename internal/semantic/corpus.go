package semantic

import (
	"sort"
	"strings"

	"github.com/roach88/darkroom/internal/model"
)

// TaskDoc is one task with its accumulated comments and concept vocabulary.
type TaskDoc struct {
	Task     model.Task
	Comments []model.Comment

	// Vocab is the keyword set of the title plus every comment body.
	Vocab map[string]struct{}
}

// SnapshotVocab is the concept vocabulary of one snapshot, for drift
// tracking across the ordered chain.
type SnapshotVocab struct {
	Seq   int64
	Vocab map[string]struct{}
}

// Corpus is the analysis view of the sealed snapshot prefix. Tasks carry
// their newest captured state; comments are deduplicated across snapshots.
type Corpus struct {
	// Tasks ordered by creation time, oldest first.
	Tasks []TaskDoc

	// Snapshots ordered by chain position.
	Snapshots []SnapshotVocab
}

// BuildCorpus folds an ordered snapshot range into a corpus. Later snapshots
// override a task's captured state; comments accumulate by id.
func BuildCorpus(snaps []model.Snapshot) *Corpus {
	tasks := map[string]model.Task{}
	comments := map[string]model.Comment{}
	c := &Corpus{}

	for _, snap := range snaps {
		vocab := map[string]struct{}{}
		for _, t := range snap.Payload.Tasks {
			tasks[t.ID] = t
			union(vocab, Keywords(t.Title))
		}
		for _, cm := range snap.Payload.Comments {
			comments[cm.ID] = cm
			union(vocab, Keywords(cm.Body))
		}
		c.Snapshots = append(c.Snapshots, SnapshotVocab{Seq: snap.Seq, Vocab: vocab})
	}

	byTask := map[string][]model.Comment{}
	for _, cm := range comments {
		byTask[cm.TaskID] = append(byTask[cm.TaskID], cm)
	}

	for _, t := range tasks {
		doc := TaskDoc{Task: t, Vocab: Keywords(t.Title)}
		doc.Comments = byTask[t.ID]
		sort.Slice(doc.Comments, func(i, j int) bool {
			a, b := doc.Comments[i], doc.Comments[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		})
		for _, cm := range doc.Comments {
			union(doc.Vocab, Keywords(cm.Body))
		}
		c.Tasks = append(c.Tasks, doc)
	}

	sort.Slice(c.Tasks, func(i, j int) bool {
		a, b := c.Tasks[i].Task, c.Tasks[j].Task
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return c
}

// Text returns the full discourse text of a task doc: title plus comment
// bodies in thread order.
func (d TaskDoc) Text() string {
	parts := make([]string, 0, 1+len(d.Comments))
	parts = append(parts, d.Task.Title)
	for _, cm := range d.Comments {
		parts = append(parts, cm.Body)
	}
	return strings.Join(parts, "\n")
}
