package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/darkroom/internal/model"
)

// payloadJSON mirrors the canonical payload layout with string timestamps.
// Used on the read side; the write side goes through model.CanonicalPayload.
type payloadJSON struct {
	SchemaVersion string        `json:"schema_version"`
	Tasks         []taskJSON    `json:"tasks"`
	Comments      []commentJSON `json:"comments"`
}

type taskJSON struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Agent            string   `json:"agent"`
	Tags             []string `json:"tags"`
	Status           string   `json:"status"`
	UpvoteCount      int      `json:"upvote_count"`
	CommentCount     int      `json:"comment_count"`
	DeliverableCount int      `json:"deliverable_count"`
	MergedCount      int      `json:"merged_count"`
	CreatedAt        string   `json:"created_at"`
}

type commentJSON struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

func unmarshalPayload(data string) (model.SnapshotPayload, error) {
	var pj payloadJSON
	if err := json.Unmarshal([]byte(data), &pj); err != nil {
		return model.SnapshotPayload{}, fmt.Errorf("unmarshal payload: %w", err)
	}

	payload := model.SnapshotPayload{
		Tasks:    make([]model.Task, len(pj.Tasks)),
		Comments: make([]model.Comment, len(pj.Comments)),
	}
	for i, t := range pj.Tasks {
		created, err := parseStoredTime(t.CreatedAt)
		if err != nil {
			return model.SnapshotPayload{}, fmt.Errorf("task %s: %w", t.ID, err)
		}
		payload.Tasks[i] = model.Task{
			ID:               t.ID,
			Title:            t.Title,
			Agent:            t.Agent,
			Tags:             t.Tags,
			Status:           t.Status,
			UpvoteCount:      t.UpvoteCount,
			CommentCount:     t.CommentCount,
			DeliverableCount: t.DeliverableCount,
			MergedCount:      t.MergedCount,
			CreatedAt:        created,
		}
	}
	for i, c := range pj.Comments {
		created, err := parseStoredTime(c.CreatedAt)
		if err != nil {
			return model.SnapshotPayload{}, fmt.Errorf("comment %s: %w", c.ID, err)
		}
		payload.Comments[i] = model.Comment{
			ID:        c.ID,
			TaskID:    c.TaskID,
			Author:    c.Author,
			Body:      c.Body,
			CreatedAt: created,
		}
	}
	return payload, nil
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func formatStoredTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// nullableTime formats a possibly-zero time for the seal record's
// unlocked_at column.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatStoredTime(t)
}
