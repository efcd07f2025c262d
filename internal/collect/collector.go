package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/darkroom/internal/model"
	"github.com/roach88/darkroom/internal/seal"
	"github.com/roach88/darkroom/internal/store"
)

// Result summarizes one collection pull. It carries counts and chain
// position only, never content.
type Result struct {
	Seq          int64  `json:"seq"`
	ContentHash  string `json:"content_hash"`
	TaskCount    int    `json:"task_count"`
	CommentCount int    `json:"comment_count"`
	SoftFailures int    `json:"soft_failures"`
}

// Collector performs one snapshot append per invocation.
//
// Single-writer discipline: only one collection may be in flight. A second
// concurrent invocation is rejected with ErrCollectionInProgress rather than
// queued, so a slow pull can never stack up appends.
type Collector struct {
	st    *store.Store
	src   Source
	clock seal.Clock
	log   *slog.Logger

	mu sync.Mutex
}

// NewCollector creates a collector over the given store and source.
func NewCollector(st *store.Store, src Source, clock seal.Clock, log *slog.Logger) *Collector {
	if clock == nil {
		clock = seal.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Collector{st: st, src: src, clock: clock, log: log}
}

// Collect pulls the current task list, fetches details and comments per
// task, and appends one snapshot.
//
// Per-item failures are soft: a task whose detail fetch fails or comes back
// empty is skipped and logged, a task whose comments cannot be fetched keeps
// its detail, and in every case the rest of the batch continues. Only a
// failure to list tasks at all aborts the pull.
func (c *Collector) Collect(ctx context.Context) (Result, error) {
	if !c.mu.TryLock() {
		return Result{}, ErrCollectionInProgress
	}
	defer c.mu.Unlock()

	summaries, err := c.src.ListTasks(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("collect: %w", err)
	}
	c.log.Info("fetched task list", "tasks", len(summaries))

	payload := model.SnapshotPayload{
		Tasks:    []model.Task{},
		Comments: []model.Comment{},
	}
	softFailures := 0

	for _, summary := range summaries {
		task, err := c.src.GetTaskDetail(ctx, summary.ID)
		if err != nil {
			softFailures++
			c.log.Warn("detail fetch failed, skipping task",
				"task_id", summary.ID, "error", err)
			continue
		}
		if task == nil {
			softFailures++
			c.log.Warn("no detail for task, skipping", "task_id", summary.ID)
			continue
		}
		payload.Tasks = append(payload.Tasks, *task)

		comments, err := c.src.ListComments(ctx, task.ID)
		if err != nil {
			softFailures++
			c.log.Warn("comments unavailable, keeping task without them",
				"task_id", task.ID, "error", err)
			continue
		}
		payload.Comments = append(payload.Comments, comments...)
	}

	snap, err := c.st.AppendSnapshot(ctx, payload, c.clock.Now(), softFailures)
	if err != nil {
		return Result{}, fmt.Errorf("collect: %w", err)
	}

	c.log.Info("snapshot appended",
		"seq", snap.Seq,
		"tasks", len(payload.Tasks),
		"comments", len(payload.Comments),
		"soft_failures", softFailures,
	)

	return Result{
		Seq:          snap.Seq,
		ContentHash:  snap.ContentHash,
		TaskCount:    len(payload.Tasks),
		CommentCount: len(payload.Comments),
		SoftFailures: softFailures,
	}, nil
}
