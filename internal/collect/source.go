// Package collect pulls task and comment data from the collaboration
// platform and appends it to the snapshot store.
//
// The platform client is an external collaborator behind the Source
// interface. A missing detail response is an expected failure mode
// (permissions, rate limit, API drift) and is handled as a soft failure:
// the item is skipped and logged, the rest of the batch continues.
package collect

import (
	"context"
	"errors"

	"github.com/roach88/darkroom/internal/model"
)

// ErrCollectionInProgress is returned when a collection is invoked while
// another one is still appending. Callers may retry later.
var ErrCollectionInProgress = errors.New("collection already in progress")

// TaskSummary is the list-endpoint view of a task.
type TaskSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Source fetches discourse data from the collaboration platform.
//
// GetTaskDetail returns (nil, nil) when the platform has no data for the
// task; that is a recognized soft failure, not an error.
type Source interface {
	ListTasks(ctx context.Context) ([]TaskSummary, error)
	GetTaskDetail(ctx context.Context, id string) (*model.Task, error)
	ListComments(ctx context.Context, taskID string) ([]model.Comment, error)
}
