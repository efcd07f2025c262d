// Package testutil provides shared test fixtures: a manual wall clock and
// snapshot payload builders.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/darkroom/internal/model"
)

// ManualClock is a thread-safe, manually advanced wall clock for tests.
//
// Unlike the production clock it only moves when told to, which makes
// time-gated transitions (seal target times, scheduler ticks)
// deterministically testable.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock pinned at the given instant.
func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now.UTC()}
}

// Now returns the current pinned instant.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to a specific instant.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// Payload builds a small snapshot payload with n tasks, each carrying one
// comment, anchored at base time.
func Payload(n int, base time.Time) model.SnapshotPayload {
	p := model.SnapshotPayload{}
	for i := 0; i < n; i++ {
		id := taskID(i)
		p.Tasks = append(p.Tasks, model.Task{
			ID:           id,
			Title:        "task " + id,
			Agent:        "echo",
			Tags:         []string{"test"},
			Status:       "open",
			CommentCount: 1,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		p.Comments = append(p.Comments, model.Comment{
			ID:        "c-" + id,
			TaskID:    id,
			Author:    "echo",
			Body:      "comment on " + id,
			CreatedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
		})
	}
	return p
}

func taskID(i int) string {
	return fmt.Sprintf("t-%03d", i)
}
