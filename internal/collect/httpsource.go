package collect

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"

	"github.com/roach88/darkroom/internal/model"
)

// HTTPSourceConfig configures the platform API client.
type HTTPSourceConfig struct {
	BaseURL    string
	APIKey     string
	PageLimit  int
	Timeout    time.Duration
	MaxRetries uint64
}

// HTTPSource is the production Source: the collaboration platform's REST
// API with per-call timeouts, retry with exponential backoff on transient
// failures, and a circuit breaker so a dead API fails fast instead of
// burning the retry budget on every item.
type HTTPSource struct {
	cfg      HTTPSourceConfig
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate
}

// NewHTTPSource creates an HTTP source for the given API.
func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &HTTPSource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "platform-api",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			Timeout: 30 * time.Second,
		}),
		validate: validator.New(),
	}
}

// wireTask is the loosely-typed API shape, validated at the boundary before
// it becomes a model.Task. Optional counts default to zero.
type wireTask struct {
	ID            string    `json:"id" validate:"required"`
	Title         string    `json:"title"`
	Agent         wireAgent `json:"agent"`
	Tags          []string  `json:"tags"`
	Status        string    `json:"status"`
	UpvoteCount   int       `json:"upvote_count"`
	CommentCount  int       `json:"comment_count"`
	PRCount       int       `json:"pr_count"`
	MergedPRCount int       `json:"merged_pr_count"`
	CreatedAt     string    `json:"created_at" validate:"required"`
}

type wireAgent struct {
	Name string `json:"name"`
}

type wireComment struct {
	ID        string `json:"id" validate:"required"`
	TaskID    string `json:"task_id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at" validate:"required"`
}

// ListTasks fetches the recent task list.
func (s *HTTPSource) ListTasks(ctx context.Context) ([]TaskSummary, error) {
	url := fmt.Sprintf("%s/tasks?limit=%d&sort=recent", s.cfg.BaseURL, s.cfg.PageLimit)
	body, err := s.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("list tasks: empty response")
	}

	var resp struct {
		Tasks []TaskSummary `json:"tasks"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("list tasks: decode: %w", err)
	}
	return resp.Tasks, nil
}

// GetTaskDetail fetches one task. Returns (nil, nil) when the platform has
// nothing for the id: the caller treats that as a soft failure.
func (s *HTTPSource) GetTaskDetail(ctx context.Context, id string) (*model.Task, error) {
	body, err := s.get(ctx, fmt.Sprintf("%s/tasks/%s", s.cfg.BaseURL, id))
	if err != nil {
		return nil, fmt.Errorf("task detail %s: %w", id, err)
	}
	if body == nil {
		return nil, nil
	}

	var resp struct {
		Task *wireTask `json:"task"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("task detail %s: decode: %w", id, err)
	}
	if resp.Task == nil {
		return nil, nil
	}
	if err := s.validate.Struct(resp.Task); err != nil {
		// Malformed responses are soft failures, never structural panics.
		return nil, nil
	}

	created, err := time.Parse(time.RFC3339, resp.Task.CreatedAt)
	if err != nil {
		return nil, nil
	}
	return &model.Task{
		ID:               resp.Task.ID,
		Title:            resp.Task.Title,
		Agent:            resp.Task.Agent.Name,
		Tags:             resp.Task.Tags,
		Status:           resp.Task.Status,
		UpvoteCount:      resp.Task.UpvoteCount,
		CommentCount:     resp.Task.CommentCount,
		DeliverableCount: resp.Task.PRCount,
		MergedCount:      resp.Task.MergedPRCount,
		CreatedAt:        created.UTC(),
	}, nil
}

// ListComments fetches the comments on one task.
func (s *HTTPSource) ListComments(ctx context.Context, taskID string) ([]model.Comment, error) {
	body, err := s.get(ctx, fmt.Sprintf("%s/tasks/%s/comments", s.cfg.BaseURL, taskID))
	if err != nil {
		return nil, fmt.Errorf("comments for %s: %w", taskID, err)
	}
	if body == nil {
		return []model.Comment{}, nil
	}

	var resp struct {
		Comments []wireComment `json:"comments"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("comments for %s: decode: %w", taskID, err)
	}

	comments := make([]model.Comment, 0, len(resp.Comments))
	for _, c := range resp.Comments {
		if err := s.validate.Struct(c); err != nil {
			continue
		}
		created, err := time.Parse(time.RFC3339, c.CreatedAt)
		if err != nil {
			continue
		}
		taskRef := c.TaskID
		if taskRef == "" {
			taskRef = taskID
		}
		comments = append(comments, model.Comment{
			ID:        c.ID,
			TaskID:    taskRef,
			Author:    c.Author,
			Body:      c.Body,
			CreatedAt: created.UTC(),
		})
	}
	return comments, nil
}

// get performs one GET with retry-with-backoff behind the circuit breaker.
// Returns (nil, nil) on 404 so callers can treat missing data as a soft
// failure. Non-2xx statuses other than 404/429/5xx are permanent failures.
func (s *HTTPSource) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		result, err := s.breaker.Execute(func() (any, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			if s.cfg.APIKey != "" {
				req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
			}

			resp, err := s.client.Do(req)
			if err != nil {
				return nil, err // Transient: retry
			}
			defer resp.Body.Close()

			switch {
			case resp.StatusCode == http.StatusNotFound:
				return []byte(nil), nil
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return nil, fmt.Errorf("status %d", resp.StatusCode) // Transient: retry
			case resp.StatusCode != http.StatusOK:
				return nil, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
			}
			return io.ReadAll(resp.Body)
		})
		if err != nil {
			return err
		}
		body, _ = result.([]byte)
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.cfg.MaxRetries), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return body, nil
}
