// Package structural computes the talk-to-code metrics: count-based ratios
// of discourse to delivery.
//
// The engine reads only task metric counts (comments, deliverables, merge
// state, age), never titles or comment bodies, and is therefore callable in
// every seal state including the blind period.
package structural

import (
	"math"
	"time"

	"github.com/roach88/darkroom/internal/model"
)

// Category classifies one task's discourse/delivery balance.
type Category string

const (
	CategoryNew      Category = "NEW"
	CategoryAllTalk  Category = "ALL_TALK"
	CategoryBuilding Category = "BUILDING"
	CategoryShipped  Category = "SHIPPED"
	CategoryTheory   Category = "THEORY"

	// CategoryDormant is the residual bucket: no activity at all and too
	// old to still count as NEW.
	CategoryDormant Category = "DORMANT"
)

// Thresholds configures classification boundaries.
type Thresholds struct {
	// NewMaxAge is the maximum age for a task with no activity to count
	// as NEW.
	NewMaxAge time.Duration

	// TheoryMinComments is the comment count at which sustained
	// discussion without delivery becomes THEORY.
	TheoryMinComments int

	// TheoryMinAge is the minimum age for THEORY.
	TheoryMinAge time.Duration
}

// DefaultThresholds are the values used by the CLI unless configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NewMaxAge:         7 * 24 * time.Hour,
		TheoryMinComments: 10,
		TheoryMinAge:      14 * 24 * time.Hour,
	}
}

// Classify assigns a task to exactly one category.
//
// Delivery beats discourse: SHIPPED and BUILDING are checked first. Among
// the no-delivery categories THEORY is checked before ALL_TALK because it is
// the stricter predicate (ALL_TALK would otherwise shadow it completely).
func Classify(m model.TaskMetrics, now time.Time, th Thresholds) Category {
	age := now.Sub(m.CreatedAt)

	switch {
	case m.MergedCount > 0:
		return CategoryShipped
	case m.DeliverableCount > 0:
		return CategoryBuilding
	case m.CommentCount >= th.TheoryMinComments && age >= th.TheoryMinAge:
		return CategoryTheory
	case m.CommentCount > 0:
		return CategoryAllTalk
	case age < th.NewMaxAge:
		return CategoryNew
	default:
		return CategoryDormant
	}
}

// Ratio returns comments per deliverable. A task with comments but no
// deliverables is pure discourse and reports +Inf; a task with neither
// reports 0.
func Ratio(m model.TaskMetrics) float64 {
	if m.DeliverableCount == 0 {
		if m.CommentCount > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return float64(m.CommentCount) / float64(m.DeliverableCount)
}
