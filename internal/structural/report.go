package structural

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/roach88/darkroom/internal/model"
)

// TaskRow is the per-task line of a report. It carries the task id, never
// the title, so the report stays legal during the blind period.
type TaskRow struct {
	TaskID           string   `json:"task_id"`
	Category         Category `json:"category"`
	CommentCount     int      `json:"comment_count"`
	DeliverableCount int      `json:"deliverable_count"`
	MergedCount      int      `json:"merged_count"`

	// Ratio is comments per deliverable, rendered as a string because
	// +Inf has no JSON representation.
	Ratio string `json:"ratio"`

	ratio float64
}

// Report is the aggregate talk-to-code view of one snapshot.
type Report struct {
	SnapshotSeq    int64            `json:"snapshot_seq"`
	GeneratedAt    time.Time        `json:"generated_at"`
	TaskCount      int              `json:"task_count"`
	TotalComments  int              `json:"total_comments"`
	TotalDelivered int              `json:"total_delivered"`
	TotalMerged    int              `json:"total_merged"`
	OverallRatio   string           `json:"overall_ratio"`
	ShippedShare   string           `json:"shipped_share"`
	Categories     map[Category]int `json:"categories"`
	Tasks          []TaskRow        `json:"tasks"`
	Insights       []string         `json:"insights"`
}

// BuildReport classifies every task and aggregates the snapshot-wide view.
// Rows are ordered by ratio descending, pure-discourse tasks first, ties
// broken by task id so the output is deterministic.
func BuildReport(seq int64, metrics []model.TaskMetrics, now time.Time, th Thresholds) Report {
	rep := Report{
		SnapshotSeq: seq,
		GeneratedAt: now.UTC(),
		TaskCount:   len(metrics),
		Categories:  map[Category]int{},
	}

	withDeliverables := 0
	for _, m := range metrics {
		cat := Classify(m, now, th)
		ratio := Ratio(m)

		rep.TotalComments += m.CommentCount
		rep.TotalDelivered += m.DeliverableCount
		rep.TotalMerged += m.MergedCount
		rep.Categories[cat]++
		if m.DeliverableCount > 0 {
			withDeliverables++
		}

		rep.Tasks = append(rep.Tasks, TaskRow{
			TaskID:           m.TaskID,
			Category:         cat,
			CommentCount:     m.CommentCount,
			DeliverableCount: m.DeliverableCount,
			MergedCount:      m.MergedCount,
			Ratio:            formatRatio(ratio),
			ratio:            ratio,
		})
	}

	sort.Slice(rep.Tasks, func(i, j int) bool {
		a, b := rep.Tasks[i], rep.Tasks[j]
		if a.ratio != b.ratio {
			return greaterRatio(a.ratio, b.ratio)
		}
		if a.CommentCount != b.CommentCount {
			return a.CommentCount > b.CommentCount
		}
		return a.TaskID < b.TaskID
	})

	overall := math.NaN()
	if rep.TotalDelivered > 0 {
		overall = float64(rep.TotalComments) / float64(rep.TotalDelivered)
	} else if rep.TotalComments > 0 {
		overall = math.Inf(1)
	} else {
		overall = 0
	}
	rep.OverallRatio = formatRatio(overall)
	rep.ShippedShare = formatShare(withDeliverables, len(metrics))
	rep.Insights = buildInsights(rep, withDeliverables)

	return rep
}

// greaterRatio orders ratios descending with +Inf ahead of every finite
// value. Direct > comparison already does that for floats, but NaN (which
// formatRatio never emits for stored rows) would silently sort last, so the
// cases stay explicit.
func greaterRatio(a, b float64) bool {
	switch {
	case math.IsInf(a, 1):
		return !math.IsInf(b, 1)
	case math.IsInf(b, 1):
		return false
	default:
		return a > b
	}
}

func formatRatio(r float64) string {
	switch {
	case math.IsInf(r, 1):
		return "inf"
	case math.IsNaN(r):
		return "n/a"
	default:
		return fmt.Sprintf("%.2f", r)
	}
}

func formatShare(part, whole int) string {
	if whole == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(part)/float64(whole))
}

func buildInsights(rep Report, withDeliverables int) []string {
	var out []string

	if rep.TaskCount == 0 {
		return []string{"no tasks in snapshot"}
	}

	allTalk := rep.Categories[CategoryAllTalk] + rep.Categories[CategoryTheory]
	if allTalk > rep.TaskCount/2 {
		out = append(out, fmt.Sprintf(
			"%d of %d tasks are all discussion with nothing delivered", allTalk, rep.TaskCount))
	}
	if rep.Categories[CategoryShipped] > 0 {
		out = append(out, fmt.Sprintf(
			"%d task(s) shipped merged work", rep.Categories[CategoryShipped]))
	}
	if withDeliverables == 0 {
		out = append(out, "no task has produced a deliverable yet")
	}
	if rep.Categories[CategoryTheory] > 0 {
		out = append(out, fmt.Sprintf(
			"%d long-running discussion(s) with no delivery", rep.Categories[CategoryTheory]))
	}
	if len(out) == 0 {
		out = append(out, "activity is balanced between discussion and delivery")
	}
	return out
}

// RenderText formats the report for terminal output. Deterministic for a
// given report.
func RenderText(rep Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Talk-to-code report for snapshot %d\n", rep.SnapshotSeq)
	fmt.Fprintf(&b, "Generated %s\n\n", rep.GeneratedAt.Format(time.RFC3339))

	fmt.Fprintf(&b, "Tasks:        %d\n", rep.TaskCount)
	fmt.Fprintf(&b, "Comments:     %d\n", rep.TotalComments)
	fmt.Fprintf(&b, "Deliverables: %d (%d merged)\n", rep.TotalDelivered, rep.TotalMerged)
	fmt.Fprintf(&b, "Overall ratio:   %s comments per deliverable\n", rep.OverallRatio)
	fmt.Fprintf(&b, "Delivering:      %s of tasks\n\n", rep.ShippedShare)

	fmt.Fprintf(&b, "By category:\n")
	for _, cat := range []Category{
		CategoryShipped, CategoryBuilding, CategoryTheory,
		CategoryAllTalk, CategoryNew, CategoryDormant,
	} {
		if n := rep.Categories[cat]; n > 0 {
			fmt.Fprintf(&b, "  %-9s %d\n", cat, n)
		}
	}

	fmt.Fprintf(&b, "\n%-12s %-9s %9s %6s %7s\n", "TASK", "CATEGORY", "COMMENTS", "DELIV", "RATIO")
	for _, row := range rep.Tasks {
		fmt.Fprintf(&b, "%-12s %-9s %9d %6d %7s\n",
			row.TaskID, row.Category, row.CommentCount, row.DeliverableCount, row.Ratio)
	}

	fmt.Fprintf(&b, "\nInsights:\n")
	for _, line := range rep.Insights {
		fmt.Fprintf(&b, "  - %s\n", line)
	}

	return b.String()
}
