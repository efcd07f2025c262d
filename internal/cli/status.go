package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/seal"
	"github.com/roach88/darkroom/internal/store"
)

// StatusData is the status command's payload. Counts only, never content.
type StatusData struct {
	State         string `json:"state"`
	SnapshotCount int    `json:"snapshot_count"`
	HeadSeq       int64  `json:"head_seq"`
	HeadHash      string `json:"head_hash,omitempty"`
	TaskCount     int    `json:"task_count"`
	CommentCount  int    `json:"comment_count"`
	SoftFailures  int    `json:"soft_failures"`

	ProtocolCount  int  `json:"protocol_count"`
	RegistryFrozen bool `json:"registry_frozen"`

	TargetUnlockAt string `json:"target_unlock_at,omitempty"`
	DaysRemaining  int    `json:"days_remaining,omitempty"`
	UnlockedAt     string `json:"unlocked_at,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "status",
		Short:         "Report chain position and seal state",
		Long:          "Report snapshot counts, seal state, and registry state.\nReads metadata only; semantic content stays sealed.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	env, cleanup, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	state, err := env.seals.State(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read seal state", err)
	}

	metas, err := env.st.SnapshotMetas(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read snapshots", err)
	}
	defs, err := env.registry.Definitions(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read protocol registry", err)
	}
	frozen, _, err := env.st.RegistryState(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read registry state", err)
	}
	tasks, err := env.st.TaskMetrics(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read task metrics", err)
	}

	data := StatusData{
		State:          string(state),
		SnapshotCount:  len(metas),
		TaskCount:      len(tasks),
		ProtocolCount:  len(defs),
		RegistryFrozen: frozen,
	}
	for _, meta := range metas {
		data.SoftFailures += meta.SoftFailures
		if meta.Seq > data.HeadSeq {
			data.HeadSeq = meta.Seq
			data.HeadHash = meta.ContentHash
			data.CommentCount = meta.CommentCount
		}
	}

	rec, err := env.seals.Record(ctx)
	switch {
	case errors.Is(err, store.ErrNoSealRecord):
		// Still collecting.
	case err != nil:
		return WrapExitError(ExitFailure, "failed to read seal record", err)
	default:
		data.TargetUnlockAt = rec.TargetUnlockAt.Format(time.RFC3339)
		if rec.Unlocked() {
			data.UnlockedAt = rec.UnlockedAt.Format(time.RFC3339)
		} else {
			data.DaysRemaining = daysUntil(time.Now().UTC(), rec.TargetUnlockAt)
		}
	}

	return newFormatter(opts, cmd).SuccessText(renderStatus(data), data)
}

// daysUntil rounds the remaining duration up to whole days, never below 0.
func daysUntil(now, target time.Time) int {
	remaining := target.Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func renderStatus(d StatusData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "State:      %s\n", d.State)
	fmt.Fprintf(&b, "Snapshots:  %d", d.SnapshotCount)
	if d.SnapshotCount > 0 {
		fmt.Fprintf(&b, " (head seq %d, hash %s)", d.HeadSeq, shortHash(d.HeadHash))
	}
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "Tasks:      %d\n", d.TaskCount)
	fmt.Fprintf(&b, "Comments:   %d (latest snapshot)\n", d.CommentCount)
	if d.SoftFailures > 0 {
		fmt.Fprintf(&b, "Soft failures: %d\n", d.SoftFailures)
	}
	fmt.Fprintf(&b, "Protocols:  %d registered", d.ProtocolCount)
	if d.RegistryFrozen {
		fmt.Fprintf(&b, ", frozen")
	}
	fmt.Fprintf(&b, "\n")

	switch {
	case d.UnlockedAt != "":
		fmt.Fprintf(&b, "Unlocked:   %s\n", d.UnlockedAt)
	case d.TargetUnlockAt != "":
		fmt.Fprintf(&b, "Sealed until %s (%d day(s) remaining)\n", d.TargetUnlockAt, d.DaysRemaining)
	}
	return b.String()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// remainingDays is shared by unlock's TooEarly reporting.
func remainingDays(err *seal.TooEarlyError) int {
	return daysUntil(err.Now, err.Target)
}
