package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/seal"
)

// UnlockData is the unlock command's payload.
type UnlockData struct {
	State         string `json:"state"`
	UnlockedAt    string `json:"unlocked_at,omitempty"`
	DaysRemaining int    `json:"days_remaining,omitempty"`
}

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Attempt the one-way unlock transition",
		Long: `Attempt the SEALED to UNLOCKED transition.

Before the target time this reports the remaining blind period and exits
with code 2, changing nothing; it is safe to invoke on a schedule. At or
after the target time the sealed chain prefix is re-verified against the
hash recorded at seal time before content access opens. Once unlocked,
further calls succeed without side effects.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(rootOpts, cmd)
		},
	}
	return cmd
}

func runUnlock(opts *RootOptions, cmd *cobra.Command) error {
	env, cleanup, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	formatter := newFormatter(opts, cmd)
	rec, err := env.seals.AttemptUnlock(cmd.Context())

	var tooEarly *seal.TooEarlyError
	var violation *seal.IntegrityViolationError
	switch {
	case err == nil:
		data := UnlockData{
			State:      string(seal.StateUnlocked),
			UnlockedAt: rec.UnlockedAt.Format(time.RFC3339),
		}
		text := fmt.Sprintf("UNLOCKED at %s\n", data.UnlockedAt)
		return formatter.SuccessText(text, data)

	case errors.As(err, &tooEarly):
		days := remainingDays(tooEarly)
		formatter.Error("E_TOO_EARLY",
			fmt.Sprintf("still sealed: %d day(s) until %s", days, tooEarly.Target.Format(time.RFC3339)),
			UnlockData{State: string(seal.StateSealed), DaysRemaining: days})
		return WrapExitError(ExitTooEarly, "too early to unlock", err)

	case errors.As(err, &violation):
		formatter.Error("E_INTEGRITY", err.Error(), nil)
		return WrapExitError(ExitFailure, "chain integrity violation", err)

	case errors.Is(err, seal.ErrNotSealed):
		return WrapExitError(ExitFailure, "not sealed", err)

	default:
		return WrapExitError(ExitFailure, "unlock failed", err)
	}
}
