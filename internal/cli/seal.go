package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/seal"
)

// SealData is the seal command's payload.
type SealData struct {
	TargetUnlockAt     string `json:"target_unlock_at"`
	ChainHashAtSeal    string `json:"chain_hash_at_seal"`
	SealedPrefixSeq    int64  `json:"sealed_prefix_seq"`
	ProtocolFreezeHash string `json:"protocol_freeze_hash"`
}

// NewSealCommand creates the seal command.
func NewSealCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal <target_unlock_at>",
		Short: "Seal collection until the target time",
		Long: `Create the seal record and freeze the protocol registry.

The target is an RFC 3339 timestamp or a duration from now (e.g. 720h).
Sealing is one-way: content reads are denied until a successful unlock at or
after the target time. Collection may continue; snapshots appended after the
seal form an unanalyzed tail.

Example:
  darkroom seal 2026-04-01T00:00:00Z
  darkroom seal 720h`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeal(rootOpts, cmd, args[0])
		},
	}
	return cmd
}

func runSeal(opts *RootOptions, cmd *cobra.Command, targetArg string) error {
	target, err := parseTarget(targetArg, time.Now().UTC())
	if err != nil {
		return WrapExitError(ExitFailure, "invalid target", err)
	}

	env, cleanup, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	defs, err := env.registry.Definitions(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read protocol registry", err)
	}
	if len(defs) == 0 {
		return NewExitError(ExitFailure, "no protocols registered; sealing would freeze an empty registry (run register first)")
	}

	rec, err := env.seals.Seal(ctx, target, env.registry)
	if errors.Is(err, seal.ErrAlreadySealed) {
		return WrapExitError(ExitFailure, "already sealed", err)
	}
	if err != nil {
		return WrapExitError(ExitFailure, "seal failed", err)
	}

	data := SealData{
		TargetUnlockAt:     rec.TargetUnlockAt.Format(time.RFC3339),
		ChainHashAtSeal:    rec.ChainHashAtSeal,
		SealedPrefixSeq:    rec.SealedPrefixSeq,
		ProtocolFreezeHash: rec.ProtocolFreezeHash,
	}
	text := fmt.Sprintf("Sealed until %s\nSealed prefix: %d snapshot(s), chain hash %s\nProtocol freeze hash: %s\n",
		data.TargetUnlockAt, data.SealedPrefixSeq, shortHash(data.ChainHashAtSeal), shortHash(data.ProtocolFreezeHash))
	return newFormatter(opts, cmd).SuccessText(text, data)
}

// parseTarget accepts an RFC 3339 timestamp or a duration offset from now.
func parseTarget(arg string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, arg); err == nil {
		if !t.After(now) {
			return time.Time{}, fmt.Errorf("target %s is not in the future", arg)
		}
		return t.UTC(), nil
	}
	d, err := time.ParseDuration(arg)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is neither an RFC 3339 timestamp nor a duration", arg)
	}
	if d <= 0 {
		return time.Time{}, fmt.Errorf("duration %s is not positive", arg)
	}
	return now.Add(d), nil
}
