package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/structural"
)

// NewTalkToCodeCommand creates the talk-to-code command.
func NewTalkToCodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "talk-to-code",
		Short: "Print the discourse-to-delivery report",
		Long: `Classify every task by its discourse-to-delivery balance and print the
aggregate report. Reads only per-task counts, never comment bodies, so it is
permitted in every seal state including the blind period. Tasks are
identified by id only.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTalkToCode(rootOpts, cmd)
		},
	}
	return cmd
}

func runTalkToCode(opts *RootOptions, cmd *cobra.Command) error {
	env, cleanup, err := openEnv(opts)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	headSeq, _, err := env.st.ChainHead(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read chain head", err)
	}
	metrics, err := env.st.TaskMetrics(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read task metrics", err)
	}

	th := structural.Thresholds{
		NewMaxAge:         time.Duration(env.cfg.Thresholds.NewMaxAgeDays) * 24 * time.Hour,
		TheoryMinComments: env.cfg.Thresholds.TheoryMinComments,
		TheoryMinAge:      time.Duration(env.cfg.Thresholds.TheoryMinAgeDays) * 24 * time.Hour,
	}
	report := structural.BuildReport(headSeq, metrics, time.Now().UTC(), th)

	return newFormatter(opts, cmd).SuccessText(structural.RenderText(report), report)
}
