package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/collect"
)

// CollectOptions holds flags for the collect command.
type CollectOptions struct {
	*RootOptions
	Every time.Duration

	// Source overrides the platform API source (for testing). If nil, an
	// HTTP source is built from the configuration.
	Source collect.Source
}

// NewCollectCommand creates the collect command.
func NewCollectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CollectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Pull one snapshot from the platform",
		Long: `Pull the current task list and comments from the collaboration platform
and append one snapshot to the hash chain.

With --every the command keeps running and collects once per interval until
interrupted. Appends are legal in every seal state; they never read stored
content.

Example:
  darkroom collect --db ./darkroom.db
  darkroom collect --db ./darkroom.db --every 1h`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Every, "every", 0, "collect repeatedly at this interval")

	return cmd
}

func runCollect(opts *CollectOptions, cmd *cobra.Command) error {
	env, cleanup, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	src := opts.Source
	if src == nil {
		src = collect.NewHTTPSource(collect.HTTPSourceConfig{
			BaseURL:    env.cfg.Platform.BaseURL,
			APIKey:     env.cfg.Platform.APIKey,
			PageLimit:  env.cfg.Platform.PageLimit,
			Timeout:    env.cfg.Platform.Timeout.Std(),
			MaxRetries: env.cfg.Platform.MaxRetries,
		})
	}
	collector := collect.NewCollector(env.st, src, nil, nil)
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Every > 0 {
		return runCollectLoop(opts, cmd, collector)
	}

	result, err := collector.Collect(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "collection failed", err)
	}

	text := fmt.Sprintf("Snapshot %d appended (%d tasks, %d comments, %d soft failures)\nChain hash: %s\n",
		result.Seq, result.TaskCount, result.CommentCount, result.SoftFailures, result.ContentHash)
	return formatter.SuccessText(text, result)
}

// runCollectLoop collects on a ticker until interrupted.
func runCollectLoop(opts *CollectOptions, cmd *cobra.Command, collector *collect.Collector) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	scheduler, stop := collect.Every(collector, opts.Every, nil)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Collecting every %s. Press Ctrl-C to stop.\n", opts.Every)
	if err := scheduler.Run(ctx); err != nil && err != context.Canceled {
		return WrapExitError(ExitFailure, "collection loop failed", err)
	}
	return nil
}
