package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/darkroom/internal/protocol"
	"github.com/roach88/darkroom/internal/seal"
	"github.com/roach88/darkroom/internal/semantic"
)

// AnalyzeData is the analyze command's payload.
type AnalyzeData struct {
	RunID              string          `json:"run_id"`
	ExecutedAt         string          `json:"executed_at"`
	ProtocolFreezeHash string          `json:"protocol_freeze_hash"`
	Results            []AnalyzeResult `json:"results"`
}

// AnalyzeResult summarizes one metric's result.
type AnalyzeResult struct {
	Kind           string `json:"metric_kind"`
	DefinitionHash string `json:"definition_hash"`
}

// AnalyzeOptions holds flags and test overrides for the analyze command.
type AnalyzeOptions struct {
	*RootOptions

	// Embedder and Scorer override the OpenAI collaborators (for testing).
	Embedder semantic.Embedder
	Scorer   semantic.Scorer
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AnalyzeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the frozen protocols over the sealed prefix",
		Long: `Run every frozen protocol definition over the sealed snapshot prefix and
append one immutable analysis run. Requires the UNLOCKED state; before that
the command fails without reading any content.

With an OpenAI API key configured, embedding and surprise scoring use the
model collaborators; otherwise the metrics run on the keyword layer alone.
Re-running appends a new run; prior runs are never recomputed.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(opts, cmd)
		},
	}
	return cmd
}

func runAnalyze(opts *AnalyzeOptions, cmd *cobra.Command) error {
	env, cleanup, err := openEnv(opts.RootOptions)
	if err != nil {
		return err
	}
	defer cleanup()

	embedder, scorer := opts.Embedder, opts.Scorer
	if embedder == nil && env.cfg.OpenAI.APIKey != "" {
		client, err := semantic.NewOpenAIClient(
			env.cfg.OpenAI.APIKey, env.cfg.OpenAI.EmbedModel, env.cfg.OpenAI.ChatModel, nil)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to build OpenAI client", err)
		}
		embedder, scorer = client, client
	}

	pipeline := semantic.NewPipeline(env.st, env.registry, env.seals, embedder, scorer, nil, nil)
	run, err := pipeline.Run(cmd.Context())
	switch {
	case errors.Is(err, seal.ErrSealedAccessDenied):
		return WrapExitError(ExitFailure, "analysis requires the UNLOCKED state", err)
	case errors.Is(err, protocol.ErrRegistryNotFrozen):
		return WrapExitError(ExitFailure, "protocol registry was never frozen", err)
	case err != nil:
		return WrapExitError(ExitFailure, "analysis failed", err)
	}

	data := AnalyzeData{
		RunID:              run.RunID,
		ExecutedAt:         run.ExecutedAt.Format(time.RFC3339),
		ProtocolFreezeHash: run.ProtocolFreezeHash,
	}
	for _, res := range run.Results {
		data.Results = append(data.Results, AnalyzeResult{
			Kind:           string(res.Kind),
			DefinitionHash: res.DefinitionHash,
		})
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis run %s (%d result(s))\n", data.RunID, len(data.Results))
	fmt.Fprintf(&b, "Protocol freeze hash: %s\n", shortHash(data.ProtocolFreezeHash))
	for _, res := range data.Results {
		fmt.Fprintf(&b, "  %-24s %s\n", res.Kind, shortHash(res.DefinitionHash))
	}
	return newFormatter(opts.RootOptions, cmd).SuccessText(b.String(), data)
}
