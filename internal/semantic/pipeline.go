package semantic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/darkroom/internal/model"
	"github.com/roach88/darkroom/internal/seal"
	"github.com/roach88/darkroom/internal/store"
)

// DefinitionSource yields the frozen protocol set and its freeze hash,
// enforcing the unlock precondition. Implemented by protocol.Registry.
type DefinitionSource interface {
	FrozenDefinitions(ctx context.Context) ([]model.ProtocolDefinition, string, error)
}

// SealSource yields the seal record. Implemented by seal.Manager.
type SealSource interface {
	Record(ctx context.Context) (model.SealRecord, error)
}

// Pipeline runs every frozen protocol over the sealed snapshot prefix and
// appends one immutable AnalysisRun. Re-running appends a new run with a new
// id; nothing is recomputed in place.
type Pipeline struct {
	st       *store.Store
	defs     DefinitionSource
	seals    SealSource
	embedder Embedder
	scorer   Scorer
	clock    seal.Clock
	log      *slog.Logger
}

// NewPipeline creates a pipeline. Embedder and scorer may be nil; the
// metrics then run on the keyword layer alone.
func NewPipeline(st *store.Store, defs DefinitionSource, seals SealSource, embedder Embedder, scorer Scorer, clock seal.Clock, log *slog.Logger) *Pipeline {
	if clock == nil {
		clock = seal.SystemClock{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		st:       st,
		defs:     defs,
		seals:    seals,
		embedder: embedder,
		scorer:   scorer,
		clock:    clock,
		log:      log,
	}
}

// Run computes one result per frozen definition, in parallel, over the
// sealed prefix. Fails before touching content unless the registry reports
// the set frozen and the seal unlocked.
func (p *Pipeline) Run(ctx context.Context) (model.AnalysisRun, error) {
	defs, freezeHash, err := p.defs.FrozenDefinitions(ctx)
	if err != nil {
		return model.AnalysisRun{}, fmt.Errorf("analyze: %w", err)
	}

	rec, err := p.seals.Record(ctx)
	if err != nil {
		return model.AnalysisRun{}, fmt.Errorf("analyze: %w", err)
	}

	snaps, err := p.st.ReadSnapshotRange(ctx, 1, rec.SealedPrefixSeq)
	if err != nil {
		return model.AnalysisRun{}, fmt.Errorf("analyze: %w", err)
	}
	corpus := BuildCorpus(snaps)
	p.log.Info("analysis corpus built",
		"snapshots", len(corpus.Snapshots),
		"tasks", len(corpus.Tasks),
		"definitions", len(defs),
	)

	results := make([]model.AnalysisResult, len(defs))
	g, gctx := errgroup.WithContext(ctx)
	for i, def := range defs {
		g.Go(func() error {
			payload, err := computeMetric(gctx, corpus, def, p.embedder, p.scorer, p.log)
			if err != nil {
				return err
			}
			results[i] = model.AnalysisResult{
				Kind:           def.Kind,
				DefinitionHash: def.DefinitionHash,
				Payload:        payload,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.AnalysisRun{}, fmt.Errorf("analyze: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return model.AnalysisRun{}, fmt.Errorf("analyze: run id: %w", err)
	}
	run := model.AnalysisRun{
		RunID:              id.String(),
		ExecutedAt:         p.clock.Now().UTC(),
		ProtocolFreezeHash: freezeHash,
		Results:            results,
	}
	if err := p.st.AppendAnalysisRun(ctx, run); err != nil {
		return model.AnalysisRun{}, err
	}

	p.log.Info("analysis run appended", "run_id", run.RunID, "results", len(run.Results))
	return run, nil
}
