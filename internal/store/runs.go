package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/darkroom/internal/model"
)

// AppendAnalysisRun writes one immutable analysis run and its results.
// Runs are never updated; re-running analysis appends a new run.
func (s *Store) AppendAnalysisRun(ctx context.Context, run model.AnalysisRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append analysis run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (run_id, executed_at, protocol_freeze_hash)
		VALUES (?, ?, ?)
	`,
		run.RunID,
		formatStoredTime(run.ExecutedAt),
		run.ProtocolFreezeHash,
	)
	if err != nil {
		return fmt.Errorf("append analysis run: insert run: %w", err)
	}

	for i, res := range run.Results {
		payload, err := json.Marshal(res.Payload)
		if err != nil {
			return fmt.Errorf("append analysis run: marshal result %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO analysis_results (run_id, position, metric_kind, definition_hash, payload)
			VALUES (?, ?, ?, ?, ?)
		`,
			run.RunID,
			i+1,
			string(res.Kind),
			res.DefinitionHash,
			string(payload),
		)
		if err != nil {
			return fmt.Errorf("append analysis run: insert result %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append analysis run: commit: %w", err)
	}
	return nil
}

// ReadAnalysisRuns returns every run with its results, oldest first.
// Result payloads can quote comment text, so this is a content read.
func (s *Store) ReadAnalysisRuns(ctx context.Context) ([]model.AnalysisRun, error) {
	if err := s.checkContentRead(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, executed_at, protocol_freeze_hash
		FROM analysis_runs
		ORDER BY executed_at ASC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read analysis runs: %w", err)
	}
	defer rows.Close()

	runs := []model.AnalysisRun{}
	for rows.Next() {
		var (
			run        model.AnalysisRun
			executedAt string
		)
		if err := rows.Scan(&run.RunID, &executedAt, &run.ProtocolFreezeHash); err != nil {
			return nil, fmt.Errorf("scan analysis run: %w", err)
		}
		if run.ExecutedAt, err = parseStoredTime(executedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis runs: %w", err)
	}

	for i := range runs {
		results, err := s.readRunResults(ctx, runs[i].RunID)
		if err != nil {
			return nil, err
		}
		runs[i].Results = results
	}
	return runs, nil
}

func (s *Store) readRunResults(ctx context.Context, runID string) ([]model.AnalysisResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT metric_kind, definition_hash, payload
		FROM analysis_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read run results: %w", err)
	}
	defer rows.Close()

	results := []model.AnalysisResult{}
	for rows.Next() {
		var (
			res     model.AnalysisResult
			kind    string
			payload string
		)
		if err := rows.Scan(&kind, &res.DefinitionHash, &payload); err != nil {
			return nil, fmt.Errorf("scan run result: %w", err)
		}
		res.Kind = model.MetricKind(kind)
		if err := json.Unmarshal([]byte(payload), &res.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal result payload: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run results: %w", err)
	}
	return results, nil
}
