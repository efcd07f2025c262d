package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/darkroom/internal/model"
)

// AppendSnapshot chains a new snapshot onto the log and returns it.
//
// The chain head is read and the new row written inside one transaction, so
// concurrent callers serialize into a single total order. Task metric rows
// are written in the same transaction.
func (s *Store) AppendSnapshot(ctx context.Context, payload model.SnapshotPayload, collectedAt time.Time, softFailures int) (model.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("append snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var (
		headSeq  int64
		headHash = model.GenesisHash
	)
	err = tx.QueryRowContext(ctx, `
		SELECT seq, content_hash FROM snapshots ORDER BY seq DESC LIMIT 1
	`).Scan(&headSeq, &headHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, fmt.Errorf("append snapshot: read head: %w", err)
	}

	contentHash, err := model.SnapshotHash(payload, headHash)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("append snapshot: %w", err)
	}
	canonical, err := model.CanonicalPayload(payload)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("append snapshot: %w", err)
	}

	snap := model.Snapshot{
		Seq:          headSeq + 1,
		CollectedAt:  collectedAt.UTC(),
		ContentHash:  contentHash,
		PreviousHash: headHash,
		Payload:      payload,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(seq, collected_at, content_hash, previous_hash, task_count, comment_count, soft_failures, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		snap.Seq,
		formatStoredTime(snap.CollectedAt),
		snap.ContentHash,
		snap.PreviousHash,
		len(payload.Tasks),
		len(payload.Comments),
		softFailures,
		string(canonical),
	)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("append snapshot: insert: %w", err)
	}

	for _, t := range payload.Tasks {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_metrics
			(snapshot_seq, task_id, status, comment_count, deliverable_count, merged_count, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			snap.Seq,
			t.ID,
			t.Status,
			t.CommentCount,
			t.DeliverableCount,
			t.MergedCount,
			formatStoredTime(t.CreatedAt),
		)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("append snapshot: task metrics for %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Snapshot{}, fmt.Errorf("append snapshot: commit: %w", err)
	}

	return snap, nil
}

// GetSnapshot retrieves one snapshot, payload included, by sequence number.
// This is a content read and passes the gate. Returns ErrNotFound if absent.
func (s *Store) GetSnapshot(ctx context.Context, seq int64) (model.Snapshot, error) {
	if err := s.checkContentRead(); err != nil {
		return model.Snapshot{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, collected_at, content_hash, previous_hash, payload
		FROM snapshots WHERE seq = ?
	`, seq)
	return scanSnapshot(row)
}

// GetSnapshotByHash retrieves one snapshot by content hash (gated).
func (s *Store) GetSnapshotByHash(ctx context.Context, contentHash string) (model.Snapshot, error) {
	if err := s.checkContentRead(); err != nil {
		return model.Snapshot{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, collected_at, content_hash, previous_hash, payload
		FROM snapshots WHERE content_hash = ?
	`, contentHash)
	return scanSnapshot(row)
}

// ReadSnapshotRange returns snapshots with from <= seq <= to in chain order,
// payloads included (gated). Used by the semantic pipeline over the sealed
// prefix.
func (s *Store) ReadSnapshotRange(ctx context.Context, from, to int64) ([]model.Snapshot, error) {
	if err := s.checkContentRead(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, collected_at, content_hash, previous_hash, payload
		FROM snapshots
		WHERE seq >= ? AND seq <= ?
		ORDER BY seq ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("read snapshot range: %w", err)
	}
	defer rows.Close()

	snapshots := []model.Snapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

// SnapshotMetas returns the seal-exempt view of every snapshot in chain
// order. Never touches the payload column.
func (s *Store) SnapshotMetas(ctx context.Context) ([]model.SnapshotMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, collected_at, content_hash, previous_hash, task_count, comment_count, soft_failures
		FROM snapshots
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read snapshot metas: %w", err)
	}
	defer rows.Close()

	metas := []model.SnapshotMeta{}
	for rows.Next() {
		var (
			m           model.SnapshotMeta
			collectedAt string
		)
		if err := rows.Scan(&m.Seq, &collectedAt, &m.ContentHash, &m.PreviousHash, &m.TaskCount, &m.CommentCount, &m.SoftFailures); err != nil {
			return nil, fmt.Errorf("scan snapshot meta: %w", err)
		}
		if m.CollectedAt, err = parseStoredTime(collectedAt); err != nil {
			return nil, err
		}
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot metas: %w", err)
	}
	return metas, nil
}

// ChainHead returns the sequence number and content hash of the latest
// snapshot. Returns (0, GenesisHash, nil) on an empty chain.
func (s *Store) ChainHead(ctx context.Context) (int64, string, error) {
	var (
		seq  int64
		hash = model.GenesisHash
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT seq, content_hash FROM snapshots ORDER BY seq DESC LIMIT 1
	`).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, model.GenesisHash, nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("read chain head: %w", err)
	}
	return seq, hash, nil
}

// VerifyChain recomputes every link with from <= seq <= to and reports
// whether each stored hash matches. On mismatch it returns false together
// with the first bad sequence number.
//
// Payload bytes are hashed here but never returned, so this is legal in any
// seal state and deliberately bypasses the content gate.
func (s *Store) VerifyChain(ctx context.Context, from, to int64) (bool, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, content_hash, previous_hash, payload
		FROM snapshots
		WHERE seq >= ? AND seq <= ?
		ORDER BY seq ASC
	`, from, to)
	if err != nil {
		return false, 0, fmt.Errorf("verify chain: %w", err)
	}
	defer rows.Close()

	prev := model.GenesisHash
	first := true
	for rows.Next() {
		var (
			seq                int64
			stored, storedPrev string
			payloadText        string
		)
		if err := rows.Scan(&seq, &stored, &storedPrev, &payloadText); err != nil {
			return false, 0, fmt.Errorf("verify chain: scan: %w", err)
		}

		if first && from > 1 {
			// Mid-chain start: trust the stored previous link as anchor.
			prev = storedPrev
		}
		first = false

		if storedPrev != prev {
			return false, seq, nil
		}

		payload, err := unmarshalPayload(payloadText)
		if err != nil {
			return false, seq, nil // Unparseable payload is tampering, not an I/O error
		}
		recomputed, err := model.SnapshotHash(payload, prev)
		if err != nil {
			return false, 0, fmt.Errorf("verify chain: seq %d: %w", seq, err)
		}
		if recomputed != stored {
			return false, seq, nil
		}
		prev = stored
	}
	if err := rows.Err(); err != nil {
		return false, 0, fmt.Errorf("verify chain: iterate: %w", err)
	}
	return true, 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (model.Snapshot, error) {
	var (
		snap        model.Snapshot
		collectedAt string
		payloadText string
	)
	err := row.Scan(&snap.Seq, &collectedAt, &snap.ContentHash, &snap.PreviousHash, &payloadText)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	if snap.CollectedAt, err = parseStoredTime(collectedAt); err != nil {
		return model.Snapshot{}, err
	}
	if snap.Payload, err = unmarshalPayload(payloadText); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// TaskMetrics returns the latest count row per task across the whole log
// (the newest snapshot wins). Count-only, never gated.
func (s *Store) TaskMetrics(ctx context.Context) ([]model.TaskMetrics, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tm.snapshot_seq, tm.task_id, tm.status, tm.comment_count, tm.deliverable_count, tm.merged_count, tm.created_at
		FROM task_metrics tm
		JOIN (
			SELECT task_id, MAX(snapshot_seq) AS latest
			FROM task_metrics
			GROUP BY task_id
		) last ON tm.task_id = last.task_id AND tm.snapshot_seq = last.latest
		ORDER BY tm.task_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("read task metrics: %w", err)
	}
	defer rows.Close()

	metrics := []model.TaskMetrics{}
	for rows.Next() {
		var (
			m         model.TaskMetrics
			createdAt string
		)
		if err := rows.Scan(&m.SnapshotSeq, &m.TaskID, &m.Status, &m.CommentCount, &m.DeliverableCount, &m.MergedCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task metrics: %w", err)
		}
		if m.CreatedAt, err = parseStoredTime(createdAt); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task metrics: %w", err)
	}
	return metrics, nil
}
