package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/darkroom/internal/model"
)

// WriteSealRecord inserts the single seal record.
// Returns ErrDuplicateSeal if one already exists.
func (s *Store) WriteSealRecord(ctx context.Context, rec model.SealRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seal_record
		(id, created_at, target_unlock_at, chain_hash_at_seal, protocol_freeze_hash, sealed_prefix_seq, unlocked_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`,
		formatStoredTime(rec.CreatedAt),
		formatStoredTime(rec.TargetUnlockAt),
		rec.ChainHashAtSeal,
		rec.ProtocolFreezeHash,
		rec.SealedPrefixSeq,
		nullableTime(rec.UnlockedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "CHECK constraint failed") {
			return ErrDuplicateSeal
		}
		return fmt.Errorf("write seal record: %w", err)
	}
	return nil
}

// ReadSealRecord returns the seal record, or ErrNoSealRecord if the system
// has not been sealed.
func (s *Store) ReadSealRecord(ctx context.Context) (model.SealRecord, error) {
	var (
		rec        model.SealRecord
		createdAt  string
		targetAt   string
		unlockedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at, target_unlock_at, chain_hash_at_seal, protocol_freeze_hash, sealed_prefix_seq, unlocked_at
		FROM seal_record WHERE id = 1
	`).Scan(&createdAt, &targetAt, &rec.ChainHashAtSeal, &rec.ProtocolFreezeHash, &rec.SealedPrefixSeq, &unlockedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SealRecord{}, ErrNoSealRecord
	}
	if err != nil {
		return model.SealRecord{}, fmt.Errorf("read seal record: %w", err)
	}

	if rec.CreatedAt, err = parseStoredTime(createdAt); err != nil {
		return model.SealRecord{}, err
	}
	if rec.TargetUnlockAt, err = parseStoredTime(targetAt); err != nil {
		return model.SealRecord{}, err
	}
	if unlockedAt.Valid {
		if rec.UnlockedAt, err = parseStoredTime(unlockedAt.String); err != nil {
			return model.SealRecord{}, err
		}
	}
	return rec, nil
}

// MarkUnlocked records the one-way unlock transition. The WHERE clause makes
// the update a no-op if some other caller already unlocked, so exactly one
// transition is recorded even under races.
func (s *Store) MarkUnlocked(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE seal_record SET unlocked_at = ? WHERE id = 1 AND unlocked_at IS NULL
	`, formatStoredTime(at))
	if err != nil {
		return fmt.Errorf("mark unlocked: %w", err)
	}
	return nil
}
