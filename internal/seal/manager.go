package seal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/darkroom/internal/model"
	"github.com/roach88/darkroom/internal/store"
)

// State names the seal state machine's position.
type State string

const (
	StateCollecting State = "COLLECTING"
	StateSealed     State = "SEALED"
	StateUnlocked   State = "UNLOCKED"
)

// Clock supplies wall-clock time. Injectable so unlock timing is
// deterministically testable.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RegistryFreezer freezes the protocol registry and returns the freeze hash.
// Implemented by protocol.Registry; passed into Seal so this package does
// not depend on the registry implementation.
type RegistryFreezer interface {
	Freeze(ctx context.Context) (string, error)
}

// Manager is the seal state machine. It owns the unlock transition and
// implements store.ContentGate for every payload read.
//
// Safe for concurrent use: racing AttemptUnlock callers serialize on an
// internal mutex, the first one past the checks performs the transition, and
// the rest observe UNLOCKED.
type Manager struct {
	st    *store.Store
	clock Clock

	mu sync.Mutex

	// unlocked caches the one-way transition so the content gate does not
	// hit the database on every read once open.
	unlocked atomic.Bool
}

// NewManager creates a seal manager over the given store. The caller should
// immediately install it as the store's content gate.
func NewManager(st *store.Store, clock Clock) (*Manager, error) {
	if clock == nil {
		clock = SystemClock{}
	}
	m := &Manager{st: st, clock: clock}

	rec, err := m.st.ReadSealRecord(context.Background())
	switch {
	case errors.Is(err, store.ErrNoSealRecord):
		// Still collecting.
	case err != nil:
		return nil, fmt.Errorf("seal manager: %w", err)
	default:
		m.unlocked.Store(rec.Unlocked())
	}
	return m, nil
}

// AllowContentRead implements store.ContentGate.
func (m *Manager) AllowContentRead() error {
	if m.unlocked.Load() {
		return nil
	}
	return ErrSealedAccessDenied
}

// Unlocked reports whether the unlock transition has happened.
func (m *Manager) Unlocked(ctx context.Context) (bool, error) {
	if m.unlocked.Load() {
		return true, nil
	}
	rec, err := m.st.ReadSealRecord(ctx)
	if errors.Is(err, store.ErrNoSealRecord) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.Unlocked() {
		m.unlocked.Store(true)
		return true, nil
	}
	return false, nil
}

// State returns the current state.
func (m *Manager) State(ctx context.Context) (State, error) {
	rec, err := m.st.ReadSealRecord(ctx)
	if errors.Is(err, store.ErrNoSealRecord) {
		return StateCollecting, nil
	}
	if err != nil {
		return "", err
	}
	if rec.Unlocked() {
		return StateUnlocked, nil
	}
	return StateSealed, nil
}

// Record returns the seal record, or store.ErrNoSealRecord while collecting.
func (m *Manager) Record(ctx context.Context) (model.SealRecord, error) {
	return m.st.ReadSealRecord(ctx)
}

// Seal creates the single seal record: freezes the protocol registry,
// records the chain hash over the current snapshot prefix, and transitions
// to SEALED. Fails with ErrAlreadySealed on a second attempt.
//
// Collection may continue afterwards; later snapshots extend the chain as an
// unanalyzed tail outside the sealed prefix.
func (m *Manager) Seal(ctx context.Context, targetUnlockAt time.Time, freezer RegistryFreezer) (model.SealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.st.ReadSealRecord(ctx); err == nil {
		return model.SealRecord{}, ErrAlreadySealed
	} else if !errors.Is(err, store.ErrNoSealRecord) {
		return model.SealRecord{}, fmt.Errorf("seal: %w", err)
	}

	headSeq, headHash, err := m.st.ChainHead(ctx)
	if err != nil {
		return model.SealRecord{}, fmt.Errorf("seal: %w", err)
	}

	freezeHash, err := freezer.Freeze(ctx)
	if err != nil {
		return model.SealRecord{}, fmt.Errorf("seal: freeze registry: %w", err)
	}

	rec := model.SealRecord{
		CreatedAt:          m.clock.Now(),
		TargetUnlockAt:     targetUnlockAt.UTC(),
		ChainHashAtSeal:    headHash,
		ProtocolFreezeHash: freezeHash,
		SealedPrefixSeq:    headSeq,
	}
	if err := m.st.WriteSealRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateSeal) {
			return model.SealRecord{}, ErrAlreadySealed
		}
		// The registry is frozen at this point. Freeze is idempotent over
		// identical content, so a retried Seal reuses the frozen set.
		return model.SealRecord{}, fmt.Errorf("seal: %w", err)
	}
	return rec, nil
}

// AttemptUnlock tries the one-way SEALED -> UNLOCKED transition.
//
// Before the target time it returns a TooEarlyError and changes nothing, no
// matter how often it is called. At or after the target time it re-verifies
// the sealed prefix against the chain hash recorded at seal time; a mismatch
// returns an IntegrityViolationError and the system stays SEALED for good.
// Once unlocked, further calls return the same record with no side effects.
func (m *Manager) AttemptUnlock(ctx context.Context) (model.SealRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.st.ReadSealRecord(ctx)
	if errors.Is(err, store.ErrNoSealRecord) {
		return model.SealRecord{}, ErrNotSealed
	}
	if err != nil {
		return model.SealRecord{}, fmt.Errorf("attempt unlock: %w", err)
	}

	if rec.Unlocked() {
		m.unlocked.Store(true)
		return rec, nil
	}

	now := m.clock.Now()
	if now.Before(rec.TargetUnlockAt) {
		return rec, &TooEarlyError{Now: now, Target: rec.TargetUnlockAt}
	}

	if err := m.verifySealedPrefix(ctx, rec); err != nil {
		return rec, err
	}

	if err := m.st.MarkUnlocked(ctx, now); err != nil {
		return rec, fmt.Errorf("attempt unlock: %w", err)
	}
	m.unlocked.Store(true)

	rec.UnlockedAt = now
	return rec, nil
}

// verifySealedPrefix recomputes the chain over [1, sealed_prefix_seq] and
// compares both every link and the prefix head against the seal record.
func (m *Manager) verifySealedPrefix(ctx context.Context, rec model.SealRecord) error {
	if rec.SealedPrefixSeq == 0 {
		// Sealed over an empty chain: nothing to verify.
		if rec.ChainHashAtSeal != model.GenesisHash {
			return &IntegrityViolationError{Expected: rec.ChainHashAtSeal, Actual: model.GenesisHash}
		}
		return nil
	}

	ok, badSeq, err := m.st.VerifyChain(ctx, 1, rec.SealedPrefixSeq)
	if err != nil {
		return fmt.Errorf("verify sealed prefix: %w", err)
	}
	if !ok {
		return &IntegrityViolationError{BadSeq: badSeq}
	}

	metas, err := m.st.SnapshotMetas(ctx)
	if err != nil {
		return fmt.Errorf("verify sealed prefix: %w", err)
	}
	head := model.GenesisHash
	for _, meta := range metas {
		if meta.Seq == rec.SealedPrefixSeq {
			head = meta.ContentHash
			break
		}
	}
	if head != rec.ChainHashAtSeal {
		return &IntegrityViolationError{Expected: rec.ChainHashAtSeal, Actual: head}
	}
	return nil
}
