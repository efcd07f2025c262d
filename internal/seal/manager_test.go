package seal

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/darkroom/internal/store"
	"github.com/roach88/darkroom/internal/testutil"
)

var sealBase = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

// fakeFreezer stands in for the protocol registry.
type fakeFreezer struct {
	hash  string
	calls int
}

func (f *fakeFreezer) Freeze(context.Context) (string, error) {
	f.calls++
	return f.hash, nil
}

func newFixture(t *testing.T, snapshots int) (*store.Store, *Manager, *testutil.ManualClock) {
	st, _, mgr, clock := newFixtureWithPath(t, snapshots)
	return st, mgr, clock
}

func newFixtureWithPath(t *testing.T, snapshots int) (*store.Store, string, *Manager, *testutil.ManualClock) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "darkroom.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	clock := testutil.NewManualClock(sealBase)
	mgr, err := NewManager(st, clock)
	require.NoError(t, err)
	st.SetContentGate(mgr)

	for i := 0; i < snapshots; i++ {
		_, err := st.AppendSnapshot(context.Background(), testutil.Payload(2, sealBase), clock.Now(), 0)
		require.NoError(t, err)
	}
	return st, path, mgr, clock
}

// tamperPayload rewrites a stored payload out-of-band, bypassing the store.
func tamperPayload(t *testing.T, path string, seq int64, payload string) {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`UPDATE snapshots SET payload = ? WHERE seq = ?`, payload, seq)
	require.NoError(t, err)
}

func TestStateMachine(t *testing.T) {
	ctx := context.Background()
	_, mgr, clock := newFixture(t, 3)

	state, err := mgr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateCollecting, state)

	freezer := &fakeFreezer{hash: "fh"}
	rec, err := mgr.Seal(ctx, clock.Now().Add(30*24*time.Hour), freezer)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.SealedPrefixSeq)
	assert.Equal(t, "fh", rec.ProtocolFreezeHash)
	assert.Equal(t, 1, freezer.calls)

	state, err = mgr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSealed, state)

	clock.Advance(30*24*time.Hour + time.Second)
	_, err = mgr.AttemptUnlock(ctx)
	require.NoError(t, err)

	state, err = mgr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateUnlocked, state)
}

func TestSealTwiceFails(t *testing.T) {
	ctx := context.Background()
	_, mgr, clock := newFixture(t, 1)

	_, err := mgr.Seal(ctx, clock.Now().Add(time.Hour), &fakeFreezer{hash: "fh"})
	require.NoError(t, err)

	_, err = mgr.Seal(ctx, clock.Now().Add(2*time.Hour), &fakeFreezer{hash: "fh"})
	require.ErrorIs(t, err, ErrAlreadySealed)
}

func TestUnlockBeforeSealFails(t *testing.T) {
	_, mgr, _ := newFixture(t, 1)
	_, err := mgr.AttemptUnlock(context.Background())
	require.ErrorIs(t, err, ErrNotSealed)
}

func TestTooEarlyHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	_, mgr, clock := newFixture(t, 2)

	target := clock.Now().Add(30 * 24 * time.Hour)
	_, err := mgr.Seal(ctx, target, &fakeFreezer{hash: "fh"})
	require.NoError(t, err)

	// A daily check may fire any number of times before the target.
	for i := 0; i < 5; i++ {
		clock.Advance(24 * time.Hour)
		_, err := mgr.AttemptUnlock(ctx)
		require.True(t, IsTooEarly(err), "day %d: %v", i, err)

		state, stateErr := mgr.State(ctx)
		require.NoError(t, stateErr)
		assert.Equal(t, StateSealed, state)
	}

	var tooEarly *TooEarlyError
	_, err = mgr.AttemptUnlock(ctx)
	require.ErrorAs(t, err, &tooEarly)
	assert.Equal(t, target, tooEarly.Target)
}

func TestUnlockOneSecondShort(t *testing.T) {
	ctx := context.Background()
	_, mgr, clock := newFixture(t, 3)

	target := clock.Now().Add(30 * 24 * time.Hour)
	_, err := mgr.Seal(ctx, target, &fakeFreezer{hash: "fh"})
	require.NoError(t, err)

	clock.Set(target.Add(-time.Second))
	_, err = mgr.AttemptUnlock(ctx)
	require.True(t, IsTooEarly(err))

	clock.Set(target)
	rec, err := mgr.AttemptUnlock(ctx)
	require.NoError(t, err)
	assert.True(t, rec.Unlocked())
}

func TestUnlockIdempotent(t *testing.T) {
	ctx := context.Background()
	_, mgr, clock := newFixture(t, 1)

	_, err := mgr.Seal(ctx, clock.Now().Add(time.Hour), &fakeFreezer{hash: "fh"})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	first, err := mgr.AttemptUnlock(ctx)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := mgr.AttemptUnlock(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.UnlockedAt, second.UnlockedAt, "unlock time never moves")
}

func TestUnlockRaceSingleTransition(t *testing.T) {
	ctx := context.Background()
	_, mgr, clock := newFixture(t, 2)

	_, err := mgr.Seal(ctx, clock.Now().Add(time.Hour), &fakeFreezer{hash: "fh"})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	const callers = 8
	times := make([]time.Time, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := mgr.AttemptUnlock(ctx)
			if assert.NoError(t, err) {
				times[i] = rec.UnlockedAt
			}
		}()
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, times[0], times[i], "every caller observes the same transition")
	}
}

func TestUnlockDetectsTampering(t *testing.T) {
	ctx := context.Background()
	st, path, mgr, clock := newFixtureWithPath(t, 3)

	_, err := mgr.Seal(ctx, clock.Now().Add(time.Hour), &fakeFreezer{hash: "fh"})
	require.NoError(t, err)

	tamperPayload(t, path, 2, `{"comments":[],"tasks":[]}`)

	clock.Advance(2 * time.Hour)
	_, err = mgr.AttemptUnlock(ctx)
	require.True(t, IsIntegrityViolation(err), "got %v", err)

	// The violation is permanent: the system stays sealed.
	state, err := mgr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSealed, state)

	_, err = st.GetSnapshot(ctx, 1)
	require.ErrorIs(t, err, ErrSealedAccessDenied)
}

func TestSealOverEmptyChain(t *testing.T) {
	ctx := context.Background()
	_, mgr, clock := newFixture(t, 0)

	rec, err := mgr.Seal(ctx, clock.Now().Add(time.Hour), &fakeFreezer{hash: "fh"})
	require.NoError(t, err)
	assert.Zero(t, rec.SealedPrefixSeq)

	clock.Advance(2 * time.Hour)
	rec, err = mgr.AttemptUnlock(ctx)
	require.NoError(t, err)
	assert.True(t, rec.Unlocked())
}

func TestContentGateFollowsState(t *testing.T) {
	ctx := context.Background()
	st, mgr, clock := newFixture(t, 1)

	// COLLECTING: content stays dark so the blind holds from day one.
	_, err := st.GetSnapshot(ctx, 1)
	require.ErrorIs(t, err, ErrSealedAccessDenied)

	_, err = mgr.Seal(ctx, clock.Now().Add(time.Hour), &fakeFreezer{hash: "fh"})
	require.NoError(t, err)
	_, err = st.GetSnapshot(ctx, 1)
	require.ErrorIs(t, err, ErrSealedAccessDenied)

	clock.Advance(2 * time.Hour)
	_, err = mgr.AttemptUnlock(ctx)
	require.NoError(t, err)

	snap, err := st.GetSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.Payload.Tasks)
}

func TestManagerPrimesFromExistingRecord(t *testing.T) {
	ctx := context.Background()
	st, mgr, clock := newFixture(t, 1)

	_, err := mgr.Seal(ctx, clock.Now().Add(time.Hour), &fakeFreezer{hash: "fh"})
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)
	_, err = mgr.AttemptUnlock(ctx)
	require.NoError(t, err)

	// A fresh manager over the same store sees UNLOCKED immediately.
	reopened, err := NewManager(st, clock)
	require.NoError(t, err)
	require.NoError(t, reopened.AllowContentRead())
}
