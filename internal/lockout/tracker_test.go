package lockout

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTracker(t *testing.T, store Store) (*Tracker, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	return NewTracker(store, WithClock(c.now)), c
}

func fail(t *testing.T, tr *Tracker, user string, n int) (int, time.Duration) {
	t.Helper()
	var (
		remaining int
		locked    time.Duration
		err       error
	)
	for i := 0; i < n; i++ {
		remaining, locked, err = tr.RecordFailure(user, "10.0.0.1")
		require.NoError(t, err)
	}
	return remaining, locked
}

func TestTracker_LocksAfterFiveFailures(t *testing.T) {
	tr, _ := newTracker(t, nil)

	remaining, locked := fail(t, tr, "alice", 4)
	assert.Equal(t, 1, remaining)
	assert.Zero(t, locked)

	isLocked, _, err := tr.IsLockedOut("alice")
	require.NoError(t, err)
	assert.False(t, isLocked)

	remaining, locked = fail(t, tr, "alice", 1)
	assert.Zero(t, remaining)
	assert.Equal(t, 15*time.Minute, locked)

	isLocked, left, err := tr.IsLockedOut("alice")
	require.NoError(t, err)
	assert.True(t, isLocked)
	assert.Equal(t, 15*time.Minute, left)

	other, _, err := tr.IsLockedOut("bob")
	require.NoError(t, err)
	assert.False(t, other)
}

func TestTracker_LockoutElapsesLazily(t *testing.T) {
	tr, c := newTracker(t, nil)
	fail(t, tr, "alice", 5)

	c.advance(15*time.Minute - time.Second)
	locked, left, err := tr.IsLockedOut("alice")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, time.Second, left)

	c.advance(time.Second)
	locked, _, err = tr.IsLockedOut("alice")
	require.NoError(t, err)
	assert.False(t, locked)

	s, err := tr.State("alice")
	require.NoError(t, err)
	assert.Nil(t, s.LockoutUntil)
	assert.Zero(t, s.FailCount)
	assert.Equal(t, 1, s.LockoutCount)
}

func TestTracker_EscalatesAndSurvivesSuccess(t *testing.T) {
	tr, c := newTracker(t, nil)

	_, first := fail(t, tr, "alice", 5)
	c.advance(first)
	_, _, _ = tr.IsLockedOut("alice")

	require.NoError(t, tr.RecordSuccess("alice"))

	_, second := fail(t, tr, "alice", 5)
	assert.Equal(t, 2*first, second)
	c.advance(second)

	_, third := fail(t, tr, "alice", 5)
	assert.Equal(t, 4*first, third)

	s, err := tr.State("alice")
	require.NoError(t, err)
	assert.Equal(t, 3, s.LockoutCount)
}

func TestTracker_LockoutSaturates(t *testing.T) {
	tests := []struct {
		name  string
		count int
		want  time.Duration
	}{
		{"doubling", 3, 8 * DefaultBaseLockout},
		{"past int64 range", 24, MaxLockout},
		{"shift width", 64, MaxLockout},
		{"far beyond", 1000, MaxLockout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()
			require.NoError(t, store.Put(&State{Username: "alice", LockoutCount: tt.count}))
			tr, _ := newTracker(t, store)

			_, locked := fail(t, tr, "alice", DefaultMaxFailures)
			assert.Equal(t, tt.want, locked)

			isLocked, left, err := tr.IsLockedOut("alice")
			require.NoError(t, err)
			assert.True(t, isLocked)
			assert.Positive(t, left)
		})
	}
}

func TestTracker_SuccessResetsFailCount(t *testing.T) {
	tr, _ := newTracker(t, nil)
	fail(t, tr, "alice", 4)
	require.NoError(t, tr.RecordSuccess("alice"))

	remaining, locked := fail(t, tr, "alice", 1)
	assert.Equal(t, 4, remaining)
	assert.Zero(t, locked)

	// success for an unknown user is a no-op
	require.NoError(t, tr.RecordSuccess("nobody"))
}

func TestTracker_ManualUnlockResetsEverything(t *testing.T) {
	tr, _ := newTracker(t, nil)
	fail(t, tr, "alice", 5)

	require.NoError(t, tr.Unlock("alice"))

	locked, _, err := tr.IsLockedOut("alice")
	require.NoError(t, err)
	assert.False(t, locked)

	_, d := fail(t, tr, "alice", 5)
	assert.Equal(t, 15*time.Minute, d, "lockout count must restart after manual unlock")
}

func TestTracker_RecentIPsCapped(t *testing.T) {
	tr, _ := newTracker(t, nil)
	tr.maxFailures = 100
	for i := 0; i < 15; i++ {
		_, _, err := tr.RecordFailure("alice", "ip")
		require.NoError(t, err)
	}
	s, err := tr.State("alice")
	require.NoError(t, err)
	assert.Len(t, s.RecentIPs, maxRecentIPs)
}

func TestTracker_Options(t *testing.T) {
	tr := NewTracker(nil, WithMaxFailures(3), WithBaseLockout(time.Minute), WithMaxFailures(0))
	assert.Equal(t, 3, tr.MaxFailures())

	_, locked, err := tr.RecordFailure("a", "")
	require.NoError(t, err)
	assert.Zero(t, locked)
	_, _, _ = tr.RecordFailure("a", "")
	_, locked, err = tr.RecordFailure("a", "")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, locked)
}

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "1 minute", FormatRemaining(10*time.Second))
	assert.Equal(t, "15 minutes", FormatRemaining(15*time.Minute))
	assert.Equal(t, "15 minutes", FormatRemaining(14*time.Minute+time.Second))
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lockout.db")

	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	tr, _ := newTracker(t, store)
	fail(t, tr, "alice", 5)
	require.NoError(t, store.Close())

	store, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	tr2, _ := newTracker(t, store)
	locked, left, err := tr2.IsLockedOut("alice")
	require.NoError(t, err)
	assert.True(t, locked)
	assert.Equal(t, 15*time.Minute, left)

	require.NoError(t, tr2.Unlock("alice"))
	s, err := store.Get("alice")
	require.NoError(t, err)
	assert.Nil(t, s)
}
