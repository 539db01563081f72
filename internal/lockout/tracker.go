// Package lockout rate-limits failed logins per username with an escalating
// lockout: 5 consecutive failures lock the account for 15 minutes times
// 2^lockoutCount, and every lockout doubles the next one.
package lockout

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const (
	DefaultMaxFailures = 5
	DefaultBaseLockout = 15 * time.Minute
	maxRecentIPs       = 10

	// MaxLockout is where the doubling stops.
	MaxLockout = time.Duration(math.MaxInt64)
)

// State is the per-username lockout record.
type State struct {
	Username     string     `json:"username"`
	FailCount    int        `json:"fail_count"`
	LockoutUntil *time.Time `json:"lockout_until,omitempty"`
	LockoutCount int        `json:"lockout_count"`
	RecentIPs    []string   `json:"recent_ips,omitempty"`
}

// Store persists lockout state. MemoryStore keeps it for the process
// lifetime only; BoltStore survives restarts.
type Store interface {
	Get(username string) (*State, error)
	Put(s *State) error
	Delete(username string) error
}

// Tracker implements the Normal -> Locked -> Normal state machine.
type Tracker struct {
	store       Store
	maxFailures int
	base        time.Duration
	now         func() time.Time
	mu          sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMaxFailures sets the consecutive failures that trigger a lockout.
// Values below one are ignored.
func WithMaxFailures(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxFailures = n
		}
	}
}

// WithBaseLockout sets the first lockout duration. Values below one are
// ignored.
func WithBaseLockout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.base = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a Tracker over store, or over a fresh MemoryStore when
// store is nil.
//
// Example:
//
//	tr := lockout.NewTracker(lockout.NewMemoryStore(), lockout.WithBaseLockout(time.Minute))
//	if locked, left, _ := tr.IsLockedOut("alice"); locked {
//	    fmt.Println("try again in", lockout.FormatRemaining(left))
//	}
func NewTracker(store Store, opts ...Option) *Tracker {
	if store == nil {
		store = NewMemoryStore()
	}
	t := &Tracker{store: store, maxFailures: DefaultMaxFailures, base: DefaultBaseLockout, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// MaxFailures is the number of consecutive failures that triggers a lockout.
func (t *Tracker) MaxFailures() int { return t.maxFailures }

// IsLockedOut reports whether username is locked and for how long. An
// elapsed lockout is cleared here, on read.
func (t *Tracker) IsLockedOut(username string) (bool, time.Duration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.store.Get(username)
	if err != nil || s == nil || s.LockoutUntil == nil {
		return false, 0, err
	}

	now := t.now()
	if now.Before(*s.LockoutUntil) {
		return true, s.LockoutUntil.Sub(now), nil
	}

	s.LockoutUntil = nil
	s.FailCount = 0
	return false, 0, t.store.Put(s)
}

// RecordFailure counts a failed attempt from ip (may be empty). It returns
// the attempts left before lockout, and the lockout duration when this
// failure triggered one.
func (t *Tracker) RecordFailure(username, ip string) (remaining int, locked time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.load(username)
	if err != nil {
		return 0, 0, err
	}

	s.FailCount++
	if ip != "" {
		s.RecentIPs = append(s.RecentIPs, ip)
		if len(s.RecentIPs) > maxRecentIPs {
			s.RecentIPs = s.RecentIPs[len(s.RecentIPs)-maxRecentIPs:]
		}
	}

	if s.FailCount >= t.maxFailures {
		locked = t.lockoutFor(s.LockoutCount)
		until := t.now().Add(locked)
		s.LockoutUntil = &until
		s.LockoutCount++
		s.FailCount = 0
	} else {
		remaining = t.maxFailures - s.FailCount
	}

	return remaining, locked, t.store.Put(s)
}

// RecordSuccess resets the failure counter. LockoutCount is kept so later
// lockouts keep escalating.
func (t *Tracker) RecordSuccess(username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.store.Get(username)
	if err != nil || s == nil {
		return err
	}
	s.FailCount = 0
	s.LockoutUntil = nil
	return t.store.Put(s)
}

// Unlock is the manual unlock: both counters go back to zero.
func (t *Tracker) Unlock(username string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Delete(username)
}

// State returns a copy of the stored record, or nil.
func (t *Tracker) State(username string) (*State, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.store.Get(username)
	if err != nil || s == nil {
		return nil, err
	}
	cp := *s
	cp.RecentIPs = append([]string(nil), s.RecentIPs...)
	return &cp, nil
}

// lockoutFor returns base * 2^count, saturating at MaxLockout.
func (t *Tracker) lockoutFor(count int) time.Duration {
	d := t.base
	for i := 0; i < count; i++ {
		if d > MaxLockout/2 {
			return MaxLockout
		}
		d *= 2
	}
	return d
}

func (t *Tracker) load(username string) (*State, error) {
	s, err := t.store.Get(username)
	if err != nil {
		return nil, fmt.Errorf("load lockout state: %w", err)
	}
	if s == nil {
		s = &State{Username: username}
	}
	return s, nil
}

// FormatRemaining renders a lockout duration for users, rounded up to the
// minute.
func FormatRemaining(d time.Duration) string {
	m := int((d + time.Minute - 1) / time.Minute)
	if m <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
