// Package keys turns key down/up events from any input device into the
// per-frame press edges and held levels the expression selector reads.
//
// Events may arrive from several goroutines (terminal poller, websocket
// clients). The frame loop calls Snapshot once per frame; a press that
// happened since the previous snapshot is reported exactly once.
package keys

import (
	"strings"
	"sync"
	"time"
)

// DefaultHoldWindow is how long a tap keeps a key held when the input
// device never reports the release. Terminal autorepeat refreshes it.
const DefaultHoldWindow = 150 * time.Millisecond

// Normalize canonicalises a key name so that "f1", "F1" and " F1 " match.
func Normalize(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

type keyState struct {
	down bool
	// until, when set, releases the key automatically.
	until time.Time
}

// Tracker accumulates key events between frames.
type Tracker struct {
	mu         sync.Mutex
	keys       map[string]*keyState
	pressed    map[string]bool
	holdWindow time.Duration
	now        func() time.Time
	// bound, when non-nil, limits tracking to these keys.
	bound map[string]bool
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithHoldWindow sets the auto-release window used by Tap.
func WithHoldWindow(d time.Duration) Option {
	return func(t *Tracker) { t.holdWindow = d }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		keys:       make(map[string]*keyState),
		pressed:    make(map[string]bool),
		holdWindow: DefaultHoldWindow,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Restrict limits tracking to keys; events for other keys are ignored and
// state for them is dropped. A nil or empty list tracks every key.
func (t *Tracker) Restrict(keys []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(keys) == 0 {
		t.bound = nil
		return
	}
	t.bound = make(map[string]bool, len(keys))
	for _, k := range keys {
		t.bound[Normalize(k)] = true
	}
	for k := range t.keys {
		if !t.bound[k] {
			delete(t.keys, k)
		}
	}
	for k := range t.pressed {
		if !t.bound[k] {
			delete(t.pressed, k)
		}
	}
}

// Tracked returns how many keys currently hold state.
func (t *Tracker) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.keys)
}

func (t *Tracker) ignored(key string) bool {
	return t.bound != nil && !t.bound[key]
}

// Down records a key press. Repeated Down events without an Up in
// between do not produce new press edges.
func (t *Tracker) Down(key string) {
	key = Normalize(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ignored(key) {
		return
	}

	st := t.state(key, t.now())
	if !st.down {
		t.pressed[key] = true
	}
	st.down = true
	st.until = time.Time{}
}

// Up records a key release.
func (t *Tracker) Up(key string) {
	key = Normalize(key)
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.keys, key)
}

// Set is Down or Up depending on down.
func (t *Tracker) Set(key string, down bool) {
	if down {
		t.Down(key)
		return
	}
	t.Up(key)
}

// Tap records a press from a device without release events. The key stays
// held until the hold window passes with no further Tap for it.
func (t *Tracker) Tap(key string) {
	key = Normalize(key)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ignored(key) {
		return
	}

	now := t.now()
	st := t.state(key, now)
	if !st.down {
		t.pressed[key] = true
	}
	st.down = true
	st.until = now.Add(t.holdWindow)
}

// Reset releases every key and forgets pending edges.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.keys = make(map[string]*keyState)
	t.pressed = make(map[string]bool)
}

// state returns the entry for key after expiring a lapsed tap.
func (t *Tracker) state(key string, now time.Time) *keyState {
	st, ok := t.keys[key]
	if !ok {
		st = &keyState{}
		t.keys[key] = st
	}
	if st.down && !st.until.IsZero() && now.After(st.until) {
		st.down = false
		st.until = time.Time{}
	}
	return st
}

// Snapshot returns the key state for one frame and clears press edges.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	snap := Snapshot{
		pressed: t.pressed,
		down:    make(map[string]bool, len(t.keys)),
	}
	for key := range t.keys {
		if t.state(key, now).down {
			snap.down[key] = true
		} else {
			delete(t.keys, key)
		}
	}
	t.pressed = make(map[string]bool)
	return snap
}

// Snapshot is an immutable per-frame view of the keyboard. It satisfies
// avatar.KeyState.
type Snapshot struct {
	pressed map[string]bool
	down    map[string]bool
}

// Pressed reports a press edge since the previous snapshot.
func (s Snapshot) Pressed(key string) bool {
	return s.pressed[Normalize(key)]
}

// Down reports whether key is held.
func (s Snapshot) Down(key string) bool {
	return s.down[Normalize(key)]
}

// Held lists the held keys, in no particular order.
func (s Snapshot) Held() []string {
	out := make([]string, 0, len(s.down))
	for k := range s.down {
		out = append(out, k)
	}
	return out
}
