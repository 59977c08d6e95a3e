package guard

import (
	"sort"
	"sync"
	"time"
)

// Window is the rolling interval quotas are measured over.
const Window = time.Minute

// RateLimiter enforces per-key quotas over a sliding window.
//
// State lives for the lifetime of the limiter. Keys are never removed; a
// key's record slice shrinks back to empty as its calls age out.
type RateLimiter struct {
	Clock func() time.Time

	windows sync.Map // key -> *slidingWindow
}

// slidingWindow holds admitted call times for one key, oldest first.
type slidingWindow struct {
	mu      sync.Mutex
	records []time.Time
}

// WindowState is a read-only view of one key's window.
type WindowState struct {
	Key    string    `json:"key"`
	Count  int       `json:"count"`
	Oldest time.Time `json:"oldest,omitempty"`
	Newest time.Time `json:"newest,omitempty"`
}

var shared = &RateLimiter{}

// Shared returns the process-wide limiter used by default. Every guard built
// without an explicit limiter contends on this one, keyed by operation name.
func Shared() *RateLimiter {
	return shared
}

// NewRateLimiter creates an isolated limiter. A nil clock uses time.Now.
func NewRateLimiter(clock func() time.Time) *RateLimiter {
	return &RateLimiter{Clock: clock}
}

// Admit records a call for key when fewer than quota calls were admitted in
// the trailing window, otherwise it returns a rate_limited *Failure and
// records nothing. A non-positive quota disables the check.
func (l *RateLimiter) Admit(key string, quota int) error {
	if l == nil || quota <= 0 {
		return nil
	}

	now := l.now()
	w := l.window(key)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.trim(now.Add(-Window))
	if len(w.records) >= quota {
		return rateLimited(key, quota)
	}
	w.records = append(w.records, now)
	return nil
}

// Count returns the number of calls for key still inside the window.
func (l *RateLimiter) Count(key string) int {
	if l == nil {
		return 0
	}
	value, ok := l.windows.Load(key)
	if !ok {
		return 0
	}
	w := value.(*slidingWindow)
	cutoff := l.now().Add(-Window)

	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records) - expiredPrefix(w.records, cutoff)
}

// Snapshot lists every known key with its in-window counts, sorted by key.
// It does not trim stored records.
func (l *RateLimiter) Snapshot() []WindowState {
	if l == nil {
		return nil
	}
	cutoff := l.now().Add(-Window)

	var states []WindowState
	l.windows.Range(func(key, value any) bool {
		w := value.(*slidingWindow)
		w.mu.Lock()
		live := w.records[expiredPrefix(w.records, cutoff):]
		state := WindowState{Key: key.(string), Count: len(live)}
		if len(live) > 0 {
			state.Oldest = live[0]
			state.Newest = live[len(live)-1]
		}
		w.mu.Unlock()
		states = append(states, state)
		return true
	})

	sort.Slice(states, func(i, j int) bool { return states[i].Key < states[j].Key })
	return states
}

func (l *RateLimiter) window(key string) *slidingWindow {
	if value, ok := l.windows.Load(key); ok {
		return value.(*slidingWindow)
	}
	value, _ := l.windows.LoadOrStore(key, &slidingWindow{})
	return value.(*slidingWindow)
}

func (l *RateLimiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now()
}

// trim drops records strictly older than cutoff. Must hold w.mu.
func (w *slidingWindow) trim(cutoff time.Time) {
	n := expiredPrefix(w.records, cutoff)
	if n == 0 {
		return
	}
	w.records = append(w.records[:0], w.records[n:]...)
}

func expiredPrefix(records []time.Time, cutoff time.Time) int {
	i := 0
	for ; i < len(records); i++ {
		if !records[i].Before(cutoff) {
			break
		}
	}
	return i
}
