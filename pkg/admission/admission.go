// Package admission bounds per-caller request rates before a request
// reaches a backend.
package admission

import (
	"sync"
	"time"
)

// Decision is the outcome of one admission check. It is recomputed on
// every check and never persisted.
type Decision struct {
	Allowed       bool
	Limit         int
	Remaining     int
	WindowSeconds int
	ResetAt       time.Time
}

// Controller decides whether a caller may proceed. Implementations must
// make the check-then-increment sequence atomic per identity. The
// in-memory controller below is per-process; a shared-store controller
// for multi-process deployments can be substituted behind this interface
// without touching callers.
type Controller interface {
	Check(identity string, limit int, window time.Duration) Decision
}

type windowEntry struct {
	windowStart int64
	count       int
}

// MemoryController is a fixed-window request counter keyed by caller
// identity. Windows are aligned to epoch boundaries
// (floor(now/window)*window), not sliding: a previous window's count is
// discarded at the boundary, which admits brief double-rate bursts there.
// Best-effort, single-process admission control only.
type MemoryController struct {
	mu       sync.Mutex
	counters map[string]*windowEntry
	now      func() time.Time
}

// NewMemoryController creates an in-memory admission controller.
func NewMemoryController() *MemoryController {
	return &MemoryController{
		counters: make(map[string]*windowEntry),
		now:      time.Now,
	}
}

// NewMemoryControllerWithClock creates a controller with an injected clock.
func NewMemoryControllerWithClock(now func() time.Time) *MemoryController {
	return &MemoryController{
		counters: make(map[string]*windowEntry),
		now:      now,
	}
}

// Check records one admission attempt for identity and returns the
// decision with remaining-quota and reset metadata. The lock is held only
// for the counter update, never across backend calls.
func (c *MemoryController) Check(identity string, limit int, window time.Duration) Decision {
	windowSecs := int64(window / time.Second)
	if windowSecs < 1 {
		windowSecs = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nowUnix := c.now().Unix()
	windowStart := (nowUnix / windowSecs) * windowSecs
	resetAt := time.Unix(windowStart+windowSecs, 0)

	entry, ok := c.counters[identity]
	if !ok || entry.windowStart != windowStart {
		entry = &windowEntry{windowStart: windowStart}
		c.counters[identity] = entry
	}

	if entry.count >= limit {
		return Decision{
			Allowed:       false,
			Limit:         limit,
			Remaining:     0,
			WindowSeconds: int(windowSecs),
			ResetAt:       resetAt,
		}
	}

	entry.count++
	return Decision{
		Allowed:       true,
		Limit:         limit,
		Remaining:     limit - entry.count,
		WindowSeconds: int(windowSecs),
		ResetAt:       resetAt,
	}
}
