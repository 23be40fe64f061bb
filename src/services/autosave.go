package services

import (
	"log"
	"sync"
	"time"
)

// DefaultAutoSaveDelay coalesces rapid field edits into one outbound save.
const DefaultAutoSaveDelay = 1 * time.Second

// AutoSaver schedules debounced, fire-and-forget snapshot saves. Each call to
// Schedule for an applicant cancels and restarts that applicant's timer, so a
// burst of keystrokes produces a single save shortly after the last one.
// Auto-save failures are logged only; transient connectivity blips must never
// interrupt typing. Explicit user-initiated saves do not go through here.
type AutoSaver struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	delay  time.Duration
	save   func(applicantID string) error
	closed bool
}

// NewAutoSaver creates an AutoSaver calling save after delay of quiet time.
func NewAutoSaver(delay time.Duration, save func(applicantID string) error) *AutoSaver {
	if delay <= 0 {
		delay = DefaultAutoSaveDelay
	}
	return &AutoSaver{
		timers: make(map[string]*time.Timer),
		delay:  delay,
		save:   save,
	}
}

// Schedule queues a save for the applicant, resetting any pending timer.
func (a *AutoSaver) Schedule(applicantID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if t, ok := a.timers[applicantID]; ok {
		t.Stop()
	}
	a.timers[applicantID] = time.AfterFunc(a.delay, func() {
		a.mu.Lock()
		delete(a.timers, applicantID)
		closed := a.closed
		a.mu.Unlock()
		if closed {
			return
		}
		if err := a.save(applicantID); err != nil {
			log.Printf("WARN: [AutoSaver] Auto-save failed for applicant %s: %v", applicantID, err)
		}
	})
}

// Cancel drops any pending save for the applicant.
func (a *AutoSaver) Cancel(applicantID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[applicantID]; ok {
		t.Stop()
		delete(a.timers, applicantID)
	}
}

// Close cancels all pending saves. Schedule becomes a no-op afterwards, so no
// save can fire against a torn-down context.
func (a *AutoSaver) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for id, t := range a.timers {
		t.Stop()
		delete(a.timers, id)
	}
}
