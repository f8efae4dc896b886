// Package tracker remembers which issues have already triggered an alert.
// The set lives in memory only; a restart starts fresh, which is fine
// because the watermark also resets to process start.
package tracker

import "log"

const defaultResetThreshold = 5000

type Tracker struct {
	seen      map[int64]struct{}
	threshold int
}

func New() *Tracker {
	return NewWithThreshold(defaultResetThreshold)
}

func NewWithThreshold(threshold int) *Tracker {
	return &Tracker{
		seen:      make(map[int64]struct{}),
		threshold: threshold,
	}
}

func (t *Tracker) HasSeen(id int64) bool {
	_, ok := t.seen[id]
	return ok
}

func (t *Tracker) MarkSeen(id int64) {
	t.seen[id] = struct{}{}
}

// MaybeReset clears the whole set once it grows past the threshold. This
// bounds memory at the cost of possibly re-alerting on old open issues
// right after a reset.
func (t *Tracker) MaybeReset() {
	if len(t.seen) > t.threshold {
		log.Printf("tracker: clearing %d seen issues (threshold %d exceeded)", len(t.seen), t.threshold)
		t.seen = make(map[int64]struct{})
	}
}

func (t *Tracker) Len() int {
	return len(t.seen)
}
