package domain

import (
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic output.
var clock = clockwork.NewRealClock()

// newID generates test record identifiers.
var newID = uuid.NewString

// SetClock swaps the time source for assembly and enrichment. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// SetIDGenerator swaps the test record ID source. Pass nil to reset to random UUIDs.
func SetIDGenerator(fn func() string) {
	if fn == nil {
		newID = uuid.NewString
		return
	}
	newID = fn
}
