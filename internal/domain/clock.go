package domain

import "github.com/jonboulle/clockwork"

// clock stamps ProcessedAt on estimates. Tests freeze it via SetClock so
// published estimates are reproducible.
var clock = clockwork.NewRealClock()

// SetClock swaps the estimate time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
