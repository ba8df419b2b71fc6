package link

import (
	"errors"
	"sync"
	"time"

	"github.com/relabs-tech/flight_computer/internal/flight"
)

// ErrStale means no stick frame arrived within the freshness window.
var ErrStale = errors.New("stick input is stale")

// Latest keeps the most recent stick frame. Sources Put from their own
// goroutines; the pilot loop Gets once per tick.
type Latest struct {
	mu         sync.Mutex
	in         flight.RawInput
	at         time.Time
	seen       bool
	staleAfter time.Duration
	now        func() time.Time
}

// NewLatest returns a store whose frames go stale after staleAfter.
func NewLatest(staleAfter time.Duration) *Latest {
	return &Latest{staleAfter: staleAfter, now: time.Now}
}

// Put stores a frame.
func (l *Latest) Put(in flight.RawInput) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.in = in
	l.at = l.now()
	l.seen = true
}

// Get returns the latest frame. With no fresh frame it returns the zero
// input, centered sticks and no keys, together with ErrStale.
func (l *Latest) Get() (flight.RawInput, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.seen || l.now().Sub(l.at) > l.staleAfter {
		return flight.RawInput{}, ErrStale
	}
	return l.in, nil
}
