package usecase

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// typewriterInterval is how often the smoothed caption advances.
const typewriterInterval = 50 * time.Millisecond

// Typewriter reveals streaming caption text gradually instead of in bursts.
// The revealed prefix catches up faster the further it lags behind the
// target, and snaps back instantly when the target shrinks or clears.
type Typewriter struct {
	clk  clock.Clock
	emit func(text string)

	mu      sync.Mutex
	target  string
	current string
	ticker  *clock.Ticker
	done    chan struct{}
}

// NewTypewriter builds a stopped typewriter that publishes caption frames
// through emit.
func NewTypewriter(clk clock.Clock, emit func(string)) *Typewriter {
	return &Typewriter{clk: clk, emit: emit}
}

// Start begins the reveal loop. Calling Start on a running typewriter is a
// no-op.
func (w *Typewriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ticker != nil {
		return
	}
	w.ticker = w.clk.Ticker(typewriterInterval)
	w.done = make(chan struct{})
	go w.run(w.ticker, w.done)
}

// Stop halts the reveal loop and clears all text.
func (w *Typewriter) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ticker == nil {
		return
	}
	w.ticker.Stop()
	close(w.done)
	w.ticker = nil
	w.done = nil
	w.target = ""
	w.current = ""
}

// SetTarget updates the full text the caption should converge to.
func (w *Typewriter) SetTarget(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = text
}

// Current returns the revealed caption prefix.
func (w *Typewriter) Current() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Typewriter) run(ticker *clock.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if text, changed := w.advance(); changed {
				w.emit(text)
			}
		}
	}
}

// advance moves the revealed prefix one step toward the target.
func (w *Typewriter) advance() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == w.target {
		return "", false
	}
	if w.target == "" || len(w.target) < len(w.current) {
		w.current = w.target
		return w.current, true
	}

	dist := len(w.target) - len(w.current)
	step := (dist + 24) / 25
	if step < 1 {
		step = 1
	}
	next := len(w.current) + step
	if next > len(w.target) {
		next = len(w.target)
	}
	w.current = w.target[:next]
	return w.current, true
}
